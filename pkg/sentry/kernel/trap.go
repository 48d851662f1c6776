// Copyright 2024 The xv6go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"unsafe"

	"github.com/sirupsen/logrus"
)

// TrapCause enumerates the RISC-V-like scause values this kernel cares
// about (spec.md §4.F).
type TrapCause int

const (
	// CauseSyscall is "cause-8 = environment call" in spec.md §4.F.
	CauseSyscall TrapCause = 8
	// CauseDeviceInterrupt covers any recognized device interrupt.
	CauseDeviceInterrupt TrapCause = 100
	// CauseTimerInterrupt is the subset of device interrupts this module
	// models explicitly: a timer tick.
	CauseTimerInterrupt TrapCause = 101
	// CauseUnknown is an unrecognized fault.
	CauseUnknown TrapCause = -1
)

// ticksChanAddr is the opaque channel identity sleepers wait on for a clock
// tick: the Go stand-in for "&ticks" in the original C.
func (k *Kernel) ticksChanAddr() uintptr {
	return uintptr(unsafe.Pointer(&k.tickCount))
}

// UserTrap is the entry point from the trampoline (spec.md §4.F). It
// dispatches syscalls, recognizes a device/timer interrupt, and marks an
// unrecognized cause as a fatal user fault. p.mu is held on this
// goroutine's behalf for the whole call (see CPU.dispatch).
func (k *Kernel) UserTrap(cpu *CPU, p *PCB, cause TrapCause) {
	switch cause {
	case CauseSyscall:
		p.Trapframe.Epc += 4
		cpu.intEna.Store(true)
		k.dispatchSyscall(p)

	case CauseTimerInterrupt:
		k.clockTickBookkeeping(p)
		k.alarmTick(p)
		if k.policy.Preemptive() {
			k.Yield(p)
		}

	case CauseDeviceInterrupt:
		// Recognized device activity with nothing further for this core to
		// do (spec.md §1 treats the interrupt controller as a black box).

	default:
		log.WithFields(logrus.Fields{"pid": p.PID, "cause": cause}).Warn("unexpected user fault")
		p.Killed = true
	}

	if p.Killed {
		k.Exit(p, -1)
	}
}

// KernelTrap is the entry point from kernel-mode code (spec.md §4.F). It
// must be entered with interrupts off; the only recognized cause is a
// device interrupt, and an unknown cause is a structural invariant
// violation (spec.md §7: panic).
func (k *Kernel) KernelTrap(cpu *CPU, running *PCB, cause TrapCause) {
	if cpu.intEna.Load() {
		panic("kerneltrap: entered with interrupts enabled")
	}
	switch cause {
	case CauseTimerInterrupt:
		if running != nil {
			k.clockTickBookkeeping(running)
			if k.policy.Preemptive() {
				k.Yield(running)
			}
		}
	case CauseDeviceInterrupt:
	default:
		panic("kerneltrap: unrecognized cause")
	}
}

// ClockIntr is invoked only from CPU 0 on a timer interrupt (spec.md §4.F):
// increments the global tick counter, walks every hart for the PCB currently
// in state RUNNING there and bumps its accounting, and wakes all sleepers on
// &ticks. Grounded on update_time()/clockintr() in
// original_source/kernel/trap.c:260-290, which perform exactly this
// unconditional table walk on every tick rather than leaving it to
// usertrap/kerneltrap.
//
// A running PCB's lock is held by the CPU dispatching it for its entire
// RUNNING window (CPU.dispatch), so cpu.current is read lock-free instead of
// taking p.mu here: spec.md §5 already calls this accounting racy with the
// process's own state transitions ("accepted as approximate"), and blocking
// on p.mu would mean a CPU-bound process holds up its own clock tick.
func (k *Kernel) ClockIntr() {
	k.ticksLock.Lock()
	k.tickCount++
	k.ticksLock.Unlock()

	for _, cpu := range k.cpus {
		p := cpu.current.Load()
		if p == nil {
			continue
		}
		k.clockTickBookkeeping(p)
		p.quantumTicks.Add(1)
		p.pendingTicks.Add(1)
	}

	k.Wakeup(k.ticksChanAddr())
}

// clockTickBookkeeping increments p's own runtime accounting on a timer
// tick observed on the hart currently running it (xv6's update_time(),
// called from both usertrap and kerneltrap).
func (k *Kernel) clockTickBookkeeping(p *PCB) {
	p.Rtime++
	p.RunningTime++
}

// checkpoint is called at every point a workload reenters the kernel
// (Fork, GrowProc, wait, dispatchSyscall): it is this goroutine-per-process
// model's substitute for an asynchronous timer trap, since nothing can
// interrupt an arbitrary workload closure mid-instruction the way a real
// timer interrupt would. It drains the ticks ClockIntr accumulated while p
// was running into the alarm facility, and yields p once it has exhausted
// its quantum under a preemptive policy (spec.md §4.F, §6:
// config.Boot.QuantumTicks).
func (k *Kernel) checkpoint(p *PCB) {
	if n := p.pendingTicks.Swap(0); n > 0 {
		for i := int32(0); i < n; i++ {
			k.alarmTick(p)
		}
	}
	if k.policy.Preemptive() && p.quantumTicks.Load() >= int32(k.quantum) {
		p.quantumTicks.Store(0)
		k.Yield(p)
	}
}
