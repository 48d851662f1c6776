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
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// Syscall numbers, read out of Trapframe.A7 (spec.md §4.F, §6), grounded on
// the handler-table shape of gVisor's sys_sched.go.
const (
	SysFork = iota + 1
	SysExit
	SysWait
	SysWaitx
	SysKill
	SysSetPriority
	SysSetTickets
	SysSigAlarm
	SysSigReturn
	SysSTrace
)

// dispatchSyscall reads the syscall number and arguments out of p's
// trapframe registers (spec.md §4.F: "the syscall dispatcher reads the
// number from a7 and arguments from a0..a6"). Single-value returns go back
// into a0, the syscall return-value register; multi-value returns that the
// original copies out to a userspace pointer instead go through p.Mem's
// either_copyout path (SPEC_FULL.md §4), with the pointer arguments
// themselves carried in a1 (xstate) and, for waitx, a2 (wtime) and a3
// (rtime).
func (k *Kernel) dispatchSyscall(p *PCB) {
	k.checkpoint(p)

	tf := p.Trapframe
	num := tf.A7

	if p.StraceBit&(1<<num) != 0 {
		log.WithFields(logrus.Fields{"pid": p.PID, "syscall": num}).Info("strace")
	}

	switch num {
	case SysFork:
		pid, err := k.Fork(p)
		if err != nil {
			tf.A0 = ^uint64(0) // -1
			return
		}
		tf.A0 = uint64(pid)

	case SysExit:
		k.Exit(p, int(int32(tf.A0)))
		// Unreachable: Exit parks this goroutine for good.

	case SysWait:
		var xstate int
		pid, err := k.Wait(p, &xstate)
		if err != nil {
			tf.A0 = ^uint64(0)
			return
		}
		tf.A0 = uint64(pid)
		copyOutInt(p, uintptr(tf.A1), xstate)

	case SysWaitx:
		var xstate int
		var wtime, rtime uint64
		pid, err := k.Waitx(p, &xstate, &wtime, &rtime)
		if err != nil {
			tf.A0 = ^uint64(0)
			return
		}
		tf.A0 = uint64(pid)
		copyOutInt(p, uintptr(tf.A1), xstate)
		copyOutUint64(p, uintptr(tf.A2), wtime)
		copyOutUint64(p, uintptr(tf.A3), rtime)

	case SysKill:
		if err := k.Kill(int(tf.A0)); err != nil {
			tf.A0 = ^uint64(0)
			return
		}
		tf.A0 = 0

	case SysSetPriority:
		prev, err := k.SetPriority(p, int(tf.A0), int(tf.A1))
		if err != nil {
			tf.A0 = ^uint64(0)
			return
		}
		tf.A0 = uint64(int64(prev))

	case SysSetTickets:
		tf.A0 = uint64(int64(k.SetTickets(p, int(tf.A0))))

	case SysSigAlarm:
		k.SigAlarm(p, int(tf.A0), tf.A1)
		tf.A0 = 0

	case SysSigReturn:
		tf.A0 = k.SigReturn(p)

	case SysSTrace:
		tf.A0 = uint64(int64(k.STrace(p, tf.A0)))

	default:
		log.WithFields(logrus.Fields{"pid": p.PID, "syscall": num}).Warn("unknown syscall")
		tf.A0 = ^uint64(0)
	}
}

// copyOutInt and copyOutUint64 marshal an out-parameter through p.Mem's
// either_copyout path (SPEC_FULL.md §4) rather than a direct register write.
// A nil destination address mirrors the original's "pointer may be null,
// skip the copy" convention for optional wait() out-params.
func copyOutInt(p *PCB, addr uintptr, v int) {
	if addr == 0 {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
	if err := p.Mem.CopyOut(addr, buf[:]); err != nil {
		log.WithFields(logrus.Fields{"pid": p.PID, "addr": addr}).Warn("copyout failed")
	}
}

func copyOutUint64(p *PCB, addr uintptr, v uint64) {
	if addr == 0 {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	if err := p.Mem.CopyOut(addr, buf[:]); err != nil {
		log.WithFields(logrus.Fields{"pid": p.PID, "addr": addr}).Warn("copyout failed")
	}
}
