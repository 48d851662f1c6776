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

// Package kernel implements the process table, lifecycle, sleep/wakeup,
// schedulers, trap handlers, and signal/alarm facility of a teaching-grade
// RISC-V-like kernel. One PCB per table slot with its own spinlock
// (pcbMutex), a Task-like goroutine-per-process execution model, and a
// syscall dispatch shape lifted from gVisor's sys_sched.go.
package kernel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"

	"github.com/xv6go/kernel/pkg/sentry/external"
	"github.com/xv6go/kernel/pkg/sentry/kernel/kerr"
)

// ProcState is the PCB state machine: UNUSED, USED, SLEEPING, RUNNABLE,
// RUNNING, ZOMBIE.
type ProcState int

const (
	Unused ProcState = iota
	Used
	Sleeping
	Runnable
	Running
	Zombie
)

func (s ProcState) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Used:
		return "USED"
	case Sleeping:
		return "SLEEPING"
	case Runnable:
		return "RUNNABLE"
	case Running:
		return "RUNNING"
	case Zombie:
		return "ZOMBIE"
	default:
		return fmt.Sprintf("ProcState(%d)", int(s))
	}
}

// Trapframe is the user-register save area mapped into each process's own
// address space. Only the fields this kernel's syscalls
// and the alarm facility actually touch are modeled; everything else is a
// generic callee/caller-saved slot, the way xv6's trapframe carries the
// full RISC-V register file but most fields are opaque to the C scheduler.
type Trapframe struct {
	Epc  uint64 // program counter at trap entry / resume
	Sp   uint64 // user stack pointer
	A0   uint64 // argument 0 / return value register
	A1   uint64
	A2   uint64
	A3   uint64
	A4   uint64
	A5   uint64
	A6   uint64
	A7   uint64 // syscall number
	Regs [16]uint64
}

// Clone returns a deep copy of f, grounded on the C fork's
// memmove(np->trapframe, p->trapframe, PGSIZE).
func (f *Trapframe) Clone() *Trapframe {
	return deepcopy.Copy(f).(*Trapframe)
}

// OpenFile is a simplified stand-in for a struct file* slot; the real file
// table (fileclose/filedup/idup/iput/namei) is an external black-box
// collaborator.
type OpenFile struct {
	Path string
}

// PCB is one process control block.
type PCB struct {
	mu pcbMutex

	// index is this PCB's fixed slot in Kernel.table, used as the scan-order
	// tiebreaker by FCFS and PBS.
	index int

	// Identity.
	PID    int
	Name   string
	Parent *PCB

	// Scheduling state. Mutations require holding mu.
	State  ProcState
	Chan   uintptr
	XState int
	Killed bool

	// Execution context.
	KStack        uintptr
	Trapframe     *Trapframe
	TrapframeCopy *Trapframe
	resumeCh      chan struct{}
	parkCh        chan struct{}
	workload      func(k *Kernel, p *PCB)

	// Address space.
	AS    external.AddressSpace
	Mem   external.UserMemory
	Sz    int
	Files []*OpenFile
	Cwd   string

	// Accounting, in ticks.
	BirthTime   uint64
	Ctime       uint64
	Rtime       uint64
	Etime       uint64
	SleepStart  uint64
	SleepTime   uint64
	RunningTime uint64

	// Policy parameters.
	NumTickets      int
	StaticPriority  int
	DynamicPriority int
	ProcQueue       int

	// Signal/alarm.
	NumTicks   int
	CurrTicks  int
	AlarmIsSet bool
	SigHandler uint64

	// Introspection.
	StraceBit uint64

	// quantumTicks counts ticks observed by ClockIntr since this PCB's last
	// dispatch; pendingTicks counts ticks not yet drained into the alarm
	// facility. Both are written lock-free by ClockIntr while p is RUNNING
	// (see trap.go's ClockIntr) and drained by checkpoint at the next kernel
	// reentry, so they're atomics rather than plain fields guarded by mu.
	quantumTicks atomic.Int32
	pendingTicks atomic.Int32
}

// chanAddr returns the opaque wait-channel identity of p's own PCB address,
// used by Wait, which sleeps on the caller's own PCB address. Any address
// is a valid channel identity; the PCB's own pointer value is the natural
// one, exactly as &p serves as wchan in xv6.
func (p *PCB) chanAddr() uintptr {
	return uintptr(unsafe.Pointer(p))
}

var log = logrus.WithField("component", "kernel")

// Kernel is the single top-level process table and scheduling singleton: a
// single kernel value constructed once, with interior-mutable fields
// guarded by their own locks rather than one global lock.
type Kernel struct {
	table    []*PCB
	alloc    external.PageAllocator
	ticks    external.Ticks
	policy   Policy
	cpus     []*CPU
	nproc    int
	quantum  int

	defaultStaticPriority int
	defaultTickets        int

	pidLock  sync.Mutex
	nextPID  int

	waitLock sync.Mutex

	ticksLock sync.Mutex
	tickCount uint64

	initProc *PCB
}

// NewKernel constructs a Kernel with an empty, fully UNUSED process table of
// size nproc, using alloc for page frames and ticks as the monotonic
// clock. defaultStaticPriority and defaultTickets seed every
// PCB.StaticPriority/NumTickets at allocation (config.Boot.
// DefaultStaticPriority/DefaultTickets).
func NewKernel(nproc, ncpu int, policy Policy, quantum int, defaultStaticPriority, defaultTickets int, alloc external.PageAllocator, ticks external.Ticks) *Kernel {
	k := &Kernel{
		table:                 make([]*PCB, nproc),
		alloc:                 alloc,
		ticks:                 ticks,
		policy:                policy,
		nproc:                 nproc,
		quantum:               quantum,
		defaultStaticPriority: defaultStaticPriority,
		defaultTickets:        defaultTickets,
		nextPID:               1,
	}
	for i := range k.table {
		p := &PCB{index: i, State: Unused}
		k.table[i] = p
	}
	k.cpus = make([]*CPU, ncpu)
	for i := range k.cpus {
		k.cpus[i] = &CPU{id: i, k: k}
	}
	return k
}

// allocPID assigns the next monotonically increasing pid, guarded by
// pid_lock.
func (k *Kernel) allocPID() int {
	k.pidLock.Lock()
	defer k.pidLock.Unlock()
	pid := k.nextPID
	k.nextPID++
	return pid
}

// now returns the current tick count.
func (k *Kernel) now() uint64 {
	if k.ticks != nil {
		return k.ticks.Now()
	}
	k.ticksLock.Lock()
	defer k.ticksLock.Unlock()
	return k.tickCount
}

// allocProc scans for an UNUSED slot and returns it USED, with its lock
// held. Returning the PCB with its lock still held is the contract: the
// caller releases it once the PCB is safe to schedule.
func (k *Kernel) allocProc(name string, workload func(k *Kernel, p *PCB)) (*PCB, error) {
	for _, p := range k.table {
		running := false
		for _, cpu := range k.cpus {
			if cpu.current.Load() == p {
				running = true
			}
		}
		if running {
			// A PCB some CPU is running is never UNUSED, and its lock is
			// held for its whole RUNNING period (see CPU.dispatch).
			continue
		}
		p.mu.Lock()
		if p.State != Unused {
			p.mu.Unlock()
			continue
		}

		p.PID = k.allocPID()
		p.State = Used
		p.Name = name
		p.Killed = false
		p.XState = 0
		p.Chan = 0

		frame, err := k.alloc.AllocPage()
		if err != nil {
			k.freeProcLocked(p)
			p.mu.Unlock()
			return nil, kerr.ErrAllocFailed
		}
		as, err := external.NewAddressSpace(k.alloc, frame)
		if err != nil {
			k.alloc.FreePage(frame)
			k.freeProcLocked(p)
			p.mu.Unlock()
			return nil, kerr.ErrAllocFailed
		}

		p.Trapframe = &Trapframe{}
		p.TrapframeCopy = &Trapframe{}
		p.AS = as
		p.Mem = external.NewSimUserMemory()
		p.KStack = uintptr(0x8000_0000) + uintptr(p.index)*uintptr(external.PageSize)
		p.Sz = 0
		p.NumTickets = k.defaultTickets
		p.StaticPriority = k.defaultStaticPriority
		p.DynamicPriority = k.defaultStaticPriority
		p.Ctime = k.now()
		p.BirthTime = p.Ctime
		p.Rtime = 0
		p.Etime = 0
		p.SleepStart = 0
		p.SleepTime = 0
		p.RunningTime = 0
		p.NumTicks = 0
		p.CurrTicks = 0
		p.AlarmIsSet = false
		p.StraceBit = 0
		p.resumeCh = make(chan struct{})
		p.parkCh = make(chan struct{})
		p.workload = workload

		// Start the task goroutine now; it blocks on resumeCh until the
		// scheduler first dispatches it, which is this kernel's forkret
		// equivalent: the saved context is set up so the first context
		// switch enters a post-fork return routine.
		go p.taskLoop(k)

		log.WithFields(logrus.Fields{"pid": p.PID, "name": name}).Debug("allocated process")
		return p, nil
	}
	return nil, kerr.ErrTableFull
}

// freeProcLocked resets p to UNUSED and releases its resources. Caller must
// hold p.mu. An UNUSED slot owns no trapframe/page table.
func (k *Kernel) freeProcLocked(p *PCB) {
	p.PID = 0
	p.Name = ""
	p.Parent = nil
	p.Chan = 0
	p.XState = 0
	p.Killed = false
	if p.AS != nil {
		p.AS.Destroy()
		p.AS = nil
	}
	p.Trapframe = nil
	p.TrapframeCopy = nil
	p.Mem = nil
	p.Files = nil
	p.Cwd = ""
	p.workload = nil
	p.State = Unused
}

// taskLoop is the process's own goroutine: the Go-idiomatic rendition of a
// kernel stack that alternates between "parked in the scheduler" and
// "running the process's code". The scheduler's dispatch holds p.mu for
// the entire time this goroutine is
// permitted to run, exactly mirroring xv6's single flow of control holding
// p->lock continuously across the acquire/swtch pair in sleep()/sched()
// and the release(&p->lock) immediately after swtch returns in scheduler().
func (p *PCB) taskLoop(k *Kernel) {
	<-p.resumeCh
	if p.workload != nil {
		p.workload(k, p)
	}
	// A workload that returns without calling Exit behaves as if it fell
	// off the end of main: exit(0), matching a user process returning from
	// its entry point. p.mu is already held on this goroutine's behalf by
	// the dispatching CPU (see CPU.dispatch), so Exit must not re-lock it.
	k.Exit(p, 0)
}
