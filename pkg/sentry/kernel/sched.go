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
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Policy picks which RUNNABLE process runs next: pick_next(&table) ->
// Option<Index>, chosen once at boot as a compile-time selector. Exactly
// one Policy is active per Kernel.
type Policy interface {
	// Name identifies the policy for logging/introspection.
	Name() string
	// PickNext scans k.table and returns a RUNNABLE PCB with its lock held
	// and state already set to Running, or nil if none is runnable.
	PickNext(k *Kernel) *PCB
	// Preemptive reports whether a timer tick should call Yield on the
	// currently running process under this policy: RR and Lottery preempt,
	// FCFS and PBS do not.
	Preemptive() bool
}

// CPU is one hart: a goroutine running the scheduler loop. Modeled as a
// goroutine rather than a real core.
type CPU struct {
	id      int
	k       *Kernel
	current atomic.Pointer[PCB]
	intEna  atomic.Bool
}

// Current returns the PCB this CPU is running, or nil: current_process()
// returns the unique RUNNING PCB or null. Grounded on xv6's mycpu()/
// myproc(), which assert interrupts are off before trusting which hart is
// asking: calling this with interrupts enabled means the goroutine could
// be rescheduled to a different hart between the check and the read, so
// it panics instead of returning a stale answer.
func (c *CPU) Current() *PCB {
	if c.intEna.Load() {
		panic("CPU.Current: called with interrupts enabled")
	}
	return c.current.Load()
}

// harts caps concurrently-running CPU loop goroutines at NCPU, the
// semaphore.Weighted stand-in for "one hart, one scheduler loop" running
// in true parallel.
func (k *Kernel) harts() *semaphore.Weighted {
	return semaphore.NewWeighted(int64(len(k.cpus)))
}

// Run starts every CPU's scheduler loop and blocks until ctx is canceled.
// Each loop enables interrupts, consults the active Policy, and performs
// the context switch: on each iteration it enables interrupts, invokes
// the policy-selected picker, and resumes.
func (k *Kernel) Run(ctx context.Context) {
	sem := k.harts()
	for _, cpu := range k.cpus {
		cpu := cpu
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func() {
			defer sem.Release(1)
			cpu.loop(ctx)
		}()
	}
	<-ctx.Done()
}

func (cpu *CPU) loop(ctx context.Context) {
	k := cpu.k
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		cpu.intEna.Store(true)

		p := k.policy.PickNext(k)
		if p == nil {
			time.Sleep(time.Millisecond)
			continue
		}
		cpu.dispatch(p)
	}
}

// dispatch performs the context switch: assign p to this CPU, hand it the
// CPU by signaling resumeCh, and block until p relinquishes control via
// parkCh (sleep/yield/exit), at which point p's lock — held continuously
// since PickNext finalized the selection — is released, upon the PCB
// eventually yielding back.
func (cpu *CPU) dispatch(p *PCB) {
	cpu.current.Store(p)
	p.quantumTicks.Store(0)
	p.resumeCh <- struct{}{}
	<-p.parkCh
	cpu.current.Store(nil)
	p.mu.Unlock()
}

// Yield gives up the CPU for one scheduling round without sleeping on any
// channel: RUNNING -> RUNNABLE, then park until rescheduled. Called by
// UserTrap/KernelTrap on a timer tick under a preemptive policy, and by a
// process that voluntarily wants to let others run.
func (k *Kernel) Yield(p *PCB) {
	p.State = Runnable
	p.parkCh <- struct{}{}
	<-p.resumeCh
}

// scanRunnable calls fn for every PCB currently RUNNABLE, taking and
// releasing that PCB's lock around the call — never holding two PCB locks
// at once: no two p.locks held simultaneously. fn must
// return false to stop early (used once a winner cannot be beaten).
func (k *Kernel) scanRunnable(fn func(p *PCB) (keepGoing bool)) {
	for _, p := range k.table {
		p.mu.Lock()
		st := p.State
		if st == Runnable {
			cont := fn(p)
			p.mu.Unlock()
			if !cont {
				return
			}
			continue
		}
		p.mu.Unlock()
	}
}
