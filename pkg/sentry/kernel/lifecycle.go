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
	"github.com/sirupsen/logrus"

	"github.com/xv6go/kernel/pkg/sentry/external"
	"github.com/xv6go/kernel/pkg/sentry/kernel/kerr"
)

// UserInit constructs the first user process from workload, the Go stand-in
// for "a small embedded code image". Runs once at boot.
func (k *Kernel) UserInit(workload func(k *Kernel, p *PCB)) (*PCB, error) {
	p, err := k.allocProc("init", workload)
	if err != nil {
		return nil, err
	}
	p.Sz = external.PageSize
	p.Trapframe.Epc = 0
	p.Trapframe.Sp = uint64(external.PageSize)
	p.Cwd = "/"
	p.State = Runnable
	p.mu.Unlock()
	k.initProc = p
	log.WithField("pid", p.PID).Info("userinit")
	return p, nil
}

// GrowProc grows or shrinks the caller's user memory by n bytes. Returns
// the new size, or an error if the address-space collaborator refuses.
func (k *Kernel) GrowProc(p *PCB, n int) (int, error) {
	k.checkpoint(p)
	newSz, err := p.AS.Resize(p.Sz, p.Sz+n)
	if err != nil {
		return 0, kerr.ErrGrowFailed
	}
	p.Sz = newSz
	return newSz, nil
}

// Fork allocates a child PCB, copies the parent's user memory and
// trapframe, duplicates open files and cwd, and makes the child RUNNABLE.
// Returns the child's pid; the child itself observes 0 via
// its own Trapframe.A0 once scheduled, matching fork(2)'s two-return-value
// contract.
func (k *Kernel) Fork(parent *PCB) (int, error) {
	k.checkpoint(parent)

	child, err := k.allocProc(parent.Name, parent.workload)
	if err != nil {
		return -1, err
	}

	as, err := parent.AS.Clone(parent.Sz, 0)
	if err != nil {
		k.freeProcLocked(child)
		child.mu.Unlock()
		return -1, kerr.ErrAllocFailed
	}
	child.AS.Destroy()
	child.AS = as
	child.Sz = parent.Sz

	child.Trapframe = parent.Trapframe.Clone()
	child.Trapframe.A0 = 0 // child's fork() return value

	child.Files = append([]*OpenFile(nil), parent.Files...)
	child.Cwd = parent.Cwd

	// `np->num_tickets = np->num_tickets` in the original is a no-op that
	// was evidently meant to copy from the parent. Decided not to silently
	// "correct" the bug without flagging it: lottery weight IS inheritable
	// here.
	child.NumTickets = parent.NumTickets
	child.StaticPriority = parent.StaticPriority
	child.DynamicPriority = parent.DynamicPriority

	k.waitLock.Lock()
	child.Parent = parent
	k.waitLock.Unlock()

	child.State = Runnable
	child.mu.Unlock()

	log.WithFields(logrus.Fields{"parent": parent.PID, "child": child.PID}).Debug("fork")
	return child.PID, nil
}

// Exit is forbidden for the init process (panic). It
// reparents children to init, wakes the caller's parent, marks the PCB a
// ZOMBIE, and hands control to the scheduler. p.mu is already held on this
// goroutine's behalf for the duration of its RUNNING period (see
// CPU.dispatch); Exit must not re-lock it.
func (k *Kernel) Exit(p *PCB, status int) {
	if p == k.initProc {
		log.WithField("pid", p.PID).Error("init process exiting")
		panic(kerr.ErrInitExiting)
	}

	// Close open files and release cwd — the file-system collaborator is a
	// black box; here that's just dropping our references.
	p.Files = nil
	p.Cwd = ""

	k.waitLock.Lock()
	k.reparentLocked(p)
	if p.Parent != nil {
		p.Parent.mu.Lock()
		wakeupLocked(k, p.Parent, p.Parent.chanAddr())
		p.Parent.mu.Unlock()
	}
	k.waitLock.Unlock()

	p.XState = status
	p.State = Zombie
	p.Etime = k.now()

	log.WithFields(logrus.Fields{"pid": p.PID, "status": status}).Debug("exit")
	p.parkCh <- struct{}{}
	// Never resumes: a ZOMBIE is never picked by any Policy.
}

// reparentLocked retargets p's children to init and wakes init for each.
// Caller must hold k.waitLock.
func (k *Kernel) reparentLocked(p *PCB) {
	for _, c := range k.table {
		if c == p {
			// p is never its own child, and p.mu is already held on its
			// behalf (see Exit).
			continue
		}
		c.mu.Lock()
		reparented := c.Parent == p
		if reparented {
			c.Parent = k.initProc
		}
		c.mu.Unlock()
		if reparented {
			// Lock init directly rather than rescanning the whole table;
			// this must happen after c.mu is released above.
			k.initProc.mu.Lock()
			wakeupLocked(k, k.initProc, k.initProc.chanAddr())
			k.initProc.mu.Unlock()
		}
	}
}

// Wait scans for a ZOMBIE child; if found, copies its xstate out (the
// caller supplies a pointer-like sink), reclaims the slot, and returns its
// pid. If the caller has no children or is killed, returns an error rather
// than sleeping forever.
func (k *Kernel) Wait(caller *PCB, xstate *int) (int, error) {
	return k.wait(caller, xstate, nil, nil)
}

// Waitx additionally reports the reaped child's cumulative runtime and its
// wait time (etime - ctime - rtime).
func (k *Kernel) Waitx(caller *PCB, xstate *int, wtime, rtime *uint64) (int, error) {
	return k.wait(caller, xstate, wtime, rtime)
}

func (k *Kernel) wait(caller *PCB, xstate *int, wtime, rtime *uint64) (int, error) {
	k.checkpoint(caller)

	k.waitLock.Lock()
	for {
		haveChildren := false
		for _, c := range k.table {
			if c == caller {
				// Never its own child; caller.mu may already be held on
				// its behalf (see CPU.dispatch).
				continue
			}
			c.mu.Lock()
			if c.Parent != caller {
				c.mu.Unlock()
				continue
			}
			haveChildren = true
			if c.State != Zombie {
				c.mu.Unlock()
				continue
			}

			pid := c.PID
			if xstate != nil {
				*xstate = c.XState
			}
			if rtime != nil {
				*rtime = c.Rtime
			}
			if wtime != nil {
				*wtime = c.Etime - c.Ctime - c.Rtime
			}
			k.freeProcLocked(c)
			c.mu.Unlock()
			k.waitLock.Unlock()
			return pid, nil
		}

		if !haveChildren {
			k.waitLock.Unlock()
			return -1, kerr.ErrNoChildren
		}
		if caller.Killed {
			k.waitLock.Unlock()
			return -1, kerr.ErrKilled
		}

		// Sleep on the caller's own address using wait_lock as the
		// serializing external lock. Sleep releases k.waitLock and
		// re-acquires it before returning, so the loop above re-enters
		// still holding it.
		k.Sleep(caller, caller.chanAddr(), &k.waitLock)
	}
}

// Kill sets the sticky killed flag; if the target is SLEEPING it is
// promoted to RUNNABLE so it observes the flag at the next user-mode
// boundary.
func (k *Kernel) Kill(pid int) error {
	for _, p := range k.table {
		p.mu.Lock()
		if p.PID == pid && p.State != Unused {
			p.Killed = true
			if p.State == Sleeping {
				p.State = Runnable
			}
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()
	}
	return kerr.ErrNoSuchProcess
}
