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
	"fmt"
	"io"

	"github.com/xv6go/kernel/pkg/sentry/kernel/kerr"
)

// STrace sets the caller's strace_bit bitmask (spec.md §4.H). The syscall
// dispatcher consults it and logs one "strace" line (pid and syscall
// number) for each syscall whose bit is set.
func (k *Kernel) STrace(caller *PCB, mask uint64) int {
	caller.StraceBit = mask
	return 0
}

// SetTickets sets the caller's lottery weight (spec.md §4.H).
func (k *Kernel) SetTickets(caller *PCB, n int) int {
	if n <= 0 {
		return -1
	}
	caller.NumTickets = n
	return n
}

// SetPriority replaces target pid's static_priority, recomputes its
// dynamic_priority, and yields the caller (spec.md §4.E/§4.H). Grounded on
// original_source/kernel/proc.c's set_priority(), which calls yield()
// unconditionally at the end regardless of whether target is the caller or
// whether the new priority actually beats anything runnable. Returns the
// previous static_priority.
func (k *Kernel) SetPriority(caller *PCB, newPriority, pid int) (int, error) {
	var target *PCB
	for _, p := range k.table {
		if p.PID == pid && p.State != Unused {
			target = p
			break
		}
	}
	if target == nil {
		log.Warnf("set_priority: unknown pid %d", pid)
		return -1, kerr.ErrNoSuchProcess
	}

	// caller.mu is already held on the caller's behalf while it runs (see
	// CPU.dispatch), so only another PCB's lock is taken here.
	if target != caller {
		target.mu.Lock()
	}
	prev := target.StaticPriority
	target.StaticPriority = newPriority
	target.DynamicPriority = computeDynamicPriority(newPriority, target.SleepTime, target.RunningTime)
	if target != caller {
		target.mu.Unlock()
	}

	k.Yield(caller)
	return prev, nil
}

// ProcDump is a best-effort console listing that takes no locks (spec.md
// §4.H/§6: "intended for a wedged system"), printing one line per
// non-UNUSED PCB: "<pid> <state-string> <name>", with the sleep channel's
// address appended when known (SPEC_FULL.md §4).
func (k *Kernel) ProcDump(w io.Writer) {
	for _, p := range k.table {
		if p.State == Unused {
			continue
		}
		if p.State == Sleeping && p.Chan != 0 {
			fmt.Fprintf(w, "%d %s %s chan=%#x\n", p.PID, p.State, p.Name, p.Chan)
			continue
		}
		fmt.Fprintf(w, "%d %s %s\n", p.PID, p.State, p.Name)
	}
}
