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

import "sync"

// Sleep atomically releases external and suspends the caller on chanAddr
// (spec.md §4.D). p.mu is already held on this goroutine's behalf for the
// duration of its RUNNING period (see CPU.dispatch) — this is the "acquire
// the caller's PCB lock" half of the spec's sequence, already satisfied
// before Sleep is ever called, so Sleep releases external next:
//
//	release external_lock
//	record sleep_start if not already sleeping
//	set chan and state = SLEEPING
//	hand control to the scheduler (park)
//	... time passes, a wakeup() call promotes this PCB to RUNNABLE ...
//	resume here once rescheduled
//	clear chan
//	re-acquire external_lock
//
// The invariant that makes this race-free: any thread that will wake
// chanAddr must itself acquire this PCB's lock (see wakeup/wakeupLocked
// below); since the sleeper's lock is held continuously from before this
// call until the park send below, no wakeup can slip through between the
// state transition and the park.
func (k *Kernel) Sleep(p *PCB, chanAddr uintptr, external sync.Locker) {
	external.Unlock()

	if p.State != Sleeping {
		p.SleepStart = k.now()
	}
	p.Chan = chanAddr
	p.State = Sleeping

	p.parkCh <- struct{}{}
	<-p.resumeCh

	p.Chan = 0
	external.Lock()
}

// wakeup scans the table, skipping caller (spec.md §4.D: "to prevent
// self-deadlock when a waker happens to be the channel's current holder"),
// and promotes every SLEEPING match to RUNNABLE, accumulating sleep_time.
func (k *Kernel) wakeup(chanAddr uintptr, caller *PCB) {
	for _, p := range k.table {
		if p == caller {
			continue
		}
		p.mu.Lock()
		if p.State == Sleeping && p.Chan == chanAddr {
			p.SleepTime += k.now() - p.SleepStart
			p.State = Runnable
		}
		p.mu.Unlock()
	}
}

// Wakeup is the public entry point for wakeup(chan) from spec.md §4.D,
// usable by callers outside the kernel package (e.g. ClockIntr waking
// &ticks) that are not themselves a PCB.
func (k *Kernel) Wakeup(chanAddr uintptr) {
	k.wakeup(chanAddr, nil)
}

// wakeupLocked promotes a single already-identified PCB if it is sleeping
// on chanAddr, used when the waker already holds p's lock and knows exactly
// which PCB to target (the original xv6 wakeup1, reinstated per
// SPEC_FULL.md §4). Caller must hold p.mu.
func wakeupLocked(k *Kernel, p *PCB, chanAddr uintptr) {
	if p.State == Sleeping && p.Chan == chanAddr {
		p.SleepTime += k.now() - p.SleepStart
		p.State = Runnable
	}
}
