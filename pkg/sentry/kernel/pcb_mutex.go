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

// pcbMutex is the per-PCB spinlock from spec.md §3/§5 ("Per-PCB spinlock
// p.lock: guards all mutable PCB state"). It is a thin sync.Mutex wrapper
// in the shape gVisor generates for every struct that needs one (see
// thread_group_timer_mutex.go in the gvisor-ligolo tree): a plain Lock/
// Unlock pair plus Nested variants for taking a second PCB's lock while one
// is already held. Nothing in this package calls the Nested variants: the
// reparent scan, which holds the exiting PCB's lock, uses plain Lock.
type pcbMutex struct {
	mu sync.Mutex
}

// Lock locks m.
func (m *pcbMutex) Lock() {
	m.mu.Lock()
}

// NestedLock locks m knowing that another PCB's lock is already held by the
// caller, e.g. wait_lock callers scanning for reparent targets.
func (m *pcbMutex) NestedLock() {
	m.mu.Lock()
}

// Unlock unlocks m.
func (m *pcbMutex) Unlock() {
	m.mu.Unlock()
}

// NestedUnlock unlocks m, the counterpart of NestedLock.
func (m *pcbMutex) NestedUnlock() {
	m.mu.Unlock()
}
