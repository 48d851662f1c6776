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

package main

import (
	"sync"

	"github.com/xv6go/kernel/pkg/sentry/kernel"
)

// demoInit is the init workload: forks a handful of children, then reaps
// them all. A forked child's PCB reuses this same workload closure (fork
// has no exec() to hand control to next, spec.md §4.C), so the closure
// tells root from child with a one-shot flag: whichever PCB runs it first
// is root and does the forking; every child just falls off the end of the
// closure, which taskLoop turns into exit(0).
func demoInit(children int, done chan<- struct{}) func(k *kernel.Kernel, p *kernel.PCB) {
	var mu sync.Mutex
	rootTaken := false

	return func(k *kernel.Kernel, p *kernel.PCB) {
		mu.Lock()
		isRoot := !rootTaken
		rootTaken = true
		mu.Unlock()
		if !isRoot {
			return
		}

		for i := 0; i < children; i++ {
			if _, err := k.Fork(p); err != nil {
				log.WithError(err).Warn("demo fork failed")
			}
		}
		for i := 0; i < children; i++ {
			var xstate int
			if _, err := k.Wait(p, &xstate); err != nil {
				break
			}
		}
		close(done)
		// Real init never returns (xv6's `for(;;) wait(...)`); falling off
		// the end here would hit Exit's init-may-not-exit panic.
		select {}
	}
}
