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

// Lottery draws a ticket modulo the sum of all RUNNABLE PCBs' num_tickets
// using the xorshift-4 generator, then rescans accumulating tickets to find
// the first PCB whose cumulative total reaches the draw. Timer ticks
// preempt.
type Lottery struct {
	mu   sync.Mutex
	rng  *xorshiftState
	once sync.Once
}

func (l *Lottery) Name() string     { return "LOTTERY" }
func (l *Lottery) Preemptive() bool { return true }

func (l *Lottery) init() {
	l.once.Do(func() { l.rng = newXorshift() })
}

type lotteryCandidate struct {
	pcb     *PCB
	tickets int
}

func (l *Lottery) PickNext(k *Kernel) *PCB {
	l.init()

	var candidates []lotteryCandidate
	var total int
	k.scanRunnable(func(p *PCB) bool {
		n := p.NumTickets
		if n <= 0 {
			n = 1
		}
		candidates = append(candidates, lotteryCandidate{pcb: p, tickets: n})
		total += n
		return true
	})
	if total == 0 {
		return nil
	}

	l.mu.Lock()
	draw := l.rng.draw(uint64(total))
	l.mu.Unlock()

	var cum uint64
	for _, c := range candidates {
		cum += uint64(c.tickets)
		if cum >= draw {
			c.pcb.mu.Lock()
			if c.pcb.State != Runnable {
				c.pcb.mu.Unlock()
				return nil
			}
			c.pcb.State = Running
			return c.pcb
		}
	}
	return nil
}
