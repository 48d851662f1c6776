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

import "github.com/google/btree"

// fcfsKey orders candidates by birth_time, ties broken by table index
// (scan order). Wrapping both fields in one btree.Item means Min() alone
// gives the correct candidate without a separate tie-break pass.
type fcfsKey struct {
	birthTime uint64
	index     int
	pcb       *PCB
}

func (a fcfsKey) Less(than btree.Item) bool {
	b := than.(fcfsKey)
	if a.birthTime != b.birthTime {
		return a.birthTime < b.birthTime
	}
	return a.index < b.index
}

// FCFS picks the RUNNABLE PCB with the smallest birth_time. Timer ticks do
// not preempt FCFS.
type FCFS struct{}

func (FCFS) Name() string     { return "FCFS" }
func (FCFS) Preemptive() bool { return false }

func (FCFS) PickNext(k *Kernel) *PCB {
	bt := btree.New(8)
	k.scanRunnable(func(p *PCB) bool {
		bt.ReplaceOrInsert(fcfsKey{birthTime: p.BirthTime, index: p.index, pcb: p})
		return true
	})
	if bt.Len() == 0 {
		return nil
	}
	winner := bt.Min().(fcfsKey).pcb
	winner.mu.Lock()
	if winner.State != Runnable {
		// Raced with another CPU or a wakeup; best-effort approximation.
		winner.mu.Unlock()
		return nil
	}
	winner.State = Running
	return winner
}
