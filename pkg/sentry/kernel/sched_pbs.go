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

// computeDynamicPriority implements the PBS priority-boosting formula:
//
//	niceness = (sleep_time + running_time == 0) ? 5
//	          : 10 · sleep_time / (sleep_time + running_time)
//	dyn_prio = clamp(static_priority − niceness + 5, 0, 100)
func computeDynamicPriority(staticPriority int, sleepTime, runningTime uint64) int {
	var niceness int
	if sleepTime+runningTime == 0 {
		niceness = 5
	} else {
		niceness = int(10 * sleepTime / (sleepTime + runningTime))
	}
	dyn := staticPriority - niceness + 5
	if dyn < 0 {
		return 0
	}
	if dyn > 100 {
		return 100
	}
	return dyn
}

// pbsKey orders candidates by dynamic_priority (smaller wins), ties broken
// by table index.
type pbsKey struct {
	dynPrio int
	index   int
	pcb     *PCB
}

func (a pbsKey) Less(than btree.Item) bool {
	b := than.(pbsKey)
	if a.dynPrio != b.dynPrio {
		return a.dynPrio < b.dynPrio
	}
	return a.index < b.index
}

// PBS picks the RUNNABLE PCB with the smallest dynamic_priority, recomputed
// for every candidate at selection time. Timer ticks do not preempt PBS.
type PBS struct{}

func (PBS) Name() string     { return "PBS" }
func (PBS) Preemptive() bool { return false }

func (PBS) PickNext(k *Kernel) *PCB {
	bt := btree.New(8)
	k.scanRunnable(func(p *PCB) bool {
		p.DynamicPriority = computeDynamicPriority(p.StaticPriority, p.SleepTime, p.RunningTime)
		bt.ReplaceOrInsert(pbsKey{dynPrio: p.DynamicPriority, index: p.index, pcb: p})
		return true
	})
	if bt.Len() == 0 {
		return nil
	}
	winner := bt.Min().(pbsKey).pcb
	winner.mu.Lock()
	if winner.State != Runnable {
		winner.mu.Unlock()
		return nil
	}
	winner.State = Running
	// On dispatch, sleep_time is zeroed so the next niceness reflects
	// fresh behaviour.
	winner.SleepTime = 0
	return winner
}
