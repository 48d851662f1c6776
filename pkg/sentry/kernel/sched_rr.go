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

// RoundRobin is a linear scan of the table: the first RUNNABLE entry found
// runs for one quantum before the scan restarts from the top. Timer ticks
// preempt via Yield.
type RoundRobin struct{}

func (RoundRobin) Name() string     { return "RR" }
func (RoundRobin) Preemptive() bool { return true }

func (RoundRobin) PickNext(k *Kernel) *PCB {
	for _, p := range k.table {
		p.mu.Lock()
		if p.State == Runnable {
			p.State = Running
			return p
		}
		p.mu.Unlock()
	}
	return nil
}
