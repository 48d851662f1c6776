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

// SigAlarm implements the sigalarm(interval, handler) syscall (spec.md
// §4.G): arms a periodic user-handler invocation every interval ticks.
func (k *Kernel) SigAlarm(p *PCB, interval int, handler uint64) {
	p.NumTicks = interval
	p.CurrTicks = 0
	p.SigHandler = handler
}

// alarmTick is called on every timer tick observed in UserTrap (spec.md
// §4.G). While alarm_is_set, no further handler invocation occurs
// regardless of tick count — the re-entrancy guard spec.md §8 requires.
func (k *Kernel) alarmTick(p *PCB) {
	if p.NumTicks <= 0 {
		return
	}
	p.CurrTicks++
	if p.AlarmIsSet {
		return
	}
	if p.CurrTicks < p.NumTicks {
		return
	}

	p.TrapframeCopy = p.Trapframe.Clone()
	p.Trapframe.Epc = p.SigHandler
	p.AlarmIsSet = true
	p.CurrTicks = 0
}

// SigReturn implements the sigreturn() syscall (spec.md §4.G): restores the
// live trapframe from the snapshot taken when the handler was dispatched,
// and clears the re-entrancy guard so the alarm can fire again.
func (k *Kernel) SigReturn(p *PCB) uint64 {
	ret := p.TrapframeCopy.A0
	p.Trapframe = p.TrapframeCopy.Clone()
	p.AlarmIsSet = false
	return ret
}
