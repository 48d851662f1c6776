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
	"testing"

	"gotest.tools/v3/assert"
)

// makeRunnable allocates a bare PCB directly in the table (bypassing
// UserInit/Fork, whose workload machinery this test doesn't need) and
// marks it RUNNABLE with the given birth time.
func makeRunnable(t *testing.T, k *Kernel, birth uint64) *PCB {
	t.Helper()
	p, err := k.allocProc("t", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	p.BirthTime = birth
	p.State = Runnable
	p.mu.Unlock()
	return p
}

func TestFCFSPicksEarliestBirthTime(t *testing.T) {
	k := newTestKernel(t, FCFS{})
	_ = makeRunnable(t, k, 30)
	mid := makeRunnable(t, k, 10)
	_ = makeRunnable(t, k, 20)

	winner := FCFS{}.PickNext(k)
	assert.Assert(t, winner != nil)
	assert.Equal(t, winner.PID, mid.PID)
	winner.mu.Unlock()
}

func TestFCFSTiesBrokenByTableIndex(t *testing.T) {
	k := newTestKernel(t, FCFS{})
	first := makeRunnable(t, k, 5)
	_ = makeRunnable(t, k, 5)

	winner := FCFS{}.PickNext(k)
	assert.Assert(t, winner != nil)
	assert.Equal(t, winner.PID, first.PID)
	winner.mu.Unlock()
}

func TestRoundRobinPicksFirstRunnable(t *testing.T) {
	k := newTestKernel(t, RoundRobin{})
	skip, err := k.allocProc("skip", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	skip.mu.Unlock() // leave the first slot USED (not runnable)

	second := makeRunnable(t, k, 0)

	winner := RoundRobin{}.PickNext(k)
	assert.Assert(t, winner != nil)
	assert.Equal(t, winner.PID, second.PID)
	winner.mu.Unlock()
}

func TestPBSPrefersSmallestDynamicPriority(t *testing.T) {
	k := newTestKernel(t, PBS{})
	lazy := makeRunnable(t, k, 0)
	lazy.StaticPriority = 80

	busy := makeRunnable(t, k, 0)
	busy.StaticPriority = 10

	winner := PBS{}.PickNext(k)
	assert.Assert(t, winner != nil)
	assert.Equal(t, winner.PID, busy.PID)
	winner.mu.Unlock()
}

func TestComputeDynamicPriorityClampsAndDefaultsNiceness(t *testing.T) {
	// No sleep/running time yet: niceness defaults to 5.
	assert.Equal(t, computeDynamicPriority(60, 0, 0), 60)
	// All sleep, no running time: niceness saturates at 10.
	assert.Equal(t, computeDynamicPriority(0, 100, 0), 0)
	// Dynamic priority never exceeds 100.
	assert.Equal(t, computeDynamicPriority(100, 0, 100), 100)
}

func TestCPUCurrentPanicsWithInterruptsEnabled(t *testing.T) {
	defer func() {
		r := recover()
		assert.Assert(t, r != nil)
	}()
	cpu := &CPU{id: 0}
	cpu.intEna.Store(true)
	cpu.Current()
	t.Fatal("expected panic")
}

func TestCPUCurrentReturnsStoredPCBWithInterruptsDisabled(t *testing.T) {
	cpu := &CPU{id: 0}
	p := &PCB{PID: 7}
	cpu.current.Store(p)
	got := cpu.Current()
	assert.Equal(t, got.PID, 7)
}

func TestLotteryPicksAmongTicketHolders(t *testing.T) {
	k := newTestKernel(t, &Lottery{})
	a := makeRunnable(t, k, 0)
	a.NumTickets = 1
	b := makeRunnable(t, k, 0)
	b.NumTickets = 1

	l := &Lottery{}
	winner := l.PickNext(k)
	assert.Assert(t, winner != nil)
	assert.Assert(t, winner.PID == a.PID || winner.PID == b.PID)
	winner.mu.Unlock()
}
