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
	"bytes"
	"context"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestSetTicketsRejectsNonPositive(t *testing.T) {
	k := newTestKernel(t, RoundRobin{})
	p, err := k.allocProc("t", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	p.mu.Unlock()

	assert.Equal(t, k.SetTickets(p, 5), 5)
	assert.Equal(t, p.NumTickets, 5)
	assert.Equal(t, k.SetTickets(p, 0), -1)
	assert.Equal(t, k.SetTickets(p, -3), -1)
}

func TestSetPriorityUnknownPidReturnsError(t *testing.T) {
	k := newTestKernel(t, PBS{})
	caller, err := k.allocProc("t", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	caller.mu.Unlock()

	_, err = k.SetPriority(caller, 10, 99999)
	assert.ErrorContains(t, err, "no such process")
}

// TestSetPriorityReturnsPreviousValue drives the call through a live
// scheduler rather than calling it on a bare, undispatched PCB: SetPriority
// yields the caller unconditionally (matching the original's set_priority(),
// see introspect.go), and Yield's channel handshake needs a CPU.dispatch
// goroutine on the other end to receive it.
func TestSetPriorityReturnsPreviousValue(t *testing.T) {
	k := newTestKernel(t, PBS{})
	done := make(chan int, 1)

	workload := func(kk *Kernel, p *PCB) {
		prev, err := kk.SetPriority(p, 20, p.PID)
		assert.NilError(t, err)
		done <- prev
		// Real init never returns; falling off the end here would hit
		// Exit's init-may-not-exit panic.
		select {}
	}

	p, err := k.UserInit(workload)
	assert.NilError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go k.Run(ctx)

	select {
	case prev := <-done:
		assert.Equal(t, prev, k.defaultStaticPriority)
		assert.Equal(t, p.StaticPriority, 20)
	case <-ctx.Done():
		t.Fatal("timed out waiting for SetPriority to run")
	}
}

func TestProcDumpSkipsUnusedAndReportsChan(t *testing.T) {
	k := newTestKernel(t, RoundRobin{})
	p, err := k.allocProc("shell", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	p.State = Sleeping
	p.Chan = 0xcafe
	p.mu.Unlock()

	var buf bytes.Buffer
	k.ProcDump(&buf)
	out := buf.String()
	assert.Assert(t, bytes.Contains([]byte(out), []byte("shell")))
	assert.Assert(t, bytes.Contains([]byte(out), []byte("SLEEPING")))
	assert.Assert(t, bytes.Contains([]byte(out), []byte("chan=0xcafe")))
}
