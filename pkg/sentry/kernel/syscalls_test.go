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
	"encoding/binary"
	"testing"

	"gotest.tools/v3/assert"
)

// TestDispatchSyscallWaitCopiesXstateToUserAddr exercises the
// either_copyout path: a reaped zombie's xstate must land in the caller's
// own simulated user memory at the address named by a1, not in a register.
func TestDispatchSyscallWaitCopiesXstateToUserAddr(t *testing.T) {
	k := newTestKernel(t, RoundRobin{})
	caller, err := k.allocProc("caller", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	caller.mu.Unlock()

	child, err := k.allocProc("child", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	child.Parent = caller
	child.State = Zombie
	child.XState = 42
	childPID := child.PID // freeProcLocked zeroes child.PID once reaped
	child.mu.Unlock()

	const xstateAddr = 0x4000
	caller.Trapframe = &Trapframe{A7: SysWait, A1: xstateAddr}
	k.dispatchSyscall(caller)

	assert.Equal(t, caller.Trapframe.A0, uint64(childPID))

	var buf [8]byte
	n, err := caller.Mem.CopyIn(xstateAddr, buf[:])
	assert.NilError(t, err)
	assert.Equal(t, n, 8)
	assert.Equal(t, int64(binary.LittleEndian.Uint64(buf[:])), int64(42))
}

// TestDispatchSyscallWaitNullAddrSkipsCopy mirrors the original's "pointer
// may be null, skip the copy" convention: a zero a1 must not panic or
// write anywhere.
func TestDispatchSyscallWaitNullAddrSkipsCopy(t *testing.T) {
	k := newTestKernel(t, RoundRobin{})
	caller, err := k.allocProc("caller", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	caller.mu.Unlock()

	child, err := k.allocProc("child", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	child.Parent = caller
	child.State = Zombie
	childPID := child.PID // freeProcLocked zeroes child.PID once reaped
	child.mu.Unlock()

	caller.Trapframe = &Trapframe{A7: SysWait, A1: 0}
	k.dispatchSyscall(caller)

	assert.Equal(t, caller.Trapframe.A0, uint64(childPID))
}

func TestDispatchSyscallUnknownSyscallSetsErrorReturn(t *testing.T) {
	k := newTestKernel(t, RoundRobin{})
	caller, err := k.allocProc("caller", func(*Kernel, *PCB) {})
	assert.NilError(t, err)
	caller.mu.Unlock()

	caller.Trapframe = &Trapframe{A7: 0xff}
	k.dispatchSyscall(caller)
	assert.Equal(t, caller.Trapframe.A0, ^uint64(0))
}
