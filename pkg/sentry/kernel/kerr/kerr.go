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

// Package kerr holds the sentinel errors returned across the kernel/process
// syscall boundary, playing the role that pkg/errors/linuxerr plays for
// gVisor's syscall table.
package kerr

import "errors"

var (
	// ErrNoChildren is returned by Wait/Waitx when the caller has no
	// children, live or zombie.
	ErrNoChildren = errors.New("kerr: no children")

	// ErrKilled is returned by Wait/Waitx when the caller has been marked
	// killed and must not block waiting for a child.
	ErrKilled = errors.New("kerr: caller killed")

	// ErrBadAddr names a failed copyout/copyin to a user pointer. No
	// function in this module returns it: dispatchSyscall's copy-out
	// helpers log such a failure and leave a0 as already set.
	ErrBadAddr = errors.New("kerr: bad user address")

	// ErrNoSuchProcess is returned by Kill/SetPriority for an unknown pid.
	ErrNoSuchProcess = errors.New("kerr: no such process")

	// ErrTableFull is returned by alloc_proc when no UNUSED slot exists.
	ErrTableFull = errors.New("kerr: process table full")

	// ErrAllocFailed covers trapframe/page-table construction failures.
	ErrAllocFailed = errors.New("kerr: resource allocation failed")

	// ErrGrowFailed is returned by GrowProc when the address-space
	// collaborator refuses to grow or shrink the user image.
	ErrGrowFailed = errors.New("kerr: growproc failed")

	// ErrInitExiting signals the invariant violation of init() calling
	// Exit; callers must panic, never return this to a caller.
	ErrInitExiting = errors.New("kerr: init process may not exit")
)
