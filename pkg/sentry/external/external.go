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

// Package external declares the black-box collaborators that the process
// and scheduling core consumes but does not implement: the physical page
// allocator, the per-process page table, the monotonic tick source, and
// user-memory copy-in/copy-out (spec.md §1, "Out of scope"). This package
// also provides small in-memory simulations of the page allocator, the page
// table and user memory, so the kernel package is independently testable
// without a real allocator wired in. It declares no file-system journal and
// no simulated tick source.
package external

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// PageSize is the simulated hardware page size. Grounded on
// ja7ad-consumption/pkg/system/proc.PageSize, which falls back to the host
// page size the same way.
var PageSize = unix.Getpagesize()

// Frame is an opaque physical page frame handle.
type Frame uintptr

// PageAllocator is the physical page allocator collaborator:
// allocate_page()/free_page(frame) from spec.md §1.
type PageAllocator interface {
	AllocPage() (Frame, error)
	FreePage(Frame)
}

// Perm is a page permission bitmask.
type Perm int

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
	PermUser
)

// AddressSpace is a per-process page table handle: create/copy/map/grow the
// user page table (spec.md §1, §4.B).
type AddressSpace interface {
	// MapPage maps va to pa with the given permissions.
	MapPage(va uintptr, pa Frame, perms Perm) error
	// Unmap removes the mapping at va without freeing the backing frame.
	Unmap(va uintptr)
	// Grow or shrink the user image from oldSz to newSz bytes. Returns the
	// new size, or an error if the collaborator refused.
	Resize(oldSz, newSz int) (int, error)
	// Destroy tears down the whole address space, freeing user memory but
	// not TRAMPOLINE/TRAPFRAME (kernel-owned, spec.md §4.B).
	Destroy()
	// Clone duplicates sz bytes of user memory into a fresh AddressSpace
	// that already has TRAMPOLINE/TRAPFRAME mapped: copy_user_pagetable()
	// from spec.md §1, used by fork.
	Clone(sz int, childTrapframe Frame) (AddressSpace, error)
}

// Kernel-only virtual addresses shared by every process's page table
// (spec.md §4.B). These are arbitrary in a simulation; what matters is that
// every AddressSpace maps the same two addresses.
const (
	TrampolineVA uintptr = ^uintptr(0) - uintptr(PageSize) + 1
	TrapframeVA  uintptr = TrampolineVA - uintptr(PageSize)
)

// NewAddressSpace builds a fresh AddressSpace with TRAMPOLINE and TRAPFRAME
// mapped, rolling back partial mappings on failure (spec.md §4.B).
func NewAddressSpace(alloc PageAllocator, trapframe Frame) (AddressSpace, error) {
	as := &simAddressSpace{alloc: alloc, mappings: map[uintptr]mapping{}}
	if err := as.MapPage(TrampolineVA, 0, PermRead|PermExec); err != nil {
		return nil, fmt.Errorf("map trampoline: %w", err)
	}
	if err := as.MapPage(TrapframeVA, trapframe, PermRead|PermWrite); err != nil {
		as.Unmap(TrampolineVA)
		return nil, fmt.Errorf("map trapframe: %w", err)
	}
	return as, nil
}

type mapping struct {
	frame Frame
	perms Perm
}

// simAddressSpace is an in-memory stand-in for a real page table, used by
// tests and by the reference simulated allocator below.
type simAddressSpace struct {
	mu       sync.Mutex
	alloc    PageAllocator
	mappings map[uintptr]mapping
	size     int
}

func (a *simAddressSpace) MapPage(va uintptr, pa Frame, perms Perm) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mappings[va] = mapping{frame: pa, perms: perms}
	return nil
}

func (a *simAddressSpace) Unmap(va uintptr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.mappings, va)
}

func (a *simAddressSpace) Resize(oldSz, newSz int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if newSz < 0 {
		return oldSz, fmt.Errorf("negative size")
	}
	a.size = newSz
	return newSz, nil
}

func (a *simAddressSpace) Clone(sz int, childTrapframe Frame) (AddressSpace, error) {
	child, err := NewAddressSpace(a.alloc, childTrapframe)
	if err != nil {
		return nil, err
	}
	c := child.(*simAddressSpace)
	a.mu.Lock()
	defer a.mu.Unlock()
	for va, m := range a.mappings {
		if va == TrampolineVA || va == TrapframeVA {
			continue
		}
		c.mappings[va] = m
	}
	c.size = sz
	return child, nil
}

func (a *simAddressSpace) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for va := range a.mappings {
		if va == TrampolineVA || va == TrapframeVA {
			continue
		}
		delete(a.mappings, va)
	}
}

// SimAllocator is a trivial bump allocator implementing PageAllocator, used
// by tests. It is not a production frame allocator.
type SimAllocator struct {
	mu   sync.Mutex
	next Frame
	free map[Frame]bool
}

// NewSimAllocator returns a ready-to-use in-memory PageAllocator.
func NewSimAllocator() *SimAllocator {
	return &SimAllocator{next: 1, free: map[Frame]bool{}}
}

func (s *SimAllocator) AllocPage() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f, ok := range s.free {
		if ok {
			s.free[f] = false
			return f, nil
		}
	}
	f := s.next
	s.next++
	return f, nil
}

func (s *SimAllocator) FreePage(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.free[f] = true
}

// Ticks is the monotonic tick counter collaborator: uptime_ticks() from
// spec.md §1.
type Ticks interface {
	Now() uint64
}

// UserMemory is the either_copyout/either_copyin duality (SPEC_FULL.md §4):
// the original transparently handles both a real user virtual address and
// a kernel pointer (used when the kernel calls itself, e.g. during exec
// argument marshaling). Here that's two CopyOut/CopyIn implementations
// rather than a runtime boolean switch.
type UserMemory interface {
	CopyOut(addr uintptr, data []byte) error
	CopyIn(addr uintptr, data []byte) (int, error)
}

// simUserMemory is the real-user-address side: a process's user address space
// modeled as a sparse byte store, the in-memory stand-in for walking the
// page table and copying across page boundaries.
type simUserMemory struct {
	mu    sync.Mutex
	bytes map[uintptr]byte
}

// NewSimUserMemory returns a ready-to-use simulated per-process user memory.
func NewSimUserMemory() UserMemory {
	return &simUserMemory{bytes: map[uintptr]byte{}}
}

func (m *simUserMemory) CopyOut(addr uintptr, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range data {
		m.bytes[addr+uintptr(i)] = b
	}
	return nil
}

func (m *simUserMemory) CopyIn(addr uintptr, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range data {
		data[i] = m.bytes[addr+uintptr(i)]
	}
	return len(data), nil
}

// kernelAliasMemory is the either_copyout/copyin case where the "user
// pointer" is actually the kernel's own memory, e.g. a Go variable the
// kernel's own Go code passed by address: copies hit buf directly with no
// translation, matching the original's either_copyout(false, ...) path.
type kernelAliasMemory struct {
	buf []byte
}

// NewKernelAliasMemory wraps buf as a UserMemory so kernel-internal callers
// (tests, in-process callers of Wait/Waitx) can share the same CopyOut/
// CopyIn surface syscalls use, without a sparse map indirection.
func NewKernelAliasMemory(buf []byte) UserMemory {
	return &kernelAliasMemory{buf: buf}
}

func (m *kernelAliasMemory) CopyOut(addr uintptr, data []byte) error {
	copy(m.buf[addr:], data)
	return nil
}

func (m *kernelAliasMemory) CopyIn(addr uintptr, data []byte) (int, error) {
	return copy(data, m.buf[addr:]), nil
}
