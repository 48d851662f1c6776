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

package external

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestNewAddressSpaceMapsTrampolineAndTrapframe(t *testing.T) {
	alloc := NewSimAllocator()
	frame, err := alloc.AllocPage()
	assert.NilError(t, err)

	as, err := NewAddressSpace(alloc, frame)
	assert.NilError(t, err)
	sim := as.(*simAddressSpace)
	_, ok := sim.mappings[TrampolineVA]
	assert.Assert(t, ok)
	_, ok = sim.mappings[TrapframeVA]
	assert.Assert(t, ok)
}

func TestCloneCopiesUserMappingsNotKernelOnes(t *testing.T) {
	alloc := NewSimAllocator()
	frame, err := alloc.AllocPage()
	assert.NilError(t, err)
	parent, err := NewAddressSpace(alloc, frame)
	assert.NilError(t, err)

	userFrame, err := alloc.AllocPage()
	assert.NilError(t, err)
	assert.NilError(t, parent.MapPage(0x1000, userFrame, PermRead|PermWrite|PermUser))

	childFrame, err := alloc.AllocPage()
	assert.NilError(t, err)
	child, err := parent.Clone(4096, childFrame)
	assert.NilError(t, err)

	csim := child.(*simAddressSpace)
	_, ok := csim.mappings[0x1000]
	assert.Assert(t, ok)
	assert.Equal(t, csim.size, 4096)

	// Destroying the child must not touch TRAMPOLINE/TRAPFRAME.
	child.Destroy()
	_, ok = csim.mappings[TrampolineVA]
	assert.Assert(t, ok)
	_, ok = csim.mappings[TrapframeVA]
	assert.Assert(t, ok)
	_, ok = csim.mappings[0x1000]
	assert.Assert(t, !ok)
}

func TestSimAllocatorReusesFreedFrames(t *testing.T) {
	alloc := NewSimAllocator()
	f1, err := alloc.AllocPage()
	assert.NilError(t, err)
	alloc.FreePage(f1)
	f2, err := alloc.AllocPage()
	assert.NilError(t, err)
	assert.Equal(t, f1, f2)
}

func TestResizeRejectsNegativeSize(t *testing.T) {
	alloc := NewSimAllocator()
	frame, err := alloc.AllocPage()
	assert.NilError(t, err)
	as, err := NewAddressSpace(alloc, frame)
	assert.NilError(t, err)

	_, err = as.Resize(4096, -1)
	assert.ErrorContains(t, err, "negative size")
}

func TestSimUserMemoryRoundTrip(t *testing.T) {
	m := NewSimUserMemory()
	want := []byte{1, 2, 3, 4}
	assert.NilError(t, m.CopyOut(0x2000, want))

	got := make([]byte, len(want))
	n, err := m.CopyIn(0x2000, got)
	assert.NilError(t, err)
	assert.Equal(t, n, len(want))
	assert.DeepEqual(t, got, want)
}

func TestSimUserMemoryUnwrittenBytesAreZero(t *testing.T) {
	m := NewSimUserMemory()
	got := make([]byte, 4)
	n, err := m.CopyIn(0x3000, got)
	assert.NilError(t, err)
	assert.Equal(t, n, 4)
	assert.DeepEqual(t, got, []byte{0, 0, 0, 0})
}

func TestKernelAliasMemoryRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	m := NewKernelAliasMemory(buf)

	want := []byte{9, 8, 7}
	assert.NilError(t, m.CopyOut(4, want))
	assert.DeepEqual(t, buf[4:7], want)

	got := make([]byte, 3)
	n, err := m.CopyIn(4, got)
	assert.NilError(t, err)
	assert.Equal(t, n, 3)
	assert.DeepEqual(t, got, want)
}
