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

// Package config loads the boot-time configuration that, on real hardware,
// would be a compile-time #ifdef selecting one of RR/FCFS/LOTTERY/PBS
// (spec.md §6). Design note 9.3 treats that selector as a configuration
// concern, not a design one, so here it is a TOML file read once at boot.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Policy names the active scheduling policy. Exactly one is selected per
// boot; there is no runtime switch (spec.md §6).
type Policy string

const (
	PolicyRR      Policy = "RR"
	PolicyFCFS    Policy = "FCFS"
	PolicyLottery Policy = "LOTTERY"
	PolicyPBS     Policy = "PBS"
)

func (p Policy) Valid() bool {
	switch p {
	case PolicyRR, PolicyFCFS, PolicyLottery, PolicyPBS:
		return true
	default:
		return false
	}
}

// Boot is the root boot configuration, read from xv6go.toml.
type Boot struct {
	// NProc is the fixed size N of the process table (spec.md §3).
	NProc int `toml:"nproc"`
	// NCPU is the number of hart goroutines running scheduler loops.
	NCPU int `toml:"ncpu"`
	// Policy selects exactly one scheduler (spec.md §6).
	Policy Policy `toml:"policy"`
	// QuantumTicks bounds how many ticks a preemptive policy (Round-Robin,
	// Lottery) lets a process run before yielding it (spec.md §4.E).
	QuantumTicks int `toml:"quantum_ticks"`
	// DefaultStaticPriority seeds PCB.StaticPriority at process creation
	// (spec.md §3, default 60).
	DefaultStaticPriority int `toml:"default_static_priority"`
	// DefaultTickets seeds PCB.NumTickets (spec.md §3, default 1).
	DefaultTickets int `toml:"default_tickets"`
}

// Default returns the configuration used when no file is supplied.
func Default() Boot {
	return Boot{
		NProc:                 64,
		NCPU:                  4,
		Policy:                PolicyRR,
		QuantumTicks:          1,
		DefaultStaticPriority: 60,
		DefaultTickets:        1,
	}
}

// Load reads and validates a boot configuration from a TOML file at path.
func Load(path string) (Boot, error) {
	b := Default()
	if _, err := toml.DecodeFile(path, &b); err != nil {
		return Boot{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return Boot{}, err
	}
	return b, nil
}

// Validate rejects a configuration spec.md forbids or cannot express.
func (b Boot) Validate() error {
	if b.NProc <= 0 {
		return fmt.Errorf("config: nproc must be positive, got %d", b.NProc)
	}
	if b.NCPU <= 0 {
		return fmt.Errorf("config: ncpu must be positive, got %d", b.NCPU)
	}
	if !b.Policy.Valid() {
		return fmt.Errorf("config: unknown policy %q (MLFQ is reserved, not implemented)", b.Policy)
	}
	if b.QuantumTicks <= 0 {
		return fmt.Errorf("config: quantum_ticks must be positive, got %d", b.QuantumTicks)
	}
	return nil
}
