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
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/xv6go/kernel/pkg/config"
	"github.com/xv6go/kernel/pkg/sentry/external"
)

// policyFor resolves the boot-time policy selector (spec.md §6, "compile-
// time #ifdef") to a Policy value. Exactly one of these is active per boot.
func policyFor(name config.Policy) (Policy, error) {
	switch name {
	case config.PolicyRR:
		return RoundRobin{}, nil
	case config.PolicyFCFS:
		return FCFS{}, nil
	case config.PolicyLottery:
		return &Lottery{}, nil
	case config.PolicyPBS:
		return PBS{}, nil
	default:
		return nil, fmt.Errorf("kernel: unknown policy %q", name)
	}
}

// Boot constructs a Kernel from a boot configuration, wiring an in-memory
// page allocator (design note 9, "no real MMU backs this module") and
// leaving the tick source on the kernel's own internal counter rather than
// an external Ticks collaborator.
func Boot(cfg config.Boot) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := policyFor(cfg.Policy)
	if err != nil {
		return nil, err
	}
	alloc := external.NewSimAllocator()
	k := NewKernel(cfg.NProc, cfg.NCPU, policy, cfg.QuantumTicks,
		cfg.DefaultStaticPriority, cfg.DefaultTickets, alloc, nil)
	log.WithFields(logrus.Fields{
		"nproc": cfg.NProc, "ncpu": cfg.NCPU, "policy": policy.Name(),
	}).Info("kernel booted")
	return k, nil
}

// RunClock drives ClockIntr at one tick per interval until ctx is canceled,
// the stand-in for a timer-interrupt source wired to hart 0 only (spec.md
// §4.F). A rate.Limiter paces it instead of a bare time.Ticker so a future
// caller can let ticks burst-catch-up after a stall without redialing the
// period (golang.org/x/time/rate).
func (k *Kernel) RunClock(ctx context.Context, interval time.Duration) {
	lim := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		k.ClockIntr()
	}
}
