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
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/xv6go/kernel/pkg/config"
)

func TestBootResolvesEachPolicy(t *testing.T) {
	for _, name := range []config.Policy{config.PolicyRR, config.PolicyFCFS, config.PolicyLottery, config.PolicyPBS} {
		cfg := config.Default()
		cfg.Policy = name
		k, err := Boot(cfg)
		assert.NilError(t, err)
		assert.Equal(t, k.policy.Name(), string(name))
	}
}

func TestBootRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.NProc = 0
	_, err := Boot(cfg)
	assert.ErrorContains(t, err, "nproc")
}

func TestRunClockAdvancesTickCount(t *testing.T) {
	k, err := Boot(config.Default())
	assert.NilError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	k.RunClock(ctx, time.Millisecond)

	assert.Assert(t, k.now() > 0)
}
