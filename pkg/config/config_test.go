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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NilError(t, Default().Validate())
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	b := Default()
	b.Policy = "MLFQ"
	assert.ErrorContains(t, b.Validate(), "unknown policy")
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	b := Default()
	b.NProc = 0
	assert.ErrorContains(t, b.Validate(), "nproc")

	b = Default()
	b.NCPU = -1
	assert.ErrorContains(t, b.Validate(), "ncpu")

	b = Default()
	b.QuantumTicks = 0
	assert.ErrorContains(t, b.Validate(), "quantum_ticks")
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xv6go.toml")
	toml := "nproc = 8\nncpu = 2\npolicy = \"PBS\"\nquantum_ticks = 4\n"
	assert.NilError(t, os.WriteFile(path, []byte(toml), 0o644))

	b, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, b.NProc, 8)
	assert.Equal(t, b.NCPU, 2)
	assert.Equal(t, b.Policy, PolicyPBS)
	assert.Equal(t, b.QuantumTicks, 4)
	// Fields absent from the file keep their Default() value.
	assert.Equal(t, b.DefaultTickets, Default().DefaultTickets)
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xv6go.toml")
	assert.NilError(t, os.WriteFile(path, []byte("policy = \"RANDOM\"\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown policy")
}
