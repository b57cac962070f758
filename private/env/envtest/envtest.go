// Copyright 2018 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package envtest contains helpers to check that the env config samples are
// consistent with the default values. Apps that embed the env blocks reuse
// them in their own sample tests.
package envtest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scionproto/sdnctrl/private/env"
)

func InitTestGeneral(cfg *env.General) {}

func CheckTestGeneral(t *testing.T, cfg *env.General, id string) {
	assert.Equal(t, id, cfg.ID)
	assert.Equal(t, "/etc/sdnctrl", cfg.ConfigDir)
}

func InitTestMetrics(cfg *env.Metrics) {}

func CheckTestMetrics(t *testing.T, cfg *env.Metrics) {
	assert.Empty(t, cfg.Prometheus)
}

func InitTestAPI(cfg *env.API) {}

func CheckTestAPI(t *testing.T, cfg *env.API) {
	assert.Empty(t, cfg.Addr)
}
