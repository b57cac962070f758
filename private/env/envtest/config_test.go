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

package envtest

import (
	"bytes"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"

	"github.com/scionproto/sdnctrl/private/config"
	"github.com/scionproto/sdnctrl/private/env"
)

func TestGeneralSample(t *testing.T) {
	var sample bytes.Buffer
	var cfg env.General
	cfg.Sample(&sample, nil, map[string]string{config.ID: "general"})
	InitTestGeneral(&cfg)
	err := toml.NewDecoder(bytes.NewReader(sample.Bytes())).DisallowUnknownFields().Decode(&cfg)
	assert.NoError(t, err)
	CheckTestGeneral(t, &cfg, "general")
}

func TestMetricsSample(t *testing.T) {
	var sample bytes.Buffer
	var cfg env.Metrics
	cfg.Sample(&sample, nil, nil)
	InitTestMetrics(&cfg)
	err := toml.NewDecoder(bytes.NewReader(sample.Bytes())).DisallowUnknownFields().Decode(&cfg)
	assert.NoError(t, err)
	CheckTestMetrics(t, &cfg)
}

func TestGeneralValidate(t *testing.T) {
	cfg := env.General{}
	assert.Error(t, cfg.Validate())
	cfg.ID = "ctrl-1"
	assert.NoError(t, cfg.Validate())
	cfg.ConfigDir = t.TempDir()
	assert.NoError(t, cfg.Validate())
	cfg.ConfigDir = "/nonexistent/dir"
	assert.Error(t, cfg.Validate())
}

func TestAPISample(t *testing.T) {
	var sample bytes.Buffer
	var cfg env.API
	cfg.Sample(&sample, nil, nil)
	InitTestAPI(&cfg)
	err := toml.NewDecoder(bytes.NewReader(sample.Bytes())).DisallowUnknownFields().Decode(&cfg)
	assert.NoError(t, err)
	CheckTestAPI(t, &cfg)
}

func TestAddrValidate(t *testing.T) {
	testCases := map[string]struct {
		Addr      string
		ErrAssert assert.ErrorAssertionFunc
	}{
		"unset":     {Addr: "", ErrAssert: assert.NoError},
		"host port": {Addr: "127.0.0.1:30442", ErrAssert: assert.NoError},
		"any host":  {Addr: ":8080", ErrAssert: assert.NoError},
		"no port":   {Addr: "localhost", ErrAssert: assert.Error},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			tc.ErrAssert(t, (&env.API{Addr: tc.Addr}).Validate())
			tc.ErrAssert(t, (&env.Metrics{Prometheus: tc.Addr}).Validate())
		})
	}
}
