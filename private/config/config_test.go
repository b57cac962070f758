// Copyright 2019 Anapaya Systems
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

package config_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/sdnctrl/pkg/private/xtest"
	"github.com/scionproto/sdnctrl/private/config"
)

type sample struct {
	Name string `toml:"name"`
}

func TestWriteSample(t *testing.T) {
	var buf bytes.Buffer
	config.WriteSample(&buf, nil, nil,
		config.TextBlock{Text: "\nname = \"a\"\n", Name: "block"},
	)
	assert.Equal(t, "\n[block]\n    name = \"a\"\n", buf.String())

	buf.Reset()
	config.WriteSample(&buf, config.Path{"log"}, nil,
		config.TextBlock{Text: "\n# comment\n\nlevel = \"info\"\n", Name: "console"},
	)
	assert.Equal(t, "\n[log.console]\n    # comment\n\n    level = \"info\"\n", buf.String())
}

func TestPathChild(t *testing.T) {
	p := config.Path{"log"}
	c := p.Child("console")
	assert.Equal(t, "log.console", c.String())
	assert.Equal(t, "log", p.String())
}

func TestValidateAll(t *testing.T) {
	err := config.ValidateAll(config.TextBlock{Name: "a"}, failing{})
	assert.ErrorContains(t, err, "invalid configuration")
	assert.NoError(t, config.ValidateAll(config.TextBlock{Name: "a"}))
}

type failing struct{}

func (failing) Validate() error { return assert.AnError }

func TestDecodeDisallowsUnknownFields(t *testing.T) {
	var s sample
	require.NoError(t, config.Decode([]byte(`name = "x"`), &s))
	assert.Equal(t, "x", s.Name)
	err := config.Decode([]byte("nmae = \"x\"\n[extra]\nkey = 1\n"), &s)
	assert.ErrorContains(t, err, "unknown configuration keys")
	// An unknown table is reported once, not per key.
	assert.ErrorContains(t, err, "keys=[nmae extra]")
}

func TestLoadResource(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		name := xtest.MustWriteFile(t, []byte("content"), "res.txt")
		rc, err := config.LoadResource(name)
		require.NoError(t, err)
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "content", string(raw))
	})
	t.Run("http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/topo.json" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte("remote"))
		}))
		defer srv.Close()

		rc, err := config.LoadResource(srv.URL + "/topo.json")
		require.NoError(t, err)
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "remote", string(raw))

		_, err = config.LoadResource(srv.URL + "/missing")
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadResource("/nonexistent/topo.json")
		assert.Error(t, err)
	})
}
