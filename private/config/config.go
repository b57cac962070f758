// Copyright 2024 Anapaya Systems
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

// Package config defines the contract of the TOML configuration blocks of the
// controller.
//
// Each block fills its own defaults (InitDefaults), checks itself (Validate)
// and renders a commented sample of itself (Sample). A block that is a TOML
// table additionally names its table (ConfigName) so that WriteSample can
// emit the header. The sample of every block is expected to decode into the
// defaults of the block; the envtest package has the checks for the shared
// blocks.
//
// Sample may panic if the destination cannot be written.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

// ID is the sample context key of the element ID.
const ID = "id"

// remoteTimeout bounds fetching a resource over http(s).
const remoteTimeout = 30 * time.Second

// Config is implemented by every configuration block.
type Config interface {
	Sampler
	Validator
	Defaulter
}

// Validator checks a block after its defaults have been set.
type Validator interface {
	Validate() error
}

// Defaulter fills the unset values of a block.
type Defaulter interface {
	InitDefaults()
}

// Sampler writes a commented sample of a block to dst.
type Sampler interface {
	Sample(dst io.Writer, path Path, ctx CtxMap)
}

// TableSampler is a Sampler whose block is a TOML table.
type TableSampler interface {
	Sampler
	// ConfigName is the key of the table.
	ConfigName() string
}

// Path is the dotted key of a nested table, e.g. ["log", "console"].
type Path []string

// Child returns a copy of the path with name appended.
func (p Path) Child(name string) Path {
	return append(append(Path(nil), p...), name)
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// NoDefaults can be embedded in blocks whose zero value is their default.
type NoDefaults struct{}

// InitDefaults does nothing.
func (NoDefaults) InitDefaults() {}

// TextBlock is a table with a fixed sample text and no defaults or checks.
type TextBlock struct {
	NoDefaults
	Name string
	Text string
}

func (b TextBlock) Sample(dst io.Writer, _ Path, _ CtxMap) {
	WriteString(dst, b.Text)
}

func (b TextBlock) ConfigName() string {
	return b.Name
}

func (TextBlock) Validate() error {
	return nil
}

// ValidateAll validates the blocks in order and returns the first error.
func ValidateAll(validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return serrors.Wrap("invalid configuration", err, "block", blockName(v))
		}
	}
	return nil
}

func blockName(v any) string {
	if ts, ok := v.(TableSampler); ok {
		return ts.ConfigName()
	}
	return fmt.Sprintf("%T", v)
}

// InitAll sets the defaults of all blocks.
func InitAll(defaulters ...Defaulter) {
	for _, d := range defaulters {
		d.InitDefaults()
	}
}

// Decode decodes raw TOML into cfg. Keys that cfg does not know are an error,
// which lists all of them. A table that cfg does not know is listed by its
// own key.
func Decode(raw []byte, cfg any) error {
	err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(cfg)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		keys := make([]string, 0, len(strict.Errors))
		for _, e := range strict.Errors {
			keys = append(keys, strings.Join(e.Key(), "."))
		}
		return serrors.New("unknown configuration keys", "keys", keys)
	}
	return err
}

// LoadFile decodes the TOML file into cfg.
func LoadFile(file string, cfg any) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return Decode(raw, cfg)
}

// LoadResource opens location for reading. Locations starting with http://
// or https:// are fetched with a GET request, everything else is a file
// path. The caller must close the reader.
func LoadResource(location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, serrors.Wrap("opening file", err, "location", location)
		}
		return f, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		cancel()
		return nil, serrors.Wrap("creating request", err, "location", location)
	}
	rep, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, serrors.Wrap("fetching resource", err, "location", location)
	}
	if rep.StatusCode != http.StatusOK {
		rep.Body.Close()
		cancel()
		return nil, serrors.New("fetching resource", "location", location,
			"status", rep.Status)
	}
	return &cancelBody{ReadCloser: rep.Body, cancel: cancel}, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
