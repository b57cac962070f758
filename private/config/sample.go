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

package config

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// indent is the indentation of the content of a table in samples.
const indent = "    "

// CtxMap carries values that samples interpolate, e.g. the element ID.
type CtxMap map[string]string

// WriteSample renders the samplers in order. The content of every
// TableSampler is indented below its "[path]" header; other samplers are
// written as they are. It panics if dst cannot be written.
func WriteSample(dst io.Writer, path Path, ctx CtxMap, samplers ...Sampler) {
	for _, s := range samplers {
		var buf bytes.Buffer
		ts, ok := s.(TableSampler)
		if !ok {
			s.Sample(&buf, path, ctx)
			WriteString(dst, buf.String())
			continue
		}
		table := path.Child(ts.ConfigName())
		ts.Sample(&buf, table, ctx)
		WriteString(dst, "\n["+table.String()+"]")
		WriteString(dst, indentLines(buf.String()))
	}
}

// WriteString writes s to dst. It panics if dst cannot be written.
func WriteString(dst io.Writer, s string) {
	if _, err := io.WriteString(dst, s); err != nil {
		panic(fmt.Sprintf("writing sample: %s", err))
	}
}

// indentLines indents every non-empty line of s. Every line, including the
// last one, ends with a newline.
func indentLines(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		if line != "" {
			b.WriteString(indent)
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String()
}
