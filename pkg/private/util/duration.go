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

package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = 365 * day
)

var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	// Longer suffixes first, "ms" must match before "s".
	{"ns", time.Nanosecond},
	{"us", time.Microsecond},
	{"µs", time.Microsecond},
	{"ms", time.Millisecond},
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", day},
	{"w", week},
	{"y", year},
}

// ParseDuration parses duration strings consisting of an integer value
// directly followed by one unit: y, w, d, h, m, s, ms, us or ns.
func ParseDuration(durationStr string) (time.Duration, error) {
	for _, u := range durationUnits {
		numStr, ok := strings.CutSuffix(durationStr, u.suffix)
		if !ok {
			continue
		}
		// "5ms" also ends in "s"; make sure the prefix is a plain number.
		n, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			continue
		}
		if n < 0 {
			return 0, serrors.New("negative duration", "input", durationStr)
		}
		return time.Duration(n) * u.unit, nil
	}
	return 0, serrors.New("invalid duration", "input", durationStr)
}

// FmtDuration formats d in the format ParseDuration understands, using the
// largest unit that represents d without loss.
func FmtDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	for i := len(durationUnits) - 1; i >= 0; i-- {
		u := durationUnits[i]
		if u.suffix == "µs" {
			continue
		}
		if d%u.unit == 0 {
			return fmt.Sprintf("%d%s", d/u.unit, u.suffix)
		}
	}
	return fmt.Sprintf("%dns", d)
}
