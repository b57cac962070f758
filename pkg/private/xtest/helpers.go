// Copyright 2018 ETH Zurich
// Copyright 2020 ETH Zurich, Anapaya Systems
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

package xtest

import (
	"encoding/hex"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MustWriteFile writes b to a file called baseName inside a fresh temporary
// directory and returns the full path. The directory is removed when the test
// ends.
func MustWriteFile(t testing.TB, b []byte, baseName string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), baseName)
	require.NoError(t, os.WriteFile(name, b, 0644))
	return name
}

// MustParseHexString parses s and returns the corresponding byte slice.
// Whitespace in the input is ignored.
func MustParseHexString(s string) []byte {
	s = strings.Join(strings.Fields(s), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// MustParseMAC parses s and returns the hardware address. It panics if s is
// not a valid 48-bit MAC address.
func MustParseMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	if len(mac) != 6 {
		panic("not an EUI-48 address: " + s)
	}
	return mac
}

// MustParseAddr parses s and returns the IP address. It panics on failure.
func MustParseAddr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

// AssertReadReturnsBetween will call t.Fatalf if the first read from the
// channel doesn't happen between x and y.
func AssertReadReturnsBetween(t testing.TB, ch <-chan struct{}, x, y time.Duration) {
	AssertReadDoesNotReturnBefore(t, ch, x)
	// Above aborts the test if it returns before x time passed, so if we get
	// here x time has passed.
	AssertReadReturnsBefore(t, ch, y-x)
}

// AssertReadReturnsBefore will call t.Fatalf if the first read from the
// channel doesn't happen before timeout.
func AssertReadReturnsBefore(t testing.TB, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("goroutine took too long to finish")
	}
}

// AssertReadDoesNotReturnBefore will call t.Fatalf if the first read from the
// channel happens before timeout.
func AssertReadDoesNotReturnBefore(t testing.TB, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("goroutine finished too quickly")
	case <-time.After(timeout):
	}
}

// AssertError checks that err is not nil if expectError is true and that is it
// nil otherwise.
func AssertError(t *testing.T, err error, expectError bool) {
	t.Helper()
	if expectError {
		assert.Error(t, err)
	} else {
		assert.NoError(t, err)
	}
}
