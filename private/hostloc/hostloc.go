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

// Package hostloc tracks on which switch port end hosts are attached.
//
// The first location a host is seen at is kept for the lifetime of the
// tracker. Later observations at other locations are ignored, even if the host
// actually moved.
package hostloc

import (
	"bytes"
	"fmt"
	"net"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/scionproto/sdnctrl/pkg/ofp"
)

// Location is a switch port.
type Location struct {
	Switch ofp.DatapathID
	Port   ofp.PortNo
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%s", l.Switch, l.Port)
}

// Host is a learned host binding.
type Host struct {
	Addr net.HardwareAddr
	Location
}

// Tracker keeps track of all learned hosts.
type Tracker struct {
	mu    sync.RWMutex
	hosts map[string]Location
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{hosts: make(map[string]Location)}
}

// Learn binds addr to the location if addr is not bound yet. It returns true
// if a new binding was created.
func (t *Tracker) Learn(addr net.HardwareAddr, sw ofp.DatapathID, port ofp.PortNo) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := string(addr)
	if _, ok := t.hosts[k]; ok {
		return false
	}
	t.hosts[k] = Location{Switch: sw, Port: port}
	return true
}

// Lookup returns the location of addr.
func (t *Tracker) Lookup(addr net.HardwareAddr) (Location, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.hosts[string(addr)]
	return l, ok
}

// All returns all bindings ordered by address.
func (t *Tracker) All() []Host {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hosts := lo.MapToSlice(t.hosts, func(k string, l Location) Host {
		return Host{Addr: net.HardwareAddr(k), Location: l}
	})
	slices.SortFunc(hosts, func(a, b Host) int {
		return bytes.Compare(a.Addr, b.Addr)
	})
	return hosts
}

// Len returns the number of learned hosts.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.hosts)
}
