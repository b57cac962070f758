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

// Package topology holds the controller's model of the switch fabric: the
// switches, their active ports and the weighted, undirected links between
// them. Each link additionally carries a utilization counter that is used by
// the least-utilized path selection.
//
// All methods of Store are safe for concurrent use. Path computations run
// under the read lock and therefore observe a consistent snapshot.
package topology

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/scionproto/sdnctrl/pkg/ofp"
)

// DefaultLinkCost is the cost of a link that has no configured cost.
const DefaultLinkCost = 1

// Link is an undirected switch-to-switch adjacency annotated with the port
// numbers on both ends.
type Link struct {
	A           ofp.DatapathID
	PortA       ofp.PortNo
	B           ofp.DatapathID
	PortB       ofp.PortNo
	Cost        int
	Utilization float64
}

// reverse returns the same link seen from B.
func (l Link) reverse() Link {
	l.A, l.B = l.B, l.A
	l.PortA, l.PortB = l.PortB, l.PortA
	return l
}

func (l Link) String() string {
	return fmt.Sprintf("%s:%s-%s:%s", l.A, l.PortA, l.B, l.PortB)
}

// Path is an ordered sequence of switches.
type Path []ofp.DatapathID

func (p Path) String() string {
	parts := make([]string, 0, len(p))
	for _, id := range p {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, " -> ")
}

// Src returns the first switch of the path. The path must not be empty.
func (p Path) Src() ofp.DatapathID {
	return p[0]
}

// Dst returns the last switch of the path. The path must not be empty.
func (p Path) Dst() ofp.DatapathID {
	return p[len(p)-1]
}

// Contains reports whether id is on the path.
func (p Path) Contains(id ofp.DatapathID) bool {
	return slices.Contains(p, id)
}

type pairKey struct {
	low, high ofp.DatapathID
}

func key(a, b ofp.DatapathID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{low: a, high: b}
}

// Store is the live topology graph.
type Store struct {
	mtx         sync.RWMutex
	defaultCost int
	// switches maps each known switch to its set of active ports.
	switches map[ofp.DatapathID]map[ofp.PortNo]struct{}
	// links is keyed by the unordered switch pair. The stored link is
	// oriented with A == key.low.
	links      map[pairKey]*Link
	configured map[pairKey]int
}

// NewStore creates an empty store. Links without a configured cost get
// defaultCost; values < 1 are replaced with DefaultLinkCost.
func NewStore(defaultCost int) *Store {
	if defaultCost < 1 {
		defaultCost = DefaultLinkCost
	}
	return &Store{
		defaultCost: defaultCost,
		switches:    make(map[ofp.DatapathID]map[ofp.PortNo]struct{}),
		links:       make(map[pairKey]*Link),
		configured:  make(map[pairKey]int),
	}
}

// AddSwitch registers a switch. It is a no-op if the switch is known.
func (s *Store) AddSwitch(id ofp.DatapathID) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.addSwitchLocked(id)
}

func (s *Store) addSwitchLocked(id ofp.DatapathID) map[ofp.PortNo]struct{} {
	ports, ok := s.switches[id]
	if !ok {
		ports = make(map[ofp.PortNo]struct{})
		s.switches[id] = ports
	}
	return ports
}

// RemoveSwitch removes the switch and all its links. The removed links are
// returned.
func (s *Store) RemoveSwitch(id ofp.DatapathID) []Link {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.switches[id]; !ok {
		return nil
	}
	delete(s.switches, id)
	return s.removeLinksLocked(func(l *Link) bool {
		return l.A == id || l.B == id
	})
}

// HasSwitch reports whether the switch is known.
func (s *Store) HasSwitch(id ofp.DatapathID) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	_, ok := s.switches[id]
	return ok
}

// SetPorts replaces the active port set of the switch with the usable ports
// in ports. Reserved and down ports are not usable. Links attached to ports
// that are no longer active are removed and returned.
func (s *Store) SetPorts(id ofp.DatapathID, ports []ofp.Port) []Link {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	active := make(map[ofp.PortNo]struct{}, len(ports))
	for _, p := range ports {
		if p.No.Reserved() || p.Down {
			continue
		}
		active[p.No] = struct{}{}
	}
	s.switches[id] = active
	return s.removeLinksLocked(func(l *Link) bool {
		if l.A == id {
			if _, ok := active[l.PortA]; !ok {
				return true
			}
		}
		if l.B == id {
			if _, ok := active[l.PortB]; !ok {
				return true
			}
		}
		return false
	})
}

// Ports returns the active ports of the switch in ascending order.
func (s *Store) Ports(id ofp.DatapathID) []ofp.PortNo {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	ports := lo.Keys(s.switches[id])
	slices.Sort(ports)
	return ports
}

// Switches returns all known switches in ascending order.
func (s *Store) Switches() []ofp.DatapathID {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	ids := lo.Keys(s.switches)
	slices.Sort(ids)
	return ids
}

// UpsertLink adds the link between a and b, or replaces the port annotation
// of an existing one. Utilization of an existing link is kept. Unknown
// switches are created and both ports become active. A cost < 1 resolves to
// the configured cost of the pair.
//
// UpsertLink is idempotent.
func (s *Store) UpsertLink(a ofp.DatapathID, portA ofp.PortNo, b ofp.DatapathID,
	portB ofp.PortNo, cost int) {

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.addSwitchLocked(a)[portA] = struct{}{}
	s.addSwitchLocked(b)[portB] = struct{}{}
	if cost < 1 {
		cost = s.costLocked(a, b)
	}
	k := key(a, b)
	l := Link{A: a, PortA: portA, B: b, PortB: portB, Cost: cost}
	if a != k.low {
		l = l.reverse()
	}
	if old, ok := s.links[k]; ok {
		l.Utilization = old.Utilization
	}
	s.links[k] = &l
}

// RemoveLink removes the link between a and b. It returns false if there was
// no such link.
func (s *Store) RemoveLink(a, b ofp.DatapathID) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	k := key(a, b)
	if _, ok := s.links[k]; !ok {
		return false
	}
	delete(s.links, k)
	return true
}

func (s *Store) removeLinksLocked(match func(*Link) bool) []Link {
	var removed []Link
	for k, l := range s.links {
		if match(l) {
			removed = append(removed, *l)
			delete(s.links, k)
		}
	}
	sortLinks(removed)
	return removed
}

// HasLink reports whether a and b are adjacent.
func (s *Store) HasLink(a, b ofp.DatapathID) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	_, ok := s.links[key(a, b)]
	return ok
}

// Link returns the link between a and b, oriented such that the returned
// link's A is a.
func (s *Store) Link(a, b ofp.DatapathID) (Link, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.linkLocked(a, b)
}

func (s *Store) linkLocked(a, b ofp.DatapathID) (Link, bool) {
	l, ok := s.links[key(a, b)]
	if !ok {
		return Link{}, false
	}
	if l.A != a {
		return l.reverse(), true
	}
	return *l, true
}

// Links returns a copy of all links ordered by their endpoints.
func (s *Store) Links() []Link {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	links := make([]Link, 0, len(s.links))
	for _, l := range s.links {
		links = append(links, *l)
	}
	sortLinks(links)
	return links
}

func sortLinks(links []Link) {
	slices.SortFunc(links, func(x, y Link) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
}

// PortToward returns the port on from that leads to the adjacent switch to.
func (s *Store) PortToward(from, to ofp.DatapathID) (ofp.PortNo, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	l, ok := s.linkLocked(from, to)
	if !ok {
		return 0, false
	}
	return l.PortA, true
}

// IsLinkPort reports whether the port of the switch carries a switch-to-switch
// link.
func (s *Store) IsLinkPort(id ofp.DatapathID, port ofp.PortNo) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	for _, l := range s.links {
		if (l.A == id && l.PortA == port) || (l.B == id && l.PortB == port) {
			return true
		}
	}
	return false
}

// SetConfiguredCost records the administrative cost of the pair. It is used
// for links discovered or re-added later. Existing links are updated too. A
// cost < 1 falls back to the default cost.
func (s *Store) SetConfiguredCost(a, b ofp.DatapathID, cost int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	k := key(a, b)
	s.configured[k] = cost
	if l, ok := s.links[k]; ok {
		l.Cost = s.costLocked(a, b)
	}
}

// Cost returns the configured cost of the pair, or the default cost.
func (s *Store) Cost(a, b ofp.DatapathID) int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.costLocked(a, b)
}

func (s *Store) costLocked(a, b ofp.DatapathID) int {
	if c, ok := s.configured[key(a, b)]; ok && c > 0 {
		return c
	}
	return s.defaultCost
}

// UpdateUtilization adds delta to the utilization of the link between a and
// b. The result is clamped at zero. It is a no-op if there is no such link.
func (s *Store) UpdateUtilization(a, b ofp.DatapathID, delta float64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	l, ok := s.links[key(a, b)]
	if !ok {
		return
	}
	l.Utilization = max(0, l.Utilization+delta)
}
