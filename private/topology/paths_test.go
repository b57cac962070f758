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

package topology_test

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/private/topology"
)

// ring builds s1 - s2 - s3 - s4 - s1 with port i+1 toward the clockwise and
// port i+2 toward the counter-clockwise neighbor.
func ring(cost int) *topology.Store {
	s := topology.NewStore(cost)
	s.UpsertLink(1, 1, 2, 2, 0)
	s.UpsertLink(2, 1, 3, 2, 0)
	s.UpsertLink(3, 1, 4, 2, 0)
	s.UpsertLink(4, 1, 1, 2, 0)
	return s
}

func TestAllShortestPaths(t *testing.T) {
	testCases := map[string]struct {
		store    func() *topology.Store
		src, dst ofp.DatapathID
		want     []topology.Path
	}{
		"ring opposite": {
			store: func() *topology.Store { return ring(1) },
			src:   1,
			dst:   3,
			want:  []topology.Path{{1, 2, 3}, {1, 4, 3}},
		},
		"ring neighbor": {
			store: func() *topology.Store { return ring(1) },
			src:   1,
			dst:   2,
			want:  []topology.Path{{1, 2}},
		},
		"same switch": {
			store: func() *topology.Store { return ring(1) },
			src:   2,
			dst:   2,
			want:  []topology.Path{{2}},
		},
		"unknown src": {
			store: func() *topology.Store { return ring(1) },
			src:   9,
			dst:   2,
		},
		"unknown dst": {
			store: func() *topology.Store { return ring(1) },
			src:   1,
			dst:   9,
		},
		"disconnected": {
			store: func() *topology.Store {
				s := topology.NewStore(1)
				s.UpsertLink(1, 1, 2, 1, 0)
				s.AddSwitch(3)
				return s
			},
			src: 1,
			dst: 3,
		},
		"weighted detour": {
			store: func() *topology.Store {
				s := topology.NewStore(1)
				s.UpsertLink(1, 1, 2, 1, 10)
				s.UpsertLink(1, 2, 3, 1, 1)
				s.UpsertLink(3, 2, 2, 2, 1)
				return s
			},
			src:  1,
			dst:  2,
			want: []topology.Path{{1, 3, 2}},
		},
		"diamond of diamonds": {
			store: func() *topology.Store {
				s := topology.NewStore(1)
				s.UpsertLink(1, 1, 2, 1, 0)
				s.UpsertLink(1, 2, 3, 1, 0)
				s.UpsertLink(2, 2, 4, 1, 0)
				s.UpsertLink(3, 2, 4, 2, 0)
				s.UpsertLink(4, 3, 5, 1, 0)
				s.UpsertLink(4, 4, 6, 1, 0)
				s.UpsertLink(5, 2, 7, 1, 0)
				s.UpsertLink(6, 2, 7, 2, 0)
				return s
			},
			src: 1,
			dst: 7,
			want: []topology.Path{
				{1, 2, 4, 5, 7},
				{1, 2, 4, 6, 7},
				{1, 3, 4, 5, 7},
				{1, 3, 4, 6, 7},
			},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			s := tc.store()
			got := s.AllShortestPaths(tc.src, tc.dst)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("paths differ (-want +got):\n%s", diff)
			}
			// Stable across calls.
			assert.Equal(t, got, s.AllShortestPaths(tc.src, tc.dst))
		})
	}
}

// TestAllShortestPathsBruteForce checks the result against an exhaustive
// enumeration of simple paths on random small graphs.
func TestAllShortestPathsBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 2 + rng.Intn(5)
		s := topology.NewStore(1)
		for a := 1; a <= n; a++ {
			s.AddSwitch(ofp.DatapathID(a))
			for b := a + 1; b <= n; b++ {
				if rng.Intn(2) == 0 {
					continue
				}
				s.UpsertLink(ofp.DatapathID(a), ofp.PortNo(b), ofp.DatapathID(b),
					ofp.PortNo(a), 1+rng.Intn(3))
			}
		}
		for src := 1; src <= n; src++ {
			for dst := 1; dst <= n; dst++ {
				src, dst := ofp.DatapathID(src), ofp.DatapathID(dst)
				want := bruteForceShortest(s, src, dst)
				got := s.AllShortestPaths(src, dst)
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("graph %d, %s->%s (-want +got):\n%s\nlinks: %v",
						i, src, dst, diff, s.Links())
				}
				for _, p := range got {
					assert.True(t, isSimple(p), fmt.Sprint(p))
				}
			}
		}
	}
}

func bruteForceShortest(s *topology.Store, src, dst ofp.DatapathID) []topology.Path {
	var all []topology.Path
	var walk func(p topology.Path)
	walk = func(p topology.Path) {
		last := p[len(p)-1]
		if last == dst {
			all = append(all, slices.Clone(p))
			return
		}
		for _, next := range s.Switches() {
			if p.Contains(next) || !s.HasLink(last, next) {
				continue
			}
			walk(append(p, next))
		}
	}
	walk(topology.Path{src})

	best := math.MaxInt
	for _, p := range all {
		best = min(best, s.PathCost(p))
	}
	var shortest []topology.Path
	for _, p := range all {
		if s.PathCost(p) == best {
			shortest = append(shortest, p)
		}
	}
	slices.SortFunc(shortest, func(a, b topology.Path) int {
		return slices.Compare(a, b)
	})
	return shortest
}

func isSimple(p topology.Path) bool {
	seen := make(map[ofp.DatapathID]bool, len(p))
	for _, id := range p {
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	return len(p) > 0
}

func TestPathUtilization(t *testing.T) {
	s := ring(1)
	s.UpdateUtilization(1, 2, 2)
	s.UpdateUtilization(2, 3, 1)

	assert.Equal(t, 3.0, s.PathUtilization(topology.Path{1, 2, 3}))
	assert.Equal(t, 0.0, s.PathUtilization(topology.Path{1, 4, 3}))
	assert.Equal(t, 0.0, s.PathUtilization(topology.Path{1}))
	assert.Equal(t, 2, s.PathCost(topology.Path{1, 2, 3}))

	s.RemoveLink(2, 3)
	assert.True(t, math.IsInf(s.PathUtilization(topology.Path{1, 2, 3}), 1))
	assert.Equal(t, math.MaxInt, s.PathCost(topology.Path{1, 2, 3}))
}
