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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/private/topology"
)

func TestUpsertLinkIdempotent(t *testing.T) {
	once := topology.NewStore(1)
	once.UpsertLink(1, 2, 2, 3, 5)

	twice := topology.NewStore(1)
	twice.UpsertLink(1, 2, 2, 3, 5)
	twice.UpsertLink(1, 2, 2, 3, 5)

	if diff := cmp.Diff(once.Links(), twice.Links()); diff != "" {
		t.Errorf("links differ (-once +twice):\n%s", diff)
	}
	assert.Equal(t, once.Switches(), twice.Switches())
	assert.Equal(t, once.Ports(1), twice.Ports(1))
	assert.Equal(t, once.Ports(2), twice.Ports(2))
}

func TestUpsertLinkEitherDirection(t *testing.T) {
	s := topology.NewStore(1)
	s.UpsertLink(2, 7, 1, 4, 0)
	s.UpsertLink(1, 4, 2, 7, 0)

	links := s.Links()
	assert.Equal(t, []topology.Link{
		{A: 1, PortA: 4, B: 2, PortB: 7, Cost: 1},
	}, links)

	l, ok := s.Link(2, 1)
	assert.True(t, ok)
	assert.Equal(t, ofp.DatapathID(2), l.A)
	assert.Equal(t, ofp.PortNo(7), l.PortA)

	p, ok := s.PortToward(1, 2)
	assert.True(t, ok)
	assert.Equal(t, ofp.PortNo(4), p)
	p, ok = s.PortToward(2, 1)
	assert.True(t, ok)
	assert.Equal(t, ofp.PortNo(7), p)
	_, ok = s.PortToward(1, 3)
	assert.False(t, ok)

	assert.True(t, s.IsLinkPort(1, 4))
	assert.True(t, s.IsLinkPort(2, 7))
	assert.False(t, s.IsLinkPort(1, 7))
}

func TestUpsertLinkReplacesPorts(t *testing.T) {
	s := topology.NewStore(1)
	s.UpsertLink(1, 1, 2, 1, 0)
	s.UpdateUtilization(1, 2, 3)
	s.UpsertLink(1, 5, 2, 6, 0)

	assert.Equal(t, []topology.Link{
		{A: 1, PortA: 5, B: 2, PortB: 6, Cost: 1, Utilization: 3},
	}, s.Links())
}

func TestUpsertLinkPortsExist(t *testing.T) {
	s := topology.NewStore(1)
	s.UpsertLink(1, 3, 2, 4, 0)
	for _, l := range s.Links() {
		assert.Contains(t, s.Ports(l.A), l.PortA)
		assert.Contains(t, s.Ports(l.B), l.PortB)
	}
}

func TestRemoveLink(t *testing.T) {
	s := topology.NewStore(1)
	assert.False(t, s.RemoveLink(1, 2))
	s.UpsertLink(1, 1, 2, 1, 0)
	assert.True(t, s.RemoveLink(2, 1))
	assert.False(t, s.HasLink(1, 2))
	assert.False(t, s.RemoveLink(1, 2))
	// Switches stay known.
	assert.Equal(t, []ofp.DatapathID{1, 2}, s.Switches())
}

func TestRemoveSwitch(t *testing.T) {
	s := topology.NewStore(1)
	s.UpsertLink(1, 1, 2, 1, 0)
	s.UpsertLink(2, 2, 3, 1, 0)
	s.UpsertLink(1, 2, 3, 2, 0)

	removed := s.RemoveSwitch(2)
	assert.Equal(t, []topology.Link{
		{A: 1, PortA: 1, B: 2, PortB: 1, Cost: 1},
		{A: 2, PortA: 2, B: 3, PortB: 1, Cost: 1},
	}, removed)
	assert.Equal(t, []ofp.DatapathID{1, 3}, s.Switches())
	assert.True(t, s.HasLink(1, 3))
	assert.Empty(t, s.RemoveSwitch(2))
}

func TestSetPorts(t *testing.T) {
	s := topology.NewStore(1)
	s.UpsertLink(1, 1, 2, 1, 0)
	s.UpsertLink(1, 2, 3, 1, 0)

	removed := s.SetPorts(1, []ofp.Port{
		{No: 1},
		{No: 2, Down: true},
		{No: 9},
		{No: ofp.PortLocal},
	})
	assert.Equal(t, []topology.Link{{A: 1, PortA: 2, B: 3, PortB: 1, Cost: 1}}, removed)
	assert.Equal(t, []ofp.PortNo{1, 9}, s.Ports(1))
	assert.True(t, s.HasLink(1, 2))
	assert.False(t, s.HasLink(1, 3))
}

func TestUpdateUtilization(t *testing.T) {
	testCases := map[string]struct {
		deltas []float64
		want   float64
	}{
		"increments":      {deltas: []float64{1, 1, 1}, want: 3},
		"clamped":         {deltas: []float64{-1}, want: 0},
		"clamped midway":  {deltas: []float64{2, -5, 1}, want: 1},
		"back to zero":    {deltas: []float64{2, -2}, want: 0},
		"large negatives": {deltas: []float64{1, -100, -100}, want: 0},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			s := topology.NewStore(1)
			s.UpsertLink(1, 1, 2, 1, 0)
			for _, d := range tc.deltas {
				s.UpdateUtilization(2, 1, d)
				l, _ := s.Link(1, 2)
				assert.GreaterOrEqual(t, l.Utilization, 0.0)
			}
			l, ok := s.Link(1, 2)
			assert.True(t, ok)
			assert.Equal(t, tc.want, l.Utilization)
		})
	}
	t.Run("missing edge", func(t *testing.T) {
		s := topology.NewStore(1)
		s.UpdateUtilization(1, 2, 1)
		assert.False(t, s.HasLink(1, 2))
	})
}

func TestConfiguredCost(t *testing.T) {
	s := topology.NewStore(2)
	assert.Equal(t, 2, s.Cost(1, 2))
	s.SetConfiguredCost(2, 1, 7)
	assert.Equal(t, 7, s.Cost(1, 2))

	s.UpsertLink(1, 1, 2, 1, 0)
	l, _ := s.Link(1, 2)
	assert.Equal(t, 7, l.Cost)

	s.SetConfiguredCost(1, 2, 4)
	l, _ = s.Link(1, 2)
	assert.Equal(t, 4, l.Cost)

	// An explicit cost wins over the configured one.
	s.UpsertLink(1, 1, 2, 1, 9)
	l, _ = s.Link(1, 2)
	assert.Equal(t, 9, l.Cost)

	assert.Equal(t, topology.DefaultLinkCost, topology.NewStore(0).Cost(1, 2))
}

func TestPathString(t *testing.T) {
	p := topology.Path{1, 2, 4}
	assert.Equal(t, "s1 -> s2 -> s4", p.String())
	assert.Equal(t, ofp.DatapathID(1), p.Src())
	assert.Equal(t, ofp.DatapathID(4), p.Dst())
	assert.True(t, p.Contains(2))
	assert.False(t, p.Contains(3))
}
