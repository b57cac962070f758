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

package discovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/sdnctrl/pkg/frame"
	"github.com/scionproto/sdnctrl/pkg/metrics"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/ofp/mock_ofp"
	"github.com/scionproto/sdnctrl/pkg/private/prom"
	"github.com/scionproto/sdnctrl/private/discovery"
	"github.com/scionproto/sdnctrl/private/topology"
)

func newSession(ctrl *gomock.Controller, id ofp.DatapathID) *mock_ofp.MockSession {
	s := mock_ofp.NewMockSession(ctrl)
	s.EXPECT().ID().Return(id).AnyTimes()
	return s
}

func probePayload(t *testing.T, id ofp.DatapathID, port ofp.PortNo) []byte {
	raw, err := discovery.EncodeProbe(id, port)
	require.NoError(t, err)
	f, err := frame.Decode(raw)
	require.NoError(t, err)
	return f.Probe
}

func TestDiscovererLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	reg := ofp.NewRegistry()
	s1 := newSession(ctrl, 1)
	reg.Add(s1)
	sent := metrics.NewTestCounter()
	d := &discovery.Discoverer{
		Store:    topology.NewStore(1),
		Sessions: reg,
		Metrics:  discovery.Metrics{ProbesSent: sent},
	}
	assert.Equal(t, discovery.StateUnknown, d.State(1))

	s1.EXPECT().RequestPorts(gomock.Any())
	require.NoError(t, d.SwitchConnected(ctx, s1))
	assert.Equal(t, discovery.StatePortsKnown, d.State(1))
	assert.True(t, d.Store.HasSwitch(1))

	var probedPorts []ofp.PortNo
	s1.EXPECT().PacketOut(gomock.Any(), ofp.PortController, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ ofp.PortNo, actions []ofp.Action,
			data []byte) error {

			require.Len(t, actions, 1)
			f, err := frame.Decode(data)
			require.NoError(t, err)
			id, port, err := discovery.DecodeProbe(f.Probe)
			require.NoError(t, err)
			assert.Equal(t, ofp.DatapathID(1), id)
			assert.Equal(t, actions[0].Port, port)
			probedPorts = append(probedPorts, port)
			return nil
		}).Times(2)
	removed := d.PortsReceived(ctx, 1, []ofp.Port{
		{No: 1},
		{No: 2},
		{No: 3, Down: true},
		{No: ofp.PortLocal},
	})
	assert.Empty(t, removed)
	assert.Equal(t, []ofp.PortNo{1, 2}, probedPorts)
	assert.Equal(t, discovery.StateProbing, d.State(1))
	assert.Equal(t, 2.0, metrics.CounterValue(
		sent.With(prom.LabelResult, prom.Success)))

	s1.EXPECT().RequestPorts(gomock.Any())
	d.Refresh(ctx)
	assert.Equal(t, discovery.StateProbing, d.State(1))

	d.SwitchDisconnected(ctx, 1)
	assert.Equal(t, discovery.StateUnknown, d.State(1))
	// No more requests after disconnect.
	d.Refresh(ctx)
}

func TestDiscovererPortsOfUnknownSwitch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := &discovery.Discoverer{
		Store:    topology.NewStore(1),
		Sessions: ofp.NewRegistry(),
	}
	assert.Nil(t, d.PortsReceived(context.Background(), 7, []ofp.Port{{No: 1}}))
	assert.False(t, d.Store.HasSwitch(7))
}

func TestDiscovererRemovedLinks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	reg := ofp.NewRegistry()
	s1 := newSession(ctrl, 1)
	reg.Add(s1)
	d := &discovery.Discoverer{Store: topology.NewStore(1), Sessions: reg}
	d.Store.UpsertLink(1, 5, 2, 1, 0)

	s1.EXPECT().RequestPorts(gomock.Any())
	require.NoError(t, d.SwitchConnected(ctx, s1))
	s1.EXPECT().PacketOut(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())
	removed := d.PortsReceived(ctx, 1, []ofp.Port{{No: 1}})
	assert.Equal(t, []topology.Link{{A: 1, PortA: 5, B: 2, PortB: 1, Cost: 1}}, removed)
}

func TestDiscovererConnectError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s1 := newSession(ctrl, 1)
	requests := metrics.NewTestCounter()
	d := &discovery.Discoverer{
		Store:    topology.NewStore(1),
		Sessions: ofp.NewRegistry(),
		Metrics:  discovery.Metrics{PortRequests: requests},
	}
	s1.EXPECT().RequestPorts(gomock.Any()).Return(errors.New("connection reset"))
	assert.Error(t, d.SwitchConnected(context.Background(), s1))
	assert.Equal(t, 1.0, metrics.CounterValue(
		requests.With(prom.LabelResult, prom.ErrNetwork)))
}

func TestProbeObserved(t *testing.T) {
	testCases := map[string]struct {
		observer ofp.DatapathID
		inPort   ofp.PortNo
		payload  func(t *testing.T) []byte
		wantNew  bool
		wantLink bool
		reason   string
	}{
		"valid": {
			observer: 2,
			inPort:   3,
			payload:  func(t *testing.T) []byte { return probePayload(t, 1, 4) },
			wantNew:  true,
			wantLink: true,
		},
		"malformed": {
			observer: 2,
			inPort:   3,
			payload:  func(*testing.T) []byte { return []byte{0x01, 0x02, 0x03} },
			reason:   "malformed",
		},
		"loop": {
			observer: 1,
			inPort:   3,
			payload:  func(t *testing.T) []byte { return probePayload(t, 1, 4) },
			reason:   "loop",
		},
		"unknown origin": {
			observer: 2,
			inPort:   3,
			payload:  func(t *testing.T) []byte { return probePayload(t, 9, 4) },
			reason:   "unknown_origin",
		},
		"reserved port": {
			observer: 2,
			inPort:   ofp.PortLocal,
			payload:  func(t *testing.T) []byte { return probePayload(t, 1, 4) },
			reason:   "reserved_port",
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			received := metrics.NewTestCounter()
			d := &discovery.Discoverer{
				Store:    topology.NewStore(1),
				Sessions: ofp.NewRegistry(),
				Metrics:  discovery.Metrics{ProbesReceived: received},
			}
			d.Store.AddSwitch(1)
			d.Store.AddSwitch(2)

			l, isNew := d.ProbeObserved(context.Background(), tc.observer, tc.inPort,
				tc.payload(t))
			assert.Equal(t, tc.wantNew, isNew)
			if isNew {
				assert.Equal(t, topology.Link{A: 2, PortA: 3, B: 1, PortB: 4, Cost: 1}, l)
			}
			assert.Equal(t, tc.wantLink, d.Store.HasLink(1, 2))
			if tc.reason != "" {
				assert.Equal(t, 1.0, metrics.CounterValue(received.With(
					prom.LabelResult, prom.ErrNotClassified, prom.LabelReason, tc.reason)))
			}
		})
	}
}

func TestProbeObservedBothDirections(t *testing.T) {
	ctx := context.Background()
	d := &discovery.Discoverer{Store: topology.NewStore(1), Sessions: ofp.NewRegistry()}
	d.Store.AddSwitch(1)
	d.Store.AddSwitch(2)

	// s1:4 <-> s2:3, observed from s2 first.
	_, isNew := d.ProbeObserved(ctx, 2, 3, probePayload(t, 1, 4))
	assert.True(t, isNew)
	_, isNew = d.ProbeObserved(ctx, 1, 4, probePayload(t, 2, 3))
	assert.False(t, isNew)

	want := topology.Link{A: 1, PortA: 4, B: 2, PortB: 3, Cost: 1}
	assert.Equal(t, []topology.Link{want}, d.Store.Links())
	p, ok := d.Store.PortToward(2, 1)
	assert.True(t, ok)
	assert.Equal(t, ofp.PortNo(3), p)
}

func TestTask(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reg := ofp.NewRegistry()
	s1 := newSession(ctrl, 1)
	reg.Add(s1)
	d := &discovery.Discoverer{Store: topology.NewStore(1), Sessions: reg}
	s1.EXPECT().RequestPorts(gomock.Any()).Times(2)
	require.NoError(t, d.SwitchConnected(context.Background(), s1))

	task := &discovery.Task{Discoverer: d}
	assert.Equal(t, "discovery_refresher", task.Name())
	task.Run(context.Background())
}
