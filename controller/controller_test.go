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

package controller_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/scionproto/sdnctrl/controller"
	"github.com/scionproto/sdnctrl/controller/flows"
	"github.com/scionproto/sdnctrl/pkg/frame"
	"github.com/scionproto/sdnctrl/pkg/log/testlog"
	"github.com/scionproto/sdnctrl/pkg/metrics"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/ofp/mock_ofp"
	"github.com/scionproto/sdnctrl/pkg/private/prom"
	"github.com/scionproto/sdnctrl/pkg/private/xtest"
	"github.com/scionproto/sdnctrl/pkg/private/xtest/fabric"
	"github.com/scionproto/sdnctrl/private/discovery"
	"github.com/scionproto/sdnctrl/private/path/selection"
	"github.com/scionproto/sdnctrl/private/topology"
)

const hostPort ofp.PortNo = 10

func mac(n int) net.HardwareAddr {
	return xtest.MustParseMAC(fmt.Sprintf("00:00:00:00:00:%02x", n))
}

// ping is an ICMP packet from host src to host dst.
func ping(src, dst int) *frame.Frame {
	return &frame.Frame{
		EthSrc:  mac(src),
		EthDst:  mac(dst),
		EthType: ofp.EthTypeIPv4,
		IPv4: &frame.IPv4{
			Src:   xtest.MustParseAddr(fmt.Sprintf("10.0.0.%d", src)),
			Dst:   xtest.MustParseAddr(fmt.Sprintf("10.0.0.%d", dst)),
			Proto: 1,
		},
	}
}

func forward(src, dst int) ofp.Match {
	return flows.IntentFromFrame(ping(src, dst)).ForwardMatch()
}

// ring builds s1:1-s2:1, s2:2-s3:1, s3:2-s4:1, s4:2-s1:2 with h1 at s1 and h3
// at s3.
func ring(f *fabric.Fabric) {
	f.Wire(1, 1, 2, 1)
	f.Wire(2, 2, 3, 1)
	f.Wire(3, 2, 4, 1)
	f.Wire(4, 2, 1, 2)
	f.AttachHost(mac(1), 1, hostPort)
	f.AttachHost(mac(3), 3, hostPort)
}

// diamond builds s1:1-s2:1, s1:2-s3:1, s2:2-s4:1, s3:2-s4:2 with h1 and h2 at
// s1 and h4 at s4.
func diamond(f *fabric.Fabric) {
	f.Wire(1, 1, 2, 1)
	f.Wire(1, 2, 3, 1)
	f.Wire(2, 2, 4, 1)
	f.Wire(3, 2, 4, 2)
	f.AttachHost(mac(1), 1, hostPort)
	f.AttachHost(mac(2), 1, hostPort+1)
	f.AttachHost(mac(4), 4, hostPort)
}

func start(t *testing.T, cfg controller.Config,
	build func(*fabric.Fabric)) (*controller.Controller, *fabric.Fabric) {

	t.Helper()
	c, err := controller.New(cfg)
	require.NoError(t, err)
	f := fabric.New()
	build(f)
	f.ConnectAll()
	settle(t, c, f)
	// Discovering the links flushed the switches.
	f.ResetFlushes()
	return c, f
}

func settle(t *testing.T, c *controller.Controller, f *fabric.Fabric) {
	t.Helper()
	require.NoError(t, f.Settle(testlog.Context(t), c.HandleEvent))
}

func send(t *testing.T, c *controller.Controller, f *fabric.Fabric, fr *frame.Frame) {
	t.Helper()
	require.NoError(t, f.Send(fr))
	settle(t, c, f)
}

func TestNew(t *testing.T) {
	testCases := map[string]struct {
		cfg       controller.Config
		policy    string
		assertErr assert.ErrorAssertionFunc
	}{
		"default": {
			policy:    selection.NameDeterministic,
			assertErr: assert.NoError,
		},
		"ecmp": {
			cfg:       controller.Config{Policy: selection.NameECMP, Seed: 3},
			policy:    selection.NameECMP,
			assertErr: assert.NoError,
		},
		"least-utilized": {
			cfg:       controller.Config{Policy: selection.NameLeastUtilized},
			policy:    selection.NameLeastUtilized,
			assertErr: assert.NoError,
		},
		"unknown policy": {
			cfg:       controller.Config{Policy: "shortest"},
			assertErr: assert.Error,
		},
		"invalid description": {
			cfg: controller.Config{Description: &topology.Description{
				Nodes: []topology.NodeName{"x1"},
			}},
			assertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			c, err := controller.New(tc.cfg)
			tc.assertErr(t, err)
			if err != nil {
				return
			}
			assert.Equal(t, tc.policy, c.PolicyName())
		})
	}
}

func TestDiscovery(t *testing.T) {
	c, f := start(t, controller.Config{}, ring)

	want := []topology.Link{
		{A: 1, PortA: 1, B: 2, PortB: 1, Cost: 1},
		{A: 1, PortA: 2, B: 4, PortB: 2, Cost: 1},
		{A: 2, PortA: 2, B: 3, PortB: 1, Cost: 1},
		{A: 3, PortA: 2, B: 4, PortB: 1, Cost: 1},
	}
	if diff := cmp.Diff(want, c.Topology.Links()); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
	// Every link is usable from both ends.
	for _, l := range want {
		p, ok := c.Topology.PortToward(l.A, l.B)
		assert.True(t, ok)
		assert.Equal(t, l.PortA, p)
		p, ok = c.Topology.PortToward(l.B, l.A)
		assert.True(t, ok)
		assert.Equal(t, l.PortB, p)
	}
	tableMiss := ofp.Rule{
		Priority: flows.TableMissPriority,
		Actions:  []ofp.Action{ofp.Output(ofp.PortController)},
	}
	snap := c.Snapshot()
	require.Len(t, snap.Switches, 4)
	for _, sw := range snap.Switches {
		assert.True(t, sw.Connected, sw.ID)
		assert.Equal(t, discovery.StateProbing, sw.Discovery, sw.ID)
		assert.Contains(t, f.Switch(sw.ID).Rules(), tableMiss)
	}
	assert.Empty(t, snap.Hosts)
}

func TestDiscoverySeededCosts(t *testing.T) {
	desc := &topology.Description{
		Nodes: []topology.NodeName{"s1", "s2", "s3", "s4"},
		Links: []topology.LinkCost{{Src: "s1", Dst: "s2", Cost: 5}},
	}
	c, _ := start(t, controller.Config{Description: desc}, ring)

	assert.Equal(t, 5, c.Topology.Cost(1, 2))
	l, ok := c.Topology.Link(2, 1)
	require.True(t, ok)
	assert.Equal(t, 5, l.Cost)
	all, _ := c.Paths(1, 2)
	assert.Equal(t, []topology.Path{{1, 4, 3, 2}}, all)
}

func TestScenarioRing(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		c, f := start(t, controller.Config{Policy: selection.NameDeterministic}, ring)

		all, first := c.Paths(1, 3)
		if diff := cmp.Diff([]topology.Path{{1, 2, 3}, {1, 4, 3}}, all); diff != "" {
			t.Fatalf("paths mismatch (-want +got):\n%s", diff)
		}
		for i := 0; i < 10; i++ {
			_, p := c.Paths(1, 3)
			assert.Equal(t, first, p)
		}

		// h3 is unknown yet.
		send(t, c, f, ping(1, 3))
		assert.Equal(t, 1, f.Switch(1).Floods())
		assert.Zero(t, f.Delivered(mac(3)))

		send(t, c, f, ping(3, 1))
		assert.Equal(t, 1, f.Delivered(mac(1)))
		for sw, want := range map[ofp.DatapathID]ofp.PortNo{3: 1, 2: 1, 1: hostPort} {
			out, ok := f.Switch(sw).Output(forward(3, 1))
			assert.True(t, ok, sw)
			assert.Equal(t, want, out, sw)
		}
		_, ok := f.Switch(4).Output(forward(3, 1))
		assert.False(t, ok)

		// The reverse rules forward the answer without the controller.
		send(t, c, f, ping(1, 3))
		assert.Equal(t, 1, f.Delivered(mac(3)))
		assert.Equal(t, 1, f.Switch(1).Floods())
	})

	t.Run("ecmp", func(t *testing.T) {
		c, _ := start(t, controller.Config{Policy: selection.NameECMP, Seed: 1}, ring)

		counts := make(map[string]int)
		for i := 0; i < 1000; i++ {
			_, p := c.Paths(1, 3)
			counts[p.String()]++
		}
		require.Len(t, counts, 2)
		for p, n := range counts {
			assert.InDelta(t, 500, n, 100, p)
		}
	})

	t.Run("ecmp installs", func(t *testing.T) {
		c, f := start(t, controller.Config{Policy: selection.NameECMP, Seed: 7}, ring)
		ctx := testlog.Context(t)
		send(t, c, f, ping(1, 3))

		// The first hop at s3 tells the selected path apart.
		counts := make(map[ofp.PortNo]int)
		for i := 0; i < 200; i++ {
			require.NoError(t, c.HandleEvent(ctx, ofp.PacketObserved{
				ID:     3,
				InPort: hostPort,
				Frame:  ping(3, 1),
			}))
			out, ok := f.Switch(3).Output(forward(3, 1))
			require.True(t, ok)
			counts[out]++
			c.Flows.FlushAll(ctx)
		}
		require.Len(t, counts, 2)
		assert.InDelta(t, 100, counts[1], 40, "via s2")
		assert.InDelta(t, 100, counts[2], 40, "via s4")
		assert.Equal(t, 200, f.Delivered(mac(1)))
	})
}

func TestScenarioLeastUtilized(t *testing.T) {
	c, f := start(t, controller.Config{Policy: selection.NameLeastUtilized}, diamond)

	send(t, c, f, ping(4, 1))
	send(t, c, f, ping(1, 4))
	require.Equal(t, 1, f.Delivered(mac(4)))
	_, ok := f.Switch(2).Output(forward(1, 4))
	require.True(t, ok, "first flow must use the first enumerated path")
	assert.Equal(t, 2.0, c.Topology.PathUtilization(topology.Path{1, 2, 4}))

	send(t, c, f, ping(2, 4))
	assert.Equal(t, 2, f.Delivered(mac(4)))
	_, ok = f.Switch(2).Output(forward(2, 4))
	assert.False(t, ok, "second flow must avoid s2")
	out, ok := f.Switch(3).Output(forward(2, 4))
	assert.True(t, ok)
	assert.Equal(t, ofp.PortNo(2), out)
	assert.Equal(t, 2.0, c.Topology.PathUtilization(topology.Path{1, 3, 4}))
}

func TestScenarioLinkFailure(t *testing.T) {
	c, f := start(t, controller.Config{}, ring)
	send(t, c, f, ping(1, 3))
	send(t, c, f, ping(3, 1))
	require.Equal(t, 1, f.Delivered(mac(1)))
	_, ok := f.Switch(2).Output(forward(3, 1))
	require.True(t, ok)

	// Cutting a link of the installed path flushes all switches.
	require.True(t, f.Cut(1, 2))
	settle(t, c, f)
	assert.False(t, c.Topology.HasLink(1, 2))
	for id := ofp.DatapathID(1); id <= 4; id++ {
		assert.Equal(t, 1, f.Switch(id).Flushes(), id)
		_, ok := f.Switch(id).Output(forward(3, 1))
		assert.False(t, ok, id)
	}

	// The next packet takes the remaining path.
	send(t, c, f, ping(3, 1))
	assert.Equal(t, 2, f.Delivered(mac(1)))
	out, ok := f.Switch(4).Output(forward(3, 1))
	assert.True(t, ok)
	assert.Equal(t, ofp.PortNo(2), out)
	_, ok = f.Switch(2).Output(forward(3, 1))
	assert.False(t, ok)

	// Without any path the packet is flooded.
	require.True(t, f.Cut(4, 1))
	settle(t, c, f)
	send(t, c, f, ping(3, 1))
	assert.Equal(t, 2, f.Delivered(mac(1)))
	assert.Equal(t, 1, f.Switch(3).Floods())

	// Restoring a link flushes again and makes it usable.
	f.Restore(1, 1, 2, 1)
	settle(t, c, f)
	assert.Equal(t, 3, f.Switch(1).Flushes())
	send(t, c, f, ping(3, 1))
	assert.Equal(t, 3, f.Delivered(mac(1)))
	_, ok = f.Switch(2).Output(forward(3, 1))
	assert.True(t, ok)
}

// triangle builds s1:1-s2:1, s2:2-s3:1, s1:2-s3:2 with h1 at s1 and h3 at s3.
func triangle(f *fabric.Fabric) {
	f.Wire(1, 1, 2, 1)
	f.Wire(2, 2, 3, 1)
	f.Wire(1, 2, 3, 2)
	f.AttachHost(mac(1), 1, hostPort)
	f.AttachHost(mac(3), 3, hostPort)
}

func TestScenarioLinkDiscovered(t *testing.T) {
	c, f := start(t, controller.Config{}, triangle)
	require.True(t, f.Cut(1, 3))
	settle(t, c, f)
	send(t, c, f, ping(1, 3))
	send(t, c, f, ping(3, 1))
	require.Equal(t, 1, f.Delivered(mac(1)))
	_, ok := f.Switch(2).Output(forward(3, 1))
	require.True(t, ok, "flow must take the detour")

	// The link comes back without a link up notification. The periodic
	// refresh discovers it and moves the flow to the direct link.
	f.Wire(1, 2, 3, 2)
	c.Discovery.Refresh(testlog.Context(t))
	settle(t, c, f)
	assert.True(t, c.Topology.HasLink(1, 3))
	for id := ofp.DatapathID(1); id <= 3; id++ {
		assert.Equal(t, 2, f.Switch(id).Flushes(), id)
	}
	_, ok = f.Switch(2).Output(forward(3, 1))
	assert.False(t, ok, "detour rule must be flushed")
	all, _ := c.Paths(3, 1)
	assert.Equal(t, []topology.Path{{3, 1}}, all)

	send(t, c, f, ping(3, 1))
	assert.Equal(t, 2, f.Delivered(mac(1)))
	out, ok := f.Switch(3).Output(forward(3, 1))
	assert.True(t, ok)
	assert.Equal(t, ofp.PortNo(2), out)
}

func TestSwitchDisconnected(t *testing.T) {
	c, f := start(t, controller.Config{}, ring)

	f.Disconnect(2)
	settle(t, c, f)
	assert.False(t, c.Topology.HasSwitch(2))
	assert.False(t, c.Topology.HasLink(1, 2))
	assert.False(t, c.Topology.HasLink(2, 3))
	assert.Len(t, c.Topology.Links(), 2)
	assert.Equal(t, 3, c.Sessions.Len())
	assert.Zero(t, f.Switch(2).Flushes())
	for _, id := range []ofp.DatapathID{1, 3, 4} {
		assert.Equal(t, 1, f.Switch(id).Flushes(), id)
	}

	all, _ := c.Paths(1, 3)
	assert.Equal(t, []topology.Path{{1, 4, 3}}, all)
}

func TestLinkEvents(t *testing.T) {
	c, f := start(t, controller.Config{}, ring)
	ctx := context.Background()

	// Unknown links are ignored.
	require.NoError(t, c.HandleEvent(ctx, ofp.LinkDown{A: 1, B: 3}))
	assert.Zero(t, f.Switch(1).Flushes())

	// Known links do not trigger a flush.
	require.NoError(t, c.HandleEvent(ctx, ofp.LinkUp{A: 1, PortA: 1, B: 2, PortB: 1}))
	assert.Zero(t, f.Switch(1).Flushes())

	assert.Error(t, c.HandleEvent(ctx, ofp.LinkUp{A: 1, PortA: 5, B: 1, PortB: 6}))
	assert.Error(t, c.HandleEvent(ctx, ofp.LinkUp{A: 1, PortA: ofp.PortFlood, B: 3,
		PortB: 5}))
	assert.False(t, c.Topology.HasLink(1, 3))
}

type bogusEvent struct{}

func (bogusEvent) Type() ofp.EventType { return ofp.EventType(99) }

func TestHandleEventErrors(t *testing.T) {
	events := metrics.NewTestCounter()
	c, err := controller.New(controller.Config{
		Metrics: controller.Metrics{Events: events},
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, c.HandleEvent(ctx, bogusEvent{}))
	assert.Error(t, c.HandleEvent(ctx, ofp.PacketObserved{ID: 1, InPort: 1}))
	assert.Equal(t, 1.0, metrics.CounterValue(events.With(
		prom.LabelEvent, "packet_observed", prom.LabelResult, prom.ErrNotClassified)))
	assert.Equal(t, 1.0, metrics.CounterValue(events.With(
		prom.LabelEvent, "unknown", prom.LabelResult, prom.ErrNotClassified)))
}

func TestPacketOutEncodesFrame(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c, err := controller.New(controller.Config{})
	require.NoError(t, err)
	ctx := context.Background()

	sess := mock_ofp.NewMockSession(ctrl)
	sess.EXPECT().ID().Return(ofp.DatapathID(7)).AnyTimes()
	sess.EXPECT().InstallRule(gomock.Any(), gomock.Any())
	sess.EXPECT().RequestPorts(gomock.Any())
	require.NoError(t, c.HandleEvent(ctx, ofp.SwitchConnected{Session: sess}))

	fr := ping(1, 2)
	raw, err := frame.Encode(fr)
	require.NoError(t, err)
	sess.EXPECT().PacketOut(gomock.Any(), ofp.PortNo(3),
		[]ofp.Action{ofp.Output(ofp.PortFlood)}, raw)
	require.NoError(t, c.HandleEvent(ctx, ofp.PacketObserved{ID: 7, InPort: 3, Frame: fr}))

	loc, ok := c.Hosts.Lookup(mac(1))
	require.True(t, ok)
	assert.Equal(t, ofp.DatapathID(7), loc.Switch)
	assert.Equal(t, ofp.PortNo(3), loc.Port)
}

func TestNoLearningOnLinkPorts(t *testing.T) {
	c, f := start(t, controller.Config{}, ring)

	// A flooded packet arriving over the s1-s2 link must not bind h9 to s2.
	err := c.HandleEvent(context.Background(), ofp.PacketObserved{
		ID: 2, InPort: 1, Frame: ping(9, 1),
	})
	require.NoError(t, err)
	_, ok := c.Hosts.Lookup(mac(9))
	assert.False(t, ok)
	assert.Equal(t, 1, f.Switch(2).Floods())
}

func TestMetrics(t *testing.T) {
	events := metrics.NewTestCounter()
	packets := metrics.NewTestCounter()
	links := metrics.NewTestGauge()
	hosts := metrics.NewTestGauge()
	c, f := start(t, controller.Config{Metrics: controller.Metrics{
		Events:  events,
		Packets: packets,
		Links:   links,
		Hosts:   hosts,
	}}, ring)

	assert.Equal(t, 4.0, metrics.CounterValue(events.With(
		prom.LabelEvent, "switch_connected", prom.LabelResult, prom.Success)))
	assert.Equal(t, 8.0, metrics.CounterValue(packets.With("decision", "probe")))
	assert.Equal(t, 4.0, metrics.GaugeValue(links))

	send(t, c, f, ping(1, 3))
	send(t, c, f, ping(3, 1))
	assert.Equal(t, 1.0, metrics.CounterValue(packets.With("decision", "flood")))
	assert.Equal(t, 1.0, metrics.CounterValue(packets.With("decision", "install")))
	assert.Equal(t, 2.0, metrics.GaugeValue(hosts))
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, err := controller.New(controller.Config{})
	require.NoError(t, err)
	f := fabric.New()
	ring(f)

	events := make(chan ofp.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, c.Run(context.Background(), events))
	}()
	for id := ofp.DatapathID(1); id <= 4; id++ {
		events <- ofp.SwitchConnected{Session: f.Switch(id)}
	}
	close(events)
	xtest.AssertReadReturnsBefore(t, done, time.Second)
	assert.Equal(t, 4, c.Sessions.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, c.Run(ctx, make(chan ofp.Event)))
	}()
	cancel()
	xtest.AssertReadReturnsBefore(t, done, time.Second)
}

func TestStartDiscovery(t *testing.T) {
	c, f := start(t, controller.Config{}, ring)
	require.Zero(t, f.Pending())

	r := c.StartDiscovery(10 * time.Millisecond)
	assert.Eventually(t, func() bool { return f.Pending() >= 4 },
		time.Second, 5*time.Millisecond)
	r.Kill()

	// Refreshing re-probes but discovers nothing new.
	settle(t, c, f)
	assert.Len(t, c.Topology.Links(), 4)
}

// routedNet is s1:2-s2:2 with h1 (10.0.1.2) at s1:1 and h2 (10.0.2.2) at
// s2:1. Both switches route between their subnets.
const routedNet = `{
	"switches": [
		{"name": "s1", "interfaces": [
			{"name": "s1-eth1", "ip": "10.0.1.1", "subnet": "10.0.1.0/24",
			 "mac": "00:00:00:00:01:01", "neighbor": "h1"},
			{"name": "s1-eth2", "ip": "10.0.12.1", "subnet": "10.0.12.0/24",
			 "mac": "00:00:00:00:01:02", "neighbor": "s2"}]},
		{"name": "s2", "interfaces": [
			{"name": "s2-eth1", "ip": "10.0.2.1", "subnet": "10.0.2.0/24",
			 "mac": "00:00:00:00:02:01", "neighbor": "h2"},
			{"name": "s2-eth2", "ip": "10.0.12.2", "subnet": "10.0.12.0/24",
			 "mac": "00:00:00:00:02:02", "neighbor": "s1"}]}
	],
	"hosts": [
		{"name": "h1", "ip": "10.0.1.2", "mac": "00:00:00:00:00:01"},
		{"name": "h2", "ip": "10.0.2.2", "mac": "00:00:00:00:00:02"}
	]
}`

func routed(f *fabric.Fabric) {
	f.Wire(1, 2, 2, 2)
	f.AttachHost(mac(1), 1, 1)
	f.AttachHost(mac(2), 2, 1)
}

func TestNewRouting(t *testing.T) {
	d, err := topology.ParseDescription([]byte(routedNet))
	require.NoError(t, err)
	testCases := map[string]struct {
		cfg       controller.Config
		assertErr assert.ErrorAssertionFunc
	}{
		"switching": {
			cfg:       controller.Config{Routing: controller.RoutingL2},
			assertErr: assert.NoError,
		},
		"routing": {
			cfg:       controller.Config{Routing: controller.RoutingL3, Description: d},
			assertErr: assert.NoError,
		},
		"routing without description": {
			cfg:       controller.Config{Routing: controller.RoutingL3},
			assertErr: assert.Error,
		},
		"routing without interfaces": {
			cfg: controller.Config{
				Routing:     controller.RoutingL3,
				Description: &topology.Description{Nodes: []topology.NodeName{"s1"}},
			},
			assertErr: assert.Error,
		},
		"unknown mode": {
			cfg:       controller.Config{Routing: "l4"},
			assertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := controller.New(tc.cfg)
			tc.assertErr(t, err)
		})
	}
}

func TestScenarioRouted(t *testing.T) {
	d, err := topology.ParseDescription([]byte(routedNet))
	require.NoError(t, err)
	packets := metrics.NewTestCounter()
	c, f := start(t, controller.Config{
		Routing:     controller.RoutingL3,
		Description: d,
		Metrics:     controller.Metrics{Packets: packets},
	}, routed)
	require.True(t, c.Topology.HasLink(1, 2))
	addr := xtest.MustParseAddr
	gw1 := xtest.MustParseMAC("00:00:00:00:01:01")
	gw2 := xtest.MustParseMAC("00:00:00:00:02:01")
	decisions := func(d string) float64 {
		return metrics.CounterValue(packets.With("decision", d))
	}

	// h1 resolves its gateway.
	send(t, c, f, &frame.Frame{
		EthSrc:  mac(1),
		EthDst:  xtest.MustParseMAC("ff:ff:ff:ff:ff:ff"),
		EthType: ofp.EthTypeARP,
		ARP: &frame.ARP{
			Op:       frame.ARPRequest,
			SenderHW: mac(1),
			SenderIP: addr("10.0.1.2"),
			TargetIP: addr("10.0.1.1"),
		},
	})
	got := f.Received(mac(1))
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ARP)
	assert.Equal(t, frame.ARPReply, got[0].ARP.Op)
	assert.Equal(t, gw1, got[0].ARP.SenderHW)
	assert.Equal(t, addr("10.0.1.1"), got[0].ARP.SenderIP)
	assert.Equal(t, 1.0, decisions("arp_reply"))

	// The far interface of the next router answers pings.
	send(t, c, f, &frame.Frame{
		EthSrc:  mac(1),
		EthDst:  gw1,
		EthType: ofp.EthTypeIPv4,
		IPv4:    &frame.IPv4{Src: addr("10.0.1.2"), Dst: addr("10.0.2.1"), Proto: 1},
		ICMP:    &frame.ICMP{Type: frame.ICMPEchoRequest, ID: 3, Seq: 1},
		Payload: []byte("ping"),
	})
	got = f.Received(mac(1))
	require.Len(t, got, 2)
	require.NotNil(t, got[1].ICMP)
	assert.Equal(t, frame.ICMPEchoReply, got[1].ICMP.Type)
	assert.Equal(t, addr("10.0.2.1"), got[1].IPv4.Src)
	assert.Equal(t, []byte("ping"), got[1].Payload)
	assert.Equal(t, 1.0, decisions("echo_reply"))

	// Traffic between the subnets is routed hop by hop.
	send(t, c, f, &frame.Frame{
		EthSrc:  mac(1),
		EthDst:  gw1,
		EthType: ofp.EthTypeIPv4,
		IPv4:    &frame.IPv4{Src: addr("10.0.1.2"), Dst: addr("10.0.2.2"), Proto: 1},
	})
	got = f.Received(mac(2))
	require.Len(t, got, 1)
	assert.Equal(t, gw2, got[0].EthSrc)
	assert.Equal(t, mac(2), got[0].EthDst)
	assert.Equal(t, uint8(frame.DefaultTTL-2), got[0].IPv4.TTL)
	assert.Equal(t, 1.0, decisions("route"))

	toH2 := ofp.Match{EthType: ofp.EthTypeIPv4, IPDst: addr("10.0.2.2")}
	toH1 := ofp.Match{EthType: ofp.EthTypeIPv4, IPDst: addr("10.0.1.2")}
	for sw, want := range map[ofp.DatapathID]map[string]ofp.PortNo{
		1: {toH2.String(): 2, toH1.String(): 1},
		2: {toH2.String(): 1, toH1.String(): 2},
	} {
		for _, m := range []ofp.Match{toH2, toH1} {
			out, ok := f.Switch(sw).Output(m)
			assert.True(t, ok, "%s %s", sw, m)
			assert.Equal(t, want[m.String()], out, "%s %s", sw, m)
		}
	}

	// The answer takes the installed reverse route.
	send(t, c, f, &frame.Frame{
		EthSrc:  mac(2),
		EthDst:  gw2,
		EthType: ofp.EthTypeIPv4,
		IPv4:    &frame.IPv4{Src: addr("10.0.2.2"), Dst: addr("10.0.1.2"), Proto: 1},
	})
	got = f.Received(mac(1))
	require.Len(t, got, 3)
	assert.Equal(t, gw1, got[2].EthSrc)
	assert.Equal(t, 1.0, decisions("route"))

	// Addresses outside the routed subnets are switched.
	send(t, c, f, &frame.Frame{
		EthSrc:  mac(1),
		EthDst:  mac(2),
		EthType: ofp.EthTypeIPv4,
		IPv4: &frame.IPv4{
			Src: addr("192.168.0.1"), Dst: addr("192.168.0.2"), Proto: 1,
		},
	})
	assert.Equal(t, 1, f.Switch(1).Floods())
	assert.Equal(t, 1.0, decisions("flood"))
}
