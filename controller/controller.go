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

// Package controller binds the topology store, neighbor discovery, host
// tracking, path selection and flow installation to the events emitted by
// the switches.
//
// All events are handled one at a time. The controller itself holds no
// forwarding state besides what its components keep, so handlers can be
// reasoned about as a single logical thread. Concurrent readers, such as the
// management API, only access the components, which guard their own state.
package controller

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/scionproto/sdnctrl/controller/flows"
	"github.com/scionproto/sdnctrl/pkg/frame"
	"github.com/scionproto/sdnctrl/pkg/log"
	"github.com/scionproto/sdnctrl/pkg/metrics"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/prom"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/discovery"
	"github.com/scionproto/sdnctrl/private/hostloc"
	"github.com/scionproto/sdnctrl/private/l3"
	"github.com/scionproto/sdnctrl/private/path/selection"
	"github.com/scionproto/sdnctrl/private/periodic"
	"github.com/scionproto/sdnctrl/private/topology"
)

// Config configures a controller.
type Config struct {
	// Policy is the name of the path selection policy. If empty, the
	// deterministic policy is used.
	Policy string
	// Seed seeds the random source of the ecmp policy. Zero seeds from the
	// current time.
	Seed int64
	// DefaultLinkCost is the cost of links without configured cost. Values
	// below 1 use topology.DefaultLinkCost.
	DefaultLinkCost int
	// FlowPriority is the priority of installed flow rules. Zero uses
	// flows.DefaultPriority.
	FlowPriority uint16
	// FlowIdleTimeout and FlowHardTimeout are the timeouts of installed flow
	// rules in seconds.
	FlowIdleTimeout uint16
	FlowHardTimeout uint16
	// Routing is the forwarding mode, RoutingL2 or RoutingL3. Empty means
	// RoutingL2.
	Routing string
	// Description optionally seeds the topology store with switches and
	// configured link costs. RoutingL3 takes the router interfaces and hosts
	// from it.
	Description *topology.Description
	Metrics     Metrics
}

// Forwarding modes.
const (
	// RoutingL2 switches on Ethernet addresses of learned hosts.
	RoutingL2 = "l2"
	// RoutingL3 routes IPv4 between the subnets of configured router
	// interfaces. Traffic the routers do not know is switched.
	RoutingL3 = "l3"
)

type handlerFunc func(ctx context.Context, ev ofp.Event) error

// Controller reacts to switch and topology events.
type Controller struct {
	Topology  *topology.Store
	Hosts     *hostloc.Tracker
	Policy    selection.Policy
	Discovery *discovery.Discoverer
	Flows     *flows.Orchestrator
	Sessions  *ofp.Registry
	// Routing is nil unless the controller routes IPv4.
	Routing *l3.Plan

	metrics  Metrics
	handlers map[ofp.EventType]handlerFunc
	// mu serializes the event handlers.
	mu sync.Mutex
}

// New creates a controller from the configuration.
func New(cfg Config) (*Controller, error) {
	cost := cfg.DefaultLinkCost
	if cost < 1 {
		cost = topology.DefaultLinkCost
	}
	store := topology.NewStore(cost)
	if cfg.Description != nil {
		if err := cfg.Description.Seed(store); err != nil {
			return nil, serrors.Wrap("seeding topology", err)
		}
	}
	name := cfg.Policy
	if name == "" {
		name = selection.NameDeterministic
	}
	var src rand.Source
	if cfg.Seed != 0 {
		src = rand.NewSource(cfg.Seed)
	}
	policy, err := selection.New(name, selection.Options{
		Source:      src,
		Utilization: store.PathUtilization,
	})
	if err != nil {
		return nil, err
	}
	var plan *l3.Plan
	switch cfg.Routing {
	case "", RoutingL2:
	case RoutingL3:
		if cfg.Description == nil {
			return nil, serrors.New("l3 routing requires a topology description")
		}
		if plan, err = l3.NewPlan(cfg.Description); err != nil {
			return nil, serrors.Wrap("building routing plan", err)
		}
	default:
		return nil, serrors.New("unknown routing mode", "routing", cfg.Routing)
	}
	sessions := ofp.NewRegistry()
	hosts := hostloc.NewTracker()
	c := &Controller{
		Topology: store,
		Hosts:    hosts,
		Policy:   policy,
		Sessions: sessions,
		Routing:  plan,
		Discovery: &discovery.Discoverer{
			Store:    store,
			Sessions: sessions,
			Metrics:  cfg.Metrics.Discovery,
		},
		Flows: &flows.Orchestrator{
			Topology:         store,
			Hosts:            hosts,
			Sessions:         sessions,
			TrackUtilization: name == selection.NameLeastUtilized,
			Priority:         cfg.FlowPriority,
			IdleTimeout:      cfg.FlowIdleTimeout,
			HardTimeout:      cfg.FlowHardTimeout,
			Metrics:          cfg.Metrics.Flows,
		},
		metrics: cfg.Metrics,
	}
	c.handlers = map[ofp.EventType]handlerFunc{
		ofp.EventSwitchConnected:    c.switchConnected,
		ofp.EventSwitchDisconnected: c.switchDisconnected,
		ofp.EventPortListReceived:   c.portListReceived,
		ofp.EventPacketObserved:     c.packetObserved,
		ofp.EventLinkDown:           c.linkDown,
		ofp.EventLinkUp:             c.linkUp,
	}
	c.updateGauges()
	return c, nil
}

// HandleEvent dispatches the event to its handler. Handlers never run
// concurrently. The returned error is informational, the controller state is
// consistent in any case.
func (c *Controller) HandleEvent(ctx context.Context, ev ofp.Event) error {
	h, ok := c.handlers[ev.Type()]
	if !ok {
		metrics.CounterInc(metrics.CounterWith(c.metrics.Events,
			prom.LabelEvent, ev.Type().String(), prom.LabelResult, prom.ErrNotClassified))
		return serrors.New("unsupported event", "type", ev.Type())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := h(ctx, ev)
	result := prom.Success
	if err != nil {
		result = prom.ErrNotClassified
	}
	metrics.CounterInc(metrics.CounterWith(c.metrics.Events,
		prom.LabelEvent, ev.Type().String(), prom.LabelResult, result))
	c.updateGauges()
	return err
}

// Run handles the events from the channel until the channel is closed or the
// context is done. Handler errors are logged.
func (c *Controller) Run(ctx context.Context, events <-chan ofp.Event) error {
	logger := log.FromCtx(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.HandleEvent(ctx, ev); err != nil {
				logger.Info("Handling event failed", "event", ev.Type(), "err", err)
			}
		}
	}
}

// StartDiscovery starts the periodic discovery refresh. The caller must Kill
// the returned runner on shutdown.
func (c *Controller) StartDiscovery(interval time.Duration) *periodic.Runner {
	return periodic.StartWithMetrics(&discovery.Task{Discoverer: c.Discovery},
		c.metrics.Refresher, interval, interval)
}

func (c *Controller) switchConnected(ctx context.Context, ev ofp.Event) error {
	sess := ev.(ofp.SwitchConnected).Session
	logger := log.FromCtx(ctx)
	if c.Sessions.Add(sess) {
		logger.Info("Switch reconnected, replaced session", "switch", sess.ID())
	} else {
		logger.Info("Switch connected", "switch", sess.ID())
	}
	var errs serrors.List
	if err := c.Flows.InstallTableMiss(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	if err := c.Discovery.SwitchConnected(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	return errs.ToError()
}

func (c *Controller) switchDisconnected(ctx context.Context, ev ofp.Event) error {
	id := ev.(ofp.SwitchDisconnected).ID
	log.FromCtx(ctx).Info("Switch disconnected", "switch", id)
	c.Sessions.Remove(id)
	c.Discovery.SwitchDisconnected(ctx, id)
	if removed := c.Topology.RemoveSwitch(id); len(removed) > 0 {
		c.invalidate(ctx, "switch_disconnected", removed...)
	}
	return nil
}

func (c *Controller) portListReceived(ctx context.Context, ev ofp.Event) error {
	pl := ev.(ofp.PortListReceived)
	if removed := c.Discovery.PortsReceived(ctx, pl.ID, pl.Ports); len(removed) > 0 {
		c.invalidate(ctx, "port_removed", removed...)
	}
	return nil
}

func (c *Controller) linkDown(ctx context.Context, ev ofp.Event) error {
	ld := ev.(ofp.LinkDown)
	l, ok := c.Topology.Link(ld.A, ld.B)
	if !ok {
		log.FromCtx(ctx).Debug("Ignoring link down of unknown link", "a", ld.A, "b", ld.B)
		return nil
	}
	c.Topology.RemoveLink(ld.A, ld.B)
	c.invalidate(ctx, "link_down", l)
	return nil
}

func (c *Controller) linkUp(ctx context.Context, ev ofp.Event) error {
	lu := ev.(ofp.LinkUp)
	if lu.A == lu.B {
		return serrors.New("link to self", "switch", lu.A)
	}
	if lu.PortA.Reserved() || lu.PortB.Reserved() {
		return serrors.New("link on reserved port", "a", lu.A, "port_a", lu.PortA,
			"b", lu.B, "port_b", lu.PortB)
	}
	existed := c.Topology.HasLink(lu.A, lu.B)
	c.Topology.UpsertLink(lu.A, lu.PortA, lu.B, lu.PortB, 0)
	if existed {
		return nil
	}
	l, _ := c.Topology.Link(lu.A, lu.B)
	c.invalidate(ctx, "link_up", l)
	return nil
}

// invalidate flushes the flow rules of the whole network after the topology
// changed. The next packet of every flow recomputes its path.
func (c *Controller) invalidate(ctx context.Context, reason string, links ...topology.Link) {
	log.FromCtx(ctx).Info("Topology changed, flushing flow rules", "reason", reason,
		"links", links)
	c.Flows.FlushAll(ctx)
}

func (c *Controller) packetObserved(ctx context.Context, ev ofp.Event) error {
	pkt := ev.(ofp.PacketObserved)
	f := pkt.Frame
	if f == nil {
		return serrors.New("packet without decoded frame", "switch", pkt.ID,
			"in_port", pkt.InPort)
	}
	if f.IsProbe() {
		c.countPacket(decisionProbe)
		// A new link may shorten installed paths.
		if l, ok := c.Discovery.ProbeObserved(ctx, pkt.ID, pkt.InPort, f.Probe); ok {
			c.invalidate(ctx, "link_discovered", l)
		}
		return nil
	}
	logger := log.FromCtx(ctx)
	if !c.Topology.IsLinkPort(pkt.ID, pkt.InPort) {
		if c.Hosts.Learn(f.EthSrc, pkt.ID, pkt.InPort) {
			logger.Info("Host learned", "addr", f.EthSrc, "switch", pkt.ID,
				"port", pkt.InPort)
		}
	}
	if c.Routing != nil {
		if handled, err := c.route(ctx, pkt); handled {
			return err
		}
	}
	src, srcOK := c.Hosts.Lookup(f.EthSrc)
	dst, dstOK := c.Hosts.Lookup(f.EthDst)
	if !srcOK || !dstOK {
		return c.flood(ctx, pkt)
	}
	path := c.Policy.Select(c.Topology.AllShortestPaths(src.Switch, dst.Switch))
	if len(path) == 0 {
		logger.Debug("No path, flooding", "src", src, "dst", dst)
		return c.flood(ctx, pkt)
	}
	res, err := c.Flows.Install(ctx, path, flows.IntentFromFrame(f))
	if err != nil {
		logger.Info("Flow installation failed, flooding", "path", path, "err", err)
		return c.flood(ctx, pkt)
	}
	if !res.Complete() {
		logger.Info("Flow partially installed", "path", path, "skipped", res.Skipped)
	}
	if !path.Contains(pkt.ID) {
		return c.flood(ctx, pkt)
	}
	c.countPacket(decisionInstall)
	return c.packetOut(ctx, pkt, ofp.PortTable)
}

// route handles the packet as the routers would. It reports false for packets
// left to switching.
func (c *Controller) route(ctx context.Context, pkt ofp.PacketObserved) (bool, error) {
	f := pkt.Frame
	if rep, ok := c.Routing.ARPReply(f); ok {
		c.countPacket(decisionARPReply)
		return true, c.reply(ctx, pkt, rep)
	}
	if f.IPv4 == nil {
		return false, nil
	}
	if rep, ok := c.Routing.EchoReply(f); ok {
		c.countPacket(decisionEchoReply)
		return true, c.reply(ctx, pkt, rep)
	}
	logger := log.FromCtx(ctx)
	src, srcOK := c.Routing.RouterFor(f.IPv4.Src)
	dst, dstOK := c.Routing.RouterFor(f.IPv4.Dst)
	if !srcOK || !dstOK {
		logger.Debug("No router for addresses, switching", "src", f.IPv4.Src,
			"dst", f.IPv4.Dst)
		return false, nil
	}
	path := c.Policy.Select(c.Topology.AllShortestPaths(src, dst))
	if len(path) == 0 {
		logger.Info("No path between routers, dropping", "src", src, "dst", dst)
		c.countPacket(decisionDrop)
		return true, nil
	}
	back := slices.Clone(path)
	slices.Reverse(back)
	for _, r := range []l3.Route{
		c.Routing.Route(path, f.IPv4.Dst),
		c.Routing.Route(back, f.IPv4.Src),
	} {
		if res := c.Flows.InstallRoute(ctx, r); !res.Complete() {
			logger.Info("Route partially installed", "dst", r.Dst, "skipped", res.Skipped)
		}
	}
	if !path.Contains(pkt.ID) {
		logger.Debug("Packet observed off the route, dropping", "switch", pkt.ID,
			"path", path)
		c.countPacket(decisionDrop)
		return true, nil
	}
	c.countPacket(decisionRoute)
	return true, c.packetOut(ctx, pkt, ofp.PortTable)
}

// reply sends a frame built by the controller out of the port the request
// arrived on.
func (c *Controller) reply(ctx context.Context, pkt ofp.PacketObserved,
	rep *frame.Frame) error {

	sess, ok := c.Sessions.Get(pkt.ID)
	if !ok {
		return serrors.New("no session for reply", "switch", pkt.ID)
	}
	data, err := frame.Encode(rep)
	if err != nil {
		return serrors.Wrap("encoding reply", err, "switch", pkt.ID)
	}
	err = sess.PacketOut(ctx, ofp.PortController, []ofp.Action{ofp.Output(pkt.InPort)}, data)
	if err != nil {
		return serrors.Wrap("sending reply", err, "switch", pkt.ID, "port", pkt.InPort)
	}
	return nil
}

func (c *Controller) flood(ctx context.Context, pkt ofp.PacketObserved) error {
	c.countPacket(decisionFlood)
	return c.packetOut(ctx, pkt, ofp.PortFlood)
}

// packetOut sends the observed packet back into the switch it was observed
// at. The raw packet is re-encoded from the decoded frame if the transport did
// not keep it.
func (c *Controller) packetOut(ctx context.Context, pkt ofp.PacketObserved,
	port ofp.PortNo) error {

	sess, ok := c.Sessions.Get(pkt.ID)
	if !ok {
		return serrors.New("no session for packet out", "switch", pkt.ID)
	}
	data := pkt.Data
	if len(data) == 0 {
		var err error
		if data, err = frame.Encode(pkt.Frame); err != nil {
			return serrors.Wrap("encoding packet out", err, "switch", pkt.ID)
		}
	}
	err := sess.PacketOut(ctx, pkt.InPort, []ofp.Action{ofp.Output(port)}, data)
	if err != nil {
		return serrors.Wrap("sending packet out", err, "switch", pkt.ID, "port", port)
	}
	return nil
}

func (c *Controller) countPacket(decision string) {
	metrics.CounterInc(metrics.CounterWith(c.metrics.Packets, labelDecision, decision))
}

func (c *Controller) updateGauges() {
	metrics.GaugeSet(c.metrics.Links, float64(len(c.Topology.Links())))
	metrics.GaugeSet(c.metrics.Hosts, float64(c.Hosts.Len()))
	metrics.GaugeSet(c.metrics.Switches, float64(c.Sessions.Len()))
}
