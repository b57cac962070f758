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

// Package discovery finds the links between switches.
//
// Every usable port of every connected switch periodically emits a probe that
// carries the (switch, port) it was sent from. When a neighboring switch
// hands the probe to the controller, the observation is turned into a link in
// the topology store. Each direction of a link is written independently, the
// store merges them.
//
// The per-switch life cycle is
//
//	unknown --connected--> ports_known --port_list--> probing
//
// A refresh re-requests the port list, which in turn re-emits the probes.
package discovery

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/scionproto/sdnctrl/pkg/log"
	"github.com/scionproto/sdnctrl/pkg/metrics"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/prom"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/topology"
)

// Reasons for discarded probes.
const (
	reasonMalformed     = "malformed"
	reasonLoop          = "loop"
	reasonUnknownOrigin = "unknown_origin"
	reasonReservedPort  = "reserved_port"
)

// SessionLookup resolves the session of a connected switch.
type SessionLookup interface {
	Get(id ofp.DatapathID) (ofp.Session, bool)
}

// Metrics are the metrics of the discoverer. All fields are optional.
type Metrics struct {
	// ProbesSent counts emitted probes, labeled by result.
	ProbesSent metrics.Counter
	// ProbesReceived counts observed probes, labeled by result and reason.
	ProbesReceived metrics.Counter
	// PortRequests counts port list requests, labeled by result.
	PortRequests metrics.Counter
}

// Discoverer drives the discovery state machine of all switches.
type Discoverer struct {
	Store    *topology.Store
	Sessions SessionLookup
	Metrics  Metrics

	mu     sync.Mutex
	states map[ofp.DatapathID]State
}

// State returns the discovery state of the switch.
func (d *Discoverer) State(id ofp.DatapathID) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[id]
}

// transition applies ev to the state of id. It returns false if ev is not
// valid in the current state.
func (d *Discoverer) transition(ctx context.Context, id ofp.DatapathID, ev event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.states == nil {
		d.states = make(map[ofp.DatapathID]State)
	}
	from := d.states[id]
	to, ok := next(from, ev)
	if !ok {
		log.FromCtx(ctx).Debug("Ignoring discovery event", "switch", id, "event", ev,
			"state", from)
		return false
	}
	if to == StateUnknown {
		delete(d.states, id)
	} else {
		d.states[id] = to
	}
	if from != to {
		log.FromCtx(ctx).Debug("Discovery state changed", "switch", id, "from", from,
			"to", to)
	}
	return true
}

// SwitchConnected starts discovery on the switch by requesting its port
// list.
func (d *Discoverer) SwitchConnected(ctx context.Context, sess ofp.Session) error {
	d.Store.AddSwitch(sess.ID())
	d.transition(ctx, sess.ID(), eventConnected)
	return d.requestPorts(ctx, sess)
}

func (d *Discoverer) requestPorts(ctx context.Context, sess ofp.Session) error {
	if err := sess.RequestPorts(ctx); err != nil {
		metrics.CounterInc(metrics.CounterWith(d.Metrics.PortRequests,
			prom.LabelResult, prom.ErrNetwork))
		return serrors.Wrap("requesting port list", err, "switch", sess.ID())
	}
	metrics.CounterInc(metrics.CounterWith(d.Metrics.PortRequests,
		prom.LabelResult, prom.Success))
	return nil
}

// PortsReceived records the port list of the switch and emits one probe per
// usable port. It returns the links that were removed because their port is
// no longer active. Port lists of switches that are not connected are
// ignored.
func (d *Discoverer) PortsReceived(ctx context.Context, id ofp.DatapathID,
	ports []ofp.Port) []topology.Link {

	logger := log.FromCtx(ctx)
	if !d.transition(ctx, id, eventPortList) {
		return nil
	}
	removed := d.Store.SetPorts(id, ports)
	sess, ok := d.Sessions.Get(id)
	if !ok {
		logger.Info("No session for switch, not probing", "switch", id)
		return removed
	}
	for _, p := range ports {
		if p.No.Reserved() || p.Down {
			continue
		}
		if err := d.sendProbe(ctx, sess, p.No); err != nil {
			logger.Info("Failed to send probe", "switch", id, "port", p.No, "err", err)
		}
	}
	return removed
}

func (d *Discoverer) sendProbe(ctx context.Context, sess ofp.Session, port ofp.PortNo) error {
	raw, err := EncodeProbe(sess.ID(), port)
	if err != nil {
		metrics.CounterInc(metrics.CounterWith(d.Metrics.ProbesSent,
			prom.LabelResult, prom.ErrNotClassified))
		return err
	}
	err = sess.PacketOut(ctx, ofp.PortController, []ofp.Action{ofp.Output(port)}, raw)
	if err != nil {
		metrics.CounterInc(metrics.CounterWith(d.Metrics.ProbesSent,
			prom.LabelResult, prom.ErrNetwork))
		return err
	}
	metrics.CounterInc(metrics.CounterWith(d.Metrics.ProbesSent,
		prom.LabelResult, prom.Success))
	return nil
}

// ProbeObserved handles a probe that switch id received on inPort. Probes that
// cannot be decoded, that loop back to their origin switch or that originate
// from an unknown switch are logged and discarded. If the observation created
// a new link, the link is returned along with true.
func (d *Discoverer) ProbeObserved(ctx context.Context, id ofp.DatapathID,
	inPort ofp.PortNo, payload []byte) (topology.Link, bool) {

	logger := log.FromCtx(ctx)
	discard := func(reason string, kv ...any) (topology.Link, bool) {
		metrics.CounterInc(metrics.CounterWith(d.Metrics.ProbesReceived,
			prom.LabelResult, prom.ErrNotClassified, prom.LabelReason, reason))
		logger.Info("Discarding probe",
			append([]any{"switch", id, "in_port", inPort, "reason", reason}, kv...)...)
		return topology.Link{}, false
	}
	origin, originPort, err := DecodeProbe(payload)
	if err != nil {
		return discard(reasonMalformed, "err", err)
	}
	switch {
	case origin == id:
		return discard(reasonLoop, "origin_port", originPort)
	case inPort.Reserved() || originPort.Reserved():
		return discard(reasonReservedPort, "origin", origin, "origin_port", originPort)
	case !d.Store.HasSwitch(origin):
		return discard(reasonUnknownOrigin, "origin", origin)
	}
	metrics.CounterInc(metrics.CounterWith(d.Metrics.ProbesReceived,
		prom.LabelResult, prom.Success, prom.LabelReason, "none"))

	existed := d.Store.HasLink(id, origin)
	d.Store.UpsertLink(id, inPort, origin, originPort, 0)
	if existed {
		return topology.Link{}, false
	}
	logger.Info("Link discovered", "a", id, "port_a", inPort, "b", origin,
		"port_b", originPort)
	l, ok := d.Store.Link(id, origin)
	return l, ok
}

// SwitchDisconnected forgets the switch.
func (d *Discoverer) SwitchDisconnected(ctx context.Context, id ofp.DatapathID) {
	d.transition(ctx, id, eventDisconnected)
}

// Refresh re-requests the port list of every switch under discovery. Errors
// are logged.
func (d *Discoverer) Refresh(ctx context.Context) {
	logger := log.FromCtx(ctx)
	d.mu.Lock()
	ids := lo.Keys(d.states)
	d.mu.Unlock()
	slices.Sort(ids)

	for _, id := range ids {
		if !d.transition(ctx, id, eventRefresh) {
			continue
		}
		sess, ok := d.Sessions.Get(id)
		if !ok {
			logger.Debug("No session for switch, skipping refresh", "switch", id)
			continue
		}
		if err := d.requestPorts(ctx, sess); err != nil {
			logger.Info("Refreshing port list failed", "err", err)
		}
	}
}
