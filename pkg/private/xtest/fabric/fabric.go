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

// Package fabric contains an in-memory switch network for tests.
//
// Every switch implements ofp.Session. Switches forward packets according to
// the rules installed on them: the highest priority matching rule wins and
// packets without a matching rule are dropped. Packets sent to the controller
// port and port lists are queued as events, which the test hands to the
// controller with Settle. Flooded packets are only recorded, they are not
// propagated, so rings do not loop.
//
// Usage:
//
//	f := fabric.New()
//	f.AddSwitch(1, 1, 2)
//	f.AddSwitch(2, 1, 2)
//	f.Wire(1, 1, 2, 1)
//	f.AttachHost(mac, 1, 10)
//	f.ConnectAll()
//	f.Settle(ctx, ctrl.HandleEvent)
package fabric

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/scionproto/sdnctrl/pkg/frame"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

const (
	// maxHops bounds the number of switches a packet traverses.
	maxHops = 64
	// maxEvents bounds the number of events a single Settle call handles.
	maxEvents = 100000
)

// Endpoint is a switch port.
type Endpoint struct {
	Switch ofp.DatapathID
	Port   ofp.PortNo
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%s", e.Switch, e.Port)
}

// PacketOut is a packet out request received by a switch.
type PacketOut struct {
	InPort  ofp.PortNo
	Actions []ofp.Action
	Data    []byte
}

// Fabric is an in-memory switch network. It is safe for concurrent use.
type Fabric struct {
	mu       sync.Mutex
	switches map[ofp.DatapathID]*Switch
	wires    map[Endpoint]Endpoint
	hosts    map[string]Endpoint
	// delivered holds the packets delivered per host address.
	delivered map[string][]*frame.Frame
	events    []ofp.Event
}

// New creates an empty fabric.
func New() *Fabric {
	return &Fabric{
		switches:  make(map[ofp.DatapathID]*Switch),
		wires:     make(map[Endpoint]Endpoint),
		hosts:     make(map[string]Endpoint),
		delivered: make(map[string][]*frame.Frame),
	}
}

// AddSwitch adds a switch with the given ports. Ports used by Wire and
// AttachHost are added implicitly.
func (f *Fabric) AddSwitch(id ofp.DatapathID, ports ...ofp.PortNo) *Switch {
	f.mu.Lock()
	defer f.mu.Unlock()
	sw := f.switchLocked(id)
	for _, p := range ports {
		sw.ports[p] = true
	}
	return sw
}

func (f *Fabric) switchLocked(id ofp.DatapathID) *Switch {
	sw, ok := f.switches[id]
	if !ok {
		sw = &Switch{
			fabric: f,
			id:     id,
			ports:  make(map[ofp.PortNo]bool),
		}
		f.switches[id] = sw
	}
	return sw
}

// Switch returns the switch with the given ID, or nil.
func (f *Fabric) Switch(id ofp.DatapathID) *Switch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.switches[id]
}

// Wire connects a:portA with b:portB.
func (f *Fabric) Wire(a ofp.DatapathID, portA ofp.PortNo, b ofp.DatapathID,
	portB ofp.PortNo) {

	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchLocked(a).ports[portA] = true
	f.switchLocked(b).ports[portB] = true
	ea, eb := Endpoint{a, portA}, Endpoint{b, portB}
	f.wires[ea] = eb
	f.wires[eb] = ea
}

// Cut removes the wire between a and b and queues a LinkDown event. It
// returns false if the switches are not wired.
func (f *Fabric) Cut(a, b ofp.DatapathID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found bool
	for ea, eb := range f.wires {
		if ea.Switch == a && eb.Switch == b {
			delete(f.wires, ea)
			delete(f.wires, eb)
			found = true
		}
	}
	if found {
		f.events = append(f.events, ofp.LinkDown{A: a, B: b})
	}
	return found
}

// Restore wires a:portA with b:portB again and queues a LinkUp event.
func (f *Fabric) Restore(a ofp.DatapathID, portA ofp.PortNo, b ofp.DatapathID,
	portB ofp.PortNo) {

	f.Wire(a, portA, b, portB)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ofp.LinkUp{A: a, PortA: portA, B: b, PortB: portB})
}

// AttachHost attaches the host with the given address to sw:port.
func (f *Fabric) AttachHost(addr net.HardwareAddr, sw ofp.DatapathID, port ofp.PortNo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchLocked(sw).ports[port] = true
	f.hosts[string(addr)] = Endpoint{sw, port}
}

// ConnectAll queues a SwitchConnected event for every switch in ascending ID
// order.
func (f *Fabric) ConnectAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := lo.Keys(f.switches)
	slices.Sort(ids)
	for _, id := range ids {
		f.events = append(f.events, ofp.SwitchConnected{Session: f.switches[id]})
	}
}

// Disconnect queues a SwitchDisconnected event for the switch.
func (f *Fabric) Disconnect(id ofp.DatapathID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ofp.SwitchDisconnected{ID: id})
}

// Send injects a frame from the host with address fr.EthSrc into the fabric.
func (f *Fabric) Send(fr *frame.Frame) error {
	raw, err := frame.Encode(fr)
	if err != nil {
		return err
	}
	decoded, err := frame.Decode(raw)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.hosts[string(fr.EthSrc)]
	if !ok {
		return serrors.New("host not attached", "addr", fr.EthSrc)
	}
	f.processLocked(f.switches[at.Switch], at.Port, raw, decoded, maxHops)
	return nil
}

// Delivered returns the number of packets delivered to the host.
func (f *Fabric) Delivered(addr net.HardwareAddr) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered[string(addr)])
}

// Received returns the packets delivered to the host as they left the last
// switch.
func (f *Fabric) Received(addr net.HardwareAddr) []*frame.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.delivered[string(addr)])
}

// Pending returns the number of queued events.
func (f *Fabric) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// Settle hands queued events to handle until the queue is empty. Events
// queued while handling are handled in the same call. Handler errors are
// collected and returned.
func (f *Fabric) Settle(ctx context.Context,
	handle func(context.Context, ofp.Event) error) error {

	var errs serrors.List
	for i := 0; ; i++ {
		if i == maxEvents {
			return serrors.New("fabric does not settle", "events", maxEvents)
		}
		f.mu.Lock()
		if len(f.events) == 0 {
			f.mu.Unlock()
			return errs.ToError()
		}
		ev := f.events[0]
		f.events = f.events[1:]
		f.mu.Unlock()
		if err := handle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
}

// processLocked runs a packet received on sw:inPort through the rules of sw.
func (f *Fabric) processLocked(sw *Switch, inPort ofp.PortNo, raw []byte,
	fr *frame.Frame, ttl int) {

	rule, ok := sw.lookupLocked(fr)
	if !ok {
		return
	}
	f.applyLocked(sw, inPort, rule.Actions, raw, fr, ttl)
}

func (f *Fabric) applyLocked(sw *Switch, inPort ofp.PortNo, actions []ofp.Action,
	raw []byte, fr *frame.Frame, ttl int) {

	for _, a := range actions {
		if a.Type != ofp.ActionOutput {
			var ok bool
			if fr, ok = rewrite(fr, a); !ok {
				return
			}
			if enc, err := frame.Encode(fr); err == nil {
				raw = enc
			}
			continue
		}
		switch a.Port {
		case ofp.PortController:
			f.events = append(f.events, ofp.PacketObserved{
				ID:     sw.id,
				InPort: inPort,
				Frame:  fr,
				Data:   raw,
			})
		case ofp.PortFlood, ofp.PortAll:
			sw.floods++
		case ofp.PortTable:
			f.processLocked(sw, inPort, raw, fr, ttl)
		case ofp.PortInPort:
			f.emitLocked(sw, inPort, raw, fr, ttl)
		default:
			f.emitLocked(sw, a.Port, raw, fr, ttl)
		}
	}
}

// rewrite applies a header rewrite action to a copy of the frame. It returns
// false if the packet is dropped.
func rewrite(fr *frame.Frame, a ofp.Action) (*frame.Frame, bool) {
	c := *fr
	switch a.Type {
	case ofp.ActionSetEthSrc:
		c.EthSrc = slices.Clone(a.HWAddr)
	case ofp.ActionSetEthDst:
		c.EthDst = slices.Clone(a.HWAddr)
	case ofp.ActionDecTTL:
		if fr.IPv4 == nil {
			return fr, true
		}
		ip := *fr.IPv4
		if ip.TTL <= 1 {
			return nil, false
		}
		ip.TTL--
		c.IPv4 = &ip
	}
	return &c, true
}

// emitLocked sends the packet out of sw:port.
func (f *Fabric) emitLocked(sw *Switch, port ofp.PortNo, raw []byte, fr *frame.Frame,
	ttl int) {

	if ttl <= 0 {
		return
	}
	if peer, ok := f.wires[Endpoint{sw.id, port}]; ok {
		f.processLocked(f.switches[peer.Switch], peer.Port, raw, fr, ttl-1)
		return
	}
	if at, ok := f.hosts[string(fr.EthDst)]; ok && at == (Endpoint{sw.id, port}) {
		f.delivered[string(fr.EthDst)] = append(f.delivered[string(fr.EthDst)], fr)
	}
}

// Switch is a simulated switch. It implements ofp.Session.
type Switch struct {
	fabric      *Fabric
	id          ofp.DatapathID
	ports       map[ofp.PortNo]bool
	rules       []ofp.Rule
	sent        []PacketOut
	floods      int
	flushes     int
	failInstall error
}

var _ ofp.Session = (*Switch)(nil)

func (s *Switch) ID() ofp.DatapathID {
	return s.id
}

// InstallRule adds the rule, replacing a rule with the same priority and
// match.
func (s *Switch) InstallRule(_ context.Context, rule ofp.Rule) error {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	if s.failInstall != nil {
		return s.failInstall
	}
	s.rules = slices.DeleteFunc(s.rules, func(r ofp.Rule) bool {
		return r.Priority == rule.Priority && r.Match.String() == rule.Match.String()
	})
	s.rules = append(s.rules, rule)
	return nil
}

// DeleteRules removes all rules with the given priority.
func (s *Switch) DeleteRules(_ context.Context, priority uint16) error {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	s.flushes++
	s.rules = slices.DeleteFunc(s.rules, func(r ofp.Rule) bool {
		return r.Priority == priority
	})
	return nil
}

// PacketOut applies the actions to the packet as if it was received on
// inPort.
func (s *Switch) PacketOut(_ context.Context, inPort ofp.PortNo, actions []ofp.Action,
	data []byte) error {

	fr, err := frame.Decode(data)
	if err != nil {
		return err
	}
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	s.sent = append(s.sent, PacketOut{
		InPort:  inPort,
		Actions: slices.Clone(actions),
		Data:    slices.Clone(data),
	})
	s.fabric.applyLocked(s, inPort, actions, data, fr, maxHops)
	return nil
}

// RequestPorts queues the port list of the switch.
func (s *Switch) RequestPorts(_ context.Context) error {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	nos := lo.Keys(s.ports)
	slices.Sort(nos)
	ports := lo.Map(nos, func(no ofp.PortNo, _ int) ofp.Port {
		return ofp.Port{No: no, Name: fmt.Sprintf("%s-eth%d", s.id, no)}
	})
	s.fabric.events = append(s.fabric.events, ofp.PortListReceived{ID: s.id, Ports: ports})
	return nil
}

// FailInstall makes all subsequent rule installations fail with err. A nil
// err restores normal operation.
func (s *Switch) FailInstall(err error) {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	s.failInstall = err
}

// Rules returns the installed rules.
func (s *Switch) Rules() []ofp.Rule {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	return slices.Clone(s.rules)
}

// Output returns the output port of the rule with the given match, if any.
func (s *Switch) Output(m ofp.Match) (ofp.PortNo, bool) {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	for _, r := range s.rules {
		if r.Match.String() != m.String() {
			continue
		}
		for _, a := range r.Actions {
			if a.Type == ofp.ActionOutput {
				return a.Port, true
			}
		}
	}
	return 0, false
}

// Sent returns the packet out requests the switch received.
func (s *Switch) Sent() []PacketOut {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	return slices.Clone(s.sent)
}

// Floods returns the number of flooded packets.
func (s *Switch) Floods() int {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	return s.floods
}

// Flushes returns the number of DeleteRules calls.
func (s *Switch) Flushes() int {
	s.fabric.mu.Lock()
	defer s.fabric.mu.Unlock()
	return s.flushes
}

// ResetFlushes sets the flush count of every switch to zero.
func (f *Fabric) ResetFlushes() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.switches {
		s.flushes = 0
	}
}

// lookupLocked returns the highest priority rule matching the packet. Among
// rules of equal priority, the first installed one wins.
func (s *Switch) lookupLocked(fr *frame.Frame) (ofp.Rule, bool) {
	var (
		best  ofp.Rule
		found bool
	)
	for _, r := range s.rules {
		if !matches(r.Match, fr) {
			continue
		}
		if !found || r.Priority > best.Priority {
			best, found = r, true
		}
	}
	return best, found
}

func matches(m ofp.Match, fr *frame.Frame) bool {
	if len(m.EthSrc) != 0 && m.EthSrc.String() != fr.EthSrc.String() {
		return false
	}
	if len(m.EthDst) != 0 && m.EthDst.String() != fr.EthDst.String() {
		return false
	}
	if m.EthType != 0 && m.EthType != fr.EthType {
		return false
	}
	if m.IPSrc.IsValid() || m.IPDst.IsValid() || m.IPProto != 0 {
		if fr.IPv4 == nil {
			return false
		}
		if m.IPSrc.IsValid() && m.IPSrc != fr.IPv4.Src {
			return false
		}
		if m.IPDst.IsValid() && m.IPDst != fr.IPv4.Dst {
			return false
		}
		if m.IPProto != 0 && m.IPProto != fr.IPv4.Proto {
			return false
		}
	}
	if m.L4Src != 0 || m.L4Dst != 0 {
		if fr.Transport == nil {
			return false
		}
		if m.L4Src != 0 && m.L4Src != fr.Transport.Src {
			return false
		}
		if m.L4Dst != 0 && m.L4Dst != fr.Transport.Dst {
			return false
		}
	}
	return true
}
