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

// Package l3 lets the switches act as IPv4 routers.
//
// The router interfaces and end hosts come from the static topology
// description. A Plan answers ARP requests and ICMP echo requests addressed to
// router interfaces, maps addresses to the router whose subnet contains them
// and turns a switch path into per-hop rewrite rules: every hop sets the
// Ethernet addresses of the next link, decrements the TTL and outputs the
// packet.
package l3

import (
	"net"
	"net/netip"
	"slices"

	"github.com/scionproto/sdnctrl/pkg/frame"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/topology"
)

// Interface is a router interface.
type Interface struct {
	Switch ofp.DatapathID
	Port   ofp.PortNo
	Name   string
	IP     netip.Addr
	Subnet netip.Prefix
	MAC    net.HardwareAddr
	// Neighbor is the name of the switch or host at the other end.
	Neighbor string
}

// Host is an end host with a configured address.
type Host struct {
	Name string
	IP   netip.Addr
	MAC  net.HardwareAddr
}

// Plan is the routing configuration of the network. It is immutable and safe
// for concurrent use.
type Plan struct {
	// ifaces is in description order, which decides between overlapping
	// subnets.
	ifaces  []Interface
	byIP    map[netip.Addr]Interface
	hosts   map[netip.Addr]Host
	routers map[string]ofp.DatapathID
}

// NewPlan builds the plan from the description. The description must have
// been validated.
func NewPlan(d *topology.Description) (*Plan, error) {
	p := &Plan{
		byIP:    make(map[netip.Addr]Interface),
		hosts:   make(map[netip.Addr]Host),
		routers: make(map[string]ofp.DatapathID),
	}
	for _, r := range d.Switches {
		id, err := r.ID()
		if err != nil {
			return nil, err
		}
		p.routers[string(r.Name)] = id
		for _, i := range r.Interfaces {
			port, err := i.PortNo()
			if err != nil {
				return nil, err
			}
			iface := Interface{
				Switch:   id,
				Port:     port,
				Name:     i.Name,
				IP:       i.IP,
				Subnet:   i.Subnet.Masked(),
				MAC:      net.HardwareAddr(i.MAC),
				Neighbor: i.Neighbor,
			}
			p.ifaces = append(p.ifaces, iface)
			p.byIP[iface.IP] = iface
		}
	}
	for _, h := range d.Hosts {
		p.hosts[h.IP] = Host{Name: h.Name, IP: h.IP, MAC: net.HardwareAddr(h.MAC)}
	}
	if len(p.ifaces) == 0 {
		return nil, serrors.New("no router interfaces configured")
	}
	return p, nil
}

// Interfaces returns the router interfaces in description order.
func (p *Plan) Interfaces() []Interface {
	return slices.Clone(p.ifaces)
}

// Interface returns the router interface with the address.
func (p *Plan) Interface(ip netip.Addr) (Interface, bool) {
	i, ok := p.byIP[ip]
	return i, ok
}

// RouterFor returns the switch with an interface whose subnet contains ip.
func (p *Plan) RouterFor(ip netip.Addr) (ofp.DatapathID, bool) {
	for _, i := range p.ifaces {
		if i.Subnet.Contains(ip) {
			return i.Switch, true
		}
	}
	return 0, false
}

// ARPReply returns the answer to an ARP request for a router interface.
func (p *Plan) ARPReply(f *frame.Frame) (*frame.Frame, bool) {
	if f.ARP == nil || f.ARP.Op != frame.ARPRequest {
		return nil, false
	}
	i, ok := p.byIP[f.ARP.TargetIP]
	if !ok {
		return nil, false
	}
	return &frame.Frame{
		EthSrc:  i.MAC,
		EthDst:  f.ARP.SenderHW,
		EthType: ofp.EthTypeARP,
		ARP: &frame.ARP{
			Op:       frame.ARPReply,
			SenderHW: i.MAC,
			SenderIP: i.IP,
			TargetHW: f.ARP.SenderHW,
			TargetIP: f.ARP.SenderIP,
		},
	}, true
}

// EchoReply returns the answer to an ICMP echo request for a router
// interface. The payload is echoed back.
func (p *Plan) EchoReply(f *frame.Frame) (*frame.Frame, bool) {
	if f.IPv4 == nil || f.ICMP == nil || f.ICMP.Type != frame.ICMPEchoRequest {
		return nil, false
	}
	i, ok := p.byIP[f.IPv4.Dst]
	if !ok {
		return nil, false
	}
	return &frame.Frame{
		EthSrc:  i.MAC,
		EthDst:  f.EthSrc,
		EthType: ofp.EthTypeIPv4,
		IPv4: &frame.IPv4{
			Src:   i.IP,
			Dst:   f.IPv4.Src,
			Proto: f.IPv4.Proto,
		},
		ICMP: &frame.ICMP{
			Type: frame.ICMPEchoReply,
			ID:   f.ICMP.ID,
			Seq:  f.ICMP.Seq,
		},
		Payload: slices.Clone(f.Payload),
	}, true
}

// Hop is the rewrite rule of one switch of a route.
type Hop struct {
	Switch ofp.DatapathID
	Port   ofp.PortNo
	EthSrc net.HardwareAddr
	EthDst net.HardwareAddr
}

// Actions rewrites the Ethernet addresses, decrements the TTL and outputs the
// packet.
func (h Hop) Actions() []ofp.Action {
	return []ofp.Action{
		ofp.SetEthSrc(h.EthSrc),
		ofp.SetEthDst(h.EthDst),
		ofp.DecTTL(),
		ofp.Output(h.Port),
	}
}

// Route is the set of rules that forward packets to Dst along a path.
type Route struct {
	Dst  netip.Addr
	Hops []Hop
	// Missing lists the switches of the path without the interfaces the hop
	// needs.
	Missing []ofp.DatapathID
}

// Match matches the packets of the route.
func (r Route) Match() ofp.Match {
	return ofp.Match{EthType: ofp.EthTypeIPv4, IPDst: r.Dst}
}

// Route computes the hops that forward packets for dst along the path. The
// last switch of the path delivers to the host, which must be configured.
func (p *Plan) Route(path topology.Path, dst netip.Addr) Route {
	r := Route{Dst: dst}
	last := len(path) - 1
	for i, sw := range path {
		var (
			hop Hop
			ok  bool
		)
		if i == last {
			hop, ok = p.hostHop(sw, dst)
		} else {
			hop, ok = p.linkHop(sw, path[i+1])
		}
		if !ok {
			r.Missing = append(r.Missing, sw)
			continue
		}
		r.Hops = append(r.Hops, hop)
	}
	return r
}

// linkHop forwards from sw to the neighboring router next.
func (p *Plan) linkHop(sw, next ofp.DatapathID) (Hop, bool) {
	out, ok := p.facing(sw, func(n string) bool {
		id, ok := p.routers[n]
		return ok && id == next
	})
	if !ok {
		return Hop{}, false
	}
	in, ok := p.facing(next, func(n string) bool {
		id, ok := p.routers[n]
		return ok && id == sw
	})
	if !ok {
		return Hop{}, false
	}
	return Hop{Switch: sw, Port: out.Port, EthSrc: out.MAC, EthDst: in.MAC}, true
}

// hostHop delivers from sw to the host with address dst. The interface that
// names the host as neighbor is preferred over one whose subnet contains it.
func (p *Plan) hostHop(sw ofp.DatapathID, dst netip.Addr) (Hop, bool) {
	h, ok := p.hosts[dst]
	if !ok {
		return Hop{}, false
	}
	out, ok := p.facing(sw, func(n string) bool { return n == h.Name })
	if !ok {
		out, ok = p.facingSubnet(sw, dst)
	}
	if !ok {
		return Hop{}, false
	}
	return Hop{Switch: sw, Port: out.Port, EthSrc: out.MAC, EthDst: h.MAC}, true
}

func (p *Plan) facing(sw ofp.DatapathID, neighbor func(string) bool) (Interface, bool) {
	for _, i := range p.ifaces {
		if i.Switch == sw && i.Neighbor != "" && neighbor(i.Neighbor) {
			return i, true
		}
	}
	return Interface{}, false
}

func (p *Plan) facingSubnet(sw ofp.DatapathID, ip netip.Addr) (Interface, bool) {
	for _, i := range p.ifaces {
		if i.Switch == sw && i.Subnet.Contains(ip) {
			return i, true
		}
	}
	return Interface{}, false
}
