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

// Package ofp contains the switch facing types of the controller: datapath and
// port identifiers, match/action rules and the Session interface through which
// rules and packets are pushed to a switch.
//
// The wire protocol spoken with the switches is not part of this package.
// Transports implement Session and translate switch messages into Events.
package ofp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

// DatapathID identifies a switch.
type DatapathID uint64

// ParseDatapathID parses "s<N>" or a plain decimal number.
func ParseDatapathID(s string) (DatapathID, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "s"), 10, 64)
	if err != nil {
		return 0, serrors.Wrap("parsing datapath id", err, "input", s)
	}
	return DatapathID(v), nil
}

func (id DatapathID) String() string {
	return "s" + strconv.FormatUint(uint64(id), 10)
}

// PortNo is a switch port number.
type PortNo uint32

// Reserved port numbers, as defined by OpenFlow 1.3.
const (
	PortMax        PortNo = 0xffffff00
	PortInPort     PortNo = 0xfffffff8
	PortTable      PortNo = 0xfffffff9
	PortNormal     PortNo = 0xfffffffa
	PortFlood      PortNo = 0xfffffffb
	PortAll        PortNo = 0xfffffffc
	PortController PortNo = 0xfffffffd
	PortLocal      PortNo = 0xfffffffe
	PortAny        PortNo = 0xffffffff
)

// Reserved reports whether p is an administrative port that does not
// correspond to a physical interface.
func (p PortNo) Reserved() bool {
	return p >= PortMax
}

func (p PortNo) String() string {
	switch p {
	case PortInPort:
		return "IN_PORT"
	case PortTable:
		return "TABLE"
	case PortNormal:
		return "NORMAL"
	case PortFlood:
		return "FLOOD"
	case PortAll:
		return "ALL"
	case PortController:
		return "CONTROLLER"
	case PortLocal:
		return "LOCAL"
	case PortAny:
		return "ANY"
	}
	return strconv.FormatUint(uint64(p), 10)
}

// Port describes a switch port as reported in a port list.
type Port struct {
	No     PortNo
	HWAddr net.HardwareAddr
	Name   string
	// Down is set if the port or its link is administratively or operationally
	// down.
	Down bool
}

// EtherType values used in matches.
const (
	EthTypeIPv4 uint16 = 0x0800
	EthTypeARP  uint16 = 0x0806
	EthTypeLLDP uint16 = 0x88cc
)

// IP protocol numbers used in matches.
const (
	IPProtoTCP uint8 = 6
	IPProtoUDP uint8 = 17
)

// Match selects packets. Zero values are wildcards.
type Match struct {
	EthSrc  net.HardwareAddr
	EthDst  net.HardwareAddr
	EthType uint16
	IPSrc   netip.Addr
	IPDst   netip.Addr
	IPProto uint8
	L4Src   uint16
	L4Dst   uint16
}

func (m Match) String() string {
	var fields []string
	add := func(k string, v any) {
		fields = append(fields, fmt.Sprintf("%s=%v", k, v))
	}
	if len(m.EthSrc) != 0 {
		add("eth_src", m.EthSrc)
	}
	if len(m.EthDst) != 0 {
		add("eth_dst", m.EthDst)
	}
	if m.EthType != 0 {
		add("eth_type", fmt.Sprintf("0x%04x", m.EthType))
	}
	if m.IPSrc.IsValid() {
		add("ip_src", m.IPSrc)
	}
	if m.IPDst.IsValid() {
		add("ip_dst", m.IPDst)
	}
	if m.IPProto != 0 {
		add("ip_proto", m.IPProto)
	}
	if m.L4Src != 0 {
		add("l4_src", m.L4Src)
	}
	if m.L4Dst != 0 {
		add("l4_dst", m.L4Dst)
	}
	if len(fields) == 0 {
		return "any"
	}
	return strings.Join(fields, ",")
}

// ActionType is the kind of an action.
type ActionType uint8

// Action types. The zero value outputs the packet.
const (
	ActionOutput ActionType = iota
	// ActionSetEthSrc and ActionSetEthDst rewrite an Ethernet address
	// (OFPAT_SET_FIELD).
	ActionSetEthSrc
	ActionSetEthDst
	// ActionDecTTL decrements the IPv4 TTL and drops the packet once it
	// reaches zero (OFPAT_DEC_NW_TTL).
	ActionDecTTL
)

// Action is a forwarding action. Actions are applied in order.
type Action struct {
	Type ActionType
	// Port is the output port of ActionOutput.
	Port PortNo
	// HWAddr is the address written by ActionSetEthSrc and ActionSetEthDst.
	HWAddr net.HardwareAddr
}

// Output returns an action that outputs the packet on port.
func Output(port PortNo) Action {
	return Action{Port: port}
}

// SetEthSrc returns an action that rewrites the Ethernet source address.
func SetEthSrc(addr net.HardwareAddr) Action {
	return Action{Type: ActionSetEthSrc, HWAddr: addr}
}

// SetEthDst returns an action that rewrites the Ethernet destination address.
func SetEthDst(addr net.HardwareAddr) Action {
	return Action{Type: ActionSetEthDst, HWAddr: addr}
}

// DecTTL returns an action that decrements the IPv4 TTL.
func DecTTL() Action {
	return Action{Type: ActionDecTTL}
}

func (a Action) String() string {
	switch a.Type {
	case ActionSetEthSrc:
		return "set_field:eth_src=" + a.HWAddr.String()
	case ActionSetEthDst:
		return "set_field:eth_dst=" + a.HWAddr.String()
	case ActionDecTTL:
		return "dec_nw_ttl"
	}
	return "output:" + a.Port.String()
}

// Rule is a flow rule.
type Rule struct {
	Priority    uint16
	Match       Match
	Actions     []Action
	IdleTimeout uint16
	HardTimeout uint16
}

func (r Rule) String() string {
	acts := make([]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		acts = append(acts, a.String())
	}
	return fmt.Sprintf("priority=%d,%s actions=%s", r.Priority, r.Match,
		strings.Join(acts, ","))
}

// Session is the controller's handle on one connected switch.
type Session interface {
	// ID returns the datapath ID of the switch.
	ID() DatapathID
	// InstallRule adds or replaces a flow rule.
	InstallRule(ctx context.Context, rule Rule) error
	// DeleteRules removes all rules with the given priority.
	DeleteRules(ctx context.Context, priority uint16) error
	// PacketOut injects a packet into the switch as if it was received on
	// inPort, applying the given actions.
	PacketOut(ctx context.Context, inPort PortNo, actions []Action, data []byte) error
	// RequestPorts asks the switch for its port list. The answer arrives as a
	// PortListReceived event.
	RequestPorts(ctx context.Context) error
}
