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

package ofp

import (
	"github.com/scionproto/sdnctrl/pkg/frame"
)

// EventType enumerates the events the controller reacts to.
type EventType int

const (
	EventSwitchConnected EventType = iota
	EventSwitchDisconnected
	EventPortListReceived
	EventPacketObserved
	EventLinkDown
	EventLinkUp
)

func (t EventType) String() string {
	switch t {
	case EventSwitchConnected:
		return "switch_connected"
	case EventSwitchDisconnected:
		return "switch_disconnected"
	case EventPortListReceived:
		return "port_list_received"
	case EventPacketObserved:
		return "packet_observed"
	case EventLinkDown:
		return "link_down"
	case EventLinkUp:
		return "link_up"
	}
	return "unknown"
}

// Event is implemented by all events.
type Event interface {
	Type() EventType
}

// SwitchConnected is emitted once a switch session is established.
type SwitchConnected struct {
	Session Session
}

// SwitchDisconnected is emitted when a switch session ends.
type SwitchDisconnected struct {
	ID DatapathID
}

// PortListReceived carries the answer to Session.RequestPorts.
type PortListReceived struct {
	ID    DatapathID
	Ports []Port
}

// PacketObserved is a packet the switch forwarded to the controller.
type PacketObserved struct {
	ID     DatapathID
	InPort PortNo
	Frame  *frame.Frame
	// Data is the raw packet, used for the packet-out after a decision.
	Data []byte
}

// LinkDown reports that the link between A and B failed.
type LinkDown struct {
	A, B DatapathID
}

// LinkUp reports that the link between A and B is available again.
type LinkUp struct {
	A     DatapathID
	PortA PortNo
	B     DatapathID
	PortB PortNo
}

func (SwitchConnected) Type() EventType    { return EventSwitchConnected }
func (SwitchDisconnected) Type() EventType { return EventSwitchDisconnected }
func (PortListReceived) Type() EventType   { return EventPortListReceived }
func (PacketObserved) Type() EventType     { return EventPacketObserved }
func (LinkDown) Type() EventType           { return EventLinkDown }
func (LinkUp) Type() EventType             { return EventLinkUp }
