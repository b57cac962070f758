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

package discovery

// State is the discovery state of a switch.
type State int

const (
	// StateUnknown is the state of switches that are not connected.
	StateUnknown State = iota
	// StatePortsKnown means the port list was requested and the switch is
	// waiting for the answer.
	StatePortsKnown
	// StateProbing means the switch emits probes on all its usable ports.
	StateProbing
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StatePortsKnown:
		return "ports_known"
	case StateProbing:
		return "probing"
	}
	return "invalid"
}

type event int

const (
	eventConnected event = iota
	eventPortList
	eventRefresh
	eventDisconnected
)

func (e event) String() string {
	switch e {
	case eventConnected:
		return "connected"
	case eventPortList:
		return "port_list"
	case eventRefresh:
		return "refresh"
	case eventDisconnected:
		return "disconnected"
	}
	return "invalid"
}

type transition struct {
	from State
	ev   event
	to   State
}

// transitions is the complete transition table. Pairs that are not listed are
// invalid and leave the state unchanged.
var transitions = []transition{
	{from: StateUnknown, ev: eventConnected, to: StatePortsKnown},
	// Reconnects restart discovery.
	{from: StatePortsKnown, ev: eventConnected, to: StatePortsKnown},
	{from: StateProbing, ev: eventConnected, to: StatePortsKnown},

	{from: StatePortsKnown, ev: eventPortList, to: StateProbing},
	{from: StateProbing, ev: eventPortList, to: StateProbing},

	{from: StatePortsKnown, ev: eventRefresh, to: StatePortsKnown},
	{from: StateProbing, ev: eventRefresh, to: StateProbing},

	{from: StatePortsKnown, ev: eventDisconnected, to: StateUnknown},
	{from: StateProbing, ev: eventDisconnected, to: StateUnknown},
}

// next returns the state after ev happened in state from. The second return
// value is false if the event is not valid in state from.
func next(from State, ev event) (State, bool) {
	for _, t := range transitions {
		if t.from == from && t.ev == ev {
			return t.to, true
		}
	}
	return from, false
}
