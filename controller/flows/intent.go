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

package flows

import (
	"net"
	"net/netip"

	"github.com/scionproto/sdnctrl/pkg/frame"
	"github.com/scionproto/sdnctrl/pkg/ofp"
)

// FlowIntent identifies a unidirectional traffic class. The Ethernet
// addresses are always set. The IP fields are valid only for IPv4 traffic and
// the transport ports are set only for TCP and UDP.
type FlowIntent struct {
	EthSrc  net.HardwareAddr
	EthDst  net.HardwareAddr
	IPSrc   netip.Addr
	IPDst   netip.Addr
	IPProto uint8
	L4Src   uint16
	L4Dst   uint16
}

// IntentFromFrame derives the most specific intent the frame allows.
func IntentFromFrame(f *frame.Frame) FlowIntent {
	fi := FlowIntent{
		EthSrc: f.EthSrc,
		EthDst: f.EthDst,
	}
	if f.IPv4 == nil {
		return fi
	}
	fi.IPSrc = f.IPv4.Src
	fi.IPDst = f.IPv4.Dst
	fi.IPProto = f.IPv4.Proto
	if t := f.Transport; t != nil && t.Proto == f.IPv4.Proto &&
		(t.Proto == ofp.IPProtoTCP || t.Proto == ofp.IPProtoUDP) &&
		t.Src != 0 && t.Dst != 0 {

		fi.L4Src = t.Src
		fi.L4Dst = t.Dst
	}
	return fi
}

func (fi FlowIntent) hasIP() bool {
	return fi.IPSrc.IsValid() && fi.IPDst.IsValid()
}

func (fi FlowIntent) hasL4() bool {
	return fi.hasIP() && fi.L4Src != 0 && fi.L4Dst != 0 &&
		(fi.IPProto == ofp.IPProtoTCP || fi.IPProto == ofp.IPProtoUDP)
}

// ForwardMatch matches the traffic of the intent.
func (fi FlowIntent) ForwardMatch() ofp.Match {
	m := ofp.Match{EthSrc: fi.EthSrc, EthDst: fi.EthDst}
	if !fi.hasIP() {
		return m
	}
	m.EthType = ofp.EthTypeIPv4
	m.IPSrc, m.IPDst = fi.IPSrc, fi.IPDst
	m.IPProto = fi.IPProto
	if fi.hasL4() {
		m.L4Src, m.L4Dst = fi.L4Src, fi.L4Dst
	}
	return m
}

// ReverseMatch matches the return traffic of the intent.
func (fi FlowIntent) ReverseMatch() ofp.Match {
	return fi.Reverse().ForwardMatch()
}

// Reverse returns the intent of the return traffic.
func (fi FlowIntent) Reverse() FlowIntent {
	return FlowIntent{
		EthSrc:  fi.EthDst,
		EthDst:  fi.EthSrc,
		IPSrc:   fi.IPDst,
		IPDst:   fi.IPSrc,
		IPProto: fi.IPProto,
		L4Src:   fi.L4Dst,
		L4Dst:   fi.L4Src,
	}
}

func (fi FlowIntent) String() string {
	return fi.ForwardMatch().String()
}
