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

// Package frame decodes the Ethernet frames switches hand to the controller
// into the header fields the controller cares about.
//
// Only the fields needed for host learning and flow matching are extracted:
// the Ethernet addresses and type, the IPv4 header, TCP/UDP ports, ICMP echo
// fields and ARP addresses. Discovery probes are passed through undecoded.
package frame

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/mdlayher/arp"
	"github.com/mdlayher/ethernet"

	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

// EtherTypeProbe is the EtherType of discovery probes (LLDP).
const EtherTypeProbe ethernet.EtherType = 0x88cc

// Frame holds the decoded headers of a packet.
type Frame struct {
	EthSrc  net.HardwareAddr
	EthDst  net.HardwareAddr
	EthType uint16
	// Probe is the raw payload of a discovery probe. It is only set if EthType
	// is EtherTypeProbe.
	Probe []byte
	// IPv4 is set for IPv4 packets.
	IPv4 *IPv4
	// Transport is set for TCP and UDP packets.
	Transport *Transport
	// ICMP is set for IPv4 packets carrying a complete ICMP header.
	ICMP *ICMP
	// ARP is set for ARP packets.
	ARP *ARP
	// Payload is the payload above the last decoded layer. It is not
	// interpreted.
	Payload []byte
}

// IPv4 holds the decoded IPv4 header fields.
type IPv4 struct {
	Src   netip.Addr
	Dst   netip.Addr
	Proto uint8
	// TTL is the time to live. Encode uses DefaultTTL if it is zero.
	TTL uint8
}

// DefaultTTL is the TTL of encoded IPv4 packets that do not set one.
const DefaultTTL = 64

// ICMP types the controller answers or sends.
const (
	ICMPEchoReply   uint8 = 0
	ICMPEchoRequest uint8 = 8
)

// ICMP holds the decoded ICMP header fields. ID and Seq are only meaningful
// for echo messages.
type ICMP struct {
	Type uint8
	Code uint8
	ID   uint16
	Seq  uint16
}

// Transport holds the decoded TCP or UDP ports.
type Transport struct {
	Proto uint8
	Src   uint16
	Dst   uint16
}

// ARP holds the decoded ARP fields.
type ARP struct {
	Op       uint16
	SenderHW net.HardwareAddr
	SenderIP netip.Addr
	TargetHW net.HardwareAddr
	TargetIP netip.Addr
}

// ARP operations.
const (
	ARPRequest uint16 = 1
	ARPReply   uint16 = 2
)

// IsProbe reports whether the frame is a discovery probe.
func (f *Frame) IsProbe() bool {
	return f.EthType == uint16(EtherTypeProbe)
}

// Decode decodes a raw Ethernet frame. VLAN tags are skipped. Layers above
// Ethernet that cannot be decoded are left unset; only a broken Ethernet
// header is an error.
func Decode(raw []byte) (*Frame, error) {
	var ef ethernet.Frame
	if err := ef.UnmarshalBinary(raw); err != nil {
		return nil, serrors.Wrap("decoding ethernet header", err, "len", len(raw))
	}
	f := &Frame{
		EthSrc:  ef.Source,
		EthDst:  ef.Destination,
		EthType: uint16(ef.EtherType),
	}
	switch ef.EtherType {
	case EtherTypeProbe:
		f.Probe = ef.Payload
	case ethernet.EtherTypeARP:
		var p arp.Packet
		if err := p.UnmarshalBinary(ef.Payload); err != nil {
			return nil, serrors.Wrap("decoding arp", err)
		}
		f.ARP = &ARP{
			Op:       uint16(p.Operation),
			SenderHW: p.SenderHardwareAddr,
			SenderIP: p.SenderIP,
			TargetHW: p.TargetHardwareAddr,
			TargetIP: p.TargetIP,
		}
	case ethernet.EtherTypeIPv4:
		if err := decodeIPv4(f, ef.Payload); err != nil {
			return nil, err
		}
	default:
		f.Payload = ef.Payload
	}
	return f, nil
}

func decodeIPv4(f *Frame, raw []byte) error {
	var (
		ip4     layers.IPv4
		tcp     layers.TCP
		udp     layers.UDP
		payload gopacket.Payload
	)
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeIPv4, &ip4, &tcp, &udp, &payload)
	parser.IgnoreUnsupported = true
	decoded := make([]gopacket.LayerType, 0, 3)
	if err := parser.DecodeLayers(raw, &decoded); err != nil {
		return serrors.Wrap("decoding ipv4", err)
	}
	for _, lt := range decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			src, _ := netip.AddrFromSlice(ip4.SrcIP.To4())
			dst, _ := netip.AddrFromSlice(ip4.DstIP.To4())
			f.IPv4 = &IPv4{Src: src, Dst: dst, Proto: uint8(ip4.Protocol), TTL: ip4.TTL}
		case layers.LayerTypeTCP:
			f.Transport = &Transport{
				Proto: uint8(layers.IPProtocolTCP),
				Src:   uint16(tcp.SrcPort),
				Dst:   uint16(tcp.DstPort),
			}
		case layers.LayerTypeUDP:
			f.Transport = &Transport{
				Proto: uint8(layers.IPProtocolUDP),
				Src:   uint16(udp.SrcPort),
				Dst:   uint16(udp.DstPort),
			}
		case gopacket.LayerTypePayload:
			f.Payload = payload
		}
	}
	if f.IPv4 != nil && ip4.Protocol == layers.IPProtocolICMPv4 {
		decodeICMP(f, ip4.Payload)
	}
	return nil
}

// decodeICMP sets the ICMP fields if raw holds a complete ICMP header.
// Otherwise raw is kept as the payload.
func decodeICMP(f *Frame, raw []byte) {
	var icmp layers.ICMPv4
	if err := icmp.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		f.Payload = raw
		return
	}
	f.ICMP = &ICMP{
		Type: icmp.TypeCode.Type(),
		Code: icmp.TypeCode.Code(),
		ID:   icmp.Id,
		Seq:  icmp.Seq,
	}
	f.Payload = icmp.Payload
}
