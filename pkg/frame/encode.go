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

package frame

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

// Encode serializes f into a raw Ethernet frame. It is the inverse of Decode
// for the fields Decode extracts. Checksums and lengths are computed.
func Encode(f *Frame) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       f.EthSrc,
		DstMAC:       f.EthDst,
		EthernetType: layers.EthernetType(f.EthType),
	}
	toSerialize := []gopacket.SerializableLayer{eth}
	switch {
	case f.IsProbe():
		toSerialize = append(toSerialize, gopacket.Payload(f.Probe))
	case f.ARP != nil:
		eth.EthernetType = layers.EthernetTypeARP
		dstHW := f.ARP.TargetHW
		if len(dstHW) == 0 {
			dstHW = make(net.HardwareAddr, 6)
		}
		toSerialize = append(toSerialize, &layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         f.ARP.Op,
			SourceHwAddress:   f.ARP.SenderHW,
			SourceProtAddress: f.ARP.SenderIP.AsSlice(),
			DstHwAddress:      dstHW,
			DstProtAddress:    f.ARP.TargetIP.AsSlice(),
		})
	case f.IPv4 != nil:
		eth.EthernetType = layers.EthernetTypeIPv4
		ttl := f.IPv4.TTL
		if ttl == 0 {
			ttl = DefaultTTL
		}
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      ttl,
			Protocol: layers.IPProtocol(f.IPv4.Proto),
			SrcIP:    f.IPv4.Src.AsSlice(),
			DstIP:    f.IPv4.Dst.AsSlice(),
		}
		toSerialize = append(toSerialize, ip)
		if f.ICMP != nil {
			toSerialize = append(toSerialize, &layers.ICMPv4{
				TypeCode: layers.CreateICMPv4TypeCode(f.ICMP.Type, f.ICMP.Code),
				Id:       f.ICMP.ID,
				Seq:      f.ICMP.Seq,
			})
		}
		if f.Transport != nil {
			switch f.Transport.Proto {
			case uint8(layers.IPProtocolTCP):
				tcp := &layers.TCP{
					SrcPort: layers.TCPPort(f.Transport.Src),
					DstPort: layers.TCPPort(f.Transport.Dst),
					SYN:     true,
					Window:  1024,
				}
				if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
					return nil, serrors.Wrap("preparing tcp checksum", err)
				}
				toSerialize = append(toSerialize, tcp)
			case uint8(layers.IPProtocolUDP):
				udp := &layers.UDP{
					SrcPort: layers.UDPPort(f.Transport.Src),
					DstPort: layers.UDPPort(f.Transport.Dst),
				}
				if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
					return nil, serrors.Wrap("preparing udp checksum", err)
				}
				toSerialize = append(toSerialize, udp)
			default:
				return nil, serrors.New("unsupported transport", "proto", f.Transport.Proto)
			}
		}
		toSerialize = append(toSerialize, gopacket.Payload(f.Payload))
	default:
		toSerialize = append(toSerialize, gopacket.Payload(f.Payload))
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, toSerialize...); err != nil {
		return nil, serrors.Wrap("serializing frame", err)
	}
	return buf.Bytes(), nil
}
