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

import (
	"encoding/binary"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

// ProbeTTL is the time to live, in seconds, announced in probes.
const ProbeTTL = 120

var (
	// ProbeDst is the nearest-bridge LLDP multicast address. Switches do not
	// forward frames sent to it.
	ProbeDst = net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e}
	// probeSrc is a locally administered address used as source of all
	// probes.
	probeSrc = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
)

var (
	// ErrMalformedProbe indicates that a probe payload could not be decoded.
	ErrMalformedProbe = serrors.New("malformed probe")
)

// EncodeProbe builds the Ethernet frame announcing (id, port).
func EncodeProbe(id ofp.DatapathID, port ofp.PortNo) ([]byte, error) {
	chassis := make([]byte, 8)
	binary.BigEndian.PutUint64(chassis, uint64(id))
	portID := make([]byte, 4)
	binary.BigEndian.PutUint32(portID, uint32(port))

	eth := &layers.Ethernet{
		SrcMAC:       probeSrc,
		DstMAC:       ProbeDst,
		EthernetType: layers.EthernetTypeLinkLayerDiscovery,
	}
	lldp := &layers.LinkLayerDiscovery{
		ChassisID: layers.LLDPChassisID{
			Subtype: layers.LLDPChassisIDSubTypeLocal,
			ID:      chassis,
		},
		PortID: layers.LLDPPortID{
			Subtype: layers.LLDPPortIDSubtypeLocal,
			ID:      portID,
		},
		TTL: ProbeTTL,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, lldp); err != nil {
		return nil, serrors.Wrap("serializing probe", err, "switch", id, "port", port)
	}
	return buf.Bytes(), nil
}

// DecodeProbe extracts the origin (switch, port) from the LLDP payload of a
// probe, that is, the frame without its Ethernet header.
func DecodeProbe(payload []byte) (ofp.DatapathID, ofp.PortNo, error) {
	pkt := gopacket.NewPacket(payload, layers.LayerTypeLinkLayerDiscovery, gopacket.NoCopy)
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		return 0, 0, serrors.Join(ErrMalformedProbe, errLayer.Error())
	}
	lldp, ok := pkt.Layer(layers.LayerTypeLinkLayerDiscovery).(*layers.LinkLayerDiscovery)
	if !ok {
		return 0, 0, serrors.Join(ErrMalformedProbe, nil, "reason", "no lldp layer")
	}
	if lldp.ChassisID.Subtype != layers.LLDPChassisIDSubTypeLocal ||
		len(lldp.ChassisID.ID) != 8 {

		return 0, 0, serrors.Join(ErrMalformedProbe, nil, "reason", "unexpected chassis id",
			"subtype", lldp.ChassisID.Subtype, "len", len(lldp.ChassisID.ID))
	}
	if lldp.PortID.Subtype != layers.LLDPPortIDSubtypeLocal || len(lldp.PortID.ID) != 4 {
		return 0, 0, serrors.Join(ErrMalformedProbe, nil, "reason", "unexpected port id",
			"subtype", lldp.PortID.Subtype, "len", len(lldp.PortID.ID))
	}
	id := ofp.DatapathID(binary.BigEndian.Uint64(lldp.ChassisID.ID))
	port := ofp.PortNo(binary.BigEndian.Uint32(lldp.PortID.ID))
	return id, port, nil
}
