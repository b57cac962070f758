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

package topology

import (
	"encoding/json"
	"io"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/config"
)

// Description is the static topology description. Two formats are accepted
// and may be combined:
//
//	{"nodes": ["s1", "s2"], "weight_matrix": [[0, 3], [3, 0]], "ecmp": true}
//	{"links": [{"src": "s1", "dst": "s2", "cost": 3}]}
//
// A weight of 0 in the matrix means "not adjacent". The description only
// provides the switch set and administrative costs. Adjacency itself is always
// discovered.
//
// For routed operation, the description additionally lists the router
// interfaces of the switches and the addresses of the end hosts:
//
//	{"switches": [{"name": "s1", "interfaces": [{"name": "s1-eth1",
//	  "ip": "10.0.1.1", "subnet": "10.0.1.0/24", "mac": "00:00:00:00:01:01",
//	  "neighbor": "h1"}]}],
//	 "hosts": [{"name": "h1", "ip": "10.0.1.2", "mac": "00:00:00:00:00:01"}]}
type Description struct {
	Nodes        []NodeName `json:"nodes,omitempty"`
	WeightMatrix [][]int    `json:"weight_matrix,omitempty"`
	Links        []LinkCost `json:"links,omitempty"`
	// ECMP selects randomized selection among equal-cost paths if no policy
	// is configured explicitly.
	ECMP     bool         `json:"ecmp,omitempty"`
	Switches []Router     `json:"switches,omitempty"`
	Hosts    []StaticHost `json:"hosts,omitempty"`
}

// Router is the layer 3 configuration of a switch.
type Router struct {
	Name NodeName `json:"name"`
	// DPID overrides the datapath ID derived from the name.
	DPID       NodeName    `json:"dpid,omitempty"`
	Interfaces []Interface `json:"interfaces"`
}

// ID returns the datapath ID of the router.
func (r Router) ID() (ofp.DatapathID, error) {
	if r.DPID != "" {
		return r.DPID.ID()
	}
	return r.Name.ID()
}

// Interface is a router interface. Neighbor names the switch or host
// attached to it.
type Interface struct {
	Name string `json:"name"`
	// Port is the switch port of the interface. If unset, it is taken from
	// the "eth<N>" suffix of the name.
	Port     ofp.PortNo   `json:"port,omitempty"`
	IP       netip.Addr   `json:"ip"`
	Subnet   netip.Prefix `json:"subnet"`
	MAC      HardwareAddr `json:"mac"`
	Neighbor string       `json:"neighbor,omitempty"`
}

// PortNo returns the switch port of the interface.
func (i Interface) PortNo() (ofp.PortNo, error) {
	if i.Port != 0 {
		return i.Port, nil
	}
	idx := strings.LastIndex(i.Name, "eth")
	if idx < 0 {
		return 0, serrors.New("interface without port", "interface", i.Name)
	}
	v, err := strconv.ParseUint(i.Name[idx+len("eth"):], 10, 32)
	if err != nil {
		return 0, serrors.Wrap("parsing interface port", err, "interface", i.Name)
	}
	return ofp.PortNo(v), nil
}

// StaticHost is an end host with a known address.
type StaticHost struct {
	Name string       `json:"name"`
	IP   netip.Addr   `json:"ip"`
	MAC  HardwareAddr `json:"mac"`
}

// HardwareAddr is a MAC address in its textual form.
type HardwareAddr net.HardwareAddr

func (a *HardwareAddr) UnmarshalText(b []byte) error {
	hw, err := net.ParseMAC(string(b))
	if err != nil {
		return err
	}
	if len(hw) != 6 {
		return serrors.New("not an EUI-48 address", "addr", string(b))
	}
	*a = HardwareAddr(hw)
	return nil
}

func (a HardwareAddr) MarshalText() ([]byte, error) {
	return []byte(net.HardwareAddr(a).String()), nil
}

// LinkCost is the administrative cost of a switch pair.
type LinkCost struct {
	Src  NodeName `json:"src"`
	Dst  NodeName `json:"dst"`
	Cost int      `json:"cost"`
}

// NodeName is a switch name, either "s<N>" or a plain number.
type NodeName string

// UnmarshalJSON accepts both JSON strings and numbers.
func (n *NodeName) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = NodeName(s)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(b, &v); err != nil {
		return serrors.Wrap("node name must be a string or number", err, "raw", string(b))
	}
	*n = NodeName(strconv.FormatUint(v, 10))
	return nil
}

// ID returns the datapath ID the name refers to.
func (n NodeName) ID() (ofp.DatapathID, error) {
	return ofp.ParseDatapathID(string(n))
}

// LoadDescription loads the description from a file path or an http(s) URL.
func LoadDescription(location string) (*Description, error) {
	rc, err := config.LoadResource(location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, serrors.Wrap("reading topology description", err, "location", location)
	}
	d, err := ParseDescription(raw)
	if err != nil {
		return nil, serrors.Wrap("parsing topology description", err, "location", location)
	}
	return d, nil
}

// ParseDescription parses and validates a JSON description.
func ParseDescription(raw []byte) (*Description, error) {
	var d Description
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks that the weight matrix is square and matches the node list,
// that all names parse and that no cost is negative.
func (d *Description) Validate() error {
	if len(d.WeightMatrix) != 0 && len(d.WeightMatrix) != len(d.Nodes) {
		return serrors.New("weight matrix does not match node list",
			"nodes", len(d.Nodes), "rows", len(d.WeightMatrix))
	}
	for i, row := range d.WeightMatrix {
		if len(row) != len(d.Nodes) {
			return serrors.New("weight matrix is not square", "row", i, "len", len(row))
		}
		for j, w := range row {
			if w < 0 {
				return serrors.New("negative weight", "row", i, "col", j)
			}
		}
	}
	for _, n := range d.Nodes {
		if _, err := n.ID(); err != nil {
			return err
		}
	}
	for _, l := range d.Links {
		if _, err := l.Src.ID(); err != nil {
			return err
		}
		if _, err := l.Dst.ID(); err != nil {
			return err
		}
		if l.Cost < 0 {
			return serrors.New("negative link cost", "src", l.Src, "dst", l.Dst)
		}
	}
	return d.validateRouting()
}

func (d *Description) validateRouting() error {
	ips := make(map[netip.Addr]string)
	for _, r := range d.Switches {
		if _, err := r.ID(); err != nil {
			return err
		}
		for _, i := range r.Interfaces {
			if _, err := i.PortNo(); err != nil {
				return err
			}
			if !i.IP.Is4() || !i.Subnet.IsValid() || !i.Subnet.Addr().Is4() {
				return serrors.New("interface needs an IPv4 address and subnet",
					"switch", r.Name, "interface", i.Name)
			}
			if len(i.MAC) == 0 {
				return serrors.New("interface without mac", "switch", r.Name,
					"interface", i.Name)
			}
			if other, ok := ips[i.IP]; ok {
				return serrors.New("duplicate interface address", "ip", i.IP,
					"interfaces", []string{other, i.Name})
			}
			ips[i.IP] = i.Name
		}
	}
	for _, h := range d.Hosts {
		if !h.IP.Is4() || len(h.MAC) == 0 {
			return serrors.New("host needs an IPv4 and a mac address", "host", h.Name)
		}
	}
	return nil
}

// Costs returns the configured cost of every adjacent pair in the
// description. Entries in Links override the weight matrix.
func (d *Description) Costs() ([]LinkCost, error) {
	var costs []LinkCost
	for i := range d.WeightMatrix {
		// The matrix is symmetric, one triangle is enough.
		for j := i + 1; j < len(d.WeightMatrix[i]); j++ {
			w := d.WeightMatrix[i][j]
			if w == 0 {
				w = d.WeightMatrix[j][i]
			}
			if w > 0 {
				costs = append(costs, LinkCost{Src: d.Nodes[i], Dst: d.Nodes[j], Cost: w})
			}
		}
	}
	return append(costs, d.Links...), nil
}

// Seed records the switches and configured costs of the description in the
// store. No links are created.
func (d *Description) Seed(s *Store) error {
	for _, n := range d.Nodes {
		id, err := n.ID()
		if err != nil {
			return err
		}
		s.AddSwitch(id)
	}
	for _, r := range d.Switches {
		id, err := r.ID()
		if err != nil {
			return err
		}
		s.AddSwitch(id)
	}
	costs, err := d.Costs()
	if err != nil {
		return err
	}
	for _, c := range costs {
		a, err := c.Src.ID()
		if err != nil {
			return err
		}
		b, err := c.Dst.ID()
		if err != nil {
			return err
		}
		s.SetConfiguredCost(a, b, c.Cost)
	}
	return nil
}
