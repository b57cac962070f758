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

package mgmtapi

// Problem types.
const (
	BadRequest    = "/problems/bad-request"
	InternalError = "/problems/internal-error"
)

// Link states accepted by SetLinkState.
const (
	LinkStateDown = "down"
	LinkStateUp   = "up"
)

// Problem is an RFC 7807 error description.
type Problem struct {
	Detail *string `json:"detail,omitempty"`
	Status int     `json:"status"`
	Title  string  `json:"title"`
	Type   *string `json:"type,omitempty"`
}

// StringRef returns a pointer to s.
func StringRef(s string) *string {
	return &s
}

// InfoResponse is the response of GetInfo.
type InfoResponse struct {
	Policy            string `json:"policy"`
	DiscoveryInterval string `json:"discovery_interval"`
	Switches          int    `json:"switches"`
	Links             int    `json:"links"`
	Hosts             int    `json:"hosts"`
}

// TopologyResponse is the response of GetTopology.
type TopologyResponse struct {
	Switches []Switch `json:"switches"`
	Links    []Link   `json:"links"`
}

// Switch is a switch of the topology.
type Switch struct {
	ID        string   `json:"id"`
	Ports     []uint32 `json:"ports"`
	Connected bool     `json:"connected"`
	Discovery string   `json:"discovery_state"`
}

// Link is a switch-to-switch link.
type Link struct {
	A           string  `json:"a"`
	PortA       uint32  `json:"port_a"`
	B           string  `json:"b"`
	PortB       uint32  `json:"port_b"`
	Cost        int     `json:"cost"`
	Utilization float64 `json:"utilization"`
}

// Host is a learned end host.
type Host struct {
	Addr   string `json:"address"`
	Switch string `json:"switch"`
	Port   uint32 `json:"port"`
}

// PathsResponse is the response of GetPaths.
type PathsResponse struct {
	Src      string     `json:"src"`
	Dst      string     `json:"dst"`
	Policy   string     `json:"policy"`
	Paths    [][]string `json:"paths"`
	Selected []string   `json:"selected"`
}

// LinkStateRequest is the body of SetLinkState.
type LinkStateRequest struct {
	State string  `json:"state"`
	PortA *uint32 `json:"port_a,omitempty"`
	PortB *uint32 `json:"port_b,omitempty"`
}
