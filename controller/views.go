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

package controller

import (
	"github.com/samber/lo"

	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/private/discovery"
	"github.com/scionproto/sdnctrl/private/hostloc"
	"github.com/scionproto/sdnctrl/private/topology"
)

// Switch describes a switch known to the controller.
type Switch struct {
	ID        ofp.DatapathID
	Ports     []ofp.PortNo
	Connected bool
	Discovery discovery.State
}

// Snapshot is a point-in-time view of the controller state. The parts are
// read one after another, a concurrent event may be reflected in some parts
// only.
type Snapshot struct {
	Switches []Switch
	Links    []topology.Link
	Hosts    []hostloc.Host
}

// Snapshot returns the current view of the network. It does not block event
// handling.
func (c *Controller) Snapshot() Snapshot {
	switches := lo.Map(c.Topology.Switches(), func(id ofp.DatapathID, _ int) Switch {
		_, connected := c.Sessions.Get(id)
		return Switch{
			ID:        id,
			Ports:     c.Topology.Ports(id),
			Connected: connected,
			Discovery: c.Discovery.State(id),
		}
	})
	return Snapshot{
		Switches: switches,
		Links:    c.Topology.Links(),
		Hosts:    c.Hosts.All(),
	}
}

// Paths returns all shortest paths between the switches and the one the
// active policy selects. Nothing is installed, but the ecmp policy draws from
// its random source, which shifts the choices of later packets.
func (c *Controller) Paths(src, dst ofp.DatapathID) ([]topology.Path, topology.Path) {
	all := c.Topology.AllShortestPaths(src, dst)
	return all, c.Policy.Select(all)
}

// PolicyName returns the name of the active path selection policy.
func (c *Controller) PolicyName() string {
	return c.Policy.Name()
}
