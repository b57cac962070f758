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

package config

const idSample = "sdnctrl-1"

const controllerSample = `
# The path selection policy among equal-cost shortest paths.
#
# - deterministic:  Always the first path in enumeration order.
# - ecmp:           A uniformly sampled path.
# - least-utilized: The path with the least accumulated utilization.
#
# (default deterministic, or ecmp if the topology description sets "ecmp")
policy = "deterministic"

# The forwarding mode.
#
# - l2: Switch on the Ethernet addresses of learned hosts.
# - l3: Route IPv4 between the subnets of the router interfaces in the topology
#       description. Other traffic is switched.
#
# (default l2)
routing = "l2"

# The interval between two port list refreshes of every switch. Each refresh
# re-emits the discovery probes. (default 2s)
discovery_interval = "2s"

# The cost of links that have no cost in the topology description. (default 1)
default_link_cost = 1

# The priority of installed flow rules. Link changes flush all rules of this
# priority. (default 1)
flow_priority = 1

# The idle and hard timeouts of installed flow rules. Zero means the rules do
# not expire. (default 0s)
flow_idle_timeout = "0s"
flow_hard_timeout = "0s"

# The static topology description, a file path or an http(s) URL. It provides
# link costs, the switch set and, for l3 routing, the router interfaces and
# hosts. Links are always discovered.
# (default general.config_dir/topology.json if config_dir is set)
topology_file = ""

# The seed of the random source of the ecmp policy. 0 seeds from the current
# time. (default 0)
seed = 0
`
