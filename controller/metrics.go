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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scionproto/sdnctrl/controller/flows"
	"github.com/scionproto/sdnctrl/pkg/metrics"
	"github.com/scionproto/sdnctrl/pkg/private/prom"
	"github.com/scionproto/sdnctrl/private/discovery"
	"github.com/scionproto/sdnctrl/private/periodic"
)

// labelDecision is the label of the forwarding decision for an observed
// packet.
const labelDecision = "decision"

// Forwarding decisions for observed packets.
const (
	decisionInstall = "install"
	decisionFlood   = "flood"
	decisionProbe   = "probe"

	decisionRoute     = "route"
	decisionARPReply  = "arp_reply"
	decisionEchoReply = "echo_reply"
	decisionDrop      = "drop"
)

// Metrics are the metrics of the controller. The zero value disables all
// metrics.
type Metrics struct {
	// Events counts handled events, labeled by event and result.
	Events metrics.Counter
	// Packets counts observed packets, labeled by decision.
	Packets metrics.Counter
	// Links is the number of known switch-to-switch links.
	Links metrics.Gauge
	// Hosts is the number of learned hosts.
	Hosts metrics.Gauge
	// Switches is the number of connected switches.
	Switches metrics.Gauge

	Discovery discovery.Metrics
	Flows     flows.Metrics
	// Refresher reports the runs of the discovery refresh task. Nil disables
	// it.
	Refresher *periodic.Metrics
}

// NewMetrics creates the controller metrics and registers them with reg. If
// reg is nil, the default registerer is used.
func NewMetrics(reg prometheus.Registerer) Metrics {
	counter := func(name, help string, labels ...string) metrics.Counter {
		return metrics.NewPromCounterFrom(reg, prometheus.CounterOpts{
			Namespace: prom.Namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}
	gauge := func(name, help string, labels ...string) metrics.Gauge {
		return metrics.NewPromGaugeFrom(reg, prometheus.GaugeOpts{
			Namespace: prom.Namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}
	refresherEvents := counter("discovery_refresher_events_total",
		"Total number of events of the discovery refresh task.", prom.LabelEvent)
	return Metrics{
		Events: counter("events_total",
			"Total number of handled events.", prom.LabelEvent, prom.LabelResult),
		Packets: counter("observed_packets_total",
			"Total number of packets handed to the controller.", labelDecision),
		Links:    gauge("links", "Number of known switch-to-switch links."),
		Hosts:    gauge("hosts", "Number of learned end hosts."),
		Switches: gauge("switches", "Number of connected switches."),
		Discovery: discovery.Metrics{
			ProbesSent: counter("discovery_probes_sent_total",
				"Total number of emitted discovery probes.", prom.LabelResult),
			ProbesReceived: counter("discovery_probes_received_total",
				"Total number of observed discovery probes.",
				prom.LabelResult, prom.LabelReason),
			PortRequests: counter("discovery_port_requests_total",
				"Total number of port list requests.", prom.LabelResult),
		},
		Flows: flows.Metrics{
			Rules: counter("flow_rules_installed_total",
				"Total number of flow rule installations.", prom.LabelResult),
			SkippedHops: counter("flow_skipped_hops_total",
				"Total number of path hops no rules were installed on.", prom.LabelReason),
			Flushes: counter("flow_flushes_total",
				"Total number of per-switch flow rule flushes.", prom.LabelResult),
		},
		Refresher: &periodic.Metrics{
			Events: func(e string) metrics.Counter {
				return refresherEvents.With(prom.LabelEvent, e)
			},
			Period: gauge("discovery_refresher_period_seconds",
				"The period of the discovery refresh task."),
			Runtime: gauge("discovery_refresher_runtime_seconds",
				"The duration of the last discovery refresh."),
			StartTime: gauge("discovery_refresher_start_timestamp_seconds",
				"The start time of the last discovery refresh."),
		},
	}
}
