// Copyright 2020 Anapaya Systems
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

package metrics

import (
	"maps"

	"github.com/prometheus/client_golang/prometheus"
)

// NewPromCounterFrom creates a prometheus counter vector, registers it with
// reg and returns it wrapped as a counter. If reg is nil the default
// registerer is used. Registering a name twice panics.
func NewPromCounterFrom(reg prometheus.Registerer, opts prometheus.CounterOpts,
	labelNames []string) Counter {

	cv := prometheus.NewCounterVec(opts, labelNames)
	registerer(reg).MustRegister(cv)
	return promCounter{vec: cv}
}

// NewPromGaugeFrom creates a prometheus gauge vector, registers it with reg
// and returns it wrapped as a gauge. If reg is nil the default registerer is
// used. Registering a name twice panics.
func NewPromGaugeFrom(reg prometheus.Registerer, opts prometheus.GaugeOpts,
	labelNames []string) Gauge {

	gv := prometheus.NewGaugeVec(opts, labelNames)
	registerer(reg).MustRegister(gv)
	return promGauge{vec: gv}
}

func registerer(reg prometheus.Registerer) prometheus.Registerer {
	if reg == nil {
		return prometheus.DefaultRegisterer
	}
	return reg
}

// promCounter is a counter vector with a partial set of label values. The
// labels must be complete once the counter is updated.
type promCounter struct {
	vec    *prometheus.CounterVec
	labels prometheus.Labels
}

func (c promCounter) With(labelValues ...string) Counter {
	return promCounter{vec: c.vec, labels: withLabels(c.labels, labelValues)}
}

func (c promCounter) Add(delta float64) {
	c.vec.With(c.labels).Add(delta)
}

// promGauge is the gauge counterpart of promCounter.
type promGauge struct {
	vec    *prometheus.GaugeVec
	labels prometheus.Labels
}

func (g promGauge) With(labelValues ...string) Gauge {
	return promGauge{vec: g.vec, labels: withLabels(g.labels, labelValues)}
}

func (g promGauge) Set(value float64) {
	g.vec.With(g.labels).Set(value)
}

func (g promGauge) Add(delta float64) {
	g.vec.With(g.labels).Add(delta)
}

// withLabels returns a copy of labels extended by the key/value pairs. A key
// without value gets the value "unknown". Later pairs override earlier ones.
func withLabels(labels prometheus.Labels, kv []string) prometheus.Labels {
	if len(kv)%2 != 0 {
		kv = append(kv, "unknown")
	}
	res := make(prometheus.Labels, len(labels)+len(kv)/2)
	maps.Copy(res, labels)
	for i := 0; i < len(kv); i += 2 {
		res[kv[i]] = kv[i+1]
	}
	return res
}
