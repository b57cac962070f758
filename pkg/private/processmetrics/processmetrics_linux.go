// Copyright 2023 SCION Association
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

//go:build linux

// Package processmetrics provides a custom collector to export process-level
// scheduling metrics beyond what prometheus.ProcessCollector offers.
// This implementation is restricted to Linux. The generic implementation
// does nothing.
package processmetrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"

	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

var (
	runningTime = prometheus.NewDesc(
		"process_running_seconds_total",
		"CPU time the process used (running state) since it started.",
		nil, nil,
	)
	runnableTime = prometheus.NewDesc(
		"process_runnable_seconds_total",
		"CPU time the process was denied (runnable state) since it started.",
		nil, nil,
	)
	goCores = prometheus.NewDesc(
		"go_sched_maxprocs_threads",
		"The current runtime.GOMAXPROCS setting.",
		nil, nil,
	)
	scrapeErrors = prometheus.NewDesc(
		"process_metrics_scrape_errors_total",
		"The number of times reading the scheduler statistics failed.",
		nil, nil,
	)
)

// procStatCollector reads the scheduler statistics of the own process from
// /proc/self/schedstat on every scrape.
type procStatCollector struct {
	self   procfs.Proc
	errors int64
}

// Describe tells prometheus all the metrics that this collector collects.
func (c *procStatCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

// Collect reports the current values. Durations are converted to seconds.
func (c *procStatCollector) Collect(ch chan<- prometheus.Metric) {
	stat, err := c.self.Schedstat()
	if err != nil {
		c.errors++
	} else {
		ch <- prometheus.MustNewConstMetric(runningTime, prometheus.CounterValue,
			float64(stat.RunningNanoseconds)/1e9)
		ch <- prometheus.MustNewConstMetric(runnableTime, prometheus.CounterValue,
			float64(stat.WaitingNanoseconds)/1e9)
	}
	ch <- prometheus.MustNewConstMetric(goCores, prometheus.GaugeValue,
		float64(runtime.GOMAXPROCS(-1)))
	ch <- prometheus.MustNewConstMetric(scrapeErrors, prometheus.CounterValue,
		float64(c.errors))
}

// Init creates and registers the collector with reg. Call this only once per
// registry or get an error. It is safe to ignore errors from this but
// prometheus may lack some metrics.
func Init(reg prometheus.Registerer) error {
	self, err := procfs.Self()
	if err != nil {
		return serrors.Wrap("opening /proc/self", err)
	}
	if err := reg.Register(&procStatCollector{self: self}); err != nil {
		return serrors.Wrap("registering process metrics", err)
	}
	return nil
}
