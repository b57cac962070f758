// Copyright 2019 Anapaya Systems
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

// Package prom contains label names and values shared by the controller
// metrics, together with some registration helpers.
package prom

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the prometheus namespace of all controller metrics.
const Namespace = "sdnctrl"

// Common label names.
const (
	// LabelResult is the label for result classifications.
	LabelResult = "result"
	// LabelOperation is the label for the name of an executed operation.
	LabelOperation = "op"
	// LabelEvent is the label for the type of a handled event.
	LabelEvent = "event"
	// LabelReason classifies why something was dropped or discarded.
	LabelReason = "reason"
)

// Common result values.
const (
	// Success is no error.
	Success = "ok_success"
	// ErrNotClassified is an error that is not further classified.
	ErrNotClassified = "err_not_classified"
	// ErrParse failed to parse a message.
	ErrParse = "err_parse"
	// ErrNotFound is used for errors where a resource is not found.
	ErrNotFound = "err_not_found"
	// ErrUnavailable is used when no path or session is available.
	ErrUnavailable = "err_unavailable"
	// ErrNetwork is used for errors when sending something to a switch.
	ErrNetwork = "err_network"
)

// SafeRegister registers c with reg and returns the registered collector. If
// c was already registered the already registered collector is returned. In
// case of any other error this method panics (as MustRegister).
func SafeRegister(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// ExportElementID exports the element ID as configured in the config file.
func ExportElementID(reg prometheus.Registerer, id string) {
	g := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "elem_id",
			Help:      "The element ID from the config file",
		},
		[]string{"cfg"},
	)
	SafeRegister(reg, g).(*prometheus.GaugeVec).WithLabelValues(id).Set(1)
}
