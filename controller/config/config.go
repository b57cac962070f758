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

// Package config describes the configuration of the SDN controller.
package config

import (
	"io"
	"math"
	"time"

	"github.com/scionproto/sdnctrl/controller"
	"github.com/scionproto/sdnctrl/pkg/log"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/pkg/private/util"
	"github.com/scionproto/sdnctrl/private/config"
	"github.com/scionproto/sdnctrl/private/env"
	"github.com/scionproto/sdnctrl/private/path/selection"
)

const (
	// DefaultDiscoveryInterval is the default interval between two port list
	// refreshes of every switch.
	DefaultDiscoveryInterval = 2 * time.Second
	// DefaultLinkCost is the default cost of links without configured cost.
	DefaultLinkCost = 1
	// DefaultFlowPriority is the default priority of installed flow rules.
	DefaultFlowPriority = 1
)

var _ config.Config = (*Config)(nil)

// Config is the controller configuration.
type Config struct {
	General    env.General `toml:"general,omitempty"`
	Logging    log.Config  `toml:"log,omitempty"`
	Metrics    env.Metrics `toml:"metrics,omitempty"`
	API        env.API     `toml:"api,omitempty"`
	Controller Controller  `toml:"controller,omitempty"`
}

// InitDefaults initializes the default values for all parts of the config.
func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Controller,
	)
}

// Validate validates all parts of the config.
func (cfg *Config) Validate() error {
	return config.ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Controller,
	)
}

// Sample generates a sample config file for the controller.
func (cfg *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, config.CtxMap{config.ID: idSample},
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Controller,
	)
}

// TopologyFile returns the location of the static topology description. If
// not configured explicitly, the topology.json in the config directory is
// used, if a config directory is set.
func (cfg *Config) TopologyFile() string {
	if cfg.Controller.TopologyFile != "" {
		return cfg.Controller.TopologyFile
	}
	if cfg.General.ConfigDir != "" {
		return cfg.General.Topology()
	}
	return ""
}

var _ config.Config = (*Controller)(nil)

// Controller holds the configuration specific to the controller.
type Controller struct {
	// Policy is the path selection policy. If empty, ecmp is used if the
	// topology description requests it and deterministic otherwise.
	Policy string `toml:"policy,omitempty"`
	// Routing is the forwarding mode, "l2" or "l3".
	Routing string `toml:"routing,omitempty"`
	// DiscoveryInterval is the interval between two discovery refreshes.
	DiscoveryInterval util.DurWrap `toml:"discovery_interval,omitempty"`
	// DefaultLinkCost is the cost of links without configured cost.
	DefaultLinkCost int `toml:"default_link_cost,omitempty"`
	// FlowPriority is the priority of installed flow rules.
	FlowPriority uint16 `toml:"flow_priority,omitempty"`
	// FlowIdleTimeout is the idle timeout of installed flow rules. Zero means
	// rules never expire.
	FlowIdleTimeout util.DurWrap `toml:"flow_idle_timeout,omitempty"`
	// FlowHardTimeout is the hard timeout of installed flow rules.
	FlowHardTimeout util.DurWrap `toml:"flow_hard_timeout,omitempty"`
	// TopologyFile is the static topology description. It can be a file path
	// or an http(s) URL.
	TopologyFile string `toml:"topology_file,omitempty"`
	// Seed seeds the random source of the ecmp policy. Zero seeds from the
	// current time.
	Seed int64 `toml:"seed,omitempty"`
}

// InitDefaults sets the defaults of unset values.
func (cfg *Controller) InitDefaults() {
	if cfg.Routing == "" {
		cfg.Routing = controller.RoutingL2
	}
	if cfg.DiscoveryInterval.Duration == 0 {
		cfg.DiscoveryInterval.Duration = DefaultDiscoveryInterval
	}
	if cfg.DefaultLinkCost == 0 {
		cfg.DefaultLinkCost = DefaultLinkCost
	}
	if cfg.FlowPriority == 0 {
		cfg.FlowPriority = DefaultFlowPriority
	}
}

// Validate checks the policy name, the routing mode, the costs and the
// timeouts.
func (cfg *Controller) Validate() error {
	if cfg.Policy != "" {
		if _, err := selection.ParseName(cfg.Policy); err != nil {
			return err
		}
	}
	switch cfg.Routing {
	case controller.RoutingL2, controller.RoutingL3:
	default:
		return serrors.New("unknown routing mode", "routing", cfg.Routing)
	}
	if cfg.DiscoveryInterval.Duration <= 0 {
		return serrors.New("discovery_interval must be positive",
			"value", cfg.DiscoveryInterval)
	}
	if cfg.DefaultLinkCost < 1 {
		return serrors.New("default_link_cost must be at least 1",
			"value", cfg.DefaultLinkCost)
	}
	if _, err := TimeoutSeconds(cfg.FlowIdleTimeout.Duration); err != nil {
		return serrors.Wrap("invalid flow_idle_timeout", err)
	}
	if _, err := TimeoutSeconds(cfg.FlowHardTimeout.Duration); err != nil {
		return serrors.Wrap("invalid flow_hard_timeout", err)
	}
	return nil
}

// PolicyName resolves the configured policy name.
func (cfg *Controller) PolicyName(ecmp bool) string {
	switch {
	case cfg.Policy != "":
		return cfg.Policy
	case ecmp:
		return selection.NameECMP
	default:
		return selection.NameDeterministic
	}
}

// Sample writes the sample of the controller block.
func (cfg *Controller) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteString(dst, controllerSample)
}

// ConfigName is the toml key of the controller block.
func (cfg *Controller) ConfigName() string {
	return "controller"
}

// TimeoutSeconds converts a rule timeout to whole seconds.
func TimeoutSeconds(d time.Duration) (uint16, error) {
	if d < 0 {
		return 0, serrors.New("negative timeout", "timeout", d)
	}
	s := d / time.Second
	if s > math.MaxUint16 {
		return 0, serrors.New("timeout too large", "timeout", d,
			"max", time.Duration(math.MaxUint16)*time.Second)
	}
	return uint16(s), nil
}
