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

package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scionproto/sdnctrl/controller"
	"github.com/scionproto/sdnctrl/controller/config"
	api "github.com/scionproto/sdnctrl/controller/mgmtapi"
	"github.com/scionproto/sdnctrl/pkg/log"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/processmetrics"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/app/command"
	"github.com/scionproto/sdnctrl/private/app/launcher"
	"github.com/scionproto/sdnctrl/private/topology"
)

var globalCfg config.Config

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "SDN Controller",
		Main:       realMain,
		Commands:   []func(command.Pather) *cobra.Command{newPaths},
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	ctrlCfg, err := controllerConfig()
	if err != nil {
		return err
	}
	ctrl, err := controller.New(ctrlCfg)
	if err != nil {
		return serrors.Wrap("creating controller", err)
	}
	if err := processmetrics.Init(prometheus.DefaultRegisterer); err != nil {
		log.Info("Process metrics unavailable", "err", err)
	}
	log.Info("Controller created", "policy", ctrl.PolicyName(),
		"routing", globalCfg.Controller.Routing, "switches", len(ctrl.Topology.Switches()))

	g, errCtx := errgroup.WithContext(ctx)
	var cleanup []func() error

	interval := globalCfg.Controller.DiscoveryInterval.Duration
	refresher := ctrl.StartDiscovery(interval)
	cleanup = append(cleanup, func() error {
		refresher.Kill()
		return nil
	})

	// Initialize and start the management API.
	if globalCfg.API.Addr != "" {
		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
		}))
		server := api.Server{
			Controller:        ctrl,
			DiscoveryInterval: interval,
		}
		log.Info("Exposing API", "addr", globalCfg.API.Addr)
		h := api.HandlerFromMuxWithBaseURL(&server, r, "/api/v1")
		mgmtServer := &http.Server{
			Addr:    globalCfg.API.Addr,
			Handler: h,
		}
		cleanup = append(cleanup, mgmtServer.Close)
		g.Go(func() error {
			defer log.HandlePanic()
			err := mgmtServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return serrors.Wrap("serving management API", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		return globalCfg.Metrics.ServePrometheus(errCtx)
	})
	// TODO: feed this channel from an OpenFlow 1.3 listener. Until then,
	// topology changes only arrive through the management API.
	events := make(chan ofp.Event)
	g.Go(func() error {
		defer log.HandlePanic()
		return ctrl.Run(errCtx, events)
	})
	g.Go(func() error {
		defer log.HandlePanic()
		<-errCtx.Done()
		var errs serrors.List
		for _, f := range cleanup {
			if err := f(); err != nil {
				errs = append(errs, err)
			}
		}
		return errs.ToError()
	})

	return g.Wait()
}

func controllerConfig() (controller.Config, error) {
	cfg := globalCfg.Controller
	idle, err := config.TimeoutSeconds(cfg.FlowIdleTimeout.Duration)
	if err != nil {
		return controller.Config{}, err
	}
	hard, err := config.TimeoutSeconds(cfg.FlowHardTimeout.Duration)
	if err != nil {
		return controller.Config{}, err
	}
	desc, err := loadDescription()
	if err != nil {
		return controller.Config{}, err
	}
	return controller.Config{
		Policy:          cfg.PolicyName(desc != nil && desc.ECMP),
		Seed:            cfg.Seed,
		Routing:         cfg.Routing,
		DefaultLinkCost: cfg.DefaultLinkCost,
		FlowPriority:    cfg.FlowPriority,
		FlowIdleTimeout: idle,
		FlowHardTimeout: hard,
		Description:     desc,
		Metrics:         controller.NewMetrics(nil),
	}, nil
}

// loadDescription loads the static topology description. A topology.json
// that is missing from the config directory is not an error, an explicitly
// configured topology_file is.
func loadDescription() (*topology.Description, error) {
	file := globalCfg.TopologyFile()
	if file == "" {
		return nil, nil
	}
	if globalCfg.Controller.TopologyFile == "" {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			log.Info("No static topology description", "file", file)
			return nil, nil
		}
	}
	desc, err := topology.LoadDescription(file)
	if err != nil {
		return nil, serrors.Wrap("loading topology", err)
	}
	return desc, nil
}
