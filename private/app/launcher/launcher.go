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

// Package launcher includes the shared application execution boilerplate of
// the controller binaries.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scionproto/sdnctrl/pkg/log"
	"github.com/scionproto/sdnctrl/pkg/metrics"
	"github.com/scionproto/sdnctrl/pkg/private/prom"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/app/command"
	libconfig "github.com/scionproto/sdnctrl/private/config"
)

// Configuration keys used by the launcher.
const (
	cfgLogConsoleLevel  = "log.console.level"
	cfgLogConsoleFormat = "log.console.format"
	cfgLogDisableCaller = "log.console.disable_caller"
	cfgGeneralID        = "general.id"
	cfgConfigFile       = "config"
)

// EnvConfigFile is the environment variable that can hold the path of the
// configuration file instead of the --config flag.
const EnvConfigFile = "SDNCTRL_CONFIG"

// Application models a controller application.
type Application struct {
	// TOMLConfig holds the Go data structure for the application-specific
	// TOML configuration. The file is decoded into it, defaults are
	// initialized and the result is validated before Main is called.
	TOMLConfig libconfig.Config

	// Samplers contains additional sample subcommands. If empty, only the
	// config sample is listed.
	Samplers []func(command.Pather) *cobra.Command

	// Commands contains additional subcommands of the application.
	Commands []func(command.Pather) *cobra.Command

	// ShortName is the short name of the application. If empty, the
	// executable name is used.
	ShortName string

	// Main is the custom logic of the application. If nil, no custom logic is
	// executed (and only the setup/teardown harness runs). If Main returns an
	// error, the Run method will return a non-zero exit code.
	Main func(ctx context.Context) error

	// ErrorWriter specifies where error output should be printed. If nil,
	// os.Stderr is used.
	ErrorWriter io.Writer

	// config contains the Viper configuration KV store.
	config *viper.Viper
}

// Run sets up the common server harness, and then passes control to the Main
// function (if one exists).
//
// Run uses the following globals:
//
//	os.Args
//
// Run will exit the application if it encounters a fatal error.
func (a *Application) Run() {
	if err := a.run(os.Args[1:]); err != nil {
		fmt.Fprintf(a.getErrorWriter(), "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func (a *Application) run(args []string) error {
	executable := filepath.Base(os.Args[0])
	shortName := a.getShortName(executable)

	cmd := newCommandTemplate(executable, shortName, a.TOMLConfig, a.Samplers...)
	for _, f := range a.Commands {
		cmd.AddCommand(f(cmd))
	}
	cmd.SetArgs(args)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.executeCommand(cmd.Context(), shortName)
	}
	a.config = viper.New()
	a.config.SetDefault(cfgLogConsoleLevel, log.DefaultConsoleLevel)
	a.config.SetDefault(cfgLogConsoleFormat, log.DefaultConsoleFormat)
	a.config.SetDefault(cfgLogDisableCaller, false)
	a.config.SetDefault(cfgGeneralID, executable)
	// The configuration file location is specified through command-line flags
	// or the environment. Once the flags are parsed, we register the location
	// of the config file with the viper config.
	if err := a.config.BindPFlag(cfgConfigFile, cmd.Flags().Lookup(cfgConfigFile)); err != nil {
		return err
	}
	if err := a.config.BindEnv(cfgConfigFile, EnvConfigFile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return cmd.ExecuteContext(ctx)
}

func (a *Application) executeCommand(ctx context.Context, shortName string) error {
	os.Setenv("TZ", "UTC")

	file := a.config.GetString(cfgConfigFile)
	if file == "" {
		return serrors.New("no configuration file specified",
			"flag", "--"+cfgConfigFile, "env", EnvConfigFile)
	}
	// Load launcher configurations from the same config file as the custom
	// application configuration.
	a.config.SetConfigType("toml")
	a.config.SetConfigFile(file)
	if err := a.config.ReadInConfig(); err != nil {
		return serrors.Wrap("loading generic server config from file", err, "file", file)
	}
	if err := libconfig.LoadFile(file, a.TOMLConfig); err != nil {
		return serrors.Wrap("loading config from file", err, "file", file)
	}
	a.TOMLConfig.InitDefaults()

	logEntriesTotal := metrics.NewPromCounterFrom(nil, prometheus.CounterOpts{
		Name: "lib_log_emitted_entries_total",
		Help: "Total number of log entries emitted.",
	}, []string{"level"})
	opt := log.WithEntriesCounter(log.EntriesCounter{
		Debug: logEntriesTotal.With("level", "debug"),
		Info:  logEntriesTotal.With("level", "info"),
		Error: logEntriesTotal.With("level", "error"),
	})
	if err := log.Setup(a.getLogging(), opt); err != nil {
		return serrors.Wrap("initialize logging", err)
	}
	defer log.Flush()
	defer log.HandlePanic()

	id := a.config.GetString(cfgGeneralID)
	log.Info("=====================> Service started", "service", shortName, "id", id,
		"version", command.Version())
	defer log.Info("=====================> Service stopped", "service", shortName, "id", id)

	prom.ExportElementID(prometheus.DefaultRegisterer, id)
	if err := a.TOMLConfig.Validate(); err != nil {
		return serrors.Wrap("validate config", err)
	}
	if a.Main == nil {
		return nil
	}
	return a.Main(ctx)
}

func (a *Application) getLogging() log.Config {
	return log.Config{
		Console: log.ConsoleConfig{
			Level:         a.config.GetString(cfgLogConsoleLevel),
			Format:        a.config.GetString(cfgLogConsoleFormat),
			DisableCaller: a.config.GetBool(cfgLogDisableCaller),
		},
	}
}

func (a *Application) getShortName(executable string) string {
	if a.ShortName != "" {
		return a.ShortName
	}
	return executable
}

func (a *Application) getErrorWriter() io.Writer {
	if a.ErrorWriter != nil {
		return a.ErrorWriter
	}
	return os.Stderr
}

func newCommandTemplate(executable string, shortName string, config libconfig.Sampler,
	samplers ...func(command.Pather) *cobra.Command) *cobra.Command {

	cmd := &cobra.Command{
		Use:           executable,
		Short:         shortName,
		Example:       fmt.Sprintf("  %s --config %s", executable, "sdnctrl.toml"),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	cmd.AddCommand(
		command.NewCompletion(cmd),
		command.NewSample(cmd, append(samplers, command.NewSampleConfig(config))...),
		command.NewVersion(cmd),
		command.NewGendocs(cmd),
	)
	cmd.Flags().String(cfgConfigFile, "",
		fmt.Sprintf("Configuration file (or set %s)", EnvConfigFile))
	return cmd
}
