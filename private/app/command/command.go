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

// Package command contains cobra subcommands shared by the controller
// binaries.
package command

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/scionproto/sdnctrl/private/config"
)

// Pather returns the command path of the parent command. It is used to render
// examples with the correct invocation.
type Pather interface {
	CommandPath() string
}

// NewSample creates the sample command that groups the sample subcommands.
func NewSample(pather Pather, cmds ...func(Pather) *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Display sample files",
		Args:  cobra.NoArgs,
	}
	for _, f := range cmds {
		cmd.AddCommand(f(cmd))
	}
	return cmd
}

// NewSampleConfig returns a constructor for the "sample config" command that
// prints the sample of the given configuration.
func NewSampleConfig(sampler config.Sampler) func(Pather) *cobra.Command {
	return func(pather Pather) *cobra.Command {
		return &cobra.Command{
			Use:     "config",
			Short:   "Display sample configuration file",
			Example: fmt.Sprintf("  %s config", pather.CommandPath()),
			Args:    cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				config.WriteSample(cmd.OutOrStdout(), nil,
					config.CtxMap{config.ID: "sdnctrl-1"}, sampler)
			},
		}
	}
}

// NewVersion creates the version command. The version is taken from the
// build information embedded in the binary.
func NewVersion(pather Pather) *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show the version information",
		Example: fmt.Sprintf("  %s version", pather.CommandPath()),
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version())
		},
	}
}

// Version returns the module version of the running binary.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}

// NewCompletion creates the completion command that generates shell
// completion scripts.
func NewCompletion(pather Pather) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "completion [bash|zsh|fish]",
		Short:                 "Generate the autocompletion script for the specified shell",
		Example:               fmt.Sprintf("  %s completion bash", pather.CommandPath()),
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return root.GenZshCompletion(os.Stdout)
			default:
				return root.GenFishCompletion(os.Stdout, true)
			}
		},
	}
	return cmd
}
