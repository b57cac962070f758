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
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/app/command"
	"github.com/scionproto/sdnctrl/private/topology"
)

func newPaths(pather command.Pather) *cobra.Command {
	var flags struct {
		topology string
		src      string
		dst      string
	}
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Show the shortest paths of a static topology description",
		Long: `Show all minimum-cost paths between two switches.

The adjacency is taken from the weight matrix and the links of the topology
description, so the result matches what the controller computes once
discovery has found exactly these links.`,
		Example: fmt.Sprintf("  %s paths --topology topology.json --src s1 --dst s4",
			pather.CommandPath()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := ofp.ParseDatapathID(flags.src)
			if err != nil {
				return serrors.Wrap("parsing --src", err)
			}
			dst, err := ofp.ParseDatapathID(flags.dst)
			if err != nil {
				return serrors.Wrap("parsing --dst", err)
			}
			desc, err := topology.LoadDescription(flags.topology)
			if err != nil {
				return err
			}
			return printPaths(cmd.OutOrStdout(), desc, src, dst)
		},
	}
	cmd.Flags().StringVar(&flags.topology, "topology", "topology.json",
		"Topology description file or http(s) URL")
	cmd.Flags().StringVar(&flags.src, "src", "", "Source switch")
	cmd.Flags().StringVar(&flags.dst, "dst", "", "Destination switch")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("dst")
	return cmd
}

func printPaths(w io.Writer, desc *topology.Description, src, dst ofp.DatapathID) error {
	store, err := descriptionStore(desc)
	if err != nil {
		return err
	}
	paths := store.AllShortestPaths(src, dst)
	if len(paths) == 0 {
		return serrors.New("no path", "src", src, "dst", dst)
	}
	rows := make([][]string, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, []string{p.String(), strconv.Itoa(store.PathCost(p))})
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"PATH", "COST"})
	table.AppendBulk(rows)
	table.Render()
	return nil
}

// descriptionStore builds a store with one link for every pair that has a
// configured cost. Ports are numbered per switch in the order the pairs are
// listed.
func descriptionStore(desc *topology.Description) (*topology.Store, error) {
	store := topology.NewStore(topology.DefaultLinkCost)
	if err := desc.Seed(store); err != nil {
		return nil, err
	}
	costs, err := desc.Costs()
	if err != nil {
		return nil, err
	}
	next := make(map[ofp.DatapathID]ofp.PortNo)
	for _, c := range costs {
		a, err := c.Src.ID()
		if err != nil {
			return nil, err
		}
		b, err := c.Dst.ID()
		if err != nil {
			return nil, err
		}
		if a == b || store.HasLink(a, b) {
			continue
		}
		next[a]++
		next[b]++
		store.UpsertLink(a, next[a], b, next[b], 0)
	}
	return store, nil
}
