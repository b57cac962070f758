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

// Package flows installs the forwarding rules of a flow along a path.
//
// Installation is best effort. Every hop whose prerequisites cannot be
// resolved is logged and skipped, the remaining hops are still installed.
package flows

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/scionproto/sdnctrl/pkg/log"
	"github.com/scionproto/sdnctrl/pkg/metrics"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/pkg/private/prom"
	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/hostloc"
	"github.com/scionproto/sdnctrl/private/l3"
	"github.com/scionproto/sdnctrl/private/topology"
)

const (
	// DefaultPriority is the priority of flow rules.
	DefaultPriority = 1
	// TableMissPriority is the priority of the rule sending unmatched packets
	// to the controller.
	TableMissPriority = 0
	// UtilizationUnit is added to the utilization of every link a flow is
	// installed on.
	UtilizationUnit = 1.0
	// maxConcurrentFlushes bounds the number of concurrent flush requests.
	maxConcurrentFlushes = 16
)

// Reasons for skipped hops.
const (
	ReasonNoAdjacency   = "no_adjacency"
	ReasonNoSession     = "no_session"
	ReasonInstallFailed = "install_failed"
	ReasonNoInterface   = "no_interface"
)

var (
	// ErrUnknownHost indicates that the location of an end host is not
	// known.
	ErrUnknownHost = errors.New("host location unknown")
	// ErrPathMismatch indicates that the path does not connect the switches
	// of the end hosts.
	ErrPathMismatch = errors.New("path does not connect hosts")
	// ErrEmptyPath indicates that there is nothing to install.
	ErrEmptyPath = errors.New("empty path")
)

// SessionLookup gives access to the switch sessions.
type SessionLookup interface {
	Get(id ofp.DatapathID) (ofp.Session, bool)
	All() []ofp.Session
}

// Metrics are the metrics of the orchestrator. All fields are optional.
type Metrics struct {
	// Rules counts rule installations, labeled by result.
	Rules metrics.Counter
	// SkippedHops counts skipped hops, labeled by reason.
	SkippedHops metrics.Counter
	// Flushes counts flush requests, labeled by result.
	Flushes metrics.Counter
}

// Hop is the pair of rules installed on one switch.
type Hop struct {
	Switch ofp.DatapathID
	// Forward is the output port of the forward rule.
	Forward ofp.PortNo
	// Reverse is the output port of the reverse rule.
	Reverse ofp.PortNo
}

// SkippedHop is a switch of the path no rule was installed on.
type SkippedHop struct {
	Switch ofp.DatapathID
	Reason string
}

// Result describes the outcome of an installation.
type Result struct {
	Installed []Hop
	Skipped   []SkippedHop
}

// Complete reports whether all hops were installed.
func (r Result) Complete() bool {
	return len(r.Installed) > 0 && len(r.Skipped) == 0
}

// Orchestrator installs and flushes flow rules.
type Orchestrator struct {
	Topology *topology.Store
	Hosts    *hostloc.Tracker
	Sessions SessionLookup
	// TrackUtilization enables the utilization accounting for the
	// least-utilized path selection.
	TrackUtilization bool
	Priority         uint16
	IdleTimeout      uint16
	HardTimeout      uint16
	Metrics          Metrics
}

// Install installs the forward and reverse rules of the intent on every
// switch of the path. The path must lead from the switch of the source host to
// the switch of the destination host. An error is returned only if nothing
// could be attempted. Hops that fail are reported in the result.
func (o *Orchestrator) Install(ctx context.Context, path topology.Path,
	intent FlowIntent) (Result, error) {

	logger := log.FromCtx(ctx)
	if len(path) == 0 {
		return Result{}, ErrEmptyPath
	}
	src, ok := o.Hosts.Lookup(intent.EthSrc)
	if !ok {
		return Result{}, serrors.Join(ErrUnknownHost, nil, "addr", intent.EthSrc)
	}
	dst, ok := o.Hosts.Lookup(intent.EthDst)
	if !ok {
		return Result{}, serrors.Join(ErrUnknownHost, nil, "addr", intent.EthDst)
	}
	if path.Src() != src.Switch || path.Dst() != dst.Switch {
		return Result{}, serrors.Join(ErrPathMismatch, nil, "path", path,
			"src", src, "dst", dst)
	}

	fwd, rev := intent.ForwardMatch(), intent.ReverseMatch()
	var res Result
	skip := func(sw ofp.DatapathID, reason string, kv ...any) {
		metrics.CounterInc(metrics.CounterWith(o.Metrics.SkippedHops,
			prom.LabelReason, reason))
		logger.Info("Skipping hop", append([]any{"switch", sw, "reason", reason,
			"flow", intent}, kv...)...)
		res.Skipped = append(res.Skipped, SkippedHop{Switch: sw, Reason: reason})
	}
	last := len(path) - 1
	for i, sw := range path {
		hop := Hop{Switch: sw, Forward: dst.Port, Reverse: src.Port}
		if i < last {
			p, ok := o.Topology.PortToward(sw, path[i+1])
			if !ok {
				skip(sw, ReasonNoAdjacency, "next", path[i+1])
				continue
			}
			hop.Forward = p
		}
		if i > 0 {
			p, ok := o.Topology.PortToward(sw, path[i-1])
			if !ok {
				skip(sw, ReasonNoAdjacency, "prev", path[i-1])
				continue
			}
			hop.Reverse = p
		}
		sess, ok := o.Sessions.Get(sw)
		if !ok {
			skip(sw, ReasonNoSession)
			continue
		}
		if err := o.installRule(ctx, sess, fwd, hop.Forward); err != nil {
			skip(sw, ReasonInstallFailed, "direction", "forward", "err", err)
			continue
		}
		if err := o.installRule(ctx, sess, rev, hop.Reverse); err != nil {
			skip(sw, ReasonInstallFailed, "direction", "reverse", "err", err)
			continue
		}
		res.Installed = append(res.Installed, hop)
		if o.TrackUtilization && i < last {
			o.Topology.UpdateUtilization(sw, path[i+1], UtilizationUnit)
		}
	}
	logger.Debug("Installed flow", "flow", intent, "path", path,
		"installed", len(res.Installed), "skipped", len(res.Skipped))
	return res, nil
}

// InstallRoute installs the rewrite rules of a routed path. Switches the route
// has no interfaces for are reported as skipped. Only the Forward port of the
// installed hops is set.
func (o *Orchestrator) InstallRoute(ctx context.Context, r l3.Route) Result {
	logger := log.FromCtx(ctx)
	var res Result
	skip := func(sw ofp.DatapathID, reason string, kv ...any) {
		metrics.CounterInc(metrics.CounterWith(o.Metrics.SkippedHops,
			prom.LabelReason, reason))
		logger.Info("Skipping hop", append([]any{"switch", sw, "reason", reason,
			"dst", r.Dst}, kv...)...)
		res.Skipped = append(res.Skipped, SkippedHop{Switch: sw, Reason: reason})
	}
	for _, sw := range r.Missing {
		skip(sw, ReasonNoInterface)
	}
	m := r.Match()
	for i, hop := range r.Hops {
		sess, ok := o.Sessions.Get(hop.Switch)
		if !ok {
			skip(hop.Switch, ReasonNoSession)
			continue
		}
		if err := o.installActions(ctx, sess, m, hop.Actions()); err != nil {
			skip(hop.Switch, ReasonInstallFailed, "err", err)
			continue
		}
		res.Installed = append(res.Installed, Hop{Switch: hop.Switch, Forward: hop.Port})
		if o.TrackUtilization && i+1 < len(r.Hops) {
			o.Topology.UpdateUtilization(hop.Switch, r.Hops[i+1].Switch, UtilizationUnit)
		}
	}
	logger.Debug("Installed route", "dst", r.Dst, "installed", len(res.Installed),
		"skipped", len(res.Skipped))
	return res
}

func (o *Orchestrator) installRule(ctx context.Context, sess ofp.Session, m ofp.Match,
	out ofp.PortNo) error {

	return o.installActions(ctx, sess, m, []ofp.Action{ofp.Output(out)})
}

func (o *Orchestrator) installActions(ctx context.Context, sess ofp.Session, m ofp.Match,
	actions []ofp.Action) error {

	err := sess.InstallRule(ctx, ofp.Rule{
		Priority:    o.priority(),
		Match:       m,
		Actions:     actions,
		IdleTimeout: o.IdleTimeout,
		HardTimeout: o.HardTimeout,
	})
	if err != nil {
		metrics.CounterInc(metrics.CounterWith(o.Metrics.Rules,
			prom.LabelResult, prom.ErrNetwork))
		return err
	}
	metrics.CounterInc(metrics.CounterWith(o.Metrics.Rules, prom.LabelResult, prom.Success))
	return nil
}

func (o *Orchestrator) priority() uint16 {
	if o.Priority == 0 {
		return DefaultPriority
	}
	return o.Priority
}

// FlushAll deletes the flow rules on all connected switches. The switches are
// flushed concurrently. Failures are logged, the number of flushed switches is
// returned.
func (o *Orchestrator) FlushAll(ctx context.Context) int {
	logger := log.FromCtx(ctx)
	sessions := o.Sessions.All()
	flushed := make([]bool, len(sessions))
	var g errgroup.Group
	g.SetLimit(maxConcurrentFlushes)
	for i, sess := range sessions {
		g.Go(func() error {
			defer log.HandlePanic()
			if err := sess.DeleteRules(ctx, o.priority()); err != nil {
				metrics.CounterInc(metrics.CounterWith(o.Metrics.Flushes,
					prom.LabelResult, prom.ErrNetwork))
				logger.Info("Failed to flush rules", "switch", sess.ID(), "err", err)
				return nil
			}
			metrics.CounterInc(metrics.CounterWith(o.Metrics.Flushes,
				prom.LabelResult, prom.Success))
			flushed[i] = true
			return nil
		})
	}
	_ = g.Wait()
	n := 0
	for _, ok := range flushed {
		if ok {
			n++
		}
	}
	logger.Info("Flushed flow rules", "switches", len(sessions), "flushed", n)
	return n
}

// InstallTableMiss installs the lowest priority rule that sends all
// unmatched packets to the controller.
func (o *Orchestrator) InstallTableMiss(ctx context.Context, sess ofp.Session) error {
	err := sess.InstallRule(ctx, ofp.Rule{
		Priority: TableMissPriority,
		Actions:  []ofp.Action{ofp.Output(ofp.PortController)},
	})
	if err != nil {
		return serrors.Wrap("installing table-miss rule", err, "switch", sess.ID())
	}
	return nil
}
