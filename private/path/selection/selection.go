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

// Package selection implements the strategies that pick one path out of a set
// of equal-cost shortest paths.
//
// All policies return nil if and only if the candidate set is empty. Callers
// must treat that as "no connectivity".
package selection

import (
	"math/rand"
	"sync"
	"time"

	"github.com/scionproto/sdnctrl/pkg/private/serrors"
	"github.com/scionproto/sdnctrl/private/topology"
)

// Policy names.
const (
	NameDeterministic = "deterministic"
	NameECMP          = "ecmp"
	NameLeastUtilized = "least-utilized"
)

// Policy selects one path out of a set of equal-cost paths.
type Policy interface {
	Select(paths []topology.Path) topology.Path
	Name() string
}

// Deterministic always selects the first path.
type Deterministic struct{}

// Select returns the first path.
func (Deterministic) Select(paths []topology.Path) topology.Path {
	if len(paths) == 0 {
		return nil
	}
	return paths[0]
}

func (Deterministic) Name() string { return NameDeterministic }

// Random selects a path uniformly at random.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a random policy. A nil source is seeded from the current
// time.
func NewRandom(src rand.Source) *Random {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Random{rng: rand.New(src)}
}

// Select returns a uniformly sampled path.
func (r *Random) Select(paths []topology.Path) topology.Path {
	if len(paths) == 0 {
		return nil
	}
	r.mu.Lock()
	i := r.rng.Intn(len(paths))
	r.mu.Unlock()
	return paths[i]
}

func (r *Random) Name() string { return NameECMP }

// LeastUtilized selects the path with the least utilization. Ties are broken
// by candidate order.
type LeastUtilized struct {
	// Utilization returns the utilization of a path.
	Utilization func(topology.Path) float64
}

// Select returns the least utilized path.
func (l LeastUtilized) Select(paths []topology.Path) topology.Path {
	if len(paths) == 0 {
		return nil
	}
	best, bestUtil := paths[0], l.Utilization(paths[0])
	for _, p := range paths[1:] {
		if u := l.Utilization(p); u < bestUtil {
			best, bestUtil = p, u
		}
	}
	return best
}

func (LeastUtilized) Name() string { return NameLeastUtilized }

// Options are the dependencies of the policies.
type Options struct {
	// Source is the random source for ECMP. If nil, a time-seeded source is
	// used.
	Source rand.Source
	// Utilization is required for the least-utilized policy.
	Utilization func(topology.Path) float64
}

// New creates the policy with the given name.
func New(name string, opts Options) (Policy, error) {
	switch name {
	case NameDeterministic:
		return Deterministic{}, nil
	case NameECMP:
		return NewRandom(opts.Source), nil
	case NameLeastUtilized:
		if opts.Utilization == nil {
			return nil, serrors.New("least-utilized policy requires utilization source")
		}
		return LeastUtilized{Utilization: opts.Utilization}, nil
	default:
		return nil, serrors.New("unknown path selection policy", "name", name)
	}
}

// ParseName validates a policy name.
func ParseName(name string) (string, error) {
	switch name {
	case NameDeterministic, NameECMP, NameLeastUtilized:
		return name, nil
	default:
		return "", serrors.New("unknown path selection policy", "name", name,
			"supported", []string{NameDeterministic, NameECMP, NameLeastUtilized})
	}
}
