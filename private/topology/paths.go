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

package topology

import (
	"cmp"
	"container/heap"
	"math"
	"slices"

	"github.com/scionproto/sdnctrl/pkg/ofp"
)

// AllShortestPaths returns every minimum-cost path from src to dst. The
// result is ordered lexicographically by switch ID, so repeated calls on an
// unchanged topology return the same order. The result is empty if either end
// is unknown or the ends are disconnected. If src equals dst, the single path
// [src] is returned.
func (s *Store) AllShortestPaths(src, dst ofp.DatapathID) []Path {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if _, ok := s.switches[src]; !ok {
		return nil
	}
	if _, ok := s.switches[dst]; !ok {
		return nil
	}
	if src == dst {
		return []Path{{src}}
	}
	adj := s.adjacencyLocked()
	preds := shortestPredecessors(adj, src, dst)
	if preds == nil {
		return nil
	}
	var paths []Path
	// Walk backwards from dst, collecting reversed paths.
	var walk func(node ofp.DatapathID, suffix Path)
	walk = func(node ofp.DatapathID, suffix Path) {
		suffix = append(suffix, node)
		if node == src {
			p := slices.Clone(suffix)
			slices.Reverse(p)
			paths = append(paths, p)
			return
		}
		for _, pred := range preds[node] {
			walk(pred, suffix)
		}
	}
	walk(dst, make(Path, 0, len(adj)))
	slices.SortFunc(paths, func(a, b Path) int {
		return slices.Compare(a, b)
	})
	return paths
}

type edge struct {
	to   ofp.DatapathID
	cost int
}

// adjacencyLocked builds the adjacency lists with neighbors in ascending
// order.
func (s *Store) adjacencyLocked() map[ofp.DatapathID][]edge {
	adj := make(map[ofp.DatapathID][]edge, len(s.switches))
	for _, l := range s.links {
		adj[l.A] = append(adj[l.A], edge{to: l.B, cost: l.Cost})
		adj[l.B] = append(adj[l.B], edge{to: l.A, cost: l.Cost})
	}
	for id := range adj {
		slices.SortFunc(adj[id], func(a, b edge) int {
			return cmp.Compare(a.to, b.to)
		})
	}
	return adj
}

// shortestPredecessors runs Dijkstra from src and records, for every node on
// some shortest path, all predecessors that reach it at minimum distance. It
// returns nil if dst is unreachable.
func shortestPredecessors(adj map[ofp.DatapathID][]edge, src,
	dst ofp.DatapathID) map[ofp.DatapathID][]ofp.DatapathID {

	dist := map[ofp.DatapathID]int{src: 0}
	preds := make(map[ofp.DatapathID][]ofp.DatapathID)
	done := make(map[ofp.DatapathID]bool)
	pq := &distQueue{{id: src, dist: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(distItem)
		if done[cur.id] {
			continue
		}
		done[cur.id] = true
		if cur.id == dst {
			// Nodes farther than dst can't be on a shortest path to it.
			break
		}
		for _, e := range adj[cur.id] {
			nd := cur.dist + e.cost
			old, seen := dist[e.to]
			switch {
			case !seen || nd < old:
				dist[e.to] = nd
				preds[e.to] = []ofp.DatapathID{cur.id}
				heap.Push(pq, distItem{id: e.to, dist: nd})
			case nd == old && !done[e.to]:
				preds[e.to] = append(preds[e.to], cur.id)
			}
		}
	}
	if !done[dst] {
		return nil
	}
	for id := range preds {
		slices.Sort(preds[id])
	}
	return preds
}

type distItem struct {
	id   ofp.DatapathID
	dist int
}

// distQueue is a min-heap on distance, ties broken by ID.
type distQueue []distItem

func (q distQueue) Len() int { return len(q) }
func (q distQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].id < q[j].id
}
func (q distQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *distQueue) Push(x any)   { *q = append(*q, x.(distItem)) }
func (q *distQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// PathCost returns the sum of the link costs along the path. Missing links
// count as math.MaxInt.
func (s *Store) PathCost(p Path) int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	total := 0
	for i := 0; i+1 < len(p); i++ {
		l, ok := s.links[key(p[i], p[i+1])]
		if !ok {
			return math.MaxInt
		}
		total += l.Cost
	}
	return total
}

// PathUtilization returns the sum of the utilization of the links along the
// path. If a link of the path no longer exists, the result is +Inf so that
// stale paths are never preferred.
func (s *Store) PathUtilization(p Path) float64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	total := 0.0
	for i := 0; i+1 < len(p); i++ {
		l, ok := s.links[key(p[i], p[i+1])]
		if !ok {
			return math.Inf(1)
		}
		total += l.Utilization
	}
	return total
}
