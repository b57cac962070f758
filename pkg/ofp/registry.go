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

package ofp

import (
	"cmp"
	"slices"
	"sync"
)

// Registry keeps track of the sessions of all connected switches. It is safe
// for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[DatapathID]Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[DatapathID]Session)}
}

// Add registers the session, replacing any previous session of the same
// switch. It returns true if a session was replaced.
func (r *Registry) Add(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.sessions[s.ID()]
	r.sessions[s.ID()] = s
	return replaced
}

// Remove drops the session of the switch.
func (r *Registry) Remove(id DatapathID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get returns the session of the switch.
func (r *Registry) Get(id DatapathID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// All returns all sessions ordered by datapath ID.
func (r *Registry) All() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	slices.SortFunc(all, func(a, b Session) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return all
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
