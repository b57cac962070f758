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

package discovery

import (
	"context"
	"time"

	"github.com/scionproto/sdnctrl/private/periodic"
)

// DefaultInterval is the default interval between two refreshes.
const DefaultInterval = 2 * time.Second

var _ periodic.Task = (*Task)(nil)

// Task periodically refreshes the discovery of all switches.
type Task struct {
	Discoverer *Discoverer
}

// Name returns the task name.
func (t *Task) Name() string {
	return "discovery_refresher"
}

// Run refreshes all switches.
func (t *Task) Run(ctx context.Context) {
	t.Discoverer.Refresh(ctx)
}
