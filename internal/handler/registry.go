// Copyright 2026 Device Update Agent Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package handler

import (
	"fmt"
	"sync"
)

// ErrNotFound is returned by Lookup for an unregistered update_type.
type ErrNotFound struct {
	UpdateType string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("no content handler registered for update type %q", e.UpdateType)
}

// Registry maps an update_type string to a Handler Factory. Lookup is an
// exact match on the raw update_type string (spec §4.4 "Handlers are
// selected by exact-match lookup on update_type").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Factory)}
}

// Register associates updateType with factory, replacing any existing
// registration for the same update_type.
func (r *Registry) Register(updateType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[updateType] = factory
}

// Lookup instantiates a fresh Handler for updateType via its registered
// factory, or returns ErrNotFound (spec §6 "Content Handler Registry
// (consumed): lookup(update_type) -> Handler").
func (r *Registry) Lookup(updateType string) (Handler, error) {
	r.mu.RLock()
	factory, ok := r.handlers[updateType]
	r.mu.RUnlock()

	if !ok {
		return nil, &ErrNotFound{UpdateType: updateType}
	}
	return factory(), nil
}

// UpdateTypes returns the currently registered update_type strings.
func (r *Registry) UpdateTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
