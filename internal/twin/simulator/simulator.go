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

// Package simulator provides an in-process twin.Channel used by the CLI's
// "simulate" command and the engine's scenario tests. Sends complete
// synchronously with status 200; there is no network.
package simulator

import (
	"context"
	"sync"

	"github.com/edgecore/deviceupdate-agent/internal/twin"
)

// Sent records one call to SendReported, for test assertions about the
// reported-state sequence (spec §8 property 1).
type Sent struct {
	Component string
	Property  string
	Payload   []byte
}

// Channel is the in-process twin.Channel simulator.
type Channel struct {
	mu        sync.Mutex
	sent      []Sent
	callbacks map[string]twin.PropertyUpdateFunc
}

var _ twin.Channel = (*Channel)(nil)

// New returns an empty Channel.
func New() *Channel {
	return &Channel{callbacks: make(map[string]twin.PropertyUpdateFunc)}
}

// SendReported appends payload to the sent log and synchronously invokes
// callback with status 200.
func (c *Channel) SendReported(_ context.Context, component, property string, payload []byte, callback func(twin.SendStatus)) error {
	c.mu.Lock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.sent = append(c.sent, Sent{Component: component, Property: property, Payload: cp})
	c.mu.Unlock()

	if callback != nil {
		callback(200)
	}
	return nil
}

// OnPropertyUpdate registers fn for component, replacing any previous
// registration.
func (c *Channel) OnPropertyUpdate(component string, fn twin.PropertyUpdateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks[component] = fn
}

// Deliver simulates the cloud writing a desired property, invoking the
// registered callback for component synchronously.
func (c *Channel) Deliver(component, property string, value []byte, version int) {
	c.mu.Lock()
	fn := c.callbacks[component]
	c.mu.Unlock()

	if fn != nil {
		fn(twin.PropertyUpdate{Component: component, Property: property, Value: value, Version: version})
	}
}

// Sent returns every payload reported so far, oldest first.
func (c *Channel) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// Reset clears the recorded sends, keeping callback registrations.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
