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

// Package twin defines the Twin Channel contract the engine consumes
// (spec §6): an abstract cloud transport for desired/reported device-twin
// properties. The real transport is out of scope; only the interface and
// an in-process simulator live here.
package twin

import "context"

// SendStatus is the HTTP-style completion status of a send_reported call
// (spec §6: "completion carries an HTTP-style status code, 2xx = success").
type SendStatus int

// IsSuccess reports whether the status is in the 2xx range.
func (s SendStatus) IsSuccess() bool {
	return s >= 200 && s < 300
}

// PropertyUpdate is delivered to a registered callback when the cloud
// writes a desired property (spec §6: "(property_name, value, version,
// context)").
type PropertyUpdate struct {
	Component string
	Property  string
	Value     []byte
	Version   int
}

// PropertyUpdateFunc receives desired-property writes from the channel.
type PropertyUpdateFunc func(update PropertyUpdate)

// Channel is the abstract cloud transport the engine is built against.
// The engine registers one component name ("deviceUpdate") and observes
// two sub-properties, "service" (desired) and "agent" (reported echo),
// per spec §6.
type Channel interface {
	// SendReported asynchronously reports payload under component/property
	// and invokes callback with the transport's completion status once the
	// send resolves (spec §6 "send_reported(payload, callback)").
	SendReported(ctx context.Context, component, property string, payload []byte, callback func(SendStatus)) error

	// OnPropertyUpdate registers fn to be invoked for every desired-property
	// write arriving on component. Only one registration per component is
	// expected by the engine.
	OnPropertyUpdate(component string, fn PropertyUpdateFunc)
}

// Component and sub-property names the engine registers for (spec §6).
const (
	Component       = "deviceUpdate"
	PropertyService = "service"
	PropertyAgent   = "agent"
)
