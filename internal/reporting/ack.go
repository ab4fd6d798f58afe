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

package reporting

import "github.com/edgecore/deviceupdate-agent/internal/log"

// AckStatus is the numeric status embedded in an acknowledgement
// document (spec §4.1: "a numeric status (success=200-style)").
type AckStatus int

const (
	AckAccepted AckStatus = 200
	AckRejected AckStatus = 400
)

// Ack is the acknowledgement reported alongside a desired document:
// a redacted reflection of the payload, a status, and the version the
// cloud attached to the desired write (spec §4.1).
type Ack struct {
	Status  AckStatus      `json:"ac"`
	Version int            `json:"av"`
	Payload map[string]any `json:"ad"`
}

// BuildAck redacts desiredDoc per spec §4.7 (updateManifestSignature and
// fileUrls set to null) and wraps it with status and version.
func BuildAck(desiredDoc map[string]any, version int, status AckStatus) *Ack {
	return &Ack{
		Status:  status,
		Version: version,
		Payload: log.RedactManifestFields(desiredDoc),
	}
}
