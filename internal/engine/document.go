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

package engine

import (
	"encoding/json"

	agenterrors "github.com/edgecore/deviceupdate-agent/internal/errors"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

// DesiredDocument is the parsed shape of a cloud-sent desired property
// (spec §4.2: "action, workflowId, retryTimestamp, updateManifest,
// fileUrls, ...").
type DesiredDocument struct {
	Action                  int               `json:"action"`
	WorkflowID              string            `json:"workflowId"`
	RetryTimestamp          string            `json:"retryTimestamp,omitempty"`
	UpdateType              string            `json:"updateType,omitempty"`
	InstalledCriteria       string            `json:"installedCriteria,omitempty"`
	StepCount               int               `json:"stepCount,omitempty"`
	UpdateManifestSignature string            `json:"updateManifestSignature,omitempty"`
	FileURLs                map[string]string `json:"fileUrls,omitempty"`
}

// parseDesired unmarshals raw into both a typed DesiredDocument (for
// engine logic) and a generic map (so the ack path can redact fields it
// doesn't otherwise understand, per spec §4.7).
func parseDesired(raw []byte) (*DesiredDocument, map[string]any, error) {
	var doc DesiredDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, &agenterrors.InputError{Field: "(document)", Message: "not valid JSON"}
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, nil, &agenterrors.InputError{Field: "(document)", Message: "not a JSON object"}
	}

	if err := validateDesired(&doc); err != nil {
		return nil, generic, err
	}
	return &doc, generic, nil
}

// Legacy per-phase desired actions (spec §3: "Legacy actions
// Download/Install/Apply exist only for backward-compatible inputs and
// are internally flattened"). They were never distinct reported states,
// only distinct requests to (re)run a deployment; the action resolver
// treats all three exactly like ApplyDeployment.
const (
	legacyActionDownload = 3
	legacyActionInstall  = 4
	legacyActionApply    = 5
)

func validateDesired(doc *DesiredDocument) error {
	switch doc.Action {
	case legacyActionDownload, legacyActionInstall, legacyActionApply:
		doc.Action = int(workflow.ActionApplyDeployment)
	}

	action := workflow.Action(doc.Action)
	if action != workflow.ActionApplyDeployment && action != workflow.ActionCancel {
		return &agenterrors.InputError{Field: "action", Message: "must be ApplyDeployment or Cancel"}
	}
	if doc.WorkflowID == "" {
		return &agenterrors.InputError{Field: "workflowId", Message: "required"}
	}
	if action == workflow.ActionApplyDeployment && doc.UpdateType == "" {
		return &agenterrors.InputError{Field: "updateType", Message: "required for ApplyDeployment"}
	}
	return nil
}
