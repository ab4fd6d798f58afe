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

// Package reporting builds the reported-property document sent over the
// Twin Channel (spec §4.5).
package reporting

import (
	"encoding/json"

	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

// StepResult is one entry of lastInstallResult.stepResults.
type StepResult struct {
	ResultCode         int32  `json:"resultCode"`
	ExtendedResultCode int32  `json:"extendedResultCode"`
	ResultDetails      string `json:"resultDetails,omitempty"`
}

// InstallResult is the lastInstallResult object.
type InstallResult struct {
	ResultCode         int32                  `json:"resultCode"`
	ExtendedResultCode int32                  `json:"extendedResultCode"`
	ResultDetails      string                 `json:"resultDetails,omitempty"`
	StepResults        map[string]*StepResult `json:"stepResults"`
}

// WorkflowRef is the workflow{} object, present only once a workflow_id
// has been assigned (spec §4.5 "workflow is omitted when no workflow_id
// is set").
type WorkflowRef struct {
	Action         int    `json:"action"`
	ID             string `json:"id"`
	RetryTimestamp string `json:"retryTimestamp,omitempty"`
}

// DeviceProperties identifies the device for the once-per-connection
// startup message (spec §6).
type DeviceProperties struct {
	Manufacturer string            `json:"manufacturer"`
	Model        string            `json:"model"`
	InterfaceID  string            `json:"interfaceId"`
	Versions     map[string]string `json:"versions,omitempty"`
}

// Document is the full reported-property payload of spec §4.5.
type Document struct {
	State             int            `json:"state"`
	Workflow          *WorkflowRef   `json:"workflow,omitempty"`
	InstalledUpdateID string         `json:"installedUpdateId,omitempty"`
	LastInstallResult *InstallResult `json:"lastInstallResult"`

	// DeviceProperties and CompatPropertyNames are set only on the one
	// report on_connected produces (spec §6 "Startup message"); every
	// other report leaves them unset.
	DeviceProperties    *DeviceProperties `json:"deviceProperties,omitempty"`
	CompatPropertyNames string            `json:"compatPropertyNames,omitempty"`
}

// WithStartup merges the startup message into doc and returns it, for
// the single report on_connected emits.
func (d *Document) WithStartup(props DeviceProperties, compatPropertyNames string) *Document {
	d.DeviceProperties = &props
	d.CompatPropertyNames = compatPropertyNames
	return d
}

// clearStepResults is the set of states where stepResults must be null
// regardless of how many steps the workflow has (spec §3 invariant 5,
// §4.5).
func clearStepResults(state workflow.State) bool {
	return state == workflow.StateDownloadStarted || state == workflow.StateDeploymentInProgress
}

// Build constructs the reported Document for w at the given state. w may
// be nil for a startup report with no active deployment, in which case
// Document.Workflow and LastInstallResult are both omitted;
// InstalledUpdateID is still set from installedUpdateID.
//
// installedUpdateID should be set by the caller only when reporting a
// terminal Idle after a successful apply (spec §4.5); Build does not
// infer this on its own, since "successful apply" depends on engine
// history Build cannot see.
func Build(w *workflow.Workflow, state workflow.State, installedUpdateID string) *Document {
	doc := &Document{State: int(state)}

	if w != nil && w.WorkflowID != "" {
		doc.Workflow = &WorkflowRef{
			Action:         int(w.CurrentAction),
			ID:             w.WorkflowID,
			RetryTimestamp: w.RetryTimestamp,
		}
	}

	doc.InstalledUpdateID = installedUpdateID

	if w == nil {
		return doc
	}

	root := w.AggregateResult()
	install := &InstallResult{
		ResultCode:         int32(root.Code),
		ExtendedResultCode: root.ExtendedCode,
		ResultDetails:      root.Details,
	}

	// Invariant 5 is enforced unconditionally here: even if a caller
	// upstream failed to clear a stale stepResults map (spec §9's first
	// open question notes the original implementation only warns), the
	// serializer itself never emits stepResults for these two states.
	if !clearStepResults(state) && len(w.Steps) > 0 {
		install.StepResults = make(map[string]*StepResult, len(w.Steps))
		for i, step := range w.Steps {
			install.StepResults[workflow.StepKey(i)] = &StepResult{
				ResultCode:         int32(step.Result.Code),
				ExtendedResultCode: step.Result.ExtendedCode,
				ResultDetails:      step.Result.Details,
			}
		}
	}

	doc.LastInstallResult = install
	return doc
}

// Marshal renders doc as the UTF-8 JSON wire format of spec §4.5.
func Marshal(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}
