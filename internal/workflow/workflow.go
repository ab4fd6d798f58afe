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

package workflow

import (
	"strings"

	"github.com/edgecore/deviceupdate-agent/internal/result"
)

// UpdateType identifies a content handler, e.g. "microsoft/swupdate:1". It
// is held split into a name and a version, following spec §3's example
// format "<name>:<version>"; handler registry lookups and the persisted
// record use the rejoined raw string from String.
type UpdateType struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ParseUpdateType splits "name:version" into its parts. A missing ':'
// yields an empty version, which is still a valid (if unusual) handler
// key — the registry matches on the full raw string regardless.
func ParseUpdateType(raw string) UpdateType {
	name, version, _ := strings.Cut(raw, ":")
	return UpdateType{Name: name, Version: version}
}

// String reconstructs the raw "name:version" form.
func (t UpdateType) String() string {
	if t.Version == "" {
		return t.Name
	}
	return t.Name + ":" + t.Version
}

// Step is one child of a Workflow: one content-handler operation against
// one artifact of the manifest. Steps are value-typed and addressed by
// index within their parent's Steps slice (spec §9 "value-typed tree,
// reference children by index, never by raw pointer").
type Step struct {
	HandlerID string        `json:"handlerId"`
	Result    result.Result `json:"result"`

	// Data is handler-specific step payload (e.g. a file reference),
	// opaque to the engine.
	Data map[string]any `json:"data,omitempty"`
}

// Key returns this step's mandatory report key given its index.
func (Step) Key(index int) string {
	return StepKey(index)
}

// Workflow is the root of the parsed manifest tree (spec §3). It is a
// plain value: engines hold it by value or by a single pointer to one
// instance, never by a scatter of child pointers, so persistence and
// replacement are plain struct copies.
type Workflow struct {
	WorkflowID        string     `json:"workflowId"`
	RetryTimestamp    string     `json:"retryTimestamp,omitempty"`
	UpdateType        UpdateType `json:"updateType"`
	InstalledCriteria string     `json:"installedCriteria"`
	WorkFolder        string     `json:"workFolder"`

	CurrentAction      Action        `json:"currentAction"`
	LastReportedState  State         `json:"lastReportedState"`
	Result             result.Result `json:"result"`
	CancelRequested    bool          `json:"cancelRequested"`

	Steps []Step `json:"steps"`
}

// New builds a Workflow from a parsed desired document's fields. The
// work folder is assigned by the caller (the engine), which owns the
// directory's lifecycle per invariant 2.
func New(workflowID, retryTimestamp, updateType, installedCriteria, workFolder string) *Workflow {
	return &Workflow{
		WorkflowID:        workflowID,
		RetryTimestamp:    retryTimestamp,
		UpdateType:        ParseUpdateType(updateType),
		InstalledCriteria: installedCriteria,
		WorkFolder:        workFolder,
		LastReportedState: StateIdle,
	}
}

// Identity returns the (workflowId, retryTimestamp) pair that identifies
// a deployment run (spec §3 invariant 3, §4.2).
func (w *Workflow) Identity() (workflowID, retryTimestamp string) {
	return w.WorkflowID, w.RetryTimestamp
}

// SameDeployment reports whether workflowID/retryTimestamp identify the
// same run as w. A changed retryTimestamp with the same workflowId is
// NOT the same deployment — it forces a replay from the download phase
// (spec §4.2, §8 property 6).
func (w *Workflow) SameDeployment(workflowID, retryTimestamp string) bool {
	return w.WorkflowID == workflowID && w.RetryTimestamp == retryTimestamp
}

// SetStepCount (re)sizes the step slice, used when hydrating a manifest
// with N artifacts. Existing step results are preserved for indices that
// still exist.
func (w *Workflow) SetStepCount(n int) {
	if n == len(w.Steps) {
		return
	}
	resized := make([]Step, n)
	copy(resized, w.Steps)
	w.Steps = resized
}

// AggregateResult computes the root result per spec §3 invariant 6: the
// first failing step's codes, or the last step's codes if every step
// succeeded. A workflow with no steps yields its own Result unchanged.
func (w *Workflow) AggregateResult() result.Result {
	if len(w.Steps) == 0 {
		return w.Result
	}
	for _, step := range w.Steps {
		if !step.Result.Code.IsSuccess() {
			return step.Result
		}
	}
	return w.Steps[len(w.Steps)-1].Result
}

// FirstIncompleteStepIndex returns the index of the first step without a
// terminal result, or -1 if every step has completed. The engine uses it
// to pick the step a handler failure is attached to.
func (w *Workflow) FirstIncompleteStepIndex() int {
	for i, step := range w.Steps {
		if !step.Result.IsTerminal() {
			return i
		}
	}
	return -1
}

// MarkRemainingSkipped sets result.Skipped on every step after index,
// matching scenario S6: once a step fails, later steps are not run.
func (w *Workflow) MarkRemainingSkipped(afterIndex int) {
	for i := afterIndex + 1; i < len(w.Steps); i++ {
		w.Steps[i].Result = result.New(result.Skipped, 0, "")
	}
}
