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

// Package workflow holds the value-typed Workflow/Step tree parsed from a
// desired deployment and the small enums that describe its lifecycle.
package workflow

import "fmt"

// Action is the desired, cloud-to-device enum (§3). Legacy per-phase
// actions are accepted on input and flattened to ApplyDeployment by the
// action resolver; they are not modeled as distinct Action values here.
type Action int

const (
	ActionNone Action = iota
	ActionApplyDeployment
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionApplyDeployment:
		return "ApplyDeployment"
	case ActionCancel:
		return "Cancel"
	default:
		return "None"
	}
}

// State is the reported, device-to-cloud enum (§3). The numeric values
// match the wire encoding expected by the reporting serializer and the
// scenarios in spec §8.
type State int

const (
	StateIdle                 State = 0
	StateDeploymentInProgress State = 3
	StateDownloadStarted      State = 4
	StateDownloadSucceeded    State = 5
	StateInstallStarted       State = 6
	StateInstallSucceeded     State = 7
	StateApplyStarted         State = 8
	StateFailed               State = 255
)

// IsTerminal reports whether state ends a deployment (spec §4.3).
func (s State) IsTerminal() bool {
	return s == StateIdle || s == StateFailed
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateDeploymentInProgress:
		return "DeploymentInProgress"
	case StateDownloadStarted:
		return "DownloadStarted"
	case StateDownloadSucceeded:
		return "DownloadSucceeded"
	case StateInstallStarted:
		return "InstallStarted"
	case StateInstallSucceeded:
		return "InstallSucceeded"
	case StateApplyStarted:
		return "ApplyStarted"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StepKey returns the mandatory "step_<index>" twin key for step index i
// (spec §3, §4.7 — twin keys disallow punctuation such as ':' or '-').
func StepKey(i int) string {
	return fmt.Sprintf("step_%d", i)
}
