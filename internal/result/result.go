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

// Package result implements the tagged Result model from spec §3: a
// (result_code, extended_result_code, result_details) triple shared by
// every phase, step and the root workflow.
package result

import "fmt"

// Code is the top-level result_code. Per spec §3, a positive code in a
// documented range signals success; zero and negative codes are failures.
type Code int32

const (
	// Failure is the baseline failure code (result_code == 0).
	Failure Code = 0

	// Success indicates the phase committed with no further action needed.
	Success Code = 1

	// SuccessRebootRequired indicates Apply committed but a device reboot
	// must complete before IsInstalled can be trusted (spec §4.3).
	SuccessRebootRequired Code = 2

	// SuccessAgentRestartRequired indicates Apply committed but the agent
	// process must restart before IsInstalled can be trusted (spec §4.3).
	SuccessAgentRestartRequired Code = 3

	// InProgress indicates the phase has not yet completed; do_work should
	// poll again on the next tick.
	InProgress Code = -1

	// Cancelled indicates the phase was unwound in response to a Cancel
	// action (spec §4.3's "Failed(Cancelled)" edge).
	Cancelled Code = -2

	// Skipped indicates a step was not run, e.g. because an earlier step
	// in the same workflow already failed (spec §8 scenario S6).
	Skipped Code = -3
)

// IsSuccess reports whether c falls in the documented success range.
func (c Code) IsSuccess() bool {
	return c > 0
}

// RequiresReboot reports whether this code requests a device reboot after
// Apply commits.
func (c Code) RequiresReboot() bool {
	return c == SuccessRebootRequired
}

// RequiresAgentRestart reports whether this code requests an agent
// process restart after Apply commits.
func (c Code) RequiresAgentRestart() bool {
	return c == SuccessAgentRestartRequired
}

func (c Code) String() string {
	switch c {
	case Failure:
		return "Failure"
	case Success:
		return "Success"
	case SuccessRebootRequired:
		return "SuccessRebootRequired"
	case SuccessAgentRestartRequired:
		return "SuccessAgentRestartRequired"
	case InProgress:
		return "InProgress"
	case Cancelled:
		return "Cancelled"
	case Skipped:
		return "Skipped"
	default:
		return fmt.Sprintf("Code(%d)", int32(c))
	}
}

// Component identifies which part of the system produced an extended
// result code, so extended codes stay structured instead of opaque.
type Component uint8

const (
	ComponentUnknown Component = iota
	ComponentDownload
	ComponentInstall
	ComponentApply
	ComponentCancel
	ComponentIsInstalled
	ComponentPersistence
	ComponentEngine
	ComponentPostBootVerify
)

func (c Component) String() string {
	switch c {
	case ComponentDownload:
		return "Download"
	case ComponentInstall:
		return "Install"
	case ComponentApply:
		return "Apply"
	case ComponentCancel:
		return "Cancel"
	case ComponentIsInstalled:
		return "IsInstalled"
	case ComponentPersistence:
		return "Persistence"
	case ComponentEngine:
		return "Engine"
	case ComponentPostBootVerify:
		return "PostBootVerify"
	default:
		return "Unknown"
	}
}

// ExtendedCode packs a Component and a component-specific cause into a
// single int32, matching spec §3's "structured sub-error identifying
// component and cause" without requiring a shared global error registry.
func ExtendedCode(c Component, cause uint16) int32 {
	return int32(c)<<16 | int32(cause)
}

// SplitExtendedCode reverses ExtendedCode.
func SplitExtendedCode(extended int32) (Component, uint16) {
	return Component(uint8(extended >> 16)), uint16(extended & 0xFFFF)
}

// Well-known causes, used across components for conditions the engine
// itself detects rather than a content handler.
const (
	CauseUnrecognizedHandlerCode uint16 = 1 // unrecognized handler result code
	CausePostBootVerifyFailed    uint16 = 2 // post-boot verification failed
	CauseRecordCorrupt           uint16 = 3 // persistence record failed validation
	CauseReplayRejected          uint16 = 4 // non-terminal workflow id mismatch on adopt
)

// Result is the (result_code, extended_result_code, result_details) triple
// carried by every step and the root workflow (spec §3).
type Result struct {
	Code         Code   `json:"resultCode"`
	ExtendedCode int32  `json:"extendedResultCode"`
	Details      string `json:"resultDetails,omitempty"`
}

// New builds a Result.
func New(code Code, extended int32, details string) Result {
	return Result{Code: code, ExtendedCode: extended, Details: details}
}

// Succeeded is a zero-detail successful Result.
func Succeeded() Result {
	return Result{Code: Success}
}

// Failed builds a Result from a component and cause with no further
// detail string.
func Failed(c Component, cause uint16) Result {
	return Result{Code: Failure, ExtendedCode: ExtendedCode(c, cause)}
}

// IsTerminal reports whether this Result represents a phase that has
// finished (success or failure), as opposed to InProgress.
func (r Result) IsTerminal() bool {
	return r.Code != InProgress
}

func (r Result) String() string {
	if r.Details != "" {
		return fmt.Sprintf("%s(extended=%d, %q)", r.Code, r.ExtendedCode, r.Details)
	}
	return fmt.Sprintf("%s(extended=%d)", r.Code, r.ExtendedCode)
}
