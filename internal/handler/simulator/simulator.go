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

// Package simulator provides a no-op Content Handler used by the CLI's
// "simulate" command and by the engine's scenario tests (spec §8,
// update_type "sim/noop:1"). It never touches the filesystem or the
// network; every phase reports success or a scripted failure based on
// its Script.
package simulator

import (
	"context"
	"sync"

	"github.com/edgecore/deviceupdate-agent/internal/handler"
	"github.com/edgecore/deviceupdate-agent/internal/result"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

// UpdateType is the registry key this handler answers to.
const UpdateType = "sim/noop:1"

// Outcome scripts a single phase's Result for deterministic scenario
// tests. A zero-value Outcome is a plain success.
type Outcome struct {
	Code         result.Code
	ExtendedCode int32
	Details      string
}

func (o Outcome) result() result.Result {
	if o.Code == 0 && o.ExtendedCode == 0 && o.Details == "" {
		return result.Succeeded()
	}
	return result.New(o.Code, o.ExtendedCode, o.Details)
}

// Script fixes the Outcome of each phase ahead of time. Zero-value
// Outcomes fall back to success. ApplyRequiresReboot /
// ApplyRequiresAgentRestart make a successful Apply request the matching
// follow-up action; a failing ApplyOutcome is returned unchanged.
type Script struct {
	DownloadOutcome Outcome
	InstallOutcome  Outcome
	ApplyOutcome    Outcome
	CancelOutcome   Outcome

	// StepOutcomes, when non-empty, makes Install populate w.Steps with
	// one Outcome per artifact instead of returning a single Result,
	// stopping at (and aggregating from) the first failing step — the
	// per-step fan-out a real multi-artifact installer performs.
	StepOutcomes []Outcome

	ApplyRequiresReboot       bool
	ApplyRequiresAgentRestart bool

	// Installed is returned by IsInstalled. Apply sets it to true on a
	// plain success (no reboot or restart requested), simulating "the
	// device installs the update".
	Installed bool
}

// Handler is the in-process simulator Content Handler.
type Handler struct {
	mu     sync.Mutex
	script Script

	downloadCalls, installCalls, applyCalls, cancelCalls int
}

var _ handler.Handler = (*Handler)(nil)

// New returns a Handler running the given script.
func New(script Script) *Handler {
	return &Handler{script: script}
}

// Factory adapts New to the handler.Registry factory signature, sharing
// one script across every workflow the factory is asked to serve —
// sufficient for the CLI simulate command and single-workflow tests.
func Factory(script Script) handler.Factory {
	return func() handler.Handler { return New(script) }
}

func (h *Handler) Download(_ context.Context, _ *workflow.Workflow) result.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.downloadCalls++
	return h.script.DownloadOutcome.result()
}

func (h *Handler) Install(_ context.Context, w *workflow.Workflow) result.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installCalls++

	if len(h.script.StepOutcomes) == 0 {
		return h.script.InstallOutcome.result()
	}

	w.SetStepCount(len(h.script.StepOutcomes))
	for i, outcome := range h.script.StepOutcomes {
		r := outcome.result()
		w.Steps[i].Result = r
		if !r.Code.IsSuccess() {
			w.MarkRemainingSkipped(i)
			return r
		}
	}
	return result.Succeeded()
}

func (h *Handler) Apply(_ context.Context, _ *workflow.Workflow) result.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applyCalls++

	r := h.script.ApplyOutcome.result()
	if !r.Code.IsSuccess() {
		return r
	}

	switch {
	case h.script.ApplyRequiresReboot:
		r.Code = result.SuccessRebootRequired
	case h.script.ApplyRequiresAgentRestart:
		r.Code = result.SuccessAgentRestartRequired
	default:
		h.script.Installed = true
	}
	return r
}

func (h *Handler) Cancel(_ context.Context, _ *workflow.Workflow) result.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelCalls++
	return h.script.CancelOutcome.result()
}

func (h *Handler) IsInstalled(_ context.Context, _ *workflow.Workflow) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.script.ApplyRequiresReboot || h.script.ApplyRequiresAgentRestart {
		// Simulates the device having rebooted/restarted and the update
		// taking effect, per spec §8 scenario S3.
		return true
	}
	return h.script.Installed
}

// Calls returns how many times each phase has been invoked, for test
// assertions about idempotent re-entry (spec §4.3).
func (h *Handler) Calls() (download, install, apply, cancel int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.downloadCalls, h.installCalls, h.applyCalls, h.cancelCalls
}
