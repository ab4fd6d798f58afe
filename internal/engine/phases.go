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
	"context"
	"fmt"

	"github.com/edgecore/deviceupdate-agent/internal/metrics"
	"github.com/edgecore/deviceupdate-agent/internal/persistence"
	"github.com/edgecore/deviceupdate-agent/internal/reporting"
	"github.com/edgecore/deviceupdate-agent/internal/result"
	"github.com/edgecore/deviceupdate-agent/internal/tracing"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

// advance drives the state machine of spec §4.3 forward by one
// transition. Each call either invokes a handler phase once or performs
// a "begin" transition into the next phase; a single do_work tick never
// crosses more than one reportable state, keeping each tick bounded.
func (e *Engine) advance(ctx context.Context) error {
	if e.current.CancelRequested {
		return e.advanceCancel(ctx)
	}

	switch e.current.LastReportedState {
	case workflow.StateDeploymentInProgress:
		return e.beginPhase(ctx, workflow.StateDownloadStarted)

	case workflow.StateDownloadStarted:
		return e.runPhase(ctx, e.currentHandler.Download(ctx, e.current), workflow.StateDownloadSucceeded)

	case workflow.StateDownloadSucceeded:
		return e.beginPhase(ctx, workflow.StateInstallStarted)

	case workflow.StateInstallStarted:
		return e.runPhase(ctx, e.currentHandler.Install(ctx, e.current), workflow.StateInstallSucceeded)

	case workflow.StateInstallSucceeded:
		return e.beginPhase(ctx, workflow.StateApplyStarted)

	case workflow.StateApplyStarted:
		return e.runApply(ctx)

	default:
		// Idle or Failed: nothing to advance; the workflow should already
		// have been released when these were reported as terminal.
		return nil
	}
}

// beginPhase reports entry into the next phase without invoking a
// handler; the handler call happens on the following tick, keeping each
// do_work call's handler-facing work bounded.
func (e *Engine) beginPhase(ctx context.Context, next workflow.State) error {
	from := e.current.LastReportedState
	_, span := tracing.StartPhase(ctx, e.current.WorkflowID, next.String())
	defer tracing.End(span, nil)

	metrics.RecordPhaseTransition(from.String(), next.String())
	e.persistIfDurable(next)
	e.current.LastReportedState = next
	return e.reportLocked(ctx, next, "")
}

// runPhase invokes one non-Apply handler phase, advancing to succeeded
// on success, failing the workflow on failure, or staying put (polling
// again next tick) on InProgress.
func (e *Engine) runPhase(ctx context.Context, r result.Result, onSuccess workflow.State) error {
	if r.Code == result.InProgress {
		return nil
	}
	if !r.Code.IsSuccess() {
		recordHandlerFailure(r)
		e.recordStepFailure(r)
		e.failWorkflow(r)
		return e.reportTerminalAndRelease(ctx)
	}

	e.current.Result = r
	e.current.LastReportedState = onSuccess
	return e.reportLocked(ctx, onSuccess, "")
}

// runApply invokes Apply, handling its reboot/restart result-code
// variants per spec §4.3.
func (e *Engine) runApply(ctx context.Context) error {
	r := e.currentHandler.Apply(ctx, e.current)
	if r.Code == result.InProgress {
		return nil
	}
	if !r.Code.IsSuccess() {
		recordHandlerFailure(r)
		e.recordStepFailure(r)
		e.failWorkflow(r)
		return e.reportTerminalAndRelease(ctx)
	}

	e.current.Result = r

	switch {
	case r.Code.RequiresReboot():
		e.caps.RebootSystem()
		// The device is expected to reboot; the in-memory workflow ends
		// here, the persisted record (written at ApplyStarted entry)
		// resumes it on the next on_connected (spec §4.6).
		e.current = nil
		e.currentHandler = nil
		return nil

	case r.Code.RequiresAgentRestart():
		e.caps.RestartAgent()
		e.current = nil
		e.currentHandler = nil
		return nil

	default:
		e.installedUpdateID = e.current.InstalledCriteria
		e.current.LastReportedState = workflow.StateIdle
		w := e.current
		doc := reporting.Build(w, workflow.StateIdle, w.InstalledCriteria)
		e.releaseWorkflow()
		e.finishTerminal(ctx, doc, w)
		return nil
	}
}

func (e *Engine) advanceCancel(ctx context.Context) error {
	r := e.currentHandler.Cancel(ctx, e.current)
	if r.Code == result.InProgress {
		return nil
	}

	e.current.Result = result.New(result.Cancelled, r.ExtendedCode, r.Details)
	e.current.LastReportedState = workflow.StateFailed
	return e.reportTerminalAndRelease(ctx)
}

// recordHandlerFailure decodes a failing Result's extended code into the
// metrics label pair (component, cause).
func recordHandlerFailure(r result.Result) {
	component, cause := result.SplitExtendedCode(r.ExtendedCode)
	metrics.RecordHandlerFailure(component.String(), fmt.Sprintf("%d", cause))
}

// recordStepFailure attaches a failing handler Result to the workflow's
// step list when the workflow has steps, so the reporting serializer's
// per-step aggregation (spec §3 invariant 6) reflects it. It writes only
// to the first step still without a terminal result; when every step
// already has one (as after a multi-artifact installer recorded its own
// failing step) or the workflow has no steps, it changes nothing, and the
// failure is carried by the root Result that failWorkflow sets.
func (e *Engine) recordStepFailure(r result.Result) {
	if len(e.current.Steps) == 0 {
		return
	}
	idx := e.current.FirstIncompleteStepIndex()
	if idx < 0 {
		return
	}
	e.current.Steps[idx].Result = r
	e.current.MarkRemainingSkipped(idx)
}

func (e *Engine) reportTerminalAndRelease(ctx context.Context) error {
	w := e.current
	doc := reporting.Build(w, w.LastReportedState, "")
	e.releaseWorkflow()
	e.finishTerminal(ctx, doc, w)
	return nil
}

// persistIfDurable writes the persistence record before entering a phase
// whose completion must survive a reboot (spec §4.6): ApplyStarted is the
// only phase that may span a reboot/restart, but writing at every
// "begin" transition keeps resume correct even if the agent process
// itself is killed mid-download or mid-install.
func (e *Engine) persistIfDurable(next workflow.State) {
	rec := &persistence.Record{
		WorkflowID:        e.current.WorkflowID,
		RetryTimestamp:    e.current.RetryTimestamp,
		UpdateType:        e.current.UpdateType.String(),
		InstalledCriteria: e.current.InstalledCriteria,
		WorkFolder:        e.current.WorkFolder,
		CurrentState:      int(next),
		LastReportedState: int(e.current.LastReportedState),
	}
	if data, err := reporting.Marshal(reporting.Build(e.current, next, "")); err == nil {
		rec.ReportingJSON = data
	}
	err := e.store.Save(rec)
	metrics.RecordPersistenceWrite(err)
	if err != nil {
		e.logger.Error("writing persistence record", "error", err)
	}
}
