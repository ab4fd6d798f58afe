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
	"os"
	"path/filepath"

	agenterrors "github.com/edgecore/deviceupdate-agent/internal/errors"
	"github.com/edgecore/deviceupdate-agent/internal/log"
	"github.com/edgecore/deviceupdate-agent/internal/reporting"
	"github.com/edgecore/deviceupdate-agent/internal/result"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

// OnDesiredProperty ingests a cloud-sent desired document (spec §4.1).
// Malformed documents are logged and acknowledged with a failure status;
// no state change occurs (spec §7 "Input" error kind).
func (e *Engine) OnDesiredProperty(ctx context.Context, raw []byte, version int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, generic, err := parseDesired(raw)
	if err != nil {
		e.logger.Warn("rejecting malformed desired document", log.Error(err))
		e.sendAck(ctx, generic, version, reporting.AckRejected)
		return nil
	}

	// Acking happens after resolution, not before: a conflicting or
	// otherwise rejected desired document must not be acked 200 and then
	// silently dropped (spec §4.2).
	var resolveErr error
	switch workflow.Action(doc.Action) {
	case workflow.ActionCancel:
		resolveErr = e.resolveCancel(ctx, doc)
	case workflow.ActionApplyDeployment:
		resolveErr = e.resolveApplyDeployment(ctx, doc)
	}

	if resolveErr != nil {
		e.logger.Warn("rejecting desired document", log.Error(resolveErr))
		e.sendAck(ctx, generic, version, reporting.AckRejected)
		return nil
	}

	e.sendAck(ctx, generic, version, reporting.AckAccepted)
	return nil
}

// resolveCancel implements spec §4.2 step 1.
func (e *Engine) resolveCancel(ctx context.Context, doc *DesiredDocument) error {
	if e.current == nil || e.current.WorkflowID != doc.WorkflowID {
		return e.reportLocked(ctx, workflow.StateIdle, "")
	}

	e.current.CancelRequested = true
	e.current.CurrentAction = workflow.ActionCancel

	r := e.currentHandler.Cancel(ctx, e.current)
	if r.Code == result.InProgress {
		// The handler has not reached a safe point yet; do_work will be
		// asked to call Cancel again once the current phase yields.
		return nil
	}

	// A Cancel before the download phase has begun resolves to a clean
	// Idle; anything later is a Failed(Cancelled) terminal (spec §4.3).
	// Either way w's work folder (created by adopt before any handler
	// runs) and, once DownloadStarted or later, its persisted record
	// must be removed — not just its in-memory state — or a resumed
	// on_connected will reload the cancelled deployment's stale record
	// and report it all over again (spec §3, §4.6).
	alreadyStarted := e.current.LastReportedState != workflow.StateDeploymentInProgress
	w := e.current
	e.releaseWorkflow()

	if !alreadyStarted {
		e.finishTerminal(ctx, reporting.Build(nil, workflow.StateIdle, ""), w)
		return nil
	}

	doc2 := reporting.Build(nil, workflow.StateFailed, "")
	doc2.LastInstallResult = &reporting.InstallResult{
		ResultCode:         int32(result.Cancelled),
		ExtendedResultCode: r.ExtendedCode,
		ResultDetails:      r.Details,
	}
	e.finishTerminal(ctx, doc2, w)
	return nil
}

// resolveApplyDeployment implements spec §4.2 step 2 (adopt / replay).
func (e *Engine) resolveApplyDeployment(ctx context.Context, doc *DesiredDocument) error {
	if e.current != nil && e.current.SameDeployment(doc.WorkflowID, doc.RetryTimestamp) {
		if e.current.LastReportedState.IsTerminal() {
			return e.replay(ctx, doc)
		}
		// Same in-flight deployment re-announced: idempotent no-op.
		return nil
	}

	if e.current != nil && !e.current.LastReportedState.IsTerminal() {
		// A different, still-running deployment: reject per spec §4.2
		// ("reject if non-terminal non-matching with a service-visible
		// error").
		return &agenterrors.InputError{
			Field:   "workflowId",
			Message: "a different deployment is already in progress",
		}
	}

	return e.adopt(ctx, doc)
}

// adopt begins a brand-new deployment. The work folder is created here,
// before any handler runs, per spec §3 invariant 2.
func (e *Engine) adopt(ctx context.Context, doc *DesiredDocument) error {
	workFolder := e.workFolderFor(doc.WorkflowID)

	h, err := e.registry.Lookup(doc.UpdateType)
	if err != nil {
		return e.reportHandlerLookupFailure(ctx, err)
	}

	if err := os.MkdirAll(workFolder, 0o700); err != nil {
		return agenterrors.Wrap(err, "creating work folder")
	}

	// Steps are sized by the handler itself as it processes manifest
	// artifacts (see handler/simulator's Install), not pre-allocated here:
	// a step pre-sized before the handler runs would carry a zero-value
	// Result, which is indistinguishable from a real Failure.
	w := workflow.New(doc.WorkflowID, doc.RetryTimestamp, doc.UpdateType, doc.InstalledCriteria, workFolder)
	w.CurrentAction = workflow.ActionApplyDeployment

	e.current = w
	e.currentHandler = h
	e.current.LastReportedState = workflow.StateDeploymentInProgress

	return e.reportLocked(ctx, workflow.StateDeploymentInProgress, "")
}

// replay re-runs a deployment whose (workflowId, retryTimestamp) was
// already terminal, always restarting from the download phase per spec
// §4.2 and §8 property 6.
func (e *Engine) replay(ctx context.Context, doc *DesiredDocument) error {
	return e.adopt(ctx, doc)
}

func (e *Engine) reportHandlerLookupFailure(ctx context.Context, lookupErr error) error {
	e.logger.Error("no content handler for update type", log.Error(lookupErr))
	doc := reporting.Build(nil, workflow.StateFailed, "")
	doc.LastInstallResult = &reporting.InstallResult{
		ResultCode:         int32(result.Failure),
		ExtendedResultCode: result.ExtendedCode(result.ComponentEngine, result.CauseUnrecognizedHandlerCode),
		ResultDetails:      lookupErr.Error(),
	}
	if !e.trySend(ctx, doc) {
		e.pendingReport = doc
	}
	return nil
}

func (e *Engine) workFolderFor(workflowID string) string {
	if e.workRoot == "" {
		return workflowID
	}
	return filepath.Join(e.workRoot, workflowID)
}
