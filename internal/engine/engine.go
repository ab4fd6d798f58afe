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

// Package engine implements the Deployment Workflow Engine state machine
// (spec §4.1-§4.3): the core that ingests desired actions, drives content
// handlers through download/install/apply, persists enough state to
// survive a reboot, and emits reported-property documents.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/edgecore/deviceupdate-agent/internal/capabilities"
	"github.com/edgecore/deviceupdate-agent/internal/config"
	agenterrors "github.com/edgecore/deviceupdate-agent/internal/errors"
	"github.com/edgecore/deviceupdate-agent/internal/handler"
	"github.com/edgecore/deviceupdate-agent/internal/log"
	"github.com/edgecore/deviceupdate-agent/internal/metrics"
	"github.com/edgecore/deviceupdate-agent/internal/persistence"
	"github.com/edgecore/deviceupdate-agent/internal/reporting"
	"github.com/edgecore/deviceupdate-agent/internal/result"
	"github.com/edgecore/deviceupdate-agent/internal/twin"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

// Config assembles the collaborators the Engine is built against. This
// is the "Capabilities record" / "Transport capability" pattern of spec
// §9: no hidden globals, production vs. test assembly differs only in
// which Config is constructed.
type Config struct {
	Channel      twin.Channel
	Registry     *handler.Registry
	Store        *persistence.Store
	Capabilities capabilities.Capabilities
	Logger       *slog.Logger

	DeviceProperties    config.DeviceProperties
	CompatPropertyNames string
	WorkRoot            string
}

// Engine is the single engine task described in spec §5: it owns the
// Workflow Object exclusively. Every exported method holds e.mu for its
// whole duration, so calls arriving from more than one goroutine are
// serialized rather than interleaved.
type Engine struct {
	mu sync.Mutex

	channel  twin.Channel
	registry *handler.Registry
	store    *persistence.Store
	caps     capabilities.Capabilities
	logger   *slog.Logger

	deviceProps config.DeviceProperties
	compatProps string
	workRoot    string

	current        *workflow.Workflow
	currentHandler handler.Handler

	// installedUpdateID is carried into the next Idle report only; it is
	// cleared immediately after being reported (spec §4.5 "installedUpdateId
	// is set only when reporting terminal Idle after a successful apply").
	installedUpdateID string

	// pendingReport holds a report that failed to send, retried on the
	// next do_work tick before any phase advances (spec §7 "Transient").
	pendingReport *reporting.Document

	// pendingCleanup, when set, removes a terminated workflow's on-disk
	// state (work folder, persisted record) once pendingReport's retry
	// finally confirms the terminal report was sent (spec §3 invariant 2:
	// "removed only after terminal reporting succeeds").
	pendingCleanup func()
}

// New constructs an Engine from cfg. Logger defaults to slog.Default()
// if nil.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		channel:     cfg.Channel,
		registry:    cfg.Registry,
		store:       cfg.Store,
		caps:        cfg.Capabilities,
		logger:      logger,
		deviceProps: cfg.DeviceProperties,
		compatProps: cfg.CompatPropertyNames,
		workRoot:    cfg.WorkRoot,
	}
}

// Start registers the engine's property-update callback with the Twin
// Channel. Call once, before OnConnected.
func (e *Engine) Start() {
	e.channel.OnPropertyUpdate(twin.Component, func(update twin.PropertyUpdate) {
		if update.Property != twin.PropertyService {
			return
		}
		if err := e.OnDesiredProperty(context.Background(), update.Value, update.Version); err != nil {
			e.logger.Error("processing desired property", log.Error(err))
		}
	})
}

// OnConnected resumes a persisted workflow (if any) and always emits a
// startup report (spec §4.1).
func (e *Engine) OnConnected(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		if err := e.resumePersisted(ctx); err != nil {
			return err
		}
	}

	doc := reporting.Build(e.current, e.currentState(), e.takeInstalledUpdateID()).
		WithStartup(reporting.DeviceProperties{
			Manufacturer: e.deviceProps.Manufacturer,
			Model:        e.deviceProps.Model,
			InterfaceID:  e.deviceProps.InterfaceID,
			Versions:     e.deviceProps.Versions,
		}, e.compatProps)
	if !e.trySend(ctx, doc) {
		e.pendingReport = doc
	}
	return nil
}

// resumePersisted implements spec §4.6's startup resume algorithm.
func (e *Engine) resumePersisted(ctx context.Context) error {
	rec, err := e.store.Load()
	if err != nil {
		var invariant *agenterrors.InvariantError
		if agenterrors.As(err, &invariant) {
			e.logger.Warn("discarding corrupt persistence record", log.Error(err))
			_ = e.store.Delete()
			e.current = nil
			e.installedUpdateID = ""
			doc := reporting.Build(nil, workflow.StateFailed, "")
			doc.LastInstallResult = &reporting.InstallResult{
				ResultCode:         int32(result.Failure),
				ExtendedResultCode: result.ExtendedCode(result.ComponentPersistence, result.CauseRecordCorrupt),
				ResultDetails:      err.Error(),
			}
			if !e.trySend(ctx, doc) {
				e.pendingReport = doc
			}
			return nil
		}
		return err
	}
	if rec == nil {
		return nil
	}

	w := workflow.New(rec.WorkflowID, rec.RetryTimestamp, rec.UpdateType, rec.InstalledCriteria, rec.WorkFolder)
	w.LastReportedState = workflow.State(rec.CurrentState)

	h, err := e.registry.Lookup(rec.UpdateType)
	if err != nil {
		e.logger.Warn("no handler for persisted workflow, discarding record", log.Error(err))
		_ = e.store.Delete()
		return nil
	}

	if h.IsInstalled(ctx, w) {
		e.installedUpdateID = rec.InstalledCriteria
		if w.WorkFolder != "" {
			_ = os.RemoveAll(w.WorkFolder)
		}
		return e.store.Delete()
	}

	e.current = w
	e.current.Result = persistence.PostBootVerificationFailure()
	e.current.LastReportedState = workflow.StateFailed
	doc := reporting.Build(w, workflow.StateFailed, "")
	e.releaseWorkflow()
	e.finishTerminal(ctx, doc, w)
	return nil
}

// DoWork is the cooperative host-loop tick (spec §4.1, §5). It must not
// block; every handler call is expected to return quickly or report
// result.InProgress for the engine to poll again next tick.
func (e *Engine) DoWork(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pendingReport != nil {
		if !e.trySend(ctx, e.pendingReport) {
			return nil
		}
		e.pendingReport = nil
		if cleanup := e.pendingCleanup; cleanup != nil {
			e.pendingCleanup = nil
			cleanup()
		}
	}

	if e.current == nil {
		return nil
	}
	return e.advance(ctx)
}

// OnDestroy performs best-effort shutdown. In-progress phases are left
// as-is; persistence (already written at phase entry) ensures resume.
func (e *Engine) OnDestroy(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
	e.currentHandler = nil
	return nil
}

func (e *Engine) currentState() workflow.State {
	if e.current == nil {
		return workflow.StateIdle
	}
	return e.current.LastReportedState
}

func (e *Engine) takeInstalledUpdateID() string {
	id := e.installedUpdateID
	e.installedUpdateID = ""
	return id
}

// reportLocked builds and sends a reported document for the current workflow
// and state, queuing it for retry if the send fails (spec §7 "Transient").
func (e *Engine) reportLocked(ctx context.Context, state workflow.State, installedUpdateID string) error {
	doc := reporting.Build(e.current, state, installedUpdateID)
	if !e.trySend(ctx, doc) {
		e.pendingReport = doc
	}
	return nil
}

func (e *Engine) trySend(ctx context.Context, doc *reporting.Document) bool {
	data, err := reporting.Marshal(doc)
	if err != nil {
		e.logger.Error("marshaling reported document", log.Error(err))
		return false
	}

	ok := false
	err = e.channel.SendReported(ctx, twin.Component, twin.PropertyAgent, data, func(status twin.SendStatus) {
		ok = status.IsSuccess()
	})
	state := workflow.State(doc.State).String()
	if err != nil || !ok {
		metrics.RecordReportFailed(state)
		e.logger.Warn("reporting failed, will retry next tick", log.Error(err))
		return false
	}
	metrics.RecordReportSent(state)
	return true
}

// sendAck reports the acknowledgement of a desired document (spec §4.1).
func (e *Engine) sendAck(ctx context.Context, generic map[string]any, version int, status reporting.AckStatus) {
	ack := reporting.BuildAck(generic, version, status)
	data, err := json.Marshal(ack)
	if err != nil {
		e.logger.Error("marshaling ack", log.Error(err))
		return
	}
	_ = e.channel.SendReported(ctx, twin.Component, twin.PropertyAgent, data, nil)
}

// releaseWorkflow frees the in-memory workflow and its handler, per spec
// §3's Workflow Object lifecycle. It does not touch on-disk state
// (work folder, persisted record): call cleanupWorkflowFiles, directly
// or via finishTerminal, once the terminal report announcing the
// workflow's outcome has actually been sent.
func (e *Engine) releaseWorkflow() {
	e.current = nil
	e.currentHandler = nil
}

// cleanupWorkflowFiles removes w's work folder and persisted record.
// Safe to call with a nil w or an already-removed work folder/record.
func (e *Engine) cleanupWorkflowFiles(w *workflow.Workflow) {
	if w != nil && w.WorkFolder != "" {
		if err := os.RemoveAll(w.WorkFolder); err != nil {
			e.logger.Warn("removing work folder", log.Error(err))
		}
	}
	_ = e.store.Delete()
}

// finishTerminal sends doc as w's terminal report. On-disk cleanup for w
// runs immediately if the send succeeds; otherwise it is deferred until
// DoWork's retry of the queued pendingReport finally succeeds, so a work
// folder or persisted record is never removed ahead of a confirmed
// terminal send (spec §3 invariant 2).
func (e *Engine) finishTerminal(ctx context.Context, doc *reporting.Document, w *workflow.Workflow) {
	if e.trySend(ctx, doc) {
		e.cleanupWorkflowFiles(w)
		return
	}
	e.pendingReport = doc
	e.pendingCleanup = func() { e.cleanupWorkflowFiles(w) }
}

// failWorkflow records a terminal Failed outcome for the current
// workflow, per spec §7's "cross-phase errors collapse to the earliest
// failing phase's codes" propagation policy.
func (e *Engine) failWorkflow(r result.Result) {
	e.current.Result = r
	e.current.LastReportedState = workflow.StateFailed
}
