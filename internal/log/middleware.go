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

package log

import (
	"log/slog"
	"time"
)

// PropertyUpdate describes an incoming desired-property document for
// logging purposes (spec §4.1 on_desired_property).
type PropertyUpdate struct {
	// Action is the desired Update Action ("ApplyDeployment", "Cancel").
	Action string

	// WorkflowID is the desired document's workflowId, if present.
	WorkflowID string

	// Version is the twin property version supplied by the Twin Channel.
	Version int
}

// ReportOutcome describes the result of processing a PropertyUpdate.
type ReportOutcome struct {
	// Accepted is true if the document was parsed and drove a transition.
	Accepted bool

	// Error is the rejection reason if Accepted is false.
	Error string

	// DurationMs is how long processing took.
	DurationMs int64
}

// LogPropertyUpdate logs receipt of a desired-property document.
func LogPropertyUpdate(logger *slog.Logger, p *PropertyUpdate) {
	attrs := []any{
		EventKey, "desired_property_received",
		ActionKey, p.Action,
		"version", p.Version,
	}
	if p.WorkflowID != "" {
		attrs = append(attrs, WorkflowIDKey, p.WorkflowID)
	}

	logger.Info("desired property received", attrs...)
}

// LogReportOutcome logs the result of acting on a PropertyUpdate.
func LogReportOutcome(logger *slog.Logger, p *PropertyUpdate, o *ReportOutcome) {
	attrs := []any{
		EventKey, "desired_property_processed",
		ActionKey, p.Action,
		"accepted", o.Accepted,
		DurationKey, o.DurationMs,
	}
	if p.WorkflowID != "" {
		attrs = append(attrs, WorkflowIDKey, p.WorkflowID)
	}
	if o.Error != "" {
		attrs = append(attrs, "error", o.Error)
	}

	level := slog.LevelInfo
	message := "desired property processed"
	if !o.Accepted {
		level = slog.LevelWarn
		message = "desired property rejected"
	}

	logger.Log(nil, level, message, attrs...)
}

// Middleware wraps desired-property handling with structured before/after
// logging, mirroring the engine's ack semantics (spec §4.1).
type Middleware struct {
	logger *slog.Logger
}

// NewMiddleware creates a new desired-property logging middleware.
func NewMiddleware(logger *slog.Logger) *Middleware {
	return &Middleware{logger: logger}
}

// Handle wraps a function that processes a desired-property document,
// logging its receipt and outcome.
func (m *Middleware) Handle(p *PropertyUpdate, handler func() error) error {
	start := time.Now()

	LogPropertyUpdate(m.logger, p)

	err := handler()

	outcome := &ReportOutcome{
		Accepted:   err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		outcome.Error = err.Error()
	}

	LogReportOutcome(m.logger, p, outcome)

	return err
}
