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

// Package tracing wraps the global OpenTelemetry tracer API so the
// engine can start one span per phase transition without core carrying
// an SDK or exporter dependency (spec §9's design notes). A host process
// that wants real traces installs its own TracerProvider via
// otel.SetTracerProvider before calling StartPhase; absent that, the global
// no-op provider makes every call here a cheap stub.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/edgecore/deviceupdate-agent/internal/engine"

var tracer = otel.Tracer(instrumentationName)

// StartPhase begins a span for a workflow state-machine transition,
// tagged with the workflow and destination state.
func StartPhase(ctx context.Context, workflowID, state string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "phase."+state, trace.WithAttributes(
		attribute.String("workflow_id", workflowID),
		attribute.String("state", state),
	))
}

// End records err (if any) on span and closes it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
