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

// Package handler defines the pluggable Content Handler contract (spec
// §4.4) and the registry that maps an update_type to a handler factory.
package handler

import (
	"context"

	"github.com/edgecore/deviceupdate-agent/internal/result"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

// Handler is implemented by every content handler (downloader, package
// installer, the simulator). Each operation takes the Workflow Object
// and returns a Result; operations are expected to be short and
// synchronous or to internally drive one bounded-duration step per call
// and return result.InProgress (spec §5 "Long blocking I/O inside a
// handler is a contract violation").
type Handler interface {
	// Download fetches and verifies all files referenced by the
	// manifest into w.WorkFolder.
	Download(ctx context.Context, w *workflow.Workflow) result.Result

	// Install applies content to a staging area without committing it.
	Install(ctx context.Context, w *workflow.Workflow) result.Result

	// Apply commits the staged content. It may request a reboot or
	// agent restart via result.SuccessRebootRequired or
	// result.SuccessAgentRestartRequired.
	Apply(ctx context.Context, w *workflow.Workflow) result.Result

	// Cancel rolls back any pending work. Safe to call at any time,
	// including before Download has started; best-effort.
	Cancel(ctx context.Context, w *workflow.Workflow) result.Result

	// IsInstalled reports whether w.InstalledCriteria already holds on
	// the device. Used for post-reboot verification (spec §4.6) and for
	// idempotence checks on handlers that cannot safely re-run a phase.
	IsInstalled(ctx context.Context, w *workflow.Workflow) bool
}

// Factory constructs a new Handler instance for one workflow. A handler
// instance belongs to exactly one Workflow and is freed with it (spec
// §4.4).
type Factory func() Handler
