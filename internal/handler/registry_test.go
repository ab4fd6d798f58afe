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

package handler_test

import (
	"context"
	"testing"

	"github.com/edgecore/deviceupdate-agent/internal/handler"
	"github.com/edgecore/deviceupdate-agent/internal/result"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct{ n int }

func (s *stubHandler) Download(context.Context, *workflow.Workflow) result.Result    { return result.Succeeded() }
func (s *stubHandler) Install(context.Context, *workflow.Workflow) result.Result     { return result.Succeeded() }
func (s *stubHandler) Apply(context.Context, *workflow.Workflow) result.Result       { return result.Succeeded() }
func (s *stubHandler) Cancel(context.Context, *workflow.Workflow) result.Result      { return result.Succeeded() }
func (s *stubHandler) IsInstalled(context.Context, *workflow.Workflow) bool          { return true }

func TestRegistry_LookupUnknown(t *testing.T) {
	r := handler.NewRegistry()

	_, err := r.Lookup("does/not-exist:1")
	require.Error(t, err)

	var notFound *handler.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := handler.NewRegistry()
	calls := 0
	r.Register("sim/noop:1", func() handler.Handler {
		calls++
		return &stubHandler{n: calls}
	})

	h1, err := r.Lookup("sim/noop:1")
	require.NoError(t, err)
	h2, err := r.Lookup("sim/noop:1")
	require.NoError(t, err)

	assert.NotSame(t, h1, h2, "each lookup must produce a fresh handler instance owned by one workflow")
	assert.Equal(t, 2, calls)
}

func TestRegistry_UpdateTypes(t *testing.T) {
	r := handler.NewRegistry()
	r.Register("sim/noop:1", func() handler.Handler { return &stubHandler{} })
	r.Register("sim/multistep:1", func() handler.Handler { return &stubHandler{} })

	assert.ElementsMatch(t, []string{"sim/noop:1", "sim/multistep:1"}, r.UpdateTypes())
}
