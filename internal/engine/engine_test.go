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

package engine_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/edgecore/deviceupdate-agent/internal/capabilities"
	"github.com/edgecore/deviceupdate-agent/internal/engine"
	"github.com/edgecore/deviceupdate-agent/internal/handler"
	"github.com/edgecore/deviceupdate-agent/internal/handler/simulator"
	"github.com/edgecore/deviceupdate-agent/internal/persistence"
	"github.com/edgecore/deviceupdate-agent/internal/result"
	twinsim "github.com/edgecore/deviceupdate-agent/internal/twin/simulator"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHarness struct {
	t        *testing.T
	channel  *twinsim.Channel
	registry *handler.Registry
	store    *persistence.Store
	eng      *engine.Engine
}

func newHarness(t *testing.T, factory handler.Factory) *testHarness {
	t.Helper()
	channel := twinsim.New()
	registry := handler.NewRegistry()
	registry.Register(simulator.UpdateType, factory)
	store := persistence.NewStore(filepath.Join(t.TempDir(), "record.json"))

	eng := engine.New(engine.Config{
		Channel:      channel,
		Registry:     registry,
		Store:        store,
		Capabilities: capabilities.Noop(),
		WorkRoot:     t.TempDir(),
	})
	eng.Start()

	return &testHarness{t: t, channel: channel, registry: registry, store: store, eng: eng}
}

// reportedStates returns the "state" field of every sent payload that is
// a reported document (acks are excluded, per spec §8's "ignoring acks").
func (h *testHarness) reportedStates() []int {
	h.t.Helper()
	var states []int
	for _, sent := range h.channel.Sent() {
		var probe struct {
			State *int `json:"state"`
		}
		require.NoError(h.t, json.Unmarshal(sent.Payload, &probe))
		if probe.State != nil {
			states = append(states, *probe.State)
		}
	}
	return states
}

// lastDocument returns the most recent reported document, skipping acks
// (which carry no "state" field and may be sent after the report).
func (h *testHarness) lastDocument() map[string]any {
	h.t.Helper()
	sent := h.channel.Sent()
	require.NotEmpty(h.t, sent)
	for i := len(sent) - 1; i >= 0; i-- {
		var doc map[string]any
		require.NoError(h.t, json.Unmarshal(sent[i].Payload, &doc))
		if _, ok := doc["state"]; ok {
			return doc
		}
	}
	h.t.Fatalf("no reported document among %d sent payloads", len(sent))
	return nil
}

func (h *testHarness) deliverApply(workflowID, retryTimestamp, installedCriteria string, stepCount int) {
	h.t.Helper()
	desired := map[string]any{
		"action":            int(workflow.ActionApplyDeployment),
		"workflowId":        workflowID,
		"retryTimestamp":    retryTimestamp,
		"updateType":        simulator.UpdateType,
		"installedCriteria": installedCriteria,
	}
	if stepCount > 0 {
		desired["stepCount"] = stepCount
	}
	raw, err := json.Marshal(desired)
	require.NoError(h.t, err)
	h.channel.Deliver("deviceUpdate", "service", raw, 1)
}

func (h *testHarness) deliverCancel(workflowID string) {
	h.t.Helper()
	raw, err := json.Marshal(map[string]any{
		"action":     int(workflow.ActionCancel),
		"workflowId": workflowID,
	})
	require.NoError(h.t, err)
	h.channel.Deliver("deviceUpdate", "service", raw, 2)
}

func (h *testHarness) runToTerminal(maxTicks int) {
	h.t.Helper()
	ctx := context.Background()
	for i := 0; i < maxTicks; i++ {
		require.NoError(h.t, h.eng.DoWork(ctx))
		states := h.reportedStates()
		if len(states) > 0 {
			last := workflow.State(states[len(states)-1])
			if last.IsTerminal() && len(states) > 1 {
				return
			}
		}
	}
}

func TestEngine_S1_HappyPathNoReboot(t *testing.T) {
	h := newHarness(t, simulator.Factory(simulator.Script{}))
	ctx := context.Background()

	require.NoError(t, h.eng.OnConnected(ctx))
	h.channel.Reset()

	h.deliverApply("w1", "t1", "v2", 0)
	h.runToTerminal(10)

	states := h.reportedStates()
	want := []int{
		int(workflow.StateDeploymentInProgress),
		int(workflow.StateDownloadStarted),
		int(workflow.StateDownloadSucceeded),
		int(workflow.StateInstallStarted),
		int(workflow.StateInstallSucceeded),
		int(workflow.StateApplyStarted),
		int(workflow.StateIdle),
	}
	assert.Equal(t, want, states)

	doc := h.lastDocument()
	assert.Equal(t, "v2", doc["installedUpdateId"])
}

func TestEngine_S2_CancelMidDownload(t *testing.T) {
	h := newHarness(t, simulator.Factory(simulator.Script{}))
	ctx := context.Background()
	require.NoError(t, h.eng.OnConnected(ctx))
	h.channel.Reset()

	h.deliverApply("w1", "t1", "v2", 0)
	require.NoError(t, h.eng.DoWork(ctx)) // DeploymentInProgress -> DownloadStarted

	h.deliverCancel("w1")
	require.NoError(t, h.eng.DoWork(ctx)) // allow cancel to settle if needed

	doc := h.lastDocument()
	assert.Equal(t, float64(workflow.StateFailed), doc["state"])
	assert.Empty(t, doc["installedUpdateId"])

	lastResult, ok := doc["lastInstallResult"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(result.Cancelled), lastResult["resultCode"])

	rec, err := h.store.Load()
	require.NoError(t, err)
	assert.Nil(t, rec, "persistence record must not survive a cancel that reached DownloadStarted")
}

func TestEngine_S3_RebootRequiredApply(t *testing.T) {
	script := simulator.Script{ApplyRequiresReboot: true}
	h := newHarness(t, simulator.Factory(script))
	ctx := context.Background()
	require.NoError(t, h.eng.OnConnected(ctx))
	h.channel.Reset()

	h.deliverApply("w1", "t1", "v2", 0)
	// Drive to ApplyStarted and invoke Apply; the simulated reboot
	// capability is a no-op, so the in-memory workflow ends here.
	for i := 0; i < 10; i++ {
		require.NoError(t, h.eng.DoWork(ctx))
		states := h.reportedStates()
		if len(states) > 0 && workflow.State(states[len(states)-1]) == workflow.StateApplyStarted {
			require.NoError(t, h.eng.DoWork(ctx)) // invokes Apply -> SuccessRebootRequired
			break
		}
	}

	rec, err := h.store.Load()
	require.NoError(t, err)
	require.NotNil(t, rec, "persistence record must survive the simulated reboot")

	// Simulate the next boot: a fresh engine instance over the same store.
	h.channel.Reset()
	eng2 := engine.New(engine.Config{
		Channel:      h.channel,
		Registry:     h.registry,
		Store:        h.store,
		Capabilities: capabilities.Noop(),
	})
	eng2.Start()
	require.NoError(t, eng2.OnConnected(ctx))

	doc := h.lastDocument()
	assert.Equal(t, float64(workflow.StateIdle), doc["state"])
	assert.Equal(t, "v2", doc["installedUpdateId"])

	_, err = h.store.Load()
	require.NoError(t, err)
	after, err := h.store.Load()
	require.NoError(t, err)
	assert.Nil(t, after, "persistence file must be absent after post-boot verification")
}

func TestEngine_S5_MalformedDesiredMissingWorkflowID(t *testing.T) {
	h := newHarness(t, simulator.Factory(simulator.Script{}))
	ctx := context.Background()
	require.NoError(t, h.eng.OnConnected(ctx))
	h.channel.Reset()

	raw, err := json.Marshal(map[string]any{
		"action":     int(workflow.ActionApplyDeployment),
		"updateType": simulator.UpdateType,
	})
	require.NoError(t, err)
	h.channel.Deliver("deviceUpdate", "service", raw, 9)

	sent := h.channel.Sent()
	require.Len(t, sent, 1, "a malformed document must be acked but never produce a state report")

	var ack map[string]any
	require.NoError(t, json.Unmarshal(sent[0].Payload, &ack))
	assert.Equal(t, float64(9), ack["av"])
	assert.Equal(t, float64(400), ack["ac"])

	rec, err := h.store.Load()
	require.NoError(t, err)
	assert.Nil(t, rec, "no persistence write must occur for a malformed document")
}

func TestEngine_S6_MultiStepAggregation(t *testing.T) {
	script := simulator.Script{
		StepOutcomes: []simulator.Outcome{
			{Code: result.Success},
			{Code: result.Failure, ExtendedCode: 99, Details: "bad checksum"},
			{Code: result.Success},
		},
	}
	h := newHarness(t, simulator.Factory(script))
	ctx := context.Background()
	require.NoError(t, h.eng.OnConnected(ctx))
	h.channel.Reset()

	h.deliverApply("w1", "t1", "v2", 3)
	h.runToTerminal(10)

	doc := h.lastDocument()
	assert.Equal(t, float64(workflow.StateFailed), doc["state"])

	lastResult := doc["lastInstallResult"].(map[string]any)
	assert.Equal(t, float64(result.Failure), lastResult["resultCode"])
	assert.Equal(t, float64(99), lastResult["extendedResultCode"])

	steps := lastResult["stepResults"].(map[string]any)
	step0 := steps["step_0"].(map[string]any)
	step1 := steps["step_1"].(map[string]any)
	assert.Equal(t, float64(result.Success), step0["resultCode"])
	assert.Equal(t, float64(result.Failure), step1["resultCode"])
	assert.Equal(t, "bad checksum", step1["resultDetails"])
}

func TestEngine_S4_ReplayWithNewRetryTimestamp(t *testing.T) {
	h := newHarness(t, simulator.Factory(simulator.Script{}))
	ctx := context.Background()
	require.NoError(t, h.eng.OnConnected(ctx))
	h.channel.Reset()

	h.deliverApply("w1", "t1", "v2", 0)
	h.runToTerminal(10)
	firstStates := h.reportedStates()
	require.Equal(t, int(workflow.StateIdle), firstStates[len(firstStates)-1])

	h.channel.Reset()
	h.deliverApply("w1", "t2", "v2", 0)
	h.runToTerminal(10)

	secondStates := h.reportedStates()
	assert.Equal(t, int(workflow.StateDeploymentInProgress), secondStates[0],
		"changing retryTimestamp must re-run the deployment from the start")
	assert.Equal(t, int(workflow.StateIdle), secondStates[len(secondStates)-1])
}

func TestEngine_OnConnected_NoWorkflowReportsIdle(t *testing.T) {
	h := newHarness(t, simulator.Factory(simulator.Script{}))

	require.NoError(t, h.eng.OnConnected(context.Background()))

	doc := h.lastDocument()
	assert.Equal(t, float64(workflow.StateIdle), doc["state"])
	assert.Nil(t, doc["workflow"])
}
