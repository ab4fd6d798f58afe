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

package reporting_test

import (
	"testing"

	"github.com/edgecore/deviceupdate-agent/internal/reporting"
	"github.com/edgecore/deviceupdate-agent/internal/result"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_NoWorkflowOmitsWorkflowRef(t *testing.T) {
	doc := reporting.Build(nil, workflow.StateIdle, "")

	assert.Nil(t, doc.Workflow)
	assert.Empty(t, doc.InstalledUpdateID)
	assert.Nil(t, doc.LastInstallResult)
}

func TestBuild_IncludesWorkflowRefOnceIDSet(t *testing.T) {
	w := workflow.New("w1", "t1", "sim/noop:1", "v2", "/work")
	doc := reporting.Build(w, workflow.StateDownloadStarted, "")

	require.NotNil(t, doc.Workflow)
	assert.Equal(t, "w1", doc.Workflow.ID)
	assert.Equal(t, "t1", doc.Workflow.RetryTimestamp)
}

func TestBuild_StepResultsNullDuringDownloadStarted(t *testing.T) {
	w := workflow.New("w1", "t1", "sim/noop:1", "v2", "/work")
	w.SetStepCount(2)
	w.Steps[0].Result = result.Succeeded()

	doc := reporting.Build(w, workflow.StateDownloadStarted, "")
	require.NotNil(t, doc.LastInstallResult)
	assert.Nil(t, doc.LastInstallResult.StepResults)
}

func TestBuild_StepResultsNullDuringDeploymentInProgress(t *testing.T) {
	w := workflow.New("w1", "t1", "sim/noop:1", "v2", "/work")
	w.SetStepCount(1)

	doc := reporting.Build(w, workflow.StateDeploymentInProgress, "")
	require.NotNil(t, doc.LastInstallResult)
	assert.Nil(t, doc.LastInstallResult.StepResults)
}

func TestBuild_StepResultsPresentOtherwise(t *testing.T) {
	w := workflow.New("w1", "t1", "sim/noop:1", "v2", "/work")
	w.SetStepCount(2)
	w.Steps[0].Result = result.Succeeded()
	w.Steps[1].Result = result.New(result.Failure, 5, "bad checksum")
	w.MarkRemainingSkipped(1)

	doc := reporting.Build(w, workflow.StateFailed, "")
	require.NotNil(t, doc.LastInstallResult)
	require.NotNil(t, doc.LastInstallResult.StepResults)
	assert.Len(t, doc.LastInstallResult.StepResults, 2)
	assert.Equal(t, int32(result.Failure), doc.LastInstallResult.StepResults["step_1"].ResultCode)
	assert.Equal(t, "bad checksum", doc.LastInstallResult.StepResults["step_1"].ResultDetails)

	// Root result aggregates to the first failing step.
	assert.Equal(t, int32(result.Failure), doc.LastInstallResult.ResultCode)
	assert.Equal(t, "bad checksum", doc.LastInstallResult.ResultDetails)
}

func TestBuild_InstalledUpdateIDPassthrough(t *testing.T) {
	w := workflow.New("w1", "t1", "sim/noop:1", "v2", "/work")
	doc := reporting.Build(w, workflow.StateIdle, "v2")

	assert.Equal(t, "v2", doc.InstalledUpdateID)
}

func TestMarshal_ProducesValidJSON(t *testing.T) {
	doc := reporting.Build(nil, workflow.StateIdle, "")
	data, err := reporting.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":0`)
}

func TestBuildAck_RedactsManifestFields(t *testing.T) {
	desired := map[string]any{
		"workflowId":              "w1",
		"updateManifestSignature": "sensitive-signature",
		"fileUrls":                map[string]string{"f1": "https://example.invalid/f1"},
	}

	ack := reporting.BuildAck(desired, 7, reporting.AckAccepted)

	assert.Nil(t, ack.Payload["updateManifestSignature"])
	assert.Nil(t, ack.Payload["fileUrls"])
	assert.Equal(t, "w1", ack.Payload["workflowId"])
	assert.Equal(t, 7, ack.Version)
	assert.Equal(t, reporting.AckAccepted, ack.Status)

	// BuildAck must not mutate the caller's map.
	assert.Equal(t, "sensitive-signature", desired["updateManifestSignature"])
}
