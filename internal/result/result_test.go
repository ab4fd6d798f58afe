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

package result_test

import (
	"testing"

	"github.com/edgecore/deviceupdate-agent/internal/result"
	"github.com/stretchr/testify/assert"
)

func TestCode_IsSuccess(t *testing.T) {
	assert.True(t, result.Success.IsSuccess())
	assert.True(t, result.SuccessRebootRequired.IsSuccess())
	assert.True(t, result.SuccessAgentRestartRequired.IsSuccess())

	assert.False(t, result.Failure.IsSuccess())
	assert.False(t, result.InProgress.IsSuccess())
	assert.False(t, result.Cancelled.IsSuccess())
	assert.False(t, result.Skipped.IsSuccess())
}

func TestCode_RequiresReboot(t *testing.T) {
	assert.True(t, result.SuccessRebootRequired.RequiresReboot())
	assert.False(t, result.Success.RequiresReboot())
	assert.False(t, result.SuccessAgentRestartRequired.RequiresReboot())
}

func TestCode_RequiresAgentRestart(t *testing.T) {
	assert.True(t, result.SuccessAgentRestartRequired.RequiresAgentRestart())
	assert.False(t, result.Success.RequiresAgentRestart())
	assert.False(t, result.SuccessRebootRequired.RequiresAgentRestart())
}

func TestCode_String(t *testing.T) {
	assert.Equal(t, "Success", result.Success.String())
	assert.Equal(t, "Cancelled", result.Cancelled.String())
	assert.Contains(t, result.Code(42).String(), "42")
}

func TestExtendedCode_RoundTrip(t *testing.T) {
	extended := result.ExtendedCode(result.ComponentDownload, result.CauseUnrecognizedHandlerCode)

	component, cause := result.SplitExtendedCode(extended)
	assert.Equal(t, result.ComponentDownload, component)
	assert.Equal(t, result.CauseUnrecognizedHandlerCode, cause)
}

func TestExtendedCode_DistinctComponentsDoNotCollide(t *testing.T) {
	download := result.ExtendedCode(result.ComponentDownload, 1)
	install := result.ExtendedCode(result.ComponentInstall, 1)

	assert.NotEqual(t, download, install)
}

func TestSucceeded(t *testing.T) {
	r := result.Succeeded()
	assert.Equal(t, result.Success, r.Code)
	assert.True(t, r.IsTerminal())
}

func TestFailed(t *testing.T) {
	r := result.Failed(result.ComponentApply, result.CausePostBootVerifyFailed)

	assert.Equal(t, result.Failure, r.Code)
	component, cause := result.SplitExtendedCode(r.ExtendedCode)
	assert.Equal(t, result.ComponentApply, component)
	assert.Equal(t, result.CausePostBootVerifyFailed, cause)
	assert.True(t, r.IsTerminal())
}

func TestResult_IsTerminal(t *testing.T) {
	inProgress := result.New(result.InProgress, 0, "")
	assert.False(t, inProgress.IsTerminal())

	done := result.New(result.Success, 0, "")
	assert.True(t, done.IsTerminal())
}

func TestResult_String(t *testing.T) {
	withDetails := result.New(result.Failure, 7, "checksum mismatch")
	assert.Contains(t, withDetails.String(), "checksum mismatch")

	withoutDetails := result.New(result.Success, 0, "")
	assert.NotContains(t, withoutDetails.String(), "\"\"")
}
