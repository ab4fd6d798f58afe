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
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPropertyUpdate(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	LogPropertyUpdate(logger, &PropertyUpdate{Action: "ApplyDeployment", WorkflowID: "w1", Version: 4})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ApplyDeployment", entry[ActionKey])
	assert.Equal(t, "w1", entry[WorkflowIDKey])
	assert.Equal(t, float64(4), entry["version"])
}

func TestLogReportOutcome_Accepted(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	p := &PropertyUpdate{Action: "ApplyDeployment", WorkflowID: "w1"}
	LogReportOutcome(logger, p, &ReportOutcome{Accepted: true, DurationMs: 3})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, true, entry["accepted"])
}

func TestLogReportOutcome_Rejected(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	p := &PropertyUpdate{Action: "ApplyDeployment"}
	LogReportOutcome(logger, p, &ReportOutcome{Accepted: false, Error: "missing workflowId"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "missing workflowId", entry["error"])
}

func TestMiddleware_Handle_Success(t *testing.T) {
	var buf bytes.Buffer
	mw := NewMiddleware(New(&Config{Level: "info", Format: FormatJSON, Output: &buf}))

	called := false
	err := mw.Handle(&PropertyUpdate{Action: "ApplyDeployment", WorkflowID: "w1"}, func() error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Contains(t, buf.String(), "desired property processed")
}

func TestMiddleware_Handle_Error(t *testing.T) {
	var buf bytes.Buffer
	mw := NewMiddleware(New(&Config{Level: "info", Format: FormatJSON, Output: &buf}))

	err := mw.Handle(&PropertyUpdate{Action: "ApplyDeployment"}, func() error {
		return errors.New("malformed document")
	})

	require.Error(t, err)
	assert.Contains(t, buf.String(), "desired property rejected")
}
