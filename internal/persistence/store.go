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

// Package persistence implements the single-document workflow record of
// spec §4.6: enough state to resume a deployment across an agent
// restart or a device reboot.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	agenterrors "github.com/edgecore/deviceupdate-agent/internal/errors"
	"github.com/edgecore/deviceupdate-agent/internal/result"
)

// Record is the document written atomically before any operation that
// may be interrupted by reboot or agent restart (spec §4.6).
type Record struct {
	WorkflowID        string `json:"workflowId"`
	RetryTimestamp    string `json:"retryTimestamp,omitempty"`
	UpdateType        string `json:"updateType"`
	InstalledCriteria string `json:"installedCriteria"`
	WorkFolder        string `json:"workFolder"`
	CurrentState      int    `json:"currentState"`
	LastReportedState int    `json:"lastReportedState"`

	// ReportingJSON is the reported document built for the phase being
	// entered when the record was saved, held verbatim. The engine's
	// startup report is built afresh and does not read it back.
	ReportingJSON json.RawMessage `json:"reportingJson,omitempty"`
}

// Store manages the on-disk Record for one agent instance. There is at
// most one active root workflow (spec §3 invariant 1), so one file is
// enough; Store does not support multiple concurrent records.
type Store struct {
	path string
}

// NewStore returns a Store backed by the document at path. The
// containing directory is created lazily on first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the record's filesystem path.
func (s *Store) Path() string {
	return s.path
}

// Save writes rec atomically via a temp-file-then-rename, so a reader
// never observes a partially-written document (spec §4.6, §5 "Shared
// resources").
func (s *Store) Save(rec *Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return agenterrors.Wrap(err, "creating persistence directory")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return agenterrors.Wrap(err, "marshaling persistence record")
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return agenterrors.Wrap(err, "writing persistence record")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return agenterrors.Wrap(err, "renaming persistence record into place")
	}
	return nil
}

// Load reads the Record, returning (nil, nil) if none exists — a clean
// agent start with no in-flight deployment is not an error.
//
// A corrupt record is an Invariant violation per spec §7: the caller is
// expected to discard it (via Delete) and report a dedicated Failed
// idle, not crash the agent.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, agenterrors.Wrap(err, "reading persistence record")
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &agenterrors.InvariantError{
			Invariant: "persistence record",
			Cause:     fmt.Errorf("unmarshaling %s: %w", s.path, err),
		}
	}
	return &rec, nil
}

// Delete removes the record. Deleting an absent record is not an error,
// matching the "removed on terminal transition" lifecycle of spec §3,
// which may run more than once on retried terminal reports.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return agenterrors.Wrap(err, "removing persistence record")
	}
	return nil
}

// PostBootVerificationFailure builds the extended result code reported
// when a resumed record's handler.IsInstalled returns false (spec §4.6
// step 3).
func PostBootVerificationFailure() result.Result {
	return result.Failed(result.ComponentPostBootVerify, result.CausePostBootVerifyFailed)
}
