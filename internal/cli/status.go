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

package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/edgecore/deviceupdate-agent/internal/config"
	"github.com/edgecore/deviceupdate-agent/internal/persistence"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the persisted workflow record, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	storePath := flags.storePath
	if storePath == "" {
		dir, err := config.StateDir()
		if err != nil {
			return fmt.Errorf("resolving state dir: %w", err)
		}
		storePath = filepath.Join(dir, "workflow.json")
	}

	store := persistence.NewStore(storePath)
	rec, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading %s: %w", storePath, err)
	}
	if rec == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no persisted workflow (Idle)")
		return nil
	}

	out := map[string]any{
		"workflowId":        rec.WorkflowID,
		"retryTimestamp":    rec.RetryTimestamp,
		"updateType":        rec.UpdateType,
		"installedCriteria": rec.InstalledCriteria,
		"currentState":      workflow.State(rec.CurrentState).String(),
		"lastReportedState": workflow.State(rec.LastReportedState).String(),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
