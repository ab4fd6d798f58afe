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
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/edgecore/deviceupdate-agent/internal/capabilities"
	"github.com/edgecore/deviceupdate-agent/internal/engine"
	"github.com/edgecore/deviceupdate-agent/internal/handler"
	"github.com/edgecore/deviceupdate-agent/internal/handler/simulator"
	"github.com/edgecore/deviceupdate-agent/internal/persistence"
	twinsim "github.com/edgecore/deviceupdate-agent/internal/twin/simulator"
	"github.com/edgecore/deviceupdate-agent/internal/workflow"
)

var stateStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func newSimulateCommand() *cobra.Command {
	var installedCriteria string
	var applyRequiresReboot bool
	var failInstall bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Interactively build and deliver a desired deployment to an in-process engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, installedCriteria, applyRequiresReboot, failInstall)
		},
	}

	cmd.Flags().StringVar(&installedCriteria, "installed-criteria", "", "value reported as installedUpdateId on success")
	cmd.Flags().BoolVar(&applyRequiresReboot, "apply-requires-reboot", false, "script Apply to request a reboot (scenario S3)")
	cmd.Flags().BoolVar(&failInstall, "fail-install", false, "script Install to fail (scenario S2/S5-style exercise)")

	return cmd
}

func runSimulate(cmd *cobra.Command, installedCriteria string, applyRequiresReboot, failInstall bool) error {
	workflowID := uuid.NewString()
	retryTimestamp := time.Now().UTC().Format(time.RFC3339)
	if installedCriteria == "" {
		installedCriteria = uuid.NewString()
	}

	confirm := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("workflow id").Value(&workflowID),
			huh.NewInput().Title("retry timestamp").Value(&retryTimestamp),
			huh.NewInput().Title("installed criteria").Value(&installedCriteria),
			huh.NewConfirm().Title("deliver this deployment?").Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	if !confirm {
		fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
		return nil
	}

	registry := handler.NewRegistry()
	script := simulator.Script{ApplyRequiresReboot: applyRequiresReboot}
	if failInstall {
		script.InstallOutcome = simulator.Outcome{Code: -100, ExtendedCode: 0, Details: "simulated install failure"}
	}
	registry.Register(simulator.UpdateType, simulator.Factory(script))

	channel := twinsim.New()
	storePath := filepath.Join(os.TempDir(), "deviceupdate-agent-simulate-"+uuid.NewString()+".json")
	store := persistence.NewStore(storePath)
	defer os.Remove(storePath)

	eng := engine.New(engine.Config{
		Channel:      channel,
		Registry:     registry,
		Store:        store,
		Capabilities: capabilities.Noop(),
	})
	eng.Start()

	ctx := cmd.Context()
	if err := eng.OnConnected(ctx); err != nil {
		return err
	}

	raw, err := json.Marshal(map[string]any{
		"action":            int(workflow.ActionApplyDeployment),
		"workflowId":        workflowID,
		"retryTimestamp":    retryTimestamp,
		"updateType":        simulator.UpdateType,
		"installedCriteria": installedCriteria,
	})
	if err != nil {
		return err
	}
	channel.Deliver("deviceUpdate", "service", raw, 1)

	printed := 0
	for i := 0; i < 64; i++ {
		sent := channel.Sent()
		for ; printed < len(sent); printed++ {
			printReported(cmd, sent[printed].Payload)
		}
		if doneAdvancing(sent) {
			break
		}
		if err := eng.DoWork(ctx); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	sent := channel.Sent()
	for ; printed < len(sent); printed++ {
		printReported(cmd, sent[printed].Payload)
	}

	return nil
}

func doneAdvancing(sent []twinsim.Sent) bool {
	if len(sent) == 0 {
		return false
	}
	var probe struct {
		State *int `json:"state"`
	}
	for i := len(sent) - 1; i >= 0; i-- {
		if json.Unmarshal(sent[i].Payload, &probe) == nil && probe.State != nil {
			return workflow.State(*probe.State).IsTerminal()
		}
	}
	return false
}

func printReported(cmd *cobra.Command, payload []byte) {
	var doc map[string]any
	if json.Unmarshal(payload, &doc) != nil {
		return
	}
	state, ok := doc["state"]
	if !ok {
		return // an ack, not a reported document
	}
	pretty, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), stateStyle.Render(fmt.Sprintf("state=%v", state)))
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
}
