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

// Package cli assembles the deviceupdate-agent command-line surface: the
// engine's host loop (serve), a scenario-driving client (simulate), and
// small introspection commands (status, version, completion).
package cli

import (
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion records build-time version metadata (injected via ldflags).
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns the recorded build metadata.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	settingsPath string
	storePath    string
	logLevel     string
	logFormat    string
}

var flags globalFlags

// NewRootCommand builds the root "deviceupdate-agent" command and
// registers every subcommand.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "deviceupdate-agent",
		Short:         "Device Update Agent — deployment workflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.settingsPath, "config", "", "path to agent.yaml (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.storePath, "store", "", "path to the persistence record (default: workflow.json in the platform state dir)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "trace, debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "json", "json or text")

	root.AddCommand(newServeCommand())
	root.AddCommand(newSimulateCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())
	root.AddCommand(newCompletionCommand())

	return root
}
