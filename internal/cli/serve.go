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
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/edgecore/deviceupdate-agent/internal/capabilities"
	"github.com/edgecore/deviceupdate-agent/internal/config"
	"github.com/edgecore/deviceupdate-agent/internal/engine"
	"github.com/edgecore/deviceupdate-agent/internal/handler"
	"github.com/edgecore/deviceupdate-agent/internal/handler/simulator"
	"github.com/edgecore/deviceupdate-agent/internal/log"
	"github.com/edgecore/deviceupdate-agent/internal/persistence"
	"github.com/edgecore/deviceupdate-agent/internal/twin"
	twinsim "github.com/edgecore/deviceupdate-agent/internal/twin/simulator"
)

func newServeCommand() *cobra.Command {
	var metricsAddr string
	var production bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the deployment workflow engine's cooperative host loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, metricsAddr, production)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, expose Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&production, "production-capabilities", false, "use the real reboot/agent-restart capabilities instead of no-ops")

	return cmd
}

func runServe(cmd *cobra.Command, metricsAddr string, production bool) error {
	logger := log.New(&log.Config{Level: flags.logLevel, Format: log.Format(flags.logFormat), Output: os.Stderr})

	settingsPath := flags.settingsPath
	cfg, err := config.LoadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("loading agent.yaml: %w", err)
	}

	storePath := flags.storePath
	if storePath == "" {
		dir, err := config.StateDir()
		if err != nil {
			return fmt.Errorf("resolving state dir: %w", err)
		}
		storePath = filepath.Join(dir, "workflow.json")
	}

	if metricsAddr != "" {
		server := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server exited", log.Error(err))
			}
		}()
		defer server.Close()
	}

	caps := capabilities.Noop()
	if production {
		caps = capabilities.Production()
	}

	registry := handler.NewRegistry()
	registry.Register(simulator.UpdateType, simulator.Factory(simulator.Script{}))

	channel := twin.NewRateLimited(twinsim.New(), 20, 5)

	eng := engine.New(engine.Config{
		Channel:             channel,
		Registry:            registry,
		Store:               persistence.NewStore(storePath),
		Capabilities:        caps,
		Logger:              logger,
		DeviceProperties:    cfg.Device,
		CompatPropertyNames: cfg.CompatPropertyNames,
		WorkRoot:            cfg.WorkRoot,
	})
	eng.Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.OnConnected(ctx); err != nil {
		return fmt.Errorf("on_connected: %w", err)
	}

	ticker := time.NewTicker(cfg.DoWorkInterval)
	defer ticker.Stop()

	logger.Info("deviceupdate-agent serving", "store", storePath, "do_work_interval", cfg.DoWorkInterval)

	for {
		select {
		case <-ctx.Done():
			return eng.OnDestroy(context.Background())
		case <-ticker.C:
			if err := eng.DoWork(ctx); err != nil {
				logger.Error("do_work", log.Error(err))
			}
		}
	}
}
