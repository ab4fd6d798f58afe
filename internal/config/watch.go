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

package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads agent.yaml whenever it changes on disk, so
// compat_property_names and telemetry_versions can be edited without an
// agent restart.
type Watcher struct {
	sf     *SettingsFile
	fsw    *fsnotify.Watcher
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher starts watching the directory containing path (path may not
// exist yet; fsnotify watches the directory so creation is still seen).
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	sf, err := NewSettingsFile(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(sf.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		sf:     sf,
		fsw:    fsw,
		logger: slog.Default().With(slog.String("component", "config_watcher")),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go w.run(onReload)

	return w, nil
}

func (w *Watcher) run(onReload func(*Config)) {
	defer close(w.doneCh)

	// Debounce bursts of writes (editors often emit several events per save).
	var pending *time.Timer
	target := filepath.Base(w.sf.Path())

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(100*time.Millisecond, func() {
				cfg, err := LoadSettings(w.sf.Path())
				if err != nil {
					w.logger.Warn("failed to reload agent.yaml", slog.String("error", err.Error()))
					return
				}
				w.logger.Info("reloaded agent.yaml")
				onReload(cfg)
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stopCh)
	err := w.fsw.Close()
	<-w.doneCh
	return err
}
