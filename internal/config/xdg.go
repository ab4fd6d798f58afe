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
	"os"
	"path/filepath"
)

// ConfigDir returns the directory holding agent.yaml.
// Respects DEVICEUPDATE_CONFIG_DIR, then XDG_CONFIG_HOME, then ~/.config.
func ConfigDir() (string, error) {
	if dir := os.Getenv("DEVICEUPDATE_CONFIG_DIR"); dir != "" {
		return ensureDir(dir)
	}

	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}

	return ensureDir(filepath.Join(base, "deviceupdate-agent"))
}

// StateDir returns the directory holding the persistence record and
// per-workflow work folders. Respects DEVICEUPDATE_STATE_DIR, then
// XDG_STATE_HOME, then ~/.local/state.
func StateDir() (string, error) {
	if dir := os.Getenv("DEVICEUPDATE_STATE_DIR"); dir != "" {
		return ensureDir(dir)
	}

	var base string
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}

	return ensureDir(filepath.Join(base, "deviceupdate-agent"))
}

func ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
