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

// Package config loads and persists the agent's static configuration
// (device identity, compatibility property names, feature flags) from
// agent.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrLockTimeout is returned when file lock acquisition times out.
var ErrLockTimeout = errors.New("agent.yaml locked by another process")

// lockTimeout bounds how long Lock waits for a concurrent writer.
const lockTimeout = 5 * time.Second

// DeviceProperties identifies the device for the startup message (spec §6).
type DeviceProperties struct {
	Manufacturer string            `yaml:"manufacturer"`
	Model        string            `yaml:"model"`
	InterfaceID  string            `yaml:"interface_id"`
	Versions     map[string]string `yaml:"versions,omitempty"`
}

// Config is the agent's static configuration.
type Config struct {
	Version int `yaml:"version"`

	Device DeviceProperties `yaml:"device"`

	// CompatPropertyNames lists the device-property keys used to match
	// the device against a deployment's compatibility requirements.
	// Default per spec §6 is "manufacturer,model".
	CompatPropertyNames string `yaml:"compat_property_names"`

	// TelemetryVersions toggles inclusion of extra version properties in
	// the startup message (spec §9 feature flag).
	TelemetryVersions bool `yaml:"telemetry_versions"`

	// WorkRoot is the parent directory under which each workflow's
	// work_folder is created.
	WorkRoot string `yaml:"work_root"`

	// DoWorkInterval is the host loop's do_work tick period.
	DoWorkInterval time.Duration `yaml:"do_work_interval"`
}

// Default returns a Config with sensible defaults for a freshly
// provisioned device.
func Default() *Config {
	return &Config{
		Version:             1,
		CompatPropertyNames: "manufacturer,model",
		TelemetryVersions:   false,
		WorkRoot:            "",
		DoWorkInterval:      50 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	if c.CompatPropertyNames == "" {
		c.CompatPropertyNames = "manufacturer,model"
	}
	if c.DoWorkInterval <= 0 {
		c.DoWorkInterval = 50 * time.Millisecond
	}
}

// SettingsFile manages agent.yaml with file locking for concurrent-process
// safety and atomic write-rename for crash safety.
type SettingsFile struct {
	path     string
	lockFile *os.File
}

// SettingsPath returns the full path to agent.yaml.
func SettingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agent.yaml"), nil
}

// NewSettingsFile creates a SettingsFile for path, or the default path if
// path is empty.
func NewSettingsFile(path string) (*SettingsFile, error) {
	if path == "" {
		var err error
		path, err = SettingsPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get settings path: %w", err)
		}
	}

	return &SettingsFile{path: path}, nil
}

// Path returns the file path this SettingsFile manages.
func (s *SettingsFile) Path() string {
	return s.path
}

// Lock acquires an exclusive lock on the settings file.
func (s *SettingsFile) Lock() error {
	lockPath := s.path + ".lock"

	dir := filepath.Dir(lockPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
			s.lockFile = lockFile
			return nil
		}

		if time.Now().After(deadline) {
			lockFile.Close()
			return ErrLockTimeout
		}

		<-ticker.C
	}
}

// Unlock releases the file lock.
func (s *SettingsFile) Unlock() error {
	if s.lockFile == nil {
		return nil
	}

	if err := syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		s.lockFile.Close()
		s.lockFile = nil
		return fmt.Errorf("failed to unlock: %w", err)
	}

	if err := s.lockFile.Close(); err != nil {
		s.lockFile = nil
		return fmt.Errorf("failed to close lock file: %w", err)
	}

	s.lockFile = nil
	return nil
}

// Load reads the configuration. The file must be locked first.
// A missing file yields Default().
func (s *SettingsFile) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agent.yaml: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Save atomically writes cfg (write to a temp file, then rename). The file
// must be locked first.
func (s *SettingsFile) Save(cfg *Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal agent.yaml: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// WithLock runs fn while holding the file lock, releasing it on return.
func (s *SettingsFile) WithLock(fn func() error) error {
	if err := s.Lock(); err != nil {
		return err
	}
	defer s.Unlock()

	return fn()
}

// LoadSettings loads configuration from path with automatic locking.
func LoadSettings(path string) (*Config, error) {
	sf, err := NewSettingsFile(path)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	err = sf.WithLock(func() error {
		var loadErr error
		cfg, loadErr = sf.Load()
		return loadErr
	})
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveSettings saves configuration to path with automatic locking.
func SaveSettings(path string, cfg *Config) error {
	sf, err := NewSettingsFile(path)
	if err != nil {
		return err
	}

	return sf.WithLock(func() error {
		return sf.Save(cfg)
	})
}
