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

// Package capabilities bundles the system calls the engine needs but
// does not own: rebooting the device and restarting the agent process
// (spec §6, §9 "Test override function pointers"). Production and test
// assembly differ only in which Capabilities record is constructed; the
// engine itself never references a global or conditionally-compiled
// function.
package capabilities

import (
	"os"
	"os/exec"
	"syscall"
)

// Capabilities is a bundle of function-like values the engine receives
// on construction.
type Capabilities struct {
	// RebootSystem triggers a device reboot. Returns a non-zero int on
	// failure to initiate, mirroring spec §6's "reboot_system() -> int".
	RebootSystem func() int

	// RestartAgent triggers an agent process restart. Returns a non-zero
	// int on failure to initiate.
	RestartAgent func() int
}

// Noop returns Capabilities whose functions do nothing and report
// success; suitable for the CLI simulate command and engine scenario
// tests where S3's "simulated next boot" is driven by the test itself
// rather than an actual reboot.
func Noop() Capabilities {
	return Capabilities{
		RebootSystem: func() int { return 0 },
		RestartAgent: func() int { return 0 },
	}
}

// Production returns Capabilities that actually reboot the device and
// restart the agent process. RestartAgent re-execs the current binary
// with its original argv and environment; the caller's do_work loop is
// expected to never return if this succeeds.
func Production() Capabilities {
	return Capabilities{
		RebootSystem: rebootSystem,
		RestartAgent: restartAgent,
	}
}

func rebootSystem() int {
	if err := exec.Command("/sbin/reboot").Run(); err != nil {
		return 1
	}
	return 0
}

// restartAgent re-execs the current binary with its original argv and
// environment, replacing the running process. On success this never
// returns to the caller.
func restartAgent() int {
	exe, err := os.Executable()
	if err != nil {
		return 1
	}
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return 1
	}
	return 0
}
