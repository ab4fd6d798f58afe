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

// Package errors implements the error taxonomy from spec §7: Input,
// Transient, Handler, Invariant violation, and Fatal.
package errors

// UserVisibleError defines errors that should be surfaced to an operator
// via the CLI with a friendly message and actionable suggestion.
type UserVisibleError interface {
	error

	// IsUserVisible returns true if this error should be shown to users.
	IsUserVisible() bool

	// UserMessage returns a user-friendly error message.
	UserMessage() string

	// Suggestion returns actionable guidance, or "" if none.
	Suggestion() string
}

// ErrorClassifier lets the engine decide whether to retry an operation on
// the next do_work tick (spec §7: Transient errors "retried by the engine
// on next tick").
type ErrorClassifier interface {
	error

	// ErrorType returns a string identifying the error category: "input",
	// "transient", "handler", "invariant", or "fatal".
	ErrorType() string

	// IsRetryable returns true if the operation should be retried.
	IsRetryable() bool
}
