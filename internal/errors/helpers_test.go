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

package errors_test

import (
	"errors"
	"testing"

	agenterrors "github.com/edgecore/deviceupdate-agent/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrap_NilPassthrough(t *testing.T) {
	assert.Nil(t, agenterrors.Wrap(nil, "reading persistence record"))
}

func TestWrap_AddsContext(t *testing.T) {
	cause := errors.New("no such file")
	err := agenterrors.Wrap(cause, "reading persistence record")

	assert.EqualError(t, err, "reading persistence record: no such file")
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, agenterrors.IsRetryable(&agenterrors.TransientError{Operation: "send", Cause: errors.New("x")}))
	assert.False(t, agenterrors.IsRetryable(&agenterrors.HandlerError{Phase: "apply"}))
	assert.False(t, agenterrors.IsRetryable(errors.New("plain error")))
}
