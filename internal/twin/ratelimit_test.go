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

package twin_test

import (
	"context"
	"testing"

	"github.com/edgecore/deviceupdate-agent/internal/twin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	sent int
}

func (c *recordingChannel) SendReported(_ context.Context, _, _ string, _ []byte, callback func(twin.SendStatus)) error {
	c.sent++
	if callback != nil {
		callback(200)
	}
	return nil
}

func (c *recordingChannel) OnPropertyUpdate(string, twin.PropertyUpdateFunc) {}

func TestRateLimited_PassesThroughWithinBurst(t *testing.T) {
	rec := &recordingChannel{}
	limited := twin.NewRateLimited(rec, 100, 5)

	for i := 0; i < 5; i++ {
		require.NoError(t, limited.SendReported(context.Background(), "deviceUpdate", "agent", []byte("{}"), nil))
	}
	assert.Equal(t, 5, rec.sent)
}

func TestRateLimited_RejectsOnCancelledContext(t *testing.T) {
	rec := &recordingChannel{}
	limited := twin.NewRateLimited(rec, 1, 1)
	// Exhaust the single burst token, then a cancelled context must fail
	// fast instead of blocking for the next refill.
	require.NoError(t, limited.SendReported(context.Background(), "deviceUpdate", "agent", []byte("{}"), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := limited.SendReported(ctx, "deviceUpdate", "agent", []byte("{}"), nil)
	assert.Error(t, err)
	assert.Equal(t, 1, rec.sent)
}
