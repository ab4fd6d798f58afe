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

package simulator_test

import (
	"context"
	"testing"

	"github.com/edgecore/deviceupdate-agent/internal/twin"
	"github.com/edgecore/deviceupdate-agent/internal/twin/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_SendReportedRecordsAndCallsBack(t *testing.T) {
	c := simulator.New()
	var gotStatus twin.SendStatus

	err := c.SendReported(context.Background(), twin.Component, twin.PropertyAgent, []byte(`{"state":0}`), func(s twin.SendStatus) {
		gotStatus = s
	})
	require.NoError(t, err)
	assert.True(t, gotStatus.IsSuccess())

	sent := c.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, twin.Component, sent[0].Component)
	assert.JSONEq(t, `{"state":0}`, string(sent[0].Payload))
}

func TestChannel_OnPropertyUpdateDeliver(t *testing.T) {
	c := simulator.New()
	var got twin.PropertyUpdate
	c.OnPropertyUpdate(twin.Component, func(u twin.PropertyUpdate) {
		got = u
	})

	c.Deliver(twin.Component, twin.PropertyService, []byte(`{"action":1}`), 3)

	assert.Equal(t, twin.Component, got.Component)
	assert.Equal(t, 3, got.Version)
	assert.JSONEq(t, `{"action":1}`, string(got.Value))
}

func TestChannel_Reset(t *testing.T) {
	c := simulator.New()
	require.NoError(t, c.SendReported(context.Background(), twin.Component, twin.PropertyAgent, []byte(`{}`), nil))
	require.Len(t, c.Sent(), 1)

	c.Reset()
	assert.Empty(t, c.Sent())
}
