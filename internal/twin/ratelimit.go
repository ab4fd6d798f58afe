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

package twin

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Channel so that SendReported blocks for a token
// before reaching the underlying transport. A misbehaving content
// handler that flips workflow state every do_work tick (spec §5's "tens
// of milliseconds" budget has no hard deadline) cannot flood the cloud
// transport with reported-property writes; OnPropertyUpdate passes
// through unthrottled since desired writes originate from the cloud, not
// the agent.
type RateLimited struct {
	next    Channel
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter allowing ratePerSecond sends,
// bursting up to burst.
func NewRateLimited(next Channel, ratePerSecond float64, burst int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (c *RateLimited) SendReported(ctx context.Context, component, property string, payload []byte, callback func(SendStatus)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.next.SendReported(ctx, component, property, payload, callback)
}

func (c *RateLimited) OnPropertyUpdate(component string, fn PropertyUpdateFunc) {
	c.next.OnPropertyUpdate(component, fn)
}

var _ Channel = (*RateLimited)(nil)
