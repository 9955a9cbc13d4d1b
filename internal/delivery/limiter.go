// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package delivery

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tomtom215/releasewatch/internal/models"
)

// RateLimited wraps a Channel with a token-bucket limiter so a large cycle
// stays under the provider's send rate.
type RateLimited struct {
	inner   Channel
	limiter *rate.Limiter
}

// NewRateLimited limits inner to perSecond sends with the given burst.
// A non-positive perSecond returns inner unchanged.
func NewRateLimited(inner Channel, perSecond float64, burst int) Channel {
	if perSecond <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Name implements Channel.
func (r *RateLimited) Name() models.Channel { return r.inner.Name() }

// MaxContentLength implements Channel.
func (r *RateLimited) MaxContentLength() int { return r.inner.MaxContentLength() }

// Send waits for a token, then delegates. A context that ends first yields a
// transient timeout result; nothing was sent.
func (r *RateLimited) Send(ctx context.Context, msg *Message) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		to := ""
		if msg != nil {
			to = msg.To
		}
		return failed(to, ErrorCodeTimeout, "rate limiter: "+err.Error()), nil
	}
	return r.inner.Send(ctx, msg)
}
