package shard

import (
	"context"
	"fmt"

	"shard-federator/internal/common/errors"
)

// Breaker runs fn unless the shard is considered unhealthy.
type Breaker interface {
	Execute(ctx context.Context, fn func() error) error
}

// Limiter blocks until key may proceed.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

type breakerProvider struct {
	next    HandleProvider
	breaker Breaker
}

// WithBreaker routes every Open through breaker
func WithBreaker(next HandleProvider, breaker Breaker) HandleProvider {
	return &breakerProvider{next: next, breaker: breaker}
}

func (p *breakerProvider) Open(ctx context.Context) (Handle, error) {
	var h Handle
	err := p.breaker.Execute(ctx, func() error {
		var err error
		h, err = p.next.Open(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

type rateLimitedProvider struct {
	next    HandleProvider
	limiter Limiter
	key     string
}

// WithRateLimit waits on limiter under key before every Open
func WithRateLimit(next HandleProvider, limiter Limiter, key string) HandleProvider {
	return &rateLimitedProvider{next: next, limiter: limiter, key: key}
}

func (p *rateLimitedProvider) Open(ctx context.Context) (Handle, error) {
	if err := p.limiter.Wait(ctx, p.key); err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("rate limit wait for shard %s", p.key), err).WithShard(p.key)
	}
	return p.next.Open(ctx)
}
