package ai

import (
	"context"
	"fmt"
	"time"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/infra/metrics"
)

// Compile-time check
var _ adapter.AIClient = (*limitedAI)(nil)

// Limiter is a shared call budget, e.g. the Redis fixed-window limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// limitedAI caps in-process concurrency and, when a limiter is set, calls per minute across processes.
// A throttled call waits for the next window instead of failing.
type limitedAI struct {
	inner     adapter.AIClient
	sem       chan struct{}
	limiter   Limiter
	perMinute int
	keyFn     func(now time.Time) string
	wait      time.Duration
}

func NewLimitedAI(inner adapter.AIClient, maxConcurrent int, limiter Limiter, perMinute int, keyFn func(time.Time) string) adapter.AIClient {
	if maxConcurrent <= 0 && (limiter == nil || perMinute <= 0) {
		return inner
	}
	l := &limitedAI{inner: inner, limiter: limiter, perMinute: perMinute, keyFn: keyFn, wait: time.Second}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

func (l *limitedAI) RunStructuredPrompt(ctx context.Context, req adapter.PromptRequest) (*adapter.StructuredResult, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-ctx.Done():
			return nil, domain.Transient("ai concurrency", ctx.Err())
		}
	}
	if err := l.admit(ctx, req.Model); err != nil {
		return nil, err
	}
	return l.inner.RunStructuredPrompt(ctx, req)
}

func (l *limitedAI) admit(ctx context.Context, model string) error {
	if l.limiter == nil || l.perMinute <= 0 {
		return nil
	}
	for {
		ok, err := l.limiter.Allow(ctx, l.keyFn(time.Now()), l.perMinute, time.Minute)
		if err != nil {
			// a broken limiter should not stop screening
			return nil
		}
		if ok {
			return nil
		}
		metrics.IncAIThrottled(model)
		select {
		case <-ctx.Done():
			return domain.Transient("ai rate limit", fmt.Errorf("throttled: %w", ctx.Err()))
		case <-time.After(l.wait):
		}
	}
}
