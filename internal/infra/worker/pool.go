// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Loop is a long-running worker body. It must return when ctx is cancelled.
type Loop func(ctx context.Context, workerID string)

// Pool runs a fixed number of independent loops, each with its own worker id.
type Pool struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
	n      int
	prefix string
	log    *zerolog.Logger
}

func NewPool(workers int, prefix string, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if prefix == "" {
		prefix = "worker"
	}
	return &Pool{n: workers, prefix: prefix, log: logger}
}

func (p *Pool) Size() int { return p.n }

// Start launches the loops. Calling Start on a running pool has no effect.
func (p *Pool) Start(ctx context.Context, loop Loop) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.n; i++ {
		id := fmt.Sprintf("%s-%d", p.prefix, i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx, id, loop)
		}()
	}
	p.log.Info().Int("workers", p.n).Msg("worker pool started")
}

// run restarts the loop after a panic until ctx is cancelled.
func (p *Pool) run(ctx context.Context, id string, loop Loop) {
	for ctx.Err() == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error().Str("worker_id", id).Interface("panic", r).Msg("worker loop panicked; restarting")
				}
			}()
			loop(ctx, id)
		}()
	}
}

// Stop cancels every loop and waits for in-flight work to return.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.log.Info().Msg("worker pool stopped")
}
