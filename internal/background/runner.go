// Package background runs detached, best-effort tasks whose outcome the
// caller does not wait for. Failures are logged and counted, never returned.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is reported for tasks submitted after Shutdown.
var ErrClosed = errors.New("background runner closed")

// Task is a unit of detached work. The context carries the runner's
// per-task deadline, not the deadline of the request that spawned it.
type Task func(ctx context.Context) error

// Runner tracks detached tasks so shutdown can drain them.
type Runner struct {
	logger  zerolog.Logger
	timeout time.Duration
	onDone  func(name string, err error)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Runner)

// WithObserver registers a callback invoked after every task finishes.
func WithObserver(fn func(name string, err error)) Option {
	return func(r *Runner) { r.onDone = fn }
}

func New(logger zerolog.Logger, timeout time.Duration, opts ...Option) *Runner {
	r := &Runner{
		logger:  logger.With().Str("service", "BackgroundRunner").Logger(),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Go starts fn detached from any request context.
func (r *Runner) Go(name string, fn Task) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.finish(name, ErrClosed)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.finish(name, r.run(ctx, fn))
	}()
}

func (r *Runner) run(ctx context.Context, fn Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *Runner) finish(name string, err error) {
	if err != nil {
		r.logger.Warn().Err(err).Str("task", name).Msg("Background task failed")
	} else {
		r.logger.Debug().Str("task", name).Msg("Background task done")
	}
	if r.onDone != nil {
		r.onDone(name, err)
	}
}

// Shutdown stops accepting tasks and waits for running ones until ctx ends.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
