// Package convert wraps external document and image tools behind ordered
// fallback chains. Every chain is tried strategy by strategy; a strategy
// whose capability check fails is skipped, and a strategy that fails is
// followed by the next one until the chain is exhausted.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/set-night/pagecraft/internal/domain"
)

// Strategy is one way of performing a conversion stage.
type Strategy[In, Out any] struct {
	Name      string
	Available func() bool
	Run       func(ctx context.Context, in In) (Out, error)
}

// Chain runs strategies in declared order.
type Chain[In, Out any] struct {
	Stage      string
	Timeout    time.Duration
	Strategies []Strategy[In, Out]
	Logger     *slog.Logger
}

// Run returns the first successful strategy's output. When all strategies
// fail it returns *domain.AdapterError, unless the last attempted strategy
// reported unreadable input, which is returned as is.
func (c *Chain[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	var zero Out
	var lastErr error
	attempted := 0

	for _, s := range c.Strategies {
		if s.Available != nil && !s.Available() {
			c.logger().Debug("strategy unavailable", "stage", c.Stage, "strategy", s.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return zero, &domain.AdapterError{Stage: c.Stage, Cause: err}
		}

		attempted++
		start := time.Now()
		out, err := c.attempt(ctx, s, in)
		if err == nil {
			c.logger().Debug("strategy succeeded",
				"stage", c.Stage,
				"strategy", s.Name,
				"duration", time.Since(start),
			)
			return out, nil
		}

		lastErr = err
		c.logger().Warn("strategy failed",
			"stage", c.Stage,
			"strategy", s.Name,
			"error", err,
			"duration", time.Since(start),
		)
		if ctx.Err() != nil {
			break
		}
	}

	if attempted == 0 {
		lastErr = fmt.Errorf("%w: no strategy available for %s", domain.ErrToolUnavailable, c.Stage)
	}
	if ctx.Err() == nil && errors.Is(lastErr, domain.ErrInvalidFormat) {
		return zero, lastErr
	}
	return zero, &domain.AdapterError{Stage: c.Stage, Cause: lastErr}
}

func (c *Chain[In, Out]) attempt(ctx context.Context, s Strategy[In, Out], in In) (out Out, err error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.Name, r)
		}
	}()

	return s.Run(ctx, in)
}

func (c *Chain[In, Out]) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// abandoned counts in-process conversions still running after their caller
// gave up. Each one keeps its input alive until the library returns.
var abandoned atomic.Int64

// Abandoned reports how many timed-out in-process conversions are still
// running.
func Abandoned() int64 { return abandoned.Load() }

// runBlocking runs an in-process conversion that cannot observe ctx and
// returns early when ctx is done. The abandoned goroutine finishes on its
// own and its result is dropped; until then it holds the input.
func runBlocking[Out any](ctx context.Context, fn func() (Out, error)) (Out, error) {
	type result struct {
		out Out
		err error
	}

	done := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r.err = fmt.Errorf("panic: %v", p)
			}
			done <- r
		}()
		r.out, r.err = fn()
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		abandoned.Add(1)
		go func() {
			<-done
			abandoned.Add(-1)
		}()
		var zero Out
		return zero, ctx.Err()
	}
}
