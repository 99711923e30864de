package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"totobot/internal/draw"
	"totobot/internal/metrics"
	logx "totobot/pkg/logx"
)

type BreakerConfig struct {
	Failures uint32        // consecutive failures that open the breaker; 0 means 3
	Cooldown time.Duration // open period before a trial call; 0 means 5m
}

// Breaker stops hammering the source after repeated failures.
// While open every call fails fast with ErrFetch.
type Breaker struct {
	next Fetcher
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Fetcher, cfg BreakerConfig, log logx.Logger) *Breaker {
	if cfg.Failures == 0 {
		cfg.Failures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	threshold := cfg.Failures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "source",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("fetch breaker state changed", logx.String("from", from.String()), logx.String("to", to.String()))
			metrics.BreakerState.Set(stateValue(to))
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the source.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Fetch(ctx context.Context) (draw.State, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.FetchTotal.WithLabelValues("rejected").Inc()
		return draw.State{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if err != nil {
		return draw.State{}, err
	}
	return v.(draw.State), nil
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
