// Package retry provides the bounded retry policy shared by all tool calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed with a retryable error.
var ErrExhausted = errors.New("retry attempts exhausted")

type Config struct {
	MaxAttempts   int           `split_words:"true" default:"3"`
	Delay         time.Duration `split_words:"true" default:"50ms"`
	MaxDelay      time.Duration `split_words:"true" default:"1s"`
	BackoffFactor float64       `split_words:"true" default:"1"`
}

var DefaultConfig = Config{
	MaxAttempts:   3,
	Delay:         50 * time.Millisecond,
	MaxDelay:      time.Second,
	BackoffFactor: 1,
}

// Classifier reports whether err is worth another attempt.
type Classifier func(error) bool

// ShouldRetry retries everything except context cancellation.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type Policy struct {
	Config     Config
	Classifier Classifier

	sleep func(ctx context.Context, d time.Duration) error
}

func NewPolicy(cfg Config, classifier Classifier) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	if classifier == nil {
		classifier = ShouldRetry
	}
	return &Policy{
		Config:     cfg,
		Classifier: classifier,
		sleep:      sleepContext,
	}
}

// CalculateDelay returns the wait before the given attempt (1-based). The first attempt never waits.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 || p.Config.Delay <= 0 {
		return 0
	}
	delay := time.Duration(float64(p.Config.Delay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2)))
	if p.Config.MaxDelay > 0 && delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}
	return delay
}

func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts run out.
// It reports how many attempts were made.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error
	attempt := 0
	for attempt < p.Config.MaxAttempts {
		attempt++
		if delay := p.CalculateDelay(attempt); delay > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				return attempt - 1, fmt.Errorf("retry cancelled: %w", err)
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if !p.ShouldRetry(err) {
			return attempt, err
		}
	}
	return attempt, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
