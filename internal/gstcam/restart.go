package gstcam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// RestartConfig contains configuration for exponential backoff restarts
type RestartConfig struct {
	MaxRetries    int           // Maximum number of restart attempts (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 500ms)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 10 seconds)
}

// DefaultRestartConfig returns default restart configuration
func DefaultRestartConfig() RestartConfig {
	return RestartConfig{
		MaxRetries:    5,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 10 * time.Second,
	}
}

// RestartState tracks the current state of restart attempts
type RestartState struct {
	CurrentRetries int
	Restarts       atomic.Uint32 // total restarts over the device lifetime
}

// RunFunc runs the pipeline until it fails (non-nil error) or ctx is done (nil)
type RunFunc func(ctx context.Context) error

// ErrNotRetryable wraps errors that must not trigger a restart
type ErrNotRetryable struct{ Err error }

func (e *ErrNotRetryable) Error() string { return e.Err.Error() }
func (e *ErrNotRetryable) Unwrap() error { return e.Err }

// RunWithRestart executes runFn, restarting it with exponential backoff
// when it fails.
//
// Backoff schedule with the defaults: 500ms, 1s, 2s, 4s, 8s, then stop.
// Returns nil when runFn returns nil, ctx.Err() when ctx is cancelled, or an
// error when retries are exhausted or runFn returns *ErrNotRetryable.
func RunWithRestart(ctx context.Context, runFn RunFunc, cfg RestartConfig, state *RestartState) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := runFn(ctx)
		if err == nil {
			state.CurrentRetries = 0
			return nil
		}

		var fatal *ErrNotRetryable
		if errors.As(err, &fatal) {
			slog.Error("gstcam: pipeline failed, not restarting", "error", err)
			return err
		}

		slog.Error("gstcam: pipeline failed", "error", err)

		state.CurrentRetries++
		state.Restarts.Add(1)

		if state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("gstcam: max restarts exceeded (%d attempts): %w", cfg.MaxRetries, err)
		}

		delay := calculateBackoff(state.CurrentRetries, cfg)
		slog.Warn("gstcam: restarting pipeline",
			"attempt", state.CurrentRetries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// calculateBackoff returns retryDelay * 2^(attempt-1), capped at maxRetryDelay
func calculateBackoff(attempt int, cfg RestartConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

// ResetRestartState resets the retry counter once the pipeline is playing
func ResetRestartState(state *RestartState) {
	state.CurrentRetries = 0
}
