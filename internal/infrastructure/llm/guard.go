// Package llm bounds calls to an oracle backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/huavcjj/wavemail/internal/domain/oracle"
	"golang.org/x/sync/semaphore"
)

// ErrRetryable marks backend errors worth another attempt, such as rate
// limiting or a 5xx response.
var ErrRetryable = errors.New("retryable oracle error")

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 2
	DefaultBackoff       = 500 * time.Millisecond
	DefaultMaxConcurrent = 4
)

type GuardConfig struct {
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	MaxConcurrent int
}

// Guard wraps an oracle.Client with a per-call timeout, bounded retry with
// exponential backoff and a cap on in-flight calls.
type Guard struct {
	next  oracle.Client
	cfg   GuardConfig
	sem   *semaphore.Weighted
	sleep func(ctx context.Context, d time.Duration) error
}

var _ oracle.Client = (*Guard)(nil)

func NewGuard(next oracle.Client, cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Guard{
		next:  next,
		cfg:   cfg,
		sem:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		sleep: sleep,
	}
}

func (g *Guard) Complete(ctx context.Context, system, user string) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire oracle slot: %w", err)
	}
	defer g.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, g.cfg.Backoff<<(attempt-1)); err != nil {
				return "", err
			}
		}

		answer, err := g.attempt(ctx, system, user)
		if err == nil {
			return answer, nil
		}
		lastErr = err

		if ctx.Err() != nil || !Retryable(err) {
			break
		}
		slog.Warn("oracle call failed, retrying", "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}

func (g *Guard) attempt(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	return g.next.Complete(ctx, system, user)
}

// Retryable reports whether err is transient: marked with ErrRetryable, a
// per-attempt deadline, or a network timeout.
func Retryable(err error) bool {
	if errors.Is(err, ErrRetryable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
