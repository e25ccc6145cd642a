package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
	Multiplier      float64
	// OnRetry, when set, is called before each wait with the 1-based attempt
	// that just failed.
	OnRetry func(attempt int, err error)
}

// HTTPConfig is the policy for calls to model and embedding endpoints.
func HTTPConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxRetries:      3,
		Multiplier:      2.0,
	}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so that WithBackoff stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableHTTPStatus(statusErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		// NXDOMAIN is definitive
		return !dnsErr.IsNotFound
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.EPIPE)
	}

	return false
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusTooManyRequests, statusCode == http.StatusRequestTimeout:
		return true
	case statusCode >= 500 && statusCode < 600:
		return true
	}
	return false
}

// WithBackoff runs fn until it succeeds, returns a non-retryable error, the
// retry budget is spent, or ctx is done.
func WithBackoff(ctx context.Context, cfg BackoffConfig, fn func() error) error {
	var lastErr error
	interval := cfg.InitialInterval

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryableError(err) {
			return fmt.Errorf("non-retryable error on attempt %d: %w", attempt+1, err)
		}

		if attempt == cfg.MaxRetries {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * cfg.Multiplier)
		if interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}

// WithBackoffHTTP adapts a status-returning call to WithBackoff. A 2xx status
// with a nil error is success; any other status is retried per
// IsRetryableHTTPStatus even when fn also returned an error.
func WithBackoffHTTP(ctx context.Context, cfg BackoffConfig, fn func() (int, error)) error {
	return WithBackoff(ctx, cfg, func() error {
		status, err := fn()
		if status != 0 && (status < 200 || status >= 300) {
			var statusErr *StatusError
			if err != nil && errors.As(err, &statusErr) {
				return err
			}
			body := ""
			if err != nil {
				body = err.Error()
			}
			return &StatusError{Code: status, Body: body}
		}
		return err
	})
}
