package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"callqa/internal/logging"
)

type retryAfter struct {
	delay time.Duration
	ok    bool
}

func (c *Client) completeWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	attempts := max(c.retryMaxAttempts, 1)
	logger := logging.WithContext(ctx, c.logger)
	for attempt := 1; ; attempt++ {
		content, err := c.send(ctx, payload)
		if err == nil {
			return content, nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if attempt > 1 {
				return "", fmt.Errorf("failed after %d attempts: %w", attempt, err)
			}
			return "", err
		}
		logger.Debug("llm request retry",
			logging.String("op", op),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var empty *emptyContentError
	if errors.As(err, &empty) {
		return c.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter.ok {
				return c.capDelay(statusErr.RetryAfter.delay), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 -> base, 2 -> 2*base.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if c.retryMaxDelay > 0 && delay > c.retryMaxDelay/2 {
			return c.retryMaxDelay
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) retryAfter {
	value = strings.TrimSpace(value)
	if value == "" {
		return retryAfter{}
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return retryAfter{delay: time.Duration(seconds) * time.Second, ok: true}
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay >= 0 {
			return retryAfter{delay: delay, ok: true}
		}
	}
	return retryAfter{}
}
