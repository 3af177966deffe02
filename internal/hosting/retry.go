package hosting

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// call runs one API operation under the client's pacing, timeout and retry
// policy. Every failure it returns is an *UpstreamError.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) (*github.Response, error)) error {
	backoff := retry.NewExponential(c.config.InitialBackoff)
	backoff = retry.WithCappedDuration(c.config.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(c.config.MaxRetries), backoff)

	start := time.Now()
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return &UpstreamError{Op: op, Err: err}
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		resp, err := fn(callCtx)
		requestsTotal.WithLabelValues(op, outcomeLabel(resp, err)).Inc()
		if err == nil {
			if attempt > 1 {
				c.logger.Info("hosting call recovered after retries",
					zap.String("op", op),
					zap.Int("attempts", attempt),
					zap.Duration("total_time", time.Since(start)),
				)
			}
			return nil
		}

		uerr := &UpstreamError{Op: op, Status: statusCode(resp), Err: err}
		if ctx.Err() == nil && isRetryable(resp, err) {
			c.logger.Debug("retrying hosting call after transient error",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Int("status_code", uerr.Status),
				zap.Error(err),
			)
			return retry.RetryableError(uerr)
		}
		return uerr
	})
	if err == nil {
		return nil
	}

	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		// Parent context ended between attempts.
		return &UpstreamError{Op: op, Err: err}
	}
	return err
}

// isRetryable reports whether a failed call may succeed on retry: rate
// limiting, server errors and failures with no response at all. 401, 403
// and 404 are final.
func isRetryable(resp *github.Response, err error) bool {
	if err == nil {
		return false
	}
	if resp != nil && resp.Response != nil {
		code := resp.Response.StatusCode
		return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, github.ErrPathForbidden)
}

// statusCode safely extracts the HTTP status code from a GitHub response.
func statusCode(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.Response.StatusCode
	}
	return 0
}
