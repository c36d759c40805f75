// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry policy and HTTP client construction
// shared by the transport.
package httputil

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

// RetryMaxDelay caps a single backoff wait.
var RetryMaxDelay = 30 * time.Second

// RetryPolicy decides whether a request is retried. It retries connection
// failures and the throttling/unavailable statuses 429, 502, 503, 504.
// A 500 is the service's answer that the conversion failed and is returned
// as-is, as are all 4xx other than 429.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// Backoff doubles from RetryBaseDelay per attempt: 1 s, 2 s, 4 s, ...
// A Retry-After header on a 429 or 503 takes precedence. The wait never
// exceeds max.
func Backoff(_, max time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if d, ok := retryAfter(resp); ok {
			return min(d, max)
		}
	}
	d := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if d > max || d <= 0 {
		return max
	}
	return d
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// NewRetryClient wraps base with the retry policy. maxRetries of 0 or less
// disables retries. Exhausted retries hand the last response back to the
// caller instead of an error.
func NewRetryClient(base *http.Client, maxRetries int, logger retryablehttp.LeveledLogger) *retryablehttp.Client {
	if maxRetries < 0 {
		maxRetries = 0
	}

	rc := retryablehttp.NewClient()
	if base != nil {
		rc.HTTPClient = base
	}
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = RetryBaseDelay
	rc.RetryWaitMax = RetryMaxDelay
	rc.CheckRetry = RetryPolicy
	rc.Backoff = Backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = logger
	return rc
}
