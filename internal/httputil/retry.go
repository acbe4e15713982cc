// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across source clients
// and the downloader.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// retryable responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const (
	defaultMaxRetries = 5

	// retryAfterMax caps server-requested waits so a hostile or broken
	// Retry-After header cannot stall a batch for hours.
	retryAfterMax = 5 * time.Minute
)

// DoWithRetry executes an HTTP request and retries on HTTP 429 (Too Many
// Requests) and HTTP 503 (Service Unavailable) with exponential backoff.
// The delay starts at RetryBaseDelay (10 s) and doubles each attempt:
// 10 s, 20 s, 40 s, 80 s, 160 s. A Retry-After header giving seconds
// overrides the computed backoff, capped at retryAfterMax; the HTTP-date
// form falls back to the computed backoff.
//
// When maxRetries is 0 the default (5) is used. On each retryable status
// the response body is drained and closed before sleeping. If the context
// is cancelled during a backoff wait the function returns ctx.Err().
// After exhausting retries the last response is returned so the caller
// can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if !retryable(resp.StatusCode) {
			return resp, nil
		}

		// Exhausted retries — return the throttled response as-is.
		if attempt >= maxRetries {
			return resp, nil
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		if after, ok := retryAfter(resp); ok {
			backoff = after
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// retryAfter parses the seconds form of the Retry-After header.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > retryAfterMax {
		d = retryAfterMax
	}
	return d, true
}
