package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	backoffBase   = 100 * time.Millisecond
	backoffFactor = 2
)

// Get performs an HTTP GET with up to maxRetries retries on network errors
// and timeouts, using exponential backoff. Non-2xx responses and parse-level
// problems are never retried here; the body and status are returned for the
// caller to classify.
func Get(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, maxRetries int) ([]byte, int, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		body, status, err := doOnce(ctx, client, rawURL, headers)
		if err == nil {
			return body, status, nil
		}
		lastErr = err

		if !isTransient(err) || attempt >= maxRetries {
			return nil, 0, lastErr
		}

		backoff := backoffBase
		for i := 0; i < attempt; i++ {
			backoff *= backoffFactor
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, 0, ctx.Err()
		case <-timer.C:
		}
	}
}

func doOnce(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "market-data-gateway/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// isTransient reports whether err is a network fault or timeout worth
// retrying. Context cancellation and request-building faults are not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
