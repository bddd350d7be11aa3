// Package httpx holds the request plumbing shared by the REST collaborators.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"candidate-screening/internal/domain"
)

// error bodies are kept for logs only
const maxErrorBody = 2048

// ParseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// DoJSON sends body (if non-nil) as JSON and decodes a 2xx answer into out (if non-nil).
// Non-2xx answers become *domain.HTTPError.
func DoJSON(ctx context.Context, client *http.Client, service, method, url string, header http.Header, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return domain.Permanent(service, fmt.Errorf("%w: encode request: %v", domain.ErrInvalidArgument, err))
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return domain.Permanent(service, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := Do(client, service, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Permanent(service, fmt.Errorf("%w: decode response: %v", domain.ErrInvalidArgument, err))
	}
	return nil
}

// Do executes req and converts non-2xx answers into *domain.HTTPError. The caller closes the body.
func Do(client *http.Client, service string, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", service, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.HTTPError{
			Service:    service,
			StatusCode: resp.StatusCode,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       string(bytes.TrimSpace(b)),
		}
	}
	return resp, nil
}
