package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	applog "essentia/internal/log"
)

const (
	defaultUserAgent = "essentia-enricher/1.0 (library@essentia.app)"
	maxResponseBytes = 4 << 20
)

// sourceClient performs HTTP calls for one adapter: every attempt passes
// through the shared rate limiter, transient failures are retried with
// exponential backoff up to the configured ceiling, and outcomes are reported
// back so the limiter can widen or reset the source's pacing.
type sourceClient struct {
	source  Source
	http    *http.Client
	limiter *Limiter
	retries uint64
}

func newSourceClient(source Source, httpClient *http.Client, limiter *Limiter, retries int) *sourceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if retries < 0 {
		retries = 0
	}
	return &sourceClient{
		source:  source,
		http:    httpClient,
		limiter: limiter,
		retries: uint64(retries),
	}
}

// get fetches a URL and returns the body. A 404 becomes ErrNoMatch; 5xx,
// 429, and transport errors are retried; any other failure is permanent.
func (c *sourceClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
}

// postForm submits an urlencoded form and returns the body.
func (c *sourceClient) postForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	encoded := form.Encode()
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// getJSON fetches a URL and decodes the JSON body into out.
func (c *sourceClient) getJSON(ctx context.Context, rawURL string, out any) error {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &SourceError{Source: c.source, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *sourceClient) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	attempt := func() ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Acquire(ctx, c.source); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		req, err := build()
		if err != nil {
			return nil, backoff.Permanent(&SourceError{Source: c.source, Err: err})
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept", "text/html,application/json,*/*")

		resp, err := c.http.Do(req)
		if err != nil {
			c.reportFailure()
			return nil, fmt.Errorf("call %s: %w", c.source, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			c.reportSuccess()
			return nil, backoff.Permanent(ErrNoMatch)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			c.reportFailure()
			return nil, fmt.Errorf("%s returned status %s", c.source, resp.Status)
		case resp.StatusCode >= http.StatusBadRequest:
			c.reportFailure()
			return nil, backoff.Permanent(&SourceError{
				Source: c.source,
				Err:    fmt.Errorf("unexpected status %s", resp.Status),
			})
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			c.reportFailure()
			return nil, fmt.Errorf("read %s response: %w", c.source, err)
		}

		c.reportSuccess()
		return body, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries),
		ctx,
	)

	body, err := backoff.RetryWithData(attempt, policy)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	return body, nil
}

// classify folds the final retry error into the pipeline taxonomy.
func (c *sourceClient) classify(ctx context.Context, err error) error {
	if errors.Is(err, ErrNoMatch) {
		return ErrNoMatch
	}
	if _, ok := AsSourceError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	applog.Warn(ctx, "source exhausted retries", "source", string(c.source), "error", err)
	return &SourceError{Source: c.source, Transient: true, Err: err}
}

func (c *sourceClient) reportFailure() {
	if c.limiter != nil {
		c.limiter.ReportFailure(c.source)
	}
}

func (c *sourceClient) reportSuccess() {
	if c.limiter != nil {
		c.limiter.ReportSuccess(c.source)
	}
}
