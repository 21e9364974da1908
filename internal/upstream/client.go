package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/internal/metrics"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
	"github.com/rohmanhakim/nextmuni/pkg/hashutil"
	"github.com/rohmanhakim/nextmuni/pkg/limiter"
)

/*
Responsibilities

- Perform HTTP GETs against the upstream site
- Attach the caller's Session cookies to each request
- Report the cookies each response and its redirects set, without storing them
- Apply headers, timeouts and host politeness
- Classify transport and status failures

The client never parses content and never retries; it only returns bytes,
cookies and metadata.
*/

type Client interface {
	Get(ctx context.Context, req Request, session Session) (FetchResult, failure.ClassifiedError)
}

const maxRedirects = 10

type HTTPClient struct {
	metadataSink metadata.MetadataSink
	metrics      *metrics.Metrics
	httpClient   *http.Client
	rateLimiter  limiter.RateLimiter
	userAgent    string
}

// NewHTTPClient creates a client with its own http.Client bounded by timeout.
// rateLimiter and m may be nil.
func NewHTTPClient(
	metadataSink metadata.MetadataSink,
	m *metrics.Metrics,
	userAgent string,
	timeout time.Duration,
	rateLimiter limiter.RateLimiter,
) *HTTPClient {
	return NewHTTPClientWithClient(metadataSink, m, userAgent, &http.Client{Timeout: timeout}, rateLimiter)
}

// NewHTTPClientWithClient creates a client around a custom http.Client.
// This is useful for testing.
func NewHTTPClientWithClient(
	metadataSink metadata.MetadataSink,
	m *metrics.Metrics,
	userAgent string,
	httpClient *http.Client,
	rateLimiter limiter.RateLimiter,
) *HTTPClient {
	return &HTTPClient{
		metadataSink: metadataSink,
		metrics:      m,
		httpClient:   httpClient,
		rateLimiter:  rateLimiter,
		userAgent:    userAgent,
	}
}

func (c *HTTPClient) Get(ctx context.Context, req Request, session Session) (FetchResult, failure.ClassifiedError) {
	target := req.URL()
	host := target.Host

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, host); err != nil {
			return FetchResult{}, &UpstreamError{
				Message:   fmt.Sprintf("waiting for %s: %v", host, err),
				Retryable: false,
				Cause:     ErrCauseCancelled,
			}
		}
		c.rateLimiter.MarkLastFetchAsNow(host)
	}

	start := time.Now()
	result, err := c.perform(ctx, req, session)
	duration := time.Since(start)

	if err != nil {
		c.metrics.ObserveUpstream(string(req.Endpoint()), "error")
		if c.rateLimiter != nil && failure.IsRecoverable(err) {
			c.rateLimiter.Backoff(host)
		}
		c.metadataSink.RecordError(
			time.Now(),
			"upstream",
			"HTTPClient.Get",
			mapUpstreamErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, target.String()),
			},
		)
		return FetchResult{}, err
	}

	if c.rateLimiter != nil {
		c.rateLimiter.ResetBackoff(host)
	}
	result.meta.duration = duration
	c.metrics.ObserveUpstream(string(req.Endpoint()), "ok")
	c.metadataSink.RecordFetch(
		target.String(),
		result.Code(),
		duration,
		hashutil.ContentHash(result.body),
		len(result.body),
	)
	return result, nil
}

func (c *HTTPClient) perform(ctx context.Context, req Request, session Session) (FetchResult, *UpstreamError) {
	target := req.URL()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return FetchResult{}, &UpstreamError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(c.userAgent) {
		httpReq.Header.Set(key, value)
	}
	if !session.IsEmpty() {
		for _, cookie := range session.Cookies() {
			httpReq.AddCookie(cookie)
		}
	}

	// cookies set by redirect responses are kept and sent on the next hop
	var redirected []*http.Cookie
	hc := *c.httpClient
	hc.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		if err := checkRedirect(c.httpClient, next, via); err != nil {
			return err
		}
		if next.Response != nil {
			redirected = append(redirected, next.Response.Cookies()...)
		}
		if next.URL.Host == target.Host {
			next.Header.Del("Cookie")
			for _, cookie := range session.Merge(redirected).Cookies() {
				next.AddCookie(cookie)
			}
		}
		return nil
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return FetchResult{}, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return FetchResult{}, &UpstreamError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return FetchResult{}, &UpstreamError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}

	case resp.StatusCode == http.StatusForbidden:
		return FetchResult{}, &UpstreamError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestForbidden,
		}

	case resp.StatusCode >= 400:
		return FetchResult{}, &UpstreamError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequest4xx,
		}

	case resp.StatusCode >= 300:
		// http.Client follows redirects; landing here means it gave up
		return FetchResult{}, &UpstreamError{
			Message:   fmt.Sprintf("redirect error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &UpstreamError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	return FetchResult{
		url:     target,
		body:    body,
		cookies: append(redirected, resp.Cookies()...),
		meta: ResponseMeta{
			statusCode: resp.StatusCode,
		},
	}, nil
}

func checkRedirect(hc *http.Client, next *http.Request, via []*http.Request) error {
	if hc.CheckRedirect != nil {
		return hc.CheckRedirect(next, via)
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

func classifyTransportError(ctx context.Context, err error) *UpstreamError {
	if ctx.Err() == context.Canceled {
		return &UpstreamError{
			Message:   fmt.Sprintf("request cancelled: %v", err),
			Retryable: false,
			Cause:     ErrCauseCancelled,
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamError{
			Message:   fmt.Sprintf("request timed out: %v", err),
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}
	}

	return &UpstreamError{
		Message:   fmt.Sprintf("request failed: %v", err),
		Retryable: true,
		Cause:     ErrCauseNetworkFailure,
	}
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml,text/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}
}
