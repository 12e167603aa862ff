package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"creach-t/sparepartsworker/pkg/errors"
	"creach-t/sparepartsworker/services/cache"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// Policy controls retry and timeout behavior of the executor. It is an
// explicit value so the retry semantics are visible at the call site rather
// than buried in the transport.
type Policy struct {
	// MaxAttempts bounds the total number of attempts, first try included
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; it doubles per
	// attempt up to MaxDelay
	BaseDelay time.Duration

	// MaxDelay caps a single backoff sleep
	MaxDelay time.Duration

	// JitterFrac adds up to JitterFrac*delay of random jitter to each sleep
	JitterFrac float64

	// PerAttemptTimeout bounds each attempt independently
	PerAttemptTimeout time.Duration

	// RetryableStatus decides whether an HTTP status is worth retrying
	RetryableStatus func(code int) bool
}

// DefaultPolicy returns the production retry policy: up to 5 attempts with
// jittered exponential backoff, 5xx retryable, other statuses not.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       5,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		JitterFrac:        0.5,
		PerAttemptTimeout: 10 * time.Second,
		RetryableStatus: func(code int) bool {
			return code >= 500
		},
	}
}

// Request describes a single page retrieval. BlockKey, when set, makes the
// executor honor and maintain a politeness block for the supplier: an active
// key suppresses the fetch, and a rate-limit response arms it.
type Request struct {
	URL      string
	Header   http.Header
	BlockKey string
	BlockFor time.Duration
}

// Executor performs network retrieval for all source adapters. Adapters must
// not retry themselves; retry, backoff, per-host rate limiting and charset
// normalization live here.
type Executor struct {
	client   *http.Client
	policy   Policy
	cache    cache.CacheService
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	hostRate rate.Limit
}

// NewExecutor creates an executor with the given policy. cacheSvc may be nil,
// in which case block keys are ignored.
func NewExecutor(policy Policy, cacheSvc cache.CacheService) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.RetryableStatus == nil {
		policy.RetryableStatus = DefaultPolicy().RetryableStatus
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Executor{
		client:   &http.Client{Transport: transport},
		policy:   policy,
		cache:    cacheSvc,
		limiters: make(map[string]*rate.Limiter),
		hostRate: rate.Limit(1), // one request per second per supplier host
	}
}

// limiterFor returns the politeness limiter for a host
func (e *Executor) limiterFor(host string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	lim, ok := e.limiters[host]
	if !ok {
		lim = rate.NewLimiter(e.hostRate, 1)
		e.limiters[host] = lim
	}
	return lim
}

// Get fetches a URL with the default request options
func (e *Executor) Get(ctx context.Context, url string) ([]byte, error) {
	return e.Fetch(ctx, Request{URL: url})
}

// Fetch retrieves the request URL, retrying transient failures per the
// policy. The returned body is UTF-8 regardless of the page encoding.
func (e *Executor) Fetch(ctx context.Context, req Request) ([]byte, error) {
	u, err := neturl.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewFetch(req.URL, "malformed URL", err, false)
	}

	if e.cache != nil && req.BlockKey != "" {
		if _, err := e.cache.Get(req.BlockKey); err == nil {
			return nil, errors.NewFetch(u.Host, fmt.Sprintf("%s: blocked after rate limit, skipping fetch", req.BlockKey), nil, false)
		}
	}

	var lastErr error
	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.backoff(ctx, attempt-1); err != nil {
				return nil, errors.NewFetch(u.Host, "canceled while backing off", err, false)
			}
		}

		if err := e.limiterFor(u.Host).Wait(ctx); err != nil {
			return nil, errors.NewFetch(u.Host, "canceled while rate limited", err, false)
		}

		body, retryable, err := e.attempt(ctx, u.Host, req)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, errors.NewFetch(u.Host,
		fmt.Sprintf("all %d attempts failed for %s", e.policy.MaxAttempts, req.URL), lastErr, true)
}

// attempt performs one fetch with its own timeout. The second return value
// reports whether the failure is worth another attempt.
func (e *Executor) attempt(ctx context.Context, host string, req Request) ([]byte, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.policy.PerAttemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, false, errors.NewFetch(host, "failed to create request", err, false)
	}
	applyBrowserHeaders(httpReq)
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		// The run deadline expired: stop retrying, the per-attempt timeout
		// alone is retryable.
		if ctx.Err() != nil {
			return nil, false, errors.NewFetch(host, "fetch canceled", ctx.Err(), false)
		}
		return nil, true, errors.NewFetch(host, "request failed", err, true)
	}
	defer resp.Body.Close()

	// 429 (and the 430 some shops answer with) arms the politeness block;
	// retrying immediately would only dig the hole deeper.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 430 {
		if e.cache != nil && req.BlockKey != "" && req.BlockFor > 0 {
			blockSeconds := fmt.Sprintf("%d", int(req.BlockFor/time.Second))
			if setErr := e.cache.Set(req.BlockKey, []byte(blockSeconds), req.BlockFor); setErr != nil {
				return nil, false, errors.NewFetch(host, "failed to set block key", setErr, false)
			}
		}
		return nil, false, errors.NewFetch(host,
			fmt.Sprintf("rate limited; retry after %s", resp.Header.Get("Retry-After")), nil, false)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := e.policy.RetryableStatus(resp.StatusCode)
		return nil, retryable, errors.NewFetch(host,
			fmt.Sprintf("unexpected status code %d for %s", resp.StatusCode, req.URL), nil, retryable)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, errors.NewFetch(host, "failed to read response body", err, true)
	}

	return toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
}

// toUTF8 converts the body to UTF-8 based on the Content-Type header and the
// body content itself
func toUTF8(body []byte, contentType string) ([]byte, bool, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, false, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, false, errors.NewFetch("", "failed to convert body to UTF-8", err, false)
	}
	return buf.Bytes(), false, nil
}

// backoff sleeps for the jittered exponential delay of the given attempt,
// returning early if the context is canceled
func (e *Executor) backoff(ctx context.Context, attempt int) error {
	d := e.policy.BaseDelay << uint(attempt)
	if e.policy.MaxDelay > 0 && d > e.policy.MaxDelay {
		d = e.policy.MaxDelay
	}
	if j := int64(float64(d) * e.policy.JitterFrac); j > 0 {
		d += time.Duration(mathrand.Int63n(j))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
