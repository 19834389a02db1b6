package resilience

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

// StatusError reports an upstream response that was treated as a failure.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "resilience: upstream responded " + e.Status
}

// HTTPClient issues provider calls through a breaker with bounded retries.
// Each attempt gets its own timeout; 5xx and 429 responses are retried. The
// breaker sees one outcome per Do call, so a call's own retries are never
// vetoed by its first failure. A nil Breaker disables circuit breaking.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	Fallback    func(context.Context, *http.Request, error) (*http.Response, error)
}

// Do runs req until it gets a non-retryable response or attempts run out.
// With the breaker open no request is sent and ErrOpenCircuit is the error
// handed to Fallback, or returned when there is none.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
		return cl.fail(ctx, req, ErrOpenCircuit)
	}

	resp, healthy, err := cl.attempts(ctx, req)
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, healthy)
	}
	if err != nil {
		return cl.fail(ctx, req, err)
	}
	return resp, nil
}

func (cl HTTPClient) fail(ctx context.Context, req *http.Request, err error) (*http.Response, error) {
	if cl.Fallback != nil && ctx.Err() == nil {
		return cl.Fallback(ctx, req, err)
	}
	return nil, err
}

// attempts runs the retry loop. healthy is false when any attempt failed with
// a transport error or 5xx and no later attempt succeeded; throttling alone
// says nothing about provider health.
func (cl HTTPClient) attempts(ctx context.Context, req *http.Request) (*http.Response, bool, error) {
	attempts := max(cl.MaxAttempts, 1)
	base := cl.BaseBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, true, err
	}

	healthy := true
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := cl.attempt(ctx, req, body)
		if err == nil && !retryable(resp.StatusCode) {
			return resp, true, nil
		}

		wait := Backoff(base, attempt, cl.Jitter)
		switch {
		case err != nil:
			lastErr = err
			healthy = false
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &StatusError{Code: resp.StatusCode, Status: resp.Status}
			if d, ok := retryAfter(resp); ok {
				wait = min(d, maxBackoff)
			}
			drainAndClose(resp)
		default:
			lastErr = &StatusError{Code: resp.StatusCode, Status: resp.Status}
			healthy = false
			drainAndClose(resp)
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, healthy, errors.Join(err, lastErr)
		}
	}
	return nil, healthy, lastErr
}

func (cl HTTPClient) attempt(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	out := req.Clone(callCtx)
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	resp, err := cl.Client.Do(out)
	if err != nil {
		cancel()
		return nil, err
	}
	// the attempt context must outlive Do so callers can read the body
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func retryable(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// bufferBody reads a request body once so every attempt can replay it.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	src := req.Body
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		src = rc
	}
	defer func() { _ = src.Close() }()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}
