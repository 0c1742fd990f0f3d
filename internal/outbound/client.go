package outbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client performs outbound provider calls with a per-call timeout and a
// circuit breaker. Calls are single attempt: payment-path errors surface
// immediately rather than being retried.
type Client struct {
	HTTP    *http.Client
	Breaker *Breaker
	Timeout time.Duration
}

// NewClient builds an instrumented HTTP client for a provider endpoint.
func NewClient(timeout time.Duration, breaker *Breaker) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		HTTP: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker: breaker,
		Timeout: timeout,
	}
}

// Do executes the request once. Responses with 5xx status codes count as
// breaker failures; 4xx responses are provider rejections of a well-delivered
// request and keep the breaker closed.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c == nil || c.HTTP == nil {
		return nil, errors.New("outbound: http client not configured")
	}
	if !c.Breaker.Allow() {
		return nil, ErrOpenCircuit
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if c.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	resp, err := c.HTTP.Do(req.WithContext(callCtx))
	if err != nil {
		cancel()
		c.Breaker.Report(false)
		return nil, err
	}
	resp.Body = &cancelReadCloser{body: resp.Body, cancel: cancel}
	c.Breaker.Report(resp.StatusCode < http.StatusInternalServerError)
	return resp, nil
}

// cancelReadCloser ties the per-call context to the response body lifetime so
// the deadline keeps covering slow body reads.
type cancelReadCloser struct {
	body   io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) { return c.body.Read(p) }

func (c *cancelReadCloser) Close() error {
	err := c.body.Close()
	c.cancel()
	return err
}
