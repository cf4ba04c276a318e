package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is the subset of an HTTP response the fetchers read.
type Response interface {
	StatusCode() int
	Body() []byte
}

// Client issues GET requests with per-call headers.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	CloseIdleConnections()
}

type restyClient struct {
	client *resty.Client
}

// NewRestyClient returns a Client backed by resty with the given request timeout.
// Redirects are followed; no retries are configured.
func NewRestyClient(timeout time.Duration) Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &restyClient{client: c}
}

// Get performs a GET request and returns the raw response.
func (r *restyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return resp, nil
}

// CloseIdleConnections releases pooled connections held by the underlying transport.
func (r *restyClient) CloseIdleConnections() {
	r.client.GetClient().CloseIdleConnections()
}
