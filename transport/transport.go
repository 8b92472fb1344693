// Package transport implements a thin wrapper around an HTTP client that
// classifies every response/error into the errs taxonomy, leaving retry
// policy itself (attempt budgets, maxlag handling, token refresh) to
// package mw.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
)

// DefaultTimeout is the total per-request timeout.
const DefaultTimeout = 300 * time.Second

// Client wraps retryablehttp.Client with a clean transport, a cookie jar,
// and a fixed User-Agent.
type Client struct {
	http                *retryablehttp.Client
	userAgent           string
	delayBeforeRequests time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout overrides the per-request total timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// NewClient builds a Client with a clean, pooled transport and an in-memory
// cookie jar: the jar lives here so a transport.Client alone is enough to
// drive a login round-trip.
func NewClient(opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient = cleanhttp.DefaultPooledClient()
	httpClient.HTTPClient.Jar = jar
	httpClient.HTTPClient.Timeout = DefaultTimeout
	// Retries happen one layer up, in mw's apiRequest loop: that loop needs
	// to see low-level failures to decide whether to clear tokens or
	// re-login before retrying, so the HTTP layer itself never retries.
	httpClient.RetryMax = 0
	httpClient.Logger = nil

	c := &Client{http: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Jar returns the client's cookie jar, so a session can serialize/restore
// it across save/load.
func (c *Client) Jar() http.CookieJar { return c.http.HTTPClient.Jar }

// SetJar replaces the cookie jar, used when restoring a saved session.
func (c *Client) SetJar(jar http.CookieJar) { c.http.HTTPClient.Jar = jar }

// SetDelayBeforeRequests makes every subsequent Get/Post sleep d before
// issuing its request.
func (c *Client) SetDelayBeforeRequests(d time.Duration) { c.delayBeforeRequests = d }

// Get issues a GET request and returns the response body, classifying any
// failure into the errs taxonomy (network error, HTTP error and its
// Forbidden/NotFound/ServerError variants).
func (c *Client) Get(ctx context.Context, url string) ([]byte, errors.E) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// Post issues a POST request with the given URL-encoded body.
func (c *Client) Post(ctx context.Context, url string, body []byte) ([]byte, errors.E) {
	return c.do(ctx, http.MethodPost, url, body)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, errors.E) {
	if c.delayBeforeRequests > 0 {
		select {
		case <-time.After(c.delayBeforeRequests):
		case <-ctx.Done():
			return nil, errors.WrapWith(errors.Wrap(ctx.Err(), "delay before request"), errs.Network)
		}
	}
	var bodyReader io.ReadSeeker
	if body != nil {
		bodyReader = &bytesReaderSeeker{b: body}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, errors.WrapWith(errors.Wrap(err, "building request"), errs.Network)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapWith(errors.Wrap(err, "http request failed"), errs.Network)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapWith(errors.Wrap(err, "reading response body"), errs.Network)
	}

	if classified := classifyStatus(resp.StatusCode, respBody); classified != nil {
		return respBody, classified
	}
	return respBody, nil
}

func classifyStatus(status int, body []byte) errors.E {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusForbidden:
		return errors.WrapWith(errors.Errorf("http %d", status), errs.HTTPForbidden)
	case status == http.StatusNotFound:
		return errors.WrapWith(errors.Errorf("http %d", status), errs.HTTPNotFound)
	case status >= 500:
		return errors.WrapWith(errors.Errorf("http %d", status), errs.HTTPServerError)
	default:
		return errors.WrapWith(errors.Errorf("http %d: %s", status, trimForMessage(body)), errs.HTTP)
	}
}

func trimForMessage(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}

// bytesReaderSeeker adapts a byte slice to io.ReadSeeker so retryablehttp
// can rewind the body on an internal retry (it has none here, since
// RetryMax is 0, but NewRequestWithContext requires the interface).
type bytesReaderSeeker struct {
	b   []byte
	pos int64
}

func (r *bytesReaderSeeker) Read(p []byte) (int, error) {
	if r.pos >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *bytesReaderSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.pos + offset
	case io.SeekEnd:
		newPos = int64(len(r.b)) + offset
	}
	r.pos = newPos
	return newPos, nil
}
