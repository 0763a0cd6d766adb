// Package httpapi is the HTTP implementation of remote.Gateway for the
// finance REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"fincache/internal/log"
	"fincache/internal/remote"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

// Config holds the client settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *log.Logger
	// HTTPClient overrides the pooled client, mostly for tests.
	HTTPClient *http.Client
}

// Client talks to the finance API over HTTP.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *log.Logger
}

var _ remote.Gateway = (*Client)(nil)

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", base.Scheme)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentRemote)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = newHTTPClientWithPooling(cfg.Timeout, logger)
	}

	return &Client{base: base, token: cfg.Token, http: hc, logger: logger}, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling,
// bounded timeouts and call logging.
func newHTTPClientWithPooling(timeout time.Duration, logger *log.Logger) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: log.NewTransport(transport, logger),
		Timeout:   timeout,
	}
}

func (c *Client) List(ctx context.Context, res remote.Resource, params remote.Params) (*remote.Envelope, error) {
	return c.Query(ctx, res, remote.ActionList, params)
}

func (c *Client) Get(ctx context.Context, res remote.Resource, id int64) (*remote.Envelope, error) {
	return c.do(ctx, http.MethodGet, c.endpoint(string(res), strconv.FormatInt(id, 10)), nil)
}

func (c *Client) Add(ctx context.Context, res remote.Resource, body any) (*remote.Envelope, error) {
	return c.do(ctx, http.MethodPost, c.endpoint(string(res)), body)
}

func (c *Client) Update(ctx context.Context, res remote.Resource, body any) (*remote.Envelope, error) {
	return c.do(ctx, http.MethodPut, c.endpoint(string(res)), body)
}

func (c *Client) Delete(ctx context.Context, res remote.Resource, ids ...int64) (*remote.Envelope, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: delete %s without ids", remote.ErrTransport, res)
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return c.do(ctx, http.MethodDelete, c.endpoint(string(res), strings.Join(parts, ",")), nil)
}

func (c *Client) Query(ctx context.Context, res remote.Resource, action string, params remote.Params) (*remote.Envelope, error) {
	u := c.endpoint(string(res), action)
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil)
}

func (c *Client) Invoke(ctx context.Context, res remote.Resource, action string, body any) (*remote.Envelope, error) {
	return c.do(ctx, http.MethodPost, c.endpoint(string(res), action), body)
}

func (c *Client) endpoint(segments ...string) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(segments, "/")
	return &u
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body any) (*remote.Envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request body: %w", remote.ErrTransport, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", remote.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", ulid.Make().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", remote.ErrTransport, method, u.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", remote.ErrTransport, err)
	}

	var env remote.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Non-JSON bodies on error statuses still carry the status code.
		if resp.StatusCode >= http.StatusBadRequest {
			return remote.Fail(resp.StatusCode, http.StatusText(resp.StatusCode)), nil
		}
		return nil, fmt.Errorf("%w: malformed response body: %w", remote.ErrTransport, err)
	}
	if env.Code == 0 && resp.StatusCode != http.StatusOK {
		env.Code = resp.StatusCode
		if env.Msg == "" {
			env.Msg = http.StatusText(resp.StatusCode)
		}
	}
	return &env, nil
}
