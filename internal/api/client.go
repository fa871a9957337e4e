// Package api talks to the ecommerce order API: it lists orders and retries
// fulfillment of orders stuck in the Fulfillment Error state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/kingrea/fulfillment-desk/internal/config"
)

const (
	ordersPath = "/api/v1/orders/"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes int64 = 1 << 20
	// maxListPages guards against pagination loops.
	maxListPages = 100
)

// Logger records request diagnostics. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Client issues order API requests on behalf of a logged-in operator.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	csrfCookie string
	csrfHeader string
	timeout    time.Duration
	logger     Logger
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. A cookie jar is added
// when the client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.http = &clone
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each request. Zero leaves the transport defaults alone.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithCSRF overrides the cookie the token is read from and the header it is
// sent in.
func WithCSRF(cookieName, headerName string) Option {
	return func(c *Client) {
		if name := strings.TrimSpace(cookieName); name != "" {
			c.csrfCookie = name
		}
		if name := strings.TrimSpace(headerName); name != "" {
			c.csrfHeader = name
		}
	}
}

// New prepares a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:    u,
		http:       &http.Client{},
		csrfCookie: config.DefaultCSRFCookie,
		csrfHeader: config.DefaultCSRFHeader,
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// NewFromConfig builds a client from the desk configuration and seeds the
// configured session cookies into its jar.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("api: config is required")
	}
	base := []Option{
		WithCSRF(cfg.Project.API.CSRFCookie, cfg.Project.API.CSRFHeader),
		WithTimeout(cfg.RequestTimeout()),
	}
	c, err := New(cfg.BaseURL(), append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	c.SetCookies(cfg.SessionCookies())
	return c, nil
}

// SetCookies stores cookies for the API host, as a browser session would.
func (c *Client) SetCookies(values map[string]string) {
	if len(values) == 0 {
		return
	}
	cookies := make([]*http.Cookie, 0, len(values))
	for name, value := range values {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.http.Jar.SetCookies(c.baseURL, cookies)
}

// CSRFToken returns the current value of the CSRF cookie for target, or an
// empty string when the cookie is not set.
func (c *Client) CSRFToken(target *url.URL) string {
	for _, ck := range c.http.Jar.Cookies(target) {
		if ck.Name == c.csrfCookie {
			return ck.Value
		}
	}
	return ""
}

// FulfillURL returns the endpoint that retries fulfillment of an order.
func (c *Client) FulfillURL(orderNumber string) string {
	return c.baseURL.String() + ordersPath + url.PathEscape(orderNumber) + "/fulfill/"
}

// Fulfill asks the API to retry fulfillment of the order. Every failure is a
// *RequestFailedError matching ErrFulfillmentRequestFailed.
func (c *Client) Fulfill(ctx context.Context, orderNumber string) (Outcome, error) {
	fail := func(status int, reason string, err error) (Outcome, error) {
		c.logger.Printf("fulfill %s failed: %s", orderNumber, reason)
		return Outcome{}, &RequestFailedError{OrderNumber: orderNumber, StatusCode: status, Reason: reason, Err: err}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.FulfillURL(orderNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return fail(0, err.Error(), err)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.CSRFToken(req.URL); token != "" {
		req.Header.Set(c.csrfHeader, token)
	}

	c.logger.Printf("PUT %s", endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, transportReason(err), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail(resp.StatusCode, transportReason(err), err)
	}
	c.logger.Printf("PUT %s -> %s", endpoint, resp.Status)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, reasonPhrase(resp), nil)
	}

	var payload fulfillResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return fail(resp.StatusCode, "invalid response", err)
	}
	if payload.Status == nil {
		return fail(resp.StatusCode, "invalid response", fmt.Errorf("response has no status"))
	}
	return Outcome{OrderNumber: orderNumber, Status: *payload.Status}, nil
}

// ListOrders returns the operator's orders, following pagination links.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	next := c.baseURL.String() + ordersPath
	var orders []Order
	for page := 0; next != ""; page++ {
		if page >= maxListPages {
			return nil, fmt.Errorf("api: list orders: more than %d pages", maxListPages)
		}
		batch, following, err := c.listPage(ctx, next)
		if err != nil {
			return nil, err
		}
		orders = append(orders, batch...)
		next = following
	}
	return orders, nil
}

func (c *Client) listPage(ctx context.Context, target string) ([]Order, string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("api: list orders: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.logger.Printf("GET %s", target)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("api: list orders: %s", transportReason(err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("api: list orders: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("api: list orders: %d %s", resp.StatusCode, reasonPhrase(resp))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var orders []Order
		if err := json.Unmarshal(trimmed, &orders); err != nil {
			return nil, "", fmt.Errorf("api: list orders: decode: %w", err)
		}
		return orders, "", nil
	}
	var page orderPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, "", fmt.Errorf("api: list orders: decode: %w", err)
	}
	next := ""
	if page.Next != nil {
		resolved, err := req.URL.Parse(*page.Next)
		if err != nil {
			return nil, "", fmt.Errorf("api: list orders: next link: %w", err)
		}
		next = resolved.String()
	}
	return page.Results, next, nil
}
