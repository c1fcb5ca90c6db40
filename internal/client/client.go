// Package client provides an HTTP client for the Dispatch content API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dispatch-cms/dispatch/pkg/entity"
)

// DefaultRateLimit is the default number of requests per second.
const DefaultRateLimit = 10

// Client talks to the /api/* endpoints of a Dispatch server.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit throttles outbound requests to rps per second. A value <= 0
// disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the server at baseURL with a 10-second timeout.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query filters a list request. Zero values are omitted from the URL.
type Query struct {
	Q      string
	Limit  int
	Offset int
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// ListResult is a list response normalized into ordered ids and records.
type ListResult struct {
	Count   int
	Next    *int
	IDs     []string
	Records []entity.Entity
}

// Login exchanges credentials for an auth token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/token/", "", body, nil, &out); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return out.Token, nil
}

// List fetches one page of entityType matching q.
func (c *Client) List(ctx context.Context, token, entityType string, q Query) (ListResult, error) {
	path := "/api/" + url.PathEscape(entityType) + "/"
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}

	var page struct {
		Count   int             `json:"count"`
		Next    *int            `json:"next"`
		Results []entity.Entity `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, nil, &page); err != nil {
		return ListResult{}, fmt.Errorf("list %s: %w", entityType, err)
	}

	ids := make([]string, len(page.Results))
	for i, e := range page.Results {
		ids[i] = e.ID
	}
	return ListResult{Count: page.Count, Next: page.Next, IDs: ids, Records: page.Results}, nil
}

// Get fetches a single record.
func (c *Client) Get(ctx context.Context, token, entityType, id string) (entity.Entity, error) {
	var out entity.Entity
	if err := c.do(ctx, http.MethodGet, entityPath(entityType, id), token, nil, nil, &out); err != nil {
		return entity.Entity{}, fmt.Errorf("get %s %s: %w", entityType, id, err)
	}
	return out, nil
}

// Create posts a new record. Each call carries a fresh Idempotency-Key so a
// transport-level retry of the same request is replayed rather than duplicated.
func (c *Client) Create(ctx context.Context, token, entityType string, fields map[string]any) (entity.Entity, error) {
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	var out entity.Entity
	path := "/api/" + url.PathEscape(entityType) + "/"
	if err := c.do(ctx, http.MethodPost, path, token, fields, headers, &out); err != nil {
		return entity.Entity{}, fmt.Errorf("create %s: %w", entityType, err)
	}
	return out, nil
}

// Update patches fields of an existing record and returns the stored result.
func (c *Client) Update(ctx context.Context, token, entityType, id string, fields map[string]any) (entity.Entity, error) {
	var out entity.Entity
	if err := c.do(ctx, http.MethodPatch, entityPath(entityType, id), token, fields, nil, &out); err != nil {
		return entity.Entity{}, fmt.Errorf("update %s %s: %w", entityType, id, err)
	}
	return out, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, token, entityType, id string) error {
	if err := c.do(ctx, http.MethodDelete, entityPath(entityType, id), token, nil, nil, nil); err != nil {
		return fmt.Errorf("delete %s %s: %w", entityType, id, err)
	}
	return nil
}

func entityPath(entityType, id string) string {
	return "/api/" + url.PathEscape(entityType) + "/" + url.PathEscape(id) + "/"
}

// do sends one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path, token string, body any, headers map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
