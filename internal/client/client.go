package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/kitstore/internal/cart"
	"github.com/noah-isme/kitstore/internal/checkout"
	"github.com/noah-isme/kitstore/internal/localstore"
	"github.com/noah-isme/kitstore/internal/order"
	"github.com/noah-isme/kitstore/internal/resilience"
)

var nopLogger = zerolog.Nop()

// IdempotencyHeader carries the per-submission key on order requests.
const IdempotencyHeader = "Idempotency-Key"

// APIError is a non-2xx answer from the store API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("store api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("store api: status %d", e.Status)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	HTTP        *http.Client
	Storage     localstore.Storage
	Logger      *zerolog.Logger
	MaxAttempts int
	Backoff     time.Duration
	NewKey      func() string
}

// Client talks to the store API on behalf of the storefront.
type Client struct {
	baseURL string
	http    *http.Client
	reads   resilience.HTTPClient
	storage localstore.Storage
	logger  *zerolog.Logger
	newKey  func() string
}

// New builds a Client. A nil HTTP client gets an otelhttp-instrumented
// transport and no timeout.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	logger := opts.Logger
	if logger == nil {
		logger = &nopLogger
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	newKey := opts.NewKey
	if newKey == nil {
		newKey = func() string { return uuid.NewString() }
	}
	return &Client{
		baseURL: base,
		http:    hc,
		reads: resilience.HTTPClient{
			Client:      hc,
			Breaker:     resilience.NewBreaker(resilience.BreakerConfig{Target: "store-api", Logger: logger}),
			Target:      "store-api",
			BaseBackoff: backoff,
			MaxAttempts: attempts,
			Jitter:      0.2,
		},
		storage: opts.Storage,
		logger:  logger,
		newKey:  newKey,
	}, nil
}

// Kits lists every kit.
func (c *Client) Kits(ctx context.Context) ([]cart.Product, error) {
	return c.listKits(ctx, "/api/kits")
}

// SearchKits lists kits matching query.
func (c *Client) SearchKits(ctx context.Context, query string) ([]cart.Product, error) {
	return c.listKits(ctx, "/api/kits/search/"+url.PathEscape(strings.TrimSpace(query)))
}

func (c *Client) listKits(ctx context.Context, path string) ([]cart.Product, error) {
	var body struct {
		Data []cart.Product `json:"data"`
	}
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		body.Data = []cart.Product{}
	}
	return body.Data, nil
}

// CreateOrder posts the order once. The body is decoded whatever the status
// code; only transport and decode failures are returned as errors.
func (c *Client) CreateOrder(ctx context.Context, req order.Request) (order.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return order.Response{}, fmt.Errorf("encode order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(payload))
	if err != nil {
		return order.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(IdempotencyHeader, c.newKey())
	c.authorize(ctx, httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Msg("order_request_failed")
		return order.Response{}, fmt.Errorf("post order: %w", err)
	}
	defer resp.Body.Close()

	var out order.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return order.Response{}, fmt.Errorf("decode order response (status %d): %w", resp.StatusCode, err)
	}
	return out, nil
}

var _ checkout.OrderCreator = (*Client)(nil)

// HealthStatus is the /api/health payload.
type HealthStatus struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Health reports API and database reachability.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	err := c.get(ctx, "/api/health", &out)
	return out, err
}

// DBInfo is the /api/db-info payload.
type DBInfo struct {
	Database  string `json:"database"`
	KitCount  int    `json:"kit_count"`
	Timestamp string `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
}

// DBInfo reports the catalogue size as seen by the API.
func (c *Client) DBInfo(ctx context.Context) (DBInfo, error) {
	var out DBInfo
	err := c.get(ctx, "/api/db-info", &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.reads.Do(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("api_request_failed")
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) {
	token, err := c.token(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", localstore.KeyToken).Msg("token_read_failed")
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.storage == nil {
		return "", nil
	}
	raw, err := c.storage.Get(ctx, localstore.KeyToken)
	if errors.Is(err, localstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// errorField accepts either a plain string or a {"code","message"} object.
type errorField struct {
	Code    string
	Message string
}

func (e *errorField) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		e.Message = text
		return nil
	}
	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Code, e.Message = obj.Code, obj.Message
	return nil
}

func (e errorField) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Error   errorField `json:"error"`
		Message string     `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.text()
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
