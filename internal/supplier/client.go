package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TokenSource yields the current API token for a supplier account. Token
// issuance itself lives outside this service; the repository package caches
// what the issuer handed out.
type TokenSource interface {
	Token(ctx context.Context, supplierCode string) (string, error)
}

// StaticToken is a TokenSource for a fixed key (config-supplied).
type StaticToken string

func (t StaticToken) Token(ctx context.Context, supplierCode string) (string, error) {
	return string(t), nil
}

// Client talks to one supplier account. All calls go through the shared
// limiter, which is what spaces successive requests out (the courteous
// fixed delay, not an adaptive limiter).
type Client struct {
	baseURL      string
	supplierCode string
	account      string
	httpClient   *http.Client
	tokens       TokenSource
	limiter      *rate.Limiter
	log          zerolog.Logger
}

func NewClient(baseURL, supplierCode, account string, tokens TokenSource, callDelay time.Duration, logger *zerolog.Logger) *Client {
	if callDelay <= 0 {
		callDelay = 500 * time.Millisecond
	}
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "supplier_client").Str("supplier", supplierCode).Logger()
	}
	return &Client{
		baseURL:      baseURL,
		supplierCode: supplierCode,
		account:      account,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		tokens:       tokens,
		limiter:      rate.NewLimiter(rate.Every(callDelay), 1),
		log:          log,
	}
}

func (c *Client) SupplierCode() string { return c.supplierCode }
func (c *Client) Account() string      { return c.account }

// ListItemKeys returns one page of item keys updated in [from, to).
func (c *Client) ListItemKeys(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*KeyPage, error) {
	q := url.Values{}
	q.Set("updated_from", from.UTC().Format(time.RFC3339))
	q.Set("updated_to", to.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var page KeyPage
	if err := c.getJSON(ctx, "/api/v1/items/keys?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("list item keys: %w", err)
	}
	return &page, nil
}

// FetchItemDetails resolves a key batch via the bulk lookup. The upstream
// API has no partial-batch semantics: a failure fails the whole batch.
func (c *Client) FetchItemDetails(ctx context.Context, keys []string) ([]ItemDetail, error) {
	body := map[string]interface{}{"item_codes": keys}

	var resp struct {
		Items []ItemDetail `json:"items"`
	}
	if err := c.postJSON(ctx, "/api/v1/items/bulk", body, &resp); err != nil {
		return nil, fmt.Errorf("fetch item details: %w", err)
	}
	return resp.Items, nil
}

// ListOrders returns one cursor page of orders updated in [from, to).
func (c *Client) ListOrders(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*OrderPage, error) {
	q := windowQuery(from, to, cursor, pageSize)

	var page OrderPage
	if err := c.getJSON(ctx, "/api/v1/orders?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return &page, nil
}

// ListQnA returns one cursor page of Q&A records updated in [from, to).
func (c *Client) ListQnA(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*QnAPage, error) {
	q := windowQuery(from, to, cursor, pageSize)

	var page QnAPage
	if err := c.getJSON(ctx, "/api/v1/qna?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("list qna: %w", err)
	}
	return &page, nil
}

// ListCategories returns one cursor page of the category tree. Categories
// carry no update window upstream; a sync always walks the full tree.
func (c *Client) ListCategories(ctx context.Context, cursor string, pageSize int) (*CategoryPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var page CategoryPage
	if err := c.getJSON(ctx, "/api/v1/categories?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return &page, nil
}

// CreateOrder places a fulfillment order with the supplier.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	var resp CreateOrderResponse
	if err := c.postJSON(ctx, "/api/v1/orders", req, &resp); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &resp, nil
}

// endpointPaths maps fetch-log endpoint names to supplier paths for replay.
var endpointPaths = map[string]string{
	"order_create":   "/api/v1/orders",
	"invoice_upload": "/api/v1/orders/invoice",
	"order_cancel":   "/api/v1/orders/cancel",
}

// Replay re-issues a previously logged call with its original payload and
// returns the raw result for a fresh log row.
func (c *Client) Replay(ctx context.Context, endpoint, requestBody string) (*CallResult, error) {
	path, ok := endpointPaths[endpoint]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint for replay: %s", endpoint)
	}

	status, body, err := c.do(ctx, http.MethodPost, path, []byte(requestBody))
	if err != nil {
		return nil, err
	}
	return &CallResult{StatusCode: status, Body: string(body)}, nil
}

func windowQuery(from, to time.Time, cursor string, pageSize int) url.Values {
	q := url.Values{}
	q.Set("updated_from", from.UTC().Format(time.RFC3339))
	q.Set("updated_to", to.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return q
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	_, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	_, body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do performs one paced, authenticated round trip. Non-2xx becomes a
// StatusError; 401 becomes ErrAuthExpired.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limiter: %w", err)
	}

	token, err := c.tokens.Token(ctx, c.supplierCode)
	if err != nil {
		return 0, nil, fmt.Errorf("resolve token: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, body, ErrAuthExpired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.StatusCode, body, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return resp.StatusCode, body, nil
}
