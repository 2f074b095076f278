// Package remote talks to the cart API on behalf of signed-in sessions.
package remote

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

	"go.uber.org/zap"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/cart"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
)

// TokenSource supplies the bearer credential for each request. Token
// refresh is its concern, not the client's.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("no access token configured")
	}
	return string(t), nil
}

type productPayload struct {
	ID    cart.ID      `json:"id"`
	Name  string       `json:"name"`
	Price money.Amount `json:"price"`
	Image string       `json:"image"`
}

type itemPayload struct {
	ID       cart.ID        `json:"id"`
	Product  productPayload `json:"product"`
	Quantity int            `json:"quantity"`
	Options  cart.Options   `json:"custom_specifications"`
}

type cartPayload struct {
	Items []itemPayload `json:"items"`
}

type errorPayload struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Client implements cart.Store against the /api/shop cart endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for baseURL, e.g. "http://localhost:8080/api/shop".
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid cart api url %q", baseURL)
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ cart.Store = (*Client)(nil)

func (c *Client) Read(ctx context.Context) (cart.Cart, error) {
	var payload cartPayload
	if err := c.do(ctx, "read", http.MethodGet, "/cart/", nil, &payload); err != nil {
		return nil, err
	}
	lines := make(cart.Cart, 0, len(payload.Items))
	for _, item := range payload.Items {
		lines = append(lines, cart.Line{
			ID: item.ID,
			Product: cart.Product{
				ID:    item.Product.ID,
				Name:  item.Product.Name,
				Price: item.Product.Price,
				Image: item.Product.Image,
			},
			Quantity: item.Quantity,
			Options:  item.Options,
		})
	}
	return lines, nil
}

// AddLine ignores the product snapshot; the server resolves productID.
func (c *Client) AddLine(ctx context.Context, productID cart.ID, quantity int, options cart.Options, _ *cart.Product) error {
	if options == nil {
		options = cart.Options{}
	}
	body := map[string]any{
		"product_id":            productID,
		"quantity":              quantity,
		"custom_specifications": options,
	}
	return c.do(ctx, "add", http.MethodPost, "/cart/add_item/", body, nil)
}

func (c *Client) UpdateLine(ctx context.Context, lineID cart.ID, quantity int) error {
	body := map[string]any{"quantity": quantity}
	return c.do(ctx, "update", http.MethodPatch, itemPath(lineID), body, nil)
}

// RemoveLine treats 404 as success so removal stays idempotent.
func (c *Client) RemoveLine(ctx context.Context, lineID cart.ID) error {
	err := c.do(ctx, "remove", http.MethodDelete, itemPath(lineID), nil, nil)
	var remoteErr *cart.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, "clear", http.MethodDelete, "/cart/clear/", nil, nil)
}

// Product looks up a catalog entry. The endpoint is public, so no token is
// sent. Guest sessions use it to build the snapshot stored with a line.
func (c *Client) Product(ctx context.Context, productID cart.ID) (cart.Product, error) {
	var payload productPayload
	path := "/products/" + url.PathEscape(string(productID)) + "/"
	if err := c.send(ctx, "product", http.MethodGet, path, nil, &payload, false); err != nil {
		return cart.Product{}, err
	}
	return cart.Product{
		ID:    payload.ID,
		Name:  payload.Name,
		Price: payload.Price,
		Image: payload.Image,
	}, nil
}

func itemPath(lineID cart.ID) string {
	return "/cart/items/" + url.PathEscape(string(lineID)) + "/"
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	return c.send(ctx, op, method, path, body, out, true)
}

func (c *Client) send(ctx context.Context, op, method, path string, body any, out any, authorize bool) error {
	var token string
	if authorize {
		var err error
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return &cart.RemoteError{Op: op, Err: fmt.Errorf("access token: %w", err)}
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &cart.RemoteError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &cart.RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorize {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &cart.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.logger.Debug("cart api call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &cart.RemoteError{Op: op, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &cart.RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload errorPayload
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(data))
}
