package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the vending machine API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:8080"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error envelope returned by the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do performs the request and decodes the envelope's data into v. It returns
// the envelope message.
func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(env.Message)
		if decodeErr != nil {
			msg = strings.TrimSpace(string(raw))
		}
		return "", APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	if v == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return env.Message, nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return "", fmt.Errorf("decode response data: %w", err)
	}
	return env.Message, nil
}

// User reflects API user payloads.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Deposit  int    `json:"deposit"`
	Role     string `json:"role"`
}

// Product reflects API product payloads.
type Product struct {
	ID              string `json:"id"`
	Name            string `json:"productName"`
	Cost            int    `json:"cost"`
	AmountAvailable int    `json:"amountAvailable"`
	SellerID        string `json:"sellerId"`
}

// Receipt is returned by a successful purchase.
type Receipt struct {
	SubTotal    int    `json:"sub_total"`
	Product     string `json:"product"`
	TotalChange int    `json:"total_change"`
	Change      []int  `json:"Change"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	var resp struct {
		Token string `json:"token"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Logout terminates the active session for the token's account.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodGet, "/auth/logout/all", nil, token, nil)
	return err
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, username, password, role string) (User, error) {
	body := map[string]string{
		"username": username,
		"password": password,
		"role":     role,
	}
	var user User
	if _, err := c.do(ctx, http.MethodPost, "/users", body, "", &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Me fetches the account behind the token.
func (c *Client) Me(ctx context.Context, token, userID string) (User, error) {
	var user User
	if _, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, token, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Deposit inserts a single coin and returns the new balance.
func (c *Client) Deposit(ctx context.Context, token string, amount int) (int, error) {
	var resp struct {
		Deposit int `json:"deposit"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/users/deposit", map[string]int{"amount": amount}, token, &resp); err != nil {
		return 0, err
	}
	return resp.Deposit, nil
}

// Reset zeroes the buyer's balance.
func (c *Client) Reset(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/users/reset", nil, token, nil)
	return err
}

// ListProducts returns the catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if _, err := c.do(ctx, http.MethodGet, "/products", nil, "", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct lists a new product for the seller behind the token.
func (c *Client) CreateProduct(ctx context.Context, token, name string, cost, amount int) (Product, error) {
	body := map[string]any{
		"name":            name,
		"cost":            cost,
		"amountAvailable": amount,
	}
	var product Product
	if _, err := c.do(ctx, http.MethodPost, "/products", body, token, &product); err != nil {
		return Product{}, err
	}
	return product, nil
}

// DeleteProduct removes a product owned by the token's seller.
func (c *Client) DeleteProduct(ctx context.Context, token, productID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(productID), nil, token, nil)
	return err
}

// Buy purchases quantity units of a product.
func (c *Client) Buy(ctx context.Context, token, productID string, quantity int) (Receipt, error) {
	body := map[string]any{
		"productId":       productID,
		"amountOfProduct": quantity,
	}
	var receipt Receipt
	if _, err := c.do(ctx, http.MethodPost, "/purchase", body, token, &receipt); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}
