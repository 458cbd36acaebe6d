// Package client talks to the marketplace HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/erazemk/sejem/internal/model"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 << 20

// Config holds client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com".
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// RateLimit caps outgoing requests per second. Zero disables it.
	RateLimit float64
	// Burst is the limiter burst size; defaults to 1.
	Burst int
}

// Client is a marketplace API client. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.RWMutex
	token string
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{baseURL: base, httpClient: httpClient}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// SetToken sets the bearer token sent with every request. An empty token
// makes requests anonymous.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ImageURL resolves an image reference returned by the API. Absolute
// references are returned unchanged.
func (c *Client) ImageURL(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return ref
	}
	return c.baseURL.ResolveReference(u).String()
}

// do executes a request and returns the response body. Non-2xx responses
// are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	reqURL := c.baseURL.String() + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	slog.Debug("api request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: extractMessage(data)}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if payload == nil {
		return c.do(ctx, method, path, nil, "")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(data), "application/json")
}

// Credentials are the login form fields.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration are the sign-up form fields.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// ListingInput are the post/edit form fields.
type ListingInput struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       model.Amount `json:"price"`
	Location    string       `json:"location"`
}

// ListParams filters ListItems.
type ListParams struct {
	Query  string
	Status string
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	data, err := c.sendJSON(ctx, http.MethodPost, "/api/auth/login", Credentials{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	token := firstString(data, "token", "access", "access_token")
	if token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return token, nil
}

// Logout tells the API to invalidate the current token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.sendJSON(ctx, http.MethodPost, "/api/auth/logout", nil)
	return err
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, reg Registration) (*model.UserAccount, error) {
	data, err := c.sendJSON(ctx, http.MethodPost, "/api/auth/register", reg)
	if err != nil {
		return nil, err
	}
	return decodeObject[model.UserAccount](data, "user", "account")
}

// GetProfile returns the authenticated account.
func (c *Client) GetProfile(ctx context.Context) (*model.UserAccount, error) {
	data, err := c.getJSON(ctx, "/api/profile")
	if err != nil {
		return nil, err
	}
	return decodeObject[model.UserAccount](data, "user", "account")
}

// GetUsers returns all known accounts.
func (c *Client) GetUsers(ctx context.Context) ([]model.UserAccount, error) {
	data, err := c.getJSON(ctx, "/api/users")
	if err != nil {
		return nil, err
	}
	return decodeList[model.UserAccount](data), nil
}

// ListItems returns listings matching p.
func (c *Client) ListItems(ctx context.Context, p ListParams) ([]model.Listing, error) {
	path := "/api/items"
	q := url.Values{}
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	data, err := c.getJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Listing](data), nil
}

// GetItemDetail returns one listing.
func (c *Client) GetItemDetail(ctx context.Context, id string) (*model.Listing, error) {
	data, err := c.getJSON(ctx, "/api/items/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	return decodeObject[model.Listing](data, "item", "product", "listing")
}

// CreateItem posts a new listing.
func (c *Client) CreateItem(ctx context.Context, in ListingInput) (*model.Listing, error) {
	data, err := c.sendJSON(ctx, http.MethodPost, "/api/items", in)
	if err != nil {
		return nil, err
	}
	return decodeObject[model.Listing](data, "item", "product", "listing")
}

// UpdateItem edits a listing owned by the caller.
func (c *Client) UpdateItem(ctx context.Context, id string, in ListingInput) (*model.Listing, error) {
	data, err := c.sendJSON(ctx, http.MethodPut, "/api/items/"+url.PathEscape(id), in)
	if err != nil {
		return nil, err
	}
	return decodeObject[model.Listing](data, "item", "product", "listing")
}

// BuyItem requests to buy a listing. The returned listing is pending and
// carries the caller as buyer. It is nil when the API answers without a
// body.
func (c *Client) BuyItem(ctx context.Context, id string) (*model.Listing, error) {
	data, err := c.sendJSON(ctx, http.MethodPost, "/api/items/"+url.PathEscape(id)+"/buy", nil)
	if err != nil {
		return nil, err
	}
	return decodeOptionalListing(data)
}

// CompleteSale marks a pending listing as sold. Seller only. The result is
// nil when the API answers without a body.
func (c *Client) CompleteSale(ctx context.Context, id string) (*model.Listing, error) {
	data, err := c.sendJSON(ctx, http.MethodPost, "/api/items/"+url.PathEscape(id)+"/complete", nil)
	if err != nil {
		return nil, err
	}
	return decodeOptionalListing(data)
}

// decodeOptionalListing decodes a state-change acknowledgement, which may
// be empty (204 No Content).
func decodeOptionalListing(data []byte) (*model.Listing, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return decodeObject[model.Listing](data, "item", "product", "listing")
}

// UploadImage attaches an image to a listing.
func (c *Client) UploadImage(ctx context.Context, id string, image []byte, mime string) (*model.Listing, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="image"`)
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("writing image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	data, err := c.do(ctx, http.MethodPut, "/api/items/"+url.PathEscape(id)+"/image", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return decodeObject[model.Listing](data, "item", "product", "listing")
}
