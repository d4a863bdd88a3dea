// Package pinning wraps an IPFS pinning service used to store receipt proofs.
// Pinning is best-effort: unconfigured or failing services yield an in-memory
// mock URI flagged as such, and callers treat both outcomes as acceptable
// proof locations.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout    = 30 * time.Second
	responseReadLimit = 1 << 20
	pinJSONPath       = "/pinning/pinJSONToIPFS"
)

var errNotConfigured = errors.New("pinning client is not configured")

// Pinned is the two-outcome result of a pin attempt. Mocked is true when the
// URI points at nothing durable.
type Pinned struct {
	URI    string `json:"uri"`
	Mocked bool   `json:"mocked"`
}

// Client calls a Pinata-compatible pinning API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a pinning client. An empty base URL or token yields a
// client that always mocks.
func NewClient(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Pin stores the payload and returns its content URI. It never returns an
// error: failures fall back to a unique mock URI.
func (c *Client) Pin(ctx context.Context, payload any) Pinned {
	uri, err := c.pin(ctx, payload)
	if err != nil {
		return Pinned{
			URI:    "memory://" + uuid.NewString(),
			Mocked: true,
		}
	}
	return Pinned{URI: uri}
}

func (c *Client) pin(ctx context.Context, payload any) (string, error) {
	if c.baseURL == "" || c.token == "" {
		return "", errNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding pin payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pinJSONPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building pin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling pinning api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return "", fmt.Errorf("reading pin response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("pinning api returned status %d", resp.StatusCode)
	}

	var decoded pinResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decoding pin response: %w", err)
	}
	if decoded.IpfsHash == "" {
		return "", errors.New("pin response missing IpfsHash")
	}
	return "ipfs://" + decoded.IpfsHash, nil
}
