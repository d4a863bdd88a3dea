// Package story wraps the Story Protocol registration API used to mint an IP
// asset for a verified site. Registration is best-effort: when the service is
// unreachable or unconfigured, callers receive a deterministic local asset id
// flagged as simulated rather than an error.
package story

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
)

const (
	defaultTimeout       = 30 * time.Second
	responseReadLimit    = 1 << 20
	registerAssetsPath   = "/api/v3/assets/register"
	localAssetIDTemplate = "local:%s"
)

var errNotConfigured = errors.New("story client is not configured")

// Registration is the two-outcome result of an asset registration attempt.
// Simulated is true when the external call was skipped or failed and the
// asset id is the deterministic local fallback.
type Registration struct {
	AssetID   string `json:"asset_id"`
	Simulated bool   `json:"simulated"`
}

// Client calls the Story Protocol registration API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	spgNFT     string
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

// NewClient builds a Story client. An empty base URL or API key yields a
// client that always simulates.
func NewClient(baseURL, apiKey, spgNFT string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		spgNFT:     strings.TrimSpace(spgNFT),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

type registerRequest struct {
	ExternalID   string `json:"external_id"`
	Domain       string `json:"domain"`
	OwnerAddress string `json:"owner_address"`
	SPGNFT       string `json:"spg_nft_contract,omitempty"`
}

type registerResponse struct {
	IPAssetID string `json:"ip_asset_id"`
}

// Register mints an IP asset for the domain. It never returns an error: any
// failure falls back to the local asset id with Simulated=true so site
// verification is not blocked by the registration collaborator.
func (c *Client) Register(ctx context.Context, localID, domain, ownerAddress string) Registration {
	assetID, err := c.register(ctx, localID, domain, ownerAddress)
	if err != nil {
		return Registration{
			AssetID:   fmt.Sprintf(localAssetIDTemplate, localID),
			Simulated: true,
		}
	}
	return Registration{AssetID: assetID}
}

func (c *Client) register(ctx context.Context, localID, domain, ownerAddress string) (string, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return "", errNotConfigured
	}

	body, err := json.Marshal(registerRequest{
		ExternalID:   localID,
		Domain:       domain,
		OwnerAddress: ownerAddress,
		SPGNFT:       c.spgNFT,
	})
	if err != nil {
		return "", fmt.Errorf("encoding register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerAssetsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling story api: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return "", fmt.Errorf("reading story response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("story api returned status %d", resp.StatusCode)
	}

	var decoded registerResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decoding story response: %w", err)
	}
	if decoded.IPAssetID == "" {
		return "", errors.New("story response missing ip_asset_id")
	}
	return decoded.IPAssetID, nil
}
