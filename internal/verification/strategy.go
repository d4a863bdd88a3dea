// Package verification implements the three domain-ownership proofs: a DNS
// TXT record, an HTML meta tag, and a signed rights file. All three evaluate
// the same challenge token and share one result shape so the orchestrator is
// method-agnostic. Strategies never fail outward: every network or parse
// error becomes a negative result with a human-readable reason.
package verification

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	defaultFetchTimeout = 10 * time.Second
	fetchBodyLimit      = 2 << 20
)

// Result is the common outcome shape of a verification strategy. Found means
// candidate evidence was located; for DNS and meta checks found doubles as
// validity. The rights-file check keeps the two distinct because a file can
// exist yet fail its field, domain, owner, or signature checks.
type Result struct {
	Found   bool   `json:"found"`
	Valid   bool   `json:"valid"`
	Details string `json:"details"`
	Raw     any    `json:"raw,omitempty"`
}

// TXTResolver is the DNS capability consumed by the DNS strategy.
// *net.Resolver satisfies it; each returned string is one TXT record with its
// character-strings already concatenated.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Fetcher is the HTTP capability consumed by the meta and rights-file
// strategies.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// FetchResult carries the status and body of a completed fetch.
type FetchResult struct {
	StatusCode int
	Body       []byte
}

type httpFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a Fetcher backed by net/http with the given timeout.
func NewHTTPFetcher(timeout time.Duration) Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &httpFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "scrapesafe-verifier/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return &FetchResult{StatusCode: resp.StatusCode, Body: body}, nil
}

// Checker evaluates verification strategies against live domain state.
type Checker struct {
	resolver TXTResolver
	fetcher  Fetcher
}

// NewChecker builds a Checker. A nil resolver falls back to the default
// system resolver; a nil fetcher falls back to an HTTP fetcher with the
// default timeout.
func NewChecker(resolver TXTResolver, fetcher Fetcher) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher(defaultFetchTimeout)
	}
	return &Checker{resolver: resolver, fetcher: fetcher}
}
