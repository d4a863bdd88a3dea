package verification

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// fakeResolver serves canned TXT answers keyed by lookup name.
type fakeResolver struct {
	records map[string][]string
	err     error
}

func (f *fakeResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, ok := f.records[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

// fakeFetcher serves canned HTTP responses keyed by URL.
type fakeFetcher struct {
	responses map[string]*FetchResult
	err       error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[url]; ok {
		return resp, nil
	}
	return &FetchResult{StatusCode: http.StatusNotFound}, nil
}

var errNetworkDown = errors.New("dial tcp: connection refused")
