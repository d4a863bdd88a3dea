package pinning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinReturnsIPFSURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pinJSONPath, r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(pinResponse{IpfsHash: "QmHash"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", time.Second)
	pinned := client.Pin(context.Background(), map[string]any{"receipt": "r"})

	assert.Equal(t, "ipfs://QmHash", pinned.URI)
	assert.False(t, pinned.Mocked)
}

func TestPinMocksWhenUnconfigured(t *testing.T) {
	client := NewClient("", "", time.Second)
	pinned := client.Pin(context.Background(), map[string]any{"receipt": "r"})

	assert.True(t, pinned.Mocked)
	assert.True(t, strings.HasPrefix(pinned.URI, "memory://"))
}

func TestPinMocksOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", time.Second)
	pinned := client.Pin(context.Background(), map[string]any{"receipt": "r"})

	assert.True(t, pinned.Mocked)
}
