package story

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReturnsRealAssetID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, registerAssetsPath, r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var req registerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "example.com", req.Domain)

		json.NewEncoder(w).Encode(registerResponse{IPAssetID: "0xAsset123"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "", time.Second)
	reg := client.Register(context.Background(), "site-1", "example.com", "0xOwner")

	assert.Equal(t, "0xAsset123", reg.AssetID)
	assert.False(t, reg.Simulated)
}

func TestRegisterSimulatesWhenUnconfigured(t *testing.T) {
	client := NewClient("", "", "", time.Second)
	reg := client.Register(context.Background(), "site-7", "example.com", "0xOwner")

	assert.Equal(t, "local:site-7", reg.AssetID)
	assert.True(t, reg.Simulated)
}

func TestRegisterSimulatesOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "", time.Second)
	reg := client.Register(context.Background(), "site-9", "example.com", "0xOwner")

	assert.Equal(t, "local:site-9", reg.AssetID)
	assert.True(t, reg.Simulated)
}
