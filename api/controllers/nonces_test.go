package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
)

type stubNoncesService struct {
	nonce *models.Nonce
	err   error

	consumed string
}

func (s *stubNoncesService) Issue(_ context.Context, purpose string) (*models.Nonce, error) {
	return s.nonce, s.err
}

func (s *stubNoncesService) Consume(_ context.Context, value string) error {
	s.consumed = value
	return s.err
}

func TestIssueNonceSuccess(t *testing.T) {
	expires := time.Now().UTC().Add(10 * time.Minute)
	svc := &stubNoncesService{
		nonce: &models.Nonce{Value: uuid.NewString(), Purpose: "rights-file", ExpiresAt: &expires},
	}
	handler := IssueNonce(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/nonces", bytes.NewReader([]byte(`{"purpose":"rights-file"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data struct {
			Value     string `json:"value"`
			Purpose   string `json:"purpose"`
			ExpiresAt string `json:"expires_at"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Value != svc.nonce.Value {
		t.Fatalf("unexpected nonce value %q", envelope.Data.Value)
	}
	if envelope.Data.ExpiresAt == "" {
		t.Fatalf("expected expiry in response")
	}
}

func TestConsumeNonceSuccess(t *testing.T) {
	svc := &stubNoncesService{}
	handler := ConsumeNonce(svc, nil)

	value := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/nonces/consume", bytes.NewReader([]byte(`{"value":"`+value+`"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.consumed != value {
		t.Fatalf("expected service to consume %q, got %q", value, svc.consumed)
	}
}

func TestConsumeNoncePropagatesReuseConflict(t *testing.T) {
	svc := &stubNoncesService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "nonce already used")}
	handler := ConsumeNonce(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/nonces/consume", bytes.NewReader([]byte(`{"value":"abc"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestConsumeNonceRequiresValue(t *testing.T) {
	handler := ConsumeNonce(&stubNoncesService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/nonces/consume", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
