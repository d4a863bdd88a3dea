package controllers

import (
	"net/http"
	"time"

	"github.com/scrapesafe/scrapesafe-backend/api/responses"
	"github.com/scrapesafe/scrapesafe-backend/api/validators"
	"github.com/scrapesafe/scrapesafe-backend/internal/nonces"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

// IssueNonceRequest names what the nonce will be used for.
type IssueNonceRequest struct {
	Purpose string `json:"purpose" validate:"required"`
}

// IssueNonce hands out a fresh single-use nonce.
func IssueNonce(svc nonces.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body IssueNonceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nonce, err := svc.Issue(r.Context(), body.Purpose)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{
			"value":   nonce.Value,
			"purpose": nonce.Purpose,
		}
		if nonce.ExpiresAt != nil {
			payload["expires_at"] = nonce.ExpiresAt.UTC().Format(time.RFC3339)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payload)
	}
}

// ConsumeNonceRequest presents a nonce for one-time redemption.
type ConsumeNonceRequest struct {
	Value string `json:"value" validate:"required"`
}

// ConsumeNonce burns a nonce. A second consume of the same value conflicts.
func ConsumeNonce(svc nonces.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ConsumeNonceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Consume(r.Context(), body.Value); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "consumed"})
	}
}
