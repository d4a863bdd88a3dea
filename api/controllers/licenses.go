package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scrapesafe/scrapesafe-backend/api/responses"
	"github.com/scrapesafe/scrapesafe-backend/api/validators"
	"github.com/scrapesafe/scrapesafe-backend/internal/licensing"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

// PurchaseRequest identifies the asset and buyer of a license purchase.
type PurchaseRequest struct {
	AssetID      string `json:"asset_id" validate:"required"`
	BuyerAddress string `json:"buyer_address" validate:"required"`
}

// ValidateProofRequest carries a receipt + signature pair for verification.
type ValidateProofRequest struct {
	Receipt   map[string]any `json:"receipt" validate:"required"`
	Signature string         `json:"signature" validate:"required"`
}

// PurchaseLicense issues a signed license receipt to the buyer.
func PurchaseLicense(svc licensing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body PurchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Purchase(r.Context(), licensing.PurchaseInput{
			AssetID:      body.AssetID,
			BuyerAddress: body.BuyerAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// RevokeLicense transitions an active license to revoked.
func RevokeLicense(svc licensing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "licenseId")
		id, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "license id must be a UUID"))
			return
		}

		if err := svc.Revoke(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "revoked"})
	}
}

// CheckLicense answers whether the buyer holds an active license for the
// asset, served from the short-TTL cache when possible.
func CheckLicense(svc licensing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := r.URL.Query().Get("asset_id")
		buyer := r.URL.Query().Get("buyer")
		if assetID == "" || buyer == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "asset_id and buyer query parameters are required"))
			return
		}

		result, err := svc.CheckLicense(r.Context(), assetID, buyer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ValidateProof verifies a receipt signature against the server identity.
func ValidateProof(svc licensing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ValidateProofRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.ValidateProof(body.Receipt, body.Signature))
	}
}
