package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scrapesafe/scrapesafe-backend/api/responses"
	"github.com/scrapesafe/scrapesafe-backend/api/validators"
	"github.com/scrapesafe/scrapesafe-backend/internal/licensing"
	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

// SetTermsRequest installs or replaces a site's enabled license terms.
type SetTermsRequest struct {
	AllowedActions []string `json:"allowed_actions" validate:"required,min=1"`
	PriceModel     string   `json:"price_model" validate:"required"`
	PricePerUnit   string   `json:"price_per_unit" validate:"required"`
	PriceToken     string   `json:"price_token" validate:"required"`
	TermsURI       *string  `json:"terms_uri,omitempty"`
}

// TermsDTO is the public shape of license terms.
type TermsDTO struct {
	ID             string   `json:"id"`
	SiteID         string   `json:"site_id"`
	AllowedActions []string `json:"allowed_actions"`
	PriceModel     string   `json:"price_model"`
	PricePerUnit   string   `json:"price_per_unit"`
	PriceToken     string   `json:"price_token"`
	TermsURI       *string  `json:"terms_uri,omitempty"`
	Enabled        bool     `json:"enabled"`
	UpdatedAt      string   `json:"updated_at"`
}

func termsDTO(terms *models.LicenseTerms) TermsDTO {
	return TermsDTO{
		ID:             terms.ID.String(),
		SiteID:         terms.SiteID.String(),
		AllowedActions: terms.AllowedActions,
		PriceModel:     terms.PriceModel.String(),
		PricePerUnit:   terms.PricePerUnit.String(),
		PriceToken:     terms.PriceToken,
		TermsURI:       terms.TermsURI,
		Enabled:        terms.Enabled,
		UpdatedAt:      terms.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// SetSiteTerms installs the enabled terms for a verified site.
func SetSiteTerms(svc licensing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := siteIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body SetTermsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := decimal.NewFromString(body.PricePerUnit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "price_per_unit must be a decimal number"))
			return
		}

		terms, err := svc.SetTerms(r.Context(), id, licensing.TermsInput{
			AllowedActions: body.AllowedActions,
			PriceModel:     body.PriceModel,
			PricePerUnit:   price,
			PriceToken:     body.PriceToken,
			TermsURI:       body.TermsURI,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, termsDTO(terms))
	}
}

// GetSiteTerms returns a site's enabled terms.
func GetSiteTerms(svc licensing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := siteIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		terms, err := svc.GetTerms(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, termsDTO(terms))
	}
}
