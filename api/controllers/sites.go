package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scrapesafe/scrapesafe-backend/api/responses"
	"github.com/scrapesafe/scrapesafe-backend/api/validators"
	"github.com/scrapesafe/scrapesafe-backend/internal/sites"
	"github.com/scrapesafe/scrapesafe-backend/internal/verification"
	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

// RegisterSiteRequest is the registration payload.
type RegisterSiteRequest struct {
	Domain       string `json:"domain" validate:"required"`
	OwnerAddress string `json:"owner_address" validate:"required"`
}

// VerifySiteRequest selects which proof the owner has published.
type VerifySiteRequest struct {
	Method string `json:"method" validate:"required,oneof=dns meta file"`
}

// SiteDTO is the public shape of a site.
type SiteDTO struct {
	ID                string  `json:"id"`
	Domain            string  `json:"domain"`
	OwnerAddress      string  `json:"owner_address"`
	VerificationToken string  `json:"verification_token"`
	Verified          bool    `json:"verified"`
	Method            *string `json:"method,omitempty"`
	AssetID           string  `json:"asset_id"`
	CreatedAt         string  `json:"created_at"`
}

func siteDTO(site *models.Site) SiteDTO {
	dto := SiteDTO{
		ID:                site.ID.String(),
		Domain:            site.Domain,
		OwnerAddress:      site.OwnerAddress,
		VerificationToken: site.VerificationToken,
		Verified:          site.Verified,
		AssetID:           site.AssetIdentifier(),
		CreatedAt:         site.CreatedAt.UTC().Format(time.RFC3339),
	}
	if site.Method != nil {
		method := site.Method.String()
		dto.Method = &method
	}
	return dto
}

func siteIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "siteId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "site id must be a UUID")
	}
	return id, nil
}

// RegisterSite handles domain registration and hands back the challenge token.
func RegisterSite(svc sites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body RegisterSiteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		site, err := svc.Register(r.Context(), sites.RegisterInput{
			Domain:       body.Domain,
			OwnerAddress: body.OwnerAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, siteDTO(site))
	}
}

// GetSite returns a registered site.
func GetSite(svc sites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := siteIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		site, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, siteDTO(site))
	}
}

// SiteWellKnown returns the unsigned rights-file template for the owner to
// sign and host.
func SiteWellKnown(svc sites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := siteIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		template, err := svc.RightsFileTemplate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, template)
	}
}

// VerifySite runs the selected ownership proof against the live domain.
func VerifySite(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := siteIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body VerifySiteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParseVerificationMethod(body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		outcome, err := svc.Verify(r.Context(), id, method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}
