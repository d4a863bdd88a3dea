package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
	"github.com/scrapesafe/scrapesafe-backend/pkg/metrics"
	"github.com/scrapesafe/scrapesafe-backend/pkg/story"
)

type sitesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Site, error)
	MarkVerified(ctx context.Context, id uuid.UUID, method enums.VerificationMethod, assetID string) error
}

type assetRegistrar interface {
	Register(ctx context.Context, localID, domain, ownerAddress string) story.Registration
}

// Outcome reports a verification attempt to the caller. Every attempt carries
// a reason string, success or not.
type Outcome struct {
	Verified        bool                      `json:"verified"`
	AlreadyVerified bool                      `json:"already_verified,omitempty"`
	Method          *enums.VerificationMethod `json:"method,omitempty"`
	Reason          string                    `json:"reason"`
	AssetID         string                    `json:"asset_id,omitempty"`
	Simulated       bool                      `json:"simulated,omitempty"`
}

// Service drives a site's verification state transition.
type Service interface {
	Verify(ctx context.Context, siteID uuid.UUID, method enums.VerificationMethod) (*Outcome, error)
}

type service struct {
	repo      sitesRepository
	checker   *Checker
	registrar assetRegistrar
	metrics   *metrics.APIMetrics
	logg      *logger.Logger
}

// ServiceParams configures the verification service.
type ServiceParams struct {
	Repo      sitesRepository
	Checker   *Checker
	Registrar assetRegistrar
	Metrics   *metrics.APIMetrics
	Logger    *logger.Logger
}

// NewService builds the verification orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("site repository required")
	}
	if params.Checker == nil {
		return nil, fmt.Errorf("checker required")
	}
	if params.Registrar == nil {
		return nil, fmt.Errorf("asset registrar required")
	}
	return &service{
		repo:      params.Repo,
		checker:   params.Checker,
		registrar: params.Registrar,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (s *service) Verify(ctx context.Context, siteID uuid.UUID, method enums.VerificationMethod) (*Outcome, error) {
	if !method.IsCheckable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("method must be one of dns, meta, file; got %q", method))
	}

	site, err := s.repo.FindByID(ctx, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "site not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading site")
	}

	// Verified is terminal: report the prior method without re-checking.
	if site.Verified {
		return &Outcome{
			Verified:        true,
			AlreadyVerified: true,
			Method:          site.Method,
			Reason:          "site is already verified",
			AssetID:         site.AssetIdentifier(),
		}, nil
	}

	result := s.dispatch(ctx, site, method)
	s.metrics.ObserveVerification(method.String(), result.Valid)

	if !result.Valid {
		return &Outcome{Reason: result.Details}, nil
	}

	registration := s.registrar.Register(ctx, site.ID.String(), site.Domain, site.OwnerAddress)

	if err := s.repo.MarkVerified(ctx, site.ID, method, registration.AssetID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting verification")
	}

	if s.logg != nil {
		logCtx := s.logg.WithSiteID(ctx, site.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"method":    method.String(),
			"asset_id":  registration.AssetID,
			"simulated": registration.Simulated,
		})
		s.logg.Info(logCtx, "site verified")
	}

	return &Outcome{
		Verified:  true,
		Method:    &method,
		Reason:    result.Details,
		AssetID:   registration.AssetID,
		Simulated: registration.Simulated,
	}, nil
}

// dispatch is the single place a method value fans out to a strategy; the
// switch is exhaustive over checkable methods.
func (s *service) dispatch(ctx context.Context, site *models.Site, method enums.VerificationMethod) Result {
	switch method {
	case enums.VerificationMethodDNS:
		return s.checker.CheckDNS(ctx, site.Domain, site.VerificationToken)
	case enums.VerificationMethodMeta:
		return s.checker.CheckMeta(ctx, site.Domain, site.VerificationToken)
	case enums.VerificationMethodFile:
		return s.checker.CheckRightsFile(ctx, site.Domain, site.VerificationToken, site.OwnerAddress)
	default:
		return Result{Details: fmt.Sprintf("unsupported method %q", method)}
	}
}
