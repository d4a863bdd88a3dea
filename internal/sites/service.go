package sites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db"
	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
)

const tokenPrefix = "scrapesafe-"

type sitesRepository interface {
	Create(ctx context.Context, site *models.Site) (*models.Site, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Site, error)
	FindByDomain(ctx context.Context, domain string) (*models.Site, error)
}

// Service exposes site registration and lookup semantics.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Site, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Site, error)
	RightsFileTemplate(ctx context.Context, id uuid.UUID) (*RightsFileTemplate, error)
}

type service struct {
	repo sitesRepository
}

// RegisterInput holds the data required to register a site.
type RegisterInput struct {
	Domain       string
	OwnerAddress string
}

// RightsFileTemplate is the unsigned well-known document handed to an owner.
// The owner signs the canonical form of the payload (without the signature
// field), adds the signature, and hosts the result at
// /.well-known/scrapesafe.json.
type RightsFileTemplate struct {
	Domain    string `json:"domain"`
	Owner     string `json:"owner"`
	Token     string `json:"token"`
	Timestamp string `json:"timestamp"`
	Signature string `json:"signature"`
}

// NewService builds a site service backed by the provided repository.
func NewService(repo sitesRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("site repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Site, error) {
	domain, err := NormalizeDomain(input.Domain)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(input.OwnerAddress) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner_address must be a hex address")
	}

	site := &models.Site{
		Domain:            domain,
		OwnerAddress:      strings.ToLower(input.OwnerAddress),
		VerificationToken: tokenPrefix + uuid.NewString(),
	}

	created, err := s.repo.Create(ctx, site)
	if err != nil {
		if db.IsUniqueViolation(err, "sites_domain_key") {
			return nil, s.domainConflict(ctx, domain, err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating site")
	}
	return created, nil
}

func (s *service) domainConflict(ctx context.Context, domain string, cause error) error {
	conflict := pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "domain already registered")
	existing, err := s.repo.FindByDomain(ctx, domain)
	if err != nil {
		return conflict
	}
	return conflict.WithDetails(map[string]any{"existing_site_id": existing.ID})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	site, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "site not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading site")
	}
	return site, nil
}

func (s *service) RightsFileTemplate(ctx context.Context, id uuid.UUID) (*RightsFileTemplate, error) {
	site, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RightsFileTemplate{
		Domain:    site.Domain,
		Owner:     site.OwnerAddress,
		Token:     site.VerificationToken,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// NormalizeDomain lower-cases the domain and strips scheme, path, and
// trailing slashes so the same site cannot register twice under cosmetic
// variations.
func NormalizeDomain(raw string) (string, error) {
	domain := strings.ToLower(strings.TrimSpace(raw))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	if idx := strings.IndexByte(domain, '/'); idx >= 0 {
		domain = domain[:idx]
	}
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "domain is required")
	}
	if !strings.Contains(domain, ".") || strings.ContainsAny(domain, " \t") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid domain %q", raw))
	}
	return domain, nil
}
