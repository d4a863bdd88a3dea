package licensing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
	"github.com/scrapesafe/scrapesafe-backend/pkg/metrics"
	"github.com/scrapesafe/scrapesafe-backend/pkg/pinning"
	"github.com/scrapesafe/scrapesafe-backend/pkg/signer"
)

const localAssetPrefix = "local:"

type licensingRepository interface {
	FindEnabledTerms(ctx context.Context, siteID uuid.UUID) (*models.LicenseTerms, error)
	ReplaceEnabledTerms(ctx context.Context, terms *models.LicenseTerms) (*models.LicenseTerms, error)
	CreateLicense(ctx context.Context, license *models.License) (*models.License, error)
	FindLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	ActivateLicense(ctx context.Context, id uuid.UUID, proofURI, signature string) error
	RevokeLicense(ctx context.Context, id uuid.UUID) (bool, error)
	FindActiveLicense(ctx context.Context, siteID uuid.UUID, buyerAddress string) (*models.License, error)
}

type siteResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Site, error)
	FindByStoryAssetID(ctx context.Context, assetID string) (*models.Site, error)
}

type receiptSigner interface {
	Address() string
	SignCanonical(value any) (string, error)
	VerifyReceipt(value any, signature string) signer.Verification
}

type proofPinner interface {
	Pin(ctx context.Context, payload any) pinning.Pinned
}

// TermsInput holds the owner-supplied license terms for a site.
type TermsInput struct {
	AllowedActions []string
	PriceModel     string
	PricePerUnit   decimal.Decimal
	PriceToken     string
	TermsURI       *string
}

// PurchaseInput identifies what a buyer is purchasing.
type PurchaseInput struct {
	AssetID      string
	BuyerAddress string
}

// PurchaseResult is the receipt bundle handed back to a buyer.
type PurchaseResult struct {
	LicenseID   uuid.UUID `json:"license_id"`
	Receipt     Receipt   `json:"receipt"`
	Signature   string    `json:"signature"`
	ProofURI    string    `json:"proof_uri"`
	ProofMocked bool      `json:"proof_mocked,omitempty"`
}

// CheckResult answers whether a buyer holds an active license for an asset.
type CheckResult struct {
	HasLicense bool   `json:"has_license"`
	LicenseID  string `json:"license_id,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
}

// Service drives the license-terms and license lifecycle.
type Service interface {
	SetTerms(ctx context.Context, siteID uuid.UUID, input TermsInput) (*models.LicenseTerms, error)
	GetTerms(ctx context.Context, siteID uuid.UUID) (*models.LicenseTerms, error)
	Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error)
	Revoke(ctx context.Context, licenseID uuid.UUID) error
	CheckLicense(ctx context.Context, assetID, buyerAddress string) (*CheckResult, error)
	ValidateProof(receipt map[string]any, signature string) signer.Verification
}

type service struct {
	repo    licensingRepository
	sites   siteResolver
	signer  receiptSigner
	pinner  proofPinner
	cache   *CheckCache
	metrics *metrics.APIMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// ServiceParams configures the licensing service.
type ServiceParams struct {
	Repo    licensingRepository
	Sites   siteResolver
	Signer  receiptSigner
	Pinner  proofPinner
	Cache   *CheckCache
	Metrics *metrics.APIMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// NewService builds the licensing service. A nil clock defaults to time.Now.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("licensing repository required")
	}
	if params.Sites == nil {
		return nil, fmt.Errorf("site resolver required")
	}
	if params.Signer == nil {
		return nil, fmt.Errorf("signer required")
	}
	if params.Pinner == nil {
		return nil, fmt.Errorf("pinner required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("check cache required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		sites:   params.Sites,
		signer:  params.Signer,
		pinner:  params.Pinner,
		cache:   params.Cache,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) SetTerms(ctx context.Context, siteID uuid.UUID, input TermsInput) (*models.LicenseTerms, error) {
	site, err := s.loadSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !site.Verified {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "site must be verified before setting license terms")
	}

	actions, err := normalizeActions(input.AllowedActions)
	if err != nil {
		return nil, err
	}
	priceModel, err := enums.ParsePriceModel(strings.ToUpper(strings.TrimSpace(input.PriceModel)))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	if input.PricePerUnit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_per_unit must be zero or positive")
	}
	if strings.TrimSpace(input.PriceToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_token is required")
	}

	terms := &models.LicenseTerms{
		SiteID:         site.ID,
		AllowedActions: actions,
		PriceModel:     priceModel,
		PricePerUnit:   input.PricePerUnit,
		PriceToken:     strings.ToUpper(strings.TrimSpace(input.PriceToken)),
		TermsURI:       input.TermsURI,
		Enabled:        true,
	}
	saved, err := s.repo.ReplaceEnabledTerms(ctx, terms)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving license terms")
	}
	return saved, nil
}

func (s *service) GetTerms(ctx context.Context, siteID uuid.UUID) (*models.LicenseTerms, error) {
	if _, err := s.loadSite(ctx, siteID); err != nil {
		return nil, err
	}
	terms, err := s.repo.FindEnabledTerms(ctx, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "site has no enabled license terms")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading license terms")
	}
	return terms, nil
}

// Purchase issues a license: pending row first as the durability point, then
// receipt signing and best-effort pinning, then activation. A failure after
// the pending row is written is returned to the caller with the row left in
// place; stale pending rows are an operator signal, not something to roll
// back silently.
func (s *service) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if !common.IsHexAddress(input.BuyerAddress) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer_address must be a hex address")
	}
	buyer := strings.ToLower(input.BuyerAddress)

	site, err := s.resolveAsset(ctx, input.AssetID)
	if err != nil {
		return nil, err
	}

	terms, err := s.repo.FindEnabledTerms(ctx, site.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "site has no enabled license terms")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading license terms")
	}

	license, err := s.repo.CreateLicense(ctx, &models.License{
		LicenseTermsID: terms.ID,
		BuyerAddress:   buyer,
		Status:         enums.LicenseStatusPending,
	})
	if err != nil {
		s.metrics.ObservePurchase(false)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating license")
	}

	receipt := buildReceipt(license, site, terms, s.signer.Address(), s.now())

	signature, err := s.signer.SignCanonical(receipt)
	if err != nil {
		return nil, s.purchaseFailed(ctx, license.ID, err, "signing receipt")
	}

	pinned := s.pinner.Pin(ctx, map[string]any{
		"receipt":   receipt,
		"signature": signature,
	})

	if err := s.repo.ActivateLicense(ctx, license.ID, pinned.URI, signature); err != nil {
		return nil, s.purchaseFailed(ctx, license.ID, err, "activating license")
	}

	s.invalidateSiteEntries(site, buyer)
	s.metrics.ObservePurchase(true)

	if s.logg != nil {
		logCtx := s.logg.WithBuyer(ctx, buyer)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"license_id": license.ID.String(),
			"asset_id":   receipt.AssetID,
			"proof_uri":  pinned.URI,
		})
		s.logg.Info(logCtx, "license issued")
	}

	return &PurchaseResult{
		LicenseID:   license.ID,
		Receipt:     receipt,
		Signature:   signature,
		ProofURI:    pinned.URI,
		ProofMocked: pinned.Mocked,
	}, nil
}

// purchaseFailed reports a post-durability-point failure. The pending license
// id rides along in the error details so operators can find the stranded row.
func (s *service) purchaseFailed(ctx context.Context, licenseID uuid.UUID, cause error, action string) error {
	s.metrics.ObservePurchase(false)
	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "license_id", licenseID.String())
		s.logg.Error(logCtx, "purchase failed, license left pending", cause)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, cause, action+" failed").
		WithDetails(map[string]any{"pending_license_id": licenseID})
}

func (s *service) Revoke(ctx context.Context, licenseID uuid.UUID) error {
	license, err := s.repo.FindLicenseByID(ctx, licenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading license")
	}
	if license.Status != enums.LicenseStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("license is %s; only active licenses can be revoked", license.Status))
	}

	revoked, err := s.repo.RevokeLicense(ctx, licenseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoking license")
	}
	if !revoked {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "license is no longer active")
	}

	if license.LicenseTerms != nil && license.LicenseTerms.Site != nil {
		s.invalidateSiteEntries(license.LicenseTerms.Site, license.BuyerAddress)
	}

	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "license_id", licenseID.String())
		s.logg.Info(logCtx, "license revoked")
	}
	return nil
}

func (s *service) CheckLicense(ctx context.Context, assetID, buyerAddress string) (*CheckResult, error) {
	if !common.IsHexAddress(buyerAddress) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer must be a hex address")
	}
	buyer := strings.ToLower(buyerAddress)
	assetID = strings.TrimSpace(assetID)

	if entry, ok := s.cache.Get(assetID, buyer); ok {
		s.metrics.ObserveCacheLookup(true)
		return &CheckResult{HasLicense: entry.HasLicense, LicenseID: entry.LicenseID, Cached: true}, nil
	}
	s.metrics.ObserveCacheLookup(false)

	site, err := s.resolveAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	entry := CacheEntry{}
	license, err := s.repo.FindActiveLicense(ctx, site.ID, buyer)
	switch {
	case err == nil:
		entry = CacheEntry{HasLicense: true, LicenseID: license.ID.String()}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// negative answers are cached too
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up license")
	}

	s.cache.Set(assetID, buyer, entry)
	return &CheckResult{HasLicense: entry.HasLicense, LicenseID: entry.LicenseID}, nil
}

// ValidateProof checks a receipt + signature pair against the server signing
// identity. Anyone holding the pair can run this; it never errors.
func (s *service) ValidateProof(receipt map[string]any, signature string) signer.Verification {
	return s.signer.VerifyReceipt(receipt, signature)
}

func (s *service) loadSite(ctx context.Context, siteID uuid.UUID) (*models.Site, error) {
	site, err := s.sites.FindByID(ctx, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "site not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading site")
	}
	return site, nil
}

// invalidateSiteEntries drops cached answers under every identifier a caller
// can check the site by: the external asset id and the local:<site-id> alias,
// which stays valid even after registration.
func (s *service) invalidateSiteEntries(site *models.Site, buyer string) {
	assetID := site.AssetIdentifier()
	s.cache.Invalidate(assetID, buyer)
	if alias := localAssetPrefix + site.ID.String(); alias != assetID {
		s.cache.Invalidate(alias, buyer)
	}
}

// resolveAsset maps an asset identifier to its site: external asset id first,
// then the deterministic local:<site-id> fallback issued before registration.
func (s *service) resolveAsset(ctx context.Context, assetID string) (*models.Site, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset_id is required")
	}

	site, err := s.sites.FindByStoryAssetID(ctx, assetID)
	if err == nil {
		return site, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving asset")
	}

	if raw, ok := strings.CutPrefix(assetID, localAssetPrefix); ok {
		if siteID, parseErr := uuid.Parse(raw); parseErr == nil {
			return s.loadSite(ctx, siteID)
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no site found for asset identifier")
}

func normalizeActions(raw []string) (pq.StringArray, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allowed_actions must not be empty")
	}
	seen := make(map[string]bool, len(raw))
	actions := make(pq.StringArray, 0, len(raw))
	for _, value := range raw {
		action, err := enums.ParseLicenseAction(strings.ToUpper(strings.TrimSpace(value)))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		if seen[action.String()] {
			continue
		}
		seen[action.String()] = true
		actions = append(actions, action.String())
	}
	return actions, nil
}
