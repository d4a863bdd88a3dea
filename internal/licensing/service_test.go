package licensing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/scrapesafe/scrapesafe-backend/pkg/config"
	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
	"github.com/scrapesafe/scrapesafe-backend/pkg/pinning"
	pkgsigner "github.com/scrapesafe/scrapesafe-backend/pkg/signer"
)

const testBuyer = "0x00000000000000000000000000000000000000bb"

type stubLicensingRepo struct {
	terms   *models.LicenseTerms
	created []*models.License
	active  *models.License
	byID    map[uuid.UUID]*models.License

	activatedID        uuid.UUID
	activatedProofURI  string
	activatedSignature string
	activateErr        error

	revokedID     uuid.UUID
	activeLookups int
	replacedTerms *models.LicenseTerms
}

func (s *stubLicensingRepo) FindEnabledTerms(ctx context.Context, siteID uuid.UUID) (*models.LicenseTerms, error) {
	if s.terms == nil || s.terms.SiteID != siteID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.terms, nil
}

func (s *stubLicensingRepo) ReplaceEnabledTerms(ctx context.Context, terms *models.LicenseTerms) (*models.LicenseTerms, error) {
	terms.ID = uuid.New()
	s.replacedTerms = terms
	return terms, nil
}

func (s *stubLicensingRepo) CreateLicense(ctx context.Context, license *models.License) (*models.License, error) {
	license.ID = uuid.New()
	s.created = append(s.created, license)
	return license, nil
}

func (s *stubLicensingRepo) FindLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	license, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return license, nil
}

func (s *stubLicensingRepo) ActivateLicense(ctx context.Context, id uuid.UUID, proofURI, signature string) error {
	if s.activateErr != nil {
		return s.activateErr
	}
	s.activatedID = id
	s.activatedProofURI = proofURI
	s.activatedSignature = signature
	return nil
}

func (s *stubLicensingRepo) RevokeLicense(ctx context.Context, id uuid.UUID) (bool, error) {
	s.revokedID = id
	return true, nil
}

func (s *stubLicensingRepo) FindActiveLicense(ctx context.Context, siteID uuid.UUID, buyerAddress string) (*models.License, error) {
	s.activeLookups++
	if s.active == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.active, nil
}

type stubSiteResolver struct {
	sites []*models.Site
}

func (s *stubSiteResolver) FindByID(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	for _, site := range s.sites {
		if site.ID == id {
			return site, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSiteResolver) FindByStoryAssetID(ctx context.Context, assetID string) (*models.Site, error) {
	for _, site := range s.sites {
		if site.StoryAssetID != nil && *site.StoryAssetID == assetID {
			return site, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type stubPinner struct {
	payload any
}

func (s *stubPinner) Pin(ctx context.Context, payload any) pinning.Pinned {
	s.payload = payload
	return pinning.Pinned{URI: "ipfs://QmTest", Mocked: false}
}

type failingSigner struct{}

func (failingSigner) Address() string { return "0x00000000000000000000000000000000000000ee" }

func (failingSigner) SignCanonical(value any) (string, error) {
	return "", fmt.Errorf("hsm unavailable")
}

func (failingSigner) VerifyReceipt(value any, signature string) pkgsigner.Verification {
	return pkgsigner.Verification{}
}

func newTestSigner(t *testing.T) *pkgsigner.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := pkgsigner.New(config.SignerConfig{PrivateKeyHex: fmt.Sprintf("%064x", key.D)}, nil)
	require.NoError(t, err)
	return s
}

type fixture struct {
	svc    Service
	repo   *stubLicensingRepo
	sites  *stubSiteResolver
	pinner *stubPinner
	cache  *CheckCache
	clock  *fakeClock
	signer receiptSigner
}

func newFixture(t *testing.T, signer receiptSigner) *fixture {
	t.Helper()
	if signer == nil {
		signer = newTestSigner(t)
	}
	repo := &stubLicensingRepo{byID: map[uuid.UUID]*models.License{}}
	sites := &stubSiteResolver{}
	pinner := &stubPinner{}
	cache, clock := newTestCache(60 * time.Second)

	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Sites:  sites,
		Signer: signer,
		Pinner: pinner,
		Cache:  cache,
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, sites: sites, pinner: pinner, cache: cache, clock: clock, signer: signer}
}

func verifiedSiteWithTerms(f *fixture) (*models.Site, *models.LicenseTerms) {
	assetID := "0xstory-asset-1"
	method := enums.VerificationMethodDNS
	site := &models.Site{
		ID:           uuid.New(),
		Domain:       "example.com",
		OwnerAddress: "0x00000000000000000000000000000000000000aa",
		Verified:     true,
		Method:       &method,
		StoryAssetID: &assetID,
	}
	terms := &models.LicenseTerms{
		ID:             uuid.New(),
		SiteID:         site.ID,
		AllowedActions: pq.StringArray{"SCRAPE"},
		PriceModel:     enums.PriceModelFlat,
		PricePerUnit:   decimal.NewFromInt(50),
		PriceToken:     "USD",
		Enabled:        true,
	}
	f.sites.sites = append(f.sites.sites, site)
	f.repo.terms = terms
	return site, terms
}

func TestPurchaseIssuesActiveLicense(t *testing.T) {
	f := newFixture(t, nil)
	site, terms := verifiedSiteWithTerms(f)

	result, err := f.svc.Purchase(context.Background(), PurchaseInput{
		AssetID:      *site.StoryAssetID,
		BuyerAddress: testBuyer,
	})
	require.NoError(t, err)

	assert.Equal(t, result.LicenseID, f.repo.activatedID)
	assert.Equal(t, "ipfs://QmTest", result.ProofURI)
	assert.Equal(t, result.Signature, f.repo.activatedSignature)
	assert.Equal(t, "ipfs://QmTest", f.repo.activatedProofURI)

	assert.Equal(t, *site.StoryAssetID, result.Receipt.AssetID)
	assert.Equal(t, "example.com", result.Receipt.SiteDomain)
	assert.Equal(t, testBuyer, result.Receipt.Buyer)
	assert.Equal(t, terms.ID.String(), result.Receipt.Terms.ID)
	assert.Equal(t, []string{"SCRAPE"}, result.Receipt.Terms.AllowedActions)
	assert.Equal(t, "50", result.Receipt.Terms.PricePerUnit)

	// The receipt bundle, round-tripped through JSON as any verifier would
	// receive it, validates against the server identity.
	raw, err := json.Marshal(result.Receipt)
	require.NoError(t, err)
	var receiptMap map[string]any
	require.NoError(t, json.Unmarshal(raw, &receiptMap))

	verification := f.svc.ValidateProof(receiptMap, result.Signature)
	assert.True(t, verification.Valid)
	assert.Equal(t, f.signer.Address(), verification.Signer)
}

func TestPurchaseInvalidatesCachedNegative(t *testing.T) {
	f := newFixture(t, nil)
	site, _ := verifiedSiteWithTerms(f)
	f.cache.Set(*site.StoryAssetID, testBuyer, CacheEntry{HasLicense: false})

	result, err := f.svc.Purchase(context.Background(), PurchaseInput{
		AssetID:      *site.StoryAssetID,
		BuyerAddress: testBuyer,
	})
	require.NoError(t, err)

	// The stale negative must be gone so the next check hits storage.
	_, ok := f.cache.Get(*site.StoryAssetID, testBuyer)
	assert.False(t, ok)

	f.repo.active = &models.License{ID: result.LicenseID, Status: enums.LicenseStatusActive}
	check, err := f.svc.CheckLicense(context.Background(), *site.StoryAssetID, testBuyer)
	require.NoError(t, err)
	assert.True(t, check.HasLicense)
	assert.Equal(t, result.LicenseID.String(), check.LicenseID)
}

func TestPurchaseWithoutEnabledTerms(t *testing.T) {
	f := newFixture(t, nil)
	assetID := "0xstory-asset-1"
	site := &models.Site{ID: uuid.New(), Domain: "example.com", Verified: true, StoryAssetID: &assetID}
	f.sites.sites = append(f.sites.sites, site)

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{AssetID: assetID, BuyerAddress: testBuyer})
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
	assert.Empty(t, f.repo.created)
}

func TestPurchaseSigningFailureLeavesPending(t *testing.T) {
	f := newFixture(t, failingSigner{})
	site, _ := verifiedSiteWithTerms(f)

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{
		AssetID:      *site.StoryAssetID,
		BuyerAddress: testBuyer,
	})
	require.Error(t, err)

	// The pending row stays for operators; nothing was activated.
	require.Len(t, f.repo.created, 1)
	assert.Equal(t, enums.LicenseStatusPending, f.repo.created[0].Status)
	assert.Equal(t, uuid.Nil, f.repo.activatedID)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, f.repo.created[0].ID, details["pending_license_id"])
}

func TestPurchaseRejectsMalformedBuyer(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{AssetID: "0xasset", BuyerAddress: "not-an-address"})
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestPurchaseResolvesLocalAssetFallback(t *testing.T) {
	f := newFixture(t, nil)
	site, terms := verifiedSiteWithTerms(f)
	site.StoryAssetID = nil

	result, err := f.svc.Purchase(context.Background(), PurchaseInput{
		AssetID:      "local:" + site.ID.String(),
		BuyerAddress: testBuyer,
	})
	require.NoError(t, err)
	assert.Equal(t, "local:"+site.ID.String(), result.Receipt.AssetID)
	assert.Equal(t, terms.ID, f.repo.created[0].LicenseTermsID)
}

func TestCheckLicenseServesFromCache(t *testing.T) {
	f := newFixture(t, nil)
	site, _ := verifiedSiteWithTerms(f)
	f.repo.active = &models.License{ID: uuid.New(), Status: enums.LicenseStatusActive}

	first, err := f.svc.CheckLicense(context.Background(), *site.StoryAssetID, testBuyer)
	require.NoError(t, err)
	assert.True(t, first.HasLicense)
	assert.False(t, first.Cached)

	second, err := f.svc.CheckLicense(context.Background(), *site.StoryAssetID, testBuyer)
	require.NoError(t, err)
	assert.True(t, second.HasLicense)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, f.repo.activeLookups)
}

func TestCheckLicenseFallsThroughAfterTTL(t *testing.T) {
	f := newFixture(t, nil)
	site, _ := verifiedSiteWithTerms(f)
	f.repo.active = &models.License{ID: uuid.New(), Status: enums.LicenseStatusActive}

	_, err := f.svc.CheckLicense(context.Background(), *site.StoryAssetID, testBuyer)
	require.NoError(t, err)

	// Still cached well inside the window.
	f.clock.Advance(30 * time.Second)
	_, err = f.svc.CheckLicense(context.Background(), *site.StoryAssetID, testBuyer)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.activeLookups)

	// Past the window the cache is treated as absent.
	f.clock.Advance(31 * time.Second)
	result, err := f.svc.CheckLicense(context.Background(), *site.StoryAssetID, testBuyer)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, 2, f.repo.activeLookups)
}

func TestRevokeInvalidatesCache(t *testing.T) {
	f := newFixture(t, nil)
	site, terms := verifiedSiteWithTerms(f)
	terms.Site = site

	license := &models.License{
		ID:             uuid.New(),
		LicenseTermsID: terms.ID,
		BuyerAddress:   testBuyer,
		Status:         enums.LicenseStatusActive,
		LicenseTerms:   terms,
	}
	f.repo.byID[license.ID] = license
	f.cache.Set(*site.StoryAssetID, testBuyer, CacheEntry{HasLicense: true, LicenseID: license.ID.String()})

	require.NoError(t, f.svc.Revoke(context.Background(), license.ID))
	assert.Equal(t, license.ID, f.repo.revokedID)

	// A subsequent check must not see the stale positive.
	_, ok := f.cache.Get(*site.StoryAssetID, testBuyer)
	assert.False(t, ok)
}

func TestRevokeInvalidatesLocalAliasEntry(t *testing.T) {
	f := newFixture(t, nil)
	site, terms := verifiedSiteWithTerms(f)
	terms.Site = site

	license := &models.License{
		ID:             uuid.New(),
		LicenseTermsID: terms.ID,
		BuyerAddress:   testBuyer,
		Status:         enums.LicenseStatusActive,
		LicenseTerms:   terms,
	}
	f.repo.byID[license.ID] = license
	f.repo.active = license

	// Callers may check by the local alias even though the site carries an
	// external asset id; the positive gets cached under the alias key.
	alias := "local:" + site.ID.String()
	check, err := f.svc.CheckLicense(context.Background(), alias, testBuyer)
	require.NoError(t, err)
	assert.True(t, check.HasLicense)

	require.NoError(t, f.svc.Revoke(context.Background(), license.ID))
	f.repo.active = nil

	// Revocation must reach the alias entry too, not just the external id.
	check, err = f.svc.CheckLicense(context.Background(), alias, testBuyer)
	require.NoError(t, err)
	assert.False(t, check.Cached, "revoked license must not be served from cache")
	assert.False(t, check.HasLicense)
}

func TestPurchaseInvalidatesLocalAliasNegative(t *testing.T) {
	f := newFixture(t, nil)
	site, _ := verifiedSiteWithTerms(f)

	alias := "local:" + site.ID.String()
	f.cache.Set(alias, testBuyer, CacheEntry{HasLicense: false})

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{
		AssetID:      *site.StoryAssetID,
		BuyerAddress: testBuyer,
	})
	require.NoError(t, err)

	_, ok := f.cache.Get(alias, testBuyer)
	assert.False(t, ok, "purchase must drop the stale negative under the alias key")
}

func TestCheckLicenseTrimsAssetID(t *testing.T) {
	f := newFixture(t, nil)
	site, _ := verifiedSiteWithTerms(f)
	f.repo.active = &models.License{ID: uuid.New(), Status: enums.LicenseStatusActive}

	first, err := f.svc.CheckLicense(context.Background(), "  "+*site.StoryAssetID+" ", testBuyer)
	require.NoError(t, err)
	assert.True(t, first.HasLicense)
	assert.Equal(t, 1, f.repo.activeLookups)

	// The padded and bare forms share one cache entry.
	second, err := f.svc.CheckLicense(context.Background(), *site.StoryAssetID, testBuyer)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, f.repo.activeLookups)
}

func TestRevokeRejectsNonActive(t *testing.T) {
	f := newFixture(t, nil)
	license := &models.License{ID: uuid.New(), Status: enums.LicenseStatusRevoked}
	f.repo.byID[license.ID] = license

	err := f.svc.Revoke(context.Background(), license.ID)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
	assert.Equal(t, uuid.Nil, f.repo.revokedID)
}

func TestSetTermsRequiresVerifiedSite(t *testing.T) {
	f := newFixture(t, nil)
	site := &models.Site{ID: uuid.New(), Domain: "example.com"}
	f.sites.sites = append(f.sites.sites, site)

	_, err := f.svc.SetTerms(context.Background(), site.ID, TermsInput{
		AllowedActions: []string{"SCRAPE"},
		PriceModel:     "FLAT",
		PricePerUnit:   decimal.NewFromInt(50),
		PriceToken:     "USD",
	})
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestSetTermsNormalizesInput(t *testing.T) {
	f := newFixture(t, nil)
	site, _ := verifiedSiteWithTerms(f)

	terms, err := f.svc.SetTerms(context.Background(), site.ID, TermsInput{
		AllowedActions: []string{"scrape", "TRAIN", "SCRAPE"},
		PriceModel:     "per_scrape",
		PricePerUnit:   decimal.NewFromFloat(0.05),
		PriceToken:     " usd ",
	})
	require.NoError(t, err)

	assert.Equal(t, pq.StringArray{"SCRAPE", "TRAIN"}, terms.AllowedActions)
	assert.Equal(t, enums.PriceModelPerScrape, terms.PriceModel)
	assert.Equal(t, "USD", terms.PriceToken)
	assert.True(t, terms.Enabled)
	assert.NotNil(t, f.repo.replacedTerms)
}

func TestSetTermsRejectsEmptyActions(t *testing.T) {
	f := newFixture(t, nil)
	site, _ := verifiedSiteWithTerms(f)

	_, err := f.svc.SetTerms(context.Background(), site.ID, TermsInput{
		PriceModel:   "FLAT",
		PricePerUnit: decimal.NewFromInt(1),
		PriceToken:   "USD",
	})
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}
