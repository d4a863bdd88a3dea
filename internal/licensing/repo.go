package licensing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
)

// Repository exposes license-terms and license persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a licensing repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindEnabledTerms returns the single enabled terms row for the site.
func (r *Repository) FindEnabledTerms(ctx context.Context, siteID uuid.UUID) (*models.LicenseTerms, error) {
	var terms models.LicenseTerms
	if err := r.db.WithContext(ctx).
		First(&terms, "site_id = ? AND enabled = ?", siteID, true).Error; err != nil {
		return nil, err
	}
	return &terms, nil
}

// ReplaceEnabledTerms installs the site's terms: the existing enabled row is
// updated in place when one exists, otherwise a new row is inserted. A second
// enabled row is never created, matching the partial unique index.
func (r *Repository) ReplaceEnabledTerms(ctx context.Context, terms *models.LicenseTerms) (*models.LicenseTerms, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.LicenseTerms
		err := tx.First(&existing, "site_id = ? AND enabled = ?", terms.SiteID, true).Error
		if err == nil {
			terms.ID = existing.ID
			terms.CreatedAt = existing.CreatedAt
			return tx.Model(&existing).Updates(map[string]any{
				"allowed_actions": terms.AllowedActions,
				"price_model":     terms.PriceModel,
				"price_per_unit":  terms.PricePerUnit,
				"price_token":     terms.PriceToken,
				"terms_uri":       terms.TermsURI,
			}).Error
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		terms.Enabled = true
		return tx.Create(terms).Error
	})
	if err != nil {
		return nil, err
	}
	return terms, nil
}

// CreateLicense inserts a license row; callers set the initial status.
func (r *Repository) CreateLicense(ctx context.Context, license *models.License) (*models.License, error) {
	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

// FindLicenseByID returns a license with its terms and site preloaded.
func (r *Repository) FindLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).
		Preload("LicenseTerms").
		Preload("LicenseTerms.Site").
		First(&license, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

// ActivateLicense transitions a license to active, storing the receipt
// signature and proof location in the same UPDATE as the status flip.
func (r *Repository) ActivateLicense(ctx context.Context, id uuid.UUID, proofURI, signature string) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          enums.LicenseStatusActive,
			"proof_uri":       proofURI,
			"proof_signature": signature,
		}).Error
}

// RevokeLicense transitions a license from active to revoked. The status
// predicate makes the transition race-safe: a concurrent revoke sees zero
// rows affected instead of double-applying.
func (r *Repository) RevokeLicense(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ? AND status = ?", id, enums.LicenseStatusActive).
		Update("status", enums.LicenseStatusRevoked)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindActiveLicense returns the newest active license held by the buyer for
// any terms belonging to the site.
func (r *Repository) FindActiveLicense(ctx context.Context, siteID uuid.UUID, buyerAddress string) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).
		Joins("JOIN license_terms ON license_terms.id = licenses.license_terms_id").
		Where("license_terms.site_id = ? AND licenses.buyer_address = ? AND licenses.status = ?",
			siteID, buyerAddress, enums.LicenseStatusActive).
		Order("licenses.created_at DESC").
		First(&license).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

// FindStalePending lists licenses stuck in pending since before the cutoff,
// oldest first. Pending rows past a threshold mean a purchase died between
// the durability point and activation and need operator attention.
func (r *Repository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.License, error) {
	var licenses []models.License
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.LicenseStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&licenses).Error; err != nil {
		return nil, err
	}
	return licenses, nil
}
