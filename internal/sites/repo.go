package sites

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
)

// Repository exposes site persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a site repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new site row.
func (r *Repository) Create(ctx context.Context, site *models.Site) (*models.Site, error) {
	if err := r.db.WithContext(ctx).Create(site).Error; err != nil {
		return nil, err
	}
	return site, nil
}

// FindByID returns the site with the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	var site models.Site
	if err := r.db.WithContext(ctx).First(&site, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// FindByDomain returns the site registered for the normalized domain.
func (r *Repository) FindByDomain(ctx context.Context, domain string) (*models.Site, error) {
	var site models.Site
	if err := r.db.WithContext(ctx).First(&site, "domain = ?", domain).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// FindByStoryAssetID returns the site holding the external asset identifier.
func (r *Repository) FindByStoryAssetID(ctx context.Context, assetID string) (*models.Site, error) {
	var site models.Site
	if err := r.db.WithContext(ctx).First(&site, "story_asset_id = ?", assetID).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// MarkVerified flips the verified flag and records the method and asset id in
// a single UPDATE so a site is never visible as verified without its asset.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID, method enums.VerificationMethod, assetID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Site{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"verified":       true,
			"method":         method,
			"story_asset_id": assetID,
		}).Error
}
