package nonces

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
)

// Repository exposes nonce persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a nonce repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new nonce row.
func (r *Repository) Create(ctx context.Context, nonce *models.Nonce) (*models.Nonce, error) {
	if err := r.db.WithContext(ctx).Create(nonce).Error; err != nil {
		return nil, err
	}
	return nonce, nil
}

// Consume flips the used flag for an unused nonce. The used predicate makes
// consumption single-use under concurrency: the second caller sees zero rows
// affected.
func (r *Repository) Consume(ctx context.Context, value string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Nonce{}).
		Where("value = ? AND used = ?", value, false).
		Update("used", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteExpired removes nonces whose validity window has passed and reports
// how many rows were deleted.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.Nonce{})
	return result.RowsAffected, result.Error
}

// FindByValue returns the nonce with the given value.
func (r *Repository) FindByValue(ctx context.Context, value string) (*models.Nonce, error) {
	var nonce models.Nonce
	if err := r.db.WithContext(ctx).First(&nonce, "value = ?", value).Error; err != nil {
		return nil, err
	}
	return &nonce, nil
}
