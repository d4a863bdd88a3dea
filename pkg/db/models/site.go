package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
)

// Site is a registered domain whose owner can prove control and license its
// content. The verification token is generated once at registration and never
// changes; once verified, a site stays verified.
type Site struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Domain            string                    `gorm:"column:domain;not null;unique"`
	OwnerAddress      string                    `gorm:"column:owner_address;not null"`
	VerificationToken string                    `gorm:"column:verification_token;not null"`
	Verified          bool                      `gorm:"column:verified;not null;default:false"`
	Method            *enums.VerificationMethod `gorm:"column:method;type:verification_method"`
	StoryAssetID      *string                   `gorm:"column:story_asset_id"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// AssetIdentifier returns the external-facing identifier for this site's IP
// asset: the registered external id when present, otherwise the deterministic
// local fallback.
func (s *Site) AssetIdentifier() string {
	if s.StoryAssetID != nil && *s.StoryAssetID != "" {
		return *s.StoryAssetID
	}
	return "local:" + s.ID.String()
}
