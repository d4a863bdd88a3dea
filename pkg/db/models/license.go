package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
)

// License records a buyer's purchase against a set of license terms.
// Lifecycle: pending -> active -> revoked; revoked is terminal. A license
// left in pending indicates a purchase interrupted before the receipt was
// signed and stored, surfaced for operators instead of rolled back.
type License struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LicenseTermsID uuid.UUID           `gorm:"column:license_terms_id;type:uuid;not null;index"`
	BuyerAddress   string              `gorm:"column:buyer_address;not null;index"`
	Status         enums.LicenseStatus `gorm:"column:status;type:license_status;not null;default:'pending'"`
	ProofURI       *string             `gorm:"column:proof_uri"`
	ProofSignature *string             `gorm:"column:proof_signature"`
	ExpiresAt      *time.Time          `gorm:"column:expires_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	LicenseTerms *LicenseTerms `gorm:"foreignKey:LicenseTermsID"`
}
