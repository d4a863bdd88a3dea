package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/scrapesafe/scrapesafe-backend/pkg/enums"
)

// LicenseTerms describes what a buyer is allowed to do with a site's content
// and at what price. At most one enabled row may exist per site; setting new
// terms updates the enabled row in place rather than inserting a second one.
type LicenseTerms struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SiteID         uuid.UUID        `gorm:"column:site_id;type:uuid;not null;index"`
	AllowedActions pq.StringArray   `gorm:"column:allowed_actions;type:text[];not null"`
	PriceModel     enums.PriceModel `gorm:"column:price_model;type:price_model;not null"`
	PricePerUnit   decimal.Decimal  `gorm:"column:price_per_unit;type:numeric(18,6);not null"`
	PriceToken     string           `gorm:"column:price_token;not null"`
	TermsURI       *string          `gorm:"column:terms_uri"`
	Enabled        bool             `gorm:"column:enabled;not null;default:true"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Site *Site `gorm:"foreignKey:SiteID"`
}
