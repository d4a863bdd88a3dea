package models

import (
	"time"

	"github.com/google/uuid"
)

// Nonce is a single-use value handed to a domain owner, typically embedded in
// a rights file before signing. Consumption flips the used flag exactly once.
type Nonce struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Value     string     `gorm:"column:value;not null;unique"`
	Purpose   string     `gorm:"column:purpose;not null"`
	Used      bool       `gorm:"column:used;not null;default:false"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
