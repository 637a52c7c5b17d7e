package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TeslaToken is the bearer credential pair for the Tesla Fleet API.
// The most recently created row is the single "current" credential for the
// whole process (not per-vehicle); refreshing updates that row in place.
// Callers must serialize refreshes through the Tesla service's token mutex.
type TeslaToken struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	Token             string     `gorm:"not null" json:"-"`
	RefreshToken      string     `gorm:"not null" json:"-"`
	AuthorizationCode string     `json:"-"`
	ExpiresAt         *time.Time `json:"expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the TeslaToken model
func (TeslaToken) TableName() string {
	return "tesla_tokens"
}

// BeforeCreate assigns a UUID primary key when none is set
func (t *TeslaToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsExpired reports whether the access token has passed its expiry.
// A token without a known expiry is assumed to still be valid; the 401
// handling in the wake loop covers that case.
func (t *TeslaToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}
