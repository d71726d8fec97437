package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Charge mirrors the charges table.
type Charge struct {
	ChargeID      string         `gorm:"type:uuid;primaryKey"`
	AmountSat     int64          `gorm:"not null"`
	Description   string         `gorm:""`
	WebhookURL    *string        `gorm:""`
	Status        string         `gorm:"not null;index:idx_charges_status"`
	WebhookStatus string         `gorm:"not null"`
	PaymentHash   string         `gorm:"not null;index:uniq_charges_payment_hash,unique"`
	Invoice       string         `gorm:"not null"`
	Metadata      datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func (Charge) TableName() string { return "charges" }

func (charge *Charge) BeforeCreate(tx *gorm.DB) error {
	if charge.ChargeID == "" {
		charge.ChargeID = uuid.NewString()
	}
	return nil
}

// APIKey mirrors the api_keys table holding merchant bearer tokens.
type APIKey struct {
	Key       string    `gorm:"primaryKey"`
	Label     string    `gorm:""`
	IsActive  bool      `gorm:"not null;index:idx_api_keys_active"`
	CreatedAt time.Time `gorm:"not null"`
}

func (APIKey) TableName() string { return "api_keys" }
