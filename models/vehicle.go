package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VehicleStatus is the fleet status of a vehicle
type VehicleStatus string

const (
	VehicleStatusActive  VehicleStatus = "ACTIVE"
	VehicleStatusPending VehicleStatus = "PENDING"
	VehicleStatusBlocked VehicleStatus = "BLOCKED"
)

// Timeframes is an ordered list of [durationThresholdHours, price] rate
// brackets, stored as a JSON column. Brackets must be sorted by ascending
// threshold; the pricing service picks the first one covering the rental.
type Timeframes [][2]float64

// Value implements driver.Valuer for JSON column storage
func (t Timeframes) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON column storage
func (t *Timeframes) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported timeframes column type %T", value)
	}
}

// Vehicle represents a rentable vehicle. Read-only from the order core's
// perspective; only the admin vehicle endpoints mutate it.
type Vehicle struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	CompanyName  string        `json:"company_name"`
	Model        string        `json:"model"`
	LicensePlate string        `json:"license_plate"`
	VIN          string        `gorm:"column:vin" json:"vin"`
	Status       VehicleStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	Timeframes   Timeframes    `gorm:"type:text" json:"timeframes"`
	PricePerDay  float64       `gorm:"not null;default:0" json:"price_per_day"`

	// S3 keys of the vehicle paperwork sent along with a confirmation mail
	InsuranceCertificateKeys    StringList `gorm:"type:text" json:"insurance_certificate_keys"`
	RegistrationCertificateKeys StringList `gorm:"type:text" json:"registration_certificate_keys"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Vehicle model
func (Vehicle) TableName() string {
	return "vehicles"
}

// BeforeCreate assigns a UUID primary key when none is set
func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// StringList is a JSON-encoded list of strings stored in a text column
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported string list column type %T", value)
	}
}
