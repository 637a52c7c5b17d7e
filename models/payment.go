package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus mirrors the payment provider's status values
type PaymentStatus string

const (
	PaymentStatusOpen     PaymentStatus = "OPEN"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Payment links an order to a Mollie payment. Owned by the payment
// service; the order core only references it.
type Payment struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	OrderID         string        `gorm:"size:36;index" json:"order_id"`
	UserID          string        `gorm:"size:36;index" json:"user_id"`
	Amount          float64       `gorm:"not null" json:"amount"`
	Status          PaymentStatus `gorm:"type:varchar(16);not null;default:'OPEN';index" json:"status"`
	MolliePaymentID string        `gorm:"index" json:"mollie_payment_id"`
	CheckoutURL     string        `json:"checkout_url"`
	InvoiceURL      *string       `json:"invoice_url"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate assigns a UUID primary key when none is set
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
