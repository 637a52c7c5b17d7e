package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of a rental order (persisted as string)
type OrderStatus string

const (
	OrderStatusUnpaid    OrderStatus = "UNPAID"    // created, awaiting payment
	OrderStatusPending   OrderStatus = "PENDING"   // paid, awaiting admin approval
	OrderStatusConfirmed OrderStatus = "CONFIRMED" // approved, rental window reserved
	OrderStatusRejected  OrderStatus = "REJECTED"  // declined by admin
	OrderStatusCompleted OrderStatus = "COMPLETED" // rental finished
	OrderStatusCanceled  OrderStatus = "CANCELED"  // canceled by user or admin
)

// AllowedTransitions defines the order state machine as a directed graph.
// REJECTED, COMPLETED and CANCELED are terminal.
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusUnpaid:    {OrderStatusPending, OrderStatusConfirmed, OrderStatusRejected, OrderStatusCanceled},
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusRejected, OrderStatusCanceled},
	OrderStatusConfirmed: {OrderStatusCompleted, OrderStatusCanceled},
	OrderStatusRejected:  {},
	OrderStatusCompleted: {},
	OrderStatusCanceled:  {},
}

// CanTransition reports whether from -> to is an allowed status change.
// A no-op transition (from == to) is always allowed.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Order represents a single rental booking for one vehicle and one user
// over a time window. Status and StopRentDate are written only by the order
// service; IsVehicleUnlocked only by the Tesla command service.
type Order struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	UserID    string `gorm:"size:36;not null;index" json:"user_id"`
	User      User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	VehicleID string `gorm:"size:36;not null;index" json:"vehicle_id"`
	Vehicle   Vehicle `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`

	Status            OrderStatus `gorm:"type:varchar(16);not null;default:'UNPAID';index" json:"status"`
	RentalStartDate   time.Time   `gorm:"not null;index" json:"rental_start_date"`
	RentalEndDate     time.Time   `gorm:"not null;index" json:"rental_end_date"`
	StopRentDate      *time.Time  `json:"stop_rent_date"`
	TotalAmount       float64     `gorm:"not null;default:0" json:"total_amount"` // VAT included
	PaymentID         *string     `gorm:"size:36;index" json:"payment_id"`
	Payment           *Payment    `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	IsVehicleUnlocked bool        `gorm:"not null;default:false" json:"is_vehicle_unlocked"`

	Rejection *OrderRejection `gorm:"foreignKey:OrderID" json:"rejection,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns a UUID primary key when none is set
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// IsOverdue reports whether the rental window has elapsed without an
// explicit completion.
func (o *Order) IsOverdue(now time.Time) bool {
	return o.Status == OrderStatusConfirmed && o.RentalEndDate.Before(now)
}

// OrderRejection records the reason an order was rejected. One row per
// order; rejecting again updates the reason in place.
type OrderRejection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   string    `gorm:"uniqueIndex;size:36;not null" json:"order_id"`
	Reason    string    `gorm:"not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the OrderRejection model
func (OrderRejection) TableName() string {
	return "order_rejections"
}
