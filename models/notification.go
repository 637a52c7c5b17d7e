package models

import "time"

// NotificationEvent identifies what triggered a notification
type NotificationEvent string

const (
	NotificationOrderWillStart  NotificationEvent = "ORDER_WILL_START"
	NotificationOrderWillEnd    NotificationEvent = "ORDER_WILL_END"
	NotificationOrderConfirmed  NotificationEvent = "ORDER_CONFIRMED"
	NotificationOrderCanceled   NotificationEvent = "ORDER_CANCELED"
	NotificationOrderCompleted  NotificationEvent = "ORDER_COMPLETED"
	NotificationFreeHours       NotificationEvent = "FREE_HOURS"
	NotificationHolidayReminder NotificationEvent = "HOLIDAY_REMINDER"
)

// Notification is an in-app notification row. Generation is idempotent per
// (event, user, param): the generators check for an existing row before
// inserting, so a reminder is produced at most once per order.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Event     NotificationEvent `gorm:"type:varchar(32);not null;index" json:"event"`
	UserID    string            `gorm:"size:36;not null;index" json:"user_id"`
	Param     *string           `gorm:"size:36" json:"param"` // usually the order ID
	Title     string            `gorm:"not null" json:"title"`
	Content   string            `gorm:"not null" json:"content"`
	ClosedAt  *time.Time        `json:"closed_at"`
	CreatedAt time.Time         `json:"created_at"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}
