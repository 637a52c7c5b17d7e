package services

import (
	"context"
	"fmt"

	"github.com/cabby-rentals/cabby-api/models"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OrderEventKind identifies a completed order state transition
type OrderEventKind string

const (
	OrderEventConfirmed OrderEventKind = "order.confirmed"
	OrderEventCanceled  OrderEventKind = "order.canceled"
	OrderEventCompleted OrderEventKind = "order.completed"
)

// OrderEvent is emitted by the order service after a state change has been
// persisted. Consumers deliver mail and push; their failures never affect
// the already-committed transition.
type OrderEvent struct {
	Kind    OrderEventKind
	OrderID string
}

// EventDispatcher consumes order events asynchronously and fans them out to
// mail and push. The channel is buffered; when it is full the event is
// dropped with an error log rather than blocking the request.
type EventDispatcher struct {
	db     *gorm.DB
	events chan OrderEvent
}

var eventDispatcherInstance *EventDispatcher

// InitEventDispatcher initializes the event dispatcher
func InitEventDispatcher(db *gorm.DB) *EventDispatcher {
	eventDispatcherInstance = NewEventDispatcher(db)
	return eventDispatcherInstance
}

// GetEventDispatcher returns the event dispatcher instance
func GetEventDispatcher() *EventDispatcher {
	return eventDispatcherInstance
}

// SetEventDispatcher sets the event dispatcher instance (primarily for testing)
func SetEventDispatcher(d *EventDispatcher) {
	eventDispatcherInstance = d
}

// NewEventDispatcher creates a dispatcher on the given database
func NewEventDispatcher(db *gorm.DB) *EventDispatcher {
	return &EventDispatcher{
		db:     db,
		events: make(chan OrderEvent, 64),
	}
}

// Emit queues an event for asynchronous delivery
func (d *EventDispatcher) Emit(event OrderEvent) {
	select {
	case d.events <- event:
	default:
		logrus.Errorf("event queue full, dropping %s for order %s", event.Kind, event.OrderID)
	}
}

// Run consumes queued events until the context is canceled
func (d *EventDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			if err := d.Dispatch(ctx, event); err != nil {
				logrus.Errorf("failed to dispatch %s for order %s: %v", event.Kind, event.OrderID, err)
			}
		}
	}
}

// Dispatch delivers the side effects of one event synchronously. Exposed so
// tests can drive the dispatcher without the Run loop.
func (d *EventDispatcher) Dispatch(ctx context.Context, event OrderEvent) error {
	var order models.Order
	if err := d.db.Preload("User").Preload("Vehicle").First(&order, "id = ?", event.OrderID).Error; err != nil {
		return fmt.Errorf("failed to load order %s: %w", event.OrderID, err)
	}

	switch event.Kind {
	case OrderEventConfirmed:
		d.dispatchConfirmed(ctx, &order)
	case OrderEventCanceled:
		d.dispatchCanceled(&order)
	case OrderEventCompleted:
		d.dispatchCompleted(&order)
	default:
		logrus.Warnf("unknown order event kind %q", event.Kind)
	}
	return nil
}

func (d *EventDispatcher) dispatchConfirmed(ctx context.Context, order *models.Order) {
	// Collect presigned links for the vehicle paperwork
	documentURLs := []string{}
	if store := GetDocumentStore(); store != nil {
		keys := append([]string{}, order.Vehicle.InsuranceCertificateKeys...)
		keys = append(keys, order.Vehicle.RegistrationCertificateKeys...)
		for _, key := range keys {
			url, err := store.PresignedURL(key)
			if err != nil {
				logrus.Errorf("failed to presign document %s: %v", key, err)
				continue
			}
			documentURLs = append(documentURLs, url)
		}
	}

	if err := SendOrderConfirmedMail(order.User.Email, order.User.FullName, documentURLs); err != nil {
		logrus.Errorf("confirmation mail failed for order %s: %v", order.ID, err)
	}

	if notifications := GetNotificationService(); notifications != nil {
		content := fmt.Sprintf("Reservering voor de %s %s is bevestigd, bereid je reis voor!",
			order.Vehicle.CompanyName, order.Vehicle.Model)
		if _, err := notifications.NotifyOnce(ctx, models.NotificationOrderConfirmed, order.UserID, &order.ID,
			"Reservering bevestigd", content); err != nil {
			logrus.Errorf("confirmation notification failed for order %s: %v", order.ID, err)
		}
	}
}

func (d *EventDispatcher) dispatchCanceled(order *models.Order) {
	if err := SendRentCanceledMail(order.User.Email, order.User.FullName); err != nil {
		logrus.Errorf("cancellation mail failed for order %s: %v", order.ID, err)
	}
	if err := SendRentCanceledAdminMail(order.User.FullName, order.VehicleID); err != nil {
		logrus.Errorf("admin cancellation mail failed for order %s: %v", order.ID, err)
	}
}

func (d *EventDispatcher) dispatchCompleted(order *models.Order) {
	if err := SendRentCompletedMail(order.User.Email, order.User.FullName); err != nil {
		logrus.Errorf("completion mail failed for order %s: %v", order.ID, err)
	}
}
