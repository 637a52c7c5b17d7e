package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/models"
)

type dispatcherFixture struct {
	db         *gorm.DB
	dispatcher *EventDispatcher
	mail       *MockMailSender
	push       *MockPushSender
	docs       *MockDocumentStore
	user       *models.User
	order      *models.Order
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	db := newTestDB(t)
	config.SetConfig(&config.Config{AdminEmail: "ops@cabby.test"})

	mail := NewMockMailSender()
	mail.SetAsMockForTesting()
	push := NewMockPushSender()
	push.SetAsMockForTesting()
	docs := NewMockDocumentStore()
	docs.SetAsMockForTesting()
	SetNotificationService(NewNotificationService(db))

	user := createTestUser(t, db, models.RoleUser)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)
	start := time.Now().Add(24 * time.Hour)
	order := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusConfirmed, start, start.Add(8*time.Hour))

	return &dispatcherFixture{
		db:         db,
		dispatcher: NewEventDispatcher(db),
		mail:       mail,
		push:       push,
		docs:       docs,
		user:       user,
		order:      order,
	}
}

func TestDispatchConfirmedSendsMailAndNotification(t *testing.T) {
	f := newDispatcherFixture(t)

	require.NoError(t, f.docs.Upload("vehicles/v1/insurance/cert.pdf", []byte("pdf"), "application/pdf"))
	require.NoError(t, f.db.Model(&models.Vehicle{}).
		Where("id = ?", f.order.VehicleID).
		Update("insurance_certificate_keys", models.StringList{"vehicles/v1/insurance/cert.pdf"}).Error)

	err := f.dispatcher.Dispatch(context.Background(), OrderEvent{Kind: OrderEventConfirmed, OrderID: f.order.ID})
	require.NoError(t, err)

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, f.user.Email, sent[0].To)
	assert.Contains(t, sent[0].Body, f.user.FullName)
	assert.Contains(t, sent[0].Body, "vehicles/v1/insurance/cert.pdf")

	var notification models.Notification
	require.NoError(t, f.db.First(&notification).Error)
	assert.Equal(t, models.NotificationOrderConfirmed, notification.Event)
	assert.Equal(t, f.user.ID, notification.UserID)
}

func TestDispatchConfirmedIsIdempotentPerOrder(t *testing.T) {
	f := newDispatcherFixture(t)

	event := OrderEvent{Kind: OrderEventConfirmed, OrderID: f.order.ID}
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), event))
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), event))

	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDispatchCanceledMailsUserAndAdmin(t *testing.T) {
	f := newDispatcherFixture(t)

	err := f.dispatcher.Dispatch(context.Background(), OrderEvent{Kind: OrderEventCanceled, OrderID: f.order.ID})
	require.NoError(t, err)

	sent := f.mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, f.user.Email, sent[0].To)
	assert.Equal(t, "ops@cabby.test", sent[1].To)
	assert.Contains(t, sent[1].Body, f.user.FullName)
}

func TestDispatchCanceledSkipsAdminMailWithoutAddress(t *testing.T) {
	f := newDispatcherFixture(t)
	config.SetConfig(&config.Config{})

	err := f.dispatcher.Dispatch(context.Background(), OrderEvent{Kind: OrderEventCanceled, OrderID: f.order.ID})
	require.NoError(t, err)
	require.Len(t, f.mail.Sent(), 1)
}

func TestDispatchCompletedMailsUser(t *testing.T) {
	f := newDispatcherFixture(t)

	err := f.dispatcher.Dispatch(context.Background(), OrderEvent{Kind: OrderEventCompleted, OrderID: f.order.ID})
	require.NoError(t, err)

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "Bedankt voor het huren bij Cabby")
}

func TestDispatchUnknownOrder(t *testing.T) {
	f := newDispatcherFixture(t)

	err := f.dispatcher.Dispatch(context.Background(), OrderEvent{Kind: OrderEventConfirmed, OrderID: "missing"})
	require.Error(t, err)
}

func TestEmitDropsWhenQueueIsFull(t *testing.T) {
	f := newDispatcherFixture(t)

	for i := 0; i < 100; i++ {
		f.dispatcher.Emit(OrderEvent{Kind: OrderEventConfirmed, OrderID: f.order.ID})
	}
	// the buffer holds 64, the rest must be dropped without blocking
	assert.Len(t, f.dispatcher.events, 64)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newDispatcherFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.dispatcher.Run(ctx)
		close(done)
	}()

	f.dispatcher.Emit(OrderEvent{Kind: OrderEventCompleted, OrderID: f.order.ID})

	require.Eventually(t, func() bool {
		return len(f.mail.Sent()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
