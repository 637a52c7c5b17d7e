package services

import (
	"testing"
	"time"

	"github.com/cabby-rentals/cabby-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVehicleAvailable_NoBookings(t *testing.T) {
	db := newTestDB(t)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)
	svc := NewAvailabilityService(db)

	start := time.Now().Add(24 * time.Hour)
	available, err := svc.IsVehicleAvailable(vehicle.ID, start, start.Add(4*time.Hour))
	require.NoError(t, err)
	assert.True(t, available)
}

func TestIsVehicleAvailable_OverlappingConfirmedOrder(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, models.RoleUser)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)
	svc := NewAvailabilityService(db)

	start := time.Now().Add(24 * time.Hour)
	end := start.Add(8 * time.Hour)
	createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusConfirmed, start, end)

	// Window fully inside the booking
	available, err := svc.IsVehicleAvailable(vehicle.ID, start.Add(time.Hour), start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, available)

	// Window straddling the booking end
	available, err = svc.IsVehicleAvailable(vehicle.ID, end.Add(-time.Hour), end.Add(4*time.Hour))
	require.NoError(t, err)
	assert.False(t, available)
}

func TestIsVehicleAvailable_BufferBlocksBackToBack(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, models.RoleUser)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)
	svc := NewAvailabilityService(db)

	start := time.Now().Add(24 * time.Hour)
	end := start.Add(8 * time.Hour)
	createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusConfirmed, start, end)

	// Starting exactly at the booking end falls inside the handover buffer
	available, err := svc.IsVehicleAvailable(vehicle.ID, end, end.Add(4*time.Hour))
	require.NoError(t, err)
	assert.False(t, available)

	// Starting past the buffer is fine
	available, err = svc.IsVehicleAvailable(vehicle.ID, end.Add(AvailabilityBuffer+time.Minute), end.Add(5*time.Hour))
	require.NoError(t, err)
	assert.True(t, available)
}

func TestIsVehicleAvailable_IgnoresNonConfirmedOrders(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, models.RoleUser)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)
	svc := NewAvailabilityService(db)

	start := time.Now().Add(24 * time.Hour)
	end := start.Add(8 * time.Hour)
	for _, status := range []models.OrderStatus{
		models.OrderStatusUnpaid,
		models.OrderStatusPending,
		models.OrderStatusRejected,
		models.OrderStatusCanceled,
		models.OrderStatusCompleted,
	} {
		createTestOrder(t, db, user.ID, vehicle.ID, status, start, end)
	}

	available, err := svc.IsVehicleAvailable(vehicle.ID, start, end)
	require.NoError(t, err)
	assert.True(t, available)
}

func TestIsVehicleAvailable_InactiveOrMissingVehicle(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	start := time.Now().Add(24 * time.Hour)

	for _, status := range []models.VehicleStatus{models.VehicleStatusPending, models.VehicleStatusBlocked} {
		vehicle := createTestVehicle(t, db, status)
		available, err := svc.IsVehicleAvailable(vehicle.ID, start, start.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, available, "vehicle in status %s must not be bookable", status)
	}

	available, err := svc.IsVehicleAvailable("missing-id", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, available)
}

func TestIsVehicleAvailableTx_ExcludesOwnOrder(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, models.RoleUser)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)
	svc := NewAvailabilityService(db)

	start := time.Now().Add(24 * time.Hour)
	end := start.Add(8 * time.Hour)
	order := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusConfirmed, start, end)

	// The order's own window conflicts with itself unless excluded
	available, err := svc.IsVehicleAvailableTx(db, vehicle.ID, start, end, order.ID)
	require.NoError(t, err)
	assert.True(t, available)

	available, err = svc.IsVehicleAvailableTx(db, vehicle.ID, start, end, "")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestBookedPeriods(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, models.RoleUser)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)
	svc := NewAvailabilityService(db)

	now := time.Now()
	// Future booking, listed
	later := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusConfirmed,
		now.Add(72*time.Hour), now.Add(80*time.Hour))
	sooner := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusConfirmed,
		now.Add(24*time.Hour), now.Add(30*time.Hour))
	// Already ended, not listed
	createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusConfirmed,
		now.Add(-48*time.Hour), now.Add(-40*time.Hour))
	// Pending, not listed
	createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusPending,
		now.Add(100*time.Hour), now.Add(110*time.Hour))

	periods, err := svc.BookedPeriods(vehicle.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	assert.WithinDuration(t, sooner.RentalStartDate, periods[0].From, time.Second)
	assert.WithinDuration(t, later.RentalStartDate, periods[1].From, time.Second)
}
