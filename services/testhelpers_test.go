package services

import (
	"testing"
	"time"

	"github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory database with all models migrated
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.UserDeviceToken{},
		&models.Vehicle{},
		&models.Order{},
		&models.OrderRejection{},
		&models.Payment{},
		&models.TeslaToken{},
		&models.Notification{},
	)
	require.NoError(t, err)

	config.SetDB(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	user := &models.User{
		Auth0ID:  "auth0|" + role + "-" + time.Now().Format("150405.000000000"),
		FullName: "Test " + role,
		Email:    role + time.Now().Format("150405.000000000") + "@test.com",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestVehicle(t *testing.T, db *gorm.DB, status models.VehicleStatus) *models.Vehicle {
	t.Helper()

	vehicle := &models.Vehicle{
		CompanyName:  "Tesla",
		Model:        "Model 3",
		LicensePlate: "AB-123-C",
		VIN:          "5YJ3E1EA7KF000000",
		Status:       status,
		Timeframes:   models.Timeframes{{4, 50}, {8, 80}, {24, 120}},
		PricePerDay:  120,
	}
	require.NoError(t, db.Create(vehicle).Error)
	return vehicle
}

func createTestOrder(t *testing.T, db *gorm.DB, userID, vehicleID string, status models.OrderStatus, start, end time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		UserID:          userID,
		VehicleID:       vehicleID,
		Status:          status,
		RentalStartDate: start,
		RentalEndDate:   end,
		TotalAmount:     145.20,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}
