package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/cabby-rentals/cabby-api/models"
	"github.com/cabby-rentals/cabby-api/utils"
)

func attachPayment(t *testing.T, db *gorm.DB, order *models.Order, status models.PaymentStatus, invoiceURL *string) *models.Payment {
	t.Helper()

	payment := &models.Payment{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		UserID:     order.UserID,
		Amount:     order.TotalAmount,
		Status:     status,
		InvoiceURL: invoiceURL,
	}
	require.NoError(t, db.Create(payment).Error)
	require.NoError(t, db.Model(order).Update("payment_id", payment.ID).Error)
	return payment
}

func TestInvoiceURLsForRange(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)

	user := createTestUser(t, db, models.RoleUser)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	url := "https://mollie.test/invoices/inv-1"
	paid := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusCompleted,
		from.Add(48*time.Hour), from.Add(56*time.Hour))
	attachPayment(t, db, paid, models.PaymentStatusPaid, &url)

	// paid but without an invoice link yet
	pending := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusCompleted,
		from.Add(96*time.Hour), from.Add(100*time.Hour))
	attachPayment(t, db, pending, models.PaymentStatusPaid, nil)

	// open payment, never invoiced
	open := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusUnpaid,
		from.Add(120*time.Hour), from.Add(124*time.Hour))
	attachPayment(t, db, open, models.PaymentStatusOpen, &url)

	// paid, but the rental started outside the range
	outside := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusCompleted,
		to.Add(24*time.Hour), to.Add(30*time.Hour))
	attachPayment(t, db, outside, models.PaymentStatusPaid, &url)

	invoices, err := svc.InvoiceURLsForRange(from, to)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, paid.ID, invoices[0].OrderID)
	assert.Equal(t, user.FullName, invoices[0].UserName)
	assert.Equal(t, paid.TotalAmount, invoices[0].Amount)
	assert.Equal(t, url, invoices[0].InvoiceURL)
}

func TestOrdersExcelForRange(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)

	user := createTestUser(t, db, models.RoleUser)
	vehicle := createTestVehicle(t, db, models.VehicleStatusActive)

	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC)

	start := from.Add(24 * time.Hour)
	order := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusCompleted,
		start, start.Add(8*time.Hour))

	// stopped early, the report uses the actual stop time
	stoppedStart := from.Add(72 * time.Hour)
	stopped := createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusCompleted,
		stoppedStart, stoppedStart.Add(8*time.Hour))
	stopTime := stoppedStart.Add(3 * time.Hour)
	require.NoError(t, db.Model(stopped).Update("stop_rent_date", stopTime).Error)

	createTestOrder(t, db, user.ID, vehicle.ID, models.OrderStatusCompleted,
		to.Add(24*time.Hour), to.Add(30*time.Hour))

	data, err := svc.OrdersExcelForRange(from, to)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	file, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Bestuurders", "Auto", "Begin datum", "Eind datum", "Duur", "Prijs"}, rows[0])

	assert.Equal(t, user.FullName, rows[1][0])
	assert.Equal(t, "Tesla Model 3", rows[1][1])
	assert.Equal(t, utils.DateTimeFormat(order.RentalStartDate), rows[1][2])
	assert.Equal(t, utils.FormatDuration(order.RentalStartDate, order.RentalEndDate), rows[1][4])

	assert.Equal(t, utils.DateTimeFormat(stopTime), rows[2][3])
	assert.Equal(t, utils.FormatDuration(stopped.RentalStartDate, stopTime), rows[2][4])
}

func TestOrdersExcelForRangeEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)

	data, err := svc.OrdersExcelForRange(time.Now(), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	file, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
