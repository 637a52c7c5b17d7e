package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/cabby-rentals/cabby-api/models"
	"github.com/cabby-rentals/cabby-api/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportService builds the admin exports: invoice listings and the Excel
// rental report
type ReportService struct {
	db *gorm.DB
}

var reportServiceInstance *ReportService

// InitReportService initializes the report service
func InitReportService(db *gorm.DB) *ReportService {
	reportServiceInstance = NewReportService(db)
	return reportServiceInstance
}

// GetReportService returns the report service instance
func GetReportService() *ReportService {
	return reportServiceInstance
}

// SetReportService sets the report service instance (primarily for testing)
func SetReportService(s *ReportService) {
	reportServiceInstance = s
}

// NewReportService creates a report service on the given database
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// Invoice is one row of the invoice listing
type Invoice struct {
	OrderID    string    `json:"order_id"`
	UserName   string    `json:"user_name"`
	Amount     float64   `json:"amount"`
	InvoiceURL string    `json:"invoice_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// InvoiceURLsForRange lists the invoice links of paid payments whose order
// started inside the given range
func (s *ReportService) InvoiceURLsForRange(from, to time.Time) ([]Invoice, error) {
	var orders []models.Order
	err := s.db.Preload("User").Preload("Payment").
		Joins("JOIN payments ON payments.id = orders.payment_id").
		Where("payments.status = ?", models.PaymentStatusPaid).
		Where("orders.rental_start_date >= ? AND orders.rental_start_date <= ?", from, to).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	invoices := make([]Invoice, 0, len(orders))
	for _, order := range orders {
		if order.Payment == nil || order.Payment.InvoiceURL == nil {
			continue
		}
		invoices = append(invoices, Invoice{
			OrderID:    order.ID,
			UserName:   order.User.FullName,
			Amount:     order.Payment.Amount,
			InvoiceURL: *order.Payment.InvoiceURL,
			CreatedAt:  order.Payment.CreatedAt,
		})
	}
	return invoices, nil
}

// OrdersExcelForRange builds the rental report spreadsheet for orders
// starting inside the given range and returns the xlsx bytes
func (s *ReportService) OrdersExcelForRange(from, to time.Time) ([]byte, error) {
	var orders []models.Order
	err := s.db.Preload("User").Preload("Vehicle").
		Where("rental_start_date >= ? AND rental_start_date <= ?", from, to).
		Order("rental_start_date asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Data"
	index, err := file.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create report sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{"Bestuurders", "Auto", "Begin datum", "Eind datum", "Duur", "Prijs"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}
	if err := file.SetColWidth(sheet, "A", "F", 20); err != nil {
		return nil, err
	}

	for i, order := range orders {
		row := i + 2
		vehicleName := fmt.Sprintf("%s %s", order.Vehicle.CompanyName, order.Vehicle.Model)

		end := order.RentalEndDate
		if order.StopRentDate != nil {
			end = *order.StopRentDate
		}

		values := []interface{}{
			order.User.FullName,
			vehicleName,
			utils.DateTimeFormat(order.RentalStartDate),
			utils.DateTimeFormat(end),
			utils.FormatDuration(order.RentalStartDate, end),
			order.TotalAmount,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	return buffer.Bytes(), nil
}
