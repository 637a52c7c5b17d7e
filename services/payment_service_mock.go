package services

import (
	"sync"

	"github.com/cabby-rentals/cabby-api/models"
	"gorm.io/gorm"
)

// MockPaymentService is an in-memory PaymentService for testing
type MockPaymentService struct {
	db *gorm.DB
	mu sync.Mutex

	// StatusByMollieID configures what FetchPaymentStatus reports
	StatusByMollieID map[string]models.PaymentStatus

	// CreateErr, when set, is returned from CreateOrderPayment
	CreateErr error

	refunded []string
}

// NewMockPaymentService creates a mock payment service persisting records
// in the given (test) database
func NewMockPaymentService(db *gorm.DB) *MockPaymentService {
	return &MockPaymentService{
		db:               db,
		StatusByMollieID: make(map[string]models.PaymentStatus),
	}
}

// SetAsMockForTesting sets this mock as the global payment service instance
func (m *MockPaymentService) SetAsMockForTesting() {
	SetPaymentService(m)
}

// CreateOrderPayment stores a payment record with a fake checkout URL
func (m *MockPaymentService) CreateOrderPayment(userID, orderID string, amount float64, status models.PaymentStatus) (*models.Payment, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	if status == "" {
		status = models.PaymentStatusOpen
	}
	payment := &models.Payment{
		OrderID:         orderID,
		UserID:          userID,
		Amount:          amount,
		Status:          status,
		MolliePaymentID: "tr_mock_" + orderID,
		CheckoutURL:     "https://checkout.mollie.test/" + orderID,
	}
	if err := m.db.Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// FetchPaymentStatus returns the configured status, defaulting to OPEN
func (m *MockPaymentService) FetchPaymentStatus(molliePaymentID string) (models.PaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status, ok := m.StatusByMollieID[molliePaymentID]; ok {
		return status, nil
	}
	return models.PaymentStatusOpen, nil
}

// Refund records the refund request
func (m *MockPaymentService) Refund(paymentID string) error {
	m.mu.Lock()
	m.refunded = append(m.refunded, paymentID)
	m.mu.Unlock()
	return nil
}

// Refunded returns the payment IDs passed to Refund
func (m *MockPaymentService) Refunded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.refunded))
	copy(out, m.refunded)
	return out
}
