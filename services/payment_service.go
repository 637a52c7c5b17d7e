package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appConfig "github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/models"
	"gorm.io/gorm"
)

// PaymentService is the payment collaborator: it owns Payment records and
// talks to Mollie. The order core only links the returned records.
type PaymentService interface {
	// CreateOrderPayment creates a payment for an order and returns the
	// stored record (checkout URL included). When status is PAID the
	// provider round-trip is skipped; that path is used by admin-created
	// orders.
	CreateOrderPayment(userID, orderID string, amount float64, status models.PaymentStatus) (*models.Payment, error)

	// FetchPaymentStatus asks the provider for the current status of a
	// payment. Used by the webhook handler.
	FetchPaymentStatus(molliePaymentID string) (models.PaymentStatus, error)

	// Refund requests a full refund of a paid payment
	Refund(paymentID string) error
}

var paymentServiceInstance PaymentService

// GetPaymentService returns the payment service instance
func GetPaymentService() PaymentService {
	return paymentServiceInstance
}

// SetPaymentService sets the payment service instance (primarily for testing)
func SetPaymentService(service PaymentService) {
	paymentServiceInstance = service
}

// MolliePaymentService implements PaymentService against the Mollie v2 API
type MolliePaymentService struct {
	db          *gorm.DB
	apiBase     string
	apiKey      string
	redirectURL string
	webhookURL  string
	httpClient  *http.Client
}

// InitPaymentService initializes the Mollie-backed payment service
func InitPaymentService(db *gorm.DB) PaymentService {
	cfg := appConfig.GetConfig()

	paymentServiceInstance = &MolliePaymentService{
		db:          db,
		apiBase:     "https://api.mollie.com",
		apiKey:      cfg.MollieAPIKey,
		redirectURL: cfg.MollieRedirectURL,
		webhookURL:  cfg.MollieWebhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	return paymentServiceInstance
}

// NewMolliePaymentService creates a Mollie payment service against a custom
// API base (used by tests with a local HTTP server)
func NewMolliePaymentService(db *gorm.DB, apiBase, apiKey string) *MolliePaymentService {
	return &MolliePaymentService{
		db:         db,
		apiBase:    apiBase,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type molliePaymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

// CreateOrderPayment creates the Mollie payment and persists the local record
func (s *MolliePaymentService) CreateOrderPayment(userID, orderID string, amount float64, status models.PaymentStatus) (*models.Payment, error) {
	payment := &models.Payment{
		OrderID: orderID,
		UserID:  userID,
		Amount:  amount,
		Status:  status,
	}

	if status != models.PaymentStatusPaid {
		payment.Status = models.PaymentStatusOpen

		created, err := s.createMolliePayment(orderID, amount)
		if err != nil {
			return nil, err
		}
		payment.MolliePaymentID = created.ID
		payment.CheckoutURL = created.Links.Checkout.Href
	}

	if err := s.db.Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}
	return payment, nil
}

func (s *MolliePaymentService) createMolliePayment(orderID string, amount float64) (*molliePaymentResponse, error) {
	reqBody := map[string]interface{}{
		"amount": map[string]string{
			"currency": "EUR",
			"value":    fmt.Sprintf("%.2f", amount),
		},
		"description": fmt.Sprintf("Cabby reservering %s", orderID),
		"redirectUrl": s.redirectURL,
		"webhookUrl":  s.webhookURL,
		"metadata":    map[string]string{"orderId": orderID},
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, s.apiBase+"/v2/payments", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewUpstreamError(err, "failed to reach payment provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewUpstreamError(nil, "payment provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var created molliePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, NewUpstreamError(err, "failed to decode payment provider response")
	}
	return &created, nil
}

// FetchPaymentStatus fetches the provider-side status of a payment
func (s *MolliePaymentService) FetchPaymentStatus(molliePaymentID string) (models.PaymentStatus, error) {
	req, err := http.NewRequest(http.MethodGet, s.apiBase+"/v2/payments/"+molliePaymentID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", NewUpstreamError(err, "failed to reach payment provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", NewUpstreamError(nil, "payment provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var payment molliePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return "", NewUpstreamError(err, "failed to decode payment provider response")
	}

	switch payment.Status {
	case "paid":
		return models.PaymentStatusPaid, nil
	case "failed", "canceled", "expired":
		return models.PaymentStatusFailed, nil
	default:
		return models.PaymentStatusOpen, nil
	}
}

// Refund requests a full refund for a paid payment
func (s *MolliePaymentService) Refund(paymentID string) error {
	var payment models.Payment
	if err := s.db.First(&payment, "id = ?", paymentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewNotFoundError("payment not found")
		}
		return err
	}
	if payment.Status != models.PaymentStatusPaid {
		return NewValidationError("only paid payments can be refunded")
	}

	reqBody := map[string]interface{}{
		"amount": map[string]string{
			"currency": "EUR",
			"value":    fmt.Sprintf("%.2f", payment.Amount),
		},
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/v2/payments/%s/refunds", s.apiBase, payment.MolliePaymentID),
		bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return NewUpstreamError(err, "failed to reach payment provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return NewUpstreamError(nil, "refund request returned status %d: %s", resp.StatusCode, string(body))
	}

	return s.db.Model(&payment).Update("status", models.PaymentStatusRefunded).Error
}
