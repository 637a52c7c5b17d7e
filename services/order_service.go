package services

import (
	"fmt"
	"time"

	"github.com/cabby-rentals/cabby-api/models"
	"github.com/cabby-rentals/cabby-api/utils"
	"gorm.io/gorm"
)

// MaxActiveOrders is the cap on simultaneous CONFIRMED or PENDING orders
// per user
const MaxActiveOrders = 2

// AdminOrderAmount is the nominal charge for admin-created orders
const AdminOrderAmount = 0.01

// OrderService owns every order status and stopRentDate write. Mail and
// push side effects go through the event dispatcher after the state change
// is persisted; their failure never rolls a transition back.
type OrderService struct {
	db           *gorm.DB
	availability *AvailabilityService
}

var orderServiceInstance *OrderService

// InitOrderService initializes the order service
func InitOrderService(db *gorm.DB) *OrderService {
	orderServiceInstance = NewOrderService(db)
	return orderServiceInstance
}

// GetOrderService returns the order service instance
func GetOrderService() *OrderService {
	return orderServiceInstance
}

// SetOrderService sets the order service instance (primarily for testing)
func SetOrderService(s *OrderService) {
	orderServiceInstance = s
}

// NewOrderService creates an order service on the given database
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{
		db:           db,
		availability: NewAvailabilityService(db),
	}
}

// CreateOrder books a vehicle for a user. The order starts UNPAID with a
// linked Mollie payment; the returned checkout URL completes the payment.
func (s *OrderService) CreateOrder(userID, vehicleID string, start, end time.Time) (*models.Order, string, error) {
	var activeOrPending int64
	err := s.db.Model(&models.Order{}).
		Where("user_id = ?", userID).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusPending}).
		Count(&activeOrPending).Error
	if err != nil {
		return nil, "", err
	}
	if activeOrPending >= MaxActiveOrders {
		return nil, "", NewValidationError("You can have only 2 active or pending orders at max.")
	}

	var vehicle models.Vehicle
	if err := s.db.First(&vehicle, "id = ?", vehicleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", NewNotFoundError("no vehicle found")
		}
		return nil, "", err
	}

	amount := CalculateOrderPrice(start, end, vehicle.Timeframes, vehicle.PricePerDay)
	totalAmount := amount * VATMultiplier

	order := &models.Order{
		UserID:          userID,
		VehicleID:       vehicleID,
		Status:          models.OrderStatusUnpaid,
		RentalStartDate: start,
		RentalEndDate:   end,
		TotalAmount:     totalAmount,
	}
	if err := s.db.Create(order).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create order: %w", err)
	}

	payment, err := GetPaymentService().CreateOrderPayment(userID, order.ID, totalAmount, "")
	if err != nil {
		return nil, "", err
	}
	if err := s.db.Model(order).Update("payment_id", payment.ID).Error; err != nil {
		return nil, "", err
	}
	order.PaymentID = &payment.ID

	return order, payment.CheckoutURL, nil
}

// CreateOrderAdmin books a vehicle on behalf of a user, born CONFIRMED with
// a nominal pre-paid payment
func (s *OrderService) CreateOrderAdmin(userID, vehicleID string, start, end time.Time) (*models.Order, error) {
	var vehicle models.Vehicle
	if err := s.db.First(&vehicle, "id = ?", vehicleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewNotFoundError("no vehicle found")
		}
		return nil, err
	}

	order := &models.Order{
		UserID:          userID,
		VehicleID:       vehicleID,
		Status:          models.OrderStatusConfirmed,
		RentalStartDate: start,
		RentalEndDate:   end,
		TotalAmount:     AdminOrderAmount,
	}
	if err := s.db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	payment, err := GetPaymentService().CreateOrderPayment(userID, order.ID, AdminOrderAmount, models.PaymentStatusPaid)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(order).Update("payment_id", payment.ID).Error; err != nil {
		return nil, err
	}
	order.PaymentID = &payment.ID

	return order, nil
}

// HandlePaymentWebhook processes a Mollie webhook ping: it fetches the
// provider-side status and, on payment, moves the order from UNPAID to
// PENDING (admin approval follows separately).
func (s *OrderService) HandlePaymentWebhook(molliePaymentID string) error {
	var payment models.Payment
	if err := s.db.First(&payment, "mollie_payment_id = ?", molliePaymentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewNotFoundError("payment not found")
		}
		return err
	}

	status, err := GetPaymentService().FetchPaymentStatus(molliePaymentID)
	if err != nil {
		return err
	}
	if err := s.db.Model(&payment).Update("status", status).Error; err != nil {
		return err
	}

	if status != models.PaymentStatusPaid {
		return nil
	}

	var order models.Order
	if err := s.db.First(&order, "id = ?", payment.OrderID).Error; err != nil {
		return err
	}
	if order.Status != models.OrderStatusUnpaid {
		return nil
	}
	return s.db.Model(&order).Update("status", models.OrderStatusPending).Error
}

// ConfirmOrder approves an order. The time slot is re-validated inside the
// transaction so two bookings racing for the same slot cannot both confirm.
func (s *OrderService) ConfirmOrder(orderID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return NewNotFoundError("order not found")
			}
			return err
		}
		if order.Status == models.OrderStatusConfirmed {
			return nil
		}
		if !models.CanTransition(order.Status, models.OrderStatusConfirmed) {
			return NewValidationError("order cannot be confirmed from status %s", order.Status)
		}

		available, err := s.availability.IsVehicleAvailableTx(tx, order.VehicleID,
			order.RentalStartDate, order.RentalEndDate, order.ID)
		if err != nil {
			return err
		}
		if !available {
			return NewValidationError("vehicle is no longer available for this timeslot")
		}

		return tx.Model(&order).Update("status", models.OrderStatusConfirmed).Error
	})
	if err != nil {
		return err
	}

	s.emit(OrderEvent{Kind: OrderEventConfirmed, OrderID: orderID})
	return nil
}

// CompleteOrder finishes a CONFIRMED rental. The caller must own the order
// or be an admin.
func (s *OrderService) CompleteOrder(orderID string, caller *models.User) error {
	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewNotFoundError("order not found")
		}
		return err
	}

	if order.Status != models.OrderStatusConfirmed {
		return NewValidationError("order is not in CONFIRMED status")
	}
	if caller != nil && order.UserID != caller.ID && !caller.IsAdmin() {
		return NewUnauthorizedError("not authorized to complete this order")
	}

	now := time.Now()
	err := s.db.Model(&order).Updates(map[string]interface{}{
		"status":         models.OrderStatusCompleted,
		"stop_rent_date": now,
	}).Error
	if err != nil {
		return err
	}

	s.emit(OrderEvent{Kind: OrderEventCompleted, OrderID: orderID})
	return nil
}

// StopOrder ends the rental clock. An overdue order (rental window already
// elapsed) keeps its CONFIRMED status and only gets stopRentDate set, so the
// overage can be billed separately; otherwise the order completes.
func (s *OrderService) StopOrder(orderID string) error {
	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewNotFoundError("order not found")
		}
		return err
	}

	now := time.Now()
	isOverdue := order.RentalEndDate.Before(now)

	updates := map[string]interface{}{"stop_rent_date": now}
	if !isOverdue {
		if !models.CanTransition(order.Status, models.OrderStatusCompleted) {
			return NewValidationError("order cannot be completed from status %s", order.Status)
		}
		updates["status"] = models.OrderStatusCompleted
	}

	return s.db.Model(&order).Updates(updates).Error
}

// CancelOrder cancels a booking. Admins can always cancel; the owner can
// only cancel before the rental has started.
func (s *OrderService) CancelOrder(orderID string, caller *models.User) error {
	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewNotFoundError("order not found")
		}
		return err
	}

	isAdmin := caller != nil && caller.IsAdmin()
	if !isAdmin && order.RentalStartDate.Before(time.Now()) {
		return NewValidationError("You cannot cancel a rental that has already started")
	}
	if !isAdmin && (caller == nil || order.UserID != caller.ID) {
		return NewUnauthorizedError("Unauthorized")
	}
	if !models.CanTransition(order.Status, models.OrderStatusCanceled) {
		return NewValidationError("order cannot be canceled from status %s", order.Status)
	}

	if err := s.db.Model(&order).Update("status", models.OrderStatusCanceled).Error; err != nil {
		return err
	}

	s.emit(OrderEvent{Kind: OrderEventCanceled, OrderID: orderID})
	return nil
}

// RejectOrder declines an order with a reason. Rejecting twice updates the
// reason in place and leaves a single rejection row.
func (s *OrderService) RejectOrder(orderID, reason string) error {
	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewNotFoundError("order not found")
		}
		return err
	}
	if !models.CanTransition(order.Status, models.OrderStatusRejected) {
		return NewValidationError("order cannot be rejected from status %s", order.Status)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&order).Update("status", models.OrderStatusRejected).Error; err != nil {
			return err
		}

		var rejection models.OrderRejection
		err := tx.First(&rejection, "order_id = ?", orderID).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Create(&models.OrderRejection{OrderID: orderID, Reason: reason}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&rejection).Update("reason", reason).Error
	})
}

// DeleteOrder hard-deletes an order (admin only; no guard beyond existence)
func (s *OrderService) DeleteOrder(orderID string) error {
	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewNotFoundError("order not found")
		}
		return err
	}
	return s.db.Delete(&order).Error
}

// ChangeOrderStatus applies an admin-requested status change through the
// state machine. Confirming delegates to ConfirmOrder so the slot re-check
// still happens.
func (s *OrderService) ChangeOrderStatus(orderID string, status models.OrderStatus) error {
	if _, known := models.AllowedTransitions[status]; !known {
		return NewValidationError("unknown order status %q", status)
	}
	if status == models.OrderStatusConfirmed {
		return s.ConfirmOrder(orderID)
	}

	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewNotFoundError("order not found")
		}
		return err
	}
	if !models.CanTransition(order.Status, status) {
		return NewValidationError("invalid order status transition: %s -> %s", order.Status, status)
	}

	return s.db.Model(&order).Update("status", status).Error
}

// OrderStatusDetails is the renter-facing view of an order's progress
type OrderStatusDetails struct {
	Order             *models.Order `json:"order"`
	StartCountdown    float64       `json:"start_countdown"` // seconds, negative once started
	EndCountdown      float64       `json:"end_countdown"`   // seconds, negative once ended
	StatusMessage     string        `json:"status_message"`
	OrderMessage      string        `json:"order_message"`
	ReadyToUse        bool          `json:"ready_to_use"`
	IsVehicleUnlocked bool          `json:"is_vehicle_unlocked"`
}

// OrderDetailsWithStatus returns an order together with the Dutch status and
// countdown messages the app displays
func (s *OrderService) OrderDetailsWithStatus(orderID string) (*OrderStatusDetails, error) {
	var order models.Order
	if err := s.db.Preload("Vehicle").Preload("Payment").First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewNotFoundError("order not found")
		}
		return nil, err
	}

	now := time.Now()
	startCountdown := order.RentalStartDate.Sub(now)
	endCountdown := order.RentalEndDate.Sub(now)

	statusMessage := "Processing..."
	switch order.Status {
	case models.OrderStatusUnpaid:
		statusMessage = "Voltooi de betaling alstublieft."
	case models.OrderStatusPending:
		statusMessage = "De reservering wacht op goedkeuring."
	case models.OrderStatusConfirmed:
		statusMessage = "Reservering is bevestigd, bereid je reis voor!"
	case models.OrderStatusRejected:
		statusMessage = "Reservering is afgewezen. Neem contact op voor ondersteuning."
	case models.OrderStatusCompleted:
		statusMessage = "Je reservering is beëindigd. Bedankt voor het huren bij Cabby!"
	case models.OrderStatusCanceled:
		statusMessage = "De reservering is geannuleerd."
	}

	terminal := order.Status == models.OrderStatusCanceled || order.Status == models.OrderStatusCompleted

	orderMessage := ""
	readyToUse := false
	switch {
	case terminal:
	case startCountdown > 0:
		orderMessage = fmt.Sprintf("Je reservering begint over %s. Bereid je voor! 🚀",
			utils.DurationString(startCountdown))
	case endCountdown > 0:
		orderMessage = fmt.Sprintf("Je reservering is gestart. Voertuig is klaar voor gebruik voor de komende %s.",
			utils.DurationString(endCountdown))
		readyToUse = true
	default:
		orderMessage = "Je reservering is beëindigd. Bedankt voor het huren bij Cabby."
	}

	return &OrderStatusDetails{
		Order:             &order,
		StartCountdown:    startCountdown.Seconds(),
		EndCountdown:      endCountdown.Seconds(),
		StatusMessage:     statusMessage,
		OrderMessage:      orderMessage,
		ReadyToUse:        readyToUse,
		IsVehicleUnlocked: order.IsVehicleUnlocked,
	}, nil
}

// UserOrders lists a user's orders, optionally filtered by status, newest
// first
func (s *OrderService) UserOrders(userID string, status *models.OrderStatus) ([]models.Order, error) {
	query := s.db.Preload("Vehicle").Preload("Payment").
		Where("user_id = ?", userID).
		Order("created_at desc")
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var orders []models.Order
	err := query.Find(&orders).Error
	return orders, err
}

// ListOrdersByStatus lists all orders with the given status, newest first
// (admin view)
func (s *OrderService) ListOrdersByStatus(status models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("User").Preload("Vehicle").Preload("Payment").
		Where("status = ?", status).
		Order("created_at desc").
		Find(&orders).Error
	return orders, err
}

// ListOverdueOrders lists CONFIRMED orders whose rental window has elapsed
// without completion. (The original system exposed this under the name
// "unpaid"; the query has always been about overdue rentals.)
func (s *OrderService) ListOverdueOrders() ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("User").Preload("Vehicle").Preload("Payment").
		Where("status = ?", models.OrderStatusConfirmed).
		Where("rental_end_date < ?", time.Now()).
		Order("created_at desc").
		Find(&orders).Error
	return orders, err
}

// OrderDetails returns one order with all relations loaded (admin view)
func (s *OrderService) OrderDetails(orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("User").Preload("Vehicle").Preload("Payment").Preload("Rejection").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewNotFoundError("order not found")
		}
		return nil, err
	}
	return &order, nil
}

// VehicleOrders lists the CONFIRMED orders of one vehicle
func (s *OrderService) VehicleOrders(vehicleID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Select("id", "rental_start_date", "rental_end_date").
		Where("vehicle_id = ?", vehicleID).
		Where("status = ?", models.OrderStatusConfirmed).
		Find(&orders).Error
	return orders, err
}

// QuotePrice computes the pre-tax rental price for a vehicle and window
func (s *OrderService) QuotePrice(vehicleID string, start, end time.Time) (float64, error) {
	var vehicle models.Vehicle
	if err := s.db.First(&vehicle, "id = ?", vehicleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, NewNotFoundError("vehicle not found")
		}
		return 0, err
	}
	return CalculateOrderPrice(start, end, vehicle.Timeframes, vehicle.PricePerDay), nil
}

// Availability exposes the availability checker that shares this service's
// database handle
func (s *OrderService) Availability() *AvailabilityService {
	return s.availability
}

func (s *OrderService) emit(event OrderEvent) {
	if dispatcher := GetEventDispatcher(); dispatcher != nil {
		dispatcher.Emit(event)
	}
}
