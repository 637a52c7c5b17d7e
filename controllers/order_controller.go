package controllers

import (
	"net/http"
	"time"

	"github.com/cabby-rentals/cabby-api/middleware"
	"github.com/cabby-rentals/cabby-api/models"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	VehicleID       string    `json:"vehicle_id" binding:"required"`
	RentalStartDate time.Time `json:"rental_start_date" binding:"required"`
	RentalEndDate   time.Time `json:"rental_end_date" binding:"required"`
}

// AdminCreateOrderRequest represents the request body for an admin-created
// order
type AdminCreateOrderRequest struct {
	UserID          string    `json:"user_id" binding:"required"`
	VehicleID       string    `json:"vehicle_id" binding:"required"`
	RentalStartDate time.Time `json:"rental_start_date" binding:"required"`
	RentalEndDate   time.Time `json:"rental_end_date" binding:"required"`
}

// RejectOrderRequest represents the request body for rejecting an order
type RejectOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ChangeOrderStatusRequest represents the request body for an admin status
// change
type ChangeOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// CreateOrder handles POST /api/v1/orders - books a vehicle for the
// authenticated user and returns the payment checkout URL
func CreateOrder(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !req.RentalEndDate.After(req.RentalStartDate) {
		respondError(c, services.NewValidationError("rental end date must be after the start date"))
		return
	}

	order, checkoutURL, err := services.GetOrderService().CreateOrder(
		user.ID, req.VehicleID, req.RentalStartDate, req.RentalEndDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"order":        order,
			"checkout_url": checkoutURL,
		},
	})
}

// AdminCreateOrder handles POST /api/v1/admin/orders - books a vehicle on
// behalf of a user, confirmed and pre-paid (admins only)
func AdminCreateOrder(c *gin.Context) {
	var req AdminCreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !req.RentalEndDate.After(req.RentalStartDate) {
		respondError(c, services.NewValidationError("rental end date must be after the start date"))
		return
	}

	order, err := services.GetOrderService().CreateOrderAdmin(
		req.UserID, req.VehicleID, req.RentalStartDate, req.RentalEndDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// MyOrders handles GET /api/v1/orders - lists the authenticated user's
// orders, optionally filtered by ?status=
func MyOrders(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	var status *models.OrderStatus
	if raw := c.Query("status"); raw != "" {
		s := models.OrderStatus(raw)
		if _, known := models.AllowedTransitions[s]; !known {
			respondError(c, services.NewValidationError("unknown order status %q", raw))
			return
		}
		status = &s
	}

	orders, err := services.GetOrderService().UserOrders(user.ID, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// OrderDetails handles GET /api/v1/orders/:id - returns the order with its
// status and countdown messages. Owner or admin only.
func OrderDetails(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	details, err := services.GetOrderService().OrderDetailsWithStatus(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if details.Order.UserID != user.ID && !user.IsAdmin() {
		respondError(c, services.NewUnauthorizedError("not authorized to view this order"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    details,
	})
}

// CancelOrder handles POST /api/v1/orders/:id/cancel - cancels a booking.
// Owners can cancel before the rental starts; admins can always cancel.
func CancelOrder(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	if err := services.GetOrderService().CancelOrder(c.Param("id"), user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CompleteOrder handles POST /api/v1/orders/:id/complete - finishes a
// CONFIRMED rental
func CompleteOrder(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	if err := services.GetOrderService().CompleteOrder(c.Param("id"), user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListOrders handles GET /api/v1/admin/orders - lists orders by status
// (admins only). ?status= defaults to PENDING; ?status=OVERDUE selects
// confirmed rentals whose window has elapsed.
func ListOrders(c *gin.Context) {
	raw := c.DefaultQuery("status", string(models.OrderStatusPending))

	var orders []models.Order
	var err error
	if raw == "OVERDUE" {
		orders, err = services.GetOrderService().ListOverdueOrders()
	} else {
		status := models.OrderStatus(raw)
		if _, known := models.AllowedTransitions[status]; !known {
			respondError(c, services.NewValidationError("unknown order status %q", raw))
			return
		}
		orders, err = services.GetOrderService().ListOrdersByStatus(status)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// AdminOrderDetails handles GET /api/v1/admin/orders/:id - returns one order
// with all relations (admins only)
func AdminOrderDetails(c *gin.Context) {
	order, err := services.GetOrderService().OrderDetails(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// ConfirmOrder handles POST /api/v1/admin/orders/:id/confirm - approves an
// order after re-checking the time slot (admins only)
func ConfirmOrder(c *gin.Context) {
	if err := services.GetOrderService().ConfirmOrder(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RejectOrder handles POST /api/v1/admin/orders/:id/reject - declines an
// order with a reason (admins only)
func RejectOrder(c *gin.Context) {
	var req RejectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := services.GetOrderService().RejectOrder(c.Param("id"), req.Reason); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StopOrder handles POST /api/v1/admin/orders/:id/stop - ends the rental
// clock (admins only)
func StopOrder(c *gin.Context) {
	if err := services.GetOrderService().StopOrder(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ChangeOrderStatus handles PATCH /api/v1/admin/orders/:id/status - applies
// a status change through the state machine (admins only)
func ChangeOrderStatus(c *gin.Context) {
	var req ChangeOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := services.GetOrderService().ChangeOrderStatus(c.Param("id"), req.Status); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteOrder handles DELETE /api/v1/admin/orders/:id - removes an order
// (admins only)
func DeleteOrder(c *gin.Context) {
	if err := services.GetOrderService().DeleteOrder(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
