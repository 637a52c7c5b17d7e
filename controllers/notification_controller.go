package controllers

import (
	"net/http"
	"strconv"

	"github.com/cabby-rentals/cabby-api/middleware"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
)

// RegisterDeviceTokenRequest represents the request body for registering an
// FCM device token
type RegisterDeviceTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ListNotifications handles GET /api/v1/notifications - lists the user's
// open notifications
func ListNotifications(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	notifications, err := services.GetNotificationService().ListOpen(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    notifications,
	})
}

// CountNotifications handles GET /api/v1/notifications/count - returns the
// open notification count for the badge
func CountNotifications(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	count, err := services.GetNotificationService().CountOpen(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"count": count},
	})
}

// CloseNotification handles POST /api/v1/notifications/:id/close - marks a
// notification as read
func CloseNotification(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, services.NewValidationError("invalid notification id"))
		return
	}

	if err := services.GetNotificationService().Close(user.ID, uint(id)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RegisterDeviceToken handles POST /api/v1/notifications/device-token -
// registers the caller's FCM token, replacing any previous one
func RegisterDeviceToken(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	var req RegisterDeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := services.GetNotificationService().RegisterDeviceToken(user.ID, req.Token); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
