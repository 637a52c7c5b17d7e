package controllers

import (
	"net/http"

	"github.com/cabby-rentals/cabby-api/middleware"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
)

// UnlockVehicle handles POST /api/v1/orders/:id/unlock - wakes the rented
// vehicle and unlocks its doors. Only the renter, only during the rental
// window.
func UnlockVehicle(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	order, err := services.GetVehicleCommander().UnlockVehicle(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// LockVehicle handles POST /api/v1/orders/:id/lock - wakes the rented
// vehicle and locks its doors
func LockVehicle(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, services.NewUnauthorizedError("Unauthorized"))
		return
	}

	order, err := services.GetVehicleCommander().LockVehicle(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}
