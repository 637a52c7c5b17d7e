package controllers

import (
	"net/http"

	"github.com/cabby-rentals/cabby-api/middleware"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
)

// SyncProfile handles POST /api/v1/users/sync - upserts the local account
// from the Auth0 profile behind the bearer token
func SyncProfile(c *gin.Context) {
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract the access token",
			},
		})
		return
	}

	user, err := services.GetUserService().SyncUser(accessToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// GetProfile handles GET /api/v1/users/me - returns the authenticated user
func GetProfile(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not resolve the authenticated user",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// ListUsers handles GET /api/v1/admin/users - lists all accounts (admins only)
func ListUsers(c *gin.Context) {
	users, err := services.GetUserService().ListUsers()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users,
	})
}

// GetUser handles GET /api/v1/admin/users/:id - returns one account (admins only)
func GetUser(c *gin.Context) {
	user, err := services.GetUserService().UserDetails(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}
