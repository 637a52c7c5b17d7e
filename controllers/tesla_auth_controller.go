package controllers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
)

// teslaScopes are the Fleet API scopes the platform needs for door commands
const teslaScopes = "openid offline_access vehicle_device_data vehicle_cmds"

// TeslaAuthRedirect handles GET /api/v1/admin/tesla/auth - redirects the
// admin to Tesla's OAuth consent page (admins only)
func TeslaAuthRedirect(c *gin.Context) {
	cfg := config.GetConfig()

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", cfg.TeslaClientID)
	query.Set("redirect_uri", cfg.TeslaRedirectURI)
	query.Set("scope", teslaScopes)
	query.Set("state", c.Query("state"))

	c.Redirect(http.StatusFound, fmt.Sprintf("%s/oauth2/v3/authorize?%s", cfg.TeslaAuthBase, query.Encode()))
}

// TeslaAuthCallback handles GET /api/v1/admin/tesla/callback - exchanges the
// authorization code for a token pair and stores it (admins only)
func TeslaAuthCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		respondError(c, services.NewValidationError("missing authorization code"))
		return
	}

	token, err := services.GetTeslaService().ExchangeAuthorizationCode(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token_id":   token.ID,
			"expires_at": token.ExpiresAt,
		},
	})
}

// TeslaPartnerToken handles POST /api/v1/admin/tesla/partner-token -
// registers the partner account with the Fleet API (admins only, one-time
// setup)
func TeslaPartnerToken(c *gin.Context) {
	if _, err := services.GetTeslaService().PartnerToken(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
