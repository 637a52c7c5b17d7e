package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"

	"github.com/cabby-rentals/cabby-api/middleware"
	"github.com/cabby-rentals/cabby-api/models"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing,
// mirroring what EnsureValidToken stores after validating a JWT
func SetMockAuthContext(c *gin.Context, auth0ID, issuer string, scopes []string) {
	claims := MockValidatedClaims(auth0ID, issuer, scopes)
	c.Set("auth0_id", auth0ID)
	c.Set("validated_claims", claims)
}

// SetMockCurrentUser stores a resolved user the way LoadUser does
func SetMockCurrentUser(c *gin.Context, user *models.User) {
	c.Set("auth0_id", user.Auth0ID)
	c.Set("current_user", user)
}

