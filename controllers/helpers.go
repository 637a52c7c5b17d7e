package controllers

import (
	"net/http"
	"time"

	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps a service error to the JSON error envelope. Unknown
// errors become a 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	svcErr, ok := services.AsServiceError(err)
	if !ok {
		logrus.WithError(err).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Something went wrong",
			},
		})
		return
	}

	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	switch svcErr.Kind {
	case services.ErrKindValidation:
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case services.ErrKindNotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case services.ErrKindUnauthorized:
		status, code = http.StatusForbidden, "FORBIDDEN"
	case services.ErrKindRateLimited:
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	case services.ErrKindUpstream:
		status, code = http.StatusBadGateway, "UPSTREAM_ERROR"
	case services.ErrKindCredential:
		status, code = http.StatusBadGateway, "CREDENTIAL_ERROR"
	}

	errBody := gin.H{
		"code":    code,
		"message": svcErr.Message,
	}
	if svcErr.RetryAfter != "" {
		c.Header("Retry-After", svcErr.RetryAfter)
		errBody["retry_after"] = svcErr.RetryAfter
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   errBody,
	})
}

// respondBindError maps a request binding failure to the JSON error envelope
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// parseDateParam parses an RFC 3339 query or body value
func parseDateParam(value string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, value)
	return t, err == nil
}
