package controllers

import (
	"net/http"

	"github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/models"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PaymentWebhook handles POST /api/v1/payments/webhook - the Mollie status
// ping. Mollie posts form-encoded "id=tr_..." and only needs a 200 back;
// the fresh status is always fetched from the API, never trusted from the
// request.
func PaymentWebhook(c *gin.Context) {
	molliePaymentID := c.PostForm("id")
	if molliePaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "id is required",
			},
		})
		return
	}

	if err := services.GetOrderService().HandlePaymentWebhook(molliePaymentID); err != nil {
		// Mollie retries on non-200; only signal failure for unknown ids
		if svcErr, ok := services.AsServiceError(err); ok && svcErr.Kind == services.ErrKindNotFound {
			respondError(c, err)
			return
		}
		logrus.WithError(err).WithField("mollie_payment_id", molliePaymentID).Error("Failed to process payment webhook")
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListPayments handles GET /api/v1/admin/payments - lists all payments,
// newest first (admins only)
func ListPayments(c *gin.Context) {
	var payments []models.Payment
	if err := config.GetDB().Order("created_at desc").Find(&payments).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payments,
	})
}

// PaymentDetails handles GET /api/v1/admin/payments/:id - returns one
// payment (admins only)
func PaymentDetails(c *gin.Context) {
	var payment models.Payment
	if err := config.GetDB().First(&payment, "id = ?", c.Param("id")).Error; err != nil {
		respondError(c, services.NewNotFoundError("no payment found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payment,
	})
}

// RefundPayment handles POST /api/v1/admin/payments/:id/refund - refunds a
// paid payment through the provider (admins only)
func RefundPayment(c *gin.Context) {
	if err := services.GetPaymentService().Refund(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
