package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
)

// ListInvoices handles GET /api/v1/admin/reports/invoices?from=&to= - lists
// the invoice links of paid orders in the range (admins only)
func ListInvoices(c *gin.Context) {
	from, to, ok := reportRange(c)
	if !ok {
		return
	}

	invoices, err := services.GetReportService().InvoiceURLsForRange(from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    invoices,
	})
}

// ExportOrders handles GET /api/v1/admin/reports/orders.xlsx?from=&to= -
// streams the rental report spreadsheet (admins only)
func ExportOrders(c *gin.Context) {
	from, to, ok := reportRange(c)
	if !ok {
		return
	}

	data, err := services.GetReportService().OrdersExcelForRange(from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("verhuurrapport-%s-%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func reportRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, okFrom := parseDateParam(c.Query("from"))
	to, okTo := parseDateParam(c.Query("to"))
	if !okFrom || !okTo || !to.After(from) {
		respondError(c, services.NewValidationError("from and to must be valid RFC 3339 dates with to after from"))
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
