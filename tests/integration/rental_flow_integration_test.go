package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/controllers"
	"github.com/cabby-rentals/cabby-api/middleware"
	"github.com/cabby-rentals/cabby-api/models"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/cabby-rentals/cabby-api/tests/testutil"
)

// RentalFlowTestSuite drives the order lifecycle through the HTTP layer:
// create, pay via webhook, confirm, view, cancel and reject.
type RentalFlowTestSuite struct {
	suite.Suite
	db       *gorm.DB
	payments *services.MockPaymentService
	customer *models.User
	admin    *models.User
	vehicle  *models.Vehicle

	customerRouter *gin.Engine
	adminRouter    *gin.Engine
}

func (s *RentalFlowTestSuite) SetupSuite() {
	testutil.RequireTestEnvironment(s.T())
	gin.SetMode(gin.TestMode)
}

func (s *RentalFlowTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&models.User{}, &models.UserDeviceToken{}, &models.Vehicle{},
		&models.Order{}, &models.OrderRejection{}, &models.Payment{},
		&models.TeslaToken{}, &models.Notification{},
	))
	config.SetDB(db)
	s.db = db

	services.SetOrderService(services.NewOrderService(db))
	services.SetEventDispatcher(nil)

	s.payments = services.NewMockPaymentService(db)
	s.payments.SetAsMockForTesting()

	s.customer = &models.User{Auth0ID: "auth0|customer", FullName: "Test Customer", Email: "customer@test.com", Role: models.RoleUser}
	s.Require().NoError(db.Create(s.customer).Error)
	s.admin = &models.User{Auth0ID: "auth0|admin", FullName: "Test Admin", Email: "admin@test.com", Role: models.RoleAdmin}
	s.Require().NoError(db.Create(s.admin).Error)

	s.vehicle = &models.Vehicle{
		CompanyName:  "Tesla",
		Model:        "Model 3",
		LicensePlate: "AB-123-C",
		VIN:          "5YJ3E1EA7KF000000",
		Status:       models.VehicleStatusActive,
		Timeframes:   models.Timeframes{{4, 50}, {8, 80}, {24, 120}},
		PricePerDay:  120,
	}
	s.Require().NoError(db.Create(s.vehicle).Error)

	s.customerRouter = s.newRouter(s.customer)
	s.adminRouter = s.newRouter(s.admin)
}

func (s *RentalFlowTestSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// mockAuthMiddleware stands in for EnsureValidToken and LoadUser
func mockAuthMiddleware(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		testutil.SetMockCurrentUser(c, user)
		c.Next()
	}
}

func (s *RentalFlowTestSuite) newRouter(user *models.User) *gin.Engine {
	router := gin.New()
	v1 := router.Group("/api/v1")

	v1.POST("/payments/webhook", controllers.PaymentWebhook)

	authed := v1.Group("")
	authed.Use(mockAuthMiddleware(user))
	authed.POST("/orders", controllers.CreateOrder)
	authed.GET("/orders", controllers.MyOrders)
	authed.GET("/orders/:id", controllers.OrderDetails)
	authed.POST("/orders/:id/cancel", controllers.CancelOrder)
	authed.POST("/orders/:id/complete", controllers.CompleteOrder)

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/orders", controllers.ListOrders)
	admin.POST("/orders/:id/confirm", controllers.ConfirmOrder)
	admin.POST("/orders/:id/reject", controllers.RejectOrder)

	return router
}

func (s *RentalFlowTestSuite) postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func (s *RentalFlowTestSuite) get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func (s *RentalFlowTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

// createOrder posts a new order for the suite's vehicle and returns its id
func (s *RentalFlowTestSuite) createOrder(start, end time.Time) string {
	w := s.postJSON(s.customerRouter, "/api/v1/orders", map[string]interface{}{
		"vehicle_id":        s.vehicle.ID,
		"rental_start_date": start.Format(time.RFC3339),
		"rental_end_date":   end.Format(time.RFC3339),
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	response := s.decode(w)
	s.Require().Equal(true, response["success"])
	data := response["data"].(map[string]interface{})
	order := data["order"].(map[string]interface{})
	return order["id"].(string)
}

// payOrder simulates Mollie reporting the order's payment as paid
func (s *RentalFlowTestSuite) payOrder(orderID string) {
	mollieID := "tr_mock_" + orderID
	s.payments.StatusByMollieID = map[string]models.PaymentStatus{
		mollieID: models.PaymentStatusPaid,
	}

	form := url.Values{"id": {mollieID}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.customerRouter.ServeHTTP(w, req)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *RentalFlowTestSuite) orderStatus(orderID string) models.OrderStatus {
	var order models.Order
	s.Require().NoError(s.db.First(&order, "id = ?", orderID).Error)
	return order.Status
}

func (s *RentalFlowTestSuite) TestHappyPath_CreatePayConfirmView() {
	start := time.Now().Add(24 * time.Hour)
	orderID := s.createOrder(start, start.Add(8*time.Hour))
	s.Equal(models.OrderStatusUnpaid, s.orderStatus(orderID))

	var payment models.Payment
	s.Require().NoError(s.db.First(&payment, "order_id = ?", orderID).Error)
	s.Equal("https://checkout.mollie.test/"+orderID, payment.CheckoutURL)

	s.payOrder(orderID)
	s.Equal(models.OrderStatusPending, s.orderStatus(orderID))

	w := s.postJSON(s.adminRouter, fmt.Sprintf("/api/v1/admin/orders/%s/confirm", orderID), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(models.OrderStatusConfirmed, s.orderStatus(orderID))

	w = s.get(s.customerRouter, "/api/v1/orders/"+orderID)
	s.Require().Equal(http.StatusOK, w.Code)
	response := s.decode(w)
	details := response["data"].(map[string]interface{})
	s.Equal("Reservering is bevestigd, bereid je reis voor!", details["status_message"])
	s.Equal(false, details["ready_to_use"])
}

func (s *RentalFlowTestSuite) TestCreateOrderValidation() {
	start := time.Now().Add(24 * time.Hour)

	// end before start
	w := s.postJSON(s.customerRouter, "/api/v1/orders", map[string]interface{}{
		"vehicle_id":        s.vehicle.ID,
		"rental_start_date": start.Format(time.RFC3339),
		"rental_end_date":   start.Add(-time.Hour).Format(time.RFC3339),
	})
	s.Equal(http.StatusBadRequest, w.Code)

	// missing fields
	w = s.postJSON(s.customerRouter, "/api/v1/orders", map[string]interface{}{})
	s.Equal(http.StatusBadRequest, w.Code)
	response := s.decode(w)
	errObj := response["error"].(map[string]interface{})
	s.Equal("VALIDATION_ERROR", errObj["code"])
}

func (s *RentalFlowTestSuite) TestOverlappingOrderCannotBeConfirmed() {
	start := time.Now().Add(24 * time.Hour)
	first := s.createOrder(start, start.Add(8*time.Hour))
	second := s.createOrder(start.Add(time.Hour), start.Add(4*time.Hour))
	s.payOrder(first)
	s.payOrder(second)

	w := s.postJSON(s.adminRouter, fmt.Sprintf("/api/v1/admin/orders/%s/confirm", first), nil)
	s.Require().Equal(http.StatusOK, w.Code)

	// the slot is taken now, confirming the overlap must fail
	w = s.postJSON(s.adminRouter, fmt.Sprintf("/api/v1/admin/orders/%s/confirm", second), nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(models.OrderStatusPending, s.orderStatus(second))
}

func (s *RentalFlowTestSuite) TestRejectFlow() {
	start := time.Now().Add(24 * time.Hour)
	orderID := s.createOrder(start, start.Add(8*time.Hour))
	s.payOrder(orderID)

	w := s.postJSON(s.adminRouter, fmt.Sprintf("/api/v1/admin/orders/%s/reject", orderID),
		map[string]interface{}{"reason": "documents missing"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(models.OrderStatusRejected, s.orderStatus(orderID))

	var rejection models.OrderRejection
	s.Require().NoError(s.db.First(&rejection, "order_id = ?", orderID).Error)
	s.Equal("documents missing", rejection.Reason)
}

func (s *RentalFlowTestSuite) TestCancelOwnOrder() {
	start := time.Now().Add(24 * time.Hour)
	orderID := s.createOrder(start, start.Add(8*time.Hour))

	w := s.postJSON(s.customerRouter, fmt.Sprintf("/api/v1/orders/%s/cancel", orderID), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(models.OrderStatusCanceled, s.orderStatus(orderID))
}

func (s *RentalFlowTestSuite) TestCustomerCannotSeeForeignOrder() {
	other := &models.User{Auth0ID: "auth0|other", FullName: "Other", Email: "other@test.com", Role: models.RoleUser}
	s.Require().NoError(s.db.Create(other).Error)
	otherRouter := s.newRouter(other)

	start := time.Now().Add(24 * time.Hour)
	orderID := s.createOrder(start, start.Add(8*time.Hour))

	w := s.get(otherRouter, "/api/v1/orders/"+orderID)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RentalFlowTestSuite) TestAdminEndpointsRequireAdminRole() {
	w := s.get(s.customerRouter, "/api/v1/admin/orders")
	s.Equal(http.StatusForbidden, w.Code)

	response := s.decode(w)
	errObj := response["error"].(map[string]interface{})
	s.Equal("FORBIDDEN", errObj["code"])
}

func (s *RentalFlowTestSuite) TestAdminListsPendingOrders() {
	start := time.Now().Add(24 * time.Hour)
	orderID := s.createOrder(start, start.Add(8*time.Hour))
	s.payOrder(orderID)

	w := s.get(s.adminRouter, "/api/v1/admin/orders")
	s.Require().Equal(http.StatusOK, w.Code)

	response := s.decode(w)
	orders := response["data"].([]interface{})
	s.Require().Len(orders, 1)
	first := orders[0].(map[string]interface{})
	s.Equal(orderID, first["id"])
	s.Equal(string(models.OrderStatusPending), first["status"])
}

func TestRentalFlowSuite(t *testing.T) {
	suite.Run(t, new(RentalFlowTestSuite))
}
