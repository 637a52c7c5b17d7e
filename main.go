package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/controllers"
	"github.com/cabby-rentals/cabby-api/logger"
	"github.com/cabby-rentals/cabby-api/middleware"
	"github.com/cabby-rentals/cabby-api/models"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.LogLevel, cfg.IsProduction())
	logrus.Info("Starting Cabby API server...")

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	err = db.AutoMigrate(
		&models.User{},
		&models.UserDeviceToken{},
		&models.Vehicle{},
		&models.Order{},
		&models.OrderRejection{},
		&models.Payment{},
		&models.TeslaToken{},
		&models.Notification{},
	)
	if err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}
	logrus.Info("Database migration completed successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	services.InitUserService(db)
	services.InitOrderService(db)
	services.InitPaymentService(db)
	services.InitTeslaService(db)
	services.InitReportService(db)
	services.InitMailService()
	if _, err := services.InitDocumentStore(); err != nil {
		logrus.Fatalf("Failed to initialize document store: %v", err)
	}
	if _, err := services.InitPushSender(ctx); err != nil {
		logrus.WithError(err).Warn("Push delivery disabled: failed to initialize FCM")
	}
	notifications := services.InitNotificationService(db)
	dispatcher := services.InitEventDispatcher(db)

	go dispatcher.Run(ctx)
	go notifications.RunScheduler(ctx, time.Minute)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	registerRoutes(router, cfg)

	addr := ":" + cfg.Port
	logrus.Infof("Server is running on http://localhost%s", addr)
	if err := router.Run(addr); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}

func registerRoutes(router *gin.Engine, cfg *config.Config) {
	v1 := router.Group("/api/v1")

	// Public endpoints
	v1.GET("/health", healthCheck)
	v1.POST("/payments/webhook", controllers.PaymentWebhook)
	v1.GET("/vehicles", controllers.ListVehicles)
	v1.GET("/vehicles/:id", controllers.VehicleDetails)
	v1.GET("/vehicles/:id/booked-periods", controllers.VehicleBookedPeriods)
	v1.GET("/vehicles/:id/availability", controllers.VehicleAvailability)
	v1.GET("/vehicles/:id/quote", controllers.VehicleQuote)

	// Authenticated endpoints
	authed := v1.Group("")
	authed.Use(middleware.EnsureValidToken(cfg))
	authed.POST("/users/sync", controllers.SyncProfile)

	user := authed.Group("")
	user.Use(middleware.LoadUser())
	user.GET("/users/me", controllers.GetProfile)
	user.POST("/orders", controllers.CreateOrder)
	user.GET("/orders", controllers.MyOrders)
	user.GET("/orders/:id", controllers.OrderDetails)
	user.POST("/orders/:id/cancel", controllers.CancelOrder)
	user.POST("/orders/:id/complete", controllers.CompleteOrder)
	user.POST("/orders/:id/lock", controllers.LockVehicle)
	user.POST("/orders/:id/unlock", controllers.UnlockVehicle)
	user.GET("/notifications", controllers.ListNotifications)
	user.GET("/notifications/count", controllers.CountNotifications)
	user.POST("/notifications/:id/close", controllers.CloseNotification)
	user.POST("/notifications/device-token", controllers.RegisterDeviceToken)

	// Admin endpoints
	admin := user.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/users", controllers.ListUsers)
	admin.GET("/users/:id", controllers.GetUser)
	admin.GET("/orders", controllers.ListOrders)
	admin.POST("/orders", controllers.AdminCreateOrder)
	admin.GET("/orders/:id", controllers.AdminOrderDetails)
	admin.POST("/orders/:id/confirm", controllers.ConfirmOrder)
	admin.POST("/orders/:id/reject", controllers.RejectOrder)
	admin.POST("/orders/:id/stop", controllers.StopOrder)
	admin.PATCH("/orders/:id/status", controllers.ChangeOrderStatus)
	admin.DELETE("/orders/:id", controllers.DeleteOrder)
	admin.GET("/vehicles", controllers.AdminListVehicles)
	admin.GET("/vehicles/:id/orders", controllers.AdminVehicleOrders)
	admin.POST("/vehicles", controllers.CreateVehicle)
	admin.PATCH("/vehicles/:id", controllers.UpdateVehicle)
	admin.POST("/vehicles/:id/documents", controllers.UploadVehicleDocument)
	admin.GET("/payments", controllers.ListPayments)
	admin.GET("/payments/:id", controllers.PaymentDetails)
	admin.POST("/payments/:id/refund", controllers.RefundPayment)
	admin.GET("/reports/invoices", controllers.ListInvoices)
	admin.GET("/reports/orders.xlsx", controllers.ExportOrders)
	admin.GET("/tesla/auth", controllers.TeslaAuthRedirect)
	admin.GET("/tesla/callback", controllers.TeslaAuthCallback)
	admin.POST("/tesla/partner-token", controllers.TeslaPartnerToken)
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cabby API is running",
	})
}
