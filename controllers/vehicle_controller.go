package controllers

import (
	"io"
	"net/http"

	"github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/models"
	"github.com/cabby-rentals/cabby-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxDocumentSize caps vehicle paperwork uploads at 10 MB
const maxDocumentSize = 10 << 20

// CreateVehicleRequest represents the request body for registering a vehicle
type CreateVehicleRequest struct {
	CompanyName  string             `json:"company_name" binding:"required"`
	Model        string             `json:"model" binding:"required"`
	LicensePlate string             `json:"license_plate" binding:"required"`
	VIN          string             `json:"vin" binding:"required"`
	Timeframes   models.Timeframes  `json:"timeframes"`
	PricePerDay  float64            `json:"price_per_day" binding:"required,gt=0"`
}

// UpdateVehicleRequest represents the request body for updating a vehicle
type UpdateVehicleRequest struct {
	CompanyName  *string               `json:"company_name"`
	Model        *string               `json:"model"`
	LicensePlate *string               `json:"license_plate"`
	VIN          *string               `json:"vin"`
	Timeframes   *models.Timeframes    `json:"timeframes"`
	PricePerDay  *float64              `json:"price_per_day"`
	Status       *models.VehicleStatus `json:"status"`
}

// vehicleView is a vehicle with its document keys resolved to presigned URLs
type vehicleView struct {
	models.Vehicle
	InsuranceCertificateURLs    []string `json:"insurance_certificate_urls"`
	RegistrationCertificateURLs []string `json:"registration_certificate_urls"`
}

func presignDocuments(keys []string) []string {
	store := services.GetDocumentStore()
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		url, err := store.PresignedURL(key)
		if err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to presign document")
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// ListVehicles handles GET /api/v1/vehicles - lists ACTIVE vehicles for
// renters
func ListVehicles(c *gin.Context) {
	var vehicles []models.Vehicle
	if err := config.GetDB().Where("status = ?", models.VehicleStatusActive).Find(&vehicles).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    vehicles,
	})
}

// VehicleDetails handles GET /api/v1/vehicles/:id - returns a vehicle with
// presigned document links
func VehicleDetails(c *gin.Context) {
	var vehicle models.Vehicle
	if err := config.GetDB().First(&vehicle, "id = ?", c.Param("id")).Error; err != nil {
		respondError(c, services.NewNotFoundError("vehicle not found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": vehicleView{
			Vehicle:                     vehicle,
			InsuranceCertificateURLs:    presignDocuments(vehicle.InsuranceCertificateKeys),
			RegistrationCertificateURLs: presignDocuments(vehicle.RegistrationCertificateKeys),
		},
	})
}

// VehicleBookedPeriods handles GET /api/v1/vehicles/:id/booked-periods -
// lists the upcoming confirmed rental windows so the app can block them in
// its picker
func VehicleBookedPeriods(c *gin.Context) {
	periods, err := services.GetOrderService().Availability().BookedPeriods(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    periods,
	})
}

// VehicleAvailability handles GET /api/v1/vehicles/:id/availability?from=&to=
// - reports whether the vehicle is free for the window
func VehicleAvailability(c *gin.Context) {
	from, okFrom := parseDateParam(c.Query("from"))
	to, okTo := parseDateParam(c.Query("to"))
	if !okFrom || !okTo || !to.After(from) {
		respondError(c, services.NewValidationError("from and to must be valid RFC 3339 dates with to after from"))
		return
	}

	available, err := services.GetOrderService().Availability().IsVehicleAvailable(c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"available": available},
	})
}

// VehicleQuote handles GET /api/v1/vehicles/:id/quote?from=&to= - returns
// the pre-tax price for the window
func VehicleQuote(c *gin.Context) {
	from, okFrom := parseDateParam(c.Query("from"))
	to, okTo := parseDateParam(c.Query("to"))
	if !okFrom || !okTo || !to.After(from) {
		respondError(c, services.NewValidationError("from and to must be valid RFC 3339 dates with to after from"))
		return
	}

	price, err := services.GetOrderService().QuotePrice(c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"price": price},
	})
}

// AdminListVehicles handles GET /api/v1/admin/vehicles - lists all vehicles
// regardless of status (admins only)
func AdminListVehicles(c *gin.Context) {
	var vehicles []models.Vehicle
	if err := config.GetDB().Order("created_at desc").Find(&vehicles).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    vehicles,
	})
}

// AdminVehicleOrders handles GET /api/v1/admin/vehicles/:id/orders - lists
// the confirmed bookings of one vehicle (admins only)
func AdminVehicleOrders(c *gin.Context) {
	orders, err := services.GetOrderService().VehicleOrders(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// CreateVehicle handles POST /api/v1/admin/vehicles - registers a vehicle
// in PENDING status (admins only)
func CreateVehicle(c *gin.Context) {
	var req CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	vehicle := models.Vehicle{
		CompanyName:  req.CompanyName,
		Model:        req.Model,
		LicensePlate: req.LicensePlate,
		VIN:          req.VIN,
		Timeframes:   req.Timeframes,
		PricePerDay:  req.PricePerDay,
		Status:       models.VehicleStatusPending,
	}
	if err := config.GetDB().Create(&vehicle).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    vehicle,
	})
}

// UpdateVehicle handles PATCH /api/v1/admin/vehicles/:id - updates vehicle
// fields, including activation and blocking (admins only)
func UpdateVehicle(c *gin.Context) {
	db := config.GetDB()

	var vehicle models.Vehicle
	if err := db.First(&vehicle, "id = ?", c.Param("id")).Error; err != nil {
		respondError(c, services.NewNotFoundError("vehicle not found"))
		return
	}

	var req UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.CompanyName != nil {
		updates["company_name"] = *req.CompanyName
	}
	if req.Model != nil {
		updates["model"] = *req.Model
	}
	if req.LicensePlate != nil {
		updates["license_plate"] = *req.LicensePlate
	}
	if req.VIN != nil {
		updates["vin"] = *req.VIN
	}
	if req.Timeframes != nil {
		updates["timeframes"] = *req.Timeframes
	}
	if req.PricePerDay != nil {
		if *req.PricePerDay <= 0 {
			respondError(c, services.NewValidationError("price per day must be positive"))
			return
		}
		updates["price_per_day"] = *req.PricePerDay
	}
	if req.Status != nil {
		switch *req.Status {
		case models.VehicleStatusActive, models.VehicleStatusPending, models.VehicleStatusBlocked:
			updates["status"] = *req.Status
		default:
			respondError(c, services.NewValidationError("unknown vehicle status %q", *req.Status))
			return
		}
	}

	if len(updates) > 0 {
		if err := db.Model(&vehicle).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    vehicle,
	})
}

// UploadVehicleDocument handles POST /api/v1/admin/vehicles/:id/documents -
// stores an insurance or registration certificate and attaches its key to
// the vehicle (admins only). The multipart form carries "document" and a
// "kind" of insurance or registration.
func UploadVehicleDocument(c *gin.Context) {
	db := config.GetDB()

	var vehicle models.Vehicle
	if err := db.First(&vehicle, "id = ?", c.Param("id")).Error; err != nil {
		respondError(c, services.NewNotFoundError("vehicle not found"))
		return
	}

	kind := c.PostForm("kind")
	if kind != "insurance" && kind != "registration" {
		respondError(c, services.NewValidationError("kind must be insurance or registration"))
		return
	}

	fileHeader, err := c.FormFile("document")
	if err != nil {
		respondError(c, services.NewValidationError("document file is required"))
		return
	}
	if fileHeader.Size > maxDocumentSize {
		respondError(c, services.NewValidationError("document exceeds the 10MB limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := services.DocumentKey("vehicles/"+vehicle.ID+"/"+kind, fileHeader.Filename)
	if err := services.GetDocumentStore().Upload(key, body, contentType); err != nil {
		respondError(c, services.NewUpstreamError(err, "failed to store document"))
		return
	}

	column := "insurance_certificate_keys"
	keys := append(vehicle.InsuranceCertificateKeys, key)
	if kind == "registration" {
		column = "registration_certificate_keys"
		keys = append(vehicle.RegistrationCertificateKeys, key)
	}
	if err := db.Model(&vehicle).Update(column, models.StringList(keys)).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    gin.H{"key": key},
	})
}
