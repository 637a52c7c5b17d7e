package services

import (
	"time"

	"github.com/cabby-rentals/cabby-api/models"
	"gorm.io/gorm"
)

// AvailabilityBuffer is the margin added on both ends of a requested window
// so back-to-back bookings leave a handover gap.
const AvailabilityBuffer = 15 * time.Minute

// BookedPeriod is one reserved interval of a vehicle's calendar
type BookedPeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AvailabilityService answers booking-conflict questions for a vehicle
type AvailabilityService struct {
	db *gorm.DB
}

// NewAvailabilityService creates an availability service on the given database
func NewAvailabilityService(db *gorm.DB) *AvailabilityService {
	return &AvailabilityService{db: db}
}

// IsVehicleAvailable reports whether the vehicle is ACTIVE and has no
// CONFIRMED order overlapping the requested window expanded by the buffer.
// The overlap test is half-open: existing.start < bufferedEnd AND
// existing.end > bufferedStart.
func (s *AvailabilityService) IsVehicleAvailable(vehicleID string, start, end time.Time) (bool, error) {
	return s.isAvailable(s.db, vehicleID, start, end, "")
}

// IsVehicleAvailableTx is IsVehicleAvailable inside an existing transaction,
// excluding one order from the overlap count. Used by the confirm transition
// to re-validate the slot at commit time rather than trusting the check made
// at creation time.
func (s *AvailabilityService) IsVehicleAvailableTx(tx *gorm.DB, vehicleID string, start, end time.Time, excludeOrderID string) (bool, error) {
	return s.isAvailable(tx, vehicleID, start, end, excludeOrderID)
}

func (s *AvailabilityService) isAvailable(db *gorm.DB, vehicleID string, start, end time.Time, excludeOrderID string) (bool, error) {
	bufferedStart := start.Add(-AvailabilityBuffer)
	bufferedEnd := end.Add(AvailabilityBuffer)

	query := db.Model(&models.Order{}).
		Where("vehicle_id = ?", vehicleID).
		Where("status = ?", models.OrderStatusConfirmed).
		Where("rental_start_date < ? AND rental_end_date > ?", bufferedEnd, bufferedStart)
	if excludeOrderID != "" {
		query = query.Where("id <> ?", excludeOrderID)
	}

	var overlapping int64
	if err := query.Count(&overlapping).Error; err != nil {
		return false, err
	}

	var vehicle models.Vehicle
	if err := db.First(&vehicle, "id = ?", vehicleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	if vehicle.Status != models.VehicleStatusActive {
		return false, nil
	}

	return overlapping == 0, nil
}

// BookedPeriods returns all CONFIRMED bookings of the vehicle that end in
// the future, ordered by start ascending. Used to render the booking
// calendar.
func (s *AvailabilityService) BookedPeriods(vehicleID string) ([]BookedPeriod, error) {
	var orders []models.Order
	err := s.db.Model(&models.Order{}).
		Select("rental_start_date", "rental_end_date").
		Where("vehicle_id = ?", vehicleID).
		Where("status = ?", models.OrderStatusConfirmed).
		Where("rental_end_date >= ?", time.Now()).
		Order("rental_start_date asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	periods := make([]BookedPeriod, 0, len(orders))
	for _, o := range orders {
		periods = append(periods, BookedPeriod{From: o.RentalStartDate, To: o.RentalEndDate})
	}
	return periods, nil
}
