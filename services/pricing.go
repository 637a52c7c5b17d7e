package services

import (
	"math"
	"time"

	"github.com/cabby-rentals/cabby-api/models"
)

// VATMultiplier converts a pre-tax rental price into the chargeable total
const VATMultiplier = 1.21

// CalculateOrderPrice computes the pre-tax rental cost for a date range.
//
// The rental duration is rounded to whole hours and matched against the
// vehicle's rate brackets: the first bracket whose threshold covers the
// duration wins. When no bracket covers the full duration, the price falls
// back to whole days at the day rate plus remaining hours at the derived
// hourly rate. Deterministic and side-effect-free.
func CalculateOrderPrice(start, end time.Time, timeframes models.Timeframes, pricePerDay float64) float64 {
	hours := math.Round(end.Sub(start).Hours())
	if hours <= 0 {
		return 0
	}

	for _, bracket := range timeframes {
		if hours <= bracket[0] {
			return bracket[1]
		}
	}

	days := math.Floor(hours / 24)
	remainingHours := hours - days*24
	pricePerHour := pricePerDay / 24

	return days*pricePerDay + remainingHours*pricePerHour
}
