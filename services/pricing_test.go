package services

import (
	"testing"
	"time"

	"github.com/cabby-rentals/cabby-api/models"
	"github.com/stretchr/testify/assert"
)

func rentalWindow(hours float64) (time.Time, time.Time) {
	start := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	return start, start.Add(time.Duration(hours * float64(time.Hour)))
}

func TestCalculateOrderPrice_BracketMatch(t *testing.T) {
	timeframes := models.Timeframes{{4, 50}, {8, 80}, {24, 120}}

	tests := []struct {
		name     string
		hours    float64
		expected float64
	}{
		{"inside first bracket", 3, 50},
		{"exactly on threshold", 4, 50},
		{"second bracket", 6, 80},
		{"full day bracket", 24, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := rentalWindow(tt.hours)
			assert.Equal(t, tt.expected, CalculateOrderPrice(start, end, timeframes, 120))
		})
	}
}

func TestCalculateOrderPrice_DayRateFallback(t *testing.T) {
	timeframes := models.Timeframes{{24, 120}}
	pricePerDay := 120.0

	// 2 days + 6 hours at the derived hourly rate (120/24 = 5/hour)
	start, end := rentalWindow(54)
	assert.Equal(t, 2*120+6*5.0, CalculateOrderPrice(start, end, timeframes, pricePerDay))
}

func TestCalculateOrderPrice_NoTimeframes(t *testing.T) {
	start, end := rentalWindow(36)
	// 1 day + 12 hours
	assert.Equal(t, 120+12*5.0, CalculateOrderPrice(start, end, nil, 120))
}

func TestCalculateOrderPrice_RoundsToWholeHours(t *testing.T) {
	timeframes := models.Timeframes{{4, 50}}

	// 3h50m rounds to 4h and stays inside the bracket
	start, end := rentalWindow(3.83)
	assert.Equal(t, 50.0, CalculateOrderPrice(start, end, timeframes, 120))

	// 4h20m rounds to 4h as well
	start, end = rentalWindow(4.33)
	assert.Equal(t, 50.0, CalculateOrderPrice(start, end, timeframes, 120))
}

func TestCalculateOrderPrice_NonPositiveWindow(t *testing.T) {
	start, end := rentalWindow(0)
	assert.Equal(t, 0.0, CalculateOrderPrice(start, end, nil, 120))

	assert.Equal(t, 0.0, CalculateOrderPrice(end, start, nil, 120))
}

func TestCalculateOrderPrice_MonotonicOverDuration(t *testing.T) {
	timeframes := models.Timeframes{{4, 50}, {8, 80}, {24, 120}}

	previous := 0.0
	for hours := 1.0; hours <= 96; hours++ {
		start, end := rentalWindow(hours)
		price := CalculateOrderPrice(start, end, timeframes, 120)
		assert.GreaterOrEqual(t, price, previous, "price dropped at %v hours", hours)
		previous = price
	}
}
