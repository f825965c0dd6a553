package indicators

import (
	"math"

	apperrors "pattern-trader/internal/errors"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = apperrors.ErrInsufficientData
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = apperrors.ErrInvalidPeriod
	// ErrLengthMismatch is returned when high, low and close series differ in length.
	ErrLengthMismatch = apperrors.ErrLengthMismatch
)

// checkPeriod rejects non-positive periods.
func checkPeriod(name string, periods ...int) error {
	for _, p := range periods {
		if p <= 0 {
			return apperrors.Wrapf(ErrInvalidPeriod, "%s: period %d", name, p)
		}
	}
	return nil
}

// checkLength returns a DataError when fewer than need values are available.
func checkLength(name string, need, got int) error {
	if got < need {
		return apperrors.NewDataError(name, need, got)
	}
	return nil
}

// checkHLC verifies that the three series are aligned.
func checkHLC(name string, highs, lows, closes []float64) error {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return apperrors.Wrapf(ErrLengthMismatch, "%s: highs=%d lows=%d closes=%d",
			name, len(highs), len(lows), len(closes))
	}
	return nil
}

// max returns the maximum of two float64 values.
func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// abs returns the absolute value of a float64.
func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// stdDev calculates the population standard deviation of a slice of float64.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// trueRange calculates the true range of a bar given the previous close.
func trueRange(high, low, prevClose float64) float64 {
	highLow := high - low
	highClose := abs(high - prevClose)
	lowClose := abs(low - prevClose)
	return max(highLow, max(highClose, lowClose))
}

// highest returns the highest value in a slice.
func highest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	h := values[0]
	for _, v := range values[1:] {
		if v > h {
			h = v
		}
	}
	return h
}

// lowest returns the lowest value in a slice.
func lowest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	l := values[0]
	for _, v := range values[1:] {
		if v < l {
			l = v
		}
	}
	return l
}

// last returns the final element of a non-empty slice.
func last(values []float64) float64 {
	return values[len(values)-1]
}
