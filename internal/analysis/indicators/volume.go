package indicators

import (
	apperrors "pattern-trader/internal/errors"
)

// VolumeRatio compares the last volume with the mean of the preceding period
// volumes. A ratio of 1.5 means the last bar traded 50% above average.
func VolumeRatio(volumes []float64, period int) (float64, error) {
	if err := checkPeriod("VolumeRatio", period); err != nil {
		return 0, err
	}
	if err := checkLength("VolumeRatio", period+1, len(volumes)); err != nil {
		return 0, err
	}

	avg := mean(volumes[len(volumes)-period-1 : len(volumes)-1])
	if avg == 0 {
		return 0, apperrors.Wrap(apperrors.ErrDivisionByZero, "VolumeRatio: average volume is zero")
	}
	return last(volumes) / avg, nil
}
