package scoring

import (
	"math"

	"pattern-trader/internal/analysis"
	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/models"
)

// DefaultVolatilityOffset is 20 pips on a four-decimal forex quote.
const DefaultVolatilityOffset = 0.002

// CalculateRiskReward returns |target-entry| / |entry-stop|.
func CalculateRiskReward(entry, target, stop float64) (float64, error) {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0, apperrors.Wrapf(apperrors.ErrDivisionByZero, "risk/reward: entry %.5f equals stop", entry)
	}
	return math.Abs(target-entry) / risk, nil
}

// GenerateEntryLevels places the target two offsets and the stop one offset
// from price, on the side given by direction. A non-positive offset uses
// DefaultVolatilityOffset.
func GenerateEntryLevels(price float64, direction models.Direction, offset float64) analysis.Levels {
	if offset <= 0 {
		offset = DefaultVolatilityOffset
	}

	if direction == models.DirectionSell {
		return analysis.Levels{
			Entry:    price,
			Target:   price - offset*2,
			StopLoss: price + offset,
		}
	}
	return analysis.Levels{
		Entry:    price,
		Target:   price + offset*2,
		StopLoss: price - offset,
	}
}
