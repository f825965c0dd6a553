package indicators

// Volatility defaults.
const (
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0
	DefaultATRPeriod       = 14
)

// BollingerResult holds one band value per complete window.
type BollingerResult struct {
	Upper  []float64 `json:"upper"`
	Middle []float64 `json:"middle"`
	Lower  []float64 `json:"lower"`
}

// BollingerBands calculates bands from a rolling mean and population standard
// deviation. The output has len(prices)-period+1 entries.
func BollingerBands(prices []float64, period int, k float64) (BollingerResult, error) {
	if err := checkPeriod("BollingerBands", period); err != nil {
		return BollingerResult{}, err
	}
	if err := checkLength("BollingerBands", period, len(prices)); err != nil {
		return BollingerResult{}, err
	}

	n := len(prices) - period + 1
	result := BollingerResult{
		Upper:  make([]float64, n),
		Middle: make([]float64, n),
		Lower:  make([]float64, n),
	}

	for i := 0; i < n; i++ {
		window := prices[i : i+period]
		sma := mean(window)
		sd := stdDev(window)

		result.Middle[i] = sma
		result.Upper[i] = sma + k*sd
		result.Lower[i] = sma - k*sd
	}

	return result, nil
}

// ATR calculates the Average True Range as the simple mean of the last period
// true ranges. True range starts at index 1.
func ATR(highs, lows, closes []float64, period int) (float64, error) {
	if err := checkPeriod("ATR", period); err != nil {
		return 0, err
	}
	if err := checkHLC("ATR", highs, lows, closes); err != nil {
		return 0, err
	}
	if err := checkLength("ATR", period+1, len(closes)); err != nil {
		return 0, err
	}

	tr := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr = append(tr, trueRange(highs[i], lows[i], closes[i-1]))
	}

	return mean(tr[len(tr)-period:]), nil
}
