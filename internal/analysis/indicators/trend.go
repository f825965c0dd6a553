package indicators

// MACD default periods.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// SMA calculates the Simple Moving Average of the trailing period.
func SMA(prices []float64, period int) (float64, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return 0, err
	}
	if err := checkLength("SMA", period, len(prices)); err != nil {
		return 0, err
	}
	return mean(prices[len(prices)-period:]), nil
}

// EMA calculates the Exponential Moving Average seeded with the first price.
// The output has the same length as the input; empty input yields empty output.
func EMA(prices []float64, period int) ([]float64, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}

	result := make([]float64, len(prices))
	if len(prices) == 0 {
		return result, nil
	}

	multiplier := 2.0 / float64(period+1)
	result[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		result[i] = prices[i]*multiplier + result[i-1]*(1-multiplier)
	}

	return result, nil
}

// MACDResult holds the three MACD series, aligned to the input index.
type MACDResult struct {
	MACD      []float64 `json:"macd"`
	Signal    []float64 `json:"signal"`
	Histogram []float64 `json:"histogram"`
}

// Last returns the final macd, signal and histogram values.
// ok is false when the series are empty.
func (m MACDResult) Last() (macd, signal, histogram float64, ok bool) {
	if len(m.MACD) == 0 {
		return 0, 0, 0, false
	}
	return last(m.MACD), last(m.Signal), last(m.Histogram), true
}

// MACD calculates Moving Average Convergence Divergence.
func MACD(prices []float64, fast, slow, signal int) (MACDResult, error) {
	if err := checkPeriod("MACD", fast, slow, signal); err != nil {
		return MACDResult{}, err
	}

	fastEMA, _ := EMA(prices, fast)
	slowEMA, _ := EMA(prices, slow)

	macd := make([]float64, len(prices))
	for i := range prices {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine, _ := EMA(macd, signal)

	histogram := make([]float64, len(prices))
	for i := range macd {
		histogram[i] = macd[i] - signalLine[i]
	}

	return MACDResult{
		MACD:      macd,
		Signal:    signalLine,
		Histogram: histogram,
	}, nil
}
