// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"sync"
	"time"

	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/models"
)

// EngineConfig holds the periods the snapshot engine computes with.
type EngineConfig struct {
	Workers          int
	RSIPeriod        int
	StochasticPeriod int
	WilliamsRPeriod  int
	ATRPeriod        int
	BollingerPeriod  int
	BollingerK       float64
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
}

// DefaultEngineConfig returns the standard periods.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:          4,
		RSIPeriod:        DefaultRSIPeriod,
		StochasticPeriod: DefaultStochasticPeriod,
		WilliamsRPeriod:  DefaultWilliamsRPeriod,
		ATRPeriod:        DefaultATRPeriod,
		BollingerPeriod:  DefaultBollingerPeriod,
		BollingerK:       DefaultBollingerK,
		MACDFast:         DefaultMACDFast,
		MACDSlow:         DefaultMACDSlow,
		MACDSignal:       DefaultMACDSignal,
	}
}

// series is the column view of a candle window shared by all jobs.
type series struct {
	highs  []float64
	lows   []float64
	closes []float64
}

// job fills one or more snapshot fields. Each job owns distinct fields.
type job struct {
	name string
	run  func(s series, snap *models.IndicatorSnapshot) error
}

// Engine computes indicator snapshots using a worker pool.
type Engine struct {
	cfg  EngineConfig
	jobs []job
	now  func() time.Time
}

// NewEngine creates a new indicator engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	e := &Engine{cfg: cfg, now: time.Now}
	e.jobs = e.buildJobs()
	return e
}

func (e *Engine) buildJobs() []job {
	cfg := e.cfg
	return []job{
		{name: "rsi", run: func(s series, snap *models.IndicatorSnapshot) error {
			r, err := RSI(s.closes, cfg.RSIPeriod)
			if err != nil {
				return err
			}
			snap.RSI = models.Float(r.Value)
			return nil
		}},
		{name: "macd", run: func(s series, snap *models.IndicatorSnapshot) error {
			if err := checkLength("MACD", cfg.MACDSlow, len(s.closes)); err != nil {
				return err
			}
			m, err := MACD(s.closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
			if err != nil {
				return err
			}
			macd, signal, hist, ok := m.Last()
			if !ok {
				return apperrors.NewDataError("MACD", cfg.MACDSlow, 0)
			}
			snap.MACD = models.Float(macd)
			snap.MACDSignal = models.Float(signal)
			snap.MACDHistogram = models.Float(hist)
			return nil
		}},
		{name: "ema20", run: emaJob(20, func(snap *models.IndicatorSnapshot, v float64) { snap.EMA20 = models.Float(v) })},
		{name: "ema50", run: emaJob(50, func(snap *models.IndicatorSnapshot, v float64) { snap.EMA50 = models.Float(v) })},
		{name: "ema200", run: emaJob(200, func(snap *models.IndicatorSnapshot, v float64) { snap.EMA200 = models.Float(v) })},
		{name: "sma20", run: smaJob(20, func(snap *models.IndicatorSnapshot, v float64) { snap.SMA20 = models.Float(v) })},
		{name: "sma50", run: smaJob(50, func(snap *models.IndicatorSnapshot, v float64) { snap.SMA50 = models.Float(v) })},
		{name: "bollinger", run: func(s series, snap *models.IndicatorSnapshot) error {
			bb, err := BollingerBands(s.closes, cfg.BollingerPeriod, cfg.BollingerK)
			if err != nil {
				return err
			}
			snap.BollingerUpper = models.Float(last(bb.Upper))
			snap.BollingerMiddle = models.Float(last(bb.Middle))
			snap.BollingerLower = models.Float(last(bb.Lower))
			return nil
		}},
		{name: "stochastic", run: func(s series, snap *models.IndicatorSnapshot) error {
			r, err := Stochastic(s.highs, s.lows, s.closes, cfg.StochasticPeriod)
			if err != nil {
				return err
			}
			snap.Stochastic = models.Float(r.Value)
			return nil
		}},
		{name: "williamsR", run: func(s series, snap *models.IndicatorSnapshot) error {
			r, err := WilliamsR(s.highs, s.lows, s.closes, cfg.WilliamsRPeriod)
			if err != nil {
				return err
			}
			snap.WilliamsR = models.Float(r.Value)
			return nil
		}},
		{name: "atr", run: func(s series, snap *models.IndicatorSnapshot) error {
			v, err := ATR(s.highs, s.lows, s.closes, cfg.ATRPeriod)
			if err != nil {
				return err
			}
			snap.ATR = models.Float(v)
			return nil
		}},
	}
}

func emaJob(period int, set func(*models.IndicatorSnapshot, float64)) func(series, *models.IndicatorSnapshot) error {
	return func(s series, snap *models.IndicatorSnapshot) error {
		if err := checkLength("EMA", period, len(s.closes)); err != nil {
			return err
		}
		values, err := EMA(s.closes, period)
		if err != nil {
			return err
		}
		set(snap, last(values))
		return nil
	}
}

func smaJob(period int, set func(*models.IndicatorSnapshot, float64)) func(series, *models.IndicatorSnapshot) error {
	return func(s series, snap *models.IndicatorSnapshot) error {
		v, err := SMA(s.closes, period)
		if err != nil {
			return err
		}
		set(snap, v)
		return nil
	}
}

// Snapshot calculates every indicator over candles in parallel. Fields whose
// indicator lacks enough history are left nil. Any other failure is returned.
func (e *Engine) Snapshot(ctx context.Context, symbol, timeframe string, candles []models.Candle) (*models.IndicatorSnapshot, error) {
	s := series{
		highs:  models.Highs(candles),
		lows:   models.Lows(candles),
		closes: models.Closes(candles),
	}
	snap := &models.IndicatorSnapshot{
		Symbol:      symbol,
		Timeframe:   timeframe,
		LastUpdated: e.now().UTC(),
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)

	work := make(chan job, len(e.jobs))

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}

				// Jobs write disjoint fields but share the struct, so serialize the writes.
				local := &models.IndicatorSnapshot{}
				err := j.run(s, local)

				mu.Lock()
				if err != nil {
					if !apperrors.Is(err, ErrInsufficientData) && firstErr == nil {
						firstErr = apperrors.Wrapf(err, "indicator %s", j.name)
					}
				} else {
					merge(snap, local)
				}
				mu.Unlock()
			}
		}()
	}

	for _, j := range e.jobs {
		work <- j
	}
	close(work)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return snap, nil
}

// merge copies every non-nil indicator field from src into dst.
func merge(dst, src *models.IndicatorSnapshot) {
	fields := []struct {
		to   **float64
		from *float64
	}{
		{&dst.RSI, src.RSI},
		{&dst.MACD, src.MACD},
		{&dst.MACDSignal, src.MACDSignal},
		{&dst.MACDHistogram, src.MACDHistogram},
		{&dst.EMA20, src.EMA20},
		{&dst.EMA50, src.EMA50},
		{&dst.EMA200, src.EMA200},
		{&dst.SMA20, src.SMA20},
		{&dst.SMA50, src.SMA50},
		{&dst.BollingerUpper, src.BollingerUpper},
		{&dst.BollingerMiddle, src.BollingerMiddle},
		{&dst.BollingerLower, src.BollingerLower},
		{&dst.Stochastic, src.Stochastic},
		{&dst.WilliamsR, src.WilliamsR},
		{&dst.ATR, src.ATR},
	}
	for _, f := range fields {
		if f.from != nil {
			*f.to = f.from
		}
	}
}
