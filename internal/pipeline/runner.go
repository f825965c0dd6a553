package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/logging"
	"pattern-trader/internal/models"
	"pattern-trader/internal/store"
)

// Publisher delivers an event payload on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// MultiPublisher publishes to every wrapped publisher and joins their errors.
type MultiPublisher []Publisher

// Publish implements Publisher.
func (m MultiPublisher) Publish(ctx context.Context, channel string, payload any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, channel, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Watch is one (symbol, timeframe) series analyzed on every tick.
type Watch struct {
	Symbol    string
	Timeframe string
}

func (w Watch) key() string {
	return w.Symbol + "/" + w.Timeframe
}

// RunnerConfig holds runner settings.
type RunnerConfig struct {
	Interval      time.Duration
	MinConfidence int
	HistoryLimit  int
	Watches       []Watch
}

// DefaultRunnerConfig returns the default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval:      30 * time.Second,
		MinConfidence: 60,
		HistoryLimit:  250,
	}
}

// Runner periodically analyzes every watch. Prices and indicators are
// published on every tick; patterns and signals only once per new bar.
type Runner struct {
	cfg       RunnerConfig
	store     store.DataStore
	analyzer  *Analyzer
	publisher Publisher
	logger    zerolog.Logger
	metrics   *Metrics

	newID func() string
	now   func() time.Time

	mu       sync.Mutex
	progress map[string]barProgress
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig, st store.DataStore, analyzer *Analyzer, publisher Publisher, logger zerolog.Logger, metrics *Metrics) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}

	return &Runner{
		cfg:       cfg,
		store:     st,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logging.WithComponent(logger, "pipeline"),
		metrics:   metrics,
		newID:     uuid.NewString,
		now:       time.Now,
		progress:  make(map[string]barProgress),
	}
}

// Run ticks immediately and then every Interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.cfg.Interval).
		Int("watches", len(r.cfg.Watches)).
		Msg("Pipeline started")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Pipeline stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick processes every watch once. Failures are logged per watch.
func (r *Runner) Tick(ctx context.Context) {
	for _, w := range r.cfg.Watches {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.Process(ctx, w); err != nil {
			logger := logging.WithSymbol(r.logger, w.Symbol, w.Timeframe)
			if errors.Is(err, apperrors.ErrInsufficientData) {
				logger.Debug().Err(err).Msg("Not enough history")
				continue
			}
			logger.Error().Err(err).Msg("Analysis failed")
		}
	}
}

// Process analyzes one watch and publishes the results.
func (r *Runner) Process(ctx context.Context, w Watch) (*Analysis, error) {
	start := time.Now()
	logger := logging.WithSymbol(r.logger, w.Symbol, w.Timeframe)

	candles, err := r.store.GetRecentCandles(ctx, w.Symbol, w.Timeframe, r.cfg.HistoryLimit)
	if err != nil {
		r.metrics.failed(w.Symbol, w.Timeframe)
		return nil, apperrors.Wrapf(err, "load candles for %s", w.key())
	}

	a, err := r.analyzer.Analyze(ctx, w.Symbol, w.Timeframe, candles)
	if err != nil {
		r.metrics.failed(w.Symbol, w.Timeframe)
		return nil, err
	}
	r.metrics.analyzed(w.Symbol, w.Timeframe, time.Since(start).Seconds())

	r.publish(ctx, logger, models.ChannelPrices, models.PriceUpdateEvent{
		Type:          models.EventPriceUpdate,
		Symbol:        a.Symbol,
		Timeframe:     a.Timeframe,
		Price:         a.LastPrice,
		Change:        a.Change,
		ChangePercent: a.ChangePercent,
	})
	r.publish(ctx, logger, models.ChannelPrices, models.IndicatorsEvent{
		Type:     models.EventIndicators,
		Snapshot: a.Snapshot,
	})

	progress := r.progressFor(w, a.BarTime)
	if progress.done {
		return a, nil
	}

	now := r.now().UTC()

	if !progress.patterns {
		if err := r.emitPatterns(ctx, logger, a, now); err != nil {
			return a, err
		}
		r.markPatterns(w, a.BarTime)
	}

	if a.Signal.Confidence < r.cfg.MinConfidence {
		logger.Debug().Int("confidence", a.Signal.Confidence).Msg("Signal below threshold")
		r.markDone(w, a.BarTime)
		return a, nil
	}

	if err := r.emitSignal(ctx, logger, a, now); err != nil {
		return a, err
	}
	r.markDone(w, a.BarTime)
	return a, nil
}

// barProgress tracks how far the latest bar of a watch has been emitted.
// A bar is retried on the next tick until done.
type barProgress struct {
	bar      time.Time
	patterns bool
	done     bool
}

// progressFor returns the emit progress for bar. An older bar reads as done.
func (r *Runner) progressFor(w Watch, bar time.Time) barProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[w.key()]
	if !ok || bar.After(p.bar) {
		return barProgress{bar: bar}
	}
	if bar.Before(p.bar) {
		return barProgress{bar: bar, patterns: true, done: true}
	}
	return p
}

func (r *Runner) markPatterns(w Watch, bar time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[w.key()] = barProgress{bar: bar, patterns: true}
}

func (r *Runner) markDone(w Watch, bar time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[w.key()] = barProgress{bar: bar, patterns: true, done: true}
}

func (r *Runner) emitPatterns(ctx context.Context, logger zerolog.Logger, a *Analysis, now time.Time) error {
	records := a.PatternRecords(now)
	if len(records) == 0 {
		return nil
	}
	if err := r.store.SavePatterns(ctx, records); err != nil {
		return apperrors.Wrap(err, "save patterns")
	}
	for i := range records {
		r.metrics.pattern(records[i].PatternName)
		r.publish(ctx, logger, models.ChannelPatterns, models.PatternEvent{
			Type:    models.EventNewPattern,
			Pattern: &records[i],
		})
	}
	return nil
}

// emitSignal stores the new signal before retiring the previous ones, so a
// failed save leaves the earlier signal active.
func (r *Runner) emitSignal(ctx context.Context, logger zerolog.Logger, a *Analysis, now time.Time) error {
	active, err := r.store.GetActiveSignals(ctx, store.SignalFilter{Symbol: a.Symbol, Timeframe: a.Timeframe})
	if err != nil {
		return apperrors.Wrap(err, "load active signals")
	}

	sig := a.SignalRecord(r.newID(), now)
	if err := r.store.SaveSignal(ctx, sig); err != nil {
		return apperrors.Wrap(err, "save signal")
	}

	for _, prev := range active {
		if err := r.store.DeactivateSignal(ctx, prev.ID); err != nil && !errors.Is(err, apperrors.ErrDataNotFound) {
			return apperrors.Wrapf(err, "deactivate signal %s", prev.ID)
		}
		r.publish(ctx, logger, models.ChannelSignals, models.SignalDeactivatedEvent{
			Type: models.EventSignalDeactivated,
			ID:   prev.ID,
		})
	}

	r.metrics.signal(sig.Symbol, string(sig.Direction))
	logging.LogSignal(logger, sig.Symbol, string(sig.Direction), sig.Confidence, sig.Reasons)

	r.publish(ctx, logger, models.ChannelSignals, models.SignalEvent{
		Type:   models.EventNewSignal,
		Signal: sig,
	})
	return nil
}

// publish never fails the pass; a broken publisher only loses the event.
func (r *Runner) publish(ctx context.Context, logger zerolog.Logger, channel string, payload any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, channel, payload); err != nil {
		logger.Warn().Err(err).Str("channel", channel).Msg("Publish failed")
	}
}
