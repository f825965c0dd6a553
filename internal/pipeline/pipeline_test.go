package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"pattern-trader/internal/analysis"
	"pattern-trader/internal/analysis/indicators"
	"pattern-trader/internal/analysis/patterns"
	"pattern-trader/internal/analysis/scoring"
	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/models"
	"pattern-trader/internal/store"
)

type published struct {
	channel string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{channel, payload})
	return nil
}

func (p *recordingPublisher) on(channel string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []any
	for _, e := range p.events {
		if e.channel == channel {
			out = append(out, e.payload)
		}
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) error {
	return fmt.Errorf("publisher down")
}

// flakyStore fails the first saves of each kind, then delegates.
type flakyStore struct {
	store.DataStore
	failSignals  int
	failPatterns int
}

func (f *flakyStore) SaveSignal(ctx context.Context, sig *models.Signal) error {
	if f.failSignals > 0 {
		f.failSignals--
		return fmt.Errorf("database is locked")
	}
	return f.DataStore.SaveSignal(ctx, sig)
}

func (f *flakyStore) SavePatterns(ctx context.Context, records []models.PatternRecord) error {
	if f.failPatterns > 0 {
		f.failPatterns--
		return fmt.Errorf("database is locked")
	}
	return f.DataStore.SavePatterns(ctx, records)
}

var baseTime = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// trendCandles builds a steady uptrend ending in a doji.
func trendCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		open := 1.1 + float64(i)*0.001
		close := open + 0.0008
		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      close + 0.0004,
			Low:       open - 0.0004,
			Close:     close,
			Volume:    1000,
		}
	}
	last := &candles[n-1]
	last.Close = last.Open + 0.00001
	last.High = last.Open + 0.001
	last.Low = last.Open - 0.001
	return candles
}

func newAnalyzer(volume scoring.VolumeEvidence) *Analyzer {
	return NewAnalyzer(
		indicators.NewEngine(indicators.DefaultEngineConfig()),
		patterns.NewCandlestickDetector(),
		scoring.NewSignalScorer(volume),
		0,
	)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAnalyze(t *testing.T) {
	a := newAnalyzer(scoring.AlwaysVolumeEvidence{})
	candles := trendCandles(60)

	result, err := a.Analyze(context.Background(), "EUR/USD", "1h", candles)
	if err != nil {
		t.Fatal(err)
	}

	if result.LastPrice != candles[59].Close {
		t.Errorf("last price = %v", result.LastPrice)
	}
	if result.Snapshot == nil || result.Snapshot.EMA50 == nil || result.Snapshot.EMA200 != nil {
		t.Errorf("snapshot fields = %+v", result.Snapshot)
	}

	var sawDoji bool
	for _, m := range result.Patterns {
		if m.Name == analysis.PatternDoji {
			sawDoji = true
		}
	}
	if !sawDoji {
		t.Errorf("expected Doji, got %+v", result.Patterns)
	}
	if !result.Signal.VolumeSurge {
		t.Error("volume evidence not applied")
	}
	if result.RiskReward < 1.99 || result.RiskReward > 2.01 {
		t.Errorf("risk reward = %v, want 2", result.RiskReward)
	}
	if result.Signal.Direction == models.DirectionBuy && result.Levels.Target <= result.Levels.Entry {
		t.Errorf("buy target below entry: %+v", result.Levels)
	}

	sig := result.SignalRecord("id-1", baseTime)
	if sig.Confidence != result.Signal.Confidence || !sig.IsActive || sig.RSIValue != result.Snapshot.RSI {
		t.Errorf("signal record = %+v", sig)
	}
}

type fixedDetector []analysis.PatternMatch

func (d fixedDetector) DetectAll([]models.Candle) []analysis.PatternMatch { return d }

func TestAnalyzeUsesInjectedDetector(t *testing.T) {
	detector := fixedDetector{{
		Name:       analysis.PatternBullishEngulfing,
		Type:       analysis.PatternBullish,
		Confidence: 80,
		IsValid:    true,
	}}
	a := NewAnalyzer(indicators.NewEngine(indicators.DefaultEngineConfig()), detector, scoring.NewSignalScorer(nil), 0)

	result, err := a.Analyze(context.Background(), "EUR/USD", "1h", trendCandles(60))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Patterns) != 1 || result.Patterns[0].Name != analysis.PatternBullishEngulfing {
		t.Fatalf("patterns = %+v", result.Patterns)
	}
	var found bool
	for _, reason := range result.Signal.Reasons {
		if strings.Contains(reason, string(analysis.PatternBullishEngulfing)) {
			found = true
		}
	}
	if !found {
		t.Errorf("pattern evidence missing from reasons %v", result.Signal.Reasons)
	}
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	_, err := newAnalyzer(nil).Analyze(context.Background(), "EUR/USD", "1h", nil)
	if !apperrors.Is(err, apperrors.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestPatternStatus(t *testing.T) {
	cases := map[float64]models.PatternStatus{
		80: models.PatternActive,
		75: models.PatternActive,
		70: models.PatternForming,
		65: models.PatternForming,
		60: models.PatternWeak,
	}
	for conf, want := range cases {
		if got := patternStatus(conf); got != want {
			t.Errorf("patternStatus(%v) = %s, want %s", conf, got, want)
		}
	}
}

func TestRunnerEmitsOncePerBar(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pub := &recordingPublisher{}
	metrics := NewMetrics(prometheus.NewRegistry())

	candles := trendCandles(60)
	if err := st.SaveCandles(ctx, "EUR/USD", "1h", candles); err != nil {
		t.Fatal(err)
	}

	watch := Watch{Symbol: "EUR/USD", Timeframe: "1h"}
	cfg := RunnerConfig{MinConfidence: 0, HistoryLimit: 100, Watches: []Watch{watch}}
	runner := NewRunner(cfg, st, newAnalyzer(scoring.AlwaysVolumeEvidence{}), pub, zerolog.Nop(), metrics)
	ids := 0
	runner.newID = func() string { ids++; return fmt.Sprintf("sig-%d", ids) }

	runner.Tick(ctx)

	if n := len(pub.on(models.ChannelPrices)); n != 2 {
		t.Errorf("prices events = %d, want price and indicators", n)
	}
	if len(pub.on(models.ChannelPatterns)) == 0 {
		t.Error("no pattern events")
	}
	signals := pub.on(models.ChannelSignals)
	if len(signals) != 1 {
		t.Fatalf("signal events = %d", len(signals))
	}
	ev, ok := signals[0].(models.SignalEvent)
	if !ok || ev.Type != models.EventNewSignal || ev.Signal.ID != "sig-1" {
		t.Errorf("signal event = %+v", signals[0])
	}

	// Same bar: prices only.
	runner.Tick(ctx)
	if n := len(pub.on(models.ChannelSignals)); n != 1 {
		t.Errorf("signal re-emitted for the same bar: %d", n)
	}
	if n := len(pub.on(models.ChannelPrices)); n != 4 {
		t.Errorf("prices events = %d, want 4", n)
	}

	// New bar: previous signal is deactivated first.
	next := candles[59]
	next.Timestamp = next.Timestamp.Add(time.Hour)
	if err := st.SaveCandles(ctx, "EUR/USD", "1h", []models.Candle{next}); err != nil {
		t.Fatal(err)
	}
	runner.Tick(ctx)

	signals = pub.on(models.ChannelSignals)
	if len(signals) != 3 {
		t.Fatalf("signal events = %d, want deactivate + new", len(signals))
	}
	if d, ok := signals[1].(models.SignalDeactivatedEvent); !ok || d.ID != "sig-1" {
		t.Errorf("expected deactivation of sig-1, got %+v", signals[1])
	}

	active, err := st.GetActiveSignals(ctx, store.SignalFilter{Symbol: "EUR/USD"})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "sig-2" {
		t.Errorf("active = %+v", active)
	}

	if got := testutil.ToFloat64(metrics.Analyses.WithLabelValues("EUR/USD", "1h")); got != 3 {
		t.Errorf("analyses = %v", got)
	}
}

func TestRunnerRespectsMinConfidence(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pub := &recordingPublisher{}

	if err := st.SaveCandles(ctx, "EUR/USD", "1h", trendCandles(60)); err != nil {
		t.Fatal(err)
	}

	cfg := RunnerConfig{MinConfidence: 101, Watches: []Watch{{"EUR/USD", "1h"}}}
	runner := NewRunner(cfg, st, newAnalyzer(nil), pub, zerolog.Nop(), nil)
	runner.Tick(ctx)

	if n := len(pub.on(models.ChannelSignals)); n != 0 {
		t.Errorf("signal emitted below threshold: %d", n)
	}
	active, _ := st.GetActiveSignals(ctx, store.SignalFilter{})
	if len(active) != 0 {
		t.Errorf("signal stored below threshold")
	}
}

func TestRunnerToleratesMissingHistoryAndPublisherErrors(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.SaveCandles(ctx, "EUR/USD", "1h", trendCandles(30)); err != nil {
		t.Fatal(err)
	}

	cfg := RunnerConfig{Watches: []Watch{{"GBP/USD", "1h"}, {"EUR/USD", "1h"}}}
	runner := NewRunner(cfg, st, newAnalyzer(nil), MultiPublisher{failingPublisher{}}, zerolog.Nop(), nil)

	if _, err := runner.Process(ctx, Watch{"GBP/USD", "1h"}); !apperrors.Is(err, apperrors.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := runner.Process(ctx, Watch{"EUR/USD", "1h"}); err != nil {
		t.Errorf("publisher errors must not fail the pass: %v", err)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	st := newTestStore(t)
	runner := NewRunner(RunnerConfig{Interval: 10 * time.Millisecond}, st, newAnalyzer(nil), nil, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestMultiPublisherJoinsErrors(t *testing.T) {
	rec := &recordingPublisher{}
	m := MultiPublisher{rec, failingPublisher{}}
	if err := m.Publish(context.Background(), "signals", 1); err == nil {
		t.Error("expected joined error")
	}
	if len(rec.on("signals")) != 1 {
		t.Error("healthy publisher skipped")
	}
}

func TestRunnerRetriesBarAfterSaveFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pub := &recordingPublisher{}

	candles := trendCandles(60)
	if err := st.SaveCandles(ctx, "EUR/USD", "1h", candles); err != nil {
		t.Fatal(err)
	}

	watch := Watch{Symbol: "EUR/USD", Timeframe: "1h"}
	flaky := &flakyStore{DataStore: st, failPatterns: 1}
	runner := NewRunner(RunnerConfig{MinConfidence: 0, Watches: []Watch{watch}}, flaky,
		newAnalyzer(scoring.AlwaysVolumeEvidence{}), pub, zerolog.Nop(), nil)
	ids := 0
	runner.newID = func() string { ids++; return fmt.Sprintf("sig-%d", ids) }

	// Pattern save fails: nothing is emitted for the bar yet.
	if _, err := runner.Process(ctx, watch); err == nil {
		t.Fatal("expected pattern save error")
	}
	if len(pub.on(models.ChannelPatterns)) != 0 || len(pub.on(models.ChannelSignals)) != 0 {
		t.Fatal("events published for a failed bar")
	}

	// Patterns succeed, signal save fails: patterns are not stored twice on retry.
	flaky.failSignals = 1
	if _, err := runner.Process(ctx, watch); err == nil {
		t.Fatal("expected signal save error")
	}
	patternEvents := len(pub.on(models.ChannelPatterns))
	if patternEvents == 0 {
		t.Fatal("patterns not emitted after recovery")
	}

	if _, err := runner.Process(ctx, watch); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := len(pub.on(models.ChannelPatterns)); n != patternEvents {
		t.Errorf("patterns re-emitted: %d, want %d", n, patternEvents)
	}
	active, err := st.GetActiveSignals(ctx, store.SignalFilter{Symbol: "EUR/USD"})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("active signals after retry = %d, want 1", len(active))
	}

	// Bar is now done.
	if _, err := runner.Process(ctx, watch); err != nil {
		t.Fatal(err)
	}
	if n := len(pub.on(models.ChannelSignals)); n != 1 {
		t.Errorf("signal events = %d, want 1", n)
	}
}

func TestRunnerKeepsActiveSignalWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pub := &recordingPublisher{}

	candles := trendCandles(60)
	if err := st.SaveCandles(ctx, "EUR/USD", "1h", candles); err != nil {
		t.Fatal(err)
	}

	watch := Watch{Symbol: "EUR/USD", Timeframe: "1h"}
	flaky := &flakyStore{DataStore: st}
	runner := NewRunner(RunnerConfig{MinConfidence: 0, Watches: []Watch{watch}}, flaky,
		newAnalyzer(scoring.AlwaysVolumeEvidence{}), pub, zerolog.Nop(), nil)
	ids := 0
	runner.newID = func() string { ids++; return fmt.Sprintf("sig-%d", ids) }

	if _, err := runner.Process(ctx, watch); err != nil {
		t.Fatal(err)
	}

	next := candles[59]
	next.Timestamp = next.Timestamp.Add(time.Hour)
	if err := st.SaveCandles(ctx, "EUR/USD", "1h", []models.Candle{next}); err != nil {
		t.Fatal(err)
	}

	flaky.failSignals = 1
	if _, err := runner.Process(ctx, watch); err == nil {
		t.Fatal("expected signal save error")
	}
	active, err := st.GetActiveSignals(ctx, store.SignalFilter{Symbol: "EUR/USD"})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "sig-1" {
		t.Errorf("active = %+v, want sig-1 kept", active)
	}
	for _, ev := range pub.on(models.ChannelSignals) {
		if _, ok := ev.(models.SignalDeactivatedEvent); ok {
			t.Errorf("deactivation published before the replacement was stored")
		}
	}
}
