package scoring

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"pattern-trader/internal/analysis"
	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/models"
)

func f(v float64) *float64 { return &v }

func TestAnalyzeSignal_Oversold(t *testing.T) {
	snap := &models.IndicatorSnapshot{
		RSI:        f(25),
		MACD:       f(0.002),
		MACDSignal: f(0.001),
		EMA20:      f(1.10),
		EMA50:      f(1.09),
	}
	got := NewSignalScorer(nil).AnalyzeSignal(nil, snap, nil)

	want := []string{
		"RSI Oversold (25.00)",
		"MACD Bullish Crossover",
		"EMA 20 above EMA 50 (Uptrend)",
	}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Errorf("reasons = %v, want %v", got.Reasons, want)
	}
	if got.Confidence != 60 || got.Direction != models.DirectionBuy || got.RiskLevel != analysis.RiskMedium {
		t.Errorf("got %+v", got)
	}
}

func TestAnalyzeSignal_OverboughtGatesBullishEvidence(t *testing.T) {
	snap := &models.IndicatorSnapshot{
		RSI:        f(81.234),
		MACD:       f(0.002),
		MACDSignal: f(0.001),
		EMA20:      f(1.08),
		EMA50:      f(1.09),
	}
	got := NewSignalScorer(nil).AnalyzeSignal(nil, snap, nil)

	want := []string{
		"RSI Overbought (81.23)",
		"EMA 20 below EMA 50 (Downtrend)",
	}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Errorf("reasons = %v, want %v", got.Reasons, want)
	}
	if got.Direction != models.DirectionSell || got.Confidence != 40 || got.RiskLevel != analysis.RiskHigh {
		t.Errorf("got %+v", got)
	}
}

func TestAnalyzeSignal_NeutralRSIDefaultsToBuy(t *testing.T) {
	snap := &models.IndicatorSnapshot{
		RSI:        f(50),
		MACD:       f(-0.002),
		MACDSignal: f(0.001),
	}
	got := NewSignalScorer(nil).AnalyzeSignal(nil, snap, nil)
	if got.Direction != models.DirectionBuy || got.Confidence != 0 || len(got.Reasons) != 0 {
		t.Errorf("bearish MACD must not count without a SELL direction, got %+v", got)
	}
	if got.RiskLevel != analysis.RiskHigh {
		t.Errorf("risk = %s, want HIGH", got.RiskLevel)
	}
}

func TestAnalyzeSignal_AbsentInputsSkipped(t *testing.T) {
	got := NewSignalScorer(nil).AnalyzeSignal(nil, nil, nil)
	if got.Confidence != 0 || got.Direction != models.DirectionBuy || got.Reasons == nil {
		t.Errorf("got %+v", got)
	}

	// MACD without its signal line is ignored.
	got = NewSignalScorer(nil).AnalyzeSignal(nil, &models.IndicatorSnapshot{MACD: f(1)}, nil)
	if got.Confidence != 0 {
		t.Errorf("partial MACD should be skipped, got %+v", got)
	}
}

func TestAnalyzeSignal_ClampedWhenEverythingFires(t *testing.T) {
	snap := &models.IndicatorSnapshot{
		RSI:        f(10),
		MACD:       f(0.5),
		MACDSignal: f(0.1),
		EMA20:      f(2),
		EMA50:      f(1),
	}
	patterns := []string{"Doji", "Hammer", "Bullish Engulfing", "Pin Bar"}
	got := NewSignalScorer(AlwaysVolumeEvidence{}).AnalyzeSignal(nil, snap, patterns)

	if got.Confidence != 100 {
		t.Errorf("confidence = %d, want 100", got.Confidence)
	}
	if got.RiskLevel != analysis.RiskLow {
		t.Errorf("risk = %s, want LOW", got.RiskLevel)
	}
	if last := got.Reasons[len(got.Reasons)-1]; last != "Volume Surge Confirmed" {
		t.Errorf("last reason = %q", last)
	}
	if got.Reasons[3] != "Doji Pattern Detected" {
		t.Errorf("pattern reason = %q", got.Reasons[3])
	}
	if !got.VolumeSurge {
		t.Error("expected volume surge flag")
	}
}

func TestCalculateRiskReward(t *testing.T) {
	rr, err := CalculateRiskReward(1.1000, 1.1040, 1.0980)
	if err != nil {
		t.Fatal(err)
	}
	if rr < 1.999 || rr > 2.001 {
		t.Errorf("rr = %v, want 2", rr)
	}

	_, err = CalculateRiskReward(1.1, 1.2, 1.1)
	if !errors.Is(err, apperrors.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestGenerateEntryLevels(t *testing.T) {
	buy := GenerateEntryLevels(1.1, models.DirectionBuy, 0)
	if buy.Entry != 1.1 || buy.Target != 1.1+0.004 || buy.StopLoss != 1.1-0.002 {
		t.Errorf("buy levels = %+v", buy)
	}

	sell := GenerateEntryLevels(50000, models.DirectionSell, 100)
	if sell.Target != 49800 || sell.StopLoss != 50100 {
		t.Errorf("sell levels = %+v", sell)
	}
}

func volumeHistory(volumes ...float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(volumes))
	for i, v := range volumes {
		out[i] = models.Candle{Timestamp: base.Add(time.Duration(i) * time.Minute), Open: 1, High: 1, Low: 1, Close: 1, Volume: v}
	}
	return out
}

func TestVolumeRatioEvidence(t *testing.T) {
	ev := NewVolumeRatioEvidence(3, 1.5)

	if !ev.VolumeSurge(volumeHistory(100, 100, 100, 150)) {
		t.Error("1.5x average should surge")
	}
	if ev.VolumeSurge(volumeHistory(100, 100, 100, 149)) {
		t.Error("below threshold should not surge")
	}
	if ev.VolumeSurge(volumeHistory(100, 200)) {
		t.Error("short history should not surge")
	}
	if ev.VolumeSurge(volumeHistory(0, 0, 0, 0)) {
		t.Error("missing volume should not surge")
	}
}

func TestRandomVolumeEvidence_Seeded(t *testing.T) {
	a := NewRandomVolumeEvidence(42, DefaultSurgeProbability)
	b := NewRandomVolumeEvidence(42, DefaultSurgeProbability)

	hits := 0
	for i := 0; i < 1000; i++ {
		x, y := a.VolumeSurge(nil), b.VolumeSurge(nil)
		if x != y {
			t.Fatalf("draw %d differs for the same seed", i)
		}
		if x {
			hits++
		}
	}
	// Expect roughly 30% with a generous margin.
	if hits < 200 || hits > 400 {
		t.Errorf("hits = %d, expected about 300", hits)
	}
}

func TestNewVolumeEvidence(t *testing.T) {
	cases := map[string]bool{
		VolumeKindNone:   false,
		VolumeKindAlways: true,
	}
	for kind, want := range cases {
		ev, err := NewVolumeEvidence(VolumeOptions{Kind: kind})
		if err != nil {
			t.Fatal(err)
		}
		if got := ev.VolumeSurge(nil); got != want {
			t.Errorf("%s: got %v, want %v", kind, got, want)
		}
	}

	if _, err := NewVolumeEvidence(VolumeOptions{Kind: "coinflip"}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if ev, err := NewVolumeEvidence(VolumeOptions{Kind: VolumeKindRatio}); err != nil {
		t.Fatal(err)
	} else if _, ok := ev.(VolumeRatioEvidence); !ok {
		t.Errorf("expected VolumeRatioEvidence, got %T", ev)
	}
}
