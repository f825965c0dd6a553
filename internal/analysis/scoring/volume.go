package scoring

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"pattern-trader/internal/analysis/indicators"
	"pattern-trader/internal/models"
)

// VolumeEvidence decides whether the latest bar confirms a volume surge.
type VolumeEvidence interface {
	VolumeSurge(history []models.Candle) bool
}

// NoVolumeEvidence never reports a surge.
type NoVolumeEvidence struct{}

func (NoVolumeEvidence) VolumeSurge([]models.Candle) bool { return false }

// AlwaysVolumeEvidence always reports a surge.
type AlwaysVolumeEvidence struct{}

func (AlwaysVolumeEvidence) VolumeSurge([]models.Candle) bool { return true }

// RandomVolumeEvidence reports a surge with a fixed probability using a
// caller-seeded generator, so runs are reproducible for a given seed.
type RandomVolumeEvidence struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
}

// DefaultSurgeProbability matches a draw above 0.7 on a uniform [0,1).
const DefaultSurgeProbability = 0.3

// NewRandomVolumeEvidence creates a seeded random source.
func NewRandomVolumeEvidence(seed uint64, probability float64) *RandomVolumeEvidence {
	return &RandomVolumeEvidence{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		probability: probability,
	}
}

func (r *RandomVolumeEvidence) VolumeSurge([]models.Candle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < r.probability
}

// VolumeRatioEvidence reports a surge when the last bar's volume is at least
// Threshold times the average of the preceding Period bars. Histories that are
// too short or carry no volume never surge.
type VolumeRatioEvidence struct {
	Period    int
	Threshold float64
}

// NewVolumeRatioEvidence creates a ratio source; zero values select 20 bars and 1.5x.
func NewVolumeRatioEvidence(period int, threshold float64) VolumeRatioEvidence {
	if period <= 0 {
		period = 20
	}
	if threshold <= 0 {
		threshold = 1.5
	}
	return VolumeRatioEvidence{Period: period, Threshold: threshold}
}

func (v VolumeRatioEvidence) VolumeSurge(history []models.Candle) bool {
	ratio, err := indicators.VolumeRatio(models.Volumes(history), v.Period)
	if err != nil {
		return false
	}
	return ratio >= v.Threshold
}

// Volume evidence kinds accepted by NewVolumeEvidence.
const (
	VolumeKindNone   = "none"
	VolumeKindAlways = "always"
	VolumeKindRandom = "random"
	VolumeKindRatio  = "ratio"
)

// VolumeOptions configures NewVolumeEvidence.
type VolumeOptions struct {
	Kind        string
	Seed        uint64
	Probability float64
	Period      int
	Threshold   float64
}

// NewVolumeEvidence builds an evidence source from configuration.
func NewVolumeEvidence(opts VolumeOptions) (VolumeEvidence, error) {
	switch opts.Kind {
	case "", VolumeKindNone:
		return NoVolumeEvidence{}, nil
	case VolumeKindAlways:
		return AlwaysVolumeEvidence{}, nil
	case VolumeKindRandom:
		p := opts.Probability
		if p <= 0 {
			p = DefaultSurgeProbability
		}
		return NewRandomVolumeEvidence(opts.Seed, p), nil
	case VolumeKindRatio:
		return NewVolumeRatioEvidence(opts.Period, opts.Threshold), nil
	default:
		return nil, fmt.Errorf("unknown volume evidence kind %q", opts.Kind)
	}
}
