package pricepath

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Tuning constants for the synthetic intra-candle path.
const (
	// swingEdgeFrac bounds where the mandatory extreme waypoints land:
	// one inside the first 30% of the path, one inside the last 30%.
	swingEdgeFrac = 0.30

	// noiseFrac caps the random jitter applied between waypoints,
	// as a fraction of the candle's high-low range.
	noiseFrac = 0.02

	minExtraSwings = 3
	maxExtraSwings = 5
)

// ErrInvalidOHLC is returned when the requested bounds do not describe
// a valid candle (low must not exceed open/close, high must not be below them).
var ErrInvalidOHLC = errors.New("pricepath: ohlc bounds violated")

// Generator produces synthetic intra-candle price paths. The zero of
// randomness is intentional: paths are plausible-looking, not a
// reconstruction of real trades, and two runs over the same candle
// produce different paths unless a caller supplies its own rand source.
type Generator struct {
	rng *rand.Rand
}

// New returns a Generator seeded from the wall clock.
func New() *Generator {
	return &Generator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewWithRand returns a Generator driven by the given source, for
// callers that need reproducible paths (tests, parity checks).
func NewWithRand(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate returns n prices walking from open to close while visiting
// both high and low. Guarantees for valid input:
//   - result[0] == open, result[n-1] == close
//   - every value lies within [low, high]
//   - for n >= 4 and high != low, at least one value equals high and
//     at least one equals low
//
// A flat candle (high == low) collapses to n copies of that price.
func (g *Generator) Generate(open, high, low, close float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("pricepath: tick count %d, need at least 2", n)
	}
	if low > open || low > close || high < open || high < close {
		return nil, fmt.Errorf("%w: open=%v high=%v low=%v close=%v",
			ErrInvalidOHLC, open, high, low, close)
	}

	path := make([]float64, n)

	// Degenerate candle: every sample is the single traded price.
	if high == low {
		for i := range path {
			path[i] = open
		}
		return path, nil
	}

	anchors := g.pickWaypoints(open, high, low, close, n)

	// Interpolate each segment between consecutive waypoints with a
	// smoothstep ease, then jitter the in-between samples.
	idxs := make([]int, 0, len(anchors))
	for idx := range anchors {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)

	noiseAmp := noiseFrac * (high - low)
	for s := 0; s < len(idxs)-1; s++ {
		from, to := idxs[s], idxs[s+1]
		a, b := anchors[from], anchors[to]
		path[from] = a
		for i := from + 1; i < to; i++ {
			t := float64(i-from) / float64(to-from)
			eased := t * t * (3 - 2*t)
			p := a + (b-a)*eased
			p += (g.rng.Float64()*2 - 1) * noiseAmp
			path[i] = clamp(p, low, high)
		}
	}
	path[n-1] = anchors[n-1]

	return path, nil
}

// pickWaypoints chooses the fixed samples of the path: open and close
// at the ends, the two mandatory extreme touches, and a handful of
// random swings in between. Extreme ordering follows candle direction:
// a bullish candle dips to the low first and tags the high late, a
// bearish candle does the mirror.
func (g *Generator) pickWaypoints(open, high, low, close float64, n int) map[int]float64 {
	anchors := map[int]float64{0: open, n - 1: close}
	if n < 4 {
		// Not enough interior samples to pin both extremes.
		return anchors
	}

	edge := int(swingEdgeFrac * float64(n))
	if edge < 1 {
		edge = 1
	}
	if edge > n-3 {
		edge = n - 3
	}

	early := 1 + g.rng.Intn(edge)
	late := (n - 2) - g.rng.Intn(edge)
	if late <= early {
		late = early + 1
	}

	if close >= open {
		anchors[early] = low
		anchors[late] = high
	} else {
		anchors[early] = high
		anchors[late] = low
	}

	extra := minExtraSwings + g.rng.Intn(maxExtraSwings-minExtraSwings+1)
	for i := 0; i < extra; i++ {
		idx := 1 + g.rng.Intn(n-2)
		if _, taken := anchors[idx]; taken {
			continue
		}
		anchors[idx] = low + g.rng.Float64()*(high-low)
	}

	return anchors
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
