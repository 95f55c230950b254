package pricepath

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBoundaryInvariants(t *testing.T) {
	g := New()

	cases := []struct {
		name                    string
		open, high, low, close_ float64
		n                       int
	}{
		{"bullish", 50000, 50500, 49800, 50200, 100},
		{"bearish", 50200, 50500, 49800, 50000, 100},
		{"open at low", 49800, 50500, 49800, 50200, 100},
		{"close at high", 50000, 50500, 49800, 50500, 100},
		{"small n", 10, 15, 5, 12, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path, err := g.Generate(tc.open, tc.high, tc.low, tc.close_, tc.n)
			require.NoError(t, err)
			require.Len(t, path, tc.n)

			assert.Equal(t, tc.open, path[0], "path must start at open")
			assert.Equal(t, tc.close_, path[tc.n-1], "path must end at close")

			sawHigh, sawLow := false, false
			for i, p := range path {
				assert.GreaterOrEqual(t, p, tc.low, "sample %d below low", i)
				assert.LessOrEqual(t, p, tc.high, "sample %d above high", i)
				if p == tc.high {
					sawHigh = true
				}
				if p == tc.low {
					sawLow = true
				}
			}
			assert.True(t, sawHigh, "path never visited the high")
			assert.True(t, sawLow, "path never visited the low")
		})
	}
}

func TestGenerateFlatCandle(t *testing.T) {
	g := New()

	path, err := g.Generate(100, 100, 100, 100, 50)
	require.NoError(t, err)
	require.Len(t, path, 50)
	for _, p := range path {
		assert.Equal(t, 100.0, p)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	g := New()

	_, err := g.Generate(50000, 50500, 49800, 50200, 1)
	assert.Error(t, err, "tick count below 2")

	_, err = g.Generate(50000, 49900, 49800, 50200, 100)
	assert.ErrorIs(t, err, ErrInvalidOHLC, "high below open")

	_, err = g.Generate(50000, 50500, 50100, 50200, 100)
	assert.ErrorIs(t, err, ErrInvalidOHLC, "low above open")
}

func TestGenerateSeededIsReproducible(t *testing.T) {
	a := NewWithRand(rand.New(rand.NewSource(7)))
	b := NewWithRand(rand.New(rand.NewSource(7)))

	pathA, err := a.Generate(50000, 50500, 49800, 50200, 100)
	require.NoError(t, err)
	pathB, err := b.Generate(50000, 50500, 49800, 50200, 100)
	require.NoError(t, err)

	assert.Equal(t, pathA, pathB)
}
