package browser

import (
	"math/rand"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaturalCurvePointCountsScaleWithDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		name       string
		ex, ey     float64
		wantPoints int
	}{
		{"short hop", 50, 0, 6},
		{"medium move", 200, 0, 11},
		{"long travel", 400, 300, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := naturalCurve(rng, 0, 0, tt.ex, tt.ey)
			require.Len(t, points, tt.wantPoints)
			assert.Equal(t, point{0, 0}, points[0])
			assert.Equal(t, point{tt.ex, tt.ey}, points[len(points)-1])
		})
	}
}

func TestNaturalCurveNeverStraysFarFromThePath(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		points := naturalCurve(rng, 100, 100, 900, 500)
		for _, p := range points {
			// Control offsets are capped at min(100, dist*0.15); allow slack
			// for the interpolation overshoot.
			assert.InDelta(t, 500, p.x, 600)
			assert.InDelta(t, 300, p.y, 450)
		}
	}
}

func TestClickPointStaysInsideCentralBand(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	box := &playwright.Rect{X: 100, Y: 200, Width: 50, Height: 40}
	for i := 0; i < 200; i++ {
		x, y := clickPoint(rng, box)
		assert.GreaterOrEqual(t, x, 115.0)
		assert.LessOrEqual(t, x, 135.0)
		assert.GreaterOrEqual(t, y, 212.0)
		assert.LessOrEqual(t, y, 228.0)
	}
}

func TestDelayPolicyDuration(t *testing.T) {
	p := DelayPolicy{MinSeconds: 1, MaxSeconds: 3}
	assert.Equal(t, time.Second, p.Duration(0))
	assert.Equal(t, 2*time.Second, p.Duration(0.5))
	assert.Less(t, p.Duration(0.999), 3*time.Second)
}
