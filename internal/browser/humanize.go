package browser

import (
	"math"
	"math/rand"
	"time"

	"storyboard/internal/logger"

	"github.com/playwright-community/playwright-go"
)

type point struct {
	x, y float64
}

// naturalCurve synthesizes a pointer trajectory from (sx,sy) to (ex,ey).
// Control point count and total point count scale with distance; each control
// point is pulled toward the target with a random offset capped at
// min(100, distance*0.15) so the path never looks like a straight line.
func naturalCurve(rng *rand.Rand, sx, sy, ex, ey float64) []point {
	points := []point{{sx, sy}}

	distance := math.Hypot(ex-sx, ey-sy)

	var controlPoints, totalPoints int
	switch {
	case distance < 100:
		controlPoints, totalPoints = 1, 5
	case distance < 300:
		controlPoints, totalPoints = 2, 10
	default:
		controlPoints, totalPoints = 3, 15
	}

	maxOffset := math.Min(100, distance*0.15)
	controlXs := make([]float64, controlPoints)
	controlYs := make([]float64, controlPoints)
	for i := 0; i < controlPoints; i++ {
		ratio := float64(i+1) / float64(controlPoints+1)
		controlXs[i] = sx + (ex-sx)*ratio + (rng.Float64()*2-1)*maxOffset
		controlYs[i] = sy + (ey-sy)*ratio + (rng.Float64()*2-1)*maxOffset
	}

	for i := 1; i < totalPoints; i++ {
		t := float64(i) / float64(totalPoints)

		x, y := sx, sy
		for j := 0; j < controlPoints; j++ {
			x += (controlXs[j] - x) * t
			y += (controlYs[j] - y) * t
		}
		x += (ex - x) * t
		y += (ey - y) * t

		points = append(points, point{x, y})
	}

	return append(points, point{ex, ey})
}

// clickPoint picks a target inside the central 30-70% of the box. Exact
// center clicks are a detectable tell.
func clickPoint(rng *rand.Rand, box *playwright.Rect) (float64, float64) {
	x := box.X + box.Width*(0.3+rng.Float64()*0.4)
	y := box.Y + box.Height*(0.3+rng.Float64()*0.4)
	return x, y
}

// Humanizer produces human-like pointer trajectories, clicks and text entry
// against a single page.
type Humanizer struct {
	log    *logger.Logger
	page   playwright.Page
	rng    *rand.Rand
	policy DelayPolicy
}

func NewHumanizer(page playwright.Page, policy DelayPolicy) *Humanizer {
	return &Humanizer{
		log:    logger.New("Humanizer"),
		page:   page,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		policy: policy,
	}
}

// Sleep blocks for a uniformly random duration within the delay policy. This
// is the primary throttle against rate-based bot detection: every observable
// action is preceded or followed by one of these.
func (h *Humanizer) Sleep() {
	d := h.policy.Duration(h.rng.Float64())
	h.log.LogDebugf("delay %.1fs (range %.0f-%.0fs)", d.Seconds(), h.policy.MinSeconds, h.policy.MaxSeconds)
	time.Sleep(d)
}

// Pause blocks for a uniformly random duration between min and max.
func (h *Humanizer) Pause(min, max time.Duration) {
	time.Sleep(min + time.Duration(h.rng.Int63n(int64(max-min)+1)))
}

// MoveAndClick resolves the locator to a visible element and clicks it via a
// synthetic multi-point trajectory. Returns false without error when the
// element is not visible or has no measurable bounding box.
func (h *Humanizer) MoveAndClick(loc playwright.Locator, desc string) bool {
	visible, err := loc.IsVisible()
	if err != nil || !visible {
		h.log.LogWarnf("%s not visible", desc)
		return false
	}

	box, err := loc.BoundingBox()
	if err != nil || box == nil {
		h.log.LogWarnf("no bounding box for %s", desc)
		return false
	}

	targetX, targetY := clickPoint(h.rng, box)
	currentX, currentY := h.pointerPosition()

	for _, p := range naturalCurve(h.rng, currentX, currentY, targetX, targetY) {
		if err := h.page.Mouse().Move(p.x, p.y); err != nil {
			h.log.LogWarnf("pointer move failed for %s: %v", desc, err)
			return false
		}
		if h.rng.Float64() < 0.2 {
			h.Pause(10*time.Millisecond, 50*time.Millisecond)
		}
	}

	// Hover briefly before committing
	h.Pause(100*time.Millisecond, 300*time.Millisecond)

	// Occasional jitter near the target before settling
	if h.rng.Float64() < 0.3 {
		for i := 0; i < 2; i++ {
			jx := targetX + (h.rng.Float64()*4 - 2)
			jy := targetY + (h.rng.Float64()*4 - 2)
			_ = h.page.Mouse().Move(jx, jy)
			h.Pause(10*time.Millisecond, 30*time.Millisecond)
		}
		_ = h.page.Mouse().Move(targetX, targetY)
		h.Pause(50*time.Millisecond, 100*time.Millisecond)
	}

	// Separate press and release like a human click
	if err := h.page.Mouse().Down(); err != nil {
		h.log.LogWarnf("press failed for %s: %v", desc, err)
		return false
	}
	h.Pause(50*time.Millisecond, 150*time.Millisecond)
	if err := h.page.Mouse().Up(); err != nil {
		h.log.LogWarnf("release failed for %s: %v", desc, err)
		return false
	}
	h.Pause(100*time.Millisecond, 200*time.Millisecond)

	h.log.LogDebugf("clicked %s", desc)
	return true
}

// Type clicks the target first, clears it, then assigns the text in one
// operation. No per-character keystroke simulation.
func (h *Humanizer) Type(loc playwright.Locator, text, desc string) error {
	h.MoveAndClick(loc, desc)
	h.Sleep()
	if err := loc.Fill(""); err != nil {
		return err
	}
	h.Pause(100*time.Millisecond, 150*time.Millisecond)
	if err := loc.Fill(text); err != nil {
		return err
	}
	h.Sleep()
	return nil
}

// pointerPosition reads the last pointer position tracked by the stealth
// script, falling back to a random viewport point when unknown.
func (h *Humanizer) pointerPosition() (float64, float64) {
	result, err := h.page.Evaluate(`() => ({x: window.mouseX || 0, y: window.mouseY || 0, w: window.innerWidth, h: window.innerHeight})`)
	if err != nil {
		return h.rng.Float64() * 1280, h.rng.Float64() * 720
	}
	data, ok := result.(map[string]interface{})
	if !ok {
		return h.rng.Float64() * 1280, h.rng.Float64() * 720
	}
	x := toFloat(data["x"])
	y := toFloat(data["y"])
	if x == 0 && y == 0 {
		w := toFloat(data["w"])
		ht := toFloat(data["h"])
		if w <= 0 {
			w = 1280
		}
		if ht <= 0 {
			ht = 720
		}
		return h.rng.Float64() * w, h.rng.Float64() * ht
	}
	return x, y
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	default:
		return 0
	}
}
