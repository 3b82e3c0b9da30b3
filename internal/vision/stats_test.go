package vision

import (
	"math"
	"testing"
)

func trailAt(vx, vy float64, n int, dtNanos int64) []TrackPoint {
	points := make([]TrackPoint, n)
	for i := range points {
		ts := int64(i) * dtNanos
		points[i] = TrackPoint{
			X:         vx * float64(ts) / 1e9,
			Y:         vy * float64(ts) / 1e9,
			Timestamp: ts,
		}
	}
	return points
}

func TestFitVelocity_LinearMotion(t *testing.T) {
	// 10 px/s right, 5 px/s down, sampled at 10 Hz.
	history := trailAt(10, 5, 8, 100_000_000)

	vx, vy := FitVelocity(history, 5)
	if math.Abs(vx-10) > 1e-6 {
		t.Errorf("expected vx=10, got %v", vx)
	}
	if math.Abs(vy-5) > 1e-6 {
		t.Errorf("expected vy=5, got %v", vy)
	}
}

func TestFitVelocity_Stationary(t *testing.T) {
	history := trailAt(0, 0, 6, 100_000_000)
	vx, vy := FitVelocity(history, 5)
	if vx != 0 || vy != 0 {
		t.Errorf("expected zero velocity, got (%v, %v)", vx, vy)
	}
}

func TestFitVelocity_TooFewPoints(t *testing.T) {
	vx, vy := FitVelocity([]TrackPoint{{X: 1, Y: 2, Timestamp: 0}}, 5)
	if vx != 0 || vy != 0 {
		t.Errorf("expected zero velocity for a single point, got (%v, %v)", vx, vy)
	}

	vx, vy = FitVelocity(nil, 5)
	if vx != 0 || vy != 0 {
		t.Errorf("expected zero velocity for nil history, got (%v, %v)", vx, vy)
	}
}

func TestFitVelocity_WindowLimitsInfluence(t *testing.T) {
	// Old points move left, recent window moves right. The fit should only
	// see the recent window.
	history := []TrackPoint{
		{X: 100, Y: 0, Timestamp: 0},
		{X: 90, Y: 0, Timestamp: 100_000_000},
		{X: 80, Y: 0, Timestamp: 200_000_000},
		{X: 80, Y: 0, Timestamp: 300_000_000},
		{X: 85, Y: 0, Timestamp: 400_000_000},
		{X: 90, Y: 0, Timestamp: 500_000_000},
	}

	vx, _ := FitVelocity(history, 3)
	if vx <= 0 {
		t.Errorf("expected positive vx from the recent window, got %v", vx)
	}
}

func TestFitVelocity_ZeroTimeSpread(t *testing.T) {
	history := []TrackPoint{
		{X: 0, Y: 0, Timestamp: 1000},
		{X: 5, Y: 5, Timestamp: 1000},
	}
	vx, vy := FitVelocity(history, 5)
	if vx != 0 || vy != 0 {
		t.Errorf("expected zero velocity for zero time spread, got (%v, %v)", vx, vy)
	}
}

func TestHeadingConsistency_Straight(t *testing.T) {
	history := trailAt(10, 0, 8, 100_000_000)
	r, segments := HeadingConsistency(history, 7)
	if segments != 7 {
		t.Errorf("expected 7 segments, got %d", segments)
	}
	if math.Abs(r-1) > 1e-9 {
		t.Errorf("straight trajectory should score 1, got %v", r)
	}
}

func TestHeadingConsistency_Jitter(t *testing.T) {
	// Alternate right and left each frame; heading vectors cancel.
	history := []TrackPoint{
		{X: 0, Y: 0, Timestamp: 0},
		{X: 10, Y: 0, Timestamp: 100_000_000},
		{X: 0, Y: 0, Timestamp: 200_000_000},
		{X: 10, Y: 0, Timestamp: 300_000_000},
		{X: 0, Y: 0, Timestamp: 400_000_000},
	}
	r, segments := HeadingConsistency(history, 4)
	if segments != 4 {
		t.Errorf("expected 4 segments, got %d", segments)
	}
	if r > 0.1 {
		t.Errorf("alternating trajectory should score near 0, got %v", r)
	}
}

func TestHeadingConsistency_SkipsZeroSegments(t *testing.T) {
	history := []TrackPoint{
		{X: 0, Y: 0, Timestamp: 0},
		{X: 0, Y: 0, Timestamp: 100_000_000},
		{X: 10, Y: 0, Timestamp: 200_000_000},
	}
	r, segments := HeadingConsistency(history, 2)
	if segments != 1 {
		t.Errorf("expected 1 counted segment (zero-length skipped), got %d", segments)
	}
	if math.Abs(r-1) > 1e-9 {
		t.Errorf("single segment should score 1, got %v", r)
	}
}

func TestHeadingConsistency_Empty(t *testing.T) {
	r, segments := HeadingConsistency(nil, 5)
	if r != 0 || segments != 0 {
		t.Errorf("expected (0, 0) for empty history, got (%v, %d)", r, segments)
	}
}

func TestSpeedPercentiles(t *testing.T) {
	speeds := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	p50, p85, p95 := SpeedPercentiles(speeds)

	if p50 < 5 || p50 > 6 {
		t.Errorf("p50 out of range: %v", p50)
	}
	if p85 < 8 || p85 > 9 {
		t.Errorf("p85 out of range: %v", p85)
	}
	if p95 < 9 || p95 > 10 {
		t.Errorf("p95 out of range: %v", p95)
	}
	if !(p50 <= p85 && p85 <= p95) {
		t.Errorf("percentiles must be monotone: %v %v %v", p50, p85, p95)
	}
}

func TestSpeedPercentiles_Empty(t *testing.T) {
	p50, p85, p95 := SpeedPercentiles(nil)
	if p50 != 0 || p85 != 0 || p95 != 0 {
		t.Errorf("expected zeros for empty history, got %v %v %v", p50, p85, p95)
	}
}

func TestSpeedPercentiles_DoesNotSortInput(t *testing.T) {
	speeds := []float64{9, 1, 5}
	SpeedPercentiles(speeds)
	if speeds[0] != 9 || speeds[1] != 1 || speeds[2] != 5 {
		t.Errorf("input slice was reordered: %v", speeds)
	}
}
