package vision

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FitVelocity estimates (vx, vy) in pixels/second by least-squares linear
// fit over the last window trajectory points. Timestamps are rebased to the
// first point of the window so nanosecond magnitudes don't eat float64
// precision. Fewer than two points, or zero time spread, yields (0, 0).
func FitVelocity(history []TrackPoint, window int) (vx, vy float64) {
	if window < 2 {
		window = 2
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) < 2 {
		return 0, 0
	}

	t0 := history[0].Timestamp
	ts := make([]float64, len(history))
	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	for i, p := range history {
		ts[i] = float64(p.Timestamp-t0) / 1e9
		xs[i] = p.X
		ys[i] = p.Y
	}
	if ts[len(ts)-1] == 0 {
		return 0, 0
	}

	_, vx = stat.LinearRegression(ts, xs, nil, false)
	_, vy = stat.LinearRegression(ts, ys, nil, false)
	return vx, vy
}

// HeadingConsistency returns the mean resultant length of the heading unit
// vectors over the last window trajectory segments, plus the number of
// segments measured. 1 means a perfectly steady heading, 0 means headings
// cancel out (jitter). Zero-length segments are skipped.
func HeadingConsistency(history []TrackPoint, window int) (r float64, segments int) {
	if len(history) < 2 {
		return 0, 0
	}
	start := len(history) - window - 1
	if start < 0 {
		start = 0
	}

	var sumCos, sumSin float64
	for i := start + 1; i < len(history); i++ {
		dx := history[i].X - history[i-1].X
		dy := history[i].Y - history[i-1].Y
		d := math.Hypot(dx, dy)
		if d == 0 {
			continue
		}
		sumCos += dx / d
		sumSin += dy / d
		segments++
	}
	if segments == 0 {
		return 0, 0
	}
	return math.Hypot(sumCos, sumSin) / float64(segments), segments
}

// SpeedPercentiles computes the p50/p85/p95 speeds from a speed history.
// Returns zeros for an empty history.
func SpeedPercentiles(speeds []float64) (p50, p85, p95 float64) {
	if len(speeds) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(speeds))
	copy(sorted, speeds)
	sort.Float64s(sorted)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p85 = stat.Quantile(0.85, stat.Empirical, sorted, nil)
	p95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return p50, p85, p95
}
