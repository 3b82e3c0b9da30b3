// Package monitor serves diagnostic chart pages for the camera pipeline:
// an echarts view of live tracks, a detection history chart and a PNG
// rendering of recent trajectories. These are debugging surfaces for tuning
// sessions, not part of the JSON API.
package monitor

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"image/color"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/skylark-data/overflight.report/internal/units"
	"github.com/skylark-data/overflight.report/internal/vision"
)

// echartsAssetsPrefix is where rendered chart pages load the echarts bundle
// from. Charts are viewed from an operator's browser, which has internet
// access even when the camera host does not.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridisColors is the colour ramp used for chart visual maps.
var viridisColors = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// Charts renders track and detection visualisations from the live tracker
// and the detection store.
type Charts struct {
	tracker *vision.Tracker
	db      *sql.DB
}

// NewCharts creates chart handlers over the given tracker and database.
// db may be nil; the detection chart then reports unavailable.
func NewCharts(tracker *vision.Tracker, db *sql.DB) *Charts {
	return &Charts{tracker: tracker, db: db}
}

// Register mounts the chart routes on the mux.
func (c *Charts) Register(mux *http.ServeMux) {
	mux.HandleFunc("/charts/tracks", c.handleTracksChart)
	mux.HandleFunc("/charts/detections", c.handleDetectionsChart)
	mux.HandleFunc("/charts/trajectories.png", c.handleTrajectoriesPNG)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleTracksChart renders the trajectories of live tracks as a scatter in
// image coordinates, coloured by elapsed time so the direction of travel is
// readable. Query params:
//   - state (optional): only tracks in that lifecycle state
func (c *Charts) handleTracksChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state := r.URL.Query().Get("state")
	tracks := c.tracker.ActiveTracks()
	if state != "" {
		filtered := tracks[:0]
		for _, t := range tracks {
			if string(t.State) == state {
				filtered = append(filtered, t)
			}
		}
		tracks = filtered
	}
	if len(tracks) == 0 {
		writeJSONError(w, http.StatusNotFound, "no active tracks")
		return
	}

	// Oldest plotted point anchors the elapsed-seconds colour dimension.
	var baseNanos int64
	for _, t := range tracks {
		for _, pt := range t.History {
			if baseNanos == 0 || pt.Timestamp < baseNanos {
				baseNanos = pt.Timestamp
			}
		}
	}

	data := make([]opts.ScatterData, 0, 256)
	maxX, maxY, maxElapsed := 0.0, 0.0, 0.0
	for _, t := range tracks {
		for _, pt := range t.History {
			elapsed := float64(pt.Timestamp-baseNanos) / 1e9
			if pt.X > maxX {
				maxX = pt.X
			}
			if pt.Y > maxY {
				maxY = pt.Y
			}
			if elapsed > maxElapsed {
				maxElapsed = elapsed
			}
			data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y, elapsed}})
		}
	}
	if maxElapsed == 0 {
		maxElapsed = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Camera Tracks", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Camera Tracks", Subtitle: fmt.Sprintf("tracks=%d points=%d", len(tracks), len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: maxX * 1.05, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: maxY * 1.05, Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxElapsed),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisColors},
		}),
	)
	scatter.AddSeries("tracks", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render tracks chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleDetectionsChart renders recent detections as confidence over time,
// coloured by blob area. Query params:
//   - hours (optional, default 24, max 168): lookback window
//   - tz (optional): tz database name; the window start in the subtitle is
//     shown in that zone instead of UTC
func (c *Charts) handleDetectionsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if c.db == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "detection store not configured")
		return
	}

	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		if v, err := strconv.Atoi(h); err == nil && v > 0 && v <= 168 {
			hours = v
		}
	}
	tz := r.URL.Query().Get("tz")
	if tz != "" && !units.IsTimezoneValid(tz) {
		writeJSONError(w, http.StatusBadRequest, "Invalid 'tz' parameter")
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	dets, err := vision.QueryDetections(c.db, since, 2000)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get detections: %v", err))
		return
	}
	if len(dets) == 0 {
		writeJSONError(w, http.StatusNotFound, "no detections in window")
		return
	}

	data := make([]opts.ScatterData, 0, len(dets))
	maxArea := 1.0
	var minNanos int64
	for _, d := range dets {
		if minNanos == 0 || d.TSUnixNanos < minNanos {
			minNanos = d.TSUnixNanos
		}
		if float64(d.Area) > maxArea {
			maxArea = float64(d.Area)
		}
	}
	maxElapsedMin := 1.0
	for _, d := range dets {
		elapsedMin := float64(d.TSUnixNanos-minNanos) / 1e9 / 60
		if elapsedMin > maxElapsedMin {
			maxElapsedMin = elapsedMin
		}
		data = append(data, opts.ScatterData{Value: []interface{}{elapsedMin, d.Confidence, float64(d.Area)}})
	}

	windowStart := since.UTC()
	if tz != "" {
		if local, err := units.ConvertTime(windowStart, tz); err == nil {
			windowStart = local
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Detections", Theme: "dark", Width: "900px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Detections", Subtitle: fmt.Sprintf("window=%dh count=%d since=%s", hours, len(dets), windowStart.Format("2006-01-02 15:04 MST"))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: maxElapsedMin * 1.05, Name: "Elapsed (min)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "Confidence", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxArea),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisColors},
		}),
	)
	scatter.AddSeries("detections", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render detections chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTrajectoriesPNG renders live track trajectories as lines in image
// coordinates, one colour per track, with a marker on the latest position.
func (c *Charts) handleTrajectoriesPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tracks := c.tracker.ActiveTracks()

	p := plot.New()
	p.Title.Text = "Track Trajectories"
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	// Image Y grows downward; invert the axis so the plot matches the
	// camera view.
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	colors := trackColors(len(tracks))
	plotted := 0
	for i, t := range tracks {
		if len(t.History) < 2 {
			continue
		}
		pts := make(plotter.XYs, 0, len(t.History))
		for _, pt := range t.History {
			pts = append(pts, plotter.XY{X: pt.X, Y: pt.Y})
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("trajectory line: %v", err))
			return
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)

		head, err := plotter.NewScatter(plotter.XYs{pts[len(pts)-1]})
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("trajectory head: %v", err))
			return
		}
		head.GlyphStyle.Color = colors[i]
		head.GlyphStyle.Radius = vg.Points(3)
		p.Add(head)

		label := t.TrackID
		if len(label) > 12 {
			label = label[:12]
		}
		p.Legend.Add(label, line)
		plotted++
	}

	if plotted == 0 {
		// Pin the axes so an empty plot still renders.
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 7*vg.Inch, "png")
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render trajectories: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = wt.WriteTo(w)
}

// trackColors creates a palette of distinct colours, one per track.
func trackColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	out := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// hslToRGB converts HSL to RGB (0-255 range).
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
