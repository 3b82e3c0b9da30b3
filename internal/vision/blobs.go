package vision

import (
	"sort"

	"github.com/skylark-data/overflight.report/internal/config"
)

// BlobConfig holds the blob extraction filters.
type BlobConfig struct {
	MinArea          int
	MaxArea          int
	AspectRatioMin   float64
	AspectRatioMax   float64
	MinContrast      float64
	MaxBlobsPerFrame int
}

// DefaultBlobConfig returns blob configuration loaded from the canonical
// tuning defaults file (config/tuning.defaults.json).
func DefaultBlobConfig() BlobConfig {
	cfg := config.MustLoadDefaultConfig()
	return BlobConfigFromTuning(cfg)
}

// BlobConfigFromTuning builds a BlobConfig from a loaded TuningConfig.
func BlobConfigFromTuning(cfg *config.TuningConfig) BlobConfig {
	return BlobConfig{
		MinArea:          cfg.GetMinBlobArea(),
		MaxArea:          cfg.GetMaxBlobArea(),
		AspectRatioMin:   cfg.GetAspectRatioMin(),
		AspectRatioMax:   cfg.GetAspectRatioMax(),
		MinContrast:      cfg.GetMinContrast(),
		MaxBlobsPerFrame: cfg.GetMaxBlobsPerFrame(),
	}
}

// Observation is one candidate object extracted from a frame: a connected
// motion region that survived the geometry and contrast filters.
type Observation struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	W           int     `json:"w"`
	H           int     `json:"h"`
	CX          float64 `json:"cx"`
	CY          float64 `json:"cy"`
	Area        int     `json:"area"`
	Perimeter   int     `json:"perimeter"`
	Contrast    float64 `json:"contrast"`
	TSUnixNanos int64   `json:"ts_unix_nanos"`
}

// BlobExtractor groups motion-positive pixels into connected components and
// filters them into Observations.
type BlobExtractor struct {
	Config BlobConfig
}

// NewBlobExtractor creates an extractor with the given filters.
func NewBlobExtractor(cfg BlobConfig) *BlobExtractor {
	return &BlobExtractor{Config: cfg}
}

// Extract returns the frame's Observations in deterministic order
// (ascending centroid Y, then X). Regions failing a filter are dropped
// silently; when more than MaxBlobsPerFrame regions survive, the largest
// by area are kept.
func (b *BlobExtractor) Extract(f *Frame, motion MotionResult) []Observation {
	w, h := f.Width, f.Height
	n := w * h

	binary := make([]bool, n)
	any := false
	for i := 0; i < n; i++ {
		if motion.Scores[i] > 0 {
			binary[i] = true
			any = true
		}
	}
	if !any {
		return nil
	}

	// Morphological open (erode + dilate) kills isolated noise pixels, then
	// one extra dilate reconnects fragmented object regions.
	opened := dilate3(erode3(binary, w, h), w, h)
	final := dilate3(opened, w, h)

	grayII := integralImage(motion.Gray, w, h)

	visited := make([]bool, n)
	stack := make([]int, 0, 256)
	var obs []Observation

	for start := 0; start < n; start++ {
		if !final[start] || visited[start] {
			continue
		}

		// Flood fill one 8-connected component.
		minX, minY := w, h
		maxX, maxY := 0, 0
		var sumX, sumY, area, perimeter int

		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w

			area++
			sumX += x
			sumY += y
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			boundary := false
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						if dx == 0 || dy == 0 {
							boundary = true
						}
						continue
					}
					ni := ny*w + nx
					if !final[ni] {
						if dx == 0 || dy == 0 {
							boundary = true
						}
						continue
					}
					if !visited[ni] {
						visited[ni] = true
						stack = append(stack, ni)
					}
				}
			}
			if boundary {
				perimeter++
			}
		}

		bw := maxX - minX + 1
		bh := maxY - minY + 1
		if area < b.Config.MinArea || area > b.Config.MaxArea {
			continue
		}
		aspect := float64(bw) / float64(bh)
		if aspect < b.Config.AspectRatioMin || aspect > b.Config.AspectRatioMax {
			continue
		}

		contrast := regionContrast(grayII, w, h, minX, minY, bw, bh)
		if contrast < b.Config.MinContrast {
			continue
		}

		obs = append(obs, Observation{
			X:           minX,
			Y:           minY,
			W:           bw,
			H:           bh,
			CX:          float64(sumX) / float64(area),
			CY:          float64(sumY) / float64(area),
			Area:        area,
			Perimeter:   perimeter,
			Contrast:    contrast,
			TSUnixNanos: f.TSUnixNanos,
		})
	}

	if len(obs) > b.Config.MaxBlobsPerFrame && b.Config.MaxBlobsPerFrame > 0 {
		sort.Slice(obs, func(i, j int) bool { return obs[i].Area > obs[j].Area })
		obs = obs[:b.Config.MaxBlobsPerFrame]
	}

	sort.Slice(obs, func(i, j int) bool {
		if obs[i].CY != obs[j].CY {
			return obs[i].CY < obs[j].CY
		}
		return obs[i].CX < obs[j].CX
	})
	return obs
}

// regionContrast measures how much a region stands out from its immediate
// surroundings: the absolute difference between the mean luminance inside
// the bounding box and the mean over a surrounding ring. Ring padding is
// max(10, max(w, h)) pixels, clipped to the frame.
func regionContrast(grayII []float64, width, height, x, y, w, h int) float64 {
	pad := w
	if h > pad {
		pad = h
	}
	if pad < 10 {
		pad = 10
	}

	inSum, inN := boxSum(grayII, width, height, x, y, x+w, y+h)
	outSum, outN := boxSum(grayII, width, height, x-pad, y-pad, x+w+pad, y+h+pad)

	ringSum := outSum - inSum
	ringN := outN - inN
	if inN == 0 || ringN == 0 {
		return 0
	}

	c := inSum/float64(inN) - ringSum/float64(ringN)
	if c < 0 {
		c = -c
	}
	return c
}

// boxSum sums the integral image over [x0,x1)x[y0,y1) clipped to the frame,
// returning the sum and the clipped pixel count.
func boxSum(ii []float64, width, height, x0, y0, x1, y1 int) (float64, int) {
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > width {
		x1 = width
	}
	if y1 > height {
		y1 = height
	}
	if x0 >= x1 || y0 >= y1 {
		return 0, 0
	}
	w1 := width + 1
	sum := ii[y1*w1+x1] - ii[y0*w1+x1] - ii[y1*w1+x0] + ii[y0*w1+x0]
	return sum, (x1 - x0) * (y1 - y0)
}

// erode3 performs 3x3 binary erosion. Pixels on the frame border always
// erode (out-of-bounds counts as background).
func erode3(src []bool, w, h int) []bool {
	dst := make([]bool, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !src[y*w+x] {
				continue
			}
			keep := true
			for dy := -1; dy <= 1 && keep; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h || !src[ny*w+nx] {
						keep = false
						break
					}
				}
			}
			dst[y*w+x] = keep
		}
	}
	return dst
}

// dilate3 performs 3x3 binary dilation.
func dilate3(src []bool, w, h int) []bool {
	dst := make([]bool, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !src[y*w+x] {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						dst[ny*w+nx] = true
					}
				}
			}
		}
	}
	return dst
}
