package vision

// Color-plane conversions used by the segmentation and motion stages.
// Hue is kept on the OpenCV scale (H in [0,180), S and V in [0,255]) so that
// calibration data collected with OpenCV tooling carries over unchanged.

// RGBToHSV converts one RGB pixel to HSV on the OpenCV scale.
func RGBToHSV(r, g, b uint8) (h, s, v float64) {
	rf := float64(r)
	gf := float64(g)
	bf := float64(b)

	max := rf
	if gf > max {
		max = gf
	}
	if bf > max {
		max = bf
	}
	min := rf
	if gf < min {
		min = gf
	}
	if bf < min {
		min = bf
	}
	delta := max - min

	v = max
	if max > 0 {
		s = delta / max * 255
	}
	if delta == 0 {
		return 0, s, v
	}

	switch max {
	case rf:
		h = 30 * (gf - bf) / delta
	case gf:
		h = 60 + 30*(bf-rf)/delta
	default:
		h = 120 + 30*(rf-gf)/delta
	}
	if h < 0 {
		h += 180
	}
	return h, s, v
}

// Grayscale computes the Rec.601 luminance plane of a frame.
func Grayscale(f *Frame) []float64 {
	gray := make([]float64, f.NumPixels())
	for i := 0; i < len(gray); i++ {
		p := i * 3
		gray[i] = 0.299*float64(f.Pix[p]) + 0.587*float64(f.Pix[p+1]) + 0.114*float64(f.Pix[p+2])
	}
	return gray
}

// gauss5 is the 5-tap binomial kernel (1 4 6 4 1)/16 applied separably.
var gauss5 = [5]float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// GaussianBlur5 smooths a plane with a separable 5x5 Gaussian. Edges clamp
// to the nearest valid pixel. A new plane is returned; src is unchanged.
func GaussianBlur5(src []float64, width, height int) []float64 {
	if len(src) != width*height {
		return src
	}
	tmp := make([]float64, len(src))
	dst := make([]float64, len(src))

	// Horizontal pass
	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			var sum float64
			for k := -2; k <= 2; k++ {
				xx := x + k
				if xx < 0 {
					xx = 0
				} else if xx >= width {
					xx = width - 1
				}
				sum += src[row+xx] * gauss5[k+2]
			}
			tmp[row+x] = sum
		}
	}

	// Vertical pass
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for k := -2; k <= 2; k++ {
				yy := y + k
				if yy < 0 {
					yy = 0
				} else if yy >= height {
					yy = height - 1
				}
				sum += tmp[yy*width+x] * gauss5[k+2]
			}
			dst[y*width+x] = sum
		}
	}
	return dst
}

// integralImage builds a summed-area table with one extra row and column of
// zeros, so that the sum over [x0,x1)x[y0,y1) is
// ii[y1][x1] - ii[y0][x1] - ii[y1][x0] + ii[y0][x0].
func integralImage(src []float64, width, height int) []float64 {
	w1 := width + 1
	ii := make([]float64, w1*(height+1))
	for y := 0; y < height; y++ {
		var rowSum float64
		for x := 0; x < width; x++ {
			rowSum += src[y*width+x]
			ii[(y+1)*w1+(x+1)] = ii[y*w1+(x+1)] + rowSum
		}
	}
	return ii
}

// boxMean returns the mean of src over the clamped block centred at (x, y)
// with half-width r, using a prebuilt integral image.
func boxMean(ii []float64, width, height, x, y, r int) float64 {
	x0 := x - r
	if x0 < 0 {
		x0 = 0
	}
	y0 := y - r
	if y0 < 0 {
		y0 = 0
	}
	x1 := x + r + 1
	if x1 > width {
		x1 = width
	}
	y1 := y + r + 1
	if y1 > height {
		y1 = height
	}
	w1 := width + 1
	sum := ii[y1*w1+x1] - ii[y0*w1+x1] - ii[y1*w1+x0] + ii[y0*w1+x0]
	n := (x1 - x0) * (y1 - y0)
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
