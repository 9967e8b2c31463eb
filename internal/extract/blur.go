package extract

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
)

// MotionBlur flags regions whose local sharpness indicates capture-time
// motion.
//
// The sharpness signal is the squared Laplacian response averaged over a
// sliding window. Rather than a fixed global cutoff, the extractor
// thresholds at a low percentile of the plate's own sharpness distribution:
// exposure and weather vary so widely across uncontrolled sources that any
// absolute number would flag entire overcast plates or nothing at all.
type MotionBlur struct {
	percentile float64 // quantile of the sharpness distribution, 0-1
	window     int     // side of the averaging window in pixels
}

// NewMotionBlur creates the extractor. percentile is expressed 0-100 as in
// configuration; window is the sharpness averaging window side length.
func NewMotionBlur(percentile float64, window int) *MotionBlur {
	if window < 3 {
		window = 3
	}
	return &MotionBlur{percentile: percentile / 100.0, window: window}
}

// Name implements Extractor.
func (b *MotionBlur) Name() string { return "motion-blur" }

// Extract implements Extractor.
func (b *MotionBlur) Extract(p *plate.Plate) (*mask.Mask, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("motion-blur extractor: %w", err)
	}
	w, h := p.Width(), p.Height()

	lap := laplacian(grayscale(p), w, h)
	sq := make([]float64, w*h)
	for i, v := range lap {
		sq[i] = v * v
	}
	sharp := boxMean(sq, w, h, b.window)

	sorted := make([]float64, len(sharp))
	copy(sorted, sharp)
	sort.Float64s(sorted)
	threshold := stat.Quantile(b.percentile, stat.Empirical, sorted, nil)

	// Strictly below: on a uniformly sharp plate every score equals the
	// quantile and nothing is flagged.
	m := mask.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if sharp[y*w+x] < threshold {
				m.Set(x, y, true)
			}
		}
	}
	return m, nil
}

// boxMean averages vals over a window x window neighborhood per pixel using
// a summed-area table, clamping the window at the borders.
func boxMean(vals []float64, w, h, window int) []float64 {
	// integral[y][x] holds the sum of vals over [0,x) x [0,y).
	iw := w + 1
	integral := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		rowSum := 0.0
		for x := 0; x < w; x++ {
			rowSum += vals[y*w+x]
			integral[(y+1)*iw+x+1] = integral[y*iw+x+1] + rowSum
		}
	}

	r := window / 2
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		y0, y1 := clamp(y-r, 0, h-1), clamp(y+r, 0, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := clamp(x-r, 0, w-1), clamp(x+r, 0, w-1)
			sum := integral[(y1+1)*iw+x1+1] - integral[y0*iw+x1+1] -
				integral[(y1+1)*iw+x0] + integral[y0*iw+x0]
			out[y*w+x] = sum / float64((y1-y0+1)*(x1-x0+1))
		}
	}
	return out
}
