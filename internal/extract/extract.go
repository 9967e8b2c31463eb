// Package extract provides the evidence extractors of the cleaning pipeline.
//
// Each extractor inspects one plate and produces one evidence mask marking
// pixels that look like transient content: reflective vehicle bodies and
// glass, thin vertical structures near ground level, and motion-blurred
// regions. Extractors are independent heuristics; the fusion stage combines
// their output and is indifferent to which implementation produced it, so a
// caller may substitute any capability-compatible detector (see Extractor).
//
// All extractors are read-only over the plate and safe to run concurrently
// against the same plate.
package extract

import (
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/parallel"

	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
)

// Extractor produces an evidence mask for a plate.
//
// Implementations must return a mask matching the plate's dimensions
// exactly, must not retain or mutate the plate, and should over-detect
// rather than under-detect: fusion and repair tolerate false positives far
// better than the texture consumer tolerates a car baked into a wall.
type Extractor interface {
	// Name identifies the extractor in logs and statistics.
	Name() string

	// Extract returns the evidence mask for p. On error the pipeline
	// treats this extractor's evidence as empty; the other extractors
	// still run.
	Extract(p *plate.Plate) (*mask.Mask, error)
}

// grayscale converts the plate to a row-major luminance grid in [0, 1],
// using ITU-R BT.601 weights as the edge-detection literature does.
func grayscale(p *plate.Plate) []float64 {
	w, h := p.Width(), p.Height()
	gray := make([]float64, w*h)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				c := p.At(x, y)
				gray[y*w+x] = (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255.0
			}
		}
	})
	return gray
}

// smoothedGrayscale is grayscale over a Gaussian-blurred copy of the plate,
// suppressing sensor noise before gradient analysis.
func smoothedGrayscale(p *plate.Plate, radius float64) []float64 {
	blurred := blur.Gaussian(p.Image(), radius)
	w, h := p.Width(), p.Height()
	gray := make([]float64, w*h)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				c := blurred.RGBAAt(x, y)
				gray[y*w+x] = (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255.0
			}
		}
	})
	return gray
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// laplacian computes the 4-neighbor second-derivative response per pixel.
// High magnitude means a sharp local intensity change; near-zero magnitude
// over a neighborhood means a flat or blurred region.
func laplacian(gray []float64, w, h int) []float64 {
	out := make([]float64, w*h)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				c := gray[y*w+x]
				up := gray[clamp(y-1, 0, h-1)*w+x]
				down := gray[clamp(y+1, 0, h-1)*w+x]
				left := gray[y*w+clamp(x-1, 0, w-1)]
				right := gray[y*w+clamp(x+1, 0, w-1)]
				out[y*w+x] = up + down + left + right - 4*c
			}
		}
	})
	return out
}

var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// sobel computes horizontal and vertical gradient responses per pixel using
// the Sobel operators. Border pixels use clamped (replicated) edge values.
func sobel(gray []float64, w, h int) (gx, gy []float64) {
	gx = make([]float64, w*h)
	gy = make([]float64, w*h)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				var sx, sy float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						v := gray[clamp(y+ky, 0, h-1)*w+clamp(x+kx, 0, w-1)]
						sx += v * sobelX[ky+1][kx+1]
						sy += v * sobelY[ky+1][kx+1]
					}
				}
				gx[y*w+x] = sx
				gy[y*w+x] = sy
			}
		}
	})
	return gx, gy
}
