package extract

import (
	"fmt"

	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
)

// Vertical flags thin vertical features near ground level: pedestrians,
// poles, signposts.
//
// A pixel is a vertical-edge candidate when its horizontal gradient clearly
// dominates its vertical gradient and exceeds an absolute minimum. The
// candidate set is restricted to the ground-proximate band (forward and
// downward facing capture puts people and poles in the lower half of the
// frame), fragments are bridged with a small closing, and components too
// small to be a real object are dropped.
type Vertical struct {
	ratio      float64 // required |gx| / |gy| dominance
	minEdge    float64 // absolute minimum |gx|, 0-1 scale
	groundBand float64 // fraction of height, from the bottom, kept as candidates
	minArea    int     // minimum component area in pixels
}

// NewVertical creates the extractor. minEdge is in 8-bit channel units
// (0-255); groundBand is the fraction of image height from the bottom
// considered ground-proximate.
func NewVertical(ratio, minEdge, groundBand float64, minArea int) *Vertical {
	return &Vertical{
		ratio:      ratio,
		minEdge:    minEdge / 255.0,
		groundBand: groundBand,
		minArea:    minArea,
	}
}

// Name implements Extractor.
func (v *Vertical) Name() string { return "vertical" }

// Extract implements Extractor.
func (v *Vertical) Extract(p *plate.Plate) (*mask.Mask, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("vertical extractor: %w", err)
	}
	w, h := p.Width(), p.Height()

	gray := smoothedGrayscale(p, 1.0)
	gx, gy := sobel(gray, w, h)

	m := mask.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ax, ay := abs(gx[y*w+x]), abs(gy[y*w+x])
			if ax > ay*v.ratio && ax > v.minEdge {
				m.Set(x, y, true)
			}
		}
	}

	m.ClearRowsAbove(int(float64(h) * (1.0 - v.groundBand)))

	// Bridge broken edge runs of the same pole/person, then discard
	// speckle below the plausible object size.
	m = m.Closed(1)
	m.DropSmallComponents(v.minArea)
	return m, nil
}
