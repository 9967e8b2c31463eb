package extract

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
)

// Reflectance flags pixels statistically consistent with glossy or metallic
// surfaces: vehicle bodies, glass, specular highlights.
//
// Two kinds of evidence are unioned: very bright pixels with low color
// saturation (washed-out metallic/glass reflections), and pixels whose local
// second-derivative response is high (specular glints). The detector is
// deliberately biased toward over-detection; a false positive on a flat
// bright wall costs a little repair work, a missed windshield bakes a car
// into the texture.
type Reflectance struct {
	brightness float64 // HSV value threshold, 0-1
	saturation float64 // HSV saturation threshold, 0-1
	variance   float64 // Laplacian magnitude threshold, 0-1
	groundBand float64 // fraction of height, from the bottom, kept as candidates
}

// NewReflectance creates the extractor. Thresholds are in 8-bit channel
// units (0-255) as they appear in configuration; groundBand is the fraction
// of image height from the bottom considered ground-proximate.
func NewReflectance(brightness, saturation, variance, groundBand float64) *Reflectance {
	return &Reflectance{
		brightness: brightness / 255.0,
		saturation: saturation / 255.0,
		variance:   variance / 255.0,
		groundBand: groundBand,
	}
}

// Name implements Extractor.
func (r *Reflectance) Name() string { return "reflectance" }

// Extract implements Extractor.
func (r *Reflectance) Extract(p *plate.Plate) (*mask.Mask, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("reflectance extractor: %w", err)
	}
	w, h := p.Width(), p.Height()
	m := mask.New(w, h)

	lap := laplacian(grayscale(p), w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := p.At(x, y)
			col := colorful.Color{
				R: float64(c.R) / 255.0,
				G: float64(c.G) / 255.0,
				B: float64(c.B) / 255.0,
			}
			_, s, v := col.Hsv()

			if v > r.brightness && s < r.saturation {
				m.Set(x, y, true)
				continue
			}
			if abs(lap[y*w+x]) > r.variance {
				m.Set(x, y, true)
			}
		}
	}

	// Vehicles and glass live near the ground; the upper band is sky and
	// facade where bright low-saturation pixels are the norm.
	m.ClearRowsAbove(int(float64(h) * (1.0 - r.groundBand)))
	return m, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
