// Package fallback synthesizes plausible surface color for points that no
// usable photographic plate covers.
package fallback

import (
	"image"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Default perturbation keeps the synthesized surface within a believable
// neutral range while avoiding the dead look of a flat fill.
const (
	defaultAmplitude = 0.05
	defaultFrequency = 0.1
)

// Synthesizer produces deterministic, spatially varied surface color.
//
// The palette runs from an earthy ground tone at height 0 to a pale
// masonry tone at height 1, blended in Lab space so intermediate heights
// stay perceptually even. A bounded sinusoidal perturbation keyed on the
// horizontal coordinates breaks up flat regions. The output is a pure
// function of the input coordinate and the synthesizer's configuration:
// the same point always gets the same color, across calls and across runs.
type Synthesizer struct {
	ground    colorful.Color
	upper     colorful.Color
	amplitude float64
	frequency float64
}

// NewSynthesizer creates a synthesizer with the standard street-surface
// palette.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{
		ground:    colorful.Color{R: 0.45, G: 0.42, B: 0.38},
		upper:     colorful.Color{R: 0.80, G: 0.80, B: 0.80},
		amplitude: defaultAmplitude,
		frequency: defaultFrequency,
	}
}

// ColorAt returns the synthesized color for a surface point.
//
// x and y are horizontal world coordinates (any unit; only their relative
// scale matters for the variation pattern). z is the normalized height in
// [0, 1]; values outside are clamped.
func (s *Synthesizer) ColorAt(x, y, z float64) colorful.Color {
	if z < 0 {
		z = 0
	}
	if z > 1 {
		z = 1
	}
	c := s.ground.BlendLab(s.upper, z)
	c.R += math.Sin(x*s.frequency) * s.amplitude
	c.G += math.Cos(y*s.frequency) * s.amplitude
	return c.Clamped()
}

// RGBA8 returns ColorAt quantized to 8-bit channels.
func (s *Synthesizer) RGBA8(x, y, z float64) color.NRGBA {
	c := s.ColorAt(x, y, z)
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Fill synthesizes a plate-sized image for the requested dimensions, used
// when a plate fails validation or cleaning yields nothing usable. Rows
// toward the bottom read as ground, rows toward the top as structure, with
// the same positional variation as ColorAt, so the texture-projection
// consumer gets a varied surface of exactly the dimensions it asked for.
func (s *Synthesizer) Fill(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		z := 0.0
		if h > 1 {
			z = 1.0 - float64(y)/float64(h-1)
		}
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, s.RGBA8(float64(x), float64(y), z))
		}
	}
	return img
}
