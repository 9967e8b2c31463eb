// Package mask provides the boolean pixel grids the cleaning pipeline uses
// to mark transient content: per-extractor evidence masks and the fused
// removal mask handed to the repair engine.
//
// A Mask always matches the dimensions of the plate it was derived from;
// operations that combine masks enforce this. Masks are transient working
// state and are never persisted.
package mask

import (
	"fmt"
	"image"
)

// Mask is a 2-D boolean grid in plate coordinates. The zero value is not
// usable; create masks with New.
type Mask struct {
	w, h int
	bits []bool
}

// New creates an all-clear mask of the given dimensions.
func New(w, h int) *Mask {
	if w < 0 || h < 0 {
		w, h = 0, 0
	}
	return &Mask{w: w, h: h, bits: make([]bool, w*h)}
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.w }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.h }

// Set marks or clears the pixel at (x, y). Out-of-bounds coordinates are
// ignored so callers iterating kernel neighborhoods need no edge checks.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || x >= m.w || y < 0 || y >= m.h {
		return
	}
	m.bits[y*m.w+x] = v
}

// At reports whether the pixel at (x, y) is marked. Out-of-bounds
// coordinates read as unmarked.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.w || y < 0 || y >= m.h {
		return false
	}
	return m.bits[y*m.w+x]
}

// Count returns the number of marked pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Fraction returns the marked share of the grid, in [0, 1].
// An empty grid has fraction 0.
func (m *Mask) Fraction() float64 {
	if len(m.bits) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.bits))
}

// Union marks every pixel that is marked in other. The two masks must have
// identical dimensions; evidence from a mismatched grid cannot be mapped
// onto this plate.
func (m *Mask) Union(other *Mask) error {
	if other == nil {
		return nil
	}
	if other.w != m.w || other.h != m.h {
		return fmt.Errorf("mask dimensions %dx%d do not match %dx%d", other.w, other.h, m.w, m.h)
	}
	for i, b := range other.bits {
		if b {
			m.bits[i] = true
		}
	}
	return nil
}

// Clone returns an independent copy of the mask.
func (m *Mask) Clone() *Mask {
	cp := New(m.w, m.h)
	copy(cp.bits, m.bits)
	return cp
}

// ClearRegion unmarks every pixel in the given point set.
func (m *Mask) ClearRegion(pts []image.Point) {
	for _, p := range pts {
		m.Set(p.X, p.Y, false)
	}
}

// SetRect marks every pixel inside r intersected with the grid.
func (m *Mask) SetRect(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, m.w, m.h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.bits[y*m.w+x] = true
		}
	}
}

// ClearRowsAbove unmarks every pixel with y < row. Extractors use it to
// restrict evidence to the ground-proximate band of the plate.
func (m *Mask) ClearRowsAbove(row int) {
	if row > m.h {
		row = m.h
	}
	for y := 0; y < row; y++ {
		for x := 0; x < m.w; x++ {
			m.bits[y*m.w+x] = false
		}
	}
}
