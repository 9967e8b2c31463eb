package mask

import "image"

// discOffsets returns the neighbor offsets of a disc structuring element of
// the given radius, matching the elliptical kernels the mask refinement uses
// to treat blob-shaped transients isotropically.
func discOffsets(radius int) []image.Point {
	offsets := make([]image.Point, 0, (2*radius+1)*(2*radius+1))
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offsets = append(offsets, image.Point{X: dx, Y: dy})
			}
		}
	}
	return offsets
}

// Eroded returns a new mask where a pixel stays marked only if every pixel
// under a disc of the given radius is marked. Neighbors outside the grid
// count as marked, so regions touching the border are not eaten from outside.
func (m *Mask) Eroded(radius int) *Mask {
	if radius <= 0 {
		return m.Clone()
	}
	offsets := discOffsets(radius)
	out := New(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if !m.bits[y*m.w+x] {
				continue
			}
			keep := true
			for _, o := range offsets {
				nx, ny := x+o.X, y+o.Y
				if nx < 0 || nx >= m.w || ny < 0 || ny >= m.h {
					continue
				}
				if !m.bits[ny*m.w+nx] {
					keep = false
					break
				}
			}
			out.bits[y*m.w+x] = keep
		}
	}
	return out
}

// Dilated returns a new mask where a pixel becomes marked if any pixel under
// a disc of the given radius is marked.
func (m *Mask) Dilated(radius int) *Mask {
	if radius <= 0 {
		return m.Clone()
	}
	offsets := discOffsets(radius)
	out := New(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if !m.bits[y*m.w+x] {
				continue
			}
			for _, o := range offsets {
				out.Set(x+o.X, y+o.Y, true)
			}
		}
	}
	return out
}

// Opened erodes then dilates, removing isolated specks smaller than the
// structuring element while preserving the extent of larger regions.
func (m *Mask) Opened(radius int) *Mask {
	return m.Eroded(radius).Dilated(radius)
}

// Closed dilates then erodes, bridging small gaps between nearby fragments
// of the same object.
func (m *Mask) Closed(radius int) *Mask {
	return m.Dilated(radius).Eroded(radius)
}
