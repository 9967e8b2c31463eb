package mask

import "image"

// Component is one 4-connected region of marked pixels.
type Component struct {
	// Points lists every pixel in the region.
	Points []image.Point

	// Bounds is the bounding box enclosing the region.
	Bounds image.Rectangle
}

// Area returns the number of pixels in the region.
func (c Component) Area() int { return len(c.Points) }

// Components returns the 4-connected regions of marked pixels, in scan
// order of their first-seen pixel.
func (m *Mask) Components() []Component {
	seen := make([]bool, len(m.bits))
	var comps []Component
	var queue []image.Point

	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			idx := y*m.w + x
			if seen[idx] || !m.bits[idx] {
				seen[idx] = true
				continue
			}

			// BFS over the region, tracking its bounding box.
			queue = queue[:0]
			queue = append(queue, image.Point{X: x, Y: y})
			seen[idx] = true
			comp := Component{Bounds: image.Rect(x, y, x+1, y+1)}

			for len(queue) > 0 {
				pt := queue[0]
				queue = queue[1:]
				comp.Points = append(comp.Points, pt)
				comp.Bounds = comp.Bounds.Union(image.Rect(pt.X, pt.Y, pt.X+1, pt.Y+1))

				for _, n := range [4]image.Point{
					{pt.X, pt.Y - 1}, {pt.X, pt.Y + 1},
					{pt.X - 1, pt.Y}, {pt.X + 1, pt.Y},
				} {
					if n.X < 0 || n.X >= m.w || n.Y < 0 || n.Y >= m.h {
						continue
					}
					nidx := n.Y*m.w + n.X
					if seen[nidx] {
						continue
					}
					seen[nidx] = true
					if m.bits[nidx] {
						queue = append(queue, n)
					}
				}
			}
			comps = append(comps, comp)
		}
	}
	return comps
}

// DropSmallComponents unmarks every connected region with fewer than
// minArea pixels. Extractors use it to discard speckle that cannot be a
// real ground-level object.
func (m *Mask) DropSmallComponents(minArea int) {
	if minArea <= 1 {
		return
	}
	for _, c := range m.Components() {
		if c.Area() < minArea {
			m.ClearRegion(c.Points)
		}
	}
}

// SuppressLargerThan unmarks every connected region whose area exceeds the
// given fraction of the grid, and reports whether any region was suppressed.
//
// A removal region that large is treated as an algorithm or lighting failure
// rather than a genuine transient object: clearing it keeps the repair stage
// from erasing most of the plate.
func (m *Mask) SuppressLargerThan(maxFraction float64) bool {
	if maxFraction <= 0 || maxFraction >= 1 {
		return false
	}
	limit := int(maxFraction * float64(m.w) * float64(m.h))
	suppressed := false
	for _, c := range m.Components() {
		if c.Area() > limit {
			m.ClearRegion(c.Points)
			suppressed = true
		}
	}
	return suppressed
}
