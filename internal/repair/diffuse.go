// Package repair reconstructs masked plate regions from surrounding texture.
//
// The engine is a boundary-driven diffusion: known color is propagated
// inward from the mask border, one onion layer per pass, so pixels nearest
// the border are resolved first and carry the most faithful local texture.
// It is deterministic, has no learned priors, and its cost is bounded by the
// configured radius — properties the batch pipeline relies on to never stall
// on a single plate.
package repair

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
)

// ErrNothingToRepairFrom indicates a removal mask covering the entire plate:
// there is no surrounding texture to propagate. The caller receives the
// original plate unchanged and should fall back to synthesized color.
var ErrNothingToRepairFrom = errors.New("nothing to repair from: mask covers entire plate")

// eightNeighbors holds the diffusion stencil: orthogonal neighbors at full
// weight, diagonal neighbors down-weighted by 1/sqrt(2).
var eightNeighbors = []struct {
	dx, dy int
	weight float64
}{
	{0, -1, 1}, {0, 1, 1}, {-1, 0, 1}, {1, 0, 1},
	{-1, -1, math.Sqrt2 / 2}, {1, -1, math.Sqrt2 / 2},
	{-1, 1, math.Sqrt2 / 2}, {1, 1, math.Sqrt2 / 2},
}

// Diffuse returns a copy of p with every pixel marked in m replaced by
// diffused surrounding color. Unmasked pixels are byte-identical to the
// input.
//
// radius bounds the number of diffusion passes; masked pixels deeper than
// radius layers from the border receive the mean color of the mask's border
// ring so the result is always fully painted. An empty mask returns a plain
// copy. A mask covering the whole plate returns the original plate together
// with ErrNothingToRepairFrom.
func Diffuse(p *plate.Plate, m *mask.Mask, radius int) (*plate.Plate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w, h := p.Width(), p.Height()
	if m.Width() != w || m.Height() != h {
		return nil, fmt.Errorf("removal mask %dx%d does not match plate %dx%d",
			m.Width(), m.Height(), w, h)
	}
	if radius < 1 {
		radius = 1
	}

	total := m.Count()
	if total == 0 {
		return p.Clone(), nil
	}
	if total == w*h {
		return p, ErrNothingToRepairFrom
	}

	r := make([]float64, w*h)
	g := make([]float64, w*h)
	b := make([]float64, w*h)
	known := make([]bool, w*h)
	unknown := make([]int, 0, total)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			c := p.At(x, y)
			r[idx], g[idx], b[idx] = float64(c.R), float64(c.G), float64(c.B)
			if m.At(x, y) {
				unknown = append(unknown, idx)
			} else {
				known[idx] = true
			}
		}
	}

	// Mean of the known ring around the mask, used for pixels the bounded
	// diffusion never reaches.
	ringR, ringG, ringB := borderMean(r, g, b, known, unknown, w, h)

	for pass := 0; pass < radius && len(unknown) > 0; pass++ {
		type resolved struct {
			idx     int
			r, g, b float64
		}
		layer := make([]resolved, 0, len(unknown))
		remaining := unknown[:0]

		for _, idx := range unknown {
			x, y := idx%w, idx/w
			var sumW, sr, sg, sb float64
			for _, n := range eightNeighbors {
				nx, ny := x+n.dx, y+n.dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				nidx := ny*w + nx
				if !known[nidx] {
					continue
				}
				sumW += n.weight
				sr += r[nidx] * n.weight
				sg += g[nidx] * n.weight
				sb += b[nidx] * n.weight
			}
			if sumW == 0 {
				remaining = append(remaining, idx)
				continue
			}
			layer = append(layer, resolved{idx, sr / sumW, sg / sumW, sb / sumW})
		}

		// Commit the whole layer at once: within a pass every pixel reads
		// only values from previous passes, keeping the result independent
		// of scan order.
		for _, res := range layer {
			r[res.idx], g[res.idx], b[res.idx] = res.r, res.g, res.b
			known[res.idx] = true
		}
		unknown = remaining
	}

	for _, idx := range unknown {
		r[idx], g[idx], b[idx] = ringR, ringG, ringB
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !m.At(x, y) {
				out.SetNRGBA(x, y, p.At(x, y))
				continue
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: clampByte(r[idx]),
				G: clampByte(g[idx]),
				B: clampByte(b[idx]),
				A: 255,
			})
		}
	}
	return p.WithImage(out)
}

// borderMean averages the known pixels 8-adjacent to the mask.
func borderMean(r, g, b []float64, known []bool, unknown []int, w, h int) (mr, mg, mb float64) {
	var sr, sg, sb float64
	n := 0
	seen := make(map[int]bool)
	for _, idx := range unknown {
		x, y := idx%w, idx/w
		for _, nb := range eightNeighbors {
			nx, ny := x+nb.dx, y+nb.dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			nidx := ny*w + nx
			if !known[nidx] || seen[nidx] {
				continue
			}
			seen[nidx] = true
			sr += r[nidx]
			sg += g[nidx]
			sb += b[nidx]
			n++
		}
	}
	if n == 0 {
		return 128, 128, 128
	}
	return sr / float64(n), sg / float64(n), sb / float64(n)
}

func clampByte(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f + 0.5)
}
