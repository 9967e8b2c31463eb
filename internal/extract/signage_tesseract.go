//go:build tesseract

package extract

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
)

// Signage flags blocks of readable text near ground level: temporary signs,
// banners, billboards on trailers. It is the stock alternate detector wired
// in when the configuration enables one; like every extractor its mask
// merges at fusion with no special treatment.
//
// Detection uses Tesseract's block-level layout analysis only — the text is
// never recognized, just located, so this stays a detector rather than a
// classifier.
type Signage struct {
	groundBand    float64 // fraction of height, from the bottom, kept as candidates
	minConfidence float64 // minimum Tesseract block confidence, 0-1
}

// NewSignage creates the extractor. This implementation is selected by the
// tesseract build tag and needs a Tesseract installation; without the tag a
// stub that contributes no evidence is built instead.
func NewSignage(groundBand, minConfidence float64) *Signage {
	return &Signage{groundBand: groundBand, minConfidence: minConfidence}
}

// Name implements Extractor.
func (s *Signage) Name() string { return "signage" }

// Extract implements Extractor.
func (s *Signage) Extract(p *plate.Plate) (*mask.Mask, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("signage extractor: %w", err)
	}
	w, h := p.Width(), p.Height()

	// Tesseract wants a file path.
	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("texprep-signage-%s.png", p.ID()))
	if err := imaging.Save(p.Image(), tmpPath); err != nil {
		return nil, fmt.Errorf("failed to stage plate for layout analysis: %w", err)
	}
	defer os.Remove(tmpPath)

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(tmpPath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("text block detection failed: %w", err)
	}

	m := mask.New(w, h)
	bandTop := int(float64(h) * (1.0 - s.groundBand))
	for _, box := range boxes {
		if float64(box.Confidence)/100.0 < s.minConfidence {
			continue
		}
		r := box.Box.Intersect(image.Rect(0, bandTop, w, h))
		if !r.Empty() {
			m.SetRect(r)
		}
	}
	return m, nil
}
