//go:build !tesseract

package extract

import (
	"fmt"

	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
)

// Signage is a stub compiled without the tesseract build tag. It builds and
// wires identically but contributes no evidence, so enabling the alternate
// detector in a binary without Tesseract bindings degrades gracefully
// instead of breaking the pipeline.
type Signage struct{}

// NewSignage creates the stub extractor. The parameters are accepted for
// signature compatibility with the Tesseract-backed build and ignored.
func NewSignage(groundBand, minConfidence float64) *Signage {
	return &Signage{}
}

// Name implements Extractor.
func (s *Signage) Name() string { return "signage" }

// Extract implements Extractor, returning an empty evidence mask.
func (s *Signage) Extract(p *plate.Plate) (*mask.Mask, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("signage extractor: %w", err)
	}
	return mask.New(p.Width(), p.Height()), nil
}
