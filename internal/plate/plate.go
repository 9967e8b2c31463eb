package plate

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ErrInvalidPlate indicates a plate that cannot enter the cleaning pipeline:
// missing pixel data, zero dimensions, or a single-channel source.
var ErrInvalidPlate = errors.New("invalid plate")

// GeoPose is the optional capture location and heading of a plate.
type GeoPose struct {
	Lat     float64 `json:"lat"`     // Latitude in decimal degrees
	Lon     float64 `json:"lon"`     // Longitude in decimal degrees
	Heading float64 `json:"heading"` // Camera heading in degrees, 0 = north
}

// Plate is one photographic image entering the cleaning pipeline.
//
// A Plate is immutable once created: every constructor copies the pixel data
// it is given, and downstream stages derive new Plates rather than writing
// into this one. This makes it safe to hand the same Plate to several
// extractors running concurrently, and to keep the original around for
// diagnostics after a cleaning pass.
type Plate struct {
	id     string
	source string
	geo    *GeoPose
	img    *image.NRGBA
}

// FromImage creates a Plate from an already-decoded image.
//
// The pixel data is copied into an 8-bit RGBA buffer; the caller keeps
// ownership of img and may mutate it afterwards without affecting the Plate.
//
// Returns ErrInvalidPlate (wrapped) if img is nil, has zero area, or is a
// single-channel (grayscale/paletted-gray) image. The pipeline needs color
// samples; gray sources are routed to the fallback synthesizer instead.
func FromImage(img image.Image, source string) (*Plate, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image (source %q)", ErrInvalidPlate, source)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image %dx%d (source %q)", ErrInvalidPlate, b.Dx(), b.Dy(), source)
	}
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return nil, fmt.Errorf("%w: single-channel image (source %q)", ErrInvalidPlate, source)
	}

	return &Plate{
		id:     uuid.NewString(),
		source: source,
		img:    imaging.Clone(img),
	}, nil
}

// ID returns the plate's unique identifier, assigned at creation.
func (p *Plate) ID() string { return p.id }

// Source returns the origin of the plate, usually a file path or URL.
func (p *Plate) Source() string { return p.source }

// Geo returns the capture pose, or nil if the plate is not geolocated.
func (p *Plate) Geo() *GeoPose {
	if p.geo == nil {
		return nil
	}
	g := *p.geo
	return &g
}

// Width returns the plate width in pixels.
func (p *Plate) Width() int { return p.img.Bounds().Dx() }

// Height returns the plate height in pixels.
func (p *Plate) Height() int { return p.img.Bounds().Dy() }

// At returns the color at pixel (x, y). Coordinates are 0-based with the
// origin at the top-left corner.
func (p *Plate) At(x, y int) color.NRGBA {
	return p.img.NRGBAAt(x, y)
}

// Image returns the plate's pixel data as a read-only image.
//
// The returned image shares storage with the Plate and must not be type
// asserted and mutated; use Clone or WithImage to derive modified copies.
func (p *Plate) Image() image.Image { return p.img }

// Clone returns a deep copy of the plate with the same identity and metadata.
func (p *Plate) Clone() *Plate {
	cp := *p
	cp.img = imaging.Clone(p.img)
	return &cp
}

// WithImage derives a new Plate carrying the given pixel data but the same
// identity, source, and geopose. Used by the repair engine to publish a
// cleaned copy without touching the original. The image is copied.
//
// Returns an error if img's dimensions differ from the plate's: every
// derived artifact must match its source plate exactly.
func (p *Plate) WithImage(img image.Image) (*Plate, error) {
	if img.Bounds().Dx() != p.Width() || img.Bounds().Dy() != p.Height() {
		return nil, fmt.Errorf("derived image %dx%d does not match plate %dx%d",
			img.Bounds().Dx(), img.Bounds().Dy(), p.Width(), p.Height())
	}
	cp := *p
	cp.img = imaging.Clone(img)
	return &cp, nil
}

// WithGeo returns a copy of the plate tagged with a capture pose.
func (p *Plate) WithGeo(g GeoPose) *Plate {
	cp := *p
	cp.geo = &g
	cp.img = p.img // pixel data is immutable, safe to share
	return &cp
}

// Validate reports whether the plate can enter the cleaning pipeline.
// A nil plate, nil pixel data, or zero area fails validation.
func (p *Plate) Validate() error {
	if p == nil || p.img == nil {
		return fmt.Errorf("%w: no pixel data", ErrInvalidPlate)
	}
	if p.Width() == 0 || p.Height() == 0 {
		return fmt.Errorf("%w: zero-sized plate %dx%d", ErrInvalidPlate, p.Width(), p.Height())
	}
	return nil
}
