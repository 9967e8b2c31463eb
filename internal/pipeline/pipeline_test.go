package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
)

// createPlate builds a solid-color test plate.
func createPlate(t *testing.T, width, height int, c color.NRGBA) *plate.Plate {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	p, err := plate.FromImage(img, "test")
	require.NoError(t, err)
	return p
}

// paintRect builds a new plate with the given rectangle repainted.
func paintRect(t *testing.T, p *plate.Plate, r image.Rectangle, c color.NRGBA) *plate.Plate {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, p.Width(), p.Height()))
	for y := 0; y < p.Height(); y++ {
		for x := 0; x < p.Width(); x++ {
			if (image.Point{X: x, Y: y}).In(r) {
				img.SetNRGBA(x, y, c)
			} else {
				img.SetNRGBA(x, y, p.At(x, y))
			}
		}
	}
	out, err := p.WithImage(img)
	require.NoError(t, err)
	return out
}

// rectExtractor contributes a fixed rectangle of evidence.
type rectExtractor struct{ rect image.Rectangle }

func (e rectExtractor) Name() string { return "rect" }

func (e rectExtractor) Extract(p *plate.Plate) (*mask.Mask, error) {
	m := mask.New(p.Width(), p.Height())
	m.SetRect(e.rect)
	return m, nil
}

// panicExtractor blows up on every plate.
type panicExtractor struct{}

func (panicExtractor) Name() string { return "unstable" }

func (panicExtractor) Extract(p *plate.Plate) (*mask.Mask, error) {
	panic("extractor bug")
}

// failingExtractor errors on every plate.
type failingExtractor struct{}

func (failingExtractor) Name() string { return "broken" }

func (failingExtractor) Extract(p *plate.Plate) (*mask.Mask, error) {
	return nil, errors.New("sensor model unavailable")
}

func newTestPipeline(t *testing.T, cfg Config, opts ...Option) *Pipeline {
	t.Helper()
	pl, err := New(cfg, nil, opts...)
	require.NoError(t, err)
	return pl
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, "workers")
}

func TestNew_ExtractorWiring(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig())
	assert.Len(t, pl.extractors, 3)

	cfg := DefaultConfig()
	cfg.AlternateDetectorEnabled = true
	pl = newTestPipeline(t, cfg)
	assert.Len(t, pl.extractors, 4, "alternate mode adds the signage detector")

	// A caller-supplied extractor takes the alternate slot and runs first.
	pl = newTestPipeline(t, cfg, WithExtractor(rectExtractor{}))
	assert.Len(t, pl.extractors, 4)
	assert.Equal(t, "rect", pl.extractors[0].Name())
}

func TestClean_MissingPlate(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig())

	res := pl.Clean(nil)
	assert.Equal(t, StateFallbackColor, res.Stats.State)
	assert.True(t, res.Stats.UsedFallback)
	assert.Nil(t, res.Plate, "no usable imagery exists for a missing plate")

	// The consumer colors such surfaces point by point instead.
	c := pl.ColorForSurfacePoint(3.0, 7.0, 0.5)
	assert.Equal(t, uint8(255), c.A)
	assert.Equal(t, c, pl.ColorForSurfacePoint(3.0, 7.0, 0.5))
}

func TestClean_CleanPlateUntouched(t *testing.T) {
	// A plate with no transients must come through byte-identical.
	pl := newTestPipeline(t, DefaultConfig())
	p := createPlate(t, 100, 100, color.NRGBA{128, 128, 128, 255})

	res := pl.Clean(p)
	require.Equal(t, StateCleaned, res.Stats.State)
	require.NotNil(t, res.Plate)
	assert.Zero(t, res.Stats.RemovedPixels)
	assert.Zero(t, res.Stats.RemovedFraction)
	assert.False(t, res.Stats.UsedFallback)
	assert.False(t, res.Stats.Overflow)

	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			require.Equal(t, p.At(x, y), res.Plate.At(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestClean_RemovesWindshieldGlare(t *testing.T) {
	// A bright low-saturation patch near the ground, the classic parked-car
	// windshield, must be detected and repainted from its surroundings.
	pl := newTestPipeline(t, DefaultConfig())
	base := createPlate(t, 100, 100, color.NRGBA{120, 120, 120, 255})
	patch := image.Rect(30, 60, 55, 100)
	p := paintRect(t, base, patch, color.NRGBA{240, 240, 240, 255})

	res := pl.Clean(p)
	require.Equal(t, StateCleaned, res.Stats.State)
	require.NotNil(t, res.Plate)
	assert.Positive(t, res.Stats.RemovedPixels)
	assert.False(t, res.Stats.Overflow)

	// The patch interior is repainted toward the surrounding gray.
	got := res.Plate.At(42, 80)
	assert.Less(t, got.R, uint8(200), "glare still present: %v", got)

	// Pixels far from the patch are untouched.
	assert.Equal(t, p.At(10, 20), res.Plate.At(10, 20))
}

func TestClean_SuppressesOversizedRegion(t *testing.T) {
	// When detection claims more than the configured share of the plate in
	// one region, the claim is treated as a failure: content is retained.
	cfg := DefaultConfig()
	cfg.ReflectanceGroundBandFraction = 1.0
	pl := newTestPipeline(t, cfg)

	// Uniformly bright and colorless with the band opened to full height:
	// reflectance flags essentially the whole plate as one region, far past
	// the 60% limit.
	p := createPlate(t, 100, 100, color.NRGBA{240, 240, 240, 255})

	res := pl.Clean(p)
	require.Equal(t, StateCleaned, res.Stats.State)
	require.NotNil(t, res.Plate)
	assert.True(t, res.Stats.Overflow)
	assert.Zero(t, res.Stats.RemovedPixels, "suppressed region must not be repaired")

	for y := 0; y < 100; y += 7 {
		for x := 0; x < 100; x += 7 {
			require.Equal(t, p.At(x, y), res.Plate.At(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestClean_CustomExtractorEvidence(t *testing.T) {
	// Fusion treats caller-supplied evidence like any built-in evidence.
	pl := newTestPipeline(t, DefaultConfig(),
		WithExtractor(rectExtractor{rect: image.Rect(20, 20, 34, 34)}))
	p := createPlate(t, 64, 64, color.NRGBA{128, 128, 128, 255})

	res := pl.Clean(p)
	require.Equal(t, StateCleaned, res.Stats.State)
	assert.Positive(t, res.Stats.RemovedPixels)
	// Repainting a uniform plate from its surroundings reproduces it.
	assert.Equal(t, p.At(27, 27), res.Plate.At(27, 27))
}

func TestClean_PanickingExtractorIsolated(t *testing.T) {
	// One crashing extractor contributes empty evidence; the plate still
	// completes normally.
	pl := newTestPipeline(t, DefaultConfig(), WithExtractor(panicExtractor{}))
	p := createPlate(t, 64, 64, color.NRGBA{128, 128, 128, 255})

	res := pl.Clean(p)
	assert.Equal(t, StateCleaned, res.Stats.State)
	require.NotNil(t, res.Plate)
	assert.Zero(t, res.Stats.RemovedPixels)
}

func TestClean_FailingExtractorIsolated(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig(), WithExtractor(failingExtractor{}))
	p := createPlate(t, 64, 64, color.NRGBA{128, 128, 128, 255})

	res := pl.Clean(p)
	assert.Equal(t, StateCleaned, res.Stats.State)
	require.NotNil(t, res.Plate)
}

func TestDegrade(t *testing.T) {
	// The degraded path still delivers a usable plate via the simplified
	// heuristic.
	pl := newTestPipeline(t, DefaultConfig())
	p := createPlate(t, 50, 50, color.NRGBA{128, 128, 128, 255})

	res := pl.degrade(p)
	assert.Equal(t, StateDegraded, res.Stats.State)
	require.NotNil(t, res.Plate)
	assert.Zero(t, res.Stats.RemovedPixels)
	assert.Equal(t, p.At(25, 25), res.Plate.At(25, 25))
}

func TestDegrade_WithGlare(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig())
	base := createPlate(t, 100, 100, color.NRGBA{120, 120, 120, 255})
	p := paintRect(t, base, image.Rect(30, 60, 55, 100), color.NRGBA{240, 240, 240, 255})

	res := pl.degrade(p)
	assert.Equal(t, StateDegraded, res.Stats.State)
	require.NotNil(t, res.Plate)
	assert.Positive(t, res.Stats.RemovedPixels)
	// Flat mean fill, not diffusion: still removes the glare signature.
	assert.Less(t, res.Plate.At(42, 80).R, uint8(200))
}

func TestCleanAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 2
	pl := newTestPipeline(t, cfg)

	plates := []*plate.Plate{
		createPlate(t, 40, 40, color.NRGBA{128, 128, 128, 255}),
		nil, // missing imagery must not disturb its siblings
		createPlate(t, 40, 40, color.NRGBA{100, 100, 100, 255}),
	}

	results, stats := pl.CleanAll(context.Background(), plates)
	require.Len(t, results, 3)

	assert.Equal(t, StateCleaned, results[0].Stats.State)
	assert.Equal(t, StateFallbackColor, results[1].Stats.State)
	assert.Nil(t, results[1].Plate)
	assert.Equal(t, StateCleaned, results[2].Stats.State)

	assert.NotEmpty(t, stats.BatchID)
	assert.Equal(t, 3, stats.TotalPlates)
	assert.Equal(t, 2, stats.Cleaned)
	assert.Equal(t, 1, stats.Fallbacks)
	assert.Zero(t, stats.Degraded)
}

func TestCleanAll_Cancelled(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plates := []*plate.Plate{
		createPlate(t, 20, 20, color.NRGBA{128, 128, 128, 255}),
		createPlate(t, 20, 20, color.NRGBA{128, 128, 128, 255}),
	}
	results, stats := pl.CleanAll(ctx, plates)
	assert.Empty(t, results, "a cancelled batch dispatches nothing")
	assert.Zero(t, stats.TotalPlates)
}

func TestCleanAll_Empty(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig())
	results, stats := pl.CleanAll(context.Background(), nil)
	assert.Empty(t, results)
	assert.Zero(t, stats.TotalPlates)
	assert.Zero(t, stats.AvgRemovedFraction)
}

func TestAggregate(t *testing.T) {
	stats := Aggregate([]Result{
		{Stats: PlateStats{State: StateCleaned, RemovedPixels: 100, RemovedFraction: 0.1}},
		{Stats: PlateStats{State: StateCleaned, Overflow: true}},
		{Stats: PlateStats{State: StateDegraded, RemovedPixels: 50, RemovedFraction: 0.3}},
		{Stats: PlateStats{State: StateFallbackColor, UsedFallback: true}},
	})

	assert.Equal(t, 4, stats.TotalPlates)
	assert.Equal(t, 2, stats.Cleaned)
	assert.Equal(t, 1, stats.Degraded)
	assert.Equal(t, 1, stats.Fallbacks)
	assert.Equal(t, 1, stats.Overflows)
	assert.Equal(t, 2, stats.PlatesWithTransients)
	assert.Equal(t, 150, stats.TotalRemovedPixels)
	assert.InDelta(t, 0.1, stats.AvgRemovedFraction, 1e-9)
	assert.Len(t, stats.Plates, 4)
}
