// Package pipeline orchestrates plate cleaning: evidence extraction, mask
// fusion and refinement, repair, and the fallback paths that keep a single
// bad plate from ever aborting a batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/streetmesh/texprep/internal/extract"
	"github.com/streetmesh/texprep/internal/fallback"
	"github.com/streetmesh/texprep/internal/mask"
	"github.com/streetmesh/texprep/internal/plate"
	"github.com/streetmesh/texprep/internal/repair"
)

// Pipeline drives per-plate cleaning. It is immutable after New and safe
// for concurrent use; plates share no mutable state, so any number may be
// processed in parallel.
type Pipeline struct {
	cfg        Config
	log        *zap.SugaredLogger
	extractors []extract.Extractor
	synth      *fallback.Synthesizer
}

// Option customizes a Pipeline at construction.
type Option func(*Pipeline)

// WithExtractor wires an additional evidence extractor into the pipeline,
// ahead of the built-in heuristics. Its mask merges at fusion exactly like
// the built-in evidence; fusion is indifferent to the extractor's internal
// method. Implies the alternate-detector mode regardless of configuration.
func WithExtractor(e extract.Extractor) Option {
	return func(pl *Pipeline) {
		pl.extractors = append([]extract.Extractor{e}, pl.extractors...)
	}
}

// New builds a pipeline from the given configuration.
//
// When cfg.AlternateDetectorEnabled is set and the caller supplies no
// extractor of their own, the stock signage/text detector joins the
// built-in three. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pl := &Pipeline{
		cfg:   cfg,
		log:   logger.Sugar(),
		synth: fallback.NewSynthesizer(),
		extractors: []extract.Extractor{
			extract.NewReflectance(
				cfg.ReflectanceBrightnessThreshold,
				cfg.ReflectanceSaturationThreshold,
				cfg.ReflectanceVarianceThreshold,
				cfg.ReflectanceGroundBandFraction,
			),
			extract.NewVertical(
				cfg.VerticalEdgeRatio,
				cfg.VerticalMinEdgeStrength,
				cfg.VerticalGroundBandFraction,
				cfg.VerticalMinComponentArea,
			),
			extract.NewMotionBlur(cfg.BlurPercentile, cfg.BlurWindow),
		},
	}

	custom := false
	for _, opt := range opts {
		opt(pl)
		custom = true
	}
	if cfg.AlternateDetectorEnabled && !custom {
		pl.extractors = append(pl.extractors,
			extract.NewSignage(cfg.VerticalGroundBandFraction, cfg.SignageMinConfidence))
	}
	return pl, nil
}

// Clean runs one plate through the pipeline and always returns a Result:
// no input condition is fatal. See Result for the fallback contract.
func (pl *Pipeline) Clean(p *plate.Plate) (res Result) {
	res.Stats.State = StateLoaded
	if p != nil {
		res.Stats.PlateID = p.ID()
		res.Stats.Source = p.Source()
	}

	if err := p.Validate(); err != nil {
		pl.log.Warnw("plate failed validation, returning fallback color",
			"plate", res.Stats.PlateID, "source", res.Stats.Source, "error", err)
		res.Stats.State = StateFallbackColor
		res.Stats.UsedFallback = true
		return res
	}

	// Any panic in a stage degrades this one plate; siblings are unaffected
	// because plates share nothing.
	defer func() {
		if r := recover(); r != nil {
			pl.log.Errorw("cleaning stage panicked, degrading plate",
				"plate", p.ID(), "state", res.Stats.State, "panic", r)
			res = pl.degrade(p)
		}
	}()

	res.Stats.State = StateExtracting
	evidence := pl.extractEvidence(p)

	res.Stats.State = StateFusing
	fused, overflow := pl.fuse(p, evidence)
	res.Stats.Overflow = overflow
	res.Stats.RemovedPixels = fused.Count()
	res.Stats.RemovedFraction = fused.Fraction()

	res.Stats.State = StateRepairing
	cleaned, err := repair.Diffuse(p, fused, pl.cfg.InpaintRadius)
	if err != nil {
		if errors.Is(err, repair.ErrNothingToRepairFrom) {
			pl.log.Warnw("removal mask covers entire plate, keeping original",
				"plate", p.ID())
			res.Plate = p.Clone()
			res.Stats.State = StateCleaned
			res.Stats.UsedFallback = true
			return res
		}
		pl.log.Errorw("repair failed, degrading plate", "plate", p.ID(), "error", err)
		return pl.degrade(p)
	}

	res.Plate = cleaned
	res.Stats.State = StateCleaned
	return res
}

// extractEvidence runs every extractor concurrently against the immutable
// plate. A failing or panicking extractor contributes an empty mask; the
// others proceed.
func (pl *Pipeline) extractEvidence(p *plate.Plate) []*mask.Mask {
	masks := make([]*mask.Mask, len(pl.extractors))
	errs := make([]error, len(pl.extractors))

	var g errgroup.Group
	for i, ex := range pl.extractors {
		i, ex := i, ex
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("extractor %s panicked: %v", ex.Name(), r)
				}
			}()
			m, err := ex.Extract(p)
			if err != nil {
				errs[i] = fmt.Errorf("extractor %s: %w", ex.Name(), err)
				return nil
			}
			masks[i] = m
			return nil
		})
	}
	_ = g.Wait() // goroutines only record errors, never return them

	if err := multierr.Combine(errs...); err != nil {
		pl.log.Warnw("some extractors failed, their evidence is empty",
			"plate", p.ID(), "error", err)
	}
	return masks
}

// fuse merges the evidence masks into one removal mask, cleans noise with a
// morphological open/close, and suppresses implausibly large regions.
// Reports whether suppression occurred.
func (pl *Pipeline) fuse(p *plate.Plate, evidence []*mask.Mask) (*mask.Mask, bool) {
	fused := mask.New(p.Width(), p.Height())
	for i, m := range evidence {
		if m == nil {
			continue
		}
		if err := fused.Union(m); err != nil {
			pl.log.Warnw("evidence mask rejected at fusion",
				"plate", p.ID(), "extractor", pl.extractors[i].Name(), "error", err)
		}
	}

	fused = fused.Opened(pl.cfg.MorphRadius).Closed(pl.cfg.MorphRadius)
	overflow := fused.SuppressLargerThan(pl.cfg.MaxRemovableAreaFraction)
	if overflow {
		pl.log.Warnw("oversized removal region suppressed",
			"plate", p.ID(), "max_fraction", pl.cfg.MaxRemovableAreaFraction)
	}
	return fused, overflow
}

// degrade is the terminal path for plates whose normal processing failed:
// a simplified legacy heuristic (reflectance evidence only, masked pixels
// replaced with the plate's unmasked mean color), and when even that fails,
// a fully synthesized fill.
func (pl *Pipeline) degrade(p *plate.Plate) Result {
	res := Result{Stats: PlateStats{
		PlateID: p.ID(),
		Source:  p.Source(),
		State:   StateDegraded,
	}}

	legacy, removed, err := pl.legacyClean(p)
	if err == nil {
		res.Plate = legacy
		res.Stats.RemovedPixels = removed
		res.Stats.RemovedFraction = float64(removed) / float64(p.Width()*p.Height())
		return res
	}

	pl.log.Errorw("legacy heuristic failed, synthesizing fill",
		"plate", p.ID(), "error", err)
	fill, err := p.WithImage(pl.synth.Fill(p.Width(), p.Height()))
	if err != nil {
		// Dimensions always match here; guard anyway rather than panic in
		// the path that exists to absorb failures.
		res.Stats.UsedFallback = true
		return res
	}
	res.Plate = fill
	res.Stats.UsedFallback = true
	return res
}

// legacyClean is the pre-fusion heuristic kept as a degraded-mode fallback:
// one extractor, no morphology, flat mean fill instead of diffusion.
func (pl *Pipeline) legacyClean(p *plate.Plate) (out *plate.Plate, removed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("legacy heuristic panicked: %v", r)
		}
	}()

	reflect := extract.NewReflectance(
		pl.cfg.ReflectanceBrightnessThreshold,
		pl.cfg.ReflectanceSaturationThreshold,
		pl.cfg.ReflectanceVarianceThreshold,
		pl.cfg.ReflectanceGroundBandFraction,
	)
	m, err := reflect.Extract(p)
	if err != nil {
		return nil, 0, err
	}

	w, h := p.Width(), p.Height()
	var sr, sg, sb, n uint64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.At(x, y) {
				continue
			}
			c := p.At(x, y)
			sr += uint64(c.R)
			sg += uint64(c.G)
			sb += uint64(c.B)
			n++
		}
	}
	if n == 0 {
		return nil, 0, errors.New("no unmasked pixels to average")
	}
	fillColor := color.NRGBA{
		R: uint8(sr / n),
		G: uint8(sg / n),
		B: uint8(sb / n),
		A: 255,
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.At(x, y) {
				img.SetNRGBA(x, y, fillColor)
			} else {
				img.SetNRGBA(x, y, p.At(x, y))
			}
		}
	}
	out, err = p.WithImage(img)
	if err != nil {
		return nil, 0, err
	}
	return out, m.Count(), nil
}

// CleanAll processes plates across cfg.Workers parallel workers and returns
// one Result per dispatched plate, in input order, plus batch statistics.
//
// Cancellation is cooperative: once ctx is done no further plates are
// dispatched, but in-flight plates run to completion — per-plate work is
// bounded and shares nothing, so there is nothing to interrupt safely.
func (pl *Pipeline) CleanAll(ctx context.Context, plates []*plate.Plate) ([]Result, BatchStats) {
	results := make([]Result, len(plates))

	var g errgroup.Group
	g.SetLimit(pl.cfg.Workers)

	dispatched := 0
	for i, p := range plates {
		if ctx.Err() != nil {
			pl.log.Infow("batch cancelled, not dispatching remaining plates",
				"dispatched", dispatched, "remaining", len(plates)-dispatched)
			break
		}
		dispatched++
		i, p := i, p
		g.Go(func() error {
			results[i] = pl.Clean(p)
			return nil
		})
	}
	_ = g.Wait() // Clean never returns an error; worst case is a fallback result

	results = results[:dispatched]
	return results, Aggregate(results)
}

// ColorForSurfacePoint synthesizes a color for a 3-D surface sample that no
// cleaned plate covers. x and y are horizontal world coordinates, z is
// normalized height in [0, 1]. The result is deterministic in the inputs.
func (pl *Pipeline) ColorForSurfacePoint(x, y, z float64) color.NRGBA {
	return pl.synth.RGBA8(x, y, z)
}
