package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Config carries every tunable of the cleaning pipeline.
//
// The thresholds are empirically chosen defaults, not physical constants;
// they were tuned on forward-facing street captures and may need adjustment
// for other capture geometries. A Config is immutable by convention: it is
// copied into each component at construction and never consulted again, so
// plates processed in parallel can never observe a configuration change.
type Config struct {
	// ReflectanceBrightnessThreshold is the minimum HSV value (0-255) for a
	// pixel to count as reflective when paired with low saturation.
	ReflectanceBrightnessThreshold float64 `json:"reflectance_brightness_threshold"`

	// ReflectanceSaturationThreshold is the maximum HSV saturation (0-255)
	// for a bright pixel to count as reflective.
	ReflectanceSaturationThreshold float64 `json:"reflectance_saturation_threshold"`

	// ReflectanceVarianceThreshold is the minimum local second-derivative
	// magnitude (0-255) marking specular highlights.
	ReflectanceVarianceThreshold float64 `json:"reflectance_variance_threshold"`

	// ReflectanceGroundBandFraction is the share of image height, from the
	// bottom, where reflective evidence is accepted.
	ReflectanceGroundBandFraction float64 `json:"reflectance_ground_band_fraction"`

	// VerticalEdgeRatio is the required dominance of horizontal over
	// vertical gradient for a vertical-edge pixel.
	VerticalEdgeRatio float64 `json:"vertical_edge_ratio"`

	// VerticalMinEdgeStrength is the absolute minimum horizontal gradient
	// (0-255) for a vertical-edge pixel.
	VerticalMinEdgeStrength float64 `json:"vertical_min_edge_strength"`

	// VerticalGroundBandFraction is the share of image height, from the
	// bottom, where vertical-structure evidence is accepted.
	VerticalGroundBandFraction float64 `json:"vertical_ground_band_fraction"`

	// VerticalMinComponentArea drops vertical-evidence components smaller
	// than this many pixels.
	VerticalMinComponentArea int `json:"vertical_min_component_area"`

	// BlurPercentile (0-100) of the plate's own sharpness distribution
	// below which regions count as motion-blurred.
	BlurPercentile float64 `json:"blur_percentile"`

	// BlurWindow is the side length of the sharpness averaging window.
	BlurWindow int `json:"blur_window"`

	// MorphRadius is the structuring-element radius for the open/close
	// refinement of the fused mask.
	MorphRadius int `json:"morph_radius"`

	// InpaintRadius bounds the diffusion passes of the repair engine.
	InpaintRadius int `json:"inpaint_radius"`

	// MaxRemovableAreaFraction is the largest share of the plate a single
	// removal region may cover before it is treated as a detection failure
	// and suppressed.
	MaxRemovableAreaFraction float64 `json:"max_removable_area_fraction"`

	// AlternateDetectorEnabled wires an additional evidence extractor
	// alongside the built-in three. Unless the caller supplies their own,
	// the signage/text detector is used.
	AlternateDetectorEnabled bool `json:"alternate_detector_enabled"`

	// SignageMinConfidence is the minimum layout-analysis confidence (0-1)
	// for the signage detector.
	SignageMinConfidence float64 `json:"signage_min_confidence"`

	// Workers is the number of plates processed concurrently.
	Workers int `json:"workers"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		ReflectanceBrightnessThreshold: 200,
		ReflectanceSaturationThreshold: 50,
		ReflectanceVarianceThreshold:   30,
		ReflectanceGroundBandFraction:  0.6,
		VerticalEdgeRatio:              1.5,
		VerticalMinEdgeStrength:        50,
		VerticalGroundBandFraction:     0.5,
		VerticalMinComponentArea:       30,
		BlurPercentile:                 25,
		BlurWindow:                     15,
		MorphRadius:                    2,
		InpaintRadius:                  5,
		MaxRemovableAreaFraction:       0.6,
		AlternateDetectorEnabled:       false,
		SignageMinConfidence:           0.6,
		Workers:                        runtime.NumCPU(),
	}
}

// LoadConfig reads a JSON config file over the defaults, so a file only
// needs to name the options it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would make the pipeline degenerate.
func (c Config) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return fmt.Errorf(format, args...)
	}
	for _, err := range []error{
		check(c.ReflectanceBrightnessThreshold >= 0 && c.ReflectanceBrightnessThreshold <= 255,
			"reflectance_brightness_threshold %v outside [0,255]", c.ReflectanceBrightnessThreshold),
		check(c.ReflectanceSaturationThreshold >= 0 && c.ReflectanceSaturationThreshold <= 255,
			"reflectance_saturation_threshold %v outside [0,255]", c.ReflectanceSaturationThreshold),
		check(c.ReflectanceVarianceThreshold >= 0 && c.ReflectanceVarianceThreshold <= 255,
			"reflectance_variance_threshold %v outside [0,255]", c.ReflectanceVarianceThreshold),
		check(c.ReflectanceGroundBandFraction > 0 && c.ReflectanceGroundBandFraction <= 1,
			"reflectance_ground_band_fraction %v outside (0,1]", c.ReflectanceGroundBandFraction),
		check(c.VerticalEdgeRatio >= 1, "vertical_edge_ratio %v below 1", c.VerticalEdgeRatio),
		check(c.VerticalMinEdgeStrength >= 0 && c.VerticalMinEdgeStrength <= 255,
			"vertical_min_edge_strength %v outside [0,255]", c.VerticalMinEdgeStrength),
		check(c.VerticalGroundBandFraction > 0 && c.VerticalGroundBandFraction <= 1,
			"vertical_ground_band_fraction %v outside (0,1]", c.VerticalGroundBandFraction),
		check(c.VerticalMinComponentArea >= 0,
			"vertical_min_component_area %d negative", c.VerticalMinComponentArea),
		check(c.BlurPercentile >= 0 && c.BlurPercentile <= 100,
			"blur_percentile %v outside [0,100]", c.BlurPercentile),
		check(c.BlurWindow >= 3, "blur_window %d below 3", c.BlurWindow),
		check(c.MorphRadius >= 0, "morph_radius %d negative", c.MorphRadius),
		check(c.InpaintRadius >= 1, "inpaint_radius %d below 1", c.InpaintRadius),
		check(c.MaxRemovableAreaFraction > 0 && c.MaxRemovableAreaFraction < 1,
			"max_removable_area_fraction %v outside (0,1)", c.MaxRemovableAreaFraction),
		check(c.SignageMinConfidence >= 0 && c.SignageMinConfidence <= 1,
			"signage_min_confidence %v outside [0,1]", c.SignageMinConfidence),
		check(c.Workers >= 1, "workers %d below 1", c.Workers),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
