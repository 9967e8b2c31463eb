package pipeline

import (
	"github.com/google/uuid"

	"github.com/streetmesh/texprep/internal/plate"
)

// State labels the terminal (or in failure logs, last-reached) stage of one
// plate's trip through the pipeline.
type State string

// Per-plate pipeline states. Cleaned, FallbackColor, and Degraded are
// terminal.
const (
	StateLoaded        State = "loaded"
	StateExtracting    State = "extracting-evidence"
	StateFusing        State = "fusing"
	StateRepairing     State = "repairing"
	StateCleaned       State = "cleaned"
	StateFallbackColor State = "fallback-color"
	StateDegraded      State = "degraded"
)

// PlateStats is the aggregate record for one processed plate.
type PlateStats struct {
	// PlateID identifies the plate; empty when the input was missing.
	PlateID string `json:"plate_id,omitempty"`

	// Source is the plate's origin (usually a file path).
	Source string `json:"source,omitempty"`

	// State is the terminal state the plate reached.
	State State `json:"state"`

	// RemovedPixels is the number of pixels selected for repair after
	// refinement.
	RemovedPixels int `json:"removed_pixel_count"`

	// RemovedFraction is RemovedPixels over the plate area.
	RemovedFraction float64 `json:"removed_fraction"`

	// UsedFallback is set when synthesized color stands in for repaired
	// imagery anywhere on this plate.
	UsedFallback bool `json:"used_fallback"`

	// Overflow is set when an implausibly large removal region was
	// suppressed rather than repaired.
	Overflow bool `json:"overflow"`
}

// Result is the per-plate outcome delivered to the texture-projection
// consumer: the cleaned plate and its statistics.
//
// Plate is nil only when no usable imagery exists for the input (missing or
// zero-sized source); those surfaces are colored point-by-point via
// Pipeline.ColorForSurfacePoint.
type Result struct {
	Plate *plate.Plate
	Stats PlateStats
}

// BatchStats aggregates one CleanAll run, mirroring what operators watch:
// how many plates carried transients, how much was removed, how often the
// pipeline had to degrade or synthesize.
type BatchStats struct {
	BatchID              string       `json:"batch_id"`
	TotalPlates          int          `json:"total_plates"`
	Cleaned              int          `json:"cleaned"`
	Degraded             int          `json:"degraded"`
	Fallbacks            int          `json:"fallbacks"`
	Overflows            int          `json:"overflows"`
	PlatesWithTransients int          `json:"plates_with_transients"`
	TotalRemovedPixels   int          `json:"total_removed_pixels"`
	AvgRemovedFraction   float64      `json:"avg_removed_fraction"`
	Plates               []PlateStats `json:"plates"`
}

// Aggregate summarizes per-plate results into batch statistics.
func Aggregate(results []Result) BatchStats {
	bs := BatchStats{
		BatchID: uuid.NewString(),
		Plates:  make([]PlateStats, 0, len(results)),
	}
	var fractionSum float64
	for _, res := range results {
		st := res.Stats
		bs.Plates = append(bs.Plates, st)
		bs.TotalPlates++
		switch st.State {
		case StateCleaned:
			bs.Cleaned++
		case StateDegraded:
			bs.Degraded++
		}
		if st.UsedFallback {
			bs.Fallbacks++
		}
		if st.Overflow {
			bs.Overflows++
		}
		if st.RemovedPixels > 0 {
			bs.PlatesWithTransients++
		}
		bs.TotalRemovedPixels += st.RemovedPixels
		fractionSum += st.RemovedFraction
	}
	if bs.TotalPlates > 0 {
		bs.AvgRemovedFraction = fractionSum / float64(bs.TotalPlates)
	}
	return bs
}
