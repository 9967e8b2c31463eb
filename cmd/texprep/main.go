// Command texprep cleans a directory of street-level photographs for use as
// 3-D surface texture: transient content (vehicles, pedestrians, blurred
// objects) is detected, removed, and repaired from surrounding texture.
// Cleaned plates are written as PNG alongside a JSON batch report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/streetmesh/texprep/internal/pipeline"
	"github.com/streetmesh/texprep/internal/plate"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "JSON config file (defaults used when empty)")
	outDir := flag.String("out", "cleaned", "directory for cleaned plates")
	reportPath := flag.String("report", "", "write the JSON batch report here (default: <out>/report.json)")
	workers := flag.Int("workers", 0, "override worker count (0 = config value)")
	showVersion := flag.Bool("version", false, "print version information")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("texprep %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: texprep [options] <input dir>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	inputDir := flag.Arg(0)

	logger := newLogger(*verbose)
	defer logger.Sync() //nolint:errcheck // stderr sync failure is uninteresting
	log := logger.Sugar()

	if err := run(inputDir, *configPath, *outDir, *reportPath, *workers, logger); err != nil {
		log.Fatalf("texprep failed: %v", err)
	}
}

func run(inputDir, configPath, outDir, reportPath string, workers int, logger *zap.Logger) error {
	log := logger.Sugar()

	cfg := pipeline.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = pipeline.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	pl, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	loader := plate.NewLoader()
	plates, failed, err := loader.LoadDir(inputDir)
	if err != nil {
		return err
	}
	for path, loadErr := range failed {
		log.Warnw("skipping unreadable plate", "path", path, "error", loadErr)
	}
	log.Infow("loaded plates", "count", len(plates), "skipped", len(failed), "dir", inputDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, stats := pl.CleanAll(ctx, plates)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, res := range results {
		if res.Plate == nil {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(res.Stats.Source), filepath.Ext(res.Stats.Source))
		dest := filepath.Join(outDir, name+".png")
		if err := imaging.Save(res.Plate.Image(), dest); err != nil {
			log.Warnw("failed to save cleaned plate", "dest", dest, "error", err)
		}
	}

	if reportPath == "" {
		reportPath = filepath.Join(outDir, "report.json")
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch report: %w", err)
	}
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write batch report: %w", err)
	}

	log.Infow("batch complete",
		"total", stats.TotalPlates,
		"cleaned", stats.Cleaned,
		"degraded", stats.Degraded,
		"fallbacks", stats.Fallbacks,
		"with_transients", stats.PlatesWithTransients,
		"avg_removed_fraction", fmt.Sprintf("%.4f", stats.AvgRemovedFraction),
		"report", reportPath,
	)
	return nil
}

// newLogger builds a console logger on stderr; stdout stays clean for
// shell pipelines.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		// Production config only fails on bad output paths; stderr is safe.
		panic(err)
	}
	return logger
}
