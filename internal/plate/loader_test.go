package plate

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writePNG encodes img to path, failing the test on error.
func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "street.png")
	writePNG(t, path, createTestImage(8, 6, color.NRGBA{200, 100, 50, 255}))

	loader := NewLoader()
	p, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Width() != 8 || p.Height() != 6 {
		t.Errorf("dimensions: got %dx%d, want 8x6", p.Width(), p.Height())
	}
	if p.Source() != path {
		t.Errorf("source: got %q, want %q", p.Source(), path)
	}

	// Second load returns the cached plate.
	again, err := loader.Load(path)
	if err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
	if again != p {
		t.Error("expected the cached plate instance")
	}

	loader.Evict(path)
	fresh, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load after evict failed: %v", err)
	}
	if fresh == p {
		t.Error("expected a fresh decode after eviction")
	}
}

func TestLoader_Load_Missing(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoader_Load_Grayscale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gray.png")
	writePNG(t, path, image.NewGray(image.Rect(0, 0, 4, 4)))

	loader := NewLoader()
	if _, err := loader.Load(path); !errors.Is(err, ErrInvalidPlate) {
		t.Errorf("got %v, want ErrInvalidPlate", err)
	}
}

func TestLoader_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), createTestImage(4, 4, color.NRGBA{A: 255}))
	writePNG(t, filepath.Join(dir, "a.png"), createTestImage(4, 4, color.NRGBA{A: 255}))
	writePNG(t, filepath.Join(dir, "bad.png"), image.NewGray(image.Rect(0, 0, 4, 4)))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader()
	plates, failed, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(plates) != 2 {
		t.Fatalf("plates: got %d, want 2", len(plates))
	}
	// Lexical order.
	if filepath.Base(plates[0].Source()) != "a.png" || filepath.Base(plates[1].Source()) != "b.png" {
		t.Errorf("order: got %q, %q", plates[0].Source(), plates[1].Source())
	}
	if len(failed) != 1 {
		t.Errorf("failed: got %d entries, want 1", len(failed))
	}
}

func TestLoader_LoadDir_Empty(t *testing.T) {
	loader := NewLoader()
	plates, failed, err := loader.LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(plates) != 0 || len(failed) != 0 {
		t.Errorf("got %d plates, %d failures, want none", len(plates), len(failed))
	}
}
