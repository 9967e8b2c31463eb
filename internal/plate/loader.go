package plate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// Loader reads image files into Plates, caching decoded plates by path so a
// plate can be re-fetched for diagnostics or retries without another decode.
//
// Loader is safe for concurrent use by multiple goroutines.
type Loader struct {
	mu     sync.RWMutex
	plates map[string]*Plate
}

// NewLoader creates an empty, ready-to-use loader.
func NewLoader() *Loader {
	return &Loader{plates: make(map[string]*Plate)}
}

// Load returns the Plate for the given file, decoding it on first use.
//
// Decoding applies EXIF auto-orientation so plates from phone cameras arrive
// upright. Supported formats are those of disintegration/imaging: PNG, JPEG,
// GIF, TIFF, and BMP.
//
// Returns ErrInvalidPlate (wrapped) for images that decode but fail plate
// validation, and the underlying error for unreadable or undecodable files.
func (l *Loader) Load(path string) (*Plate, error) {
	l.mu.RLock()
	if p, ok := l.plates[path]; ok {
		l.mu.RUnlock()
		return p, nil
	}
	l.mu.RUnlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %q: %w", path, err)
	}

	p, err := FromImage(img, path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.plates[path] = p
	l.mu.Unlock()

	return p, nil
}

// Evict drops a cached plate. A path that was never loaded is a no-op.
func (l *Loader) Evict(path string) {
	l.mu.Lock()
	delete(l.plates, path)
	l.mu.Unlock()
}

// Clear drops every cached plate, freeing the associated memory.
func (l *Loader) Clear() {
	l.mu.Lock()
	l.plates = make(map[string]*Plate)
	l.mu.Unlock()
}

// imageExtensions lists the file extensions LoadDir considers imagery.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// LoadDir loads every image file directly inside dir, in lexical order.
//
// Files that fail to decode or validate are skipped and reported in the
// second return value keyed by path; one bad file never aborts the batch.
// An empty directory yields an empty slice and no error.
func (l *Loader) LoadDir(dir string) ([]*Plate, map[string]error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	plates := make([]*Plate, 0, len(names))
	failed := make(map[string]error)
	for _, name := range names {
		path := filepath.Join(dir, name)
		p, err := l.Load(path)
		if err != nil {
			failed[path] = err
			continue
		}
		plates = append(plates, p)
	}
	return plates, failed, nil
}
