package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// Manifest describes what an embedding matrix was built from. A cache is
// reused only when every field matches the current catalog and embedder.
type Manifest struct {
	CatalogHash string `json:"catalog_hash"`
	Embedder    string `json:"embedder"`
	Rows        int    `json:"rows"`
	Dimensions  int    `json:"dimensions"`
}

// Matches reports whether the manifest was produced for the given catalog
// fingerprint and embedder with the expected shape.
func (m *Manifest) Matches(catalogHash, embedder string, rows, dimensions int) bool {
	return m.CatalogHash == catalogHash &&
		m.Embedder == embedder &&
		m.Rows == rows &&
		m.Dimensions == dimensions
}

// WriteManifest atomically writes m as JSON.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return renameio.WriteFile(path, data, 0644)
}

// ReadManifest reads a manifest. A missing file yields ErrCacheMissing.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMissing, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
