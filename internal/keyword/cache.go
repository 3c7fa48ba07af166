package keyword

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
)

// Cache artifact names inside the cache directory.
const (
	IndexFile           = "index.gob"
	DocmapFile          = "docmap.gob"
	TermFrequenciesFile = "term_frequencies.gob"
	DocLengthsFile      = "doc_lengths.gob"
	ManifestFile        = "keyword.json"
)

// cacheManifest records which catalog the gob files were built from. It is
// written last, so a torn save leaves a manifest that no longer matches.
type cacheManifest struct {
	CatalogHash string `json:"catalog_hash"`
	Documents   int    `json:"documents"`
}

// CacheFiles returns the artifact paths for cacheDir in write order. The
// manifest is always last.
func CacheFiles(cacheDir string) []string {
	return []string{
		filepath.Join(cacheDir, IndexFile),
		filepath.Join(cacheDir, DocmapFile),
		filepath.Join(cacheDir, TermFrequenciesFile),
		filepath.Join(cacheDir, DocLengthsFile),
		filepath.Join(cacheDir, ManifestFile),
	}
}

// Save writes the four index structures and the manifest to the cache
// directory. Each file is replaced atomically; the set as a whole is not, so
// concurrent builders must be serialized by the caller.
func (idx *InvertedIndex) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(idx.cacheDir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	files := CacheFiles(idx.cacheDir)
	values := []interface{}{idx.postings(), idx.docmap, idx.termFrequencies, idx.docLengths}
	for i, v := range values {
		if err := writeGob(files[i], v); err != nil {
			return err
		}
	}
	manifest := cacheManifest{CatalogHash: idx.catalogHash, Documents: len(idx.docmap)}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", ManifestFile, err)
	}
	if err := renameio.WriteFile(files[len(values)], data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", ManifestFile, err)
	}
	idx.logger.Info("keyword index saved",
		zap.String("cache_dir", idx.cacheDir),
		zap.String("catalog_hash", idx.catalogHash))
	return nil
}

// Load replaces the index contents with the cached structures. It fails with
// ErrCacheMissing when any artifact is absent or the manifest disagrees with
// the cached documents.
func (idx *InvertedIndex) Load() error {
	files := CacheFiles(idx.cacheDir)
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrCacheMissing, filepath.Base(path))
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}

	var (
		postings        map[string][]int
		docmap          map[int]*models.Movie
		termFrequencies map[int]map[string]int
		docLengths      map[int]int
	)
	targets := []interface{}{&postings, &docmap, &termFrequencies, &docLengths}
	for i, target := range targets {
		if err := readGob(files[i], target); err != nil {
			return err
		}
	}
	data, err := os.ReadFile(files[len(targets)])
	if err != nil {
		return fmt.Errorf("read %s: %w", ManifestFile, err)
	}
	var manifest cacheManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("decode %s: %w", ManifestFile, err)
	}
	if manifest.Documents != len(docmap) {
		return fmt.Errorf("%w: %s lists %d documents, docmap has %d",
			ErrCacheMissing, ManifestFile, manifest.Documents, len(docmap))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset()
	for tok, ids := range postings {
		set := make(map[int]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		idx.index[tok] = set
	}
	for id, m := range docmap {
		idx.docmap[id] = m
	}
	for id, counts := range termFrequencies {
		idx.termFrequencies[id] = counts
	}
	for id, n := range docLengths {
		idx.docLengths[id] = n
	}
	idx.catalogHash = manifest.CatalogHash
	idx.logger.Info("keyword index loaded",
		zap.String("cache_dir", idx.cacheDir),
		zap.String("catalog_hash", idx.catalogHash),
		zap.Int("documents", len(idx.docmap)))
	return nil
}

// postings flattens the id sets into sorted slices; gob cannot encode struct{}.
func (idx *InvertedIndex) postings() map[string][]int {
	out := make(map[string][]int, len(idx.index))
	for tok, set := range idx.index {
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		out[tok] = ids
	}
	return out
}

func writeGob(path string, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
