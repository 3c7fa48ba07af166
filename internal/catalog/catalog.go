// Package catalog loads the read-only movie catalog that every index is built from.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
)

var (
	// ErrDuplicateID is returned when two movies share an id.
	ErrDuplicateID = errors.New("duplicate movie id")
	// ErrUnsupportedFormat is returned for catalog files that are neither JSON nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported catalog format")
)

// Catalog is an ordered, immutable collection of movies.
type Catalog struct {
	movies []*models.Movie
	byID   map[int]*models.Movie
}

type catalogFile struct {
	Movies []*models.Movie `json:"movies"`
}

// New builds a catalog from movies, preserving their order.
func New(movies []*models.Movie) (*Catalog, error) {
	c := &Catalog{
		movies: make([]*models.Movie, 0, len(movies)),
		byID:   make(map[int]*models.Movie, len(movies)),
	}
	for _, m := range movies {
		if m == nil {
			continue
		}
		if _, ok := c.byID[m.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, m.ID)
		}
		c.movies = append(c.movies, m)
		c.byID[m.ID] = m
	}
	return c, nil
}

// Load reads a catalog from path. ".json" files hold {"movies": [...]};
// ".xlsx" files hold a header row with id, title and description columns.
func Load(path string) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func loadJSON(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Movies)
}

// Movies returns the movies in catalog order. The slice must not be modified.
func (c *Catalog) Movies() []*models.Movie {
	return c.movies
}

// Get returns the movie with id.
func (c *Catalog) Get(id int) (*models.Movie, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Len returns the number of movies.
func (c *Catalog) Len() int {
	return len(c.movies)
}

// Fingerprint returns a hex SHA-256 over every movie's id, title and description
// in catalog order. Any content edit changes it, even when the movie count does not.
func (c *Catalog) Fingerprint() string {
	return Fingerprint(c.movies)
}

// Fingerprint hashes movies the same way Catalog.Fingerprint does.
func Fingerprint(movies []*models.Movie) string {
	h := sha256.New()
	for _, m := range movies {
		h.Write([]byte(strconv.Itoa(m.ID)))
		h.Write([]byte{0x1f})
		h.Write([]byte(m.Title))
		h.Write([]byte{0x1f})
		h.Write([]byte(m.Description))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
