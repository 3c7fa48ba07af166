package vector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// Matrix is an id-labelled embedding matrix as stored on disk.
type Matrix struct {
	Dimensions int
	IDs        []string
	Vectors    [][]float32
}

// Rows returns the number of vectors.
func (m *Matrix) Rows() int {
	return len(m.IDs)
}

// WriteMatrix atomically writes m to path. Format, little endian:
// dimensions (u32), rows (u32), then per row: id length (u32), id bytes,
// dimensions float32 values.
func WriteMatrix(path string, m *Matrix) error {
	if len(m.IDs) != len(m.Vectors) {
		return fmt.Errorf("matrix ids and vectors length mismatch: %d vs %d", len(m.IDs), len(m.Vectors))
	}
	var buf bytes.Buffer
	buf.Grow(8 + len(m.IDs)*(8+m.Dimensions*4))
	writeU32(&buf, uint32(m.Dimensions))
	writeU32(&buf, uint32(len(m.IDs)))
	for i, id := range m.IDs {
		if len(m.Vectors[i]) != m.Dimensions {
			return fmt.Errorf("%w: row %d has %d, expected %d", ErrDimensionMismatch, i, len(m.Vectors[i]), m.Dimensions)
		}
		writeU32(&buf, uint32(len(id)))
		buf.WriteString(id)
		for _, v := range m.Vectors[i] {
			writeU32(&buf, math.Float32bits(v))
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write matrix %s: %w", path, err)
	}
	return nil
}

// ReadMatrix reads a matrix written by WriteMatrix. A missing file yields ErrCacheMissing.
func ReadMatrix(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMissing, path)
		}
		return nil, fmt.Errorf("open matrix: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	dim, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	rows, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("read row count: %w", err)
	}
	m := &Matrix{
		Dimensions: int(dim),
		IDs:        make([]string, 0, rows),
		Vectors:    make([][]float32, 0, rows),
	}
	raw := make([]byte, int(dim)*4)
	for i := uint32(0); i < rows; i++ {
		idLen, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("read id length: %w", err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[j*4:]))
		}
		m.IDs = append(m.IDs, string(id))
		m.Vectors = append(m.Vectors, vec)
	}
	return m, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
