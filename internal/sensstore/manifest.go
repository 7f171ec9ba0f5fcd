package sensstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CurrentManifestVersion is the manifest format version written by this
// package.
const CurrentManifestVersion = 1

var (
	// ErrManifestFormat is returned for unreadable or inconsistent
	// manifests.
	ErrManifestFormat = errors.New("invalid sensitivity manifest")

	// ErrManifestVersion is returned for an unsupported manifest version.
	ErrManifestVersion = errors.New("unsupported sensitivity manifest version")
)

// Manifest describes a persisted sensitivity matrix: its shape, chunking
// and the integrity checksums of every chunk. It is stored as
// <path>/manifest.json alongside the chunk objects.
type Manifest struct {
	// FormatVersion identifies the manifest format for compatibility.
	FormatVersion int `json:"format_version"`

	// BuildID uniquely identifies the build that produced this matrix.
	BuildID string `json:"build_id"`

	// GeneratedAt is when the build completed.
	GeneratedAt time.Time `json:"generated_at"`

	// Rows is the data count, Cols the model parameter count.
	Rows int `json:"rows"`
	Cols int `json:"cols"`

	// ChunkRows is the nominal row count per chunk; the final chunk may
	// be shorter.
	ChunkRows int `json:"chunk_rows"`

	// Chunks lists the chunk objects in row order.
	Chunks []Chunk `json:"chunks"`
}

// Chunk describes one immutable row block.
type Chunk struct {
	// Key is the object key relative to the array path.
	Key string `json:"key"`

	// StartRow is the first matrix row held by this chunk.
	StartRow int `json:"start_row"`

	// Rows is the row count of this chunk.
	Rows int `json:"rows"`

	// Checksum is the xxhash64 of the uncompressed chunk bytes, hex
	// encoded.
	Checksum string `json:"checksum"`

	// CompressedBytes is the stored object size.
	CompressedBytes int64 `json:"compressed_bytes"`
}

// Validate checks internal consistency: contiguous row coverage and a
// supported version.
func (m *Manifest) Validate() error {
	if m.FormatVersion != CurrentManifestVersion {
		return fmt.Errorf("%w: %d", ErrManifestVersion, m.FormatVersion)
	}
	if m.Rows < 0 || m.Cols <= 0 || m.ChunkRows <= 0 {
		return fmt.Errorf("%w: shape %dx%d chunk_rows %d", ErrManifestFormat, m.Rows, m.Cols, m.ChunkRows)
	}
	next := 0
	for i, c := range m.Chunks {
		if c.StartRow != next || c.Rows <= 0 {
			return fmt.Errorf("%w: chunk %d starts at %d, want %d", ErrManifestFormat, i, c.StartRow, next)
		}
		next += c.Rows
	}
	if next != m.Rows {
		return fmt.Errorf("%w: chunks cover %d rows, manifest says %d", ErrManifestFormat, next, m.Rows)
	}
	return nil
}

func (m *Manifest) marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestFormat, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
