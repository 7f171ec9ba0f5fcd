package sensstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/petroseis/pgi/internal/metrics"
	"github.com/petroseis/pgi/pkg/objectstore"
)

// DefaultChunkRows is the nominal chunk height used when the writer is
// configured with zero.
const DefaultChunkRows = 128

// Writer accumulates row blocks of a sensitivity matrix and persists them
// as compressed chunks plus a manifest. Writes overwrite any previous
// array at the same path; a failed write leaves the path in an undefined
// state and the whole build must be retried.
type Writer struct {
	store     objectstore.Store
	path      string
	cols      int
	chunkRows int

	pending []float64 // buffered rows, row-major
	rows    int
	chunks  []Chunk

	storeName string
}

// NewWriter starts an overwriting build at path. Any chunks from a
// previous build under the same path are deleted up front.
func NewWriter(ctx context.Context, store objectstore.Store, arrayPath string, cols, chunkRows int) (*Writer, error) {
	if cols <= 0 {
		return nil, fmt.Errorf("%w: %d columns", ErrChunkFormat, cols)
	}
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}

	keys, err := store.List(ctx, arrayPath+"/")
	if err != nil {
		return nil, fmt.Errorf("list previous build: %w", err)
	}
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("clear previous build: %w", err)
		}
	}

	name := "unknown"
	if inst, ok := store.(*objectstore.Instrumented); ok {
		name = inst.Name()
	}
	return &Writer{
		store:     store,
		path:      arrayPath,
		cols:      cols,
		chunkRows: chunkRows,
		storeName: name,
	}, nil
}

// Append adds a row block. Blocks are buffered and cut into chunks of the
// configured height.
func (w *Writer) Append(ctx context.Context, block *mat.Dense) error {
	r, c := block.Dims()
	if c != w.cols {
		return fmt.Errorf("%w: block has %d columns, want %d", ErrChunkFormat, c, w.cols)
	}
	for i := 0; i < r; i++ {
		w.pending = append(w.pending, block.RawRowView(i)...)
	}
	w.rows += r

	for len(w.pending) >= w.chunkRows*w.cols {
		if err := w.flushChunk(ctx, w.chunkRows); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) flushChunk(ctx context.Context, rows int) error {
	values := w.pending[:rows*w.cols]
	encoded, err := encodeChunk(rows, w.cols, values)
	if err != nil {
		return err
	}
	sum := xxhash.Sum64(encoded)
	compressed, err := compressChunk(encoded)
	if err != nil {
		return err
	}

	idx := len(w.chunks)
	key := path.Join(w.path, "chunks", fmt.Sprintf("%06d.sc", idx))
	if err := w.store.Put(ctx, key, bytes.NewReader(compressed), int64(len(compressed))); err != nil {
		return fmt.Errorf("write chunk %d: %w", idx, err)
	}

	start := 0
	if idx > 0 {
		prev := w.chunks[idx-1]
		start = prev.StartRow + prev.Rows
	}
	w.chunks = append(w.chunks, Chunk{
		Key:             path.Join("chunks", fmt.Sprintf("%06d.sc", idx)),
		StartRow:        start,
		Rows:            rows,
		Checksum:        fmt.Sprintf("%016x", sum),
		CompressedBytes: int64(len(compressed)),
	})
	w.pending = append(w.pending[:0], w.pending[rows*w.cols:]...)

	metrics.ChunksWritten.WithLabelValues(w.storeName).Inc()
	metrics.ChunkBytes.WithLabelValues(w.storeName).Add(float64(len(compressed)))
	return nil
}

// Commit flushes the final partial chunk, writes the manifest and returns
// the re-openable Array handle.
func (w *Writer) Commit(ctx context.Context) (*Array, error) {
	if rem := len(w.pending) / w.cols; rem > 0 {
		if err := w.flushChunk(ctx, rem); err != nil {
			return nil, err
		}
	}

	manifest := &Manifest{
		FormatVersion: CurrentManifestVersion,
		BuildID:       uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
		Rows:          w.rows,
		Cols:          w.cols,
		ChunkRows:     w.chunkRows,
		Chunks:        w.chunks,
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	data, err := manifest.marshal()
	if err != nil {
		return nil, err
	}
	key := path.Join(w.path, "manifest.json")
	if err := w.store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return &Array{store: w.store, path: w.path, manifest: manifest}, nil
}
