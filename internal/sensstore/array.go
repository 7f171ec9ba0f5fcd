package sensstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/petroseis/pgi/pkg/objectstore"
)

// Array is a lazy handle on a persisted sensitivity matrix. Chunks are
// fetched and decompressed on demand, so matrix products run without the
// full matrix in memory.
type Array struct {
	store    objectstore.Store
	path     string
	manifest *Manifest
	cache    *ChunkCache
}

// Open loads the manifest at path and validates its chunk coverage.
func Open(ctx context.Context, store objectstore.Store, arrayPath string) (*Array, error) {
	rc, err := store.Get(ctx, path.Join(arrayPath, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("open sensitivity manifest: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read sensitivity manifest: %w", err)
	}
	manifest, err := parseManifest(data)
	if err != nil {
		return nil, err
	}
	return &Array{store: store, path: arrayPath, manifest: manifest}, nil
}

// WithCache attaches a chunk cache and returns the array. Keys include the
// build identifier, so a cache shared across arrays never serves rows from
// an overwritten build.
func (a *Array) WithCache(c *ChunkCache) *Array {
	a.cache = c
	return a
}

// Dims returns the full matrix shape.
func (a *Array) Dims() (rows, cols int) {
	return a.manifest.Rows, a.manifest.Cols
}

// BuildID reports the identifier assigned when the array was written.
func (a *Array) BuildID() string { return a.manifest.BuildID }

// NumChunks reports how many row chunks back the array.
func (a *Array) NumChunks() int { return len(a.manifest.Chunks) }

// ReadChunk fetches chunk i, verifies its checksum and returns the
// decoded rows.
func (a *Array) ReadChunk(ctx context.Context, i int) (startRow, rows int, values []float64, err error) {
	if i < 0 || i >= len(a.manifest.Chunks) {
		return 0, 0, nil, fmt.Errorf("%w: chunk %d of %d", ErrChunkFormat, i, len(a.manifest.Chunks))
	}
	meta := a.manifest.Chunks[i]

	cacheKey := a.manifest.BuildID + "/" + meta.Key
	if a.cache != nil {
		if values, ok := a.cache.get(cacheKey); ok {
			return meta.StartRow, meta.Rows, values, nil
		}
	}

	rc, err := a.store.Get(ctx, path.Join(a.path, meta.Key))
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read chunk %q: %w", meta.Key, err)
	}
	defer rc.Close()

	compressed, err := io.ReadAll(rc)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read chunk %q: %w", meta.Key, err)
	}
	encoded, err := decompressChunk(compressed)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("chunk %q: %w", meta.Key, err)
	}

	want, err := strconv.ParseUint(meta.Checksum, 16, 64)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: chunk %q has malformed checksum %q", ErrManifestFormat, meta.Key, meta.Checksum)
	}
	if got := xxhash.Sum64(encoded); got != want {
		return 0, 0, nil, fmt.Errorf("%w: chunk %q expected %016x got %016x", ErrChecksum, meta.Key, want, got)
	}

	gotRows, gotCols, values, err := decodeChunk(encoded)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("chunk %q: %w", meta.Key, err)
	}
	if gotRows != meta.Rows || gotCols != a.manifest.Cols {
		return 0, 0, nil, fmt.Errorf("%w: chunk %q is %dx%d, manifest says %dx%d",
			ErrChunkFormat, meta.Key, gotRows, gotCols, meta.Rows, a.manifest.Cols)
	}
	if a.cache != nil {
		a.cache.put(cacheKey, values)
	}
	return meta.StartRow, meta.Rows, values, nil
}

// MulVec computes J·v one chunk at a time. v must have Cols entries and
// the result has Rows entries.
func (a *Array) MulVec(ctx context.Context, v []float64) ([]float64, error) {
	if len(v) != a.manifest.Cols {
		return nil, fmt.Errorf("%w: vector length %d, want %d", ErrChunkFormat, len(v), a.manifest.Cols)
	}
	out := make([]float64, a.manifest.Rows)
	cols := a.manifest.Cols
	for i := range a.manifest.Chunks {
		start, rows, values, err := a.ReadChunk(ctx, i)
		if err != nil {
			return nil, err
		}
		for r := 0; r < rows; r++ {
			row := values[r*cols : (r+1)*cols]
			var sum float64
			for c, x := range row {
				sum += x * v[c]
			}
			out[start+r] = sum
		}
	}
	return out, nil
}

// MulVecT computes Jᵀ·v one chunk at a time. v must have Rows entries
// and the result has Cols entries.
func (a *Array) MulVecT(ctx context.Context, v []float64) ([]float64, error) {
	if len(v) != a.manifest.Rows {
		return nil, fmt.Errorf("%w: vector length %d, want %d", ErrChunkFormat, len(v), a.manifest.Rows)
	}
	cols := a.manifest.Cols
	out := make([]float64, cols)
	for i := range a.manifest.Chunks {
		start, rows, values, err := a.ReadChunk(ctx, i)
		if err != nil {
			return nil, err
		}
		for r := 0; r < rows; r++ {
			w := v[start+r]
			if w == 0 {
				continue
			}
			row := values[r*cols : (r+1)*cols]
			for c, x := range row {
				out[c] += w * x
			}
		}
	}
	return out, nil
}

// SquaredColumnSums computes diag(JᵀWᵀWJ) where W is a diagonal row
// weighting. A nil weights slice means the identity.
func (a *Array) SquaredColumnSums(ctx context.Context, weights []float64) ([]float64, error) {
	if weights != nil && len(weights) != a.manifest.Rows {
		return nil, fmt.Errorf("%w: weight length %d, want %d", ErrChunkFormat, len(weights), a.manifest.Rows)
	}
	cols := a.manifest.Cols
	out := make([]float64, cols)
	for i := range a.manifest.Chunks {
		start, rows, values, err := a.ReadChunk(ctx, i)
		if err != nil {
			return nil, err
		}
		for r := 0; r < rows; r++ {
			w := 1.0
			if weights != nil {
				w = weights[start+r]
			}
			w2 := w * w
			if w2 == 0 {
				continue
			}
			row := values[r*cols : (r+1)*cols]
			for c, x := range row {
				out[c] += w2 * x * x
			}
		}
	}
	return out, nil
}
