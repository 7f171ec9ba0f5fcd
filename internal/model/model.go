// Package model addresses pieces of a combined inversion model vector:
// named wire blocks, active-cell masks and parameter-space maps.
package model

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

var (
	// ErrUnknownWire is returned when a named block does not exist.
	ErrUnknownWire = errors.New("unknown wire")

	// ErrWireShape is returned when a vector does not match the combined
	// wire length.
	ErrWireShape = errors.New("model length does not match wires")

	// ErrMaskShape is returned when a vector does not match the mask's
	// cell count.
	ErrMaskShape = errors.New("vector length does not match mask")
)

// Wire is one named, contiguous block of the combined model vector.
type Wire struct {
	Name string
	Size int
}

type span struct {
	off  int
	size int
}

// Wires splits a combined model vector into ordered named blocks. Block
// offsets follow declaration order.
type Wires struct {
	wires []Wire
	spans map[string]span
	total int
}

// NewWires validates the block list and computes offsets.
func NewWires(wires ...Wire) (*Wires, error) {
	w := &Wires{spans: make(map[string]span, len(wires))}
	for _, wire := range wires {
		if wire.Name == "" || wire.Size <= 0 {
			return nil, fmt.Errorf("%w: block %q has size %d", ErrUnknownWire, wire.Name, wire.Size)
		}
		if _, dup := w.spans[wire.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate block %q", ErrUnknownWire, wire.Name)
		}
		w.spans[wire.Name] = span{off: w.total, size: wire.Size}
		w.wires = append(w.wires, wire)
		w.total += wire.Size
	}
	return w, nil
}

// Len is the combined model vector length.
func (w *Wires) Len() int { return w.total }

// Names returns block names in declaration order.
func (w *Wires) Names() []string {
	names := make([]string, len(w.wires))
	for i, wire := range w.wires {
		names[i] = wire.Name
	}
	return names
}

// Count is the number of blocks.
func (w *Wires) Count() int { return len(w.wires) }

// Size returns the length of a named block.
func (w *Wires) Size(name string) (int, error) {
	s, ok := w.spans[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWire, name)
	}
	return s.size, nil
}

// Extract returns the named block of m as a subslice view, not a copy.
func (w *Wires) Extract(name string, m []float64) ([]float64, error) {
	if len(m) != w.total {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWireShape, len(m), w.total)
	}
	s, ok := w.spans[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWire, name)
	}
	return m[s.off : s.off+s.size], nil
}

// Features returns the per-sample feature matrix view of m: one row per
// position shared by equally sized blocks, one column per block. All
// blocks must have the same size.
func (w *Wires) Features(m []float64) ([][]float64, error) {
	if len(w.wires) == 0 {
		return nil, ErrWireShape
	}
	size := w.wires[0].Size
	for _, wire := range w.wires {
		if wire.Size != size {
			return nil, fmt.Errorf("%w: block %q has size %d, want %d", ErrWireShape, wire.Name, wire.Size, size)
		}
	}
	if len(m) != w.total {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWireShape, len(m), w.total)
	}
	rows := make([][]float64, size)
	for i := range rows {
		row := make([]float64, len(w.wires))
		for j := range w.wires {
			row[j] = m[j*size+i]
		}
		rows[i] = row
	}
	return rows, nil
}

// ActiveCells masks the subset of mesh cells carrying model parameters.
type ActiveCells struct {
	cells int
	mask  *roaring.Bitmap
}

// NewActiveCells builds a mask over cells total cells with the given
// active indices.
func NewActiveCells(cells int, active []int) (*ActiveCells, error) {
	mask := roaring.New()
	for _, idx := range active {
		if idx < 0 || idx >= cells {
			return nil, fmt.Errorf("%w: index %d of %d cells", ErrMaskShape, idx, cells)
		}
		mask.Add(uint32(idx))
	}
	return &ActiveCells{cells: cells, mask: mask}, nil
}

// AllActive builds a mask with every cell active.
func AllActive(cells int) *ActiveCells {
	mask := roaring.New()
	mask.AddRange(0, uint64(cells))
	return &ActiveCells{cells: cells, mask: mask}
}

// Cells is the total cell count, NumActive the active subset size.
func (a *ActiveCells) Cells() int     { return a.cells }
func (a *ActiveCells) NumActive() int { return int(a.mask.GetCardinality()) }

// IsActive reports whether cell i carries a model parameter.
func (a *ActiveCells) IsActive(i int) bool {
	return i >= 0 && i < a.cells && a.mask.Contains(uint32(i))
}

// Apply subsets a full-mesh vector (cell volumes, weights) down to the
// active cells, in ascending cell order.
func (a *ActiveCells) Apply(v []float64) ([]float64, error) {
	if len(v) != a.cells {
		return nil, fmt.Errorf("%w: got %d, want %d cells", ErrMaskShape, len(v), a.cells)
	}
	out := make([]float64, 0, a.NumActive())
	it := a.mask.Iterator()
	for it.HasNext() {
		out = append(out, v[it.Next()])
	}
	return out, nil
}

// Expand scatters an active-cell vector back onto the full mesh, filling
// inactive cells with fill.
func (a *ActiveCells) Expand(v []float64, fill float64) ([]float64, error) {
	if len(v) != a.NumActive() {
		return nil, fmt.Errorf("%w: got %d, want %d active cells", ErrMaskShape, len(v), a.NumActive())
	}
	out := make([]float64, a.cells)
	for i := range out {
		out[i] = fill
	}
	it := a.mask.Iterator()
	for i := 0; it.HasNext(); i++ {
		out[it.Next()] = v[i]
	}
	return out, nil
}
