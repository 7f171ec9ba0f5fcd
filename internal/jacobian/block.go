package jacobian

import "gonum.org/v1/gonum/mat"

// Block is a model-space derivative contribution. The zero value is the
// Zero sentinel: a structurally empty block that costs nothing to add.
// Operator derivatives return Zero when a term does not depend on the
// model, and accumulation skips it outright.
type Block struct {
	data *mat.Dense
}

// Zero is the empty derivative contribution.
var Zero = Block{}

// NewBlock wraps a dense derivative block. A nil matrix is Zero.
func NewBlock(m *mat.Dense) Block {
	return Block{data: m}
}

// IsZero reports whether the block is the Zero sentinel.
func (b Block) IsZero() bool { return b.data == nil }

// Dims returns the block shape, or (0, 0) for Zero.
func (b Block) Dims() (rows, cols int) {
	if b.data == nil {
		return 0, 0
	}
	return b.data.Dims()
}

// Add returns the sum of two blocks. Adding Zero is a no-op and returns
// the other operand unchanged, without allocating.
func (b Block) Add(other Block) Block {
	if other.data == nil {
		return b
	}
	if b.data == nil {
		return other
	}
	var sum mat.Dense
	sum.Add(b.data, other.data)
	return Block{data: &sum}
}

// Neg returns the negation. Negating Zero is Zero.
func (b Block) Neg() Block {
	if b.data == nil {
		return Zero
	}
	var neg mat.Dense
	neg.Scale(-1, b.data)
	return Block{data: &neg}
}

// Dense materializes the block with the given shape. Zero materializes
// as an all-zero matrix.
func (b Block) Dense(rows, cols int) *mat.Dense {
	if b.data == nil {
		return mat.NewDense(rows, cols, nil)
	}
	return b.data
}
