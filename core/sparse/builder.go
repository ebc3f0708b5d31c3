package sparse

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
)

// maxCount is the largest row or entry count a uint32 row header can hold.
var maxCount uint64 = math.MaxUint32

// Builder accumulates rows in order and produces a CSR.
// The zero value is not usable; call NewBuilder.
type Builder struct {
	rowPtr   []uint32
	colIndex []uint32
	values   []float32
	open     bool
}

// NewBuilder returns a Builder with capacity hints for rows and non-zeros.
func NewBuilder(rowsHint, nnzHint int) *Builder {
	return &Builder{
		rowPtr:   make([]uint32, 1, rowsHint+1),
		colIndex: make([]uint32, 0, nnzHint),
		values:   make([]float32, 0, nnzHint),
	}
}

// Push appends one entry to the current row, opening a row if needed.
// Columns must be strictly increasing within the row (OrderError), and the
// total entry count must fit in uint32 (ShapeError).
func (b *Builder) Push(col uint32, value float32) error {
	if uint64(len(b.colIndex)) >= maxCount {
		return errors.NewShapeError("Builder.Push", "non-zero count", int(maxCount), len(b.colIndex)+1)
	}
	if b.open {
		prev := b.colIndex[len(b.colIndex)-1]
		if col <= prev {
			return errors.NewOrderError("Builder.Push", "column index", len(b.colIndex),
				fmt.Sprintf("row %d: column %d follows %d", len(b.rowPtr)-1, col, prev))
		}
	}
	b.open = true
	b.colIndex = append(b.colIndex, col)
	b.values = append(b.values, value)
	return nil
}

// EndRow closes the current row. Calling it without Push appends an empty
// row. It fails with ShapeError once the row count would exceed uint32.
func (b *Builder) EndRow() error {
	if uint64(b.Rows()) >= maxCount {
		return errors.NewShapeError("Builder.EndRow", "rows", int(maxCount), b.Rows()+1)
	}
	b.rowPtr = append(b.rowPtr, uint32(len(b.colIndex)))
	b.open = false
	return nil
}

// Rows returns the number of closed rows.
func (b *Builder) Rows() int {
	return len(b.rowPtr) - 1
}

// Build returns the accumulated store. Entries pushed after the last
// EndRow are discarded. The Builder must not be used afterwards.
func (b *Builder) Build() *CSR {
	nnz := b.rowPtr[len(b.rowPtr)-1]
	m := FromValidated(b.rowPtr, b.colIndex[:nnz], b.values[:nnz])
	b.rowPtr, b.colIndex, b.values = nil, nil, nil
	return m
}
