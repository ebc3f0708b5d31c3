// Package sparse provides the compressed sparse row (CSR) store that backs
// every data matrix.
//
// A row is an ordered sequence of (column, value) pairs with strictly
// increasing columns. The store keeps the classic CSR triplet:
//
//	rowPtr   rows+1 cumulative non-zero counts, rowPtr[0] == 0
//	colIndex nnz column indices
//	values   nnz float32 values
//
// Row r occupies colIndex[rowPtr[r]:rowPtr[r+1]]. A CSR is immutable after
// construction; all constructors copy their inputs.
package sparse

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
)

// CSR is an immutable compressed sparse row matrix.
type CSR struct {
	rowPtr   []uint32
	colIndex []uint32
	values   []float32
}

// Empty returns a store with zero rows.
func Empty() *CSR {
	return &CSR{rowPtr: []uint32{0}}
}

// FromCSR builds a store from CSR triplets after validating them eagerly.
//
// Errors:
//   - ShapeError if rowPtr is empty or rowPtr's last element, len(colIndex)
//     and len(data) disagree
//   - OrderError if rowPtr does not start at 0, decreases, or a row's
//     column slice is not strictly increasing
func FromCSR(rowPtr, colIndex []uint32, data []float32) (*CSR, error) {
	if err := Validate("FromCSR", rowPtr, colIndex, data); err != nil {
		return nil, err
	}
	return &CSR{
		rowPtr:   append([]uint32(nil), rowPtr...),
		colIndex: append([]uint32(nil), colIndex...),
		values:   append([]float32(nil), data...),
	}, nil
}

// FromValidated takes ownership of slices that have passed Validate.
// Callers must not retain or mutate them afterwards.
func FromValidated(rowPtr, colIndex []uint32, data []float32) *CSR {
	return &CSR{rowPtr: rowPtr, colIndex: colIndex, values: data}
}

// Validate checks the CSR invariants without copying. op names the caller
// in returned errors.
func Validate(op string, rowPtr, colIndex []uint32, data []float32) error {
	if len(rowPtr) == 0 {
		return errors.NewShapeError(op, "row headers", 1, 0)
	}
	if rowPtr[0] != 0 {
		return errors.NewOrderError(op, "row headers", 0, fmt.Sprintf("first header is %d, must be 0", rowPtr[0]))
	}
	last := int(rowPtr[len(rowPtr)-1])
	if len(colIndex) != last {
		return errors.NewShapeError(op, "column index", last, len(colIndex))
	}
	if len(data) != last {
		return errors.NewShapeError(op, "values", last, len(data))
	}

	for r := 1; r < len(rowPtr); r++ {
		if rowPtr[r] < rowPtr[r-1] {
			return errors.NewOrderError(op, "row headers", r,
				fmt.Sprintf("%d follows %d", rowPtr[r], rowPtr[r-1]))
		}
	}
	for r := 0; r+1 < len(rowPtr); r++ {
		for k := rowPtr[r] + 1; k < rowPtr[r+1]; k++ {
			if colIndex[k] <= colIndex[k-1] {
				return errors.NewOrderError(op, "column index", int(k),
					fmt.Sprintf("row %d: column %d follows %d", r, colIndex[k], colIndex[k-1]))
			}
		}
	}
	return nil
}

// Rows returns the number of rows.
func (m *CSR) Rows() int {
	return len(m.rowPtr) - 1
}

// NonZeroCount returns the number of stored entries.
func (m *CSR) NonZeroCount() int {
	return len(m.colIndex)
}

// NumCol returns max column index + 1, or 0 when nothing is stored.
func (m *CSR) NumCol() int {
	maxCol := -1
	for _, c := range m.colIndex {
		if int(c) > maxCol {
			maxCol = int(c)
		}
	}
	return maxCol + 1
}

// Row returns read-only views of row i's columns and values.
// It panics if i is out of range, like a slice index.
func (m *CSR) Row(i int) ([]uint32, []float32) {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	return m.colIndex[lo:hi:hi], m.values[lo:hi:hi]
}

// Lookup returns the value stored at (row, col) and whether it is present.
func (m *CSR) Lookup(row int, col uint32) (float32, bool) {
	cols, vals := m.Row(row)
	lo, hi := 0, len(cols)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cols[mid] < col {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(cols) && cols[lo] == col {
		return vals[lo], true
	}
	return 0, false
}

// RowPtr returns a read-only view of the row headers.
func (m *CSR) RowPtr() []uint32 { return m.rowPtr[:len(m.rowPtr):len(m.rowPtr)] }

// ColIndex returns a read-only view of the column indices.
func (m *CSR) ColIndex() []uint32 { return m.colIndex[:len(m.colIndex):len(m.colIndex)] }

// Values returns a read-only view of the values.
func (m *CSR) Values() []float32 { return m.values[:len(m.values):len(m.values)] }

// Triplets returns copies of the CSR arrays.
func (m *CSR) Triplets() (rowPtr, colIndex []uint32, data []float32) {
	return append([]uint32(nil), m.rowPtr...),
		append([]uint32(nil), m.colIndex...),
		append([]float32(nil), m.values...)
}

// SelectRows returns a new store holding the given rows in the given order.
// Indices may repeat.
func (m *CSR) SelectRows(rows []int) (*CSR, error) {
	nnz := 0
	for _, r := range rows {
		if r < 0 || r >= m.Rows() {
			return nil, errors.NewShapeError("SelectRows", fmt.Sprintf("row index %d", r), m.Rows(), r)
		}
		nnz += int(m.rowPtr[r+1] - m.rowPtr[r])
	}

	rowPtr := make([]uint32, 1, len(rows)+1)
	colIndex := make([]uint32, 0, nnz)
	values := make([]float32, 0, nnz)
	for _, r := range rows {
		cols, vals := m.Row(r)
		colIndex = append(colIndex, cols...)
		values = append(values, vals...)
		rowPtr = append(rowPtr, uint32(len(colIndex)))
	}
	return FromValidated(rowPtr, colIndex, values), nil
}

// Equal reports bit-exact equality of structure and values.
// NaN values compare equal when their bit patterns match.
func (m *CSR) Equal(other *CSR) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.rowPtr) != len(other.rowPtr) || len(m.colIndex) != len(other.colIndex) {
		return false
	}
	for i := range m.rowPtr {
		if m.rowPtr[i] != other.rowPtr[i] {
			return false
		}
	}
	for i := range m.colIndex {
		if m.colIndex[i] != other.colIndex[i] {
			return false
		}
	}
	return Float32sBitEqual(m.values, other.values)
}

// Float32sBitEqual compares two slices by IEEE-754 bit pattern.
func Float32sBitEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}
