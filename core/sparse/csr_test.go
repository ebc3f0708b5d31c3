package sparse

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCSR_Valid(t *testing.T) {
	m, err := FromCSR([]uint32{0, 2, 3}, []uint32{0, 2, 1}, []float32{1, 3, 2})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 3, m.NonZeroCount())
	assert.Equal(t, 3, m.NumCol())

	cols, vals := m.Row(0)
	assert.Equal(t, []uint32{0, 2}, cols)
	assert.Equal(t, []float32{1, 3}, vals)

	cols, vals = m.Row(1)
	assert.Equal(t, []uint32{1}, cols)
	assert.Equal(t, []float32{2}, vals)
}

func TestFromCSR_CopiesInputs(t *testing.T) {
	rowPtr := []uint32{0, 1}
	cols := []uint32{4}
	vals := []float32{2.5}

	m, err := FromCSR(rowPtr, cols, vals)
	require.NoError(t, err)

	cols[0] = 9
	vals[0] = -1
	gotCols, gotVals := m.Row(0)
	assert.Equal(t, uint32(4), gotCols[0])
	assert.Equal(t, float32(2.5), gotVals[0])
}

func TestFromCSR_EmptyRowsAndMatrix(t *testing.T) {
	m, err := FromCSR([]uint32{0, 0, 0}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 0, m.NonZeroCount())
	assert.Equal(t, 0, m.NumCol())

	m, err = FromCSR([]uint32{0}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rows())
	assert.True(t, m.Equal(Empty()))
}

func TestFromCSR_ShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		rowPtr []uint32
		cols   []uint32
		vals   []float32
	}{
		{"empty row headers", nil, nil, nil},
		{"column count mismatch", []uint32{0, 2}, []uint32{0}, []float32{1, 2}},
		{"value count mismatch", []uint32{0, 2}, []uint32{0, 1}, []float32{1}},
		{"last header too small", []uint32{0, 1}, []uint32{0, 1}, []float32{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCSR(tt.rowPtr, tt.cols, tt.vals)
			var shapeErr *errors.ShapeError
			require.True(t, errors.As(err, &shapeErr), "got %v", err)
		})
	}
}

func TestFromCSR_OrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		rowPtr []uint32
		cols   []uint32
		vals   []float32
	}{
		{"first header not zero", []uint32{1, 1}, []uint32{0}, []float32{1}},
		{"decreasing headers", []uint32{0, 2, 1, 2}, []uint32{0, 1}, []float32{1, 2}},
		{"duplicate column", []uint32{0, 2}, []uint32{3, 3}, []float32{1, 2}},
		{"decreasing column", []uint32{0, 1, 3}, []uint32{0, 5, 2}, []float32{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCSR(tt.rowPtr, tt.cols, tt.vals)
			var orderErr *errors.OrderError
			require.True(t, errors.As(err, &orderErr), "got %v", err)
		})
	}
}

func TestFromCSR_ColumnsMayRestartAcrossRows(t *testing.T) {
	_, err := FromCSR([]uint32{0, 2, 4}, []uint32{3, 7, 0, 1}, []float32{1, 2, 3, 4})
	assert.NoError(t, err)
}

func TestLookup(t *testing.T) {
	m, err := FromCSR([]uint32{0, 3}, []uint32{1, 4, 9}, []float32{0.5, 1.5, 2.5})
	require.NoError(t, err)

	v, ok := m.Lookup(0, 4)
	assert.True(t, ok)
	assert.Equal(t, float32(1.5), v)

	_, ok = m.Lookup(0, 5)
	assert.False(t, ok)
	_, ok = m.Lookup(0, 10)
	assert.False(t, ok)
}

func TestSelectRows(t *testing.T) {
	m, err := FromCSR([]uint32{0, 2, 3, 3}, []uint32{0, 2, 1}, []float32{1, 3, 2})
	require.NoError(t, err)

	sub, err := m.SelectRows([]int{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 3, 4}, sub.RowPtr())
	assert.Equal(t, []uint32{1, 0, 2, 1}, sub.ColIndex())
	assert.Equal(t, []float32{2, 1, 3, 2}, sub.Values())

	_, err = m.SelectRows([]int{3})
	var shapeErr *errors.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestEqual_BitExact(t *testing.T) {
	nan := math.Float32frombits(0x7fc00001)
	a, err := FromCSR([]uint32{0, 1}, []uint32{0}, []float32{nan})
	require.NoError(t, err)
	b, err := FromCSR([]uint32{0, 1}, []uint32{0}, []float32{nan})
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	negZero := float32(math.Copysign(0, -1))
	c, err := FromCSR([]uint32{0, 1}, []uint32{0}, []float32{0})
	require.NoError(t, err)
	d, err := FromCSR([]uint32{0, 1}, []uint32{0}, []float32{negZero})
	require.NoError(t, err)
	assert.False(t, c.Equal(d))
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(2, 3)
	require.NoError(t, b.Push(0, 1))
	require.NoError(t, b.Push(2, 3))
	require.NoError(t, b.EndRow())
	require.NoError(t, b.EndRow())
	require.NoError(t, b.Push(1, 2))
	require.NoError(t, b.EndRow())

	err := b.Push(1, 5)
	require.NoError(t, err, "a new row may restart columns")
	err = b.Push(1, 6)
	var orderErr *errors.OrderError
	require.True(t, errors.As(err, &orderErr))

	assert.Equal(t, 3, b.Rows())
	m := b.Build()
	assert.Equal(t, []uint32{0, 2, 2, 3}, m.RowPtr())
	assert.Equal(t, []uint32{0, 2, 1}, m.ColIndex())
	assert.Equal(t, []float32{1, 3, 2}, m.Values())
}

func TestBuilder_CountLimits(t *testing.T) {
	saved := maxCount
	maxCount = 2
	t.Cleanup(func() { maxCount = saved })

	b := NewBuilder(2, 2)
	require.NoError(t, b.Push(0, 1))
	require.NoError(t, b.Push(1, 1))
	err := b.Push(2, 1)
	var shapeErr *errors.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "non-zero count", shapeErr.What)
	assert.Equal(t, 2, shapeErr.Expected)
	assert.Equal(t, 3, shapeErr.Got)

	require.NoError(t, b.EndRow())
	require.NoError(t, b.EndRow())
	err = b.EndRow()
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "rows", shapeErr.What)
	assert.Equal(t, 3, shapeErr.Got)

	m := b.Build()
	assert.Equal(t, []uint32{0, 2, 2}, m.RowPtr())
}
