package dmatrix

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labeledTwoRow(t *testing.T) *DMatrix {
	t.Helper()
	d := twoRowCSR(t)
	require.NoError(t, d.SetLabel([]float32{1, 0}))
	return d
}

func TestEncode_Layout(t *testing.T) {
	buf, err := Encode(labeledTwoRow(t))
	require.NoError(t, err)

	// header + rowPtr(3) + colIndex(3) + values(3) + labels(2)
	require.Len(t, buf, HeaderSize+4*(3+3+3+2))
	assert.Equal(t, []byte("GBDM"), buf[:4])

	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(buf[off:]) }
	assert.Equal(t, Version, u32(4))
	assert.Equal(t, uint32(2), u32(8))
	assert.Equal(t, uint32(3), u32(12))
	assert.Equal(t, FlagLabels, u32(16))
	assert.Equal(t, []uint32{0, 2, 3}, []uint32{u32(20), u32(24), u32(28)})
	assert.Equal(t, []uint32{0, 2, 1}, []uint32{u32(32), u32(36), u32(40)})
	assert.Equal(t, math.Float32bits(3), u32(48))
	assert.Equal(t, math.Float32bits(1), u32(56))
}

func TestRoundTrip(t *testing.T) {
	nanPayload := math.Float32frombits(0x7fc00001)
	negZero := math.Float32frombits(0x80000000)

	tests := []struct {
		name  string
		build func(t *testing.T) *DMatrix
	}{
		{"empty", func(t *testing.T) *DMatrix {
			d, err := FromCSR([]uint32{0}, nil, nil)
			require.NoError(t, err)
			return d
		}},
		{"empty with labels", func(t *testing.T) *DMatrix {
			d, err := FromCSR([]uint32{0}, nil, nil)
			require.NoError(t, err)
			require.NoError(t, d.SetLabel([]float32{}))
			return d
		}},
		{"empty rows", func(t *testing.T) *DMatrix {
			d, err := FromCSR([]uint32{0, 0, 1, 1}, []uint32{5}, []float32{2})
			require.NoError(t, err)
			return d
		}},
		{"unlabeled", twoRowCSR},
		{"labeled", labeledTwoRow},
		{"labels and weights", func(t *testing.T) *DMatrix {
			d := labeledTwoRow(t)
			require.NoError(t, d.SetWeight([]float32{0.25, 4}))
			return d
		}},
		{"special floats", func(t *testing.T) *DMatrix {
			d, err := FromCSR([]uint32{0, 3}, []uint32{0, 1, 2},
				[]float32{nanPayload, negZero, float32(math.Inf(-1))})
			require.NoError(t, err)
			require.NoError(t, d.SetLabel([]float32{nanPayload}))
			return d
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.build(t)
			buf, err := Encode(d)
			require.NoError(t, err)
			assert.Equal(t, d.EncodedSize(), int64(len(buf)))

			decoded, err := Decode(buf)
			require.NoError(t, err)
			assert.True(t, decoded.Equal(d))
			assert.Equal(t, d.HasLabels(), decoded.HasLabels())
			assert.Equal(t, d.HasWeights(), decoded.HasWeights())

			streamed, err := ReadFrom(bytes.NewReader(buf))
			require.NoError(t, err)
			assert.True(t, streamed.Equal(d))
		})
	}
}

func TestDecode_EveryStrictPrefixIsTruncated(t *testing.T) {
	d := labeledTwoRow(t)
	require.NoError(t, d.SetWeight([]float32{1, 2}))
	buf, err := Encode(d)
	require.NoError(t, err)

	for k := 0; k < len(buf); k++ {
		_, err := Decode(buf[:k])
		var truncErr *errors.TruncatedError
		require.Truef(t, errors.As(err, &truncErr), "prefix %d: got %v", k, err)
		assert.Equal(t, int64(k), truncErr.Got)

		_, err = ReadFrom(bytes.NewReader(buf[:k]))
		require.Truef(t, errors.As(err, &truncErr), "stream prefix %d: got %v", k, err)
	}
}

func TestDecode_FormatErrors(t *testing.T) {
	valid, err := Encode(labeledTwoRow(t))
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		b := append([]byte(nil), valid...)
		return f(b)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b })},
		{"bad magic prefix", []byte("GX")},
		{"unsupported version", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[4:], 2)
			return b
		})},
		{"unknown flag", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[16:], FlagLabels|1<<2)
			return b
		})},
		{"trailing byte", mutate(func(b []byte) []byte { return append(b, 0) })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decode(tt.data)
			assert.Nil(t, d)
			var fmtErr *errors.FormatError
			assert.True(t, errors.As(err, &fmtErr), "got %v", err)
		})
	}
}

func TestDecode_CorruptStructure(t *testing.T) {
	valid, err := Encode(twoRowCSR(t))
	require.NoError(t, err)

	t.Run("columns out of order", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		// colIndex[1] of row 0: 2 -> 0
		binary.LittleEndian.PutUint32(b[36:], 0)
		d, err := Decode(b)
		assert.Nil(t, d)
		var orderErr *errors.OrderError
		assert.True(t, errors.As(err, &orderErr), "got %v", err)
	})

	t.Run("row headers disagree with nnz", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(b[28:], 2)
		d, err := Decode(b)
		assert.Nil(t, d)
		var shapeErr *errors.ShapeError
		assert.True(t, errors.As(err, &shapeErr), "got %v", err)
	})

	t.Run("row headers decrease", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(b[24:], 4)
		d, err := Decode(b)
		assert.Nil(t, d)
		var orderErr *errors.OrderError
		assert.True(t, errors.As(err, &orderErr), "got %v", err)
	})
}

func TestDecode_HugeHeaderDoesNotAllocate(t *testing.T) {
	var hdr [HeaderSize]byte
	copy(hdr[:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], Version)
	binary.LittleEndian.PutUint32(hdr[8:], math.MaxUint32)
	binary.LittleEndian.PutUint32(hdr[12:], math.MaxUint32)
	binary.LittleEndian.PutUint32(hdr[16:], FlagLabels|FlagWeights)

	_, err := Decode(hdr[:])
	var truncErr *errors.TruncatedError
	require.True(t, errors.As(err, &truncErr))
	assert.Greater(t, truncErr.Expected, int64(math.MaxUint32))

	_, err = ReadFrom(bytes.NewReader(hdr[:]))
	assert.True(t, errors.As(err, &truncErr))
}

func TestReadFrom_LeavesTrailingBytes(t *testing.T) {
	buf, err := Encode(labeledTwoRow(t))
	require.NoError(t, err)

	r := bytes.NewReader(append(buf, 'z'))
	d, err := ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Rows())

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("z"), rest)
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, io.ErrShortWrite
	}
	w.after--
	return len(p), nil
}

func TestWriteTo_WriterFailure(t *testing.T) {
	_, err := labeledTwoRow(t).WriteTo(&failingWriter{after: 1})
	var ioErr *errors.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.True(t, errors.Is(err, io.ErrShortWrite))
}

func TestEncode_HeaderCountLimits(t *testing.T) {
	saved := maxHeaderCount
	t.Cleanup(func() { maxHeaderCount = saved })
	d := twoRowCSR(t)

	tests := []struct {
		name  string
		limit uint64
		what  string
		got   int
	}{
		{"rows", 1, "rows", 2},
		{"non-zero count", 2, "non-zero count", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxHeaderCount = tt.limit

			_, err := Encode(d)
			var shapeErr *errors.ShapeError
			require.True(t, errors.As(err, &shapeErr), "got %v", err)
			assert.Equal(t, tt.what, shapeErr.What)
			assert.Equal(t, int(tt.limit), shapeErr.Expected)
			assert.Equal(t, tt.got, shapeErr.Got)

			var buf bytes.Buffer
			n, err := d.WriteTo(&buf)
			require.True(t, errors.As(err, &shapeErr))
			assert.Zero(t, n)
			assert.Zero(t, buf.Len())

			path := filepath.Join(t.TempDir(), "big.buffer")
			require.True(t, errors.As(d.SaveBinary(path), &shapeErr))
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}
