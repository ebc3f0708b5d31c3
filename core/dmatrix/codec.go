package dmatrix

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/YuminosukeSato/gbdata/core/fileio"
	"github.com/YuminosukeSato/gbdata/core/sparse"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
)

// バイナリバッファの形式
//
//	magic    [4]byte "GBDM"
//	version  uint32
//	rows     uint32
//	nnz      uint32
//	flags    uint32
//	rowPtr   (rows+1) × uint32
//	colIndex nnz × uint32
//	values   nnz × float32
//	labels   rows × float32   (flags&FlagLabels)
//	weights  rows × float32   (flags&FlagWeights)
//
// すべてリトルエンディアン。
const (
	// Magic identifies a binary buffer.
	Magic = "GBDM"
	// Version is the only format version this package reads and writes.
	Version uint32 = 1

	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 20
)

// Header flags.
const (
	FlagLabels  uint32 = 1 << 0
	FlagWeights uint32 = 1 << 1

	knownFlags = FlagLabels | FlagWeights
)

// chunk is the number of 4-byte words staged per write.
const chunk = 4096

var le = binary.LittleEndian

type header struct {
	rows  uint32
	nnz   uint32
	flags uint32
}

// payloadSize returns the number of bytes following the header.
func (h header) payloadSize() int64 {
	words := int64(h.rows) + 1 + 2*int64(h.nnz)
	if h.flags&FlagLabels != 0 {
		words += int64(h.rows)
	}
	if h.flags&FlagWeights != 0 {
		words += int64(h.rows)
	}
	return 4 * words
}

// maxHeaderCount is the largest rows or nnz value a header word can hold.
var maxHeaderCount uint64 = math.MaxUint32

// header describes d, failing with ShapeError when a count does not fit
// its uint32 header word.
func (d *DMatrix) header() (header, error) {
	rows, nnz := d.Rows(), d.NonZeroCount()
	if uint64(rows) > maxHeaderCount {
		return header{}, errors.NewShapeError("WriteTo", "rows", int(maxHeaderCount), rows)
	}
	if uint64(nnz) > maxHeaderCount {
		return header{}, errors.NewShapeError("WriteTo", "non-zero count", int(maxHeaderCount), nnz)
	}
	h := header{rows: uint32(rows), nnz: uint32(nnz)}
	if d.HasLabels() {
		h.flags |= FlagLabels
	}
	if d.HasWeights() {
		h.flags |= FlagWeights
	}
	return h, nil
}

// EncodedSize returns the exact length of the encoding of d.
func (d *DMatrix) EncodedSize() int64 {
	rows := int64(d.Rows())
	words := rows + 1 + 2*int64(d.NonZeroCount())
	if d.HasLabels() {
		words += rows
	}
	if d.HasWeights() {
		words += rows
	}
	return HeaderSize + 4*words
}

// Encode returns the binary buffer for d.
func Encode(d *DMatrix) ([]byte, error) {
	if _, err := d.header(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(int(d.EncodedSize()))
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams the binary buffer for d to w.
func (d *DMatrix) WriteTo(w io.Writer) (int64, error) {
	h, err := d.header()
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}

	var hdr [HeaderSize]byte
	copy(hdr[0:4], Magic)
	le.PutUint32(hdr[4:8], Version)
	le.PutUint32(hdr[8:12], h.rows)
	le.PutUint32(hdr[12:16], h.nnz)
	le.PutUint32(hdr[16:20], h.flags)
	if _, err := cw.Write(hdr[:]); err != nil {
		return cw.n, errors.NewIOError("WriteTo", "", err)
	}

	scratch := make([]byte, 4*chunk)
	writeU32 := func(src []uint32) error {
		for len(src) > 0 {
			n := min(len(src), chunk)
			for i, v := range src[:n] {
				le.PutUint32(scratch[4*i:], v)
			}
			if _, err := cw.Write(scratch[:4*n]); err != nil {
				return err
			}
			src = src[n:]
		}
		return nil
	}
	writeF32 := func(src []float32) error {
		for len(src) > 0 {
			n := min(len(src), chunk)
			for i, v := range src[:n] {
				le.PutUint32(scratch[4*i:], math.Float32bits(v))
			}
			if _, err := cw.Write(scratch[:4*n]); err != nil {
				return err
			}
			src = src[n:]
		}
		return nil
	}

	steps := []func() error{
		func() error { return writeU32(d.store.RowPtr()) },
		func() error { return writeU32(d.store.ColIndex()) },
		func() error { return writeF32(d.store.Values()) },
	}
	if d.HasLabels() {
		steps = append(steps, func() error { return writeF32(d.labels) })
	}
	if d.HasWeights() {
		steps = append(steps, func() error { return writeF32(d.weights) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return cw.n, errors.NewIOError("WriteTo", "", err)
		}
	}
	return cw.n, nil
}

// Decode parses a binary buffer. It never returns a partially populated
// matrix.
//
// Errors:
//   - FormatError for a bad magic, an unsupported version, unknown flag
//     bits, or bytes after the declared payload
//   - TruncatedError if data ends before the declared payload
//   - ShapeError / OrderError if the decoded arrays are not a valid CSR
func Decode(data []byte) (*DMatrix, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	declared := HeaderSize + h.payloadSize()
	got := int64(len(data))
	switch {
	case got < declared:
		return nil, errors.NewTruncatedError("Decode", declared, got)
	case got > declared:
		return nil, errors.NewFormatErrorf("Decode", 0, 0,
			"%d trailing bytes after declared payload of %d bytes", got-declared, declared)
	}

	return decodePayload(h, data[HeaderSize:])
}

// ReadFrom reads exactly one binary buffer from r. Bytes after the
// declared payload are left unread.
func ReadFrom(r io.Reader) (*DMatrix, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// 読めた分でマジック/バージョンを先に検査する
		_, herr := decodeHeader(hdr[:n])
		return nil, herr
	}
	if err != nil {
		return nil, errors.NewIOError("ReadFrom", "", err)
	}
	h, err := decodeHeader(hdr[:])
	if err != nil {
		return nil, err
	}

	// 宣言長を一度に確保せず、届いた分だけバッファを伸ばす
	want := h.payloadSize()
	var payload bytes.Buffer
	copied, err := io.CopyN(&payload, r, want)
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewTruncatedError("ReadFrom", HeaderSize+want, HeaderSize+copied)
		}
		return nil, errors.NewIOError("ReadFrom", "", err)
	}
	return decodePayload(h, payload.Bytes())
}

// decodeHeader validates the fixed header. A strict prefix of a valid
// header yields TruncatedError; any bytes that are present are checked
// first so that garbage is reported as FormatError.
func decodeHeader(data []byte) (header, error) {
	n := min(len(data), len(Magic))
	if !bytes.Equal(data[:n], []byte(Magic)[:n]) {
		return header{}, errors.NewFormatErrorf("Decode", 0, 0, "bad magic %q", data[:n])
	}
	if len(data) >= 8 {
		if v := le.Uint32(data[4:8]); v != Version {
			return header{}, errors.NewFormatErrorf("Decode", 0, 0,
				"unsupported version %d (want %d)", v, Version)
		}
	}
	if len(data) < HeaderSize {
		return header{}, errors.NewTruncatedError("Decode", HeaderSize, int64(len(data)))
	}

	h := header{
		rows:  le.Uint32(data[8:12]),
		nnz:   le.Uint32(data[12:16]),
		flags: le.Uint32(data[16:20]),
	}
	if unknown := h.flags &^ knownFlags; unknown != 0 {
		return header{}, errors.NewFormatErrorf("Decode", 0, 0, "unknown flag bits %#x", unknown)
	}
	return h, nil
}

// decodePayload expects exactly h.payloadSize() bytes.
func decodePayload(h header, p []byte) (*DMatrix, error) {
	off := 0
	readU32 := func(n int) []uint32 {
		out := make([]uint32, n)
		for i := range out {
			out[i] = le.Uint32(p[off:])
			off += 4
		}
		return out
	}
	readF32 := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(p[off:]))
			off += 4
		}
		return out
	}

	rows, nnz := int(h.rows), int(h.nnz)
	rowPtr := readU32(rows + 1)
	colIndex := readU32(nnz)
	values := readF32(nnz)
	if err := sparse.Validate("Decode", rowPtr, colIndex, values); err != nil {
		return nil, err
	}

	d := FromStore(sparse.FromValidated(rowPtr, colIndex, values))
	if h.flags&FlagLabels != 0 {
		d.labels = readF32(rows)
	}
	if h.flags&FlagWeights != 0 {
		d.weights = readF32(rows)
	}
	return d, nil
}

// Save writes d to path atomically. A ".gz", ".zst" or ".lz4" suffix
// selects compression.
func Save(d *DMatrix, path string) error {
	var written int64
	err := fileio.WriteAtomic("SaveBinary", path, func(w io.Writer) error {
		n, err := d.WriteTo(w)
		written = n
		if err != nil {
			var ioErr *errors.IOError
			if errors.As(err, &ioErr) {
				ioErr.Op, ioErr.Path = "SaveBinary", path
			}
		}
		return err
	})
	if err != nil {
		return err
	}

	log.GetLogger().Debug("saved binary buffer", append(d.logFields(),
		log.ComponentKey, "dmatrix",
		log.OperationKey, log.OperationSave,
		log.PathKey, path,
		log.BytesKey, written,
		log.CompressionKey, fileio.DetectCompression(path).String(),
	)...)
	return nil
}

// Load reads a matrix written by Save.
func Load(path string) (*DMatrix, error) {
	data, err := fileio.ReadAll("FromBinary", path)
	if err != nil {
		return nil, err
	}
	d, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}

	log.GetLogger().Debug("loaded binary buffer", append(d.logFields(),
		log.ComponentKey, "dmatrix",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.BytesKey, len(data),
	)...)
	return d, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
