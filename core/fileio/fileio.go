// Package fileio opens and writes data files with scoped handles.
//
// Compression is chosen from the path suffix (".gz", ".zst", ".lz4");
// anything else is read and written as-is. Writes go to a temporary file
// in the destination directory and are renamed into place only after the
// payload, the compressor and the file have all been flushed and closed,
// so a failed write never leaves a partial file at the target path.
package fileio

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies a stream codec.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

const bufferSize = 256 * 1024

// DetectCompression maps a path suffix to a codec.
func DetectCompression(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

type readCloser struct {
	io.Reader
	closers []func() error
}

// Close releases the decompressor and the file, reporting the first error.
func (rc *readCloser) Close() error {
	var first error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if err := rc.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading, decompressing according to its suffix.
// op names the caller in returned errors. The caller must Close the result.
func Open(op, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(op, path, err)
	}
	rc := &readCloser{closers: []func() error{f.Close}}
	buffered := bufio.NewReaderSize(f, bufferSize)

	switch DetectCompression(path) {
	case Gzip:
		zr, err := gzip.NewReader(buffered)
		if err != nil {
			_ = f.Close()
			return nil, errors.NewIOError(op, path, err)
		}
		rc.Reader = zr
		rc.closers = append(rc.closers, zr.Close)
	case Zstd:
		zr, err := zstd.NewReader(buffered)
		if err != nil {
			_ = f.Close()
			return nil, errors.NewIOError(op, path, err)
		}
		rc.Reader = zr
		rc.closers = append(rc.closers, func() error { zr.Close(); return nil })
	case LZ4:
		rc.Reader = lz4.NewReader(buffered)
	default:
		rc.Reader = buffered
	}
	return rc, nil
}

// ReadAll reads and decompresses the whole file.
func ReadAll(op, path string) (data []byte, err error) {
	rc, err := Open(op, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = errors.NewIOError(op, path, cerr)
		}
	}()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, errors.NewIOError(op, path, err)
	}
	return data, nil
}

// WriteAtomic streams writeFunc's output to path through the codec chosen
// by the suffix. Errors returned by writeFunc are passed through unchanged;
// filesystem and codec failures become IOError.
func WriteAtomic(op, path string, writeFunc func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return errors.NewIOError(op, path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()
	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, bufferSize)
	w, finish, err := compressor(DetectCompression(path), buf)
	if err != nil {
		return errors.NewIOError(op, path, err)
	}
	if err := writeFunc(w); err != nil {
		return err
	}
	if err := finish(); err != nil {
		return errors.NewIOError(op, path, err)
	}
	if err := buf.Flush(); err != nil {
		return errors.NewIOError(op, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return errors.NewIOError(op, path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError(op, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.NewIOError(op, path, err)
	}
	tmpName = ""

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// compressor wraps w; finish flushes and closes the codec (not w).
func compressor(c Compression, w io.Writer) (io.Writer, func() error, error) {
	switch c {
	case Gzip:
		zw := gzip.NewWriter(w)
		return zw, zw.Close, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, nil, err
		}
		return zw, zw.Close, nil
	case LZ4:
		zw := lz4.NewWriter(w)
		return zw, zw.Close, nil
	default:
		return w, func() error { return nil }, nil
	}
}
