package fileio

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCompression(t *testing.T) {
	tests := map[string]Compression{
		"train.txt":        None,
		"dtest.buffer":     None,
		"train.txt.gz":     Gzip,
		"dtest.buffer.zst": Zstd,
		"dtest.buffer.LZ4": LZ4,
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectCompression(path), path)
	}
}

func TestWriteAtomicRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("1 0:1.0 2:3.0\n0 1:2.0\n"), 100)

	for _, name := range []string{"plain.txt", "data.gz", "data.zst", "data.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			err := WriteAtomic("test", path, func(w io.Writer) error {
				_, err := w.Write(payload)
				return err
			})
			require.NoError(t, err)

			got, err := ReadAll("test", path)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			if DetectCompression(path) != None {
				raw, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.NotEqual(t, payload, raw)
			}
		})
	}
}

func TestWriteAtomicFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dtest.buffer")
	boom := errors.New("encode failed")

	err := WriteAtomic("test", path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file must be removed")
}

func TestWriteAtomicFailureKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := WriteAtomic("test", path, func(w io.Writer) error {
		return errors.New("encode failed")
	})
	require.Error(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("previous"), got)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("FromText", filepath.Join(t.TempDir(), "missing.txt"))

	var ioErr *errors.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "FromText", ioErr.Op)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWriteAtomicMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "x.bin")
	err := WriteAtomic("SaveBinary", path, func(w io.Writer) error { return nil })

	var ioErr *errors.IOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestReadAllCorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip at all"), 0o644))

	_, err := ReadAll("test", path)
	var ioErr *errors.IOError
	assert.True(t, errors.As(err, &ioErr))
}
