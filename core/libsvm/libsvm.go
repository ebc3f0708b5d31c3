// Package libsvm parses the line-oriented sparse text format
//
//	<label> <index>:<value> <index>:<value> ...
//
// one row per line. Column indices are 0-based and stored exactly as
// written; they must be strictly increasing within a line. Labels and
// values are parsed as float32. Tokens are separated by ASCII whitespace,
// so CRLF line endings are accepted.
package libsvm

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/YuminosukeSato/gbdata/core/fileio"
	"github.com/YuminosukeSato/gbdata/core/sparse"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
)

const maxLineBytes = 64 * 1024 * 1024

// ParseFile parses the file at path. Paths ending in .gz, .zst or .lz4 are
// decompressed on the fly. The file is closed on every return path.
func ParseFile(path string) (m *sparse.CSR, labels []float32, err error) {
	rc, err := fileio.Open("libsvm.ParseFile", path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			m, labels = nil, nil
			err = errors.NewIOError("libsvm.ParseFile", path, cerr)
		}
	}()

	m, labels, err = Parse(rc)
	if err != nil {
		var ioErr *errors.IOError
		if errors.As(err, &ioErr) && ioErr.Path == "" {
			ioErr.Path = path
		}
		return nil, nil, err
	}

	log.GetLogger().Debug("parsed libsvm text",
		log.ComponentKey, "libsvm",
		log.OperationKey, log.OperationParse,
		log.PathKey, path,
		log.RowsKey, m.Rows(),
		log.NNZKey, m.NonZeroCount(),
	)
	return m, labels, nil
}

// Parse reads every line from r. It fails with FormatError on the first
// malformed line and with IOError if r fails.
func Parse(r io.Reader) (*sparse.CSR, []float32, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	b := sparse.NewBuilder(1024, 16*1024)
	labels := make([]float32, 0, 1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		label, err := parseLine(b, scanner.Bytes(), lineNo)
		if err != nil {
			return nil, nil, err
		}
		labels = append(labels, label)
		if err := b.EndRow(); err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, nil, errors.NewFormatErrorf("libsvm.Parse", lineNo+1, 0, "line longer than %d bytes", maxLineBytes)
		}
		return nil, nil, errors.NewIOError("libsvm.Parse", "", err)
	}
	return b.Build(), labels, nil
}

// parseLine pushes one row's entries into b and returns its label.
func parseLine(b *sparse.Builder, line []byte, lineNo int) (float32, error) {
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return 0, errors.NewFormatError("libsvm.Parse", lineNo, 0, "missing label")
	}

	label, err := strconv.ParseFloat(string(fields[0]), 32)
	if err != nil {
		return 0, errors.NewFormatErrorf("libsvm.Parse", lineNo, 1, "invalid label %q", fields[0])
	}

	for i, tok := range fields[1:] {
		column := i + 2
		sep := bytes.IndexByte(tok, ':')
		if sep <= 0 || sep == len(tok)-1 {
			return 0, errors.NewFormatErrorf("libsvm.Parse", lineNo, column, "expected index:value, got %q", tok)
		}
		idx, err := strconv.ParseUint(string(tok[:sep]), 10, 32)
		if err != nil {
			return 0, errors.NewFormatErrorf("libsvm.Parse", lineNo, column, "invalid index %q", tok[:sep])
		}
		val, err := strconv.ParseFloat(string(tok[sep+1:]), 32)
		if err != nil {
			return 0, errors.NewFormatErrorf("libsvm.Parse", lineNo, column, "invalid value %q", tok[sep+1:])
		}
		if err := b.Push(uint32(idx), float32(val)); err != nil {
			var orderErr *errors.OrderError
			if errors.As(err, &orderErr) {
				return 0, errors.NewFormatErrorf("libsvm.Parse", lineNo, column,
					"index %d does not increase (%s)", idx, orderErr.Reason)
			}
			return 0, errors.Wrapf(err, "line %d", lineNo)
		}
	}
	return float32(label), nil
}
