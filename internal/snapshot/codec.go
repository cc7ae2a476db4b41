package snapshot

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

// CompressedExt marks snapshot files stored as LZ4-framed NDJSON.
const CompressedExt = ".lz4"

// maxLineBytes bounds a single NDJSON record.
const maxLineBytes = 4 << 20

// ErrDecode is returned when a persisted snapshot cannot be read back.
var ErrDecode = errors.New("decode snapshot")

// Encode writes the snapshot as NDJSON, one interval per line, in sorted order.
func Encode(w io.Writer, s *Snapshot) error {
	bw := bufio.NewWriter(w)

	for _, iv := range s.Intervals() {
		line, err := iv.MarshalLine()
		if err != nil {
			return err
		}

		if _, err = bw.Write(line); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}

		if err = bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}

	return nil
}

// Decode reads NDJSON intervals into a snapshot. Blank lines are skipped.
func Decode(r io.Reader) (*Snapshot, error) {
	b := NewBuilder()

	err := ReadLines(r, func(iv trace.Interval) error {
		b.Put(iv)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return b.Build(), nil
}

// ReadLines streams NDJSON intervals to fn in file order.
func ReadLines(r io.Reader, fn func(trace.Interval) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	lineNo := 0

	for sc.Scan() {
		lineNo++

		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		iv, err := trace.ParseLine(line)
		if err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrDecode, lineNo, err)
		}

		if err = fn(iv); err != nil {
			return err
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return nil
}

// EncodeCompressed writes the NDJSON form through an LZ4 frame.
func EncodeCompressed(w io.Writer, s *Snapshot) error {
	zw := lz4.NewWriter(w)

	if err := Encode(zw, s); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close lz4 frame: %w", err)
	}

	return nil
}

// DecodeCompressed reads an LZ4-framed NDJSON snapshot.
func DecodeCompressed(r io.Reader) (*Snapshot, error) {
	return Decode(lz4.NewReader(r))
}

// OpenReader opens a snapshot file for reading, transparently decompressing
// files ending in CompressedExt. The caller closes the returned file.
func OpenReader(path string) (io.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot: %w", err)
	}

	if strings.HasSuffix(path, CompressedExt) {
		return lz4.NewReader(f), f, nil
	}

	return f, f, nil
}

// LoadFile reads a snapshot from path.
func LoadFile(path string) (*Snapshot, error) {
	r, closer, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return Decode(r)
}

// SaveFile writes a snapshot to path, compressing when the name ends in
// CompressedExt.
func SaveFile(path string, s *Snapshot) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close snapshot: %w", closeErr)
		}
	}()

	if strings.HasSuffix(path, CompressedExt) {
		return EncodeCompressed(f, s)
	}

	return Encode(f, s)
}
