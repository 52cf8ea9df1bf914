// Package storage persists inverted indexes through interchangeable storage
// policies. Every policy writes a self-identifying header so that loading a
// file with the wrong policy fails with ErrCodecMismatch instead of a parse
// error.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
)

// Policy names accepted by ForName. They are the codec values of the
// configuration.
const (
	NameBinary = config.CodecBinary
	NameJSON   = config.CodecJSON
	NameStruct = config.CodecStruct
	NameAuto   = config.CodecAuto
)

// Policy serialises term entries to a byte stream and back.
type Policy interface {
	Name() string
	Encode(w io.Writer, entries []index.TermEntry) error
	Decode(r io.Reader) ([]index.TermEntry, error)
}

// ForName returns the policy registered under name.
func ForName(name string) (Policy, error) {
	switch name {
	case NameBinary:
		return BinaryCodec{}, nil
	case NameJSON:
		return JSONCodec{}, nil
	case NameStruct:
		return StructCodec{}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown storage codec %q", name)
	}
}

// Dump writes idx to path with policy and returns the number of bytes
// written. A failed write may leave a partial file behind; it is always
// reported as ErrStorageWrite.
func Dump(policy Policy, idx *index.InvertedIndex, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: creating %s: %w", apperrors.ErrStorageWrite, path, err)
	}
	cw := &countingWriter{w: f}
	encErr := policy.Encode(cw, idx.Snapshot())
	closeErr := f.Close()
	if encErr != nil {
		return cw.n, fmt.Errorf("%w: encoding %s index to %s: %w", apperrors.ErrStorageWrite, policy.Name(), path, encErr)
	}
	if closeErr != nil {
		return cw.n, fmt.Errorf("%w: closing %s: %w", apperrors.ErrStorageWrite, path, closeErr)
	}
	return cw.n, nil
}

// Load reads the index stored at path with policy.
func Load(policy Policy, path string) (*index.InvertedIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", apperrors.ErrStorageRead, path, err)
	}
	defer f.Close()

	entries, err := policy.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s index from %s: %w", policy.Name(), path, err)
	}
	idx, err := index.FromEntries(entries)
	if err != nil {
		return nil, fmt.Errorf("decoding %s index from %s: %w", policy.Name(), path, err)
	}
	return idx, nil
}

// Detect inspects the header of the file at path and returns the policy that
// wrote it.
func Detect(path string) (Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", apperrors.ErrStorageRead, path, err)
	}
	defer f.Close()

	name, err := sniffReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", apperrors.ErrStorageRead, path, err)
	}
	if name == "" {
		return nil, corruptf("%s is not a recognised index file", path)
	}
	return ForName(name)
}

// Resolve returns the policy for name, sniffing path when name is "auto".
func Resolve(name string, path string) (Policy, error) {
	if name == NameAuto {
		return Detect(path)
	}
	return ForName(name)
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
