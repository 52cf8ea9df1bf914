package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
)

// Binary file layout shared by the binary and struct codecs:
//
//	magic "IIDX" | codec tag (1 byte) | version (1 byte) | body | xxhash64 of all preceding bytes
//
// All integers are little-endian.
var magic = [4]byte{'I', 'I', 'D', 'X'}

const (
	tagBinary     byte = 'B'
	tagStruct     byte = 'S'
	formatVersion byte = 1
	headerSize         = 6
	trailerSize        = 8

	// maxFieldLen bounds the byte length of a single term or id.
	maxFieldLen = 16 << 20
	// maxPrealloc caps slice capacity reserved up front from a decoded count.
	maxPrealloc = 1 << 16
)

// maxCount bounds the term count, document count and posting set size. The
// writer and the reader enforce the same limit, so anything Dump accepts
// Load accepts too.
var maxCount = 1 << 28

func corruptf(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrCorruptIndex, apperrors.ExitFailure, format, args...)
}

func mismatchf(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrCodecMismatch, apperrors.ExitFailure, format, args...)
}

// sniff names the codec that wrote data, or returns "" when it is not
// recognised. data may be a prefix for the binary codecs; JSON is recognised
// by its first non-whitespace byte, so data must reach past any leading
// whitespace.
func sniff(data []byte) string {
	if len(data) >= headerSize && bytes.Equal(data[:4], magic[:]) {
		switch data[4] {
		case tagBinary:
			return NameBinary
		case tagStruct:
			return NameStruct
		}
		return ""
	}
	trimmed := bytes.TrimLeft(data, jsonSpace)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return NameJSON
	}
	return ""
}

const jsonSpace = " \t\r\n"

// sniffReader is sniff for a stream of unknown length. It consumes br.
func sniffReader(br *bufio.Reader) (string, error) {
	prefix, err := br.Peek(headerSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if name := sniff(prefix); name != "" || len(prefix) == headerSize && bytes.Equal(prefix[:4], magic[:]) {
		return name, nil
	}
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if bytes.IndexByte([]byte(jsonSpace), b) >= 0 {
			continue
		}
		if b == '{' {
			return NameJSON, nil
		}
		return "", nil
	}
}

type wireWriter struct {
	bw     *bufio.Writer
	digest *xxhash.Digest
	buf    [8]byte
	err    error
}

func newWireWriter(w io.Writer) *wireWriter {
	return &wireWriter{bw: bufio.NewWriter(w), digest: xxhash.New()}
}

func (w *wireWriter) write(p []byte) {
	if w.err != nil {
		return
	}
	w.digest.Write(p)
	_, w.err = w.bw.Write(p)
}

func (w *wireWriter) header(tag byte) {
	w.write(magic[:])
	w.write([]byte{tag, formatVersion})
}

func (w *wireWriter) u32(n int) {
	if w.err == nil && (n < 0 || uint64(n) > math.MaxUint32) {
		w.err = fmt.Errorf("value %d does not fit in 32 bits", n)
		return
	}
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(n))
	w.write(w.buf[:4])
}

// count writes n, failing when it exceeds maxCount.
func (w *wireWriter) count(what string, n int) {
	if w.err == nil && n > maxCount {
		w.err = fmt.Errorf("%s %d exceeds limit %d", what, n, maxCount)
		return
	}
	w.u32(n)
}

func (w *wireWriter) str(s string) {
	if w.err == nil && len(s) > maxFieldLen {
		w.err = fmt.Errorf("string of %d bytes exceeds limit of %d", len(s), maxFieldLen)
		return
	}
	w.u32(len(s))
	w.write([]byte(s))
}

// finish appends the checksum trailer and flushes.
func (w *wireWriter) finish() error {
	if w.err != nil {
		return w.err
	}
	binary.LittleEndian.PutUint64(w.buf[:], w.digest.Sum64())
	if _, err := w.bw.Write(w.buf[:]); err != nil {
		return err
	}
	return w.bw.Flush()
}

type wireReader struct {
	br     *bufio.Reader
	digest *xxhash.Digest
	buf    [8]byte
}

func newWireReader(r io.Reader) *wireReader {
	return &wireReader{br: bufio.NewReader(r), digest: xxhash.New()}
}

func (r *wireReader) readFull(p []byte) error {
	if _, err := io.ReadFull(r.br, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return corruptf("truncated index file")
		}
		return fmt.Errorf("%w: %w", apperrors.ErrStorageRead, err)
	}
	r.digest.Write(p)
	return nil
}

// header checks magic, codec tag and version. A file written by another
// codec yields ErrCodecMismatch.
func (r *wireReader) header(tag byte, name string) error {
	prefix, err := r.br.Peek(headerSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", apperrors.ErrStorageRead, err)
	}
	if sniff(prefix) != name {
		short := len(prefix) < headerSize
		got, err := sniffReader(r.br)
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrStorageRead, err)
		}
		if got != "" {
			return mismatchf("file was written by the %s codec, not %s", got, name)
		}
		if short {
			return corruptf("truncated index file")
		}
		return corruptf("not a %s index file", name)
	}
	var h [headerSize]byte
	if err := r.readFull(h[:]); err != nil {
		return err
	}
	if h[5] != formatVersion {
		return corruptf("unsupported format version %d", h[5])
	}
	return nil
}

func (r *wireReader) u32() (int, error) {
	if err := r.readFull(r.buf[:4]); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(r.buf[:4])), nil
}

// count reads a u32 that must not exceed maxCount.
func (r *wireReader) count(what string) (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if n > maxCount {
		return 0, corruptf("%s %d exceeds limit %d", what, n, maxCount)
	}
	return n, nil
}

func (r *wireReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if n > maxFieldLen {
		return "", corruptf("string length %d exceeds limit %d", n, maxFieldLen)
	}
	p := make([]byte, n)
	if err := r.readFull(p); err != nil {
		return "", err
	}
	return string(p), nil
}

// trailer verifies the checksum and that nothing follows it.
func (r *wireReader) trailer() error {
	want := r.digest.Sum64()
	if _, err := io.ReadFull(r.br, r.buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return corruptf("missing checksum")
		}
		return fmt.Errorf("%w: %w", apperrors.ErrStorageRead, err)
	}
	if got := binary.LittleEndian.Uint64(r.buf[:]); got != want {
		return corruptf("checksum mismatch: stored %016x, computed %016x", got, want)
	}
	if _, err := r.br.ReadByte(); err == nil {
		return corruptf("unexpected data after checksum")
	} else if !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", apperrors.ErrStorageRead, err)
	}
	return nil
}

func prealloc(n int) int {
	return min(n, maxPrealloc)
}
