package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
)

// Query file encodings, as named in the configuration.
const (
	EncodingUTF8   = config.EncodingUTF8
	EncodingCP1251 = config.EncodingCP1251
)

func decoderFor(name string) (*encoding.Decoder, error) {
	switch name {
	case EncodingUTF8:
		// Strips a leading BOM and replaces invalid sequences with U+FFFD.
		return unicode.UTF8BOM.NewDecoder(), nil
	case EncodingCP1251:
		return charmap.Windows1251.NewDecoder(), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown query file encoding %q", name)
	}
}

// NewQueryReader decodes r from the named encoding into UTF-8.
func NewQueryReader(r io.Reader, name string) (io.Reader, error) {
	dec, err := decoderFor(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, dec), nil
}

// ReadLines returns the lines of r without their line terminators. A final
// line without a newline is kept; a trailing newline does not add an empty
// line.
func ReadLines(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// ReadQueryLines reads and decodes the query file at path.
func ReadQueryLines(path string, encodingName string) ([]string, error) {
	f, err := OpenQueryFile(path, encodingName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lines, err := ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading query file %s: %w", path, err)
	}
	return lines, nil
}

// QueryFile is an open query file decoded to UTF-8.
type QueryFile struct {
	io.Reader
	f *os.File
}

func (q *QueryFile) Close() error {
	return q.f.Close()
}

// OpenQueryFile opens path and decodes it from the named encoding.
func OpenQueryFile(path string, encodingName string) (*QueryFile, error) {
	dec, err := decoderFor(encodingName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: query file %s: %w", apperrors.ErrInputNotFound, path, err)
		}
		return nil, fmt.Errorf("opening query file %s: %w", path, err)
	}
	return &QueryFile{Reader: transform.NewReader(f, dec), f: f}, nil
}
