// Package loader turns raw inputs into the records the index core consumes:
// tab-separated document collections (from a file or PostgreSQL) and query
// files in UTF-8 or Windows-1251.
package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/logger"
)

// Source yields the document collection to index.
type Source interface {
	Documents(ctx context.Context) ([]index.Document, Stats, error)
}

// Stats counts what the loader saw.
type Stats struct {
	Loaded  int
	Blank   int
	Skipped int
}

// ParseLine splits a record into id and content on the first tab. Records
// without a tab or with an empty id are rejected.
func ParseLine(line string) (index.Document, bool) {
	line = strings.TrimRight(line, "\r\n")
	id, content, ok := strings.Cut(line, "\t")
	if !ok || id == "" {
		return index.Document{}, false
	}
	return index.Document{ID: id, Content: content}, true
}

// ReadDocuments parses one record per line. Blank lines are ignored and
// malformed records are skipped with a warning.
func ReadDocuments(ctx context.Context, r io.Reader, l *slog.Logger) ([]index.Document, Stats, error) {
	l = logger.WithComponent(l, "document-loader")
	br := bufio.NewReader(r)
	var (
		docs   []index.Document
		stats  Stats
		lineNo int
	)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lineNo++
			if lineNo%10000 == 0 {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, stats, ctxErr
				}
			}
			switch {
			case strings.TrimRight(line, "\r\n") == "":
				stats.Blank++
			default:
				doc, ok := ParseLine(line)
				if !ok {
					stats.Skipped++
					l.Warn("skipping malformed document record", "line", lineNo)
					break
				}
				docs = append(docs, doc)
				stats.Loaded++
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("reading documents at line %d: %w", lineNo+1, err)
		}
	}
	return docs, stats, nil
}

// FileSource reads documents from a tab-separated file.
type FileSource struct {
	Path   string
	Logger *slog.Logger
}

func (s FileSource) Documents(ctx context.Context) ([]index.Document, Stats, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Stats{}, fmt.Errorf("%w: dataset %s: %w", apperrors.ErrInputNotFound, s.Path, err)
		}
		return nil, Stats{}, fmt.Errorf("opening dataset %s: %w", s.Path, err)
	}
	defer f.Close()
	return ReadDocuments(ctx, f, s.Logger)
}
