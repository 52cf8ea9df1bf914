// Package executor runs batch AND queries against a loaded inverted index and
// formats one output line per query.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/metrics"
)

// ResultCache memoizes query results per index fingerprint.
// *cache.QueryCache satisfies it.
type ResultCache interface {
	GetOrCompute(ctx context.Context, fingerprint uint64, terms []string, compute func() []string) ([]string, bool)
}

type Option func(*Executor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger.WithComponent(l, "query-executor") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithCache(c ResultCache) Option {
	return func(e *Executor) { e.cache = c }
}

type Executor struct {
	idx         *index.InvertedIndex
	logger      *slog.Logger
	metrics     *metrics.Metrics
	cache       ResultCache
	fingerprint uint64
}

func New(idx *index.InvertedIndex, opts ...Option) *Executor {
	e := &Executor{
		idx:    idx,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache != nil {
		e.fingerprint = idx.Fingerprint()
	}
	return e
}

// Execute answers one query line: the sorted ids of documents containing
// every whitespace-separated term. A line without terms matches nothing.
func (e *Executor) Execute(ctx context.Context, line string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	terms := tokenizer.Tokenize(line)

	var (
		ids []string
		hit bool
	)
	if e.cache != nil && len(terms) > 0 {
		ids, hit = e.cache.GetOrCompute(ctx, e.fingerprint, terms, func() []string {
			return e.idx.Query(terms)
		})
	} else {
		ids = e.idx.Query(terms)
	}

	e.metrics.ObserveQuery(len(ids), time.Since(start).Seconds())
	e.logger.Debug("query executed",
		"terms", len(terms),
		"results", len(ids),
		"cached", hit,
	)
	return ids, nil
}

// Format renders a result as the comma-joined ids. No match renders as "".
func Format(ids []string) string {
	return strings.Join(ids, ",")
}

// RunBatch executes every line in order and returns the formatted results,
// one per line.
func (e *Executor) RunBatch(ctx context.Context, lines []string) ([]string, error) {
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		ids, err := e.Execute(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i+1, err)
		}
		out = append(out, Format(ids))
	}
	return out, nil
}

// Stream reads query lines from r and writes exactly one result line per
// query to w. Nothing else is written to w.
func (e *Executor) Stream(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	n := 0
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading queries: %w", readErr)
		}
		if line != "" {
			n++
			ids, err := e.Execute(ctx, strings.TrimRight(line, "\r\n"))
			if err != nil {
				return fmt.Errorf("query %d: %w", n, err)
			}
			if _, err := bw.WriteString(Format(ids) + "\n"); err != nil {
				return fmt.Errorf("writing result %d: %w", n, err)
			}
		}
		if readErr != nil {
			break
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	e.logger.Info("query batch finished", "queries", n)
	return nil
}
