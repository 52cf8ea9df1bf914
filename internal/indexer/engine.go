// Package indexer wires the build pipeline: documents come from a loader
// source, are inverted into an index, persisted with a storage policy and
// announced to downstream consumers.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/storage"
	"github.com/Adithya-Monish-Kumar-K/invindex/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/metrics"
)

// Publisher announces built indexes. *kafka.Producer satisfies it; the key
// is the index path.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// IndexBuilt is published after an index has been persisted.
type IndexBuilt struct {
	IndexPath   string    `json:"index_path"`
	Codec       string    `json:"codec"`
	Terms       int       `json:"terms"`
	Documents   int       `json:"documents"`
	Fingerprint string    `json:"fingerprint"`
	BuiltAt     time.Time `json:"built_at"`
}

// BuildResult summarises one build.
type BuildResult struct {
	Index    *index.InvertedIndex
	Loader   loader.Stats
	Bytes    int64
	Duration time.Duration
	Event    IndexBuilt
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.WithComponent(l, "indexer") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

type Engine struct {
	cfg       config.IndexerConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher Publisher
	now       func() time.Time
}

func NewEngine(cfg config.IndexerConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build loads every document from src, inverts them and dumps the index to
// output with the configured codec.
func (e *Engine) Build(ctx context.Context, src loader.Source, output string) (*BuildResult, error) {
	policy, err := storage.ForName(e.cfg.Codec)
	if err != nil {
		return nil, err
	}

	docs, stats, err := src.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	if e.metrics != nil {
		e.metrics.DocsLoadedTotal.Add(float64(stats.Loaded))
		e.metrics.DocsSkippedTotal.Add(float64(stats.Skipped))
	}
	e.logger.Info("documents loaded",
		"loaded", stats.Loaded,
		"skipped", stats.Skipped,
		"blank", stats.Blank,
	)

	start := time.Now()
	var idx *index.InvertedIndex
	if e.cfg.Workers > 1 {
		idx, err = index.BuildParallel(ctx, docs, e.cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("building index: %w", err)
		}
	} else {
		idx = index.Build(docs)
	}
	elapsed := time.Since(start)
	e.logger.Info("index built",
		"terms", idx.Len(),
		"documents", idx.DocCount(),
		"workers", max(e.cfg.Workers, 1),
		"duration_ms", elapsed.Milliseconds(),
	)

	n, err := storage.Dump(policy, idx, output)
	if err != nil {
		if e.metrics != nil {
			e.metrics.StorageErrorsTotal.WithLabelValues("dump").Inc()
		}
		return nil, err
	}
	e.logger.Info("index persisted", "path", output, "codec", policy.Name(), "bytes", n)

	if e.metrics != nil {
		e.metrics.BuildDuration.Observe(elapsed.Seconds())
		e.metrics.IndexTerms.Set(float64(idx.Len()))
		e.metrics.IndexDocuments.Set(float64(idx.DocCount()))
		e.metrics.DumpBytes.WithLabelValues(policy.Name()).Set(float64(n))
	}

	res := &BuildResult{
		Index:    idx,
		Loader:   stats,
		Bytes:    n,
		Duration: elapsed,
		Event: IndexBuilt{
			IndexPath:   output,
			Codec:       policy.Name(),
			Terms:       idx.Len(),
			Documents:   idx.DocCount(),
			Fingerprint: fmt.Sprintf("%016x", idx.Fingerprint()),
			BuiltAt:     e.now().UTC(),
		},
	}
	e.publish(ctx, res.Event)
	return res, nil
}

func (e *Engine) publish(ctx context.Context, ev IndexBuilt) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, ev.IndexPath, ev); err != nil {
		e.logger.Warn("index built event not published", "path", ev.IndexPath, "error", err)
	}
}

// Open loads the index at path. codec may be "auto" to detect the storage
// policy from the file header.
func (e *Engine) Open(ctx context.Context, path string, codec string) (*index.InvertedIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	policy, err := storage.Resolve(codec, path)
	if err != nil {
		e.recordLoadError()
		return nil, err
	}
	idx, err := storage.Load(policy, path)
	if err != nil {
		e.recordLoadError()
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.IndexTerms.Set(float64(idx.Len()))
		e.metrics.IndexDocuments.Set(float64(idx.DocCount()))
	}
	e.logger.Info("index loaded",
		"path", path,
		"codec", policy.Name(),
		"terms", idx.Len(),
		"documents", idx.DocCount(),
	)
	return idx, nil
}

func (e *Engine) recordLoadError() {
	if e.metrics != nil {
		e.metrics.StorageErrorsTotal.WithLabelValues("load").Inc()
	}
}
