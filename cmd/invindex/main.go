package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/invindex/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/invindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/invindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/invindex/pkg/redis"
)

// connectTimeout bounds the initial ping to Postgres and Redis.
const connectTimeout = 5 * time.Second

const usage = `usage: invindex <command> [flags]

commands:
  build   build an inverted index from a document collection
  query   answer AND queries from a query file against a saved index
  stats   print the size and fingerprint of a saved index
  cache-clear
          delete every cached query result from Redis

run "invindex <command> -h" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return apperrors.ExitUsage
	}
	var cmd func(context.Context, []string, io.Reader, io.Writer, io.Writer) error
	switch args[0] {
	case "build":
		cmd = runBuild
	case "query":
		cmd = runQuery
	case "stats":
		cmd = runStats
	case "cache-clear":
		cmd = runCacheClear
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return apperrors.ExitOK
	default:
		fmt.Fprintf(stderr, "invindex: unknown command %q\n\n%s", args[0], usage)
		return apperrors.ExitUsage
	}

	err := cmd(ctx, args[1:], stdin, stdout, stderr)
	switch {
	case err == nil:
		return apperrors.ExitOK
	case errors.Is(err, flag.ErrHelp):
		return apperrors.ExitOK
	default:
		fmt.Fprintf(stderr, "invindex %s: %v\n", args[0], err)
		return apperrors.ExitCode(err)
	}
}

// app carries what every command needs for one invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	closers []func() error
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML config file")
	return fs, configPath
}

func parseFlags(fs *flag.FlagSet, args []string) (map[string]bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	if fs.NArg() > 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unexpected arguments: %v", fs.Args())
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set, nil
}

// setup loads the config, lets override adjust it, validates it and opens
// the logger and metrics.
func setup(configPath string, stderr io.Writer, override func(*config.Config)) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	override(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if cfg.Logging.File == "" {
		a.logger = logger.New(stderr, cfg.Logging.Level, cfg.Logging.Format)
	} else {
		l, closeFn, err := logger.Open(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return nil, err
		}
		a.logger = l
		a.closers = append(a.closers, closeFn)
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}
	return a, nil
}

func (a *app) close() {
	if a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Error("metrics export failed", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func runBuild(ctx context.Context, args []string, _ io.Reader, _ io.Writer, stderr io.Writer) error {
	fs, configPath := newFlagSet("build", stderr)
	dataset := fs.String("dataset", "", "path to the tab-separated document collection")
	output := fs.String("output", "", "path of the index file to write")
	codec := fs.String("codec", "", "storage codec: binary, json or struct")
	workers := fs.Int("workers", 1, "tokenizer goroutines")
	source := fs.String("source", "", "document source: file or postgres")
	set, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	a, err := setup(*configPath, stderr, func(c *config.Config) {
		if set["dataset"] {
			c.Indexer.DatasetPath = *dataset
		}
		if set["output"] {
			c.Indexer.IndexPath = *output
		}
		if set["codec"] {
			c.Indexer.Codec = *codec
		}
		if set["workers"] {
			c.Indexer.Workers = *workers
		}
		if set["source"] {
			c.Documents.Source = *source
		}
	})
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	var src loader.Source
	switch cfg.Documents.Source {
	case config.SourcePostgres:
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		db, err := postgres.Open(pingCtx, cfg.Postgres)
		cancel()
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		src = loader.PostgresSource{DB: db, Table: cfg.Documents.Table, Logger: a.logger}
	default:
		src = loader.FileSource{Path: cfg.Indexer.DatasetPath, Logger: a.logger}
	}

	opts := []indexer.Option{indexer.WithLogger(a.logger)}
	if a.metrics != nil {
		opts = append(opts, indexer.WithMetrics(a.metrics))
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, a.logger)
		a.closers = append(a.closers, producer.Close)
		opts = append(opts, indexer.WithPublisher(producer))
	}

	res, err := indexer.NewEngine(cfg.Indexer, opts...).Build(ctx, src, cfg.Indexer.IndexPath)
	if err != nil {
		return err
	}
	a.logger.Info("build complete",
		"output", cfg.Indexer.IndexPath,
		"terms", res.Index.Len(),
		"documents", res.Index.DocCount(),
		"bytes", res.Bytes,
	)
	return nil
}

func runQuery(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("query", stderr)
	indexPath := fs.String("index", "", "path of the index file to read")
	codec := fs.String("codec", "", "storage codec: binary, json, struct or auto")
	utf8File := fs.String("query-file-utf8", "", "query file encoded in UTF-8")
	cp1251File := fs.String("query-file-cp1251", "", "query file encoded in Windows-1251")
	set, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if set["query-file-utf8"] && set["query-file-cp1251"] {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage,
			"--query-file-utf8 and --query-file-cp1251 are mutually exclusive")
	}

	a, err := setup(*configPath, stderr, func(c *config.Config) {
		if set["index"] {
			c.Indexer.IndexPath = *indexPath
		}
		if set["codec"] {
			c.Query.Codec = *codec
		}
	})
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	engineOpts := []indexer.Option{indexer.WithLogger(a.logger)}
	if a.metrics != nil {
		engineOpts = append(engineOpts, indexer.WithMetrics(a.metrics))
	}
	idx, err := indexer.NewEngine(cfg.Indexer, engineOpts...).Open(ctx, cfg.Indexer.IndexPath, cfg.Query.Codec)
	if err != nil {
		return err
	}

	var queries io.Reader
	switch {
	case set["query-file-utf8"], set["query-file-cp1251"]:
		path, enc := *utf8File, loader.EncodingUTF8
		if set["query-file-cp1251"] {
			path, enc = *cp1251File, loader.EncodingCP1251
		}
		f, err := loader.OpenQueryFile(path, enc)
		if err != nil {
			return err
		}
		defer f.Close()
		queries = f
	default:
		queries, err = loader.NewQueryReader(stdin, cfg.Query.Encoding)
		if err != nil {
			return err
		}
	}

	execOpts := []executor.Option{executor.WithLogger(a.logger)}
	if a.metrics != nil {
		execOpts = append(execOpts, executor.WithMetrics(a.metrics))
	}
	var qc *cache.QueryCache
	if cfg.Redis.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		client, err := pkgredis.Connect(pingCtx, cfg.Redis)
		cancel()
		if err != nil {
			a.logger.Warn("query cache disabled", "error", err)
		} else {
			a.closers = append(a.closers, client.Close)
			qc = cache.New(client, cfg.Redis, a.logger, a.metrics)
			execOpts = append(execOpts, executor.WithCache(qc))
		}
	}

	err = executor.New(idx, execOpts...).Stream(ctx, queries, stdout)
	if qc != nil {
		st := qc.Stats()
		a.logger.Info("query cache usage", "hits", st.Hits, "misses", st.Misses, "breaker", st.Breaker)
	}
	return err
}

func runStats(ctx context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("stats", stderr)
	indexPath := fs.String("index", "", "path of the index file to read")
	codec := fs.String("codec", "", "storage codec: binary, json, struct or auto")
	set, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	a, err := setup(*configPath, stderr, func(c *config.Config) {
		if set["index"] {
			c.Indexer.IndexPath = *indexPath
		}
		if set["codec"] {
			c.Query.Codec = *codec
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	idx, err := indexer.NewEngine(a.cfg.Indexer, indexer.WithLogger(a.logger)).Open(ctx, a.cfg.Indexer.IndexPath, a.cfg.Query.Codec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "terms\t%d\ndocuments\t%d\nfingerprint\t%016x\n", idx.Len(), idx.DocCount(), idx.Fingerprint())
	return err
}

// runCacheClear deletes cached results for every index. Redis does not need
// to be enabled for queries; the configured address is used either way.
func runCacheClear(ctx context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("cache-clear", stderr)
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}
	a, err := setup(*configPath, stderr, func(*config.Config) {})
	if err != nil {
		return err
	}
	defer a.close()

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	client, err := pkgredis.Connect(pingCtx, a.cfg.Redis)
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	deleted, err := cache.New(client, a.cfg.Redis, a.logger, a.metrics).Invalidate(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "deleted\t%d\n", deleted)
	return err
}
