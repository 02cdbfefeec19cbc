package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	zerog "github.com/jburman/ZeroG-sub001"
	"github.com/jburman/ZeroG-sub001/cache"
	"github.com/jburman/ZeroG-sub001/sqlite"
	"github.com/jburman/ZeroG-sub001/utils"
	"github.com/jburman/ZeroG-sub001/versions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpenREPL opens (or creates) the index database and the version ledger
// under dir and registers the metadata saved by earlier sessions.
func OpenREPL(dir string, opts zerog.Options) (repl *REPL, err error) {
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	repl = &REPL{}
	defer func() {
		if err != nil {
			_ = repl.Shutdown()
			repl = nil
		}
	}()
	if repl.ledger, err = versions.Open(filepath.Join(dir, "ledger"), &pebble.Options{}, opts.Logger); err != nil {
		return
	}
	if repl.backend, err = sqlite.Open(filepath.Join(dir, "index.db"), opts.Logger); err != nil {
		return
	}
	if repl.ix, err = zerog.New(repl.backend, repl.ledger, opts); err != nil {
		return
	}
	repl.catalog = catalog{db: repl.ledger.Database()}
	saved, err := repl.catalog.load()
	if err != nil {
		return
	}
	for _, md := range saved {
		if err = repl.ix.RegisterMetadata(md); err != nil {
			return
		}
	}
	return repl, nil
}

// Shutdown closes the indexer and the stores underneath it.
func (repl *REPL) Shutdown() error {
	var errs []error
	if repl.ix != nil {
		errs = append(errs, repl.ix.Close())
	}
	if repl.backend != nil {
		errs = append(errs, repl.backend.Close())
	}
	if repl.ledger != nil {
		errs = append(errs, repl.ledger.Close())
	}
	return errors.Join(errs...)
}

func register(repl *REPL) {
	for _, c := range zerog.Metrics() {
		prometheus.MustRegister(c)
	}
	prometheus.MustRegister(cache.NewCollector(repl.ix.Cache()))
	prometheus.MustRegister(versions.NewCollector(repl.ledger))
}

func main() {
	dir := flag.String("dir", "zerog-data", "data directory")
	config := flag.String("config", "", "YAML options file")
	metrics := flag.String("metrics", "", "address to serve /metrics on")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	var opts zerog.Options
	if *config != "" {
		var err error
		if opts, err = zerog.LoadOptions(*config); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(-2)
		}
	}
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	opts.Logger = utils.NewDefaultLogger(level)

	repl, err := OpenREPL(*dir, opts)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	defer func() { _ = repl.Shutdown() }()

	if *metrics != "" {
		register(repl)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metrics, mux); err != nil {
				opts.Logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	if err = repl.Open(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		return
	}
	defer repl.Close()

	ctx := context.Background()
	for err != io.EOF {
		if err != nil {
			_, _ = fmt.Fprintf(os.Stdout, "%s\n", err.Error())
		}
		err = repl.REPL(ctx)
	}
}
