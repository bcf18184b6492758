package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/crimson-sun/fortiwatch/internal/config"
	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/connector/fortigate"
	"github.com/crimson-sun/fortiwatch/internal/connector/httpclient"
	"github.com/crimson-sun/fortiwatch/internal/engine"
	"github.com/crimson-sun/fortiwatch/internal/logging"
	"github.com/crimson-sun/fortiwatch/internal/metrics"
	"github.com/crimson-sun/fortiwatch/internal/output"
	"github.com/crimson-sun/fortiwatch/internal/output/async"
	"github.com/crimson-sun/fortiwatch/internal/output/file"
	"github.com/crimson-sun/fortiwatch/internal/output/multi"
	"github.com/crimson-sun/fortiwatch/internal/pipeline"
	"github.com/crimson-sun/fortiwatch/internal/retry"

	// Register connector implementations.
	_ "github.com/crimson-sun/fortiwatch/internal/connector/mock"
)

// loadConfig resolves the settings store and configuration, then applies
// command-line overrides.
func loadConfig() (*config.Config, *config.Store, error) {
	store, err := config.NewStore(settingsFile)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(cfgFile, store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	return cfg, store, nil
}

// setupLogging installs the default logger. When the dashboard owns the
// terminal and no log file is configured, logs go to ~/.fortiwatch.
func setupLogging(cfg *config.Config, tui bool) (func(), error) {
	path := cfg.Log.File
	if path == "" && tui {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "fortiwatch.log")
	}

	var w io.Writer = os.Stderr
	closer := func() {}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = func() { f.Close() }
	}
	logging.Init(w, cfg.Log.Format == "json", logging.ParseLevel(cfg.Log.Level))
	return closer, nil
}

// openConnector builds the record source. Live appliances get the
// configured request timeout.
func openConnector(cfg *config.Config) (connector.Connector, error) {
	cc := cfg.Connector()
	if cc.UseMock() {
		return connector.Open(cc)
	}
	var opts []httpclient.Option
	if cfg.Poll.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(cfg.Poll.Timeout))
	}
	return fortigate.New(cc, opts...), nil
}

// openArchive builds the NDJSON archive output, or nil when disabled.
func openArchive(cfg *config.Config) (output.Output, error) {
	if cfg.Output.Archive == "" {
		return nil, nil
	}
	var opts []file.Option
	if cfg.Output.ArchiveMaxSize > 0 {
		opts = append(opts, file.WithMaxSize(cfg.Output.ArchiveMaxSize))
	}
	f, err := file.New(cfg.Output.Archive, opts...)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	levels, err := cfg.ArchiveLevels()
	if err != nil {
		f.Close()
		return nil, err
	}
	return async.New(multi.OnlyLevels(f, levels...),
		async.WithOnError(func(err error) {
			slog.Warn("archive write failed", logging.Error(err))
		}),
	), nil
}

// buildPipeline wires connector, engine, retry policy, schedule and outputs.
// extra outputs are fanned out next to the archive.
func buildPipeline(cfg *config.Config, extra []output.Output, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	conn, err := openConnector(cfg)
	if err != nil {
		return nil, err
	}
	sched, err := pipeline.Schedule(cfg.Interval(), cfg.Poll.Schedule)
	if err != nil {
		return nil, err
	}
	archive, err := openArchive(cfg)
	if err != nil {
		return nil, err
	}

	outputs := append([]output.Output{archive}, extra...)
	base := []pipeline.Option{
		pipeline.WithRetry(retry.Policy{
			MaxRetries: cfg.Poll.MaxRetries,
			BaseDelay:  cfg.Poll.RetryDelay,
		}),
		pipeline.WithBufferSize(cfg.Poll.BufferSize),
		pipeline.WithSchedule(sched),
		pipeline.WithOutput(multi.New(outputs...)),
	}
	return pipeline.New(conn, engine.New(nil), append(base, opts...)...), nil
}

// serveMetrics exposes /metrics until ctx is done. It is a no-op when addr
// is empty.
func serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

func describe(cfg *config.Config) string {
	cc := cfg.Connector()
	if cc.UseMock() {
		return "mock"
	}
	return fmt.Sprintf("%s:%s", cc.Host, cc.Port)
}
