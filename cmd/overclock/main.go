// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Command overclock runs shell commands as overclock tasks defined in a TOML
// file.
//
//	overclock -config tasks.toml [-metrics-addr :9090] [-watch] [-dev]
//	          [-shutdown-timeout 30s] [-trace-file spans.json]
//
// Heartbeat tasks run their command on a fixed interval; reactor tasks run it
// again a fixed delay after each run finishes. See package config for the file
// format. On SIGINT or SIGTERM every task is stopped, waiting up to the
// shutdown timeout for running commands to finish.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petenewcomb/overclock-go"
	"github.com/petenewcomb/overclock-go/config"
	"github.com/petenewcomb/overclock-go/otock"
	"github.com/petenewcomb/overclock-go/promock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reloadDebounce = 250 * time.Millisecond

type options struct {
	configPath      string
	metricsAddr     string
	watch           bool
	dev             bool
	shutdownTimeout time.Duration
	traceFile       string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("overclock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to the TOML task file (required)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&opts.watch, "watch", false, "reload the task file when it changes")
	fs.BoolVar(&opts.dev, "dev", false, "human-readable debug logging")
	fs.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 30*time.Second, "how long to wait for running commands on shutdown")
	fs.StringVar(&opts.traceFile, "trace-file", "", "write an OpenTelemetry span per execution to this file")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.configPath == "" {
		fs.Usage()
		return opts, errors.New("-config is required")
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %q", fs.Args())
	}
	return opts, nil
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "overclock:", err)
		return 2
	}

	log, err := newLogger(opts.dev)
	if err != nil {
		fmt.Fprintln(stderr, "overclock:", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, log, opts); err != nil {
		log.Error("overclock failed", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// serve runs the configured tasks until ctx is done or a supporting server
// fails, then stops every task.
func serve(ctx context.Context, log *zap.Logger, opts options) (err error) {
	f, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	tp, shutdownTracing, err := newTracerProvider(opts.traceFile)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, shutdownTracing(shutdownCtx))
	}()

	m := overclock.NewManager[[]byte](overclock.WithManagerLogger(log.Named("manager")))
	observer, err := otock.NewObserver(otock.WithLogger(log.Named("events")), otock.WithTracerProvider(tp))
	if err != nil {
		return err
	}
	m.Listen(otock.Listener[[]byte](observer))
	m.Listen(logOutput(log.Named("output")), overclock.EventTock)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if _, err := promock.Register("", reg, m.Snapshot); err != nil {
		return err
	}
	exporter, err := promock.NewExporter("", reg, promock.ExporterOptions{})
	if err != nil {
		return err
	}
	m.Listen(promock.Listener[[]byte](exporter))

	r := newRunner(log, m, opts.shutdownTimeout)
	if err := r.apply(f); err != nil {
		log.Warn("some tasks could not be started", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			log.Info("serving metrics", zap.String("addr", opts.metricsAddr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	if opts.watch {
		g.Go(func() error {
			return watchConfig(gctx, log, opts.configPath, reloadDebounce, func(f *config.File) {
				if err := r.apply(f); err != nil {
					log.Warn("reload applied with errors", zap.Error(err))
				}
			})
		})
	}

	<-gctx.Done()
	log.Info("stopping tasks", zap.Duration("timeout", opts.shutdownTimeout))
	stopCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	stopErr := r.stopAll(stopCtx)
	return multierr.Combine(g.Wait(), stopErr)
}

// newTracerProvider returns a provider exporting spans to path, or a no-op
// provider when path is empty.
func newTracerProvider(path string) (trace.TracerProvider, func(context.Context) error, error) {
	if path == "" {
		return trace.NewNoopTracerProvider(), func(context.Context) error { return nil }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(file))
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	return tp, func(ctx context.Context) error {
		return multierr.Combine(tp.Shutdown(ctx), file.Close())
	}, nil
}

// logOutput logs the output of failed commands.
func logOutput(log *zap.Logger) overclock.Listener[[]byte] {
	return func(e overclock.Event[[]byte]) {
		if e.Execution.Err == nil || len(e.Execution.Result) == 0 {
			return
		}
		log.Warn("command output",
			zap.String("task", e.Task.Name()),
			zap.Stringer("execution", e.Execution.ID),
			zap.ByteString("output", e.Execution.Result))
	}
}
