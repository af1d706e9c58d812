// filtersvc serves CRUD endpoints for saved filter configurations and
// the label dictionary, and runs a Kafka consumer that aggregates label
// values observed in decorated alert events into that dictionary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alertline/filtersvc/internal/aggregator"
	"github.com/alertline/filtersvc/internal/api"
	"github.com/alertline/filtersvc/internal/config"
	"github.com/alertline/filtersvc/internal/consumer"
	"github.com/alertline/filtersvc/internal/metrics"
	"github.com/alertline/filtersvc/internal/store"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("filtersvc", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Log.Level)

	slog.Info("filtersvc starting",
		"version", version,
		"listen", cfg.Server.Listen,
		"topic", cfg.Kafka.Topic,
	)

	if err := run(cfg); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	slog.Info("database opened", "path", cfg.DBPath())

	m := metrics.New()
	engine := aggregator.New(db, m)

	source, err := consumer.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group, cfg.Kafka.ClientID)
	if err != nil {
		return fmt.Errorf("starting kafka source: %w", err)
	}
	defer source.Close()

	loop := consumer.NewLoop(source, engine, m, cfg.Kafka.PollTimeout.Duration)
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: api.NewRouter(db, m, cfg),
	}
	srvDone := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvDone <- err
			return
		}
		srvDone <- nil
	}()

	slog.Info("service started")

	var runErr error
	loopExited := false
	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case err := <-loopDone:
		loopExited = true
		if err != nil {
			runErr = fmt.Errorf("consumer loop: %w", err)
		} else {
			slog.Warn("consumer loop exited")
		}
	case err := <-srvDone:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		} else {
			slog.Warn("http server exited")
		}
	}

	// Stop the consumer (finishes the in-flight message), then drain HTTP.
	cancel()
	if !loopExited {
		<-loopDone
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}

	slog.Info("shutdown complete")
	return runErr
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
