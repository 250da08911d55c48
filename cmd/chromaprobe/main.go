// Command chromaprobe runs the acquisition daemon: it connects to the optical
// sensor, streams samples through the processing pipeline, and persists the
// processed readings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chromaprobe/chromaprobe/classify"
	"github.com/chromaprobe/chromaprobe/config"
	"github.com/chromaprobe/chromaprobe/gateway"
	"github.com/chromaprobe/chromaprobe/notify"
	"github.com/chromaprobe/chromaprobe/pipeline"
	"github.com/chromaprobe/chromaprobe/store"
	"github.com/chromaprobe/chromaprobe/window"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if err := run(*configPath, logger); err != nil {
		fmt.Fprintln(os.Stderr, "chromaprobe:", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	readings, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer readings.Close()

	classifier, err := classify.New(classify.SeedClusters())
	if err != nil {
		return err
	}

	gw := gateway.New(gateway.Options{
		Endpoint:       cfg.Serial.Endpoint,
		BaudRate:       cfg.Serial.BaudRate,
		AutoDetect:     cfg.Serial.AutoDetect,
		MaxReconnects:  cfg.Reconnect.MaxAttempts,
		ReconnectDelay: cfg.Reconnect.Delay.Value(),
		CollectWindow:  cfg.Collect.Window.Value(),
		SampleInterval: cfg.Collect.SampleInterval.Value(),
		Logger:         logger,
	})

	opts := []pipeline.OrchestratorOption{
		pipeline.WithStore(readings),
		pipeline.WithLogger(logger),
	}

	if cfg.Notify.Broker != "" {
		notifier, err := notify.Connect(ctx, notify.Options{
			Broker:   cfg.Notify.Broker,
			Topic:    cfg.Notify.Topic,
			ClientID: cfg.Notify.ClientID,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		defer notifier.Close()
		opts = append(opts, pipeline.WithNotifier(notifier))
	}

	orchestrator := pipeline.New(
		gw,
		window.New(cfg.Window.Duration.Value(), cfg.Window.Capacity),
		classifier,
		opts...,
	)

	if err := gw.Start(ctx); err != nil {
		return err
	}
	defer gw.Close()

	logger.Info("chromaprobe daemon started",
		slog.String("endpoint", cfg.Serial.Endpoint),
		slog.String("store", cfg.Store.Path),
	)

	if err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("chromaprobe daemon stopped")
	return nil
}
