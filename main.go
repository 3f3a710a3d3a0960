package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecobins/binwatch/config"
	"github.com/ecobins/binwatch/db"
	"github.com/ecobins/binwatch/engine"
	httpserver "github.com/ecobins/binwatch/http"
	"github.com/ecobins/binwatch/mqtt"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connection error", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	eng := engine.New(store, engine.Config{
		Band:        engine.DistanceBand{MinCM: cfg.DistanceMinCM, MaxCM: cfg.DistanceMaxCM},
		AlertPolicy: engine.AlertPolicy(cfg.AlertPolicy),
	}, log)

	if cfg.MQTTEnabled() {
		bridge := mqtt.NewBridge(cfg, eng, log)
		if err := bridge.Start(ctx); err != nil {
			log.Error("mqtt bridge error", "error", err)
			os.Exit(1)
		}
		defer bridge.Close()
		log.Info("MQTT ingest bridge connected", "broker", cfg.MQTTBroker)
	}

	srv := httpserver.New(cfg, eng, log)
	log.Info("REST API listening", "addr", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
