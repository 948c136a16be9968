// Copyright 2024-2026 Aiku AI

// Command guildrelay forwards media posts between communities on a shared
// relay network: messages from each community's sender channels are mirrored
// into every other community's receiver channel under the author's identity,
// and deleting a source cascades to its mirrors.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aiku/guildrelay/pkg/admin"
	"github.com/aiku/guildrelay/pkg/config"
	"github.com/aiku/guildrelay/pkg/gateway"
	"github.com/aiku/guildrelay/pkg/platform"
	"github.com/aiku/guildrelay/pkg/relay"
	"github.com/aiku/guildrelay/pkg/store"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallbackLog := zerolog.New(os.Stderr)
		fallbackLog.Fatal().Err(err).Msg("Failed to load config")
	}

	log := newLogger(cfg.Logging)
	log.Info().
		Str("tag", Tag).
		Str("commit", Commit).
		Str("build_time", BuildTime).
		Msg("Starting guildrelay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rawDB, err := dbutil.NewFromConfig("guildrelay", cfg.Database, dbutil.ZeroLogger(log.With().Str("component", "database").Logger()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	db := store.New(rawDB)
	defer db.Close()
	if err := db.Upgrade(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to upgrade database schema")
	}

	client := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.Token)
	svc := relay.NewService(db, client, cfg.Platform.BotName, log)

	adminSrv := admin.New(svc.Registry(), cfg.Admin.Token, log).HTTPServer(cfg.Admin.Addr)
	go func() {
		log.Info().Str("addr", cfg.Admin.Addr).Msg("Starting admin API")
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Admin API error")
		}
	}()

	gw := gateway.New(cfg.Platform.GatewayURL, cfg.Platform.Token, svc, svc.Registry(), log)
	if err := gw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Gateway stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Admin API shutdown failed")
	}
	log.Info().Msg("Shut down")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = os.Stderr
	log := zerolog.New(out)
	if cfg.Console {
		log = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return log.Level(level).With().Timestamp().Logger()
}
