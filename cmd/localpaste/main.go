// Package main is LocalPaste's server entry point: it loads configuration,
// opens the embedded database, runs the startup reconciler, wires the
// storage/transaction/lock layers into the HTTP API, and serves it until a
// shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/internal/config"
	"github.com/pszemraj/localpaste/internal/handler"
	"github.com/pszemraj/localpaste/internal/kv"
	"github.com/pszemraj/localpaste/internal/lock"
	"github.com/pszemraj/localpaste/internal/reconcile"
	"github.com/pszemraj/localpaste/internal/server"
	"github.com/pszemraj/localpaste/internal/store"
	"github.com/pszemraj/localpaste/internal/txn"
)

// Version information set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "none"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional INI config file overlay")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("localpaste %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := os.MkdirAll(cfg.DBPath, 0o700); err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to create database directory")
	}
	dbFile := filepath.Join(cfg.DBPath, "localpaste.db")

	db, err := kv.Open(dbFile, store.AllTrees...)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbFile).Msg("failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()

	folders := store.NewFolderStore(db, log)

	if err := reconcile.Run(db, folders, log, cfg.Reindex); err != nil {
		log.Error().Err(err).Msg("startup reconcile reported an error; continuing in degraded mode")
	}

	pastes := store.NewPasteStore(db, log, nil)
	locks := lock.NewManager()
	ops := txn.New(pastes, folders, locks, log)

	h := handler.New(cfg, pastes, folders, locks, ops, log)

	srv, err := server.New(cfg, h, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	log.Info().Str("addr", srv.Addr()).Str("db_path", cfg.DBPath).
		Bool("public_access", cfg.AllowPublicAccess).Msg("localpaste listening")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("localpaste stopped gracefully")
}
