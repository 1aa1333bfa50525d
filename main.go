package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AliSDisrupt/Pakistan-vACC/api"
	"github.com/AliSDisrupt/Pakistan-vACC/collector"
	"github.com/AliSDisrupt/Pakistan-vACC/config"
	"github.com/AliSDisrupt/Pakistan-vACC/db"
	"github.com/AliSDisrupt/Pakistan-vACC/logging"
	"github.com/AliSDisrupt/Pakistan-vACC/roster"
	jsonfetcher "github.com/AliSDisrupt/Pakistan-vACC/services/json_fetcher"
	"github.com/AliSDisrupt/Pakistan-vACC/store"
	"github.com/AliSDisrupt/Pakistan-vACC/syncer"
	"github.com/AliSDisrupt/Pakistan-vACC/tracker"
)

// shutdownTimeout bounds the HTTP server drain on exit, independent of
// the feed fetch timeout.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Modes: serve (default) runs the poll loop and API, once runs a
	// single cycle for cron-driven backfill, sync rebuilds ephemeral
	// state from the durable store.
	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	badgerDB, err := store.Open(cfg.DataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open state db")
	}
	defer badgerDB.Close()

	sessions, err := store.NewSessionStore(badgerDB)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load session store")
	}
	history, err := store.NewHistoryStore(badgerDB, cfg.HistoryLimit)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load history store")
	}

	// The durable store is best effort in the live path: if Postgres is
	// unreachable we keep tracking on ephemeral state alone.
	var durable *db.Store
	if durable, err = db.New(cfg.Database.DSN()); err != nil {
		if mode == "sync" {
			logging.Fatal().Err(err).Msg("sync requires the durable store")
		}
		logging.Warn().Err(err).Msg("durable store unavailable, continuing without it")
		durable = nil
	} else {
		defer durable.Close()
	}

	switch mode {
	case "sync":
		if _, err := syncer.New(durable, sessions, history).Run(context.Background()); err != nil {
			logging.Fatal().Err(err).Msg("sync failed")
		}
		return
	case "once":
		engine, flush := newEngine(cfg, sessions, history, durable)
		c := collector.New(newFetcher(cfg), engine)
		err := c.Cycle(context.Background())
		flush()
		if err != nil {
			logging.Fatal().Err(err).Msg("cycle failed")
		}
		return
	case "serve":
	default:
		logging.Fatal().Str("mode", mode).Msg("unknown mode, expected serve, once or sync")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, flush := newEngine(cfg, sessions, history, durable)
	defer flush()
	c := collector.New(newFetcher(cfg), engine)

	router := api.NewRouter(sessions, history, c)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		logging.Info().Str("addr", cfg.ListenAddr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("API server failed")
		}
	}()

	c.Run(ctx, cfg.PollInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("API server shutdown failed")
	}
}

func newFetcher(cfg config.Config) *jsonfetcher.Fetcher {
	return jsonfetcher.New(cfg.FeedURL, cfg.FetchTimeout)
}

// newEngine assembles the reconciliation engine. The returned flush
// drains any queued durable writes and must run before exit.
func newEngine(cfg config.Config, sessions *store.SessionStore, history *store.HistoryStore, durable *db.Store) (*tracker.Engine, func()) {
	opts := []tracker.EngineOption{}
	flush := func() {}
	if durable != nil {
		writer := db.NewAsyncWriter(durable, 256)
		opts = append(opts, tracker.WithDurable(writer, durable))
		flush = writer.Close
	}
	if cfg.RosterURL != "" {
		opts = append(opts, tracker.WithNotifier(roster.New(cfg.RosterURL)))
	}
	return tracker.NewEngine(sessions, history, cfg.StaleThreshold, opts...), flush
}
