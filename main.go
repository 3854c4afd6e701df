// Command reelbot runs the movie catalog bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Authenticates against the Telegram Bot API and indexes the source channel.
//   - Dispatches queries and rating presses, deleting published posts after the
//     retention window.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /metrics and admin routes.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/reelbot/bot"
	"github.com/onnwee/reelbot/catalog"
	"github.com/onnwee/reelbot/config"
	"github.com/onnwee/reelbot/db"
	"github.com/onnwee/reelbot/indexer"
	"github.com/onnwee/reelbot/match"
	"github.com/onnwee/reelbot/messenger"
	"github.com/onnwee/reelbot/retention"
	"github.com/onnwee/reelbot/server"
	"github.com/onnwee/reelbot/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Setup(ctx, database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	transport, err := messenger.NewTelegram(messenger.TelegramConfig{
		Token:         cfg.BotToken,
		Endpoint:      cfg.APIEndpoint,
		SourceChatID:  cfg.SourceChannelID,
		HistorySize:   cfg.IndexWindow,
		MaxConcurrent: cfg.MaxConcurrentUpdates,
	})
	if err != nil {
		slog.Error("telegram bot authorization failed", slog.Any("err", err))
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingOptions{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceVersion: cfg.ServiceVersion,
		BotUsername:    transport.Username(),
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	store := catalog.NewStore(database)
	clock := clockwork.NewRealClock()
	scheduler := retention.NewScheduler(clock, transport)
	defer scheduler.Stop()

	idx := indexer.New(transport, store, indexer.Options{
		SourceChatID: cfg.SourceChannelID,
		Window:       cfg.IndexWindow,
		Marker:       cfg.IndexMarker,
		Clock:        clock,
	})
	// The Bot API has no channel history, so this pass only sees source posts observed
	// since the bot connected and normally scans nothing. Posts that arrive later are
	// indexed live by HandleSourcePost.
	if res, err := idx.Refresh(ctx); err != nil {
		slog.Warn("startup catalog index failed", slog.Any("err", err))
	} else if res.Scanned == 0 {
		slog.Info("no source history yet; tagged posts will be indexed as they arrive",
			slog.String("component", "indexer"))
	}

	matcher := match.New(store, cfg.MatchThreshold)

	dispatcher := bot.NewDispatcher(
		bot.Settings{
			SourceChatID: cfg.SourceChannelID,
			PublicChatID: cfg.PublicChannelID,
			Retention:    cfg.RetentionWindow,
		},
		transport,
		matcher,
		store,
		scheduler,
		idx,
	)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	mux := server.NewMux(ctx, server.Deps{
		DB:         database,
		Catalog:    store,
		Indexer:    idx,
		Retention:  scheduler,
		AdminToken: cfg.AdminToken,
	})

	slog.Info("reelbot started",
		slog.String("bot", transport.Username()),
		slog.Int64("source_channel", cfg.SourceChannelID),
		slog.Int64("public_channel", cfg.PublicChannelID),
		slog.Int("match_threshold", matcher.Threshold()),
		slog.Duration("retention", cfg.RetentionWindow))

	// A failing HTTP listener or update loop takes the whole process down.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx, mux, cfg.HTTPAddr) })
	g.Go(func() error {
		defer stop()
		return transport.Run(gctx, dispatcher)
	})
	g.Go(func() error {
		idx.StartRefreshJob(gctx, cfg.IndexRefreshInterval)
		return nil
	})
	g.Go(func() error {
		reportPoolStats(gctx, database.Stats)
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("reelbot exited with error", slog.Any("err", err))
	}
	slog.Info("shutting down", slog.Int("pending_deletions", scheduler.Pending()))
}

// reportPoolStats mirrors database pool stats into gauges until ctx is canceled.
func reportPoolStats(ctx context.Context, stats func() sql.DBStats) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			telemetry.UpdateDatabasePoolMetrics(stats())
		}
	}
}
