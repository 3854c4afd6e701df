// Package indexer builds the movie catalog from tagged posts in the source channel.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/reelbot/messenger"
	"github.com/onnwee/reelbot/telemetry"
)

// HistoryReader returns the most recent posts of a chat, newest first.
type HistoryReader interface {
	History(ctx context.Context, chatID int64, limit int) ([]messenger.Post, error)
}

// MovieWriter records catalog entries keyed by source message id.
type MovieWriter interface {
	UpsertMovie(ctx context.Context, title string, sourceMessageID int) (bool, error)
	CountMovies(ctx context.Context) (int, error)
}

// Result summarizes one refresh.
type Result struct {
	Scanned  int `json:"scanned"`
	Matched  int `json:"matched"`
	Inserted int `json:"inserted"`
}

// Indexer scans the source channel and upserts tagged posts into the catalog.
type Indexer struct {
	history      HistoryReader
	movies       MovieWriter
	sourceChatID int64
	window       int
	marker       string
	clock        clockwork.Clock

	mu sync.Mutex // serializes Refresh
}

// Options configures an Indexer.
type Options struct {
	SourceChatID int64
	Window       int
	Marker       string
	Clock        clockwork.Clock
}

// New builds an Indexer.
func New(history HistoryReader, movies MovieWriter, opts Options) *Indexer {
	if opts.Window <= 0 {
		opts.Window = 100
	}
	if opts.Marker == "" {
		opts.Marker = "🎬"
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Indexer{
		history:      history,
		movies:       movies,
		sourceChatID: opts.SourceChatID,
		window:       opts.Window,
		marker:       opts.Marker,
		clock:        opts.Clock,
	}
}

// ExtractTitle derives a catalog title from a tagged post: the first line with the
// marker removed. ok is false when the post carries no marker or the title is blank.
func ExtractTitle(text, marker string) (title string, ok bool) {
	if marker == "" || !strings.Contains(text, marker) {
		return "", false
	}
	first, _, _ := strings.Cut(text, "\n")
	title = strings.TrimSpace(strings.ReplaceAll(first, marker, ""))
	return title, title != ""
}

// Refresh scans the most recent window of source posts.
func (ix *Indexer) Refresh(ctx context.Context) (res Result, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "reelbot/indexer", "indexer.refresh", telemetry.ChatAttr(ix.sourceChatID))
	defer span.End()
	start := ix.clock.Now()
	defer func() {
		telemetry.RecordIndexRun(err, res.Inserted, ix.clock.Since(start))
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetSpanSuccess(span)
		}
	}()

	posts, err := ix.history.History(ctx, ix.sourceChatID, ix.window)
	if err != nil {
		return res, fmt.Errorf("read source history: %w", err)
	}
	for _, p := range posts {
		res.Scanned++
		title, ok := ExtractTitle(p.Text, ix.marker)
		if !ok {
			continue
		}
		res.Matched++
		inserted, err := ix.movies.UpsertMovie(ctx, title, p.MessageID)
		if err != nil {
			return res, fmt.Errorf("index message %d: %w", p.MessageID, err)
		}
		if inserted {
			res.Inserted++
		}
	}
	ix.updateCatalogSize(ctx)

	slog.Info("catalog refreshed",
		slog.Int("scanned", res.Scanned),
		slog.Int("matched", res.Matched),
		slog.Int("inserted", res.Inserted),
		slog.String("component", "indexer"))
	return res, nil
}

// IndexPost indexes a single source post as it arrives.
func (ix *Indexer) IndexPost(ctx context.Context, p messenger.Post) (bool, error) {
	if p.ChatID != ix.sourceChatID {
		return false, nil
	}
	title, ok := ExtractTitle(p.Text, ix.marker)
	if !ok {
		return false, nil
	}
	inserted, err := ix.movies.UpsertMovie(ctx, title, p.MessageID)
	if err != nil {
		return false, fmt.Errorf("index message %d: %w", p.MessageID, err)
	}
	if inserted {
		telemetry.IncMoviesIndexed(1)
		ix.updateCatalogSize(ctx)
		telemetry.LoggerWithCorr(ctx).Info("movie indexed",
			slog.String("title", title), slog.Int("message_id", p.MessageID), slog.String("component", "indexer"))
	}
	return inserted, nil
}

func (ix *Indexer) updateCatalogSize(ctx context.Context) {
	n, err := ix.movies.CountMovies(ctx)
	if err != nil {
		slog.Debug("count movies", slog.Any("err", err))
		return
	}
	telemetry.SetCatalogSize(n)
}

// StartRefreshJob refreshes the catalog every interval until ctx is canceled.
func (ix *Indexer) StartRefreshJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	slog.Info("catalog refresh job starting", slog.Duration("interval", interval), slog.String("component", "indexer"))
	ticker := ix.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("catalog refresh job stopped", slog.String("component", "indexer"))
			return
		case <-ticker.Chan():
			if _, err := ix.Refresh(ctx); err != nil {
				slog.Warn("catalog refresh", slog.Any("err", err), slog.String("component", "indexer"))
			}
		}
	}
}
