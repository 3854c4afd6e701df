// Package bot wires inbound chat events to the catalog: text queries are matched and
// republished with a rating widget, button presses store ratings.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/reelbot/catalog"
	"github.com/onnwee/reelbot/match"
	"github.com/onnwee/reelbot/messenger"
	"github.com/onnwee/reelbot/telemetry"
)

const tracerName = "reelbot/bot"

// Matcher resolves a free-text query to a catalog title.
type Matcher interface {
	Match(ctx context.Context, query string) (match.Result, bool, error)
}

// Store is the slice of the catalog the dispatcher needs.
type Store interface {
	Movie(ctx context.Context, id int) (catalog.Movie, error)
	UpsertRating(ctx context.Context, userID int64, movieID, stars int) error
	RatingSummary(ctx context.Context, movieID int) (catalog.Summary, error)
}

// Scheduler arms deferred deletions.
type Scheduler interface {
	Schedule(chatID int64, messageID int, delay time.Duration)
}

// PostIndexer indexes live source-channel posts.
type PostIndexer interface {
	IndexPost(ctx context.Context, p messenger.Post) (bool, error)
}

// Settings holds the channel identities and the retention window.
type Settings struct {
	SourceChatID int64
	PublicChatID int64
	Retention    time.Duration
}

// Dispatcher implements messenger.Handler.
type Dispatcher struct {
	settings  Settings
	transport messenger.Transport
	matcher   Matcher
	store     Store
	scheduler Scheduler
	indexer   PostIndexer
}

var _ messenger.Handler = (*Dispatcher)(nil)

// NewDispatcher builds a Dispatcher.
func NewDispatcher(settings Settings, transport messenger.Transport, matcher Matcher, store Store, scheduler Scheduler, indexer PostIndexer) *Dispatcher {
	return &Dispatcher{
		settings:  settings,
		transport: transport,
		matcher:   matcher,
		store:     store,
		scheduler: scheduler,
		indexer:   indexer,
	}
}

// HandleText answers a title query posted in the public channel.
func (d *Dispatcher) HandleText(ctx context.Context, p messenger.Post) {
	if p.ChatID != d.settings.PublicChatID || p.IsCommand {
		return
	}
	query := strings.TrimSpace(p.Text)
	if query == "" {
		return
	}
	ctx, span := telemetry.StartSpan(ctx, tracerName, "bot.handle_text", telemetry.ChatAttr(p.ChatID))
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "bot"), slog.String("query", query))

	res, ok, err := d.matcher.Match(ctx, query)
	if err != nil {
		telemetry.IncQuery("error")
		telemetry.RecordError(span, err)
		logger.Error("match query", slog.Any("err", err))
		return
	}
	telemetry.ObserveMatchScore(res.Score)
	if !ok {
		telemetry.IncQuery("not_found")
		logger.Debug("no match", slog.Int("best_score", res.Score))
		if _, err := d.transport.Send(ctx, p.ChatID, messenger.Outgoing{Text: notFoundText, ReplyTo: p.MessageID}); err != nil {
			d.deliveryFailed(logger, "send", err)
		}
		return
	}

	telemetry.IncQuery("matched")
	span.SetAttributes(telemetry.MovieAttr(res.ID))
	logger = logger.With(slog.Int("movie_id", res.ID), slog.String("title", res.Title.Title), slog.Int("score", res.Score))

	if err := d.publish(ctx, res.ID, logger); err != nil {
		telemetry.RecordError(span, err)
		return
	}
	telemetry.SetSpanSuccess(span)
	logger.Info("movie published")
}

// publish forwards the source post of movieID and attaches a fresh rating widget. Both
// messages are handed to the retention scheduler.
func (d *Dispatcher) publish(ctx context.Context, movieID int, logger *slog.Logger) error {
	movie, err := d.store.Movie(ctx, movieID)
	if err != nil {
		logger.Error("load movie", slog.Any("err", err))
		return fmt.Errorf("load movie %d: %w", movieID, err)
	}

	public := d.settings.PublicChatID
	contentID, err := d.transport.Forward(ctx, public, d.settings.SourceChatID, movie.SourceMessageID)
	if err != nil {
		d.deliveryFailed(logger, "forward", err)
		return err
	}
	d.scheduler.Schedule(public, contentID, d.settings.Retention)

	widgetID, err := d.transport.Send(ctx, public, messenger.Outgoing{
		Text:     widgetText(catalog.Summary{}, d.settings.Retention),
		Keyboard: ratingKeyboard(movie.ID),
	})
	if err != nil {
		d.deliveryFailed(logger, "send", err)
		return err
	}
	d.scheduler.Schedule(public, widgetID, d.settings.Retention)
	return nil
}

// HandleCallback stores a rating from a widget button and refreshes the widget. The press
// is acknowledged before any store work so the client's spinner stops right away; the
// refreshed widget is the only feedback.
func (d *Dispatcher) HandleCallback(ctx context.Context, cb messenger.Callback) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "bot.handle_callback", telemetry.ChatAttr(cb.ChatID))
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "bot"), slog.Int64("user_id", cb.FromID))

	if err := d.transport.AnswerCallback(ctx, cb.ID, ""); err != nil && !messenger.IsBenign(err) {
		d.deliveryFailed(logger, "answer", err)
	}

	action, err := ParseAction(cb.Data)
	if err != nil {
		telemetry.IncRating("rejected")
		logger.Debug("ignoring callback", slog.Any("err", err))
		return
	}
	if cb.ChatID != d.settings.PublicChatID {
		telemetry.IncRating("rejected")
		logger.Debug("ignoring callback outside public channel", slog.Int64("chat_id", cb.ChatID))
		return
	}
	span.SetAttributes(telemetry.MovieAttr(action.MovieID))
	logger = logger.With(slog.Int("movie_id", action.MovieID), slog.Int("stars", action.Stars))

	if err := d.store.UpsertRating(ctx, cb.FromID, action.MovieID, action.Stars); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, catalog.ErrMovieNotFound) || errors.Is(err, catalog.ErrInvalidStars) {
			telemetry.IncRating("rejected")
			logger.Warn("rating rejected", slog.Any("err", err))
			return
		}
		telemetry.IncRating("error")
		logger.Error("store rating", slog.Any("err", err))
		return
	}
	telemetry.IncRating("stored")

	summary, err := d.store.RatingSummary(ctx, action.MovieID)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Error("load rating summary", slog.Any("err", err))
		return
	}
	err = d.transport.Edit(ctx, cb.ChatID, cb.MessageID, widgetText(summary, d.settings.Retention), ratingKeyboard(action.MovieID))
	if err != nil && !messenger.IsBenign(err) {
		d.deliveryFailed(logger, "edit", err)
		return
	}
	telemetry.SetSpanSuccess(span)
	logger.Debug("rating stored", slog.Float64("average", summary.Average), slog.Int("votes", summary.Votes))
}

// HandleSourcePost indexes a post arriving in the source channel.
func (d *Dispatcher) HandleSourcePost(ctx context.Context, p messenger.Post) {
	if _, err := d.indexer.IndexPost(ctx, p); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("index source post",
			slog.Any("err", err), slog.Int("message_id", p.MessageID), slog.String("component", "bot"))
	}
}

func (d *Dispatcher) deliveryFailed(logger *slog.Logger, op string, err error) {
	telemetry.IncDeliveryFailure(op)
	logger.Warn("telegram "+op+" failed",
		slog.Any("err", err),
		slog.String("error_class", messenger.ClassifyError(err).String()))
}
