// Package retention deletes published messages once their retention window has passed.
package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/reelbot/messenger"
	"github.com/onnwee/reelbot/telemetry"
)

// deleteTimeout bounds a single delete call once a timer fires.
const deleteTimeout = 30 * time.Second

// Deleter removes a message from a chat.
type Deleter interface {
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Scheduler arms one-shot deletions. Timers are never cancelled individually; Stop
// disarms whatever is still pending at shutdown.
type Scheduler struct {
	clock   clockwork.Clock
	deleter Deleter

	mu      sync.Mutex
	nextID  uint64
	timers  map[uint64]clockwork.Timer
	stopped bool
}

// NewScheduler returns a scheduler firing on clock. A nil clock means the real clock.
func NewScheduler(clock clockwork.Clock, deleter Deleter) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:   clock,
		deleter: deleter,
		timers:  make(map[uint64]clockwork.Timer),
	}
}

// Schedule deletes messageID from chatID once delay has elapsed.
func (s *Scheduler) Schedule(chatID int64, messageID int, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		slog.Warn("retention scheduler stopped; deletion not armed",
			slog.Int64("chat_id", chatID), slog.Int("message_id", messageID), slog.String("component", "retention"))
		return
	}
	s.nextID++
	id := s.nextID
	s.timers[id] = s.clock.AfterFunc(delay, func() { s.fire(id, chatID, messageID) })
	telemetry.SetPendingDeletions(len(s.timers))
	slog.Debug("deletion scheduled",
		slog.Int64("chat_id", chatID),
		slog.Int("message_id", messageID),
		slog.Duration("delay", delay),
		slog.String("component", "retention"))
}

func (s *Scheduler) fire(id uint64, chatID int64, messageID int) {
	s.mu.Lock()
	if _, ok := s.timers[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	telemetry.SetPendingDeletions(len(s.timers))
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	logger := slog.With(slog.Int64("chat_id", chatID), slog.Int("message_id", messageID), slog.String("component", "retention"))

	err := s.deleter.Delete(ctx, chatID, messageID)
	switch {
	case err == nil:
		telemetry.IncDeletion("deleted")
		logger.Debug("message deleted")
	case messenger.IsBenign(err):
		telemetry.IncDeletion("already_gone")
		logger.Debug("message already gone", slog.Any("err", err))
	default:
		telemetry.IncDeletion("failed")
		logger.Warn("message deletion failed",
			slog.Any("err", err),
			slog.String("error_class", messenger.ClassifyError(err).String()))
	}
}

// Pending reports how many deletions are armed and not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms all pending deletions and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	n := len(s.timers)
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	telemetry.SetPendingDeletions(0)
	if n > 0 {
		slog.Info("retention scheduler stopped with pending deletions", slog.Int("pending", n), slog.String("component", "retention"))
	}
}
