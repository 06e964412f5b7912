// Package followup schedules deferred per-chat reminders. At most one
// reminder is pending per chat; scheduling again replaces the previous one.
package followup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/intrening/pizzabot/core/logger"
)

// Func is invoked once when a scheduled reminder fires.
type Func func(ctx context.Context, chatID int64)

// Scheduler defers a single follow-up per chat.
type Scheduler interface {
	// Schedule arms a reminder for the chat, replacing any pending one.
	Schedule(chatID int64)
	// Cancel drops the pending reminder for the chat, if any.
	Cancel(chatID int64)
	// Stop cancels everything and waits for in-flight callbacks.
	Stop()
}

type timerScheduler struct {
	delay time.Duration
	fn    Func

	mu      sync.Mutex
	pending map[int64]*time.Timer
	stopped bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a timer-backed scheduler. Fired callbacks run on their own
// goroutine with a context that is cancelled by Stop.
func New(delay time.Duration, fn Func) Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &timerScheduler{
		delay:   delay,
		fn:      fn,
		pending: make(map[int64]*time.Timer),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

func (s *timerScheduler) Schedule(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.pending[chatID]; ok {
		t.Stop()
	}
	s.pending[chatID] = time.AfterFunc(s.delay, func() { s.fire(chatID) })
	logger.Debug(s.baseCtx, "followup", "followup.scheduled",
		slog.Int64("chat_id", chatID),
		slog.String("delay", s.delay.String()))
}

func (s *timerScheduler) Cancel(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[chatID]; ok {
		t.Stop()
		delete(s.pending, chatID)
		logger.Debug(s.baseCtx, "followup", "followup.cancelled",
			slog.Int64("chat_id", chatID))
	}
}

func (s *timerScheduler) fire(chatID int64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, chatID)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx := logger.WithUpdateMeta(s.baseCtx, 0, 0, chatID)
		logger.Info(ctx, "followup", "followup.fire", slog.Int64("chat_id", chatID))
		s.fn(ctx, chatID)
	}()
}

func (s *timerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
