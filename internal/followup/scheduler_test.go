package followup

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	fired []int64
	ch    chan int64
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan int64, 16)}
}

func (r *recorder) fn(_ context.Context, chatID int64) {
	r.mu.Lock()
	r.fired = append(r.fired, chatID)
	r.mu.Unlock()
	r.ch <- chatID
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func waitFired(t *testing.T, r *recorder, want int64) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != want {
			t.Fatalf("fired for chat %d, expected %d", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reminder did not fire in time")
	}
}

func TestScheduleFires(t *testing.T) {
	rec := newRecorder()
	s := New(10*time.Millisecond, rec.fn)
	defer s.Stop()

	s.Schedule(7)
	waitFired(t, rec, 7)
}

func TestCancelSuppressesFire(t *testing.T) {
	rec := newRecorder()
	s := New(30*time.Millisecond, rec.fn)
	defer s.Stop()

	s.Schedule(7)
	s.Cancel(7)

	time.Sleep(100 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Fatalf("fired %d times after cancel, expected 0", n)
	}
}

func TestRescheduleReplacesPending(t *testing.T) {
	rec := newRecorder()
	s := New(30*time.Millisecond, rec.fn)
	defer s.Stop()

	s.Schedule(7)
	time.Sleep(10 * time.Millisecond)
	s.Schedule(7)

	waitFired(t, rec, 7)
	time.Sleep(100 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Fatalf("fired %d times, expected exactly 1 after reschedule", n)
	}
}

func TestIndependentChats(t *testing.T) {
	rec := newRecorder()
	s := New(10*time.Millisecond, rec.fn)
	defer s.Stop()

	s.Schedule(1)
	s.Schedule(2)
	s.Cancel(1)

	waitFired(t, rec, 2)
	time.Sleep(50 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Fatalf("fired %d times, expected 1 (chat 1 cancelled)", n)
	}
}

func TestStopSuppressesPending(t *testing.T) {
	rec := newRecorder()
	s := New(30*time.Millisecond, rec.fn)

	s.Schedule(1)
	s.Schedule(2)
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Fatalf("fired %d times after stop, expected 0", n)
	}

	// Schedule after stop is a no-op.
	s.Schedule(3)
	time.Sleep(100 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Fatalf("fired %d times after stop, expected 0", n)
	}
}
