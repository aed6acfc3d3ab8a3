// Package watchdog enforces the per-student session time budget
// independently of the lesson flow. A periodic check plus a foreground
// trigger (coarse timers get throttled while the host app is
// backgrounded) both feed one latched expiry path.
package watchdog

import (
	"context"
	"sync"
	"time"
)

// Session statuses.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// DefaultInterval is the periodic check cadence.
const DefaultInterval = time.Second

// Session is the durable session-time-budget record. It is created by
// the session-start flow and deleted here on expiry, or by sign-out.
type Session struct {
	ID             string
	MinutesAllowed int
	Status         string
	StartedAt      int64 // epoch ms
	EndAt          int64 // epoch ms
}

// Expired reports whether the budget has run out at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.UnixMilli() >= s.EndAt
}

// SessionStore is the durable view of session records the watchdog
// needs. Active returns (nil, nil) when no session exists. MarkEnded
// must be an idempotent one-shot: it reports true only for the single
// call that performed the active-to-ended transition, even under
// concurrent duplicate checks.
type SessionStore interface {
	Active(ctx context.Context) (*Session, error)
	MarkEnded(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Notifier delivers the best-effort end-session call. Failures are
// swallowed and never retried.
type Notifier interface {
	EndSession(ctx context.Context, sessionID string) error
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithInterval overrides the periodic check cadence.
func WithInterval(d time.Duration) Option {
	return func(w *Watchdog) { w.interval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Watchdog) { w.now = now }
}

// Watchdog watches the session record and fires the expiry callback
// exactly once when the budget runs out.
type Watchdog struct {
	store    SessionStore
	notifier Notifier
	onExpire func()

	interval time.Duration
	now      func() time.Time

	expireOnce sync.Once
	stopOnce   sync.Once
	fg         chan struct{}
	stop       chan struct{}
	done       chan struct{}
}

// New creates a Watchdog. onExpire runs at most once, from the
// watchdog's own goroutine.
func New(store SessionStore, notifier Notifier, onExpire func(), opts ...Option) *Watchdog {
	w := &Watchdog{
		store:    store,
		notifier: notifier,
		onExpire: onExpire,
		interval: DefaultInterval,
		now:      time.Now,
		fg:       make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the periodic check. Callers must Stop to release the
// ticker; leaking it across lesson navigations keeps firing checks.
func (w *Watchdog) Start() {
	go w.run()
}

// Stop cancels the periodic check and the foreground trigger as a unit
// and waits for the check goroutine to exit. Safe to call more than once.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

// Foreground requests an immediate check. The host calls this on
// visibility or foreground transitions. Never blocks.
func (w *Watchdog) Foreground() {
	select {
	case w.fg <- struct{}{}:
	default:
	}
}

func (w *Watchdog) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.check(context.Background())
		case <-w.fg:
			w.check(context.Background())
		}
	}
}

// check reads the session record and, if the budget is spent, performs
// the one-shot end transition: mark ended, notify the server
// (best-effort), delete the record, and fire the expiry callback.
func (w *Watchdog) check(ctx context.Context) {
	sess, err := w.store.Active(ctx)
	if err != nil || sess == nil {
		return
	}
	if sess.Status == StatusEnded {
		return
	}
	if !sess.Expired(w.now()) {
		return
	}

	// The store-level guard makes the transition fire exactly once even
	// when a tick and a foreground check race.
	fired, err := w.store.MarkEnded(ctx, sess.ID)
	if err != nil || !fired {
		return
	}

	if w.notifier != nil {
		// Even when this fails we still tear down locally.
		_ = w.notifier.EndSession(ctx, sess.ID)
	}
	_ = w.store.Delete(ctx, sess.ID)

	if w.onExpire != nil {
		w.expireOnce.Do(w.onExpire)
	}
}
