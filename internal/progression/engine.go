package progression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jtandoc/speakquest/internal/api"
	"github.com/jtandoc/speakquest/internal/catalog"
	"github.com/jtandoc/speakquest/internal/progress"
)

var (
	// ErrAttemptPending is returned when a submission arrives while a
	// prior attempt for the current activity is still outstanding.
	ErrAttemptPending = errors.New("progression: attempt already pending")

	// ErrLessonCompleted is returned for submissions after the terminal
	// state was reached.
	ErrLessonCompleted = errors.New("progression: lesson already completed")
)

// AttemptError wraps a failed attempt submission. The engine state is
// unchanged and the same activity stays current, so the learner can
// retry.
type AttemptError struct {
	ActivityID string
	Err        error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("submit attempt for activity %s: %v", e.ActivityID, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// Submitter performs the external attempt-submission call. The grading
// itself is a server-side black box.
type Submitter interface {
	SubmitAttempt(ctx context.Context, req api.AttemptRequest) (api.AttemptResult, error)
}

// Submission is the learner's response to the current activity. Payload
// is the renderer-specific answer data; Skipped marks a confirmed skip.
type Submission struct {
	Skipped bool
	Payload json.RawMessage
}

// Step describes the engine after one resolution event.
type Step struct {
	Phase     Phase
	Score     float64
	Passed    bool
	Skipped   bool
	Completed bool

	// Position and Total locate the current activity within its phase
	// after the transition (1-based, for "j / M" banners). Zero when
	// completed.
	Position int
	Total    int

	// Next is the activity now current, valid when HasNext.
	Next    catalog.Activity
	HasNext bool
}

// Config wires an Engine.
type Config struct {
	Catalog   *catalog.Catalog
	Submitter Submitter
	Progress  progress.Repo

	// Snapshot is the saved snapshot for this lesson, nil when absent.
	Snapshot *progress.Snapshot
	// DeepLink is an explicit start index, NoDeepLink when absent.
	DeepLink int
}

// Engine runs one lesson. All state mutation happens under the mutex;
// the attempt-submission call itself runs outside it, with the pending
// latch keeping exactly one attempt in flight. The session watchdog may
// call Preempt from its own goroutine at any time.
type Engine struct {
	cat       *catalog.Catalog
	submitter Submitter
	progress  progress.Repo
	now       func() time.Time

	mu      sync.Mutex
	state   State
	pending bool
}

// New creates an Engine positioned at the resolved start index, with
// the score history restored from the snapshot when one exists.
func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil || cfg.Catalog.Len() == 0 {
		return nil, catalog.ErrEmptyCatalog
	}
	if cfg.Submitter == nil {
		return nil, errors.New("progression: submitter is required")
	}

	e := &Engine{
		cat:       cfg.Catalog,
		submitter: cfg.Submitter,
		progress:  cfg.Progress,
		now:       time.Now,
		state: State{
			Phase:        PhaseForward,
			ForwardIndex: ResolveStart(cfg.Snapshot, cfg.DeepLink, cfg.Catalog),
		},
	}
	if cfg.Snapshot != nil {
		e.state.ScoreHistory = append([]float64(nil), cfg.Snapshot.Scores...)
	}
	return e, nil
}

// Current returns the activity awaiting an attempt, or ok=false once
// the lesson is completed.
func (e *Engine) Current() (catalog.Activity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

// State returns a copy of the progression state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Submit resolves the current activity with the learner's submission.
// It blocks on the external grading call; on failure the state is
// untouched and the same activity stays current. Exactly one attempt
// may be pending at a time.
func (e *Engine) Submit(ctx context.Context, sub Submission) (Step, error) {
	e.mu.Lock()
	if e.state.Phase == PhaseCompleted {
		e.mu.Unlock()
		return Step{}, ErrLessonCompleted
	}
	if e.pending {
		e.mu.Unlock()
		return Step{}, ErrAttemptPending
	}
	act, ok := e.currentLocked()
	if !ok {
		e.mu.Unlock()
		return Step{}, ErrLessonCompleted
	}
	e.pending = true
	e.mu.Unlock()

	res, err := e.submitter.SubmitAttempt(ctx, api.AttemptRequest{
		ActivityID: act.ID,
		LessonID:   e.cat.LessonID,
		Locale:     e.cat.Locale,
		Skipped:    sub.Skipped,
		Payload:    sub.Payload,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = false

	if err != nil {
		return Step{}, &AttemptError{ActivityID: act.ID, Err: err}
	}
	return e.applyLocked(ctx, act, sub, res), nil
}

// Preempt persists the snapshot best-effort so a forced exit loses
// nothing. Review-phase progress is not durable, so only the forward
// phase persists. Safe to call at any time, including after completion.
func (e *Engine) Preempt(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase == PhaseForward {
		e.persistLocked(ctx)
	}
}

// applyLocked advances the state machine by one resolution event.
func (e *Engine) applyLocked(ctx context.Context, act catalog.Activity, sub Submission, res api.AttemptResult) Step {
	st := &e.state
	st.ScoreHistory = append(st.ScoreHistory, res.Score)

	step := Step{
		Score:   res.Score,
		Passed:  res.Passed,
		Skipped: sub.Skipped,
	}

	switch st.Phase {
	case PhaseForward:
		if sub.Skipped {
			st.enqueueReview(act.ID)
		}
		if next := st.ForwardIndex + 1; next < e.cat.Len() {
			st.ForwardIndex = next
			e.persistLocked(ctx)
		} else if len(st.ReviewQueue) > 0 {
			st.Phase = PhaseReview
			st.ReviewIndex = 0
			// Review progress is not resumable; the snapshot dies here.
			e.clearSnapshotLocked(ctx)
		} else {
			st.Phase = PhaseCompleted
		}

	case PhaseReview:
		if next := st.ReviewIndex + 1; next < len(st.ReviewQueue) {
			st.ReviewIndex = next
		} else {
			st.Phase = PhaseCompleted
		}
	}

	step.Phase = st.Phase
	step.Completed = st.Phase == PhaseCompleted
	if !step.Completed {
		step.Next, step.HasNext = e.currentLocked()
		switch st.Phase {
		case PhaseForward:
			step.Position, step.Total = st.ForwardIndex+1, e.cat.Len()
		case PhaseReview:
			step.Position, step.Total = st.ReviewIndex+1, len(st.ReviewQueue)
		}
	}
	return step
}

func (e *Engine) currentLocked() (catalog.Activity, bool) {
	switch e.state.Phase {
	case PhaseForward:
		return e.cat.At(e.state.ForwardIndex), true
	case PhaseReview:
		return e.cat.ByID(e.state.ReviewQueue[e.state.ReviewIndex])
	}
	return catalog.Activity{}, false
}

// persistLocked writes the snapshot and the last-lesson memento.
// Persistence is best-effort everywhere: a write failure must never
// block the interactive flow, so errors are dropped.
func (e *Engine) persistLocked(ctx context.Context) {
	if e.progress == nil {
		return
	}
	snap := e.snapshotLocked()
	key := progress.Key{LessonID: e.cat.LessonID, Locale: e.cat.Locale}
	_ = e.progress.Set(ctx, key, snap)
	_ = e.progress.SetLast(ctx, &progress.LastLesson{
		LessonID: e.cat.LessonID,
		Locale:   e.cat.Locale,
		Snapshot: *snap,
	})
}

func (e *Engine) clearSnapshotLocked(ctx context.Context) {
	if e.progress == nil {
		return
	}
	_ = e.progress.Delete(ctx, progress.Key{LessonID: e.cat.LessonID, Locale: e.cat.Locale})
}

func (e *Engine) snapshotLocked() *progress.Snapshot {
	idx := e.state.ForwardIndex
	if idx < 0 {
		idx = 0
	}
	if last := e.cat.Len() - 1; idx > last {
		idx = last
	}
	return &progress.Snapshot{
		Index:      idx,
		ActivityID: e.cat.At(idx).ID,
		Scores:     append([]float64(nil), e.state.ScoreHistory...),
		UpdatedAt:  e.now().UnixMilli(),
	}
}
