package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/jtandoc/speakquest/internal/api"
	"github.com/jtandoc/speakquest/internal/progress"
)

// Completer performs the external lesson-completion call.
type Completer interface {
	CompleteLesson(ctx context.Context, lessonID string) (api.Completion, error)
}

// Result is the outcome of finalizing a lesson.
type Result struct {
	Stars        int
	Mean         float64
	NextLessonID string
}

// Mean averages the score history. An empty history means a
// zero-attempt lesson, which counts as trivially complete (100).
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 100
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// Stars maps a mean score to the 0-3 star grade. Boundaries are
// inclusive on the lower bound.
func Stars(mean float64) int {
	switch {
	case mean >= 90:
		return 3
	case mean >= 60:
		return 2
	case mean >= 30:
		return 1
	}
	return 0
}

// Finalizer computes the completion grade, notifies the server, and
// clears the resumable snapshot.
type Finalizer struct {
	completer Completer
	progress  progress.Repo
	now       func() time.Time
}

// NewFinalizer creates a Finalizer. progress may be nil when nothing
// was persisted.
func NewFinalizer(completer Completer, repo progress.Repo) *Finalizer {
	return &Finalizer{completer: completer, progress: repo, now: time.Now}
}

// Finalize closes out a completed lesson. The completion call failure
// is returned so the caller can retry; snapshot cleanup stays
// best-effort.
func (f *Finalizer) Finalize(ctx context.Context, lessonID, locale string, scores []float64) (Result, error) {
	comp, err := f.completer.CompleteLesson(ctx, lessonID)
	if err != nil {
		return Result{}, fmt.Errorf("complete lesson %s: %w", lessonID, err)
	}

	mean := Mean(scores)
	res := Result{
		Stars:        Stars(mean),
		Mean:         mean,
		NextLessonID: comp.NextLessonID,
	}

	if f.progress != nil {
		_ = f.progress.Delete(ctx, progress.Key{LessonID: lessonID, Locale: locale})
	}
	return res, nil
}
