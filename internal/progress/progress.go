// Package progress defines the durable, resumable lesson snapshot and
// the store contract it is persisted through. Any durable medium can
// satisfy Repo; the module ships a SQLite implementation (internal/store)
// and a plain-file one (FileStore).
package progress

import "context"

// Key scopes a snapshot to one lesson in one locale.
type Key struct {
	LessonID string
	Locale   string
}

// Snapshot is the durable subset of progression state.
//
// It is written on every forward-pass transition only. Entering the
// review pass deletes it, so a reload mid-review restarts the next run
// from forward index 0. That data-loss window is intentional and kept
// from the original flow.
type Snapshot struct {
	Index      int       `json:"index"`
	ActivityID string    `json:"activity_id,omitempty"`
	Scores     []float64 `json:"scores"`
	UpdatedAt  int64     `json:"updated_at"` // epoch ms
}

// LastLesson remembers the most recently played lesson so the dashboard
// can offer to continue where the learner left off.
type LastLesson struct {
	LessonID string `json:"lesson_id"`
	Locale   string `json:"locale"`
	Snapshot
}

// Repo is the snapshot store contract. Get and Last return (nil, nil)
// when nothing is saved.
type Repo interface {
	Get(ctx context.Context, key Key) (*Snapshot, error)
	Set(ctx context.Context, key Key, snap *Snapshot) error
	Delete(ctx context.Context, key Key) error

	SetLast(ctx context.Context, last *LastLesson) error
	Last(ctx context.Context) (*LastLesson, error)
}
