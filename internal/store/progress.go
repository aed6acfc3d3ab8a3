package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jtandoc/speakquest/internal/progress"
)

// ProgressRepo implements progress.Repo on the SQLite store.
type ProgressRepo struct {
	db *sql.DB
}

var _ progress.Repo = (*ProgressRepo)(nil)

func (r *ProgressRepo) Get(ctx context.Context, key progress.Key) (*progress.Snapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT idx, activity_id, scores, updated_at FROM progress WHERE lesson_id = ? AND locale = ?`,
		key.LessonID, key.Locale,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return snap, nil
}

func (r *ProgressRepo) Set(ctx context.Context, key progress.Key, snap *progress.Snapshot) error {
	scores, err := marshalScores(snap.Scores)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO progress (lesson_id, locale, idx, activity_id, scores, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lesson_id, locale) DO UPDATE SET
		 idx = excluded.idx, activity_id = excluded.activity_id,
		 scores = excluded.scores, updated_at = excluded.updated_at`,
		key.LessonID, key.Locale, snap.Index, nullable(snap.ActivityID), scores, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *ProgressRepo) Delete(ctx context.Context, key progress.Key) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM progress WHERE lesson_id = ? AND locale = ?`,
		key.LessonID, key.Locale,
	)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (r *ProgressRepo) SetLast(ctx context.Context, last *progress.LastLesson) error {
	scores, err := marshalScores(last.Scores)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO last_lesson (id, lesson_id, locale, idx, activity_id, scores, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 lesson_id = excluded.lesson_id, locale = excluded.locale, idx = excluded.idx,
		 activity_id = excluded.activity_id, scores = excluded.scores, updated_at = excluded.updated_at`,
		last.LessonID, last.Locale, last.Index, nullable(last.ActivityID), scores, last.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save last lesson: %w", err)
	}
	return nil
}

func (r *ProgressRepo) Last(ctx context.Context) (*progress.LastLesson, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT lesson_id, locale, idx, activity_id, scores, updated_at FROM last_lesson WHERE id = 1`,
	)
	var (
		last       progress.LastLesson
		activityID sql.NullString
		scores     string
	)
	err := row.Scan(&last.LessonID, &last.Locale, &last.Index, &activityID, &scores, &last.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last lesson: %w", err)
	}
	last.ActivityID = activityID.String
	if err := json.Unmarshal([]byte(scores), &last.Scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return &last, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*progress.Snapshot, error) {
	var (
		snap       progress.Snapshot
		activityID sql.NullString
		scores     string
	)
	if err := row.Scan(&snap.Index, &activityID, &scores, &snap.UpdatedAt); err != nil {
		return nil, err
	}
	snap.ActivityID = activityID.String
	if err := json.Unmarshal([]byte(scores), &snap.Scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return &snap, nil
}

func marshalScores(scores []float64) (string, error) {
	if scores == nil {
		scores = []float64{}
	}
	raw, err := json.Marshal(scores)
	if err != nil {
		return "", fmt.Errorf("encode scores: %w", err)
	}
	return string(raw), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
