package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileStore is a Repo backed by one JSON file per snapshot. It serves
// setups without a database and keeps tests away from SQLite.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

func (s *FileStore) snapshotPath(key Key) string {
	return filepath.Join(s.dir, fmt.Sprintf("progress-%s-%s.json", key.LessonID, key.Locale))
}

func (s *FileStore) lastPath() string {
	return filepath.Join(s.dir, "last-lesson.json")
}

func (s *FileStore) Get(_ context.Context, key Key) (*Snapshot, error) {
	raw, err := afero.ReadFile(s.fs, s.snapshotPath(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *FileStore) Set(_ context.Context, key Key, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.snapshotPath(key), raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key Key) error {
	err := s.fs.Remove(s.snapshotPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) SetLast(_ context.Context, last *LastLesson) error {
	raw, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("encode last lesson: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.lastPath(), raw, 0o644); err != nil {
		return fmt.Errorf("write last lesson: %w", err)
	}
	return nil
}

func (s *FileStore) Last(_ context.Context) (*LastLesson, error) {
	raw, err := afero.ReadFile(s.fs, s.lastPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last lesson: %w", err)
	}
	var last LastLesson
	if err := json.Unmarshal(raw, &last); err != nil {
		return nil, fmt.Errorf("decode last lesson: %w", err)
	}
	return &last, nil
}
