package file

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// completedDir holds one empty marker file per completed (user, tour) pair.
const completedDir = "completed"

func (s *Store) markerPath(userID, tourID string) string {
	name := url.PathEscape(userID) + "@" + url.PathEscape(tourID)
	return filepath.Join(s.BasePath, completedDir, name)
}

// MarkCompleted implements ports.CompletionRecorder.
func (s *Store) MarkCompleted(ctx context.Context, userID, tourID string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	path := s.markerPath(userID, tourID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to ensure completion directory: %w", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("failed to write completion marker: %w", err)
	}
	return nil
}

// IsCompleted implements ports.CompletionRecorder.
func (s *Store) IsCompleted(ctx context.Context, userID, tourID string) (bool, error) {
	_, err := os.Stat(s.markerPath(userID, tourID))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read completion marker: %w", err)
	}
}

// Reset implements ports.CompletionRecorder.
func (s *Store) Reset(ctx context.Context, userID, tourID string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.markerPath(userID, tourID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove completion marker: %w", err)
	}
	return nil
}
