package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProgressStoreContract runs a suite of tests to verify that a ProgressStore
// implementation adheres to the defined interface contract.
func RunProgressStoreContract(t *testing.T, store ProgressStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newProgress := func(id string, index int) *domain.Progress {
		return &domain.Progress{
			SessionID: id,
			TourID:    "contract-tour",
			StepIndex: index,
			Phase:     domain.PhaseActive,
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		progress := newProgress(sessionID, 4)

		err := store.Save(ctx, sessionID, progress)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, progress.TourID, loaded.TourID)
		assert.Equal(t, 4, loaded.StepIndex)
		assert.Equal(t, domain.PhaseActive, loaded.Phase)
		assert.True(t, progress.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, newProgress(sessionID, 1)))
		require.NoError(t, store.Save(ctx, sessionID, newProgress(sessionID, 2)))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.StepIndex)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrProgressNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newProgress(sessionID, 0))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrProgressNotFound, "Load after Delete should return ErrProgressNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Delete is idempotent")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newProgress(id1, 0))
		_ = store.Save(ctx, id2, newProgress(id2, 0))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunCompletionRecorderContract verifies a CompletionRecorder implementation.
func RunCompletionRecorderContract(t *testing.T, rec CompletionRecorder) {
	ctx := context.Background()
	user := "contract-user-" + time.Now().Format("20060102150405")

	t.Run("Unknown user is not completed", func(t *testing.T) {
		done, err := rec.IsCompleted(ctx, user, "tour")
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("Mark is idempotent", func(t *testing.T) {
		require.NoError(t, rec.MarkCompleted(ctx, user, "tour"))
		require.NoError(t, rec.MarkCompleted(ctx, user, "tour"))

		done, err := rec.IsCompleted(ctx, user, "tour")
		require.NoError(t, err)
		assert.True(t, done)

		other, err := rec.IsCompleted(ctx, user, "another-tour")
		require.NoError(t, err)
		assert.False(t, other, "flags are scoped per tour")
	})

	t.Run("Reset", func(t *testing.T) {
		require.NoError(t, rec.Reset(ctx, user, "tour"))

		done, err := rec.IsCompleted(ctx, user, "tour")
		require.NoError(t, err)
		assert.False(t, done)

		assert.NoError(t, rec.Reset(ctx, user, "tour"), "Reset of a missing flag is not an error")
	})
}
