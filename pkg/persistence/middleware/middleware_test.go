package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/aretw0/waypoint/pkg/ports"
)

var key = []byte("0123456789abcdef0123456789abcdef")

func TestPseudonymizer_RecorderContract(t *testing.T) {
	p, err := middleware.NewPseudonymizer(key)
	require.NoError(t, err)
	ports.RunCompletionRecorderContract(t, p.Recorder(memory.NewRecorder()))
}

func TestPseudonymizer_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := middleware.NewPseudonymizer(key)
	require.NoError(t, err)
	store := p.Middleware()(memory.NewStore())

	require.NoError(t, store.Save(ctx, "s1", &domain.Progress{SessionID: "s1", TourID: "t", StepIndex: 1}))
	require.NoError(t, store.Save(ctx, "s1", &domain.Progress{SessionID: "s1", TourID: "t", StepIndex: 3}))
	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.StepIndex)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrProgressNotFound)
}

func TestPseudonymizer_HidesIDs(t *testing.T) {
	ctx := context.Background()
	p, err := middleware.NewPseudonymizer(key)
	require.NoError(t, err)

	backend := memory.NewStore()
	store := p.Store(backend)
	require.NoError(t, store.Save(ctx, "ada@example.com", &domain.Progress{SessionID: "ada@example.com", TourID: "t", StepIndex: 2}))

	ids, err := backend.List(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, p.Pseudonym("ada@example.com"), ids[0])
	assert.NotContains(t, ids[0], "ada")

	raw, err := backend.Load(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], raw.SessionID)

	got, err := store.Load(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.SessionID)
	assert.Equal(t, 2, got.StepIndex)

	t.Run("other keys cannot read", func(t *testing.T) {
		other, err := middleware.NewPseudonymizer([]byte("fedcba9876543210fedcba9876543210"))
		require.NoError(t, err)
		_, err = other.Store(backend).Load(ctx, "ada@example.com")
		assert.ErrorIs(t, err, domain.ErrProgressNotFound)
	})

	t.Run("recorder", func(t *testing.T) {
		rec := memory.NewRecorder()
		require.NoError(t, p.Recorder(rec).MarkCompleted(ctx, "ada@example.com", "t"))
		done, err := rec.IsCompleted(ctx, "ada@example.com", "t")
		require.NoError(t, err)
		assert.False(t, done, "backend only knows the pseudonym")
		done, err = rec.IsCompleted(ctx, p.Pseudonym("ada@example.com"), "t")
		require.NoError(t, err)
		assert.True(t, done)
	})
}

func TestNewPseudonymizer_ShortKey(t *testing.T) {
	_, err := middleware.NewPseudonymizer([]byte("short"))
	assert.Error(t, err)
}
