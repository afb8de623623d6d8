package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)

	ports.RunProgressStoreContract(t, store)
	ports.RunCompletionRecorderContract(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Hour), redis.WithPrefix("test:"))
	ctx := context.Background()

	p := &domain.Progress{SessionID: "s1", TourID: "tour", StepIndex: 4, Phase: domain.PhaseActive}
	require.NoError(t, store.Save(ctx, "s1", p))

	assert.True(t, mr.Exists("test:progress:s1"))
	assert.Equal(t, time.Hour, mr.TTL("test:progress:s1"))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sessions)

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrProgressNotFound)
}

func TestRedisStore_CompletionOutlivesProgress(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.MarkCompleted(ctx, "user-1", "post-onboarding"))
	mr.FastForward(time.Hour)

	done, err := store.IsCompleted(ctx, "user-1", "post-onboarding")
	require.NoError(t, err)
	assert.True(t, done)
}
