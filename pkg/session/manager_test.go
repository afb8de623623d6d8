package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryFactory(opened *atomic.Int32, closed *atomic.Int32) session.Factory {
	return func(ctx context.Context, id string, opts ...waypoint.Option) (*session.Session, error) {
		opened.Add(1)
		doc := memory.NewDocument()
		doc.Add("#a")
		doc.Add("#b")
		nav := memory.NewNavigator("/")
		def := domain.NewDefinition("sessions", []domain.Step{
			{Target: "#a"},
			{Target: "#b", IsLastStep: true},
		})
		base := []waypoint.Option{
			waypoint.WithDefinition(def),
			waypoint.WithSessionID(id),
			waypoint.WithCompletionDelay(0),
			waypoint.WithTargetValidation(0, false),
		}
		eng, err := waypoint.New(ctx, "", doc, nav, append(base, opts...)...)
		if err != nil {
			return nil, err
		}
		return &session.Session{
			Engine:    eng,
			Document:  doc,
			Navigator: nav,
			OnClose: func() error {
				closed.Add(1)
				return nil
			},
		}, nil
	}
}

func TestManager_Open(t *testing.T) {
	ctx := context.Background()
	var opened, closed atomic.Int32
	mgr := session.NewManager(memoryFactory(&opened, &closed))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := mgr.Open(ctx, "ada")
			assert.NoError(t, err)
			assert.Equal(t, "ada", s.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opened.Load(), "concurrent opens create one engine")
	assert.Equal(t, []string{"ada"}, mgr.List())

	t.Run("sessions are isolated", func(t *testing.T) {
		_, err := mgr.Open(ctx, "grace")
		require.NoError(t, err)

		require.NoError(t, mgr.Do(ctx, "ada", func(ctx context.Context, s *session.Session) error {
			return s.Engine.Start(ctx)
		}))
		grace, err := mgr.Get("grace")
		require.NoError(t, err)
		assert.False(t, grace.Engine.IsRunning())
	})

	t.Run("close tears the engine down", func(t *testing.T) {
		require.NoError(t, mgr.Close(ctx, "ada"))
		assert.Equal(t, int32(1), closed.Load())
		_, err := mgr.Get("ada")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
		assert.NoError(t, mgr.Close(ctx, "ada"))
	})

	t.Run("do on unknown session", func(t *testing.T) {
		err := mgr.Do(ctx, "nobody", func(context.Context, *session.Session) error { return nil })
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	require.NoError(t, mgr.Shutdown(ctx))
	assert.Empty(t, mgr.List())
	assert.Equal(t, int32(2), closed.Load())
}

func TestManager_FactoryError(t *testing.T) {
	boom := errors.New("no browser")
	mgr := session.NewManager(func(context.Context, string, ...waypoint.Option) (*session.Session, error) {
		return nil, boom
	})
	_, err := mgr.Open(context.Background(), "ada")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mgr.List())
}

func TestManager_EngineOptions(t *testing.T) {
	ctx := context.Background()
	var opened, closed atomic.Int32
	var shown atomic.Int32
	var observed []string
	mgr := session.NewManager(memoryFactory(&opened, &closed),
		session.WithEngineOptions(waypoint.WithLifecycleHooks(domain.LifecycleHooks{
			OnStepEnter: func(context.Context, *domain.StepEvent) { shown.Add(1) },
		})),
		session.WithObserver(
			func(s *session.Session) { observed = append(observed, "open:"+s.ID) },
			func(s *session.Session) { observed = append(observed, "close:"+s.ID) },
		),
	)

	s, err := mgr.Open(ctx, "ada")
	require.NoError(t, err)
	require.NoError(t, s.Engine.Start(ctx))
	assert.Equal(t, int32(1), shown.Load())

	require.NoError(t, mgr.Close(ctx, "ada"))
	assert.Equal(t, []string{"open:ada", "close:ada"}, observed)
}

func TestManager_Serializes(t *testing.T) {
	ctx := context.Background()
	var opened, closed atomic.Int32
	mgr := session.NewManager(memoryFactory(&opened, &closed))
	_, err := mgr.Open(ctx, "ada")
	require.NoError(t, err)

	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.Do(ctx, "ada", func(context.Context, *session.Session) error {
				n := inside.Add(1)
				if n > peak.Load() {
					peak.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var opened, closed atomic.Int32
	mgr := session.NewManager(memoryFactory(&opened, &closed),
		session.WithLocker(redisAdapter.NewLocker(client, "waypoint:")),
		session.WithLockTTL(time.Second),
	)

	ctx := context.Background()
	require.NoError(t, mgr.WithLock(ctx, "ada", func(context.Context) error {
		assert.True(t, mr.Exists("waypoint:lock:ada"))
		return nil
	}))
	assert.False(t, mr.Exists("waypoint:lock:ada"))
}
