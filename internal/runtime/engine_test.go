package runtime_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sidebarNav = `[data-joyride="sidebar-nav"]`

func threeSteps() *domain.Definition {
	return domain.NewDefinition("three", []domain.Step{
		{Title: "One", Target: "#a", Route: "/dashboard"},
		{Title: "Two", Target: "#b", Route: "/dashboard"},
		{Title: "Three", Target: "#c", Route: "/dashboard", IsLastStep: true},
	})
}

type fixture struct {
	engine *runtime.Engine
	doc    *memory.Document
	nav    *memory.Navigator
	store  *memory.Store
	rec    *memory.Recorder
}

func newFixture(t *testing.T, def *domain.Definition, opts ...runtime.Option) *fixture {
	t.Helper()
	f := &fixture{
		doc:   memory.NewDocument(),
		nav:   memory.NewNavigator("/dashboard"),
		store: memory.NewStore(),
		rec:   memory.NewRecorder(),
	}
	base := []runtime.Option{
		runtime.WithSessionID("sess-1"),
		runtime.WithElementTimeout(150 * time.Millisecond),
		runtime.WithCompletionDelay(0),
		runtime.WithCleanupDelays([]time.Duration{10 * time.Millisecond}),
		runtime.WithProgressStore(f.store),
		runtime.WithCompletionRecorder(f.rec),
	}
	f.engine = runtime.NewEngine(def, f.doc, f.nav, append(base, opts...)...)
	t.Cleanup(func() { _ = f.engine.Close() })
	return f
}

func (f *fixture) add(selectors ...string) {
	for _, s := range selectors {
		f.doc.Add(s)
	}
}

func TestEngine_Start(t *testing.T) {
	f := newFixture(t, threeSteps())
	f.add("#a", "#b", "#c")

	var shown []int
	f.engine.OnStepChange(func(s domain.Step) { shown = append(shown, s.Index) })

	require.NoError(t, f.engine.Start(context.Background()))

	st := f.engine.State()
	assert.True(t, st.Running)
	assert.Equal(t, domain.PhaseActive, st.Phase)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.False(t, st.Navigating)
	assert.Equal(t, []int{0}, shown)

	t.Run("second start is a no-op", func(t *testing.T) {
		require.NoError(t, f.engine.Start(context.Background()))
		assert.Equal(t, []int{0}, shown)
	})
}

func TestEngine_StartAtOutOfRange(t *testing.T) {
	f := newFixture(t, threeSteps())
	err := f.engine.StartAt(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrInvalidStep)
	assert.False(t, f.engine.IsRunning())
}

func TestEngine_NextWaitsForLateTarget(t *testing.T) {
	f := newFixture(t, threeSteps(), runtime.WithElementTimeout(time.Second))
	f.add("#a", "#c")
	require.NoError(t, f.engine.Start(context.Background()))

	time.AfterFunc(200*time.Millisecond, func() { f.doc.Add("#b") })

	start := time.Now()
	require.NoError(t, f.engine.Next(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 1, f.engine.State().CurrentIndex)
	assert.Equal(t, 0, f.engine.ActiveWaits())
	assert.Equal(t, 0, f.doc.ChildSubscriptions())
}

func TestEngine_NextSkipsMissingTarget(t *testing.T) {
	var skipped []int
	f := newFixture(t, threeSteps(), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStepSkipped: func(ctx context.Context, e *domain.StepEvent) { skipped = append(skipped, e.Index) },
	}))
	f.add("#a", "#c")
	require.NoError(t, f.engine.Start(context.Background()))

	require.NoError(t, f.engine.Next(context.Background()))

	assert.Equal(t, 2, f.engine.State().CurrentIndex)
	assert.Equal(t, []int{1}, skipped)
	assert.True(t, f.engine.IsRunning())
}

func TestEngine_FinishesEarlyWhenNothingRemains(t *testing.T) {
	f := newFixture(t, threeSteps())
	f.add("#a")
	require.NoError(t, f.engine.Start(context.Background()))

	var completed atomic.Int32
	f.engine.OnComplete(func() { completed.Add(1) })

	require.NoError(t, f.engine.Next(context.Background()))

	assert.False(t, f.engine.IsRunning())
	assert.Equal(t, domain.PhaseCompleted, f.engine.State().Phase)
	assert.Equal(t, int32(1), completed.Load())
}

func TestEngine_Previous(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op on first step", func(t *testing.T) {
		f := newFixture(t, threeSteps())
		f.add("#a", "#b", "#c")
		require.NoError(t, f.engine.Start(ctx))
		require.NoError(t, f.engine.Previous(ctx))
		assert.Equal(t, 0, f.engine.State().CurrentIndex)
	})

	t.Run("skips removed targets backwards", func(t *testing.T) {
		f := newFixture(t, threeSteps())
		f.add("#a", "#b", "#c")
		require.NoError(t, f.engine.Start(ctx))
		require.NoError(t, f.engine.Next(ctx))
		require.NoError(t, f.engine.Next(ctx))
		require.Equal(t, 2, f.engine.State().CurrentIndex)

		f.doc.Remove("#b")
		require.NoError(t, f.engine.Previous(ctx))
		assert.Equal(t, 0, f.engine.State().CurrentIndex)
	})

	t.Run("keeps current step when nothing earlier exists", func(t *testing.T) {
		f := newFixture(t, threeSteps())
		f.add("#a", "#b", "#c")
		require.NoError(t, f.engine.Start(ctx))
		require.NoError(t, f.engine.Next(ctx))

		f.doc.Remove("#a")
		require.NoError(t, f.engine.Previous(ctx))
		assert.Equal(t, 1, f.engine.State().CurrentIndex)
		assert.True(t, f.engine.IsRunning())
	})
}

func TestEngine_GoTo(t *testing.T) {
	f := newFixture(t, threeSteps())
	f.add("#a", "#b", "#c")
	require.NoError(t, f.engine.Start(context.Background()))

	require.NoError(t, f.engine.GoTo(context.Background(), 2))
	assert.Equal(t, 2, f.engine.State().CurrentIndex)

	assert.ErrorIs(t, f.engine.GoTo(context.Background(), 7), domain.ErrInvalidStep)
}

func TestEngine_RouteIsReadyBeforeStepChange(t *testing.T) {
	def := domain.NewDefinition("routes", []domain.Step{
		{Target: "#home", Route: "/dashboard", NextRoute: "/my-deck"},
		{Target: "#deck", Route: "/my-deck", IsLastStep: true},
	})
	f := newFixture(t, def)
	f.add("#home")
	f.nav.OnRoute(func(route string) {
		if route == "/my-deck" {
			f.doc.Add("#deck")
		}
	})
	require.NoError(t, f.engine.Start(context.Background()))

	var routeAtChange string
	f.engine.OnStepChange(func(s domain.Step) { routeAtChange = f.nav.Route() })

	require.NoError(t, f.engine.Next(context.Background()))

	assert.Equal(t, 1, f.engine.State().CurrentIndex)
	assert.Equal(t, "/my-deck", routeAtChange)
	assert.Equal(t, []string{"/my-deck"}, f.nav.Requests())
	assert.Len(t, f.nav.History(), 1, "tour navigation replaces history")
}

func TestEngine_NavigationFailureKeepsStep(t *testing.T) {
	def := domain.NewDefinition("routes", []domain.Step{
		{Target: "#home", Route: "/dashboard", NextRoute: "/my-deck"},
		{Target: "#deck", Route: "/my-deck", IsLastStep: true},
	})
	f := newFixture(t, def)
	f.add("#home", "#deck")
	require.NoError(t, f.engine.Start(context.Background()))

	f.nav.FailWith(errors.New("router unmounted"))
	err := f.engine.Next(context.Background())

	assert.ErrorIs(t, err, domain.ErrNavigation)
	st := f.engine.State()
	assert.True(t, st.Running)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.False(t, st.Navigating)
}

func TestEngine_ClickGatedStep(t *testing.T) {
	def := domain.NewDefinition("gated", []domain.Step{
		{Target: "#deck-link", Route: "/dashboard", NextRoute: "/my-deck", WaitForUserClick: true},
		{Target: "#deck", Route: "/my-deck", IsLastStep: true},
	})
	f := newFixture(t, def)
	f.add("#deck-link")
	f.nav.OnRoute(func(route string) {
		if route == "/my-deck" {
			f.doc.Add("#deck")
		}
	})
	require.NoError(t, f.engine.Start(context.Background()))

	require.NoError(t, f.engine.Next(context.Background()))
	assert.Equal(t, 0, f.engine.State().CurrentIndex, "next is ignored while gated")

	f.nav.Visit("/my-deck")
	require.Eventually(t, func() bool {
		return f.engine.State().CurrentIndex == 1
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, f.nav.Requests(), "the learner navigated, not the tour")
}

func TestEngine_ClickGatedIgnoresTourNavigation(t *testing.T) {
	def := domain.NewDefinition("gated", []domain.Step{
		{Target: "#a", Route: "/dashboard", WaitForUserClick: true},
		{Target: "#b", Route: "/dashboard"},
		{Target: "#c", Route: "/dashboard", IsLastStep: true},
	})
	f := newFixture(t, def)
	f.add("#a", "#b", "#c")
	f.nav.Visit("/home")

	require.NoError(t, f.engine.Start(context.Background()))
	require.Equal(t, []string{"/dashboard"}, f.nav.Requests())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.engine.State().CurrentIndex, "the tour's own navigation is not a learner click")

	require.NoError(t, f.engine.NotifyRoute(context.Background(), "/dashboard"))
	assert.Equal(t, 1, f.engine.State().CurrentIndex)
}

func TestEngine_AutoAdvanceReturnsWhenNextRouteFails(t *testing.T) {
	def := domain.NewDefinition("routes", []domain.Step{
		{Target: "#home", Route: "/dashboard", NextRoute: "/my-deck"},
		{Target: "#deck", Route: "/settings", IsLastStep: true},
	})
	f := newFixture(t, def)
	f.add("#home", "#deck")
	require.NoError(t, f.engine.Start(context.Background()))

	f.nav.FailOn("/settings", errors.New("route guard"))
	err := f.engine.Next(context.Background())

	assert.ErrorIs(t, err, domain.ErrNavigation)
	assert.Equal(t, 0, f.engine.State().CurrentIndex)
	assert.Equal(t, "/dashboard", f.nav.Route())
	assert.Equal(t, []string{"/my-deck", "/dashboard"}, f.nav.Requests())
}

func TestEngine_ClickGatedTargetWaitsWithoutBound(t *testing.T) {
	def := domain.NewDefinition("gated", []domain.Step{
		{Target: "#a", Route: "/dashboard"},
		{Target: "#late-link", Route: "/dashboard", WaitForUserClick: true, IsLastStep: true},
	})
	f := newFixture(t, def, runtime.WithElementTimeout(30*time.Millisecond))
	f.add("#a")
	require.NoError(t, f.engine.Start(context.Background()))

	require.NoError(t, f.engine.Next(context.Background()), "next returns once the bounded wait gives up")
	assert.Equal(t, 0, f.engine.State().CurrentIndex)
	assert.False(t, f.engine.State().Navigating)
	require.Eventually(t, func() bool { return f.engine.ActiveWaits() == 1 }, time.Second, 5*time.Millisecond)

	f.doc.Add("#late-link")
	require.Eventually(t, func() bool {
		return f.engine.State().CurrentIndex == 1
	}, time.Second, 10*time.Millisecond)
}

func TestEngine_ReentrantNextIgnored(t *testing.T) {
	f := newFixture(t, threeSteps(), runtime.WithElementTimeout(time.Second))
	f.add("#a", "#c")
	require.NoError(t, f.engine.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- f.engine.Next(context.Background()) }()
	require.Eventually(t, func() bool { return f.engine.ActiveWaits() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, f.engine.State().Navigating)

	require.NoError(t, f.engine.Next(context.Background()))
	f.doc.Add("#b")

	require.NoError(t, <-done)
	assert.Equal(t, 1, f.engine.State().CurrentIndex, "the ignored call did not advance twice")
}

func TestEngine_Skip(t *testing.T) {
	f := newFixture(t, threeSteps())
	f.add("#a", "#b", "#c")

	var completed, skipped atomic.Int32
	f.engine.OnComplete(func() { completed.Add(1) })
	f.engine.OnSkip(func() { skipped.Add(1) })

	require.NoError(t, f.engine.Start(context.Background()))
	require.NoError(t, f.engine.Skip(context.Background()))
	require.NoError(t, f.engine.Skip(context.Background()))

	assert.Equal(t, domain.PhaseSkipped, f.engine.State().Phase)
	assert.False(t, f.engine.IsRunning())
	assert.Equal(t, int32(0), completed.Load())
	assert.Equal(t, int32(1), skipped.Load())
	assert.Empty(t, f.nav.Requests(), "skip never navigates")

	done, err := f.rec.IsCompleted(context.Background(), "sess-1", "three")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = f.store.Load(context.Background(), "sess-1")
	assert.ErrorIs(t, err, domain.ErrProgressNotFound)
}

func TestEngine_Finish(t *testing.T) {
	ctx := context.Background()

	t.Run("completes once", func(t *testing.T) {
		f := newFixture(t, threeSteps())
		f.add("#a", "#b", "#c")
		var completed atomic.Int32
		f.engine.OnComplete(func() { completed.Add(1) })

		require.NoError(t, f.engine.Start(ctx))
		require.NoError(t, f.engine.Finish(ctx))
		require.NoError(t, f.engine.Finish(ctx))

		assert.Equal(t, int32(1), completed.Load())
		done, err := f.rec.IsCompleted(ctx, "sess-1", "three")
		require.NoError(t, err)
		assert.True(t, done)
	})

	t.Run("never started", func(t *testing.T) {
		f := newFixture(t, threeSteps())
		assert.ErrorIs(t, f.engine.Finish(ctx), domain.ErrNotRunning)
	})

	t.Run("next on last step follows next route", func(t *testing.T) {
		def := domain.NewDefinition("final", []domain.Step{
			{Target: "#a", Route: "/dashboard", NextRoute: "/progress", IsLastStep: true},
		})
		f := newFixture(t, def, runtime.WithCompletionDelay(20*time.Millisecond))
		f.add("#a")
		var completed atomic.Int32
		f.engine.OnComplete(func() { completed.Add(1) })

		require.NoError(t, f.engine.Start(ctx))
		require.NoError(t, f.engine.Next(ctx))

		assert.Equal(t, "/progress", f.nav.Route())
		assert.Equal(t, int32(1), completed.Load())
		assert.Equal(t, domain.PhaseCompleted, f.engine.State().Phase)
	})

	t.Run("restart clears completion flag", func(t *testing.T) {
		f := newFixture(t, threeSteps())
		f.add("#a", "#b", "#c")
		require.NoError(t, f.engine.Start(ctx))
		require.NoError(t, f.engine.Finish(ctx))
		require.NoError(t, f.engine.Start(ctx))

		done, err := f.rec.IsCompleted(ctx, "sess-1", "three")
		require.NoError(t, err)
		assert.False(t, done)
		assert.True(t, f.engine.IsRunning())
	})
}

func TestEngine_CleanupAfterStop(t *testing.T) {
	f := newFixture(t, threeSteps())
	f.add("#a", "#b", "#c")
	f.doc.Add(sidebarNav, memory.WithStyle("height", "100px"))
	require.NoError(t, f.engine.Start(context.Background()))

	f.doc.SetStyle(sidebarNav, "height", "40px")
	assert.Equal(t, "40px", f.doc.Style(sidebarNav, "height"), "styles are left alone while running")

	require.NoError(t, f.engine.Stop(context.Background()))
	assert.Empty(t, f.doc.Style(sidebarNav, "height"))

	f.doc.SetStyle(sidebarNav, "height", "100px")
	assert.Empty(t, f.doc.Style(sidebarNav, "height"), "late overlay writes are reverted")

	require.Eventually(t, func() bool { return f.engine.Cleaner().Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEngine_StopReleasesWaits(t *testing.T) {
	f := newFixture(t, threeSteps(), runtime.WithElementTimeout(time.Minute))
	f.add("#a")
	require.NoError(t, f.engine.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- f.engine.Next(context.Background()) }()
	require.Eventually(t, func() bool { return f.engine.ActiveWaits() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.engine.Stop(context.Background()))
	require.NoError(t, <-done)

	assert.Equal(t, 0, f.engine.ActiveWaits())
	assert.Equal(t, 0, f.doc.ChildSubscriptions())
	assert.Equal(t, domain.PhaseIdle, f.engine.State().Phase)

	_, err := f.store.Load(context.Background(), "sess-1")
	assert.NoError(t, err, "stop keeps progress for resume")

	require.NoError(t, f.engine.Close())
	assert.Equal(t, 0, f.doc.Subscriptions())
}

func TestEngine_ProgressAndResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, threeSteps())
	f.add("#a", "#b", "#c")

	require.NoError(t, f.engine.StartAt(ctx, 1))
	p, err := f.store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.StepIndex)
	assert.Equal(t, "three", p.TourID)

	require.NoError(t, f.engine.Next(ctx))
	p, err = f.store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.StepIndex)

	require.NoError(t, f.engine.Finish(ctx))
	_, err = f.store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, domain.ErrProgressNotFound)
}

func TestEngine_Expansion(t *testing.T) {
	const control = `#realm button[class*="realmExpandButton"]`
	def := domain.NewDefinition("expand", []domain.Step{
		{Target: "#realm .lesson", ExpansionTarget: "#realm", RequiresExpansion: true, IsLastStep: true},
	})

	t.Run("clicks the expand control", func(t *testing.T) {
		f := newFixture(t, def)
		f.doc.Add("#realm")
		f.doc.Add(control, memory.OnClick(func() { f.doc.Add("#realm .lesson") }))

		require.NoError(t, f.engine.Start(context.Background()))
		assert.Equal(t, 1, f.doc.Clicks(control))
		assert.True(t, f.engine.IsRunning())
	})

	t.Run("already expanded", func(t *testing.T) {
		f := newFixture(t, def)
		f.add("#realm", "#realm .lesson", `#realm svg[data-icon="chevron-up"]`)
		f.doc.Add(control)

		require.NoError(t, f.engine.Start(context.Background()))
		assert.Equal(t, 0, f.doc.Clicks(control))
	})
}

func TestEngine_Hooks(t *testing.T) {
	var mu sync.Mutex
	var events []domain.EventType
	record := func(typ domain.EventType) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, typ)
	}
	hooks := domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) { record(e.Type) },
		OnNavigate:  func(ctx context.Context, e *domain.NavigationEvent) { record(e.Type) },
		OnComplete:  func(ctx context.Context, e *domain.TourEvent) { record(e.Type) },
	}
	def := domain.NewDefinition("hooks", []domain.Step{
		{Target: "#a", Route: "/dashboard", NextRoute: "/progress", IsLastStep: true},
	})
	f := newFixture(t, def, runtime.WithLifecycleHooks(hooks))
	f.add("#a")

	require.NoError(t, f.engine.Start(context.Background()))
	require.NoError(t, f.engine.Next(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{domain.EventStepEnter, domain.EventNavigate, domain.EventComplete}, events)
}

func TestEngine_Unsubscribe(t *testing.T) {
	f := newFixture(t, threeSteps())
	f.add("#a", "#b", "#c")

	var calls int
	unsubscribe := f.engine.OnStepChange(func(domain.Step) { calls++ })
	assert.Equal(t, 1, f.engine.Subscribers())
	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, f.engine.Subscribers())

	require.NoError(t, f.engine.Start(context.Background()))
	assert.Equal(t, 0, calls)
}
