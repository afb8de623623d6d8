package waypoint_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSteps() *domain.Definition {
	return domain.NewDefinition("facade", []domain.Step{
		{Target: "#one", Route: "/home", Content: "First"},
		{Target: "#two", Route: "/home", Content: "Second", IsLastStep: true},
	})
}

func newEngine(t *testing.T, opts ...waypoint.Option) (*waypoint.Engine, *memory.Document, *memory.Navigator) {
	t.Helper()
	doc := memory.NewDocument()
	doc.Add("#one")
	doc.Add("#two")
	nav := memory.NewNavigator("/home")
	base := []waypoint.Option{
		waypoint.WithDefinition(twoSteps()),
		waypoint.WithSessionID("learner-1"),
		waypoint.WithElementTimeout(100 * time.Millisecond),
		waypoint.WithCompletionDelay(0),
		waypoint.WithTargetValidation(50*time.Millisecond, false),
	}
	eng, err := waypoint.New(context.Background(), "", doc, nav, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, doc, nav
}

func TestNew_Sources(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument()
	nav := memory.NewNavigator("/")

	t.Run("built-in tour", func(t *testing.T) {
		eng, err := waypoint.New(ctx, "", doc, nav)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultTourID, eng.Definition().ID)
		assert.NotEmpty(t, eng.SessionID())
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intro.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
id: intro
steps:
  - target: "#a"
    content: Hello
  - target: "#b"
    content: Bye
    is_last_step: true
`), 0o644))
		eng, err := waypoint.New(ctx, path, doc, nav)
		require.NoError(t, err)
		assert.Equal(t, 2, eng.TotalSteps())
	})

	t.Run("directory of step documents", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "01-welcome.md"), []byte("---\ntarget: \"#a\"\n---\nWelcome"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "02-done.md"), []byte("---\ntarget: \"#b\"\n---\nDone"), 0o644))
		eng, err := waypoint.New(ctx, dir, doc, nav)
		require.NoError(t, err)
		assert.Equal(t, 2, eng.TotalSteps())
		_, err = eng.Watch(ctx)
		assert.NoError(t, err)
	})

	t.Run("invalid definition", func(t *testing.T) {
		_, err := waypoint.New(ctx, "", doc, nav, waypoint.WithDefinition(domain.NewDefinition("empty", nil)))
		assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	})

	t.Run("flawed definition still runs", func(t *testing.T) {
		d := memory.NewDocument()
		d.Add("#two")
		def := domain.NewDefinition("flawed", []domain.Step{
			{Content: "no target"},
			{Target: "#two", Content: "Second"},
		})
		eng, err := waypoint.New(ctx, "", d, memory.NewNavigator("/"),
			waypoint.WithDefinition(def),
			waypoint.WithElementTimeout(20*time.Millisecond),
			waypoint.WithCompletionDelay(0),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = eng.Close() })

		require.NoError(t, eng.Start(ctx))
		step, ok := eng.CurrentStep()
		require.True(t, ok)
		assert.Equal(t, "#two", step.Target)
	})

	t.Run("unsupported source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tour.txt")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		_, err := waypoint.New(ctx, path, doc, nav)
		assert.Error(t, err)
	})
}

func TestEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	rec := memory.NewRecorder()
	eng, _, _ := newEngine(t, waypoint.WithCompletionRecorder(rec), waypoint.WithUserID("ada"))

	var steps []int
	completed := 0
	unsubscribe := eng.OnStepChange(func(s domain.Step) { steps = append(steps, s.Index) })
	defer unsubscribe()
	eng.OnComplete(func() { completed++ })

	should, err := eng.ShouldStart(ctx)
	require.NoError(t, err)
	assert.True(t, should)

	require.NoError(t, eng.Start(ctx))
	require.NoError(t, eng.Next(ctx))
	require.NoError(t, eng.Next(ctx))

	assert.Equal(t, []int{0, 1}, steps)
	assert.Equal(t, 1, completed)
	assert.False(t, eng.IsRunning())
	assert.Equal(t, domain.PhaseCompleted, eng.State().Phase)

	should, err = eng.ShouldStart(ctx)
	require.NoError(t, err)
	assert.False(t, should)

	t.Run("reset restarts the tour", func(t *testing.T) {
		require.NoError(t, eng.Reset(ctx))
		assert.True(t, eng.IsRunning())
		step, ok := eng.CurrentStep()
		require.True(t, ok)
		assert.Equal(t, 0, step.Index)

		should, err := eng.ShouldStart(ctx)
		require.NoError(t, err)
		assert.True(t, should)
	})
}

func TestEngine_Resume(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	t.Run("without progress starts at the beginning", func(t *testing.T) {
		eng, _, _ := newEngine(t, waypoint.WithProgressStore(store))
		require.NoError(t, eng.Resume(ctx))
		assert.Equal(t, 0, eng.State().CurrentIndex)
		require.NoError(t, eng.Next(ctx))
		require.NoError(t, eng.Stop(ctx))
	})

	t.Run("continues at the saved step", func(t *testing.T) {
		eng, _, _ := newEngine(t, waypoint.WithProgressStore(store))
		require.NoError(t, eng.Resume(ctx))
		assert.Equal(t, 1, eng.State().CurrentIndex)
	})

	t.Run("ignores progress of another tour", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "learner-1", &domain.Progress{SessionID: "learner-1", TourID: "other", StepIndex: 1}))
		eng, _, _ := newEngine(t, waypoint.WithProgressStore(store))
		require.NoError(t, eng.Resume(ctx))
		assert.Equal(t, 0, eng.State().CurrentIndex)
	})

	t.Run("discards a negative step index", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "learner-1", &domain.Progress{SessionID: "learner-1", TourID: "facade", StepIndex: -2}))
		eng, _, _ := newEngine(t, waypoint.WithProgressStore(store))
		require.NoError(t, eng.Resume(ctx))
		assert.True(t, eng.IsRunning())
		assert.Equal(t, 0, eng.State().CurrentIndex)
	})
}

func TestEngine_StrictTargetValidation(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument()
	doc.Add("#one")
	nav := memory.NewNavigator("/home")

	eng, err := waypoint.New(ctx, "", doc, nav,
		waypoint.WithDefinition(twoSteps()),
		waypoint.WithTargetValidation(30*time.Millisecond, true),
	)
	require.NoError(t, err)
	defer eng.Close()

	err = eng.Start(ctx)
	assert.ErrorIs(t, err, domain.ErrTargetNotFound)
	assert.False(t, eng.IsRunning())
}

func TestEngine_SkipNeverCompletes(t *testing.T) {
	ctx := context.Background()
	eng, _, nav := newEngine(t)

	skipped, completed := 0, 0
	eng.OnSkip(func() { skipped++ })
	eng.OnComplete(func() { completed++ })

	require.NoError(t, eng.Start(ctx))
	before := len(nav.Requests())
	require.NoError(t, eng.Skip(ctx))

	assert.Equal(t, 1, skipped)
	assert.Zero(t, completed)
	assert.Len(t, nav.Requests(), before)
	assert.Equal(t, domain.PhaseSkipped, eng.State().Phase)
}
