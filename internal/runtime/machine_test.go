package runtime_test

import (
	"testing"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMachine_Lifecycle(t *testing.T) {
	m := runtime.NewMachine(3)

	gen, ok := m.Start()
	require.True(t, ok)
	assert.Equal(t, domain.TourState{CurrentIndex: 0, Running: true, Phase: domain.PhaseActive}, m.Snapshot())

	_, ok = m.Start()
	assert.False(t, ok, "already running")

	require.NoError(t, m.Begin(gen))
	assert.True(t, m.Snapshot().Navigating)
	assert.Error(t, m.Begin(gen), "one transition at a time")
	require.NoError(t, m.Commit(gen, 2))
	m.End(gen)
	assert.False(t, m.Snapshot().Navigating)

	assert.False(t, m.SetTotal(5), "total is fixed while running")

	prev, ok := m.Stop(domain.PhaseCompleted)
	require.True(t, ok)
	assert.Equal(t, 2, prev.CurrentIndex)
	assert.Equal(t, domain.TourState{Phase: domain.PhaseCompleted}, m.Snapshot())

	t.Run("stale generation is rejected", func(t *testing.T) {
		assert.ErrorIs(t, m.Begin(gen), domain.ErrNotRunning)
		assert.ErrorIs(t, m.Commit(gen, 1), domain.ErrNotRunning)
		_, ok := m.Current(gen)
		assert.False(t, ok)
	})

	t.Run("empty tour never starts", func(t *testing.T) {
		_, ok := runtime.NewMachine(0).Start()
		assert.False(t, ok)
	})
}

// Arbitrary operation sequences never leave the index out of range, never
// leave a stopped tour navigating and never let an old generation mutate state.
func TestMachine_Invariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(1, 20).Draw(t, "total")
		m := runtime.NewMachine(total)
		var gens []uint64

		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for range steps {
			var gen uint64
			if len(gens) > 0 {
				gen = gens[rapid.IntRange(0, len(gens)-1).Draw(t, "gen")]
			}
			current := m.Generation()

			switch rapid.IntRange(0, 5).Draw(t, "op") {
			case 0:
				if g, ok := m.Start(); ok {
					gens = append(gens, g)
				}
			case 1:
				_ = m.Begin(gen)
			case 2:
				before := m.Snapshot()
				err := m.Commit(gen, rapid.IntRange(-2, total+2).Draw(t, "index"))
				if gen != current && err == nil {
					t.Fatalf("stale generation %d committed on %d", gen, current)
				}
				if err != nil && m.Snapshot().CurrentIndex != before.CurrentIndex {
					t.Fatalf("failed commit moved the index")
				}
			case 3:
				m.End(gen)
			case 4:
				m.Settle(gen)
			case 5:
				phases := []domain.Phase{domain.PhaseIdle, domain.PhaseCompleted, domain.PhaseSkipped}
				m.Stop(phases[rapid.IntRange(0, len(phases)-1).Draw(t, "phase")])
			}

			st := m.Snapshot()
			if st.CurrentIndex < 0 || st.CurrentIndex >= total {
				t.Fatalf("index %d out of range [0,%d)", st.CurrentIndex, total)
			}
			if !st.Running && st.Navigating {
				t.Fatalf("stopped tour is navigating")
			}
			if st.Running != (st.Phase == domain.PhaseActive) {
				t.Fatalf("running=%v with phase %s", st.Running, st.Phase)
			}
		}
	})
}
