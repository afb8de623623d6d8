package runtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

// errBusy is returned by Begin while another transition is in flight.
var errBusy = errors.New("transition in flight")

// Machine is the single writer of domain.TourState.
//
// Every start and stop bumps a generation counter. Asynchronous work captures
// the generation when it begins and passes it back on every mutation, so a
// callback that outlives its session can never touch the next one.
type Machine struct {
	mu         sync.Mutex
	state      domain.TourState
	total      int
	generation uint64
	busy       bool
}

// NewMachine creates an idle machine for a tour of total steps.
func NewMachine(total int) *Machine {
	return &Machine{state: domain.NewTourState(), total: total}
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() domain.TourState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Generation returns the current session generation.
func (m *Machine) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Total returns the number of steps.
func (m *Machine) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// SetTotal replaces the step count. It is only honored while idle.
func (m *Machine) SetTotal(total int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Running {
		return false
	}
	m.total = total
	return true
}

// Start moves Idle (or a terminal phase) to Active(0) and returns the new
// generation. Starting an active tour is a no-op that reports false.
func (m *Machine) Start() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Running {
		return m.generation, false
	}
	if m.total == 0 {
		return m.generation, false
	}
	m.generation++
	m.busy = false
	m.state = domain.TourState{CurrentIndex: 0, Running: true, Phase: domain.PhaseActive}
	return m.generation, true
}

// Begin marks a transition of generation gen as in flight.
func (m *Machine) Begin(gen uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Running || gen != m.generation {
		return domain.ErrNotRunning
	}
	if m.busy {
		return errBusy
	}
	m.busy = true
	m.state.Navigating = true
	return nil
}

// Settle clears the navigating flag without ending the transition. It is used
// by click-gated waits, which may take arbitrarily long.
func (m *Machine) Settle(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation {
		m.state.Navigating = false
	}
}

// End finishes the transition of generation gen.
func (m *Machine) End(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation {
		m.busy = false
		m.state.Navigating = false
	}
}

// Commit moves the current index to i. It fails for stale generations,
// stopped tours and out-of-range indices.
func (m *Machine) Commit(gen uint64, i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Running || gen != m.generation {
		return domain.ErrNotRunning
	}
	if i < 0 || i >= m.total {
		return fmt.Errorf("%w: %d", domain.ErrInvalidStep, i)
	}
	m.state.CurrentIndex = i
	return nil
}

// Current returns the index and running flag if gen is still current.
func (m *Machine) Current(gen uint64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Running || gen != m.generation {
		return 0, false
	}
	return m.state.CurrentIndex, true
}

// Stop ends the session in the given phase. The index resets to 0 and the
// generation advances. It returns the state before stopping and whether the
// tour was running.
func (m *Machine) Stop(phase domain.Phase) (domain.TourState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state
	if !prev.Running {
		return prev, false
	}
	m.generation++
	m.busy = false
	m.state = domain.TourState{CurrentIndex: 0, Running: false, Phase: phase}
	return prev, true
}
