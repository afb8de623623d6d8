package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/waypoint/internal/navigation"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

type direction int

const (
	forward  direction = 1
	backward direction = -1
)

// Next advances to the following step. On a step with a next route the
// navigation is requested before the index moves, and the index is only
// committed once the following target exists. Next on the terminal step
// finishes the tour. Next on a click-gated step is ignored: the learner's
// navigation advances it (see NotifyRoute). When the following step cannot be
// reached the application is sent back to the current step's route.
func (e *Engine) Next(ctx context.Context) error {
	return e.transition(ctx, e.machine.Generation(), "next", func(ctx context.Context, gen uint64, detach func()) error {
		i, ok := e.machine.Current(gen)
		if !ok {
			return domain.ErrNotRunning
		}
		step := e.def.Steps[i]

		if step.WaitForUserClick {
			e.logger.Debug("next ignored on click-gated step", "step", i)
			return nil
		}
		if e.def.IsLast(i) {
			return e.complete(ctx, gen, step)
		}
		moved := false
		if step.AutoAdvances() {
			var err error
			if moved, err = e.coord.EnsureRoute(ctx, step.NextRoute); err != nil {
				e.logger.Warn("auto-advance navigation failed, staying on step", "step", i, "route", step.NextRoute, "err", err)
				return err
			}
		}
		err := e.settle(ctx, gen, i+1, forward, detach)
		if moved && errors.Is(err, domain.ErrNavigation) {
			if _, back := e.coord.EnsureRoute(ctx, step.Route); back != nil {
				e.logger.Warn("could not return to current step route", "step", i, "route", step.Route, "err", back)
			}
		}
		return err
	})
}

// Previous moves back one step, skipping earlier steps whose targets are gone.
// It is a no-op on the first step. When no earlier step can be shown the
// current step is kept.
func (e *Engine) Previous(ctx context.Context) error {
	return e.transition(ctx, e.machine.Generation(), "previous", func(ctx context.Context, gen uint64, detach func()) error {
		i, ok := e.machine.Current(gen)
		if !ok {
			return domain.ErrNotRunning
		}
		if i == 0 {
			return nil
		}
		return e.settle(ctx, gen, i-1, backward, detach)
	})
}

// GoTo jumps to step k, settling forward when its target cannot be found.
func (e *Engine) GoTo(ctx context.Context, k int) error {
	if k < 0 || k >= e.def.Len() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidStep, k)
	}
	return e.transition(ctx, e.machine.Generation(), "goto", func(ctx context.Context, gen uint64, detach func()) error {
		return e.settle(ctx, gen, k, forward, detach)
	})
}

// NotifyRoute tells the engine the learner moved to route. When the current
// step is click-gated and route is where that click leads, the tour advances.
// Any other route change is ignored.
func (e *Engine) NotifyRoute(ctx context.Context, route string) error {
	gen := e.machine.Generation()
	i, ok := e.machine.Current(gen)
	if !ok {
		return domain.ErrNotRunning
	}
	step := e.def.Steps[i]
	if !step.WaitForUserClick || !e.leadsTo(i, route) {
		return nil
	}

	e.logger.Debug("learner navigation advances click-gated step", "step", i, "route", route)
	return e.transition(ctx, gen, "route", func(ctx context.Context, gen uint64, detach func()) error {
		if j, ok := e.machine.Current(gen); !ok || j != i {
			return nil
		}
		if e.def.IsLast(i) {
			return e.finish(ctx, gen)
		}
		return e.settle(ctx, gen, i+1, forward, detach)
	})
}

func (e *Engine) leadsTo(i int, route string) bool {
	want := navigation.Normalize(route)
	step := e.def.Steps[i]
	if step.NextRoute != "" && navigation.Normalize(step.NextRoute) == want {
		return true
	}
	if i+1 < e.def.Len() {
		next := e.def.Steps[i+1]
		return next.Route != "" && navigation.Normalize(next.Route) == want
	}
	return false
}

// settle walks from index `from` in direction dir until a step can be shown.
// Steps whose targets never appear are skipped. Running off the end finishes
// the tour; running off the start keeps the current step.
func (e *Engine) settle(ctx context.Context, gen uint64, from int, dir direction, detach func()) error {
	started := time.Now()
	origin, ok := e.machine.Current(gen)
	if !ok {
		return domain.ErrNotRunning
	}

	for j := from; ; j += int(dir) {
		if j < 0 {
			e.logger.Info("no earlier step can be shown, keeping current step", "step", origin)
			_, err := e.coord.EnsureRoute(ctx, e.def.Steps[origin].Route)
			return err
		}
		if j >= e.def.Len() {
			e.logger.Info("no remaining step can be shown, finishing early", "step", origin)
			return e.finish(ctx, gen)
		}

		step := e.def.Steps[j]
		err := e.reach(ctx, step)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case err == nil:
			return e.show(ctx, gen, step, started)
		case errors.Is(err, domain.ErrNavigation):
			e.logger.Warn("navigation failed, staying on current step", "step", origin, "route", step.Route, "err", err)
			return err
		case step.WaitForUserClick && dir == forward:
			return e.awaitGated(ctx, gen, step, started, detach)
		case errors.Is(err, domain.ErrTargetNotFound):
			e.emitSkipped(ctx, step, err)
		default:
			return err
		}
	}
}

// reach puts the application on the step's route, expands its section when
// needed and waits for its target.
func (e *Engine) reach(ctx context.Context, step domain.Step) error {
	if _, err := e.coord.EnsureRoute(ctx, step.Route); err != nil {
		return err
	}
	if step.RequiresExpansion {
		e.expand(ctx, step)
	}
	_, err := e.waiter.WaitForElement(ctx, step.Target, e.elementTimeout)
	return err
}

// awaitGated releases the caller and keeps waiting, without a bound, for the
// target of a click-gated step. Only the end of the session stops it.
func (e *Engine) awaitGated(ctx context.Context, gen uint64, step domain.Step, started time.Time, detach func()) error {
	e.logger.Info("waiting for click-gated step target", "step", step.Index, "selector", step.Target)
	detach()
	if _, err := e.waiter.WaitForElement(ctx, step.Target, 0); err != nil {
		return err
	}
	return e.show(ctx, gen, step, started)
}

func (e *Engine) show(ctx context.Context, gen uint64, step domain.Step, started time.Time) error {
	if err := e.machine.Commit(gen, step.Index); err != nil {
		return err
	}
	e.logger.Debug("step shown", "step", step.Index, "selector", step.Target, "took", time.Since(started))
	e.saveProgress(ctx, step.Index)
	e.emitStep(ctx, step, started)
	return nil
}

// expand opens the collapsible section holding the step target. Failures are
// logged only; the target wait decides whether the step is shown.
func (e *Engine) expand(ctx context.Context, step domain.Step) {
	container, err := e.waiter.WaitForElement(ctx, step.ExpansionTarget, e.elementTimeout)
	if err != nil {
		e.logger.Debug("expansion target not found", "step", step.Index, "selector", step.ExpansionTarget, "err", err)
		return
	}
	if e.expandedMarker != "" {
		if m, _ := e.doc.Query(ctx, step.ExpansionTarget+" "+e.expandedMarker); m != nil {
			return
		}
	}

	var control ports.Element = container
	if e.expansionControl != "" {
		if c, _ := e.doc.Query(ctx, step.ExpansionTarget+" "+e.expansionControl); c != nil {
			control = c
		}
	}
	if v, ok, _ := control.Attribute(ctx, "aria-expanded"); ok && v == "true" {
		return
	}
	if err := control.Click(ctx); err != nil {
		e.logger.Warn("failed to expand section", "step", step.Index, "selector", control.Selector(), "err", err)
		return
	}
	e.logger.Debug("expanded section", "step", step.Index, "selector", control.Selector())
}
