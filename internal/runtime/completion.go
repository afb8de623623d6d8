package runtime

import (
	"context"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Finish completes the tour, typically from a Finish button on the last step.
// The completion callbacks fire at most once per session; further calls are no-ops.
func (e *Engine) Finish(ctx context.Context) error {
	e.mu.Lock()
	done := e.completed
	e.mu.Unlock()
	if done {
		return nil
	}
	if !e.IsRunning() {
		return domain.ErrNotRunning
	}
	return e.completeSession(ctx, false)
}

// complete handles Next on the terminal step: it follows the step's next
// route, lets the page render and finishes.
func (e *Engine) complete(ctx context.Context, gen uint64, step domain.Step) error {
	if step.AutoAdvances() {
		if _, err := e.coord.EnsureRoute(ctx, step.NextRoute); err != nil {
			e.logger.Warn("final navigation failed, completing in place", "route", step.NextRoute, "err", err)
		}
	}
	if e.completionDelay > 0 {
		t := time.NewTimer(e.completionDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return e.finish(ctx, gen)
}

// finish completes the session from inside a transition of generation gen.
func (e *Engine) finish(ctx context.Context, gen uint64) error {
	if _, ok := e.machine.Current(gen); !ok {
		return nil
	}
	return e.completeSession(ctx, true)
}

func (e *Engine) claim() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.completed {
		return false
	}
	e.completed = true
	return true
}

func (e *Engine) completeSession(ctx context.Context, inTransition bool) error {
	if !e.claim() {
		return nil
	}
	prev, ok := e.shutdown(ctx, domain.PhaseCompleted, inTransition)
	if !ok {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	e.logger.Info("tour completed", "step", prev.CurrentIndex)

	e.forgetProgress(ctx)
	if e.recorder != nil {
		if err := e.recorder.MarkCompleted(ctx, e.userID, e.def.ID); err != nil {
			e.logger.Warn("failed to persist completion", "err", err)
		}
	}

	e.callbacks.Add(1)
	defer e.callbacks.Add(-1)
	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(ctx, e.tourEvent(domain.EventComplete, prev.CurrentIndex, domain.PhaseCompleted))
	}
	e.completeSubs.emit(struct{}{})
	return nil
}
