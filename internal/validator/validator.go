// Package validator checks that the targets of a tour exist in a live document
// before the tour starts.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/waypoint/internal/element"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/navigation"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds the wait for each target.
const DefaultTimeout = 2 * time.Second

// maxConcurrent caps the waits in flight against one document.
const maxConcurrent = 8

// Options tunes CheckTargets.
type Options struct {
	Timeout time.Duration
	// Route limits the check to steps on this route (and steps without a
	// route). Empty checks every step.
	Route string
	// Strict turns missing targets into an error.
	Strict bool
	Logger *slog.Logger
}

// Missing is a step whose target did not appear.
type Missing struct {
	Index  int
	Target string
	Route  string
	Err    error
}

// Report lists what CheckTargets looked at.
type Report struct {
	Checked []int
	Missing []Missing
}

// OK reports whether every checked target was found.
func (r Report) OK() bool {
	return len(r.Missing) == 0
}

// CheckTargets waits for the target of each step and reports the ones that
// never appear. Without Strict, missing targets are only logged.
func CheckTargets(ctx context.Context, doc ports.Document, def *domain.Definition, opts Options) (Report, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	waiter := element.NewWaiter(doc, element.WithLogger(logger))
	route := navigation.Normalize(opts.Route)

	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for _, step := range def.Steps {
		if opts.Route != "" && step.Route != "" && navigation.Normalize(step.Route) != route {
			continue
		}
		report.Checked = append(report.Checked, step.Index)
		g.Go(func() error {
			_, err := waiter.WaitForElement(gctx, step.Target, opts.Timeout)
			if err == nil {
				return nil
			}
			if !errors.Is(err, domain.ErrTargetNotFound) {
				return err
			}
			mu.Lock()
			report.Missing = append(report.Missing, Missing{Index: step.Index, Target: step.Target, Route: step.Route, Err: err})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	slices.SortFunc(report.Missing, func(a, b Missing) int { return a.Index - b.Index })
	for _, m := range report.Missing {
		logger.Warn("tour target missing", "step", m.Index, "selector", m.Target, "route", m.Route)
	}
	if opts.Strict && !report.OK() {
		errs := make([]error, len(report.Missing))
		for i, m := range report.Missing {
			errs[i] = &domain.ValidationError{Index: m.Index, Field: "target", Reason: fmt.Sprintf("%q not found", m.Target)}
		}
		return report, fmt.Errorf("%w: %w", domain.ErrTargetNotFound, &domain.AggregateError{Errors: errs})
	}
	return report, nil
}
