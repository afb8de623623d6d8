package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/runner"
)

// DefaultPreviewSession is the progress key used by preview.
const DefaultPreviewSession = "preview"

// PreviewOptions configures Preview.
type PreviewOptions struct {
	In        io.Reader
	Out       io.Writer
	JSON      bool
	Resume    bool
	Watch     bool
	SessionID string
	// Missing lists targets left out of the simulated page.
	Missing []string
	Banner  bool
}

// Preview walks the tour in the terminal against a simulated page holding
// every step target. With Watch set, edits to the tour source restart the
// walk at the step the learner had reached.
func (s *Stack) Preview(ctx context.Context, opts PreviewOptions) error {
	if opts.SessionID == "" {
		opts.SessionID = DefaultPreviewSession
	}

	var handler runner.Handler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	} else {
		if opts.Banner {
			tui.PrintBanner(opts.Out, waypoint.Version)
		}
		renderer := tui.NewRenderer(runner.IsTerminal(opts.Out), runner.TerminalWidth(opts.Out))
		handler = runner.NewTextHandler(opts.In, opts.Out, runner.WithTextRenderer(renderer))
	}

	if !opts.Watch {
		return ignoreCancel(ctx, s.previewOnce(ctx, handler, opts))
	}

	changes, err := s.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		reloaded, err := s.previewUntilChange(ctx, handler, opts, changes)
		if !reloaded {
			return ignoreCancel(ctx, err)
		}
		s.Logger.Info("tour source changed, reloading")
		_ = handler.Notice(ctx, "reload", "tour source changed")
		opts.Resume = true
	}
}

func (s *Stack) previewUntilChange(ctx context.Context, h runner.Handler, opts PreviewOptions, changes <-chan string) (bool, error) {
	ictx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.previewOnce(ictx, h, opts) }()

	select {
	case err := <-done:
		return false, err
	case _, ok := <-changes:
		cancel()
		<-done
		return ok, nil
	}
}

func (s *Stack) previewOnce(ctx context.Context, h runner.Handler, opts PreviewOptions) error {
	def, err := s.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tour: %w", err)
	}
	doc, nav := SimulatedPage(def, opts.Missing)

	eng, err := s.newEngine(ctx, opts.SessionID, doc, nav, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	r := runner.New(eng, doc,
		runner.WithHandler(h),
		runner.WithLogger(s.Logger),
		runner.WithResume(opts.Resume),
		runner.WithVisitor(nav),
	)
	return r.Run(ctx)
}

// SimulatedPage builds an in-memory page for def. Every target is present
// unless listed in missing. Clicking the target of a click-gated step moves
// the page to the route the step leads to.
func SimulatedPage(def *domain.Definition, missing []string) (*memory.Document, *memory.Navigator) {
	start := "/"
	if def.Len() > 0 && def.Steps[0].Route != "" {
		start = def.Steps[0].Route
	}
	doc := memory.NewDocument()
	nav := memory.NewNavigator(start)

	for i, step := range def.Steps {
		if slices.Contains(missing, step.Target) || doc.Has(step.Target) {
			continue
		}
		var opts []memory.ElementOption
		if step.WaitForUserClick {
			next := step.NextRoute
			if next == "" && i+1 < def.Len() {
				next = def.Steps[i+1].Route
			}
			if next != "" {
				opts = append(opts, memory.OnClick(func() { nav.Visit(next) }))
			}
		}
		doc.Add(step.Target, opts...)
		if step.RequiresExpansion && step.ExpansionTarget != step.Target && !doc.Has(step.ExpansionTarget) {
			doc.Add(step.ExpansionTarget)
		}
	}
	return doc, nav
}

func ignoreCancel(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}
