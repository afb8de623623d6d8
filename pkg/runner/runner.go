package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Visitor moves a simulated page to a route.
type Visitor interface {
	Visit(route string)
}

// Runner drives an engine from a command stream. It is the loop behind
// the preview command and works against any ports.Document.
type Runner struct {
	engine  *waypoint.Engine
	doc     ports.Document
	handler Handler
	logger  *slog.Logger
	resume  bool
	visitor Visitor
}

// New creates a Runner for engine running against doc.
func New(engine *waypoint.Engine, doc ports.Document, opts ...Option) *Runner {
	r := &Runner{engine: engine, doc: doc}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(nil, nil)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	return r
}

// Run starts (or resumes) the tour and processes commands until the tour
// completes, is skipped, the learner quits or input runs out. Quitting and
// end of input stop the engine with progress kept.
func (r *Runner) Run(ctx context.Context) error {
	var (
		once    sync.Once
		outcome string
		ended   = make(chan struct{})
	)
	end := func(kind string) {
		once.Do(func() {
			outcome = kind
			close(ended)
		})
	}

	unsubs := []func(){
		r.engine.OnStepChange(func(step domain.Step) {
			if err := r.handler.Step(ctx, step, r.engine.TotalSteps()); err != nil {
				r.logger.Warn("failed to present step", "index", step.Index, "err", err)
			}
		}),
		r.engine.OnComplete(func() { end(NoticeComplete) }),
		r.engine.OnSkip(func() { end(NoticeSkipped) }),
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	start := r.engine.Start
	if r.resume {
		start = r.engine.Resume
	}
	if err := start(ctx); err != nil {
		return fmt.Errorf("start tour: %w", err)
	}

	for {
		select {
		case <-ended:
			return r.report(ctx, outcome)
		default:
		}

		line, err := r.read(ctx, ended)
		if err != nil {
			select {
			case <-ended:
				return r.report(ctx, outcome)
			default:
			}
			if errors.Is(err, io.EOF) {
				return r.stop(ctx, "input closed")
			}
			_ = r.engine.Stop(context.WithoutCancel(ctx))
			return err
		}

		quit, err := r.exec(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_ = r.handler.Notice(ctx, NoticeError, err.Error())
			continue
		}
		if quit {
			return r.stop(ctx, "progress kept")
		}
	}
}

// read returns the next command line, giving up once the tour ends.
func (r *Runner) read(ctx context.Context, ended <-chan struct{}) (string, error) {
	ictx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ended:
			cancel()
		case <-ictx.Done():
		}
	}()
	return r.handler.Input(ictx)
}

func (r *Runner) exec(ctx context.Context, line string) (bool, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return false, err
	}
	r.logger.Debug("command", "verb", cmd.Verb, "arg", cmd.Arg)

	switch cmd.Verb {
	case VerbNext:
		return false, r.engine.Next(ctx)
	case VerbPrevious:
		return false, r.engine.Previous(ctx)
	case VerbGoTo:
		return false, r.engine.GoTo(ctx, cmd.Step)
	case VerbSkip:
		return false, r.engine.Skip(ctx)
	case VerbFinish:
		return false, r.engine.Finish(ctx)
	case VerbRoute:
		_ = r.handler.Notice(ctx, NoticeRoute, cmd.Arg)
		if r.visitor != nil {
			r.visitor.Visit(cmd.Arg)
			return false, nil
		}
		return false, r.engine.NotifyRoute(ctx, cmd.Arg)
	case VerbClick:
		return false, r.click(ctx, cmd.Arg)
	case VerbShow:
		step, ok := r.engine.CurrentStep()
		if !ok {
			return false, domain.ErrNotRunning
		}
		return false, r.handler.Step(ctx, step, r.engine.TotalSteps())
	case VerbHelp:
		return false, r.handler.Notice(ctx, NoticeHelp, Help)
	case VerbQuit:
		return true, nil
	}
	return false, fmt.Errorf("unhandled command %q", cmd.Verb)
}

func (r *Runner) click(ctx context.Context, selector string) error {
	if selector == "" {
		step, ok := r.engine.CurrentStep()
		if !ok {
			return domain.ErrNotRunning
		}
		selector = step.Target
	}
	el, err := r.doc.Query(ctx, selector)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("%w: %s", domain.ErrTargetNotFound, selector)
	}
	return el.Click(ctx)
}

func (r *Runner) stop(ctx context.Context, reason string) error {
	if err := r.engine.Stop(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return r.handler.Notice(ctx, NoticeStopped, reason)
}

func (r *Runner) report(ctx context.Context, kind string) error {
	msg := "tour completed"
	if kind == NoticeSkipped {
		msg = "tour skipped"
	}
	return r.handler.Notice(ctx, kind, msg)
}
