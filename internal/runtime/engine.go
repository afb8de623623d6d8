package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/waypoint/internal/cleanup"
	"github.com/aretw0/waypoint/internal/element"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/navigation"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Default expansion selectors of the learning dashboard.
const (
	DefaultExpansionControl  = `button[class*="realmExpandButton"]`
	DefaultExpandedIndicator = `svg[data-icon="chevron-up"]`
)

// DefaultCompletionDelay is how long the engine lets the final route render
// before the tour is reported complete.
const DefaultCompletionDelay = 500 * time.Millisecond

// Engine drives one tour definition against one document for one session.
//
// Operations are safe for concurrent use. Step transitions run on a goroutine
// owned by the session; Next, Previous, GoTo and Start block until their
// transition settles or the caller's context ends.
type Engine struct {
	def     *domain.Definition
	doc     ports.Document
	nav     ports.Navigator
	machine *Machine
	waiter  *element.Waiter
	coord   *navigation.Coordinator
	cleaner *cleanup.Cleaner

	hooks            domain.LifecycleHooks
	logger           *slog.Logger
	sessionID        string
	userID           string
	elementTimeout   time.Duration
	completionDelay  time.Duration
	expansionControl string
	expandedMarker   string
	protected        []cleanup.ProtectedElement
	cleanupDelays    []time.Duration
	waiterOpts       []element.Option
	store            ports.ProgressStore
	recorder         ports.CompletionRecorder

	running   atomic.Bool
	callbacks atomic.Int32

	mu         sync.Mutex
	sessionCtx context.Context
	cancel     context.CancelFunc
	completed  bool
	echoes     map[string]int
	wg         sync.WaitGroup

	stepSubs     subscribers[domain.Step]
	completeSubs subscribers[struct{}]
	skipSubs     subscribers[struct{}]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithSessionID sets the session identifier used for progress and events.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithUserID sets the learner identifier used for the completion flag.
// It defaults to the session ID.
func WithUserID(id string) Option {
	return func(e *Engine) {
		e.userID = id
	}
}

// WithElementTimeout bounds how long a step target is awaited before the step is skipped.
func WithElementTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.elementTimeout = d
		}
	}
}

// WithCompletionDelay sets the pause between the final navigation and completion.
func WithCompletionDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.completionDelay = d
		}
	}
}

// WithExpansionSelectors configures how collapsed sections are expanded:
// control is clicked inside the expansion target unless marker is present.
func WithExpansionSelectors(control, marker string) Option {
	return func(e *Engine) {
		e.expansionControl = control
		e.expandedMarker = marker
	}
}

// WithProtectedElements replaces the elements whose inline styles are reverted after the tour.
func WithProtectedElements(targets []cleanup.ProtectedElement) Option {
	return func(e *Engine) {
		e.protected = targets
	}
}

// WithCleanupDelays replaces the delayed re-sweep schedule.
func WithCleanupDelays(delays []time.Duration) Option {
	return func(e *Engine) {
		e.cleanupDelays = delays
	}
}

// WithWaiterOptions passes options to the element waiter.
func WithWaiterOptions(opts ...element.Option) Option {
	return func(e *Engine) {
		e.waiterOpts = append(e.waiterOpts, opts...)
	}
}

// WithProgressStore enables resumable progress.
func WithProgressStore(store ports.ProgressStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithCompletionRecorder persists the completion flag.
func WithCompletionRecorder(rec ports.CompletionRecorder) Option {
	return func(e *Engine) {
		e.recorder = rec
	}
}

// NewEngine creates an idle engine.
func NewEngine(def *domain.Definition, doc ports.Document, nav ports.Navigator, opts ...Option) *Engine {
	e := &Engine{
		def:              def,
		doc:              doc,
		nav:              nav,
		logger:           logging.NewNop(),
		sessionID:        "default",
		elementTimeout:   element.DefaultTimeout,
		completionDelay:  DefaultCompletionDelay,
		expansionControl: DefaultExpansionControl,
		expandedMarker:   DefaultExpandedIndicator,
		protected:        cleanup.DefaultProtected(),
		cleanupDelays:    cleanup.DefaultDelays,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.userID == "" {
		e.userID = e.sessionID
	}
	e.logger = e.logger.With("session_id", e.sessionID, "tour", def.ID)

	e.machine = NewMachine(def.Len())
	e.waiter = element.NewWaiter(doc, append([]element.Option{element.WithLogger(e.logger)}, e.waiterOpts...)...)
	e.coord = navigation.New(nav,
		navigation.WithLogger(e.logger),
		navigation.WithHook(e.onNavigate),
		navigation.WithRequestHook(e.expectEcho),
	)
	e.cleaner = cleanup.New(doc,
		cleanup.WithTargets(e.protected),
		cleanup.WithDelays(e.cleanupDelays),
		cleanup.WithRunning(e.running.Load),
		cleanup.WithLogger(e.logger),
	)
	return e
}

// Definition returns the tour definition.
func (e *Engine) Definition() *domain.Definition {
	return e.def
}

// SessionID returns the session identifier.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// State returns a snapshot of the tour state.
func (e *Engine) State() domain.TourState {
	return e.machine.Snapshot()
}

// IsRunning reports whether the tour is active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// TotalSteps returns the number of steps.
func (e *Engine) TotalSteps() int {
	return e.def.Len()
}

// CurrentStep returns the step being shown, or false when idle.
func (e *Engine) CurrentStep() (domain.Step, bool) {
	s := e.machine.Snapshot()
	if !s.Running {
		return domain.Step{}, false
	}
	return e.def.Steps[s.CurrentIndex], true
}

// ActiveWaits returns the number of element waits in flight.
func (e *Engine) ActiveWaits() int {
	return e.waiter.ActiveWaits()
}

// Cleaner exposes the side-effect cleaner.
func (e *Engine) Cleaner() *cleanup.Cleaner {
	return e.cleaner
}

// OnStepChange registers fn to be called each time a step becomes visible.
func (e *Engine) OnStepChange(fn func(domain.Step)) func() {
	return e.stepSubs.add(fn)
}

// OnComplete registers fn to be called when the tour completes.
func (e *Engine) OnComplete(fn func()) func() {
	return e.completeSubs.add(func(struct{}) { fn() })
}

// OnSkip registers fn to be called when the learner skips the tour.
func (e *Engine) OnSkip(fn func()) func() {
	return e.skipSubs.add(func(struct{}) { fn() })
}

// Subscribers returns the number of registered callbacks.
func (e *Engine) Subscribers() int {
	return e.stepSubs.len() + e.completeSubs.len() + e.skipSubs.len()
}

// Start begins the tour at the first step. Starting a running tour is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	return e.StartAt(ctx, 0)
}

// StartAt begins the tour and settles forward from index i. It is used to
// resume saved progress and for deep links.
func (e *Engine) StartAt(ctx context.Context, i int) error {
	if i < 0 || i >= e.def.Len() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidStep, i)
	}
	gen, ok := e.machine.Start()
	if !ok {
		e.logger.Debug("start ignored", "state", e.machine.Snapshot())
		return nil
	}
	e.running.Store(true)

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Lock()
	e.sessionCtx = sctx
	e.cancel = cancel
	e.completed = false
	e.echoes = nil
	e.mu.Unlock()

	e.cleaner.CancelPending()
	_ = e.cleaner.Attach(sctx)
	if e.recorder != nil {
		if err := e.recorder.Reset(sctx, e.userID, e.def.ID); err != nil {
			e.logger.Warn("failed to reset completion flag", "err", err)
		}
	}
	e.watchRoutes(sctx)

	e.logger.Info("tour started", "steps", e.def.Len(), "from", i)
	return e.transition(ctx, gen, "start", func(ctx context.Context, gen uint64, detach func()) error {
		return e.settle(ctx, gen, i, forward, detach)
	})
}

// Stop ends the tour without completing it. Saved progress is kept so the
// session can resume later.
func (e *Engine) Stop(ctx context.Context) error {
	if _, ok := e.shutdown(ctx, domain.PhaseIdle, false); ok {
		e.logger.Info("tour stopped")
	}
	return nil
}

// Skip ends the tour at the learner's request. It never completes the tour
// and never navigates.
func (e *Engine) Skip(ctx context.Context) error {
	prev, ok := e.shutdown(ctx, domain.PhaseSkipped, false)
	if !ok {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	e.logger.Info("tour skipped", "step", prev.CurrentIndex)
	e.forgetProgress(ctx)

	e.callbacks.Add(1)
	defer e.callbacks.Add(-1)
	if e.hooks.OnSkip != nil {
		e.hooks.OnSkip(ctx, e.tourEvent(domain.EventSkip, prev.CurrentIndex, domain.PhaseSkipped))
	}
	e.skipSubs.emit(struct{}{})
	return nil
}

// Close stops the tour and releases every observer and timer.
func (e *Engine) Close() error {
	err := e.Stop(context.Background())
	e.cleaner.Close()
	return err
}

// shutdown moves the machine to phase, cancels the session, waits for
// in-flight transitions to release their resources and sweeps side effects.
// inTransition is set when called from a transition goroutine, which must not
// wait for itself.
func (e *Engine) shutdown(ctx context.Context, phase domain.Phase, inTransition bool) (domain.TourState, bool) {
	prev, ok := e.machine.Stop(phase)
	if !ok {
		return prev, false
	}
	e.running.Store(false)
	ctx = context.WithoutCancel(ctx)

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	// Callbacks run inside transitions; waiting there would deadlock. Their
	// element waits have already returned by the time a callback runs.
	if !inTransition && e.callbacks.Load() == 0 {
		e.wg.Wait()
	}

	_ = e.cleaner.TourStopped(ctx)
	return prev, true
}

// transition runs fn on a session goroutine. Calls made while another
// transition is in flight are ignored. fn may call detach to release the
// caller early while it keeps working in the background.
func (e *Engine) transition(ctx context.Context, gen uint64, name string, fn func(ctx context.Context, gen uint64, detach func()) error) error {
	if err := e.machine.Begin(gen); err != nil {
		if errors.Is(err, errBusy) {
			e.logger.Debug("transition ignored, another one is in flight", "op", name)
			return nil
		}
		return err
	}

	e.mu.Lock()
	sctx := e.sessionCtx
	if sctx == nil || sctx.Err() != nil {
		e.mu.Unlock()
		e.machine.End(gen)
		return domain.ErrNotRunning
	}
	e.wg.Add(1)
	e.mu.Unlock()

	done := make(chan error, 1)
	var once sync.Once
	reply := func(err error) {
		once.Do(func() { done <- err })
	}
	detach := func() {
		e.machine.Settle(gen)
		reply(nil)
	}

	go func() {
		defer e.wg.Done()
		defer e.machine.End(gen)
		err := fn(sctx, gen, detach)
		if errors.Is(err, context.Canceled) && sctx.Err() != nil {
			err = nil
		}
		reply(err)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) watchRoutes(ctx context.Context) {
	rw, ok := e.nav.(ports.RouteWatcher)
	if !ok {
		return
	}
	routes, err := rw.WatchRoutes(ctx)
	if err != nil {
		e.logger.Warn("route watching unavailable", "err", err)
		return
	}

	e.mu.Lock()
	if ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case route, ok := <-routes:
				if !ok {
					return
				}
				if e.consumeEcho(route) {
					e.logger.Debug("ignoring route change made by the tour", "route", route)
					continue
				}
				if err := e.NotifyRoute(ctx, route); err != nil && !errors.Is(err, domain.ErrNotRunning) && ctx.Err() == nil {
					e.logger.Warn("route change not applied", "route", route, "err", err)
				}
			}
		}
	}()
}

func (e *Engine) emitStep(ctx context.Context, step domain.Step, started time.Time) {
	e.callbacks.Add(1)
	defer e.callbacks.Add(-1)

	if e.hooks.OnStepEnter != nil {
		e.hooks.OnStepEnter(ctx, &domain.StepEvent{
			EventBase: domain.NewEventBase(domain.EventStepEnter, e.sessionID, e.def.ID),
			Index:     step.Index,
			Target:    step.Target,
			Route:     step.Route,
			Duration:  time.Since(started),
		})
	}
	e.stepSubs.emit(step)
}

func (e *Engine) emitSkipped(ctx context.Context, step domain.Step, reason error) {
	e.logger.Warn("step target not found, skipping", "step", step.Index, "selector", step.Target, "route", step.Route, "err", reason)
	if e.hooks.OnStepSkipped == nil {
		return
	}
	e.callbacks.Add(1)
	defer e.callbacks.Add(-1)
	e.hooks.OnStepSkipped(ctx, &domain.StepEvent{
		EventBase: domain.NewEventBase(domain.EventStepSkipped, e.sessionID, e.def.ID),
		Index:     step.Index,
		Target:    step.Target,
		Route:     step.Route,
		Reason:    reason.Error(),
	})
}

// expectEcho records a navigation requested by the engine. Route watchers
// report it like any learner navigation, and it must not advance a
// click-gated step.
func (e *Engine) expectEcho(route string) {
	if _, ok := e.nav.(ports.RouteWatcher); !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.echoes == nil {
		e.echoes = make(map[string]int)
	}
	e.echoes[navigation.Normalize(route)]++
}

func (e *Engine) consumeEcho(route string) bool {
	key := navigation.Normalize(route)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.echoes[key] == 0 {
		return false
	}
	if e.echoes[key]--; e.echoes[key] == 0 {
		delete(e.echoes, key)
	}
	return true
}

func (e *Engine) onNavigate(ctx context.Context, ev *domain.NavigationEvent) {
	if ev.IsError {
		e.consumeEcho(ev.To)
	}
	if e.hooks.OnNavigate == nil {
		return
	}
	ev.SessionID = e.sessionID
	ev.TourID = e.def.ID
	e.callbacks.Add(1)
	defer e.callbacks.Add(-1)
	e.hooks.OnNavigate(ctx, ev)
}

func (e *Engine) tourEvent(t domain.EventType, index int, phase domain.Phase) *domain.TourEvent {
	return &domain.TourEvent{
		EventBase: domain.NewEventBase(t, e.sessionID, e.def.ID),
		Index:     index,
		Steps:     e.def.Len(),
		Phase:     phase,
	}
}

func (e *Engine) saveProgress(ctx context.Context, index int) {
	if e.store == nil {
		return
	}
	p := &domain.Progress{
		SessionID: e.sessionID,
		TourID:    e.def.ID,
		StepIndex: index,
		Phase:     domain.PhaseActive,
		UpdatedAt: time.Now().UTC(),
	}
	if err := e.store.Save(ctx, e.sessionID, p); err != nil {
		e.logger.Warn("failed to save progress", "step", index, "err", err)
	}
}

func (e *Engine) forgetProgress(ctx context.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.Delete(ctx, e.sessionID); err != nil {
		e.logger.Warn("failed to clear progress", "err", err)
	}
}
