package waypoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/waypoint/internal/cleanup"
	"github.com/aretw0/waypoint/internal/element"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/internal/validator"
	fileAdapter "github.com/aretw0/waypoint/pkg/adapters/file"
	loamAdapter "github.com/aretw0/waypoint/pkg/adapters/loam"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/google/uuid"
)

// ProtectedElement names an element whose inline layout styles are reverted
// after the tour ends.
type ProtectedElement = cleanup.ProtectedElement

// Engine is the high-level entry point of the Waypoint library.
// It binds one tour definition to one document and navigator for one session.
type Engine struct {
	runtime  *runtime.Engine
	loader   ports.DefinitionLoader
	doc      ports.Document
	nav      ports.Navigator
	store    ports.ProgressStore
	recorder ports.CompletionRecorder
	logger   *slog.Logger

	sessionID         string
	userID            string
	validationTimeout time.Duration
	strict            bool
	hooks             domain.LifecycleHooks
	runtimeOpts       []runtime.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLoader injects a custom DefinitionLoader, bypassing source resolution.
func WithLoader(l ports.DefinitionLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithDefinition runs def instead of loading one.
func WithDefinition(def *domain.Definition) Option {
	return func(e *Engine) {
		e.loader = memory.NewLoader(def)
	}
}

// WithSessionID sets the session identifier. A random one is used by default.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithUserID sets the learner identifier that owns the completion flag.
func WithUserID(id string) Option {
	return func(e *Engine) {
		e.userID = id
	}
}

// WithProgressStore enables Resume.
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

// WithElementTimeout bounds how long a step target is awaited before the step is skipped.
func WithElementTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithElementTimeout(d))
	}
}

// WithVisibilityInterval sets the polling interval of visibility checks.
func WithVisibilityInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithWaiterOptions(element.WithVisibilityInterval(d)))
	}
}

// WithCompletionDelay sets the pause between the final navigation and completion.
func WithCompletionDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCompletionDelay(d))
	}
}

// WithExpansionSelectors configures how collapsed sections are opened.
func WithExpansionSelectors(control, marker string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithExpansionSelectors(control, marker))
	}
}

// WithProtectedElements replaces the elements cleaned up after the tour.
func WithProtectedElements(targets []ProtectedElement) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithProtectedElements(targets))
	}
}

// WithCleanupDelays replaces the delayed cleanup schedule.
func WithCleanupDelays(delays []time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCleanupDelays(delays))
	}
}

// WithTargetValidation sets how long Start waits for the targets of the
// current route. Strict makes missing targets fail Start.
func WithTargetValidation(timeout time.Duration, strict bool) Option {
	return func(e *Engine) {
		e.validationTimeout = timeout
		e.strict = strict
	}
}

// New loads a tour and binds it to doc and nav.
//
// source selects the definition: a directory is read as one markdown document
// per step, a .yaml/.yml/.json file as a whole definition, and "" as the
// built-in tour. WithLoader and WithDefinition take precedence over source.
func New(ctx context.Context, source string, doc ports.Document, nav ports.Navigator, opts ...Option) (*Engine, error) {
	eng := &Engine{
		doc:               doc,
		nav:               nav,
		validationTimeout: validator.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.sessionID == "" {
		eng.sessionID = uuid.NewString()
	}
	if eng.userID == "" {
		eng.userID = eng.sessionID
	}

	if eng.loader == nil {
		loader, err := OpenLoader(source)
		if err != nil {
			return nil, err
		}
		eng.loader = loader
	}

	def, err := eng.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tour: %w", err)
	}
	if def.Len() == 0 {
		return nil, fmt.Errorf("%w: tour %q has no steps", domain.ErrInvalidDefinition, def.ID)
	}
	if err := def.Validate().Err(); err != nil {
		eng.logger.Warn("tour definition has problems, affected steps will be skipped", "tour", def.ID, "err", err)
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithSessionID(eng.sessionID),
		runtime.WithUserID(eng.userID),
		runtime.WithProgressStore(eng.store),
		runtime.WithCompletionRecorder(eng.recorder),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(def, doc, nav, runtimeOpts...)
	return eng, nil
}

// OpenLoader returns the loader New uses for source.
func OpenLoader(source string) (ports.DefinitionLoader, error) {
	if source == "" {
		return memory.NewLoader(domain.DefaultDefinition()), nil
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("invalid tour source: %w", err)
	}
	if info.IsDir() {
		return loamAdapter.Open(source)
	}
	switch filepath.Ext(source) {
	case ".yaml", ".yml", ".json":
		return fileAdapter.NewLoader(source), nil
	}
	return nil, fmt.Errorf("unsupported tour source %q", source)
}

// Start validates the targets of the current route and begins the tour at the
// first step. Missing targets are logged unless strict validation is on.
func (e *Engine) Start(ctx context.Context) error {
	if e.runtime.IsRunning() {
		return nil
	}
	if err := e.checkTargets(ctx); err != nil {
		return err
	}
	return e.runtime.Start(ctx)
}

func (e *Engine) checkTargets(ctx context.Context) error {
	if e.validationTimeout <= 0 {
		return nil
	}
	opts := validator.Options{
		Timeout: e.validationTimeout,
		Strict:  e.strict,
		Logger:  e.logger,
	}
	route, err := e.nav.CurrentRoute(ctx)
	if err != nil {
		e.logger.Warn("target validation skipped", "err", err)
		return nil
	}
	opts.Route = route
	_, err = validator.CheckTargets(ctx, e.doc, e.runtime.Definition(), opts)
	return err
}

// Resume continues the session from its saved progress, or starts from the
// beginning when there is none.
func (e *Engine) Resume(ctx context.Context) error {
	if e.store == nil {
		return e.Start(ctx)
	}
	p, err := e.store.Load(ctx, e.sessionID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return e.Start(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}
	if p.TourID != e.runtime.Definition().ID || p.StepIndex < 0 || p.StepIndex >= e.runtime.TotalSteps() {
		e.logger.Warn("discarding stale progress", "tour", p.TourID, "step", p.StepIndex)
		return e.Start(ctx)
	}
	return e.runtime.StartAt(ctx, p.StepIndex)
}

// ShouldStart reports whether the learner has not completed the tour yet.
// Without a recorder it is always true.
func (e *Engine) ShouldStart(ctx context.Context) (bool, error) {
	if e.recorder == nil {
		return true, nil
	}
	done, err := e.recorder.IsCompleted(ctx, e.userID, e.runtime.Definition().ID)
	if err != nil {
		return false, err
	}
	return !done, nil
}

// Reset clears the completion flag and saved progress, then starts the tour again.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.runtime.Stop(ctx); err != nil {
		return err
	}
	if e.recorder != nil {
		if err := e.recorder.Reset(ctx, e.userID, e.runtime.Definition().ID); err != nil {
			return fmt.Errorf("failed to reset completion: %w", err)
		}
	}
	if e.store != nil {
		if err := e.store.Delete(ctx, e.sessionID); err != nil {
			return fmt.Errorf("failed to reset progress: %w", err)
		}
	}
	return e.Start(ctx)
}

// Stop ends the tour without completing it. Saved progress is kept.
func (e *Engine) Stop(ctx context.Context) error {
	return e.runtime.Stop(ctx)
}

// Skip ends the tour at the learner's request. It never completes the tour.
func (e *Engine) Skip(ctx context.Context) error {
	return e.runtime.Skip(ctx)
}

// Next advances to the following step.
func (e *Engine) Next(ctx context.Context) error {
	return e.runtime.Next(ctx)
}

// Previous moves back one step.
func (e *Engine) Previous(ctx context.Context) error {
	return e.runtime.Previous(ctx)
}

// GoTo jumps to step k.
func (e *Engine) GoTo(ctx context.Context, k int) error {
	return e.runtime.GoTo(ctx, k)
}

// Finish completes the tour. Finishing twice completes it once.
func (e *Engine) Finish(ctx context.Context) error {
	return e.runtime.Finish(ctx)
}

// NotifyRoute reports a route change made by the learner.
func (e *Engine) NotifyRoute(ctx context.Context, route string) error {
	return e.runtime.NotifyRoute(ctx, route)
}

// OnStepChange registers fn for each step shown and returns its unsubscribe func.
func (e *Engine) OnStepChange(fn func(domain.Step)) func() {
	return e.runtime.OnStepChange(fn)
}

// OnComplete registers fn for tour completion and returns its unsubscribe func.
func (e *Engine) OnComplete(fn func()) func() {
	return e.runtime.OnComplete(fn)
}

// OnSkip registers fn for tour skips and returns its unsubscribe func.
func (e *Engine) OnSkip(fn func()) func() {
	return e.runtime.OnSkip(fn)
}

// CurrentStep returns the step being shown, or false when idle.
func (e *Engine) CurrentStep() (domain.Step, bool) {
	return e.runtime.CurrentStep()
}

// IsRunning reports whether the tour is active.
func (e *Engine) IsRunning() bool {
	return e.runtime.IsRunning()
}

// TotalSteps returns the number of steps.
func (e *Engine) TotalSteps() int {
	return e.runtime.TotalSteps()
}

// State returns a snapshot of the tour state.
func (e *Engine) State() domain.TourState {
	return e.runtime.State()
}

// SessionID returns the session identifier.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Definition returns the loaded tour.
func (e *Engine) Definition() *domain.Definition {
	return e.runtime.Definition()
}

// Watch returns a channel that signals when the tour source changes.
// Returns error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}

// Loader returns the underlying DefinitionLoader.
func (e *Engine) Loader() ports.DefinitionLoader {
	return e.loader
}

// Close stops the tour and releases every observer and timer.
func (e *Engine) Close() error {
	return e.runtime.Close()
}
