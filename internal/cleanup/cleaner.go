// Package cleanup reverts inline styles that tour overlays leave on protected
// layout elements (the sidebar, mostly) once the tour is no longer running.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// ProtectedElement names an element and the inline style properties the tour must not leave behind.
type ProtectedElement struct {
	Selector   string   `json:"selector" yaml:"selector" toml:"selector"`
	Properties []string `json:"properties" yaml:"properties" toml:"properties"`
}

// DefaultDelays are the re-sweep delays after a tour stops. Overlays restore
// styles asynchronously while they unmount, so one sweep is not enough.
var DefaultDelays = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second}

var layoutProperties = []string{"height", "max-height", "min-height", "display", "position"}

// DefaultProtected returns the sidebar elements of the learning dashboard.
func DefaultProtected() []ProtectedElement {
	nav := append(append([]string(nil), layoutProperties...), "z-index", "overflow")
	return []ProtectedElement{
		{Selector: `[data-joyride="sidebar-nav"]`, Properties: nav},
		{Selector: `[class*="sidebar"]`, Properties: layoutProperties},
		{Selector: `[class*="sidebarContainer"]`, Properties: layoutProperties},
	}
}

// Cleaner owns the style observers and delayed sweeps of one engine.
type Cleaner struct {
	doc     ports.Document
	targets []ProtectedElement
	delays  []time.Duration
	running func() bool
	logger  *slog.Logger

	mu       sync.Mutex
	attached map[string]ports.Unsubscribe
	timers   map[int]*time.Timer
	nextID   int
	closed   bool
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithTargets replaces the protected elements.
func WithTargets(targets []ProtectedElement) Option {
	return func(c *Cleaner) {
		c.targets = targets
	}
}

// WithDelays replaces the re-sweep delays.
func WithDelays(delays []time.Duration) Option {
	return func(c *Cleaner) {
		c.delays = delays
	}
}

// WithRunning sets the probe used by observers to decide whether the tour is
// still running. The probe must not block.
func WithRunning(fn func() bool) Option {
	return func(c *Cleaner) {
		c.running = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleaner) {
		c.logger = logger
	}
}

// New creates a Cleaner over doc.
func New(doc ports.Document, opts ...Option) *Cleaner {
	c := &Cleaner{
		doc:      doc,
		targets:  DefaultProtected(),
		delays:   DefaultDelays,
		running:  func() bool { return false },
		logger:   logging.NewNop(),
		attached: make(map[string]ports.Unsubscribe),
		timers:   make(map[int]*time.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach installs a style observer on every protected element that exists and
// is not yet observed. Absent elements are retried on the next sweep.
func (c *Cleaner) Attach(ctx context.Context) error {
	var errs []error
	for _, target := range c.targets {
		if err := c.attach(ctx, target); err != nil {
			errs = append(errs, err)
		}
	}
	return c.fail("attach", errs)
}

func (c *Cleaner) attach(ctx context.Context, target ProtectedElement) error {
	c.mu.Lock()
	_, done := c.attached[target.Selector]
	closed := c.closed
	c.mu.Unlock()
	if done || closed {
		return nil
	}

	el, err := c.doc.Query(ctx, target.Selector)
	if err != nil {
		return fmt.Errorf("query %s: %w", target.Selector, err)
	}
	if el == nil {
		return nil
	}

	// Observers outlive the call that installed them.
	bg := context.WithoutCancel(ctx)
	unsubscribe, err := c.doc.ObserveStyle(ctx, target.Selector, func() {
		if c.running() {
			return
		}
		if err := c.revert(bg, target); err != nil {
			c.logger.Warn("style revert failed", "selector", target.Selector, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("observe %s: %w", target.Selector, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.attached[target.Selector]; dup || c.closed {
		unsubscribe()
		return nil
	}
	c.attached[target.Selector] = unsubscribe
	return nil
}

func (c *Cleaner) revert(ctx context.Context, target ProtectedElement) error {
	var errs []error
	for _, prop := range target.Properties {
		v, err := c.doc.InlineStyle(ctx, target.Selector, prop)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s %s: %w", target.Selector, prop, err))
			continue
		}
		if v == "" {
			continue
		}
		if err := c.doc.RemoveStyleProperty(ctx, target.Selector, prop); err != nil {
			errs = append(errs, fmt.Errorf("remove %s %s: %w", target.Selector, prop, err))
		}
	}
	return errors.Join(errs...)
}

// Sweep removes every protected property from every protected element now,
// attaching observers to elements that appeared since the last attempt.
func (c *Cleaner) Sweep(ctx context.Context) error {
	var errs []error
	for _, target := range c.targets {
		if err := c.attach(ctx, target); err != nil {
			errs = append(errs, err)
		}
		if err := c.revert(ctx, target); err != nil {
			errs = append(errs, err)
		}
	}
	return c.fail("sweep", errs)
}

// TourStopped sweeps immediately and schedules the delayed re-sweeps.
// Failures are logged and returned; they never affect tour state.
func (c *Cleaner) TourStopped(ctx context.Context) error {
	err := c.Sweep(ctx)

	bg := context.WithoutCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return err
	}
	for _, d := range c.delays {
		id := c.nextID
		c.nextID++
		c.timers[id] = time.AfterFunc(d, func() {
			c.mu.Lock()
			_, pending := c.timers[id]
			delete(c.timers, id)
			c.mu.Unlock()
			if !pending || c.running() {
				return
			}
			_ = c.Sweep(bg)
		})
	}
	return err
}

// CancelPending stops re-sweeps that have not fired yet. The engine calls it
// when a new tour starts.
func (c *Cleaner) CancelPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

// Pending returns the number of scheduled re-sweeps.
func (c *Cleaner) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Observers returns the number of installed style observers.
func (c *Cleaner) Observers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.attached)
}

// Close releases observers and pending re-sweeps. The Cleaner cannot be reused.
func (c *Cleaner) Close() {
	c.CancelPending()

	c.mu.Lock()
	c.closed = true
	unsubs := make([]ports.Unsubscribe, 0, len(c.attached))
	for sel, u := range c.attached {
		unsubs = append(unsubs, u)
		delete(c.attached, sel)
	}
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func (c *Cleaner) fail(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	err := fmt.Errorf("%w: %s: %w", domain.ErrCleanup, op, errors.Join(errs...))
	c.logger.Warn("cleanup incomplete", "op", op, "err", err)
	return err
}
