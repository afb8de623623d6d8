// Package element waits for tour targets to appear in a document.
//
// Waiting is event driven: the waiter subscribes to child-list mutations and
// re-queries on each notification instead of polling. Every wait releases its
// subscription and timer on all exit paths.
package element

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Default timings.
const (
	DefaultTimeout            = 5 * time.Second
	DefaultVisibilityInterval = 100 * time.Millisecond
)

// Waiter resolves selectors against a document.
type Waiter struct {
	doc                ports.Document
	root               string
	visibilityInterval time.Duration
	logger             *slog.Logger
	active             atomic.Int64
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithRoot limits mutation observation to the subtree under selector.
func WithRoot(selector string) Option {
	return func(w *Waiter) {
		w.root = selector
	}
}

// WithVisibilityInterval sets how often WaitForVisibleElement re-checks visibility.
func WithVisibilityInterval(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.visibilityInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Waiter) {
		w.logger = logger
	}
}

// NewWaiter creates a Waiter over doc. Mutations are observed on "body" by default.
func NewWaiter(doc ports.Document, opts ...Option) *Waiter {
	w := &Waiter{
		doc:                doc,
		root:               "body",
		visibilityInterval: DefaultVisibilityInterval,
		logger:             logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ActiveWaits returns the number of waits in flight.
func (w *Waiter) ActiveWaits() int {
	return int(w.active.Load())
}

// WaitForElement returns the first element matching selector. It checks the
// document immediately, then on every child-list mutation. A non-positive
// timeout waits until ctx ends. Expiry yields an error wrapping
// domain.ErrTargetNotFound.
func (w *Waiter) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (ports.Element, error) {
	if selector == "" {
		return nil, fmt.Errorf("%w: empty selector", domain.ErrTargetNotFound)
	}
	w.active.Add(1)
	defer w.active.Add(-1)

	el, err := w.doc.Query(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	if el != nil {
		return el, nil
	}

	notify := make(chan struct{}, 1)
	unsubscribe, err := w.doc.ObserveChildren(ctx, w.root, func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("observe %s: %w", w.root, err)
	}
	defer unsubscribe()

	// The element may have been inserted between the first query and the subscription.
	if el, err := w.doc.Query(ctx, selector); err != nil || el != nil {
		return el, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-expired:
			return nil, fmt.Errorf("%w: %s after %s", domain.ErrTargetNotFound, selector, timeout)
		case <-notify:
			el, err := w.doc.Query(ctx, selector)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", selector, err)
			}
			if el != nil {
				w.logger.Debug("element appeared", "selector", selector, "waited", time.Since(start))
				return el, nil
			}
		}
	}
}

// WaitForVisibleElement waits for selector to exist and then to become
// visible, re-checking every visibility interval. Each phase is bounded by
// timeout. A present but never visible element yields domain.ErrTargetHidden.
func (w *Waiter) WaitForVisibleElement(ctx context.Context, selector string, timeout time.Duration) (ports.Element, error) {
	el, err := w.WaitForElement(ctx, selector, timeout)
	if err != nil {
		return nil, err
	}

	w.active.Add(1)
	defer w.active.Add(-1)

	ticker := time.NewTicker(w.visibilityInterval)
	defer ticker.Stop()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		visible, err := el.Visible(ctx)
		if err != nil {
			return nil, fmt.Errorf("visibility of %s: %w", selector, err)
		}
		if visible {
			return el, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-expired:
			return nil, fmt.Errorf("%w: %s", domain.ErrTargetHidden, selector)
		case <-ticker.C:
		}
	}
}

// WaitForAll waits for every selector concurrently and fails on the first error.
// The returned elements are in selector order.
func (w *Waiter) WaitForAll(ctx context.Context, selectors []string, timeout time.Duration) ([]ports.Element, error) {
	els := make([]ports.Element, len(selectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, selector := range selectors {
		g.Go(func() error {
			el, err := w.WaitForElement(gctx, selector, timeout)
			els[i] = el
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return els, nil
}
