// Package navigation keeps the host application on the route a tour step needs.
package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Coordinator requests route changes through a ports.Navigator.
type Coordinator struct {
	nav    ports.Navigator
	logger *slog.Logger
	onNav  func(ctx context.Context, e *domain.NavigationEvent)
	before func(route string)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithHook registers a callback invoked after each navigation request.
func WithHook(fn func(ctx context.Context, e *domain.NavigationEvent)) Option {
	return func(c *Coordinator) {
		c.onNav = fn
	}
}

// WithRequestHook registers a callback invoked right before each navigation
// request, so route watchers can recognise the resulting route change.
func WithRequestHook(fn func(route string)) Option {
	return func(c *Coordinator) {
		c.before = fn
	}
}

// New creates a Coordinator.
func New(nav ports.Navigator, opts ...Option) *Coordinator {
	c := &Coordinator{nav: nav, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize reduces a location to its path, without query, fragment or trailing slash.
func Normalize(route string) string {
	if u, err := url.Parse(route); err == nil && u.Path != "" {
		route = u.Path
	} else if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}
	return route
}

// Matches reports whether the application at current satisfies route. Paths
// are compared without trailing slash and fragments are ignored. A query in
// route must match exactly; a route without a query accepts any query.
func Matches(current, route string) bool {
	cp, cq := split(current)
	wp, wq := split(route)
	return cp == wp && (wq == "" || cq == wq)
}

func split(route string) (path, query string) {
	if u, err := url.Parse(route); err == nil && u.Path != "" {
		path, query = u.Path, u.RawQuery
	} else {
		if i := strings.IndexByte(route, '#'); i >= 0 {
			route = route[:i]
		}
		path, query, _ = strings.Cut(route, "?")
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path, query
}

// Current returns the current route as reported by the navigator.
func (c *Coordinator) Current(ctx context.Context) (string, error) {
	route, err := c.nav.CurrentRoute(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: reading current route: %w", domain.ErrNavigation, err)
	}
	return route, nil
}

// EnsureRoute navigates to route unless the application is already there.
// Navigation replaces the current history entry and keeps route as written,
// query included. It returns once the navigation was requested; the new page
// may not be rendered yet. It reports whether a navigation was issued.
func (c *Coordinator) EnsureRoute(ctx context.Context, route string) (bool, error) {
	if route == "" {
		return false, nil
	}
	current, err := c.Current(ctx)
	if err != nil {
		return false, err
	}
	if Matches(current, route) {
		return false, nil
	}

	c.logger.Debug("navigating", "from", current, "to", route)
	if c.before != nil {
		c.before(route)
	}
	err = c.nav.Navigate(ctx, route, ports.NavigateOptions{Replace: true})
	if c.onNav != nil {
		e := &domain.NavigationEvent{
			EventBase: domain.NewEventBase(domain.EventNavigate, "", ""),
			From:      current,
			To:        route,
			IsError:   err != nil,
		}
		c.onNav(ctx, e)
	}
	if err != nil {
		return false, fmt.Errorf("%w: %s -> %s: %w", domain.ErrNavigation, current, route, err)
	}
	return true, nil
}
