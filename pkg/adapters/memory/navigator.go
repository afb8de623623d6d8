package memory

import (
	"context"
	"sync"

	"github.com/aretw0/waypoint/pkg/ports"
)

// Navigator implements ports.Navigator and ports.RouteWatcher in memory.
// It keeps a history stack so tests can assert replace semantics.
type Navigator struct {
	mu       sync.Mutex
	history  []string
	requests []string
	fail     error
	failOn   map[string]error
	onRoute  func(route string)
	watchers map[chan string]struct{}
}

// NewNavigator creates a navigator positioned at route.
func NewNavigator(route string) *Navigator {
	return &Navigator{
		history:  []string{route},
		watchers: make(map[chan string]struct{}),
	}
}

// OnRoute registers fn to be called after every route change. Tests use it
// to "render" the elements of the new page.
func (n *Navigator) OnRoute(fn func(route string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onRoute = fn
}

// FailWith makes subsequent Navigate calls fail with err (nil restores).
func (n *Navigator) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = err
}

// FailOn makes Navigate calls to route fail with err (nil restores).
func (n *Navigator) FailOn(route string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn == nil {
		n.failOn = make(map[string]error)
	}
	if err == nil {
		delete(n.failOn, route)
		return
	}
	n.failOn[route] = err
}

// History returns a copy of the history stack.
func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}

// Requests returns every route passed to Navigate, in order.
func (n *Navigator) Requests() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.requests...)
}

// Route returns the current route.
func (n *Navigator) Route() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history[len(n.history)-1]
}

// CurrentRoute implements ports.Navigator.
func (n *Navigator) CurrentRoute(ctx context.Context) (string, error) {
	return n.Route(), nil
}

// Navigate implements ports.Navigator.
func (n *Navigator) Navigate(ctx context.Context, route string, opts ports.NavigateOptions) error {
	n.mu.Lock()
	if err := n.fail; err != nil {
		n.mu.Unlock()
		return err
	}
	if err := n.failOn[route]; err != nil {
		n.mu.Unlock()
		return err
	}
	n.requests = append(n.requests, route)
	n.mu.Unlock()

	n.move(route, opts.Replace)
	return nil
}

// Visit simulates the learner following a link: it pushes a history entry
// and notifies route watchers.
func (n *Navigator) Visit(route string) {
	n.move(route, false)
}

func (n *Navigator) move(route string, replace bool) {
	n.mu.Lock()
	if replace {
		n.history[len(n.history)-1] = route
	} else {
		n.history = append(n.history, route)
	}
	fn := n.onRoute
	for ch := range n.watchers {
		select {
		case ch <- route:
		default:
		}
	}
	n.mu.Unlock()

	if fn != nil {
		fn(route)
	}
}

// WatchRoutes implements ports.RouteWatcher. The channel is closed when ctx ends.
func (n *Navigator) WatchRoutes(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 8)
	n.mu.Lock()
	n.watchers[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.watchers, ch)
		n.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
