package ports

import "context"

// NavigateOptions tunes a navigation request.
type NavigateOptions struct {
	// Replace rewrites the current history entry instead of pushing a new one,
	// so that the back button does not walk through tour navigations.
	Replace bool
}

// Navigator changes the client-side route of the host application.
type Navigator interface {
	// CurrentRoute returns the current location, possibly with query or fragment.
	CurrentRoute(ctx context.Context) (string, error)

	// Navigate requests a route change. It returns once the request is issued;
	// it does not wait for the new page to render.
	Navigate(ctx context.Context, route string, opts NavigateOptions) error
}

// RouteWatcher is implemented by navigators that can report route changes
// initiated by the learner (e.g. clicking a navigation link).
type RouteWatcher interface {
	WatchRoutes(ctx context.Context) (<-chan string, error)
}
