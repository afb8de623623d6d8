package runner

import (
	"log/slog"
)

// Option configures a Runner.
type Option func(*Runner)

// WithHandler sets the IO strategy. Defaults to a TextHandler on stdio.
func WithHandler(h Handler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithResume makes Run continue saved progress instead of starting over.
func WithResume(resume bool) Option {
	return func(r *Runner) {
		r.resume = resume
	}
}

// WithVisitor routes the route command through v, so the page moves the way
// a learner's browser would. Without one, routes go to Engine.NotifyRoute.
func WithVisitor(v Visitor) Option {
	return func(r *Runner) {
		r.visitor = v
	}
}
