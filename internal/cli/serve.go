package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/aretw0/waypoint/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/waypoint/pkg/adapters/mcp"
	rodAdapter "github.com/aretw0/waypoint/pkg/adapters/rod"
	"github.com/aretw0/waypoint/pkg/observability"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/session"
)

// ShutdownTimeout bounds graceful shutdown of the listeners and sessions.
const ShutdownTimeout = 5 * time.Second

// NewAPI builds the HTTP adapter for the stack. Sessions mirror a host page
// unless a browser URL is configured, in which case each session drives its
// own tab. The returned cleanup closes that browser.
func (s *Stack) NewAPI(ctx context.Context, metrics *observability.Metrics) (*httpAdapter.Server, func(), error) {
	var factory session.Factory = s.MirrorFactory()
	cleanup := func() {}

	if bc := s.Config.Browser; bc.URL != "" {
		browser, err := rodAdapter.Launch(ctx, rodAdapter.LaunchOptions{
			ControlURL: bc.ControlURL,
			Headless:   bc.Headless,
			Bin:        bc.Bin,
		}, s.Logger)
		if err != nil {
			return nil, nil, err
		}
		factory = s.BrowserFactory(browser, bc.URL)
		cleanup = func() { _ = browser.Close() }
	}

	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(s.Logger),
		httpAdapter.WithMetrics(metrics),
	}
	if _, ok := s.Loader.(ports.Watchable); ok {
		opts = append(opts, httpAdapter.WithWatch(s.Watch))
	}
	if s.Locker != nil {
		opts = append(opts, httpAdapter.WithLocker(s.Locker))
	}
	srv, err := httpAdapter.NewServer(ctx, factory, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

// Serve runs the HTTP API (and a dedicated metrics listener when one is
// configured) until ctx is cancelled.
func (s *Stack) Serve(ctx context.Context) error {
	metrics := observability.NewMetrics()
	api, cleanup, err := s.NewAPI(ctx, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	servers := []*http.Server{{Addr: s.Config.HTTP.Addr, Handler: api.Handler()}}
	if addr := s.Config.HTTP.MetricsAddr; addr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{Addr: addr, Handler: r})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			s.Logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		errs = append(errs, api.Close(shutdownCtx))
		s.Logger.Info("server stopped")
		return errors.Join(errs...)
	})
	return g.Wait()
}

// ServeMCP exposes the authoring tools over stdio, or over SSE when addr is set.
func (s *Stack) ServeMCP(ctx context.Context, addr, baseURL string) error {
	srv := mcpAdapter.NewServer(s.Loader, s.Logger)
	if addr == "" {
		return srv.ServeStdio()
	}
	if baseURL == "" {
		baseURL = "http://localhost" + addr
	}
	return srv.ServeSSE(ctx, addr, baseURL)
}
