package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/observability"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

// Server exposes tour sessions over HTTP. Hosts drive the engine with
// commands, mirror their DOM and routes into sessions backed by the memory
// adapters, and follow the tour through a per-session event stream.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager

	spec    *openapi3.T
	watch   func(ctx context.Context) (<-chan string, error)
	metrics *observability.Metrics
	locker  ports.DistributedLocker
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWatch enables the global hot-reload stream on GET /events.
func WithWatch(fn func(ctx context.Context) (<-chan string, error)) Option {
	return func(s *Server) {
		s.watch = fn
	}
}

// WithMetrics records session metrics and serves them on GET /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLocker coordinates session access across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(s *Server) {
		s.locker = l
	}
}

// NewServer creates a Server whose sessions are built by factory.
func NewServer(ctx context.Context, factory session.Factory, opts ...Option) (*Server, error) {
	s := &Server{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	spec, err := LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	s.spec = spec
	s.Streams = NewStreamManager(s.logger)

	hooks := s.streamHooks()
	if s.metrics != nil {
		hooks = hooks.Merge(s.metrics.Hooks())
	}
	mgrOpts := []session.Option{
		session.WithLogger(s.logger),
		session.WithEngineOptions(waypoint.WithLifecycleHooks(hooks), waypoint.WithLogger(s.logger)),
		session.WithObserver(s.sessionOpened, s.sessionClosed),
	}
	if s.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(s.locker))
	}
	s.Sessions = session.NewManager(factory, mgrOpts...)
	return s, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/events", s.SubscribeReload)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Put("/", s.OpenSession)
			r.Get("/", s.GetSession)
			r.Delete("/", s.CloseSession)
			r.Get("/tour", s.GetTour)
			r.Get("/events", s.SubscribeEvents)
			r.Post("/goto", s.GoTo)
			r.Post("/route", s.ReportRoute)
			r.Put("/elements", s.PutElement)
			r.Delete("/elements", s.DeleteElement)
			r.Post("/{command}", s.Command)
		})
	})
	return r
}

// Close tears down every session.
func (s *Server) Close(ctx context.Context) error {
	return s.Sessions.Shutdown(ctx)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionResponse is the snapshot returned by session endpoints.
type SessionResponse struct {
	SessionID string           `json:"session_id"`
	TourID    string           `json:"tour_id"`
	State     domain.TourState `json:"state"`
	Step      *domain.Step     `json:"step,omitempty"`
	Total     int              `json:"total"`
}

func snapshot(s *session.Session) SessionResponse {
	resp := SessionResponse{
		SessionID: s.ID,
		TourID:    s.Engine.Definition().ID,
		State:     s.Engine.State(),
		Total:     s.Engine.TotalSteps(),
	}
	if step, ok := s.Engine.CurrentStep(); ok {
		resp.Step = &step
	}
	return resp
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "waypoint-http",
		"version":     waypoint.Version,
		"api_version": apiVersion,
	})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.Sessions.List()})
}

// OpenSession handles PUT /sessions/{sessionID}. Opening is idempotent.
func (s *Server) OpenSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.Sessions.Open(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot(sess))
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot(sess))
}

// CloseSession handles DELETE /sessions/{sessionID}.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTour handles GET /sessions/{sessionID}/tour.
func (s *Server) GetTour(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Engine.Definition())
}

var commands = map[string]func(*waypoint.Engine, context.Context) error{
	"start":    (*waypoint.Engine).Start,
	"resume":   (*waypoint.Engine).Resume,
	"next":     (*waypoint.Engine).Next,
	"previous": (*waypoint.Engine).Previous,
	"skip":     (*waypoint.Engine).Skip,
	"finish":   (*waypoint.Engine).Finish,
	"stop":     (*waypoint.Engine).Stop,
	"reset":    (*waypoint.Engine).Reset,
}

// Command handles POST /sessions/{sessionID}/{command}.
func (s *Server) Command(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	cmd, ok := commands[name]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown command %q", name), http.StatusNotFound)
		return
	}
	s.do(w, r, func(ctx context.Context, sess *session.Session) error {
		return cmd(sess.Engine, ctx)
	})
}

// GoTo handles POST /sessions/{sessionID}/goto.
func (s *Server) GoTo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index *int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Index == nil {
		http.Error(w, "Invalid request body: index is required", http.StatusBadRequest)
		return
	}
	s.do(w, r, func(ctx context.Context, sess *session.Session) error {
		return sess.Engine.GoTo(ctx, *body.Index)
	})
}

// ReportRoute handles POST /sessions/{sessionID}/route: the host reports that
// the learner moved to another page.
func (s *Server) ReportRoute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Route string `json:"route"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Route == "" {
		http.Error(w, "Invalid request body: route is required", http.StatusBadRequest)
		return
	}
	s.do(w, r, func(ctx context.Context, sess *session.Session) error {
		if nav, ok := sess.Navigator.(*memory.Navigator); ok {
			// Mirrored navigators feed the engine through their route watcher.
			nav.Visit(body.Route)
			return nil
		}
		return sess.Engine.NotifyRoute(ctx, body.Route)
	})
}

// ElementRequest mirrors one element of the host page.
type ElementRequest struct {
	Selector   string            `json:"selector"`
	Visible    *bool             `json:"visible,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// PutElement handles PUT /sessions/{sessionID}/elements.
func (s *Server) PutElement(w http.ResponseWriter, r *http.Request) {
	var body ElementRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Selector == "" {
		http.Error(w, "Invalid request body: selector is required", http.StatusBadRequest)
		return
	}
	s.mirror(w, r, func(doc *memory.Document) {
		var opts []memory.ElementOption
		if body.Visible != nil && !*body.Visible {
			opts = append(opts, memory.Hidden())
		}
		for name, value := range body.Attributes {
			opts = append(opts, memory.WithAttribute(name, value))
		}
		doc.Add(body.Selector, opts...)
	})
}

// DeleteElement handles DELETE /sessions/{sessionID}/elements?selector=...
func (s *Server) DeleteElement(w http.ResponseWriter, r *http.Request) {
	selector := r.URL.Query().Get("selector")
	if selector == "" {
		http.Error(w, "selector is required", http.StatusBadRequest)
		return
	}
	s.mirror(w, r, func(doc *memory.Document) {
		doc.Remove(selector)
	})
}

func (s *Server) mirror(w http.ResponseWriter, r *http.Request, fn func(*memory.Document)) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, ok := sess.Document.(*memory.Document)
	if !ok {
		http.Error(w, "session document is not mirrored", http.StatusConflict)
		return
	}
	fn(doc)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) do(w http.ResponseWriter, r *http.Request, fn func(context.Context, *session.Session) error) {
	var resp SessionResponse
	err := s.Sessions.Do(r.Context(), chi.URLParam(r, "sessionID"), func(ctx context.Context, sess *session.Session) error {
		if err := fn(ctx, sess); err != nil {
			return err
		}
		resp = snapshot(sess)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// SubscribeEvents handles GET /sessions/{sessionID}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.Sessions.Get(id); err != nil {
		s.writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	streamHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// SubscribeReload handles GET /events: one message per tour source change.
func (s *Server) SubscribeReload(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		http.Error(w, "tour source does not support watching", http.StatusNotImplemented)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	events, err := s.watch(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Watch error: %v", err), http.StatusInternalServerError)
		return
	}

	streamHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", event)
			flusher.Flush()
		}
	}
}

func streamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func (s *Server) streamHooks() domain.LifecycleHooks {
	state := func(id string) domain.TourState {
		if sess, err := s.Sessions.Get(id); err == nil {
			return sess.Engine.State()
		}
		return domain.NewTourState()
	}
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			ev := Event{Type: e.Type, SessionID: e.SessionID, Route: e.Route, State: state(e.SessionID)}
			if sess, err := s.Sessions.Get(e.SessionID); err == nil {
				if step, err := sess.Engine.Definition().StepAt(e.Index); err == nil {
					ev.Step = &step
				}
			}
			s.Streams.Publish(ev)
		},
		OnStepSkipped: func(_ context.Context, e *domain.StepEvent) {
			s.Streams.Publish(Event{Type: e.Type, SessionID: e.SessionID, Route: e.Route, Reason: e.Reason, State: state(e.SessionID)})
		},
		OnNavigate: func(_ context.Context, e *domain.NavigationEvent) {
			if e.IsError {
				return
			}
			s.Streams.Publish(Event{Type: e.Type, SessionID: e.SessionID, Route: e.To, State: state(e.SessionID)})
		},
		OnComplete: func(_ context.Context, e *domain.TourEvent) {
			s.Streams.Publish(Event{Type: e.Type, SessionID: e.SessionID, State: state(e.SessionID)})
		},
		OnSkip: func(_ context.Context, e *domain.TourEvent) {
			s.Streams.Publish(Event{Type: e.Type, SessionID: e.SessionID, State: state(e.SessionID)})
		},
	}
}

func (s *Server) sessionOpened(*session.Session) {
	if s.metrics != nil {
		s.metrics.Active.Inc()
	}
}

func (s *Server) sessionClosed(*session.Session) {
	if s.metrics != nil {
		s.metrics.Active.Dec()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStep):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotRunning):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrTargetNotFound):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNavigation):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}
