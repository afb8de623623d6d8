package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TourURI is the resource exposing the current tour definition.
const TourURI = "waypoint://tour"

// simulationTimeout bounds the wait for a missing target during simulate_tour.
const simulationTimeout = 20 * time.Millisecond

// ValidationResponse is the result of validate_tour.
type ValidationResponse struct {
	Valid  bool     `json:"valid" jsonschema_description:"Whether the tour satisfies every structural rule"`
	Steps  int      `json:"steps" jsonschema_description:"Number of steps in the tour"`
	Errors []string `json:"errors,omitempty" jsonschema_description:"One message per violated rule"`
}

// SimulationResponse is the result of simulate_tour.
type SimulationResponse struct {
	Shown     []int    `json:"shown" jsonschema_description:"Indices of the steps a learner would see, in order"`
	Skipped   []int    `json:"skipped,omitempty" jsonschema_description:"Indices skipped because their target is missing"`
	Routes    []string `json:"routes,omitempty" jsonschema_description:"Route changes requested by the engine"`
	Completed bool     `json:"completed" jsonschema_description:"Whether the tour reached completion"`
}

// Server exposes tour authoring tools over the Model Context Protocol.
type Server struct {
	loader    ports.DefinitionLoader
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance over loader. The tour is
// reloaded on every call so edits are picked up without a restart.
func NewServer(loader ports.DefinitionLoader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		loader:    loader,
		logger:    logger,
		mcpServer: server.NewMCPServer("waypoint-mcp", waypoint.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the protocol over SSE on addr until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_tour",
		mcp.WithDescription("Get the tour definition: every step with its target selector, route and content."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		def, err := s.loader.Load(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		data, err := json.Marshal(def)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(data)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_step",
		mcp.WithDescription("Get one step of the tour by zero-based index."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based step index")),
		mcp.WithOutputSchema[domain.Step](),
	), mcp.NewStructuredToolHandler(s.handleGetStep))

	s.mcpServer.AddTool(mcp.NewTool("validate_tour",
		mcp.WithDescription("Check the tour for structural errors (empty targets, bad routes, last-step flags)."),
		mcp.WithOutputSchema[ValidationResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("simulate_tour",
		mcp.WithDescription("Walk the tour against a page containing only the given selectors and report what a learner would see."),
		mcp.WithString("selectors", mcp.Required(), mcp.Description("JSON array of CSS selectors present on every page")),
		mcp.WithString("route", mcp.Description("Route the learner starts on (default: the first step's route)")),
		mcp.WithOutputSchema[SimulationResponse](),
	), mcp.NewStructuredToolHandler(s.handleSimulate))
}

func (s *Server) handleGetStep(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.Step, error) {
	index, ok := args["index"].(float64)
	if !ok {
		return domain.Step{}, fmt.Errorf("index is required")
	}
	def, err := s.loader.Load(ctx)
	if err != nil {
		return domain.Step{}, fmt.Errorf("load failed: %w", err)
	}
	return def.StepAt(int(index))
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ValidationResponse, error) {
	def, err := s.loader.Load(ctx)
	if err != nil {
		return ValidationResponse{Errors: []string{err.Error()}}, nil
	}
	res := def.Validate()
	out := ValidationResponse{Valid: res.Valid, Steps: def.Len()}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return out, nil
}

func (s *Server) handleSimulate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SimulationResponse, error) {
	var selectors []string
	raw, _ := args["selectors"].(string)
	if err := json.Unmarshal([]byte(raw), &selectors); err != nil {
		return SimulationResponse{}, fmt.Errorf("selectors must be a JSON array of strings: %w", err)
	}
	def, err := s.loader.Load(ctx)
	if err != nil {
		return SimulationResponse{}, fmt.Errorf("load failed: %w", err)
	}
	route, _ := args["route"].(string)
	if route == "" && def.Len() > 0 {
		route = def.Steps[0].Route
	}
	return Simulate(ctx, def, selectors, route)
}

// Simulate runs def to completion against an in-memory page holding selectors,
// pressing Next on every step and following click-gated steps by visiting
// their next route.
func Simulate(ctx context.Context, def *domain.Definition, selectors []string, route string) (SimulationResponse, error) {
	var out SimulationResponse
	doc := memory.NewDocument()
	for _, sel := range selectors {
		doc.Add(sel)
	}
	if route == "" {
		route = "/"
	}
	nav := memory.NewNavigator(route)

	eng, err := waypoint.New(ctx, "", doc, nav,
		waypoint.WithDefinition(def),
		waypoint.WithSessionID("simulation"),
		waypoint.WithElementTimeout(simulationTimeout),
		waypoint.WithCompletionDelay(0),
		waypoint.WithCleanupDelays(nil),
		waypoint.WithTargetValidation(0, false),
		waypoint.WithLifecycleHooks(domain.LifecycleHooks{
			OnStepSkipped: func(_ context.Context, e *domain.StepEvent) { out.Skipped = append(out.Skipped, e.Index) },
			OnNavigate: func(_ context.Context, e *domain.NavigationEvent) {
				if !e.IsError {
					out.Routes = append(out.Routes, e.To)
				}
			},
		}),
	)
	if err != nil {
		return out, err
	}
	defer eng.Close()

	eng.OnStepChange(func(step domain.Step) { out.Shown = append(out.Shown, step.Index) })
	eng.OnComplete(func() { out.Completed = true })

	if err := eng.Start(ctx); err != nil {
		return out, err
	}
	// Each iteration moves at least one step or ends the tour.
	for i := 0; i <= def.Len() && eng.IsRunning(); i++ {
		step, ok := eng.CurrentStep()
		if !ok {
			break
		}
		if step.WaitForUserClick {
			next := step.NextRoute
			if next == "" && step.Index+1 < def.Len() {
				next = def.Steps[step.Index+1].Route
			}
			if next == "" {
				return out, fmt.Errorf("step %d waits for a click but leads nowhere", step.Index)
			}
			if err := eng.NotifyRoute(ctx, next); err != nil && !errors.Is(err, domain.ErrNotRunning) {
				return out, err
			}
			continue
		}
		if err := eng.Next(ctx); err != nil && !errors.Is(err, domain.ErrNotRunning) {
			return out, err
		}
	}
	return out, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TourURI, "Current Tour Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		def, err := s.loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load tour: %w", err)
		}
		data, err := json.Marshal(def)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      TourURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
