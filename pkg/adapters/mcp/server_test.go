package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	mcpAdapter "github.com/aretw0/waypoint/pkg/adapters/mcp"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tour() *domain.Definition {
	return domain.NewDefinition("mcp", []domain.Step{
		{Target: "#a", Route: "/home", NextRoute: "/deck"},
		{Target: "#missing", Route: "/deck"},
		{Target: "#b", Route: "/deck", IsLastStep: true},
	})
}

func rpc(t *testing.T, s *mcpAdapter.Server, method string, params any) string {
	t.Helper()
	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)
	resp := s.MCPServer().HandleMessage(context.Background(), req)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(out)
}

func TestServer_Tools(t *testing.T) {
	s := mcpAdapter.NewServer(memory.NewLoader(tour()), nil)

	t.Run("list", func(t *testing.T) {
		out := rpc(t, s, "tools/list", map[string]any{})
		for _, name := range []string{"get_tour", "get_step", "validate_tour", "simulate_tour"} {
			assert.Contains(t, out, `"name":"`+name+`"`)
		}
	})

	t.Run("validate_tour", func(t *testing.T) {
		out := rpc(t, s, "tools/call", map[string]any{"name": "validate_tour", "arguments": map[string]any{}})
		assert.Regexp(t, `\\?"valid\\?":true`, out)
	})

	t.Run("get_step", func(t *testing.T) {
		out := rpc(t, s, "tools/call", map[string]any{"name": "get_step", "arguments": map[string]any{"index": 2}})
		assert.Contains(t, out, `#b`)
	})

	t.Run("resource", func(t *testing.T) {
		out := rpc(t, s, "resources/read", map[string]any{"uri": mcpAdapter.TourURI})
		assert.Contains(t, out, `\"id\":\"mcp\"`)
	})
}

func TestServer_ValidateReportsErrors(t *testing.T) {
	bad := domain.NewDefinition("bad", []domain.Step{{Target: ""}})
	s := mcpAdapter.NewServer(memory.NewLoader(bad), nil)
	out := rpc(t, s, "tools/call", map[string]any{"name": "validate_tour", "arguments": map[string]any{}})
	assert.Regexp(t, `\\?"valid\\?":false`, out)
	assert.Contains(t, out, "must not be empty")
}

func TestSimulate(t *testing.T) {
	ctx := context.Background()

	t.Run("skips missing targets", func(t *testing.T) {
		res, err := mcpAdapter.Simulate(ctx, tour(), []string{"#a", "#b"}, "/home")
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, res.Shown)
		assert.Equal(t, []int{1}, res.Skipped)
		assert.Equal(t, []string{"/deck"}, res.Routes)
		assert.True(t, res.Completed)
	})

	t.Run("follows click-gated steps", func(t *testing.T) {
		def := domain.NewDefinition("gated", []domain.Step{
			{Target: "#link", Route: "/home", WaitForUserClick: true, NextRoute: "/deck"},
			{Target: "#deck", Route: "/deck", IsLastStep: true},
		})
		res, err := mcpAdapter.Simulate(ctx, def, []string{"#link", "#deck"}, "/home")
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, res.Shown)
		assert.True(t, res.Completed)
	})
}
