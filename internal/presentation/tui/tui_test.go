package tui_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/aretw0/waypoint/pkg/domain"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
	assert.NotContains(t, buf.String(), "\x1b[", "non-terminal writers get plain text")
}

func TestStepMarkdown(t *testing.T) {
	step := domain.Step{Index: 1, Title: "Filters", Target: "#filters", Content: "Narrow the list.", Route: "/inbox"}

	t.Run("full card", func(t *testing.T) {
		md := tui.StepMarkdown(step, 4)
		assert.Contains(t, md, "## Filters")
		assert.Contains(t, md, "Narrow the list.")
		assert.Contains(t, md, "*Step 2 of 4*")
		assert.Contains(t, md, "on `/inbox`")
		assert.NotContains(t, md, "Click the highlighted")
	})

	t.Run("untitled click-gated", func(t *testing.T) {
		s := domain.Step{Target: "#save", WaitForUserClick: true}
		md := tui.StepMarkdown(s, 1)
		assert.Contains(t, md, "## #save")
		assert.Contains(t, md, "Click the highlighted element")
	})
}

func TestRenderStep(t *testing.T) {
	step := domain.Step{Title: "Welcome", Target: "#hero", Content: "Hello there."}

	t.Run("nil renderer returns markdown", func(t *testing.T) {
		assert.Equal(t, tui.StepMarkdown(step, 1), tui.RenderStep(nil, step, 1))
	})

	t.Run("notty renderer", func(t *testing.T) {
		out := tui.RenderStep(tui.NewRenderer(false, 60), step, 1)
		assert.Contains(t, out, "Welcome")
		assert.Contains(t, out, "Hello there.")
	})
}
