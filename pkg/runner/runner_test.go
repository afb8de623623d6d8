package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/runner"
)

func previewTour() *domain.Definition {
	return &domain.Definition{
		ID: "preview",
		Steps: []domain.Step{
			{Title: "Inbox", Target: "#inbox", Content: "Your mail.", Route: "/home"},
			{Title: "Compose", Target: "#compose", Content: "Write one.", Route: "/home", WaitForUserClick: true, NextRoute: "/compose"},
			{Title: "Send", Target: "#send", Content: "Off it goes.", Route: "/compose", IsLastStep: true},
		},
	}
}

type fixture struct {
	engine *waypoint.Engine
	doc    *memory.Document
	nav    *memory.Navigator
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{doc: memory.NewDocument(), nav: memory.NewNavigator("/home"), store: memory.NewStore()}
	f.doc.Add("#inbox")
	f.doc.Add("#compose", memory.OnClick(func() { _ = f.engine.NotifyRoute(context.Background(), "/compose") }))
	f.doc.Add("#send")

	eng, err := waypoint.New(context.Background(), "", f.doc, f.nav,
		waypoint.WithDefinition(previewTour()),
		waypoint.WithSessionID("preview"),
		waypoint.WithProgressStore(f.store),
		waypoint.WithElementTimeout(50*time.Millisecond),
		waypoint.WithCompletionDelay(0),
		waypoint.WithCleanupDelays(nil),
		waypoint.WithTargetValidation(0, false),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	f.engine = eng
	return f
}

func run(t *testing.T, f *fixture, h runner.Handler, opts ...runner.Option) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opts = append([]runner.Option{runner.WithHandler(h)}, opts...)
	require.NoError(t, runner.New(f.engine, f.doc, opts...).Run(ctx))
}

func TestRunner_Text(t *testing.T) {
	t.Run("walks to completion", func(t *testing.T) {
		f := newFixture(t)
		var out bytes.Buffer
		run(t, f, runner.NewTextHandler(strings.NewReader("n\nclick\nf\n"), &out))

		text := out.String()
		assert.Contains(t, text, "## Inbox")
		assert.Contains(t, text, "## Compose")
		assert.Contains(t, text, "Click the highlighted element")
		assert.Contains(t, text, "*Step 3 of 3*")
		assert.Contains(t, text, "[complete] tour completed")
		assert.Equal(t, "/compose", f.nav.Route())
	})

	t.Run("quit keeps progress and resume continues", func(t *testing.T) {
		f := newFixture(t)
		var out bytes.Buffer
		run(t, f, runner.NewTextHandler(strings.NewReader("n\nq\n"), &out))
		assert.Contains(t, out.String(), "[stopped] progress kept")
		assert.False(t, f.engine.IsRunning())

		progress, err := f.store.Load(context.Background(), "preview")
		require.NoError(t, err)
		assert.Equal(t, 1, progress.StepIndex)

		out.Reset()
		run(t, f, runner.NewTextHandler(strings.NewReader("w\n"), &out), runner.WithResume(true))
		assert.Contains(t, out.String(), "## Compose")
		assert.NotContains(t, out.String(), "## Inbox")
	})

	t.Run("bad commands are reported", func(t *testing.T) {
		f := newFixture(t)
		var out bytes.Buffer
		run(t, f, runner.NewTextHandler(strings.NewReader("jump\ngoto 9\nclick #nope\nhelp\ns\n"), &out))

		text := out.String()
		assert.Contains(t, text, `error: unknown command "jump"`)
		assert.Contains(t, text, "error: invalid step index")
		assert.Contains(t, text, "#nope")
		assert.Contains(t, text, "commands:")
		assert.Contains(t, text, "[skipped] tour skipped")
	})

	t.Run("route command moves the page", func(t *testing.T) {
		f := newFixture(t)
		var out bytes.Buffer
		run(t, f, runner.NewTextHandler(strings.NewReader("n\nr /compose\n"), &out))
		assert.Contains(t, out.String(), "[route] /compose")
		assert.Contains(t, out.String(), "## Send")
	})
}

func TestRunner_JSON(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer
	run(t, f, runner.NewJSONHandler(strings.NewReader("\"next\"\ngoto 3\nfinish\n"), &out))

	var msgs []runner.Message
	dec := json.NewDecoder(&out)
	for dec.More() {
		var m runner.Message
		require.NoError(t, dec.Decode(&m))
		msgs = append(msgs, m)
	}
	require.NotEmpty(t, msgs)

	var shown []int
	for _, m := range msgs {
		if m.Type == "step" {
			require.NotNil(t, m.Step)
			assert.Equal(t, 3, m.Total)
			shown = append(shown, m.Step.Index)
		}
	}
	assert.Equal(t, []int{0, 1, 2}, shown)
	assert.Equal(t, runner.NoticeComplete, msgs[len(msgs)-1].Type)
}
