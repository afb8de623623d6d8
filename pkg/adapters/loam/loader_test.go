package loam_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/waypoint/internal/testutils"
	loamAdapter "github.com/aretw0/waypoint/pkg/adapters/loam"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load(t *testing.T) {
	_, repo := testutils.TourRepo(t, map[string]string{
		"00-tour.md": `---
tour:
  id: onboarding
  title: Welcome tour
---`,
		"01-welcome.md": `---
target: '[data-joyride="sidebar-nav"]'
route: /dashboard
placement: right
title: Welcome
---
Use the **sidebar** to move around.`,
		"02-deck.md": `---
target: '[data-joyride="my-deck-nav-link"]'
route: /dashboard
next_route: /my-deck
wait_for_user_click: true
---
Open your deck.`,
		"03-realm.md": `---
target: '[data-joyride="realm-card"] .lesson'
route: /my-deck
requires_expansion: true
expansion_target: '[data-joyride="realm-card"]'
is_last_step: true
---
Lessons live inside realms.`,
	})

	loader := loamAdapter.New(loam.NewTypedRepository[loamAdapter.StepMetadata](repo))
	def, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "onboarding", def.ID)
	assert.Equal(t, "Welcome tour", def.Title)
	require.Equal(t, 3, def.Len())

	first := def.Steps[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "Welcome", first.Title)
	assert.Equal(t, domain.PlacementRight, first.Placement)
	assert.Equal(t, "Use the **sidebar** to move around.", first.Content)

	assert.True(t, def.Steps[1].WaitForUserClick)
	assert.Equal(t, "/my-deck", def.Steps[1].NextRoute)
	assert.Equal(t, `[data-joyride="realm-card"]`, def.Steps[2].ExpansionTarget)

	assert.True(t, def.Validate().Valid)
}

func TestLoader_ImplicitLastStep(t *testing.T) {
	_, repo := testutils.TourRepo(t, map[string]string{
		"a.md": "---\ntarget: '#a'\n---\nA",
		"b.md": "---\ntarget: '#b'\n---\nB",
	})

	loader := loamAdapter.New(loam.NewTypedRepository[loamAdapter.StepMetadata](repo), loamAdapter.WithTourID("letters"))
	def, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "letters", def.ID)
	assert.False(t, def.Steps[0].IsLastStep)
	assert.True(t, def.Steps[1].IsLastStep)
}

func TestLoader_DetectsCollisions(t *testing.T) {
	_, repo := testutils.TourRepo(t, map[string]string{
		"foo.md": "---\nid: foo\ntarget: '#a'\n---\nA",
		"foo.json": `{"id": "foo", "target": "#b"}`,
	})

	loader := loamAdapter.New(loam.NewTypedRepository[loamAdapter.StepMetadata](repo))
	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestOpen_DefaultsTourIDToDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "post-onboarding")
	testutils.WriteTour(t, dir, map[string]string{
		"01.md": "---\ntarget: '#a'\n---\nA",
	})

	loader, err := loamAdapter.Open(dir)
	require.NoError(t, err)

	def, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "post-onboarding", def.ID)
	assert.Equal(t, 1, def.Len())
}
