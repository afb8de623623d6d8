package dsl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
)

func TestBuilder_Tour(t *testing.T) {
	def, err := dsl.New("post-onboarding").
		Title("Getting around").
		On("/dashboard").
		Step("#sidebar").Title("Navigation").Says("Everything lives here.").Placement(domain.PlacementRight).
		Step("#deck-link").Says("Open your deck.").AwaitClick().Then("/my-deck").
		Done().
		On("/my-deck").
		Step(".lesson").Says("Lessons live inside realms.").Expand(".realm-card").
		Done().
		Build()
	require.NoError(t, err)

	assert.Equal(t, "post-onboarding", def.ID)
	assert.Equal(t, "Getting around", def.Title)
	require.Equal(t, 3, def.Len())

	assert.Equal(t, "/dashboard", def.Steps[0].Route)
	assert.Equal(t, domain.PlacementRight, def.Steps[0].Placement)
	assert.True(t, def.Steps[1].WaitForUserClick)
	assert.Equal(t, "/my-deck", def.Steps[1].NextRoute)
	assert.Equal(t, "/my-deck", def.Steps[2].Route)
	assert.Equal(t, ".realm-card", def.Steps[2].ExpansionTarget)
	assert.True(t, def.Steps[2].IsLastStep)
	assert.Equal(t, 2, def.Steps[2].Index)
}

func TestBuilder_ExpandDefaultsToTarget(t *testing.T) {
	def := dsl.New("t").Step("#panel").Says("x").Expand("").Done().MustBuild()
	assert.Equal(t, "#panel", def.Steps[0].ExpansionTarget)
}

func TestBuilder_Invalid(t *testing.T) {
	t.Run("empty tour", func(t *testing.T) {
		_, err := dsl.New("empty").Build()
		assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	})

	t.Run("last flag in the middle", func(t *testing.T) {
		_, err := dsl.New("t").Step("#a").Last().Step("#b").Done().Build()
		assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	})

	t.Run("relative route", func(t *testing.T) {
		_, err := dsl.New("t").On("settings").Step("#a").Done().Build()
		assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	})

	t.Run("must build panics", func(t *testing.T) {
		assert.Panics(t, func() { dsl.New("empty").MustBuild() })
	})
}

func TestBuilder_Loader(t *testing.T) {
	loader, err := dsl.New("t").Step("#a").Says("A").Done().Loader()
	require.NoError(t, err)
	def, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, def.Len())
}
