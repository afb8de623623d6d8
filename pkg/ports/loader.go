package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// DefinitionLoader defines how the engine retrieves tour definitions.
// This allows the source (Loam, file, memory) to be decoupled.
type DefinitionLoader interface {
	// Load returns the tour definition. Implementations normalize the
	// definition but do not validate it.
	Load(ctx context.Context) (*domain.Definition, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload while authoring a tour.
type Watchable interface {
	// Watch returns a channel that receives the ID of each changed source.
	Watch(ctx context.Context) (<-chan string, error)
}
