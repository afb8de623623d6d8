package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Loader implements ports.DefinitionLoader over a definition held in memory.
type Loader struct {
	def *domain.Definition
}

// NewLoader wraps def. Each Load returns an independent copy.
func NewLoader(def *domain.Definition) *Loader {
	return &Loader{def: def}
}

// NewFromSteps builds a loader from raw steps, assigning indices.
func NewFromSteps(id string, steps ...domain.Step) *Loader {
	return NewLoader(domain.NewDefinition(id, steps))
}

// Load implements ports.DefinitionLoader.
func (l *Loader) Load(ctx context.Context) (*domain.Definition, error) {
	if l.def == nil {
		return nil, fmt.Errorf("memory loader: no definition")
	}
	d := domain.NewDefinition(l.def.ID, l.def.Steps)
	d.Title = l.def.Title
	return d, nil
}
