package dsl

import (
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
)

// Builder assembles a tour one step at a time.
type Builder struct {
	id    string
	title string
	steps []*StepBuilder
	route string
}

// New creates a builder for the tour id.
func New(id string) *Builder {
	return &Builder{id: id}
}

// Title sets the tour title.
func (b *Builder) Title(title string) *Builder {
	b.title = title
	return b
}

// On sets the route inherited by the steps added after it.
func (b *Builder) On(route string) *Builder {
	b.route = route
	return b
}

// Step appends a step highlighting target.
func (b *Builder) Step(target string) *StepBuilder {
	sb := &StepBuilder{
		step:    domain.Step{Target: target, Route: b.route},
		builder: b,
	}
	b.steps = append(b.steps, sb)
	return sb
}

// Build returns the validated definition. The final step is flagged as the
// last step unless a step already carries the flag.
func (b *Builder) Build() (*domain.Definition, error) {
	steps := make([]domain.Step, len(b.steps))
	flagged := false
	for i, sb := range b.steps {
		steps[i] = sb.step
		flagged = flagged || sb.step.IsLastStep
	}
	if !flagged && len(steps) > 0 {
		steps[len(steps)-1].IsLastStep = true
	}

	def := domain.NewDefinition(b.id, steps)
	def.Title = b.title
	if err := def.Validate().Err(); err != nil {
		return nil, err
	}
	return def, nil
}

// Loader builds the tour and wraps it in an in-memory loader.
func (b *Builder) Loader() (*memory.Loader, error) {
	def, err := b.Build()
	if err != nil {
		return nil, err
	}
	return memory.NewLoader(def), nil
}

// MustBuild is Build for tours known to be valid, such as those compiled
// into a binary. It panics on error.
func (b *Builder) MustBuild() *domain.Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
