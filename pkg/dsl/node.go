package dsl

import "github.com/aretw0/waypoint/pkg/domain"

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step    domain.Step
	builder *Builder
}

// Title sets the heading shown in the tooltip.
func (s *StepBuilder) Title(title string) *StepBuilder {
	s.step.Title = title
	return s
}

// Says sets the tooltip body.
func (s *StepBuilder) Says(content string) *StepBuilder {
	s.step.Content = content
	return s
}

// Placement positions the tooltip relative to the target.
func (s *StepBuilder) Placement(p domain.Placement) *StepBuilder {
	s.step.Placement = p
	return s
}

// On overrides the route the step lives on.
func (s *StepBuilder) On(route string) *StepBuilder {
	s.step.Route = route
	return s
}

// Then sets the route the page moves to after this step.
func (s *StepBuilder) Then(route string) *StepBuilder {
	s.step.NextRoute = route
	return s
}

// AwaitClick makes the learner's click on the target advance the tour.
func (s *StepBuilder) AwaitClick() *StepBuilder {
	s.step.WaitForUserClick = true
	return s
}

// Expand makes the engine open the collapsed section container before the
// target is looked up. An empty container means the target itself.
func (s *StepBuilder) Expand(container string) *StepBuilder {
	s.step.RequiresExpansion = true
	s.step.ExpansionTarget = container
	return s
}

// Last marks the step as the end of the tour.
func (s *StepBuilder) Last() *StepBuilder {
	s.step.IsLastStep = true
	return s
}

// Step starts the next step, for chaining.
func (s *StepBuilder) Step(target string) *StepBuilder {
	return s.builder.Step(target)
}

// Done returns the tour builder.
func (s *StepBuilder) Done() *Builder {
	return s.builder
}
