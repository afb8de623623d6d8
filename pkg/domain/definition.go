package domain

import (
	"fmt"
	"strings"
)

// Definition is the ordered, immutable list of steps of one tour.
type Definition struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// NewDefinition copies steps into a new definition, assigning indices and
// defaulting the expansion target of expandable steps to their own target.
func NewDefinition(id string, steps []Step) *Definition {
	d := &Definition{ID: id, Steps: make([]Step, len(steps))}
	copy(d.Steps, steps)
	d.normalize()
	return d
}

func (d *Definition) normalize() {
	for i := range d.Steps {
		d.Steps[i].Index = i
		if d.Steps[i].RequiresExpansion && d.Steps[i].ExpansionTarget == "" {
			d.Steps[i].ExpansionTarget = d.Steps[i].Target
		}
	}
}

// Normalize re-applies indices and defaults after the definition was decoded
// directly from a file.
func (d *Definition) Normalize() *Definition {
	d.normalize()
	return d
}

// Len returns the number of steps.
func (d *Definition) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Steps)
}

// StepAt returns the step at index i.
func (d *Definition) StepAt(i int) (Step, error) {
	if i < 0 || i >= d.Len() {
		return Step{}, fmt.Errorf("%w: %d (tour has %d steps)", ErrInvalidStep, i, d.Len())
	}
	return d.Steps[i], nil
}

// IsLast reports whether i is the terminal step, either by position or by flag.
func (d *Definition) IsLast(i int) bool {
	if i < 0 || i >= d.Len() {
		return false
	}
	return i == d.Len()-1 || d.Steps[i].IsLastStep
}

// Routes returns the distinct routes the tour visits, in order of first use.
func (d *Definition) Routes() []string {
	seen := make(map[string]bool)
	var routes []string
	add := func(r string) {
		if r != "" && !seen[r] {
			seen[r] = true
			routes = append(routes, r)
		}
	}
	for _, s := range d.Steps {
		add(s.Route)
		add(s.NextRoute)
	}
	return routes
}

// ValidationResult is the outcome of Definition.Validate.
type ValidationResult struct {
	Valid  bool
	Errors []error
}

// Err folds the result into a single error, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidDefinition, &AggregateError{Errors: r.Errors})
}

// Validate checks the structural invariants of the definition. It has no side
// effects and never inspects a live document.
func (d *Definition) Validate() ValidationResult {
	var errs []error
	if d.Len() == 0 {
		errs = append(errs, &ValidationError{Index: -1, Field: "steps", Reason: "tour has no steps"})
		return ValidationResult{Valid: false, Errors: errs}
	}

	lastFlags := 0
	for i, s := range d.Steps {
		if strings.TrimSpace(s.Target) == "" {
			errs = append(errs, &ValidationError{Index: i, Field: "target", Reason: "must not be empty"})
		}
		if !s.Placement.Valid() {
			errs = append(errs, &ValidationError{Index: i, Field: "placement", Reason: fmt.Sprintf("unknown placement %q", s.Placement)})
		}
		if s.Route != "" && !strings.HasPrefix(s.Route, "/") {
			errs = append(errs, &ValidationError{Index: i, Field: "route", Reason: "must be an absolute path"})
		}
		if s.NextRoute != "" && !strings.HasPrefix(s.NextRoute, "/") {
			errs = append(errs, &ValidationError{Index: i, Field: "next_route", Reason: "must be an absolute path"})
		}
		if s.RequiresExpansion && strings.TrimSpace(s.ExpansionTarget) == "" {
			errs = append(errs, &ValidationError{Index: i, Field: "expansion_target", Reason: "required when requires_expansion is set"})
		}
		if s.IsLastStep {
			lastFlags++
			if i != d.Len()-1 {
				errs = append(errs, &ValidationError{Index: i, Field: "is_last_step", Reason: "only the final step may be the last step"})
			}
		}
	}
	if lastFlags == 0 {
		errs = append(errs, &ValidationError{Index: d.Len() - 1, Field: "is_last_step", Reason: "final step must be flagged as the last step"})
	}
	if lastFlags > 1 {
		errs = append(errs, &ValidationError{Index: -1, Field: "is_last_step", Reason: fmt.Sprintf("%d steps flagged as last, want exactly one", lastFlags)})
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
