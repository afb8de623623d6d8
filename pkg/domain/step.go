package domain

// Placement describes where the tooltip is rendered relative to its target.
// It is a rendering hint and opaque to the engine.
type Placement string

const (
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
	PlacementLeft   Placement = "left"
	PlacementRight  Placement = "right"
	PlacementCenter Placement = "center"
	PlacementAuto   Placement = "auto"
)

// Valid reports whether p is a known placement. The empty placement is valid
// and means "let the renderer decide".
func (p Placement) Valid() bool {
	switch p {
	case "", PlacementTop, PlacementBottom, PlacementLeft, PlacementRight, PlacementCenter, PlacementAuto:
		return true
	}
	return false
}

// Step is a single highlight of the tour.
type Step struct {
	// Index is the zero-based position of the step. It is assigned by NewDefinition.
	Index int `json:"index" yaml:"-"`

	// Title is an optional heading shown above the content.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Target is the CSS selector of the element to highlight.
	Target string `json:"target" yaml:"target"`

	// Content is the markdown body shown to the learner.
	Content string `json:"content" yaml:"content"`

	Placement Placement `json:"placement,omitempty" yaml:"placement,omitempty"`

	// Route is the page the target lives on.
	Route string `json:"route,omitempty" yaml:"route,omitempty"`

	// NextRoute, when set, is navigated to before the following step is shown.
	NextRoute string `json:"next_route,omitempty" yaml:"next_route,omitempty"`

	IsLastStep bool `json:"is_last_step,omitempty" yaml:"is_last_step,omitempty"`

	// RequiresExpansion marks targets hidden behind a collapsible control.
	RequiresExpansion bool   `json:"requires_expansion,omitempty" yaml:"requires_expansion,omitempty"`
	ExpansionTarget   string `json:"expansion_target,omitempty" yaml:"expansion_target,omitempty"`

	// WaitForUserClick gates the step on the learner acting on the target
	// (typically a navigation link) instead of a Next button.
	WaitForUserClick bool `json:"wait_for_user_click,omitempty" yaml:"wait_for_user_click,omitempty"`
}

// AutoAdvances reports whether leaving this step triggers a route change.
func (s Step) AutoAdvances() bool {
	return s.NextRoute != ""
}
