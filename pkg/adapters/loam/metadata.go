package loam

// StepMetadata is the frontmatter of a step document. The document body is
// the step content.
type StepMetadata struct {
	ID                string `json:"id" mapstructure:"id"`
	Title             string `json:"title" mapstructure:"title"`
	Target            string `json:"target" mapstructure:"target"`
	Placement         string `json:"placement" mapstructure:"placement"`
	Route             string `json:"route" mapstructure:"route"`
	NextRoute         string `json:"next_route" mapstructure:"next_route"`
	IsLastStep        bool   `json:"is_last_step" mapstructure:"is_last_step"`
	RequiresExpansion bool   `json:"requires_expansion" mapstructure:"requires_expansion"`
	ExpansionTarget   string `json:"expansion_target" mapstructure:"expansion_target"`
	WaitForUserClick  bool   `json:"wait_for_user_click" mapstructure:"wait_for_user_click"`

	// Tour marks the tour header document. It is decoded into TourMetadata.
	Tour map[string]any `json:"tour,omitempty" mapstructure:"tour"`
}

// TourMetadata describes the tour itself.
type TourMetadata struct {
	ID    string `mapstructure:"id"`
	Title string `mapstructure:"title"`
}
