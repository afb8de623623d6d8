/*
Package dsl builds tours in Go instead of YAML or markdown.

Routes set with Builder.On are inherited by the steps that follow, and the
final step is flagged as the last one automatically.

	def, err := dsl.New("post-onboarding").
		Title("Getting around").
		On("/dashboard").
		Step("#sidebar").Title("Navigation").Says("Everything lives here.").
		Step("#deck-link").Says("Open your deck.").AwaitClick().Then("/my-deck").
		Done().
		On("/my-deck").
		Step(".lesson").Says("Lessons live inside realms.").Expand(".realm-card").
		Done().
		Build()
*/
package dsl
