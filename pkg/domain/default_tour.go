package domain

// Routes of the learning dashboard the default tour walks through.
const (
	RouteDashboard = "/dashboard"
	RouteMyDeck    = "/my-deck"
	RouteProgress  = "/progress"
)

// DefaultTourID identifies the post-onboarding tour.
const DefaultTourID = "post-onboarding"

func target(name string) string {
	return `[data-joyride="` + name + `"]`
}

// DefaultDefinition returns the post-onboarding tour:
// Dashboard, then My Deck, then Progress, and back to the Dashboard.
func DefaultDefinition() *Definition {
	steps := []Step{
		{
			Target:    target("sidebar-nav"),
			Content:   "Navigate between the three main sections: Dashboard, Progress, and My Deck. These are your primary learning hubs!",
			Placement: PlacementRight,
			Route:     RouteDashboard,
		},
		{
			Target:    target("profile-button"),
			Content:   "Access your profile settings and view your account information here.",
			Placement: PlacementLeft,
			Route:     RouteDashboard,
		},
		{
			Target:    target("level-xp-bar"),
			Content:   "Track your progress and level up! Earn points by completing lessons and challenges to advance through different tiers.",
			Placement: PlacementBottom,
			Route:     RouteDashboard,
		},
		{
			Target:    target("continue-learning"),
			Content:   "Quickly resume your last studied topic or start a new learning journey from here.",
			Placement: PlacementBottom,
			Route:     RouteDashboard,
		},
		{
			Target:    target("streak-card"),
			Content:   "Build your learning streak! Log in daily to maintain your streak and unlock achievements.",
			Placement: PlacementBottom,
			Route:     RouteDashboard,
		},
		{
			Target:    target("progress-overview"),
			Content:   "See your overall progress across all topics. Track how much you've completed in each realm.",
			Placement: PlacementTop,
			Route:     RouteDashboard,
		},
		{
			Target:    target("challenges-solved"),
			Content:   "Monitor your challenge completion rate. Solve more challenges to improve your skills!",
			Placement: PlacementTop,
			Route:     RouteDashboard,
		},
		{
			Target:    target("achievements"),
			Content:   "Unlock achievements as you progress! Complete milestones to earn badges and track your accomplishments.",
			Placement: PlacementTop,
			Route:     RouteDashboard,
		},
		{
			Target:    target("completed-topics"),
			Content:   "View all the topics you've mastered. Your completed topics will appear here with achievement badges!",
			Placement: PlacementTop,
			Route:     RouteDashboard,
			NextRoute: RouteMyDeck,
		},
		{
			Target:    target("topic-card-1"),
			Content:   `Start with "Data Types and Variables". Learn about variables, data types, and how to declare and use them in programming.`,
			Placement: PlacementTop,
			Route:     RouteMyDeck,
		},
		{
			Target:    target("topic-card-2"),
			Content:   `Explore "Operators". Master different types of operators used in programming for calculations and comparisons.`,
			Placement: PlacementTop,
			Route:     RouteMyDeck,
		},
		{
			Target:    target("topic-card-3"),
			Content:   `Dive into "Conditional and Loops". Understand control flow with conditional statements and different types of loops.`,
			Placement: PlacementTop,
			Route:     RouteMyDeck,
			NextRoute: RouteProgress,
		},
		{
			Target:    target("activity-feed"),
			Content:   "View your recent learning activity! See milestones, completed subtopics, and visited realms from the last 30 days.",
			Placement: PlacementBottom,
			Route:     RouteProgress,
		},
		{
			Target:    target("learning-modes"),
			Content:   "Track your performance across different learning modes: Code Completion, Code Fixer, and Output Tracing. Improve your accuracy!",
			Placement: PlacementTop,
			Route:     RouteProgress,
		},
		{
			Target:            target("learning-realms"),
			Content:           "Explore all learning realms and track your progress. Each realm can be mastered independently, so choose your path!",
			Placement:         PlacementTop,
			Route:             RouteProgress,
			RequiresExpansion: true,
			ExpansionTarget:   target("learning-realms"),
		},
		{
			Target:            target("realm-details"),
			Content:           "Dive deep into performance analysis! See your strengths, focus areas, and detailed progress for each subtopic.",
			Placement:         PlacementTop,
			Route:             RouteProgress,
			NextRoute:         RouteDashboard,
			IsLastStep:        true,
			RequiresExpansion: true,
			ExpansionTarget:   target("learning-realms"),
		},
	}
	d := NewDefinition(DefaultTourID, steps)
	d.Title = "Welcome tour"
	return d
}
