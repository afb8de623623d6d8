/*
Package waypoint is a guided product tour engine: it walks a learner through an
ordered list of steps, each highlighting an element of a host application, and
keeps the tour consistent while the application changes pages and renders
asynchronously.

# Concept

A tour is a Definition of Steps. Each step names a CSS selector to highlight,
the route it lives on, and optionally the route to navigate to before the next
step is shown. The engine waits for targets to appear, skips steps whose
targets never show up, changes routes before committing a step, and reverts
inline layout styles that tour overlays leave behind.

The page itself is reached through ports (Document, Navigator), so the same
engine runs against a real browser (pkg/adapters/rod), the in-memory DOM
(pkg/adapters/memory) or the terminal preview.

# Usage

	doc := memory.NewDocument()
	nav := memory.NewNavigator("/")

	eng, err := waypoint.New(ctx, "./tours/onboarding.yaml", doc, nav,
		waypoint.WithSessionID("learner-42"),
		waypoint.WithProgressStore(memory.NewStore()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	unsubscribe := eng.OnStepChange(func(s domain.Step) {
		fmt.Println(s.Index, s.Content)
	})
	defer unsubscribe()

	if err := eng.Resume(ctx); err != nil {
		log.Fatal(err)
	}
	_ = eng.Next(ctx)
*/
package waypoint
