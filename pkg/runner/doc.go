/*
Package runner drives a tour from a stream of commands.

It backs the preview command: the engine runs against a document (usually
an in-memory page), each step is handed to a Handler for display, and
lines read from the Handler become engine operations. TextHandler renders
steps as markdown cards for people; JSONHandler writes one JSON object per
line for scripts.

# Usage

	r := runner.New(engine, doc,
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithVisitor(nav),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
