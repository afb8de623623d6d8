package runner

import (
	"fmt"
	"strconv"
	"strings"
)

// Verb names a preview command.
type Verb string

const (
	VerbNext     Verb = "next"
	VerbPrevious Verb = "previous"
	VerbGoTo     Verb = "goto"
	VerbSkip     Verb = "skip"
	VerbFinish   Verb = "finish"
	VerbRoute    Verb = "route"
	VerbClick    Verb = "click"
	VerbShow     Verb = "show"
	VerbHelp     Verb = "help"
	VerbQuit     Verb = "quit"
)

var aliases = map[string]Verb{
	"":         VerbNext,
	"n":        VerbNext,
	"next":     VerbNext,
	"p":        VerbPrevious,
	"prev":     VerbPrevious,
	"previous": VerbPrevious,
	"b":        VerbPrevious,
	"back":     VerbPrevious,
	"g":        VerbGoTo,
	"goto":     VerbGoTo,
	"s":        VerbSkip,
	"skip":     VerbSkip,
	"f":        VerbFinish,
	"finish":   VerbFinish,
	"done":     VerbFinish,
	"r":        VerbRoute,
	"route":    VerbRoute,
	"c":        VerbClick,
	"click":    VerbClick,
	"w":        VerbShow,
	"show":     VerbShow,
	"h":        VerbHelp,
	"?":        VerbHelp,
	"help":     VerbHelp,
	"q":        VerbQuit,
	"quit":     VerbQuit,
	"exit":     VerbQuit,
}

// Command is a parsed input line.
type Command struct {
	Verb Verb
	// Step is the zero-based target of goto.
	Step int
	// Arg carries the route for route and an optional selector for click.
	Arg string
}

// ParseCommand parses a sanitized input line. An empty line means next.
// Step numbers typed by the user are one-based.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	word := ""
	if len(fields) > 0 {
		word = strings.ToLower(fields[0])
	}
	verb, ok := aliases[word]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", word)
	}
	cmd := Command{Verb: verb}
	args := fields[min(1, len(fields)):]

	switch verb {
	case VerbGoTo:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("goto needs a step number")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return Command{}, fmt.Errorf("invalid step number %q", args[0])
		}
		cmd.Step = n - 1
	case VerbRoute:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("route needs a path")
		}
		cmd.Arg = args[0]
	case VerbClick:
		if len(args) > 1 {
			return Command{}, fmt.Errorf("click takes at most one selector")
		}
		if len(args) == 1 {
			cmd.Arg = args[0]
		}
	}
	return cmd, nil
}

// Help lists the commands understood by the preview loop.
const Help = `commands:
  [enter] n next       show the next step
  p prev back          show the previous step
  g goto <n>           jump to step n
  c click [selector]   click the current target (or selector)
  r route <path>       move the page to path
  w show               print the current step again
  s skip               dismiss the tour
  f finish             complete the tour
  q quit               stop, keeping progress
`
