package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Overlay carries session state to highlight on the diagram.
type Overlay struct {
	// Current is the index of the step on screen, or -1.
	Current int
	// Visited lists steps already shown.
	Visited []int
}

// GenerateMermaid renders the tour as a Mermaid flowchart. Consecutive steps
// on the same route share a subgraph. Shapes follow the step kind:
//   - click-gated: [/Parallelogram/]
//   - needs expansion: [[Subroutine]]
//   - last: ([Stadium])
//   - otherwise: [Rectangle]
//
// Edges that change route are dotted and labelled with the destination.
func GenerateMermaid(def *domain.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	group := 0
	for i, step := range def.Steps {
		if i == 0 || routeOf(def, i) != routeOf(def, i-1) {
			if i > 0 {
				sb.WriteString("    end\n")
			}
			group++
			fmt.Fprintf(&sb, "    subgraph r%d[\"%s\"]\n", group, escape(routeLabel(routeOf(def, i))))
		}
		opener, closer := shape(step)
		fmt.Fprintf(&sb, "        %s%s\"%d. %s\"%s\n", nodeID(i), opener, i+1, escape(stepLabel(step)), closer)
	}
	if def.Len() > 0 {
		sb.WriteString("    end\n")
	}

	for i, step := range def.Steps {
		if i+1 >= def.Len() {
			if step.NextRoute != "" {
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> done((done))\n", nodeID(i), escape(step.NextRoute))
			}
			continue
		}
		label := ""
		if step.WaitForUserClick {
			label = "click"
		}
		dest := step.NextRoute
		if dest == "" {
			dest = def.Steps[i+1].Route
		}
		if dest != "" && dest != routeOf(def, i) {
			label = strings.TrimSpace(label + " " + dest)
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", nodeID(i), escape(label), nodeID(i+1))
			continue
		}
		if label != "" {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", nodeID(i), label, nodeID(i+1))
			continue
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", nodeID(i), nodeID(i+1))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills under any theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[int]bool)
		for _, i := range overlay.Visited {
			if i < 0 || i >= def.Len() || seen[i] || i == overlay.Current {
				continue
			}
			seen[i] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", nodeID(i))
		}
		if overlay.Current >= 0 && overlay.Current < def.Len() {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(overlay.Current))
		}
	}
	return sb.String()
}

func shape(step domain.Step) (string, string) {
	switch {
	case step.WaitForUserClick:
		return "[/", "/]"
	case step.RequiresExpansion:
		return "[[", "]]"
	case step.IsLastStep:
		return "([", "])"
	}
	return "[", "]"
}

// routeOf returns the route step i runs on; route-less steps stay where the
// previous step left the page.
func routeOf(def *domain.Definition, i int) string {
	for ; i >= 0; i-- {
		if r := def.Steps[i].Route; r != "" {
			return r
		}
	}
	return ""
}

func routeLabel(route string) string {
	if route == "" {
		return "any page"
	}
	return route
}

func stepLabel(step domain.Step) string {
	if step.Title != "" {
		return step.Title
	}
	return step.Target
}

func nodeID(i int) string {
	return fmt.Sprintf("s%d", i)
}

// escape keeps labels inside Mermaid's quoted strings.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
