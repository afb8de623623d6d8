package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Renderer turns markdown into terminal output.
type Renderer func(string) (string, error)

// NewRenderer returns a glamour renderer. Styled output adapts to the
// terminal background; otherwise the "notty" style is used so the text
// stays free of escape sequences.
func NewRenderer(styled bool, width int) Renderer {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("notty")}
	if styled {
		opts = []glamour.TermRendererOption{glamour.WithAutoStyle()}
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return Plain
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, " \n"), nil
	}
}

// Plain returns markdown untouched.
func Plain(markdown string) (string, error) {
	return markdown, nil
}

// StepMarkdown formats a step as a markdown card.
func StepMarkdown(step domain.Step, total int) string {
	var b strings.Builder
	title := step.Title
	if title == "" {
		title = step.Target
	}
	fmt.Fprintf(&b, "## %s\n\n", title)
	if step.Content != "" {
		fmt.Fprintf(&b, "%s\n\n", step.Content)
	}
	fmt.Fprintf(&b, "*Step %d of %d* · `%s`", step.Index+1, total, step.Target)
	if step.Route != "" {
		fmt.Fprintf(&b, " on `%s`", step.Route)
	}
	if step.WaitForUserClick {
		b.WriteString("\n\n> Click the highlighted element to continue.")
	}
	b.WriteString("\n")
	return b.String()
}

// RenderStep renders a step card with r, falling back to raw markdown
// when rendering fails.
func RenderStep(r Renderer, step domain.Step, total int) string {
	md := StepMarkdown(step, total)
	if r == nil {
		return md
	}
	out, err := r(md)
	if err != nil {
		return md
	}
	return out
}
