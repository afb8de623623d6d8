package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` __      __                      _       _   `, "#2dd4bf"},
	{` \ \    / /__ _ _  _ _ __  ___ (_)_ _ | |_ `, "#22d3ee"},
	{`  \ \/\/ / _' | || | '_ \/ _ \| | ' \|  _|`, "#38bdf8"},
	{`   \_/\_/\__,_|\_, | .__/\___/|_|_||_|\__|`, "#60a5fa"},
	{`               |__/|_|                      `, "#818cf8"},
}

// PrintBanner writes the Waypoint banner followed by the version line.
// Colors degrade to plain text when w is not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, out.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
