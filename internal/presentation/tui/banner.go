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
	{` ____       _ _                      _ `, "#34d399"},
	{`|  _ \ __ _(_) |_   _  __ _ _ __ __| |`, "#2dd4bf"},
	{`| |_) / _' | | | | | |/ _' | '__/ _' |`, "#22d3ee"},
	{`|  _ < (_| | | | |_| | (_| | | | (_| |`, "#38bdf8"},
	{`|_| \_\__,_|_|_|\__, |\__,_|_|  \__,_|`, "#60a5fa"},
	{`                |___/                 `, "#818cf8"},
}

// PrintBanner writes the Railyard banner followed by the version and the
// source of the loaded rails.
func PrintBanner(w io.Writer, version, source string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String(fmt.Sprintf("  v%s  rails: %s", version, source)).Faint())
	fmt.Fprintln(w)
}
