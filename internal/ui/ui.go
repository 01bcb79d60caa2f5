// Package ui holds the terminal styling shared by kwgraph commands.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hurttlocker/kwgraph/internal/keyword"
)

// Brand colors
var (
	Brand  = color.New(color.FgHiGreen, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Info   = color.New(color.FgCyan)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

// Role colors follow the viewer palette as closely as a terminal allows.
var roleColors = map[keyword.Role]*color.Color{
	keyword.RoleTopLevel:  color.New(color.FgRed, color.Bold),
	keyword.RoleConnected: color.New(color.FgCyan),
	keyword.RoleSecondary: color.New(color.FgGreen),
	keyword.RoleIsolated:  color.New(color.FgYellow),
}

// Role renders a role name in its color.
func Role(r keyword.Role) string {
	if c, ok := roleColors[r]; ok {
		return c.Sprint(r.String())
	}
	return r.String()
}

// Banner prints the kwgraph banner.
func Banner(w io.Writer, subtitle string) {
	fmt.Fprintf(w, "%s %s\n\n", Brand.Sprint("kwgraph"), Subtle.Sprint("· "+subtitle))
}

// Table prints a simple aligned table. Widths ignore color escapes, so
// colored cells should come last in a row.
func Table(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	headerLine := "  "
	sepLine := "  "
	for i, h := range headers {
		headerLine += fmt.Sprintf("%-*s  ", widths[i], h)
		sepLine += strings.Repeat("─", widths[i]) + "  "
	}
	Subtle.Fprintln(w, strings.TrimRight(headerLine, " "))
	Subtle.Fprintln(w, strings.TrimRight(sepLine, " "))

	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i < len(widths) {
				line += fmt.Sprintf("%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// StatusIcon returns a status icon string.
func StatusIcon(ok bool) string {
	if ok {
		return Good.Sprint("✓")
	}
	return Bad.Sprint("✗")
}
