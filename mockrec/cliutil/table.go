package cliutil

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// IsTerminal reports whether w is a terminal. Colors and box drawing are only used there.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewTable returns a table writer rendering to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if IsTerminal(w) {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
		t.Style().Color = table.ColorOptions{}
		t.Style().Format.Header = text.FormatDefault
	}
	return t
}

// StatusRowPainter colors a row by the HTTP status held in column col.
func StatusRowPainter(col int) table.RowPainter {
	return func(row table.Row) text.Colors {
		if col < 0 || col >= len(row) {
			return nil
		}
		return statusColors(row[col])
	}
}

func statusColors(v interface{}) text.Colors {
	var status int
	switch s := v.(type) {
	case int:
		status = s
	case string:
		status, _ = strconv.Atoi(s)
	}
	switch {
	case status >= 500:
		return text.Colors{text.FgRed}
	case status >= 400:
		return text.Colors{text.FgYellow}
	default:
		return nil
	}
}

// Summary prints a one-line count below a table.
func Summary(w io.Writer, n int, singular, plural string) {
	noun := plural
	if n == 1 {
		noun = singular
	}
	_, _ = fmt.Fprintf(w, "%d %s\n", n, noun)
}

// NoResults prints msg for empty result sets.
func NoResults(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, msg)
}

// HintCommand prints a follow-up command suggestion.
func HintCommand(w io.Writer, label, command string) {
	if IsTerminal(w) {
		command = text.Bold.Sprint(command)
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", label, command)
}
