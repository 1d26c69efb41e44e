package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/matsen/pubreview/internal/records"
)

// Output formatting limits.
const (
	DefaultSearchLimit = 50 // Default limit for search commands
	MaxColumnWidth     = 40 // Cap for human table columns
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	_ = logger.Sync()
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that change state.
type StatusResponse struct {
	Status       string `json:"status"`
	Path         string `json:"path,omitempty"`
	MemberID     string `json:"member_id,omitempty"`
	Publications int    `json:"publications"`
}

// grid is tabular output: a header and string cells.
type grid struct {
	cols []string
	rows [][]string
}

// publicationGrid lays out publications with columns in first-seen key order.
func publicationGrid(pubs []records.Publication) grid {
	seen := make(map[string]bool)
	var g grid
	for _, p := range pubs {
		for _, k := range p.Keys() {
			if !seen[k] {
				seen[k] = true
				g.cols = append(g.cols, k)
			}
		}
	}
	for _, p := range pubs {
		row := make([]string, len(g.cols))
		for i, c := range g.cols {
			row[i] = p.Text(c)
		}
		g.rows = append(g.rows, row)
	}
	return g
}

// writeCSV writes a grid as CSV with a header row.
func writeCSV(w io.Writer, g grid) error {
	if len(g.cols) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(g.cols); err != nil {
		return err
	}
	if err := cw.WriteAll(g.rows); err != nil {
		return err
	}
	return cw.Error()
}

// writeTable writes a grid as aligned columns.
func writeTable(w io.Writer, g grid) {
	if len(g.rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}

	widths := make([]int, len(g.cols))
	for i, c := range g.cols {
		widths[i] = utf8.RuneCountInString(c)
	}
	for _, row := range g.rows {
		for i, v := range row {
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for i := range widths {
		if widths[i] > MaxColumnWidth {
			widths[i] = MaxColumnWidth
		}
	}

	header := make([]string, len(g.cols))
	for i, c := range g.cols {
		header[i] = padRight(strings.ToUpper(c), widths[i])
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(header, "  "), " "))

	for _, row := range g.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = padRight(truncateString(v, widths[i]), widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
	fmt.Fprintf(w, "(%d rows)\n", len(g.rows))
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// padRight pads s with spaces to width runes.
func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
