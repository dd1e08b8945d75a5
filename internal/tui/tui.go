// Package tui is the interactive-terminal collaborator: a Renderer the
// CLI feeds a fresh snapshot of in-flight and completed crawl
// state, and one minimal implementation that draws a plain column table
// to a terminal. Deliberately not a widget framework; a status table
// doesn't warrant one.
package tui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// URLState is the lifecycle stage of one URL the engine has seen, as
// observed from outside (the engine itself has no knowledge of the
// TUI; the CLI glue code reports transitions into a Renderer).
type URLState int

const (
	StateQueued URLState = iota
	StateFetching
	StateDone
	StateError
)

func (s URLState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateFetching:
		return "fetching"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "?"
	}
}

// Row is one line of the status snapshot.
type Row struct {
	URL   string
	Depth int
	State URLState
}

// Renderer is the interface the core's ancillary TUI collaborator
// implements; the CLI (or any caller) calls Render with a fresh
// snapshot whenever crawl state changes.
type Renderer interface {
	Render(rows []Row)
	Close() error
}

// termRenderer is a minimal plain-table Renderer: no alternate screen,
// no raw mode, just a column-aligned rewrite of the last N lines,
// sized to the detected terminal width (falling back to 80 columns
// when out isn't a real terminal, e.g. redirected to a file).
type termRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	width    int
	lastRows int
}

// NewTermRenderer detects the terminal width of out (os.Stderr in
// normal use), falling back to 80 when term.GetSize errors
// (piped/non-tty output).
func NewTermRenderer(out *os.File) Renderer {
	width := 80
	if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
		width = w
	}
	return &termRenderer{out: out, width: width}
}

// Render rewrites the previous snapshot in place (moving the cursor up
// lastRows lines first) and prints the new one ordered by state: error
// rows first, then done, fetching, queued (input order within a state).
func (t *termRenderer) Render(rows []Row) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].State > sorted[j].State
	})

	if t.lastRows > 0 {
		fmt.Fprintf(t.out, "\x1b[%dA", t.lastRows)
	}
	for _, r := range sorted {
		line := formatRow(r, t.width)
		fmt.Fprintln(t.out, line)
	}
	t.lastRows = len(sorted)
}

func (t *termRenderer) Close() error { return nil }

// formatRow pads url to a depth/state-aware column layout, measuring
// display width with go-runewidth since a URL may contain
// multi-column runes (IDN hosts, percent-decoded paths) that len()
// would miscount.
func formatRow(r Row, width int) string {
	prefix := fmt.Sprintf("[%-8s] d=%-2d ", r.State, r.Depth)
	budget := width - runewidth.StringWidth(prefix)
	url := r.URL
	if budget > 3 && runewidth.StringWidth(url) > budget {
		url = runewidth.Truncate(url, budget-1, "…")
	}
	return prefix + strings.TrimSpace(url)
}
