// Package task defines the engine's unit of work: a pending fetch, or
// the resumption of evaluation on an already-loaded document.
package task

import "github.com/wxpath/wxpath/internal/parser"

// Task is a unit of crawl work. Exactly one of Elem or URL is meaningful
// for a given task: Elem is set when the next segment operates on an
// already-loaded document, URL is set when fetching is required first.
type Task struct {
	Elem any

	// URL to fetch; empty when Elem is already loaded.
	URL string

	// Segments remaining to execute once this task is dispatched.
	Segments parser.Segments

	// Depth is the number of URL hops traversed from the seed. The
	// engine's seed task uses Depth -1 so its first child enters at 0.
	Depth int

	// Backlink is the URL of the referring document, empty for the seed.
	Backlink string

	// Priority mirrors Depth so a priority queue gives BFS ordering if
	// the engine is ever backed by one instead of a plain FIFO.
	Priority int

	// MaxDepth, when non-zero, is the per-branch depth cap inherited
	// from a url(..., depth=N) segment; descendants crawled from this
	// task inherit the same cap unless they carry their own override.
	MaxDepth int
}

// New builds a Task and syncs Priority to Depth.
func New(elem any, url string, segments parser.Segments, depth int, backlink string) *Task {
	return &Task{
		Elem:     elem,
		URL:      url,
		Segments: segments,
		Depth:    depth,
		Backlink: backlink,
		Priority: depth,
	}
}
