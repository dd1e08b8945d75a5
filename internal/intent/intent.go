// Package intent defines the small tagged values emitted by operator
// handlers (internal/operator) and consumed by the engine's pipeline
// loop (internal/engine): a closed interface with five implementations,
// matched exhaustively by the engine.
package intent

import "github.com/wxpath/wxpath/internal/parser"

// Intent is the result of executing one segment against one node. The
// engine's pipeline loop switches on the concrete type; there is no open
// extension point, since new intent kinds require a matching engine case.
type Intent interface {
	intentTag() string
}

// Data carries a fully extracted value (string, element, or map) with
// nothing left to do; the engine yields it through the post_extract hook
// chain.
type Data struct {
	Value any
}

func (Data) intentTag() string { return "DATA" }

// Crawl requests that url be fetched; Next is the segment sequence to
// resume with once the fetch completes. MaxDepth, when non-nil, is the
// per-branch depth cap from a url(..., depth=N) segment; it overrides
// the engine's global max depth for this branch and everything it
// spawns.
type Crawl struct {
	URL      string
	Next     parser.Segments
	MaxDepth *int
}

func (Crawl) intentTag() string { return "CRAWL" }

// Process carries an already-loaded element (or scalar) that should
// continue through Next without a network round-trip; pushed back onto
// the engine's local pipeline queue.
type Process struct {
	Elem any
	Next parser.Segments
}

func (Process) intentTag() string { return "PROCESS" }

// Extract is identical in shape to Process; it is kept as a distinct
// variant so "a leaf extraction about to terminate" and "a pipeline
// continuation" stay distinguishable in logs, even though the engine
// drives both the same way.
type Extract struct {
	Elem any
	Next parser.Segments
}

func (Extract) intentTag() string { return "EXTRACT" }

// InfiniteCrawl re-seeds the local pipeline queue with a URL_INF
// continuation so that an infinite crawl keeps expanding from the
// now-loaded document.
type InfiniteCrawl struct {
	Elem any
	Next parser.Segments
}

func (InfiniteCrawl) intentTag() string { return "INFINITE_CRAWL" }
