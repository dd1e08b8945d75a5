// Package operator turns (current node, remaining segments, depth)
// triples into lists of intents, one handler per segment kind. Handlers
// are pure: no I/O, no queue manipulation. Dispatch is a type switch
// over parser.Segment with in-handler discrimination on the element's
// shape.
package operator

import (
	"fmt"

	"github.com/wxpath/wxpath/internal/intent"
	"github.com/wxpath/wxpath/internal/node"
	"github.com/wxpath/wxpath/internal/parser"
)

// DispatchError reports a (segment, elem-shape) pair with no registered
// handler, a fatal programmer error: it means a parser change was not
// mirrored in this table.
type DispatchError struct {
	Segment parser.Segment
	ElemT   string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("operator: no handler for segment %T against elem of type %s", e.Segment, e.ElemT)
}

// Dispatch executes segments[0] against elem and returns the intents it
// produces. elem is one of: nil (seed task), *node.Node (a loaded
// document or sub-element), node.StringResult, string, float64, or bool
// (scalar values threaded through Process intents by a prior XPath or
// Binary step).
func Dispatch(elem any, segments parser.Segments, depth int) ([]intent.Intent, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	head, rest := segments[0], segments[1:]

	switch seg := head.(type) {
	case *parser.URLLiteral:
		return handleURLLiteral(seg, rest), nil

	case *parser.URLCrawl:
		return handleURLCrawl(seg, rest), nil

	case *parser.URLQuery:
		return handleURLQuery(elem, seg, rest)

	case *parser.URLInf:
		return handleURLInf(elem, seg, rest)

	case *parser.URLInfAndXPath:
		return handleURLInfAndXPath(elem, seg, rest), nil

	case *parser.XPath:
		return handleXPath(elem, seg, rest)

	case *parser.Binary:
		return handleBinary(elem, seg)

	case *parser.ContextItem:
		// A bare "." as a whole segment only ever appears nested inside
		// url(.); reaching dispatch with it as the head segment means
		// the elem itself is the value to continue with.
		if len(rest) == 0 {
			return []intent.Intent{intent.Data{Value: elem}}, nil
		}
		return []intent.Intent{intent.Process{Elem: elem, Next: rest}}, nil
	}

	return nil, &DispatchError{Segment: head, ElemT: fmt.Sprintf("%T", elem)}
}

func handleURLLiteral(seg *parser.URLLiteral, rest parser.Segments) []intent.Intent {
	return []intent.Intent{intent.Crawl{URL: seg.Literal, Next: rest, MaxDepth: seg.Depth}}
}

func handleURLCrawl(seg *parser.URLCrawl, rest parser.Segments) []intent.Intent {
	next := append(parser.Segments{&parser.URLInfAndXPath{Path: seg.Follow, URL: seg.Literal}}, rest...)
	return []intent.Intent{intent.Crawl{URL: seg.Literal, Next: next, MaxDepth: seg.Depth}}
}

func handleURLQuery(elem any, seg *parser.URLQuery, rest parser.Segments) ([]intent.Intent, error) {
	if seg.IsContextItem {
		if url, ok := contextURL(elem); ok {
			return []intent.Intent{intent.Crawl{URL: url, Next: rest}}, nil
		}
		if n, ok := elem.(*node.Node); ok {
			urls, err := resolveURLs(n, ".")
			if err != nil {
				return nil, err
			}
			intents := make([]intent.Intent, 0, len(urls))
			for _, u := range urls {
				intents = append(intents, intent.Crawl{URL: u, Next: rest})
			}
			return intents, nil
		}
		return nil, fmt.Errorf("operator: url(.) has no context to fetch (got %T)", elem)
	}

	n, ok := elem.(*node.Node)
	if !ok {
		return nil, &DispatchError{Segment: seg, ElemT: fmt.Sprintf("%T", elem)}
	}
	urls, err := resolveURLs(n, seg.Path)
	if err != nil {
		return nil, err
	}
	intents := make([]intent.Intent, 0, len(urls))
	for _, u := range urls {
		intents = append(intents, intent.Crawl{URL: u, Next: rest})
	}
	return intents, nil
}

func handleURLInf(elem any, seg *parser.URLInf, rest parser.Segments) ([]intent.Intent, error) {
	n, ok := elem.(*node.Node)
	if !ok {
		return nil, &DispatchError{Segment: seg, ElemT: fmt.Sprintf("%T", elem)}
	}
	path := seg.Path
	if seg.IsContextItem {
		path = "."
	}
	urls, err := resolveURLs(n, path)
	if err != nil {
		return nil, err
	}
	intents := make([]intent.Intent, 0, len(urls))
	for _, u := range urls {
		next := append(parser.Segments{&parser.URLInfAndXPath{Path: seg.Path, URL: u}}, rest...)
		intents = append(intents, intent.Crawl{URL: u, Next: next})
	}
	return intents, nil
}

// handleURLInfAndXPath is the engine-internal continuation produced by
// handleURLCrawl/handleURLInf once the requested URL has been fetched:
// it both yields/continues the loaded document through rest, and
// re-seeds the infinite expansion from the now-loaded document.
func handleURLInfAndXPath(elem any, seg *parser.URLInfAndXPath, rest parser.Segments) []intent.Intent {
	var intents []intent.Intent
	if len(rest) == 0 {
		intents = append(intents, intent.Data{Value: elem})
	} else {
		intents = append(intents, intent.Extract{Elem: elem, Next: rest})
	}
	next := append(parser.Segments{&parser.URLInf{Path: seg.Path}}, rest...)
	intents = append(intents, intent.InfiniteCrawl{Elem: elem, Next: next})
	return intents
}

func handleXPath(elem any, seg *parser.XPath, rest parser.Segments) ([]intent.Intent, error) {
	n, ok := elem.(*node.Node)
	if !ok {
		return nil, &DispatchError{Segment: seg, ElemT: fmt.Sprintf("%T", elem)}
	}
	result, err := n.XPath3(seg.Value)
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case []node.NodeItem:
		intents := make([]intent.Intent, 0, len(v))
		for _, item := range v {
			var value any
			if item.Elem != nil {
				value = n.WithRoot(item.Elem)
			} else {
				value = node.StringResult{Text: item.Value, BaseURL: n.BaseURL, Depth: n.Depth}
			}
			intents = append(intents, leafOrContinue(value, rest))
		}
		return intents, nil
	case string:
		value := node.StringResult{Text: v, BaseURL: n.BaseURL, Depth: n.Depth}
		return []intent.Intent{leafOrContinue(value, rest)}, nil
	case float64, bool, nil:
		return []intent.Intent{leafOrContinue(v, rest)}, nil
	default:
		return []intent.Intent{leafOrContinue(v, rest)}, nil
	}
}

func leafOrContinue(value any, rest parser.Segments) intent.Intent {
	if len(rest) == 0 {
		return intent.Data{Value: value}
	}
	return intent.Process{Elem: value, Next: rest}
}

// handleBinary evaluates the left XPath prefix (against a synthetic
// empty document when no element is loaded yet, as with a numeric
// enumeration like "(1 to 3)") and emits one Process intent per result,
// continuing with the right-hand segments.
func handleBinary(elem any, seg *parser.Binary) ([]intent.Intent, error) {
	n, ok := elem.(*node.Node)
	if !ok {
		n = node.Empty()
	}
	// The operator itself only marks where the wxpath continuation
	// begins; the left prefix is a complete XPath expression on its own.
	result, err := n.XPath3(seg.Left.Value)
	if err != nil {
		return nil, err
	}

	var values []any
	switch v := result.(type) {
	case []node.NodeItem:
		for _, item := range v {
			if item.Elem != nil {
				values = append(values, n.WithRoot(item.Elem))
			} else {
				values = append(values, item.Value)
			}
		}
	default:
		values = append(values, v)
	}

	intents := make([]intent.Intent, 0, len(values))
	for _, v := range values {
		intents = append(intents, intent.Process{Elem: v, Next: seg.Right})
	}
	return intents, nil
}

func contextURL(elem any) (string, bool) {
	switch v := elem.(type) {
	case string:
		return v, true
	case node.StringResult:
		return v.Text, true
	case float64:
		return fmt.Sprintf("%v", v), true
	}
	return "", false
}

// resolveURLs runs path against n, resolves each result absolute against
// n.BaseURL, and de-duplicates preserving first-seen order.
func resolveURLs(n *node.Node, path string) ([]string, error) {
	result, err := n.XPath3(path)
	if err != nil {
		return nil, err
	}

	var raw []string
	switch v := result.(type) {
	case []node.NodeItem:
		for _, item := range v {
			raw = append(raw, item.Value)
		}
	case string:
		raw = append(raw, v)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		resolved, ok := n.ResolveAgainstBase(r)
		if !ok || seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out, nil
}
