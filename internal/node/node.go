// Package node wraps a parsed HTML document with the per-document metadata
// the DSL's XPath layer needs (base URL, backlink, crawl depth, fetch
// response info) and exposes the xpath3 evaluation method with the custom
// wx:* function library applied.
package node

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// ResponseMeta carries the subset of an HTTP response that wx:status-code
// and wx:fetch-time expose to XPath.
type ResponseMeta struct {
	Status     int
	RequestAt  time.Time
	ResponseAt time.Time
}

// FetchTime is the duration between request start and response end.
func (r *ResponseMeta) FetchTime() time.Duration {
	if r == nil || r.ResponseAt.Before(r.RequestAt) {
		return 0
	}
	return r.ResponseAt.Sub(r.RequestAt)
}

// Node is an HTML element tree enriched with crawl metadata. A Node is
// immutable after construction: no operator handler mutates Raw, BaseURL,
// Backlink or Depth once Parse returns.
type Node struct {
	Raw      *html.Node
	BaseURL  string
	Backlink string
	Depth    int
	Response *ResponseMeta
}

// Parse builds a Node from a fetched response body. htmlquery.Parse always
// returns a single document-rooted tree (golang.org/x/net/html wraps
// fragments in one html/head/body root), so the XPath engine always sees
// a proper tree even when the source bytes contain multiple top-level
// siblings.
func Parse(body io.Reader, baseURL, backlink string, depth int, resp *ResponseMeta) (*Node, error) {
	root, err := htmlquery.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("node: parse document: %w", err)
	}
	return &Node{
		Raw:      root,
		BaseURL:  baseURL,
		Backlink: backlink,
		Depth:    depth,
		Response: resp,
	}, nil
}

// NodeItem is one member of an XPath3 nodeset result. Elem is non-nil
// when the matched item is itself an element (so a caller can keep
// traversing it as a document fragment); Value is always populated with
// the navigator's string value, which is what an attribute- or
// text-selecting expression (e.g. "@href", "text()") actually carries —
// antchfx's NodeNavigator.Current() returns the *owning* element even
// for an attribute match, so Value (not a re-wrapped Elem) is the
// correct way to read out an attribute or text selection.
type NodeItem struct {
	Elem  *html.Node
	Value string
}

// XPath3 evaluates expr against n with the wx:* macro library applied.
// Macro calls are substituted as literal text into expr before
// compilation; their values are per-document constants, so no extension
// functions need registering with the underlying engine. The return
// value is whatever antchfx/xpath produces for the expression shape: a
// nodeset ([]NodeItem), a string, a float64, or a bool.
func (n *Node) XPath3(expr string) (any, error) {
	resolved, shortCircuit, err := n.substituteMacros(expr)
	if err != nil {
		return nil, err
	}
	if shortCircuit != nil {
		return shortCircuit, nil
	}

	compiled, err := xpath.Compile(resolved)
	if err != nil {
		return nil, fmt.Errorf("node: compile xpath %q: %w", expr, err)
	}

	nav := htmlquery.CreateXPathNavigator(n.Raw)
	result := compiled.Evaluate(nav)

	if iter, ok := result.(*xpath.NodeIterator); ok {
		var items []NodeItem
		for iter.MoveNext() {
			cur := iter.Current()
			item := NodeItem{Value: cur.Value()}
			if cur.NodeType() == xpath.ElementNode {
				if hn, ok := cur.(*htmlquery.NodeNavigator); ok {
					item.Elem = hn.Current()
				}
			}
			items = append(items, item)
		}
		return items, nil
	}
	return result, nil
}

// WithRoot returns a new Node sharing n's document metadata (BaseURL,
// Backlink, Depth, Response) but rooted at a different element, used
// when a pipeline step descends into a sub-element of the same document.
func (n *Node) WithRoot(root *html.Node) *Node {
	return &Node{
		Raw:      root,
		BaseURL:  n.BaseURL,
		Backlink: n.Backlink,
		Depth:    n.Depth,
		Response: n.Response,
	}
}

// StringResult is a string value extracted from a document, carrying the
// base URL and crawl depth of the document it came from.
type StringResult struct {
	Text     string
	BaseURL  string
	Depth    int
}

func (s StringResult) String() string { return s.Text }

// Empty returns a minimal Node over an empty document, used as the XPath
// evaluation context when a Binary segment's left-hand prefix runs with
// no element loaded yet (e.g. a numeric enumeration like "(1 to 3)",
// which needs a context for antchfx/xpath to evaluate against but never
// dereferences it).
func Empty() *Node {
	root, _ := htmlquery.Parse(strings.NewReader("<html></html>"))
	return &Node{Raw: root}
}

// ResolveAgainstBase resolves a possibly-relative URL string against
// n.BaseURL, the Node analogue of the free ResolveURL helper.
func (n *Node) ResolveAgainstBase(raw string) (string, bool) {
	base, err := url.Parse(n.BaseURL)
	if err != nil {
		return "", false
	}
	u, ok := ResolveURL(base, raw)
	if !ok {
		return "", false
	}
	return u.String(), true
}

// InnerText is a thin pass-through to htmlquery, used by the Serializer
// hook to flatten a node to its text.
func InnerText(n *html.Node) string {
	return htmlquery.InnerText(n)
}

// Attr returns the named attribute's value and whether it was present.
func Attr(n *html.Node, name string) (string, bool) {
	return htmlquery.SelectAttr(n, name), hasAttr(n, name)
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}
