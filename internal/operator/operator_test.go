package operator

import (
	"strings"
	"testing"

	"github.com/wxpath/wxpath/internal/intent"
	"github.com/wxpath/wxpath/internal/node"
	"github.com/wxpath/wxpath/internal/parser"
)

func mustParseDoc(t *testing.T, html, baseURL string) *node.Node {
	t.Helper()
	n, err := node.Parse(strings.NewReader(html), baseURL, "", 0, nil)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return n
}

func TestDispatchURLLiteral(t *testing.T) {
	seg := &parser.URLLiteral{Literal: "http://test/"}
	intents, err := Dispatch(nil, parser.Segments{seg}, -1)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(intents))
	}
	c, ok := intents[0].(intent.Crawl)
	if !ok {
		t.Fatalf("expected intent.Crawl, got %T", intents[0])
	}
	if c.URL != "http://test/" {
		t.Errorf("URL = %q, want http://test/", c.URL)
	}
}

func TestDispatchURLLiteralWithDepth(t *testing.T) {
	depth := 3
	seg := &parser.URLLiteral{Literal: "http://test/", Depth: &depth}
	intents, err := Dispatch(nil, parser.Segments{seg}, -1)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	c := intents[0].(intent.Crawl)
	if c.MaxDepth == nil || *c.MaxDepth != 3 {
		t.Errorf("MaxDepth = %v, want 3", c.MaxDepth)
	}
}

func TestDispatchURLQueryResolvesHrefs(t *testing.T) {
	doc := mustParseDoc(t, `<html><body><a href="a.html">a</a><a href="b.html">b</a></body></html>`, "http://test/")
	seg := &parser.URLQuery{Path: "//a/@href"}
	intents, err := Dispatch(doc, parser.Segments{seg}, 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("expected 2 crawl intents, got %d", len(intents))
	}
	var urls []string
	for _, in := range intents {
		c, ok := in.(intent.Crawl)
		if !ok {
			t.Fatalf("expected intent.Crawl, got %T", in)
		}
		urls = append(urls, c.URL)
	}
	want := map[string]bool{"http://test/a.html": true, "http://test/b.html": true}
	for _, u := range urls {
		if !want[u] {
			t.Errorf("unexpected resolved url %q", u)
		}
	}
}

func TestDispatchURLQueryDeduplicates(t *testing.T) {
	doc := mustParseDoc(t, `<html><body><a href="a.html">1</a><a href="a.html">2</a></body></html>`, "http://test/")
	seg := &parser.URLQuery{Path: "//a/@href"}
	intents, err := Dispatch(doc, parser.Segments{seg}, 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected 1 deduplicated crawl intent, got %d", len(intents))
	}
}

func TestDispatchXPathLeafYieldsData(t *testing.T) {
	doc := mustParseDoc(t, `<html><body><h1>Hello</h1></body></html>`, "http://test/")
	seg := &parser.XPath{Value: "//h1/text()"}
	intents, err := Dispatch(doc, parser.Segments{seg}, 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(intents))
	}
	d, ok := intents[0].(intent.Data)
	if !ok {
		t.Fatalf("expected intent.Data, got %T", intents[0])
	}
	sr, ok := d.Value.(node.StringResult)
	if !ok {
		t.Fatalf("expected node.StringResult, got %T", d.Value)
	}
	if sr.Text != "Hello" {
		t.Errorf("text = %q, want Hello", sr.Text)
	}
}

func TestDispatchUnknownSegmentShape(t *testing.T) {
	// A URLQuery against a non-Node elem (e.g. a bare string) has no
	// registered handler shape and must surface as a DispatchError, not
	// a panic.
	seg := &parser.URLQuery{Path: "//a/@href"}
	_, err := Dispatch("not-a-node", parser.Segments{seg}, 0)
	if err == nil {
		t.Fatal("expected an error for mismatched elem shape")
	}
	if _, ok := err.(*DispatchError); !ok {
		t.Errorf("expected *DispatchError, got %T", err)
	}
}

func TestDispatchBinaryMapsLeftResultsOverRight(t *testing.T) {
	doc := mustParseDoc(t, `<html><body><ul><li>1</li><li>2</li><li>3</li></ul></body></html>`, "http://test/")
	seg := &parser.Binary{
		Left:  &parser.XPath{Value: "//li/text()"},
		Op:    "!",
		Right: parser.Segments{&parser.ContextItem{}},
	}
	intents, err := Dispatch(doc, parser.Segments{seg}, 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(intents) != 3 {
		t.Fatalf("expected 3 intents, one per left-hand result, got %d", len(intents))
	}
	for _, in := range intents {
		if _, ok := in.(intent.Process); !ok {
			t.Errorf("expected intent.Process, got %T", in)
		}
	}
}
