package plugins

import (
	"context"
	"testing"
)

type stubLoader struct{ name string }

func (s stubLoader) Name() string        { return s.name }
func (s stubLoader) Description() string { return "stub" }
func (s stubLoader) Load(_ context.Context, value any) (*Document, bool, error) {
	text, ok := value.(string)
	if !ok {
		return nil, false, nil
	}
	return &Document{Source: s.name, Content: text}, true, nil
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterLoader(stubLoader{"a"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := r.RegisterLoader(stubLoader{"a"}); err == nil {
		t.Fatal("expected duplicate-name registration to fail")
	}
}

func TestRegistryListLoadersSorted(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterLoader(stubLoader{"zeta"})
	_ = r.RegisterLoader(stubLoader{"alpha"})

	got := r.ListLoaders()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Fatalf("expected sorted [alpha zeta], got %v", got)
	}
}

func TestLoadAllSkipsNonMatchingLoaders(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterLoader(stubLoader{"text"})

	docs, err := r.LoadAll(context.Background(), 42)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents for an unhandled value, got %d", len(docs))
	}

	docs, err = r.LoadAll(context.Background(), "hello")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "hello" {
		t.Fatalf("expected one document with content %q, got %+v", "hello", docs)
	}
}

func TestLangChainLoaderAdaptsDocumentMap(t *testing.T) {
	l := LangChainLoader{}
	doc, ok, err := l.Load(context.Background(), map[string]any{
		"base_url": "https://a/",
		"backlink": "https://seed/",
		"depth":    1,
		"text":     "hello world",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for a document-shaped map")
	}
	if doc.URL != "https://a/" || doc.Content != "hello world" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Metadata["backlink"] != "https://seed/" || doc.Metadata["depth"] != "1" {
		t.Fatalf("unexpected metadata: %+v", doc.Metadata)
	}
}

func TestLangChainLoaderAdaptsStringResultMap(t *testing.T) {
	l := LangChainLoader{}
	doc, ok, err := l.Load(context.Background(), map[string]any{
		"value":    "Hello",
		"base_url": "https://a/",
		"depth":    float64(2),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok || doc.Content != "Hello" || doc.Metadata["depth"] != "2" {
		t.Fatalf("unexpected result: doc=%+v ok=%v", doc, ok)
	}
}

func TestLangChainLoaderRejectsUnrecognizedShape(t *testing.T) {
	l := LangChainLoader{}
	_, ok, err := l.Load(context.Background(), map[string]any{"unrelated": true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a map with no recognizable text field")
	}
}
