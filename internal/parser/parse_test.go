package parser

import "testing"

func TestParseURLLiteral(t *testing.T) {
	prog, err := Parse(`url('https://a/')`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog) != 1 {
		t.Fatalf("expected one segment, got %d: %v", len(prog), prog)
	}
	lit, ok := prog[0].(*URLLiteral)
	if !ok {
		t.Fatalf("expected *URLLiteral, got %T", prog[0])
	}
	if lit.Literal != "https://a/" {
		t.Errorf("Literal = %q, want %q", lit.Literal, "https://a/")
	}
}

func TestParseURLThenXPath(t *testing.T) {
	prog, err := Parse(`url('https://a/')//h1/text()`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog) != 2 {
		t.Fatalf("expected two segments, got %d: %v", len(prog), prog)
	}
	if _, ok := prog[0].(*URLLiteral); !ok {
		t.Errorf("segment 0 = %T, want *URLLiteral", prog[0])
	}
	xp, ok := prog[1].(*XPath)
	if !ok {
		t.Fatalf("segment 1 = %T, want *XPath", prog[1])
	}
	if xp.Value != "//h1/text()" {
		t.Errorf("XPath.Value = %q, want %q", xp.Value, "//h1/text()")
	}
}

func TestParseURLThenNestedURLQuery(t *testing.T) {
	prog, err := Parse(`url('https://a/')//url(@href)`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog) != 2 {
		t.Fatalf("expected two segments (lit, url-query), got %d: %v", len(prog), prog)
	}
	q, ok := prog[1].(*URLQuery)
	if !ok {
		t.Fatalf("last segment = %T, want *URLQuery", prog[1])
	}
	// The //url token's slashes are part of the evaluated path: every
	// descendant href, not the context node's own attribute.
	if q.Path != ".//@href" {
		t.Errorf("Path = %q, want .//@href", q.Path)
	}
}

func TestParseInfiniteCrawl(t *testing.T) {
	prog, err := Parse(`url('https://a/')///url(@href)`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	last := prog[len(prog)-1]
	inf, ok := last.(*URLInf)
	if !ok {
		t.Fatalf("last segment = %T, want *URLInf", last)
	}
	if inf.Path != ".//@href" {
		t.Errorf("Path = %q, want %q", inf.Path, ".//@href")
	}
}

func TestParseFollow(t *testing.T) {
	prog, err := Parse(`url('https://a/', follow=//a[@class='next']/@href)`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog) != 1 {
		t.Fatalf("expected one segment, got %d: %v", len(prog), prog)
	}
	crawl, ok := prog[0].(*URLCrawl)
	if !ok {
		t.Fatalf("expected *URLCrawl, got %T", prog[0])
	}
	if crawl.Literal != "https://a/" {
		t.Errorf("Literal = %q", crawl.Literal)
	}
	if crawl.Follow != `//a[@class='next']/@href` {
		t.Errorf("Follow = %q", crawl.Follow)
	}
}

func TestParseBinaryMapForm(t *testing.T) {
	prog, err := Parse(`(1 to 3)!url(.)`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog) != 1 {
		t.Fatalf("expected one segment, got %d: %v", len(prog), prog)
	}
	bin, ok := prog[0].(*Binary)
	if !ok {
		t.Fatalf("expected *Binary, got %T", prog[0])
	}
	if bin.Op != "!" {
		t.Errorf("Op = %q, want %q", bin.Op, "!")
	}
	if bin.Left.Value != "(1 to 3)" {
		t.Errorf("Left.Value = %q, want %q", bin.Left.Value, "(1 to 3)")
	}
	if len(bin.Right) != 1 {
		t.Fatalf("Right has %d segments, want 1", len(bin.Right))
	}
	if _, ok := bin.Right[0].(*URLQuery); !ok {
		t.Errorf("Right[0] = %T, want *URLQuery", bin.Right[0])
	}
}

func TestParseBareXPathProgram(t *testing.T) {
	prog, err := Parse(`//a/@href`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog) != 1 {
		t.Fatalf("expected one segment, got %d", len(prog))
	}
	if _, ok := prog[0].(*XPath); !ok {
		t.Errorf("segment = %T, want *XPath", prog[0])
	}
}

func TestValidateRejectsLeadingURLQuery(t *testing.T) {
	_, err := Parse(`url(@href)`)
	if err == nil {
		t.Fatalf("expected a syntax error for a program starting with URL_QUERY")
	}
}

func TestValidateRejectsMultipleInfiniteCrawls(t *testing.T) {
	_, err := Parse(`url('https://a/')///url(@href)///url(@href)`)
	if err == nil {
		t.Fatalf("expected a syntax error for more than one URL_INF segment")
	}
}

func TestValidateRejectsLeadingSlashAfterXPath(t *testing.T) {
	_, err := Parse(`url('https://a/')//main//a/url(/@href)`)
	if err == nil {
		t.Fatalf("expected a syntax error: <xpath> in url(<xpath>) may not begin with /")
	}
}

func TestPrintRoundTripsURLLiteralThenXPath(t *testing.T) {
	src := `url('https://a/')//h1/text()`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	printed := Print(prog)
	reparsed, err := Parse(printed)
	if err != nil {
		t.Fatalf("re-Parse of printed form failed: %v (printed=%q)", err, printed)
	}
	if len(reparsed) != len(prog) {
		t.Fatalf("round-trip segment count mismatch: %d vs %d", len(reparsed), len(prog))
	}
}
