package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders a Segments program back to canonical DSL source text.
// For any source that round-trips cleanly, parse(Print(parse(src)))
// equals parse(src).
func Print(prog Segments) string {
	var b strings.Builder
	for _, seg := range prog {
		b.WriteString(printSegment(seg))
	}
	return b.String()
}

func printSegment(seg Segment) string {
	switch s := seg.(type) {
	case *XPath:
		return s.Value
	case *ContextItem:
		return "."
	case *URLLiteral:
		if s.Depth != nil {
			return fmt.Sprintf("url('%s', depth=%d)", s.Literal, *s.Depth)
		}
		return fmt.Sprintf("url('%s')", s.Literal)
	case *URLQuery:
		if s.IsContextItem {
			return "url(.)"
		}
		return fmt.Sprintf("url(%s)", s.Path)
	case *URLCrawl:
		var b strings.Builder
		b.WriteString(fmt.Sprintf("url('%s', follow=%s", s.Literal, s.Follow))
		if s.Depth != nil {
			b.WriteString(", depth=" + strconv.Itoa(*s.Depth))
		}
		b.WriteString(")")
		return b.String()
	case *URLInf:
		if s.IsContextItem {
			return "///url(.)"
		}
		return fmt.Sprintf("///url(%s)", s.Path)
	case *URLInfAndXPath:
		// Synthetic, engine-internal; never produced by the parser and
		// never printed back as user-facing source.
		return fmt.Sprintf("///url(%s)", s.Path)
	case *Binary:
		return fmt.Sprintf("%s %s %s", s.Left.Value, s.Op, Print(s.Right))
	default:
		return ""
	}
}
