package parser

// Validate enforces the post-parse program invariants:
//   - a program starts with URL_LIT, URL_CRAWL (a literal
//     url(..., follow=...)) or a bare XPath segment, never
//     URL_QUERY/URL_INF first;
//   - at most one URL_INF segment;
//   - the <xpath> argument of a url(<xpath>) immediately following an
//     XPath segment may not begin with "/" or "//".
func Validate(prog Segments) error {
	if len(prog) == 0 {
		return nil
	}

	if err := validateLeadingSegment(prog[0]); err != nil {
		return err
	}
	if err := validateSingleInfiniteCrawl(prog); err != nil {
		return err
	}
	if err := validateNoLeadingSlashAfterXPath(prog); err != nil {
		return err
	}
	return nil
}

func validateLeadingSegment(first Segment) error {
	switch first.(type) {
	case *URLLiteral, *URLCrawl, *XPath, *Binary:
		return nil
	case *URLQuery, *URLInf:
		return syntaxf("a program may not begin with a segment that queries a not-yet-loaded document")
	default:
		return nil
	}
}

func validateSingleInfiniteCrawl(prog Segments) error {
	count := countInfiniteCrawls(prog)
	if count > 1 {
		return syntaxf("a program may contain at most one infinite crawl (///url(...)), found %d", count)
	}
	return nil
}

func countInfiniteCrawls(segs Segments) int {
	n := 0
	for _, s := range segs {
		switch v := s.(type) {
		case *URLInf:
			n++
		case *Binary:
			n += countInfiniteCrawls(v.Right)
		}
	}
	return n
}

func validateNoLeadingSlashAfterXPath(prog Segments) error {
	for i := 0; i+1 < len(prog); i++ {
		_, leftIsXPath := prog[i].(*XPath)
		if !leftIsXPath {
			continue
		}
		if q, ok := prog[i+1].(*URLQuery); ok {
			if hasForbiddenSlashPrefix(q.Path) {
				return syntaxf(
					"invalid segments: the <xpath> in url(<xpath>) may not begin with"+
						" / or // when it follows an Xpath segment (got %q)", q.Path,
				)
			}
		}
	}
	if b, ok := prog[len(prog)-1].(*Binary); ok {
		return validateNoLeadingSlashAfterXPath(b.Right)
	}
	return nil
}

func hasForbiddenSlashPrefix(path string) bool {
	return len(path) > 0 && path[0] == '/'
}
