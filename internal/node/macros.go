package node

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
)

// substituteMacros rewrites the wx:* function calls in expr into literal
// XPath text or, for the two whole-expression-only forms (wx:elem,
// wx:main-article-text), a short-circuit return value. Every substituted
// value is a per-document constant, so textual substitution before
// compilation stands in for registering extension functions with the
// underlying engine; for wx:internal-links/wx:external-links the
// substituted text is a textual approximation (see linksPredicate).
func (n *Node) substituteMacros(expr string) (resolved string, shortCircuit any, err error) {
	trimmed := strings.TrimSpace(expr)

	switch trimmed {
	case "wx:elem()":
		return "", n.Raw, nil
	case "wx:main-article-text()":
		text, err := n.MainArticleText()
		if err != nil {
			return "", nil, err
		}
		return "", text, nil
	}

	resolved = macroCall.ReplaceAllStringFunc(expr, func(m string) string {
		name := macroName.FindStringSubmatch(m)[1]
		return n.macroLiteral(name)
	})
	return resolved, nil, nil
}

var macroCall = regexp.MustCompile(`wx:[a-z-]+\(\)`)
var macroName = regexp.MustCompile(`wx:([a-z-]+)\(\)`)

// macroLiteral returns the XPath literal text for a zero-argument wx:*
// function, computed once per document per call (these are per-document
// constants, not per-node values, so substitution is safe regardless of
// where in the tree the expression is evaluated from).
func (n *Node) macroLiteral(name string) string {
	switch name {
	case "depth":
		return "number(" + strconv.Itoa(n.Depth) + ")"
	case "backlink":
		return "string('" + escapeXPathString(n.Backlink) + "')"
	case "current-url":
		return "string('" + escapeXPathString(n.BaseURL) + "')"
	case "fetch-time", "elapsed":
		seconds := n.Response.FetchTime().Seconds()
		return "number(" + strconv.FormatFloat(seconds, 'f', -1, 64) + ")"
	case "status-code":
		status := 0
		if n.Response != nil {
			status = n.Response.Status
		}
		return "number(" + strconv.Itoa(status) + ")"
	case "internal-links":
		return n.linksPredicate(true)
	case "external-links":
		return n.linksPredicate(false)
	default:
		// Unknown wx:* name; left as-is so antchfx/xpath raises a
		// compile error naming the bad expression.
		return "wx:" + name + "()"
	}
}

func escapeXPathString(s string) string {
	return strings.ReplaceAll(s, "'", "&apos;")
}

// linksPredicate builds a literal XPath selecting anchors whose href is
// same-domain (internal) or foreign (external), judged by a substring
// match on the document's own registrable domain. This is a textual
// approximation rather than a true per-anchor URL resolution + domain
// comparison (which Node.InternalLinks/ExternalLinks perform exactly);
// it is good enough for the common "wx:internal-links()" used in place
// of an anchor axis step.
func (n *Node) linksPredicate(internal bool) string {
	domain := ""
	if base, err := url.Parse(n.BaseURL); err == nil {
		domain = RegistrableDomain(base.Hostname())
	}
	if domain == "" {
		return "//a[@href]"
	}
	match := "contains(@href, '" + escapeXPathString(domain) + "')"
	if internal {
		return "//a[@href][starts-with(@href, '/') or not(contains(@href, '://')) or " + match + "]"
	}
	return "//a[@href][contains(@href, '://') and not(" + match + ")]"
}

// RegistrableDomain approximates the registrable domain of a host: the
// last two labels, or the last three if the penultimate label has <=3
// characters and the last label has 2 (so bbc.co.uk resolves as
// bbc.co.uk).
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	last := labels[len(labels)-1]
	penultimate := labels[len(labels)-2]
	if len(penultimate) <= 3 && len(last) == 2 {
		if len(labels) >= 3 {
			return strings.Join(labels[len(labels)-3:], ".")
		}
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// InternalLinks returns every anchor href resolved against BaseURL whose
// registrable domain matches the document's own.
func (n *Node) InternalLinks() ([]string, error) {
	return n.linksByDomain(true)
}

// ExternalLinks returns every anchor href resolved against BaseURL whose
// registrable domain differs from the document's own.
func (n *Node) ExternalLinks() ([]string, error) {
	return n.linksByDomain(false)
}

func (n *Node) linksByDomain(internal bool) ([]string, error) {
	base, err := url.Parse(n.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("node: parse base url %q: %w", n.BaseURL, err)
	}
	ownDomain := RegistrableDomain(base.Hostname())

	hrefs, err := n.hrefs()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, h := range hrefs {
		resolved, ok := ResolveURL(base, h)
		if !ok {
			continue
		}
		isInternal := RegistrableDomain(resolved.Hostname()) == ownDomain || resolved.Hostname() == ""
		if isInternal == internal {
			out = append(out, resolved.String())
		}
	}
	return out, nil
}

// hrefs selects every anchor with an href attribute. It goes through
// htmlquery.QueryAll + SelectAttr directly rather than n.XPath3("//a/@href")
// because antchfx's attribute nodeset navigator yields the owning element,
// not a standalone value node; SelectAttr is the documented way to read an
// attribute off a matched element.
func (n *Node) hrefs() ([]string, error) {
	matches, err := htmlquery.QueryAll(n.Raw, "//a[@href]")
	if err != nil {
		return nil, fmt.Errorf("node: query anchors: %w", err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if v, ok := Attr(m, "href"); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// ResolveURL joins a possibly-relative href against base.
func ResolveURL(base *url.URL, href string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, false
	}
	if u.IsAbs() {
		return u, true
	}
	return base.ResolveReference(u), true
}
