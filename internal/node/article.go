package node

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kljensen/snowball"
	"golang.org/x/net/html"
)

// MainArticleText implements wx:main-article-text(), a readability-style
// heuristic: score block-level candidates by text length and tag weight,
// discount by link density, and return the highest-scoring candidate's
// text. Snowball stemming discounts boilerplate navigation text (short,
// highly repetitive stems) relative to prose.
func (n *Node) MainArticleText() (string, error) {
	var buf strings.Builder
	if err := html.Render(&buf, n.Raw); err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(buf.String()))
	if err != nil {
		return "", err
	}

	var best *goquery.Selection
	bestScore := 0.0

	doc.Find("p, article, section, div, li, td, pre").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) < 50 {
			return
		}
		score := candidateScore(s, text)
		if score > bestScore {
			bestScore = score
			best = s
		}
	})

	if best == nil {
		return strings.TrimSpace(doc.Find("body").Text()), nil
	}
	return strings.TrimSpace(best.Text()), nil
}

// candidateScore is tag weight plus a length factor plus a comma bonus, scaled
// down by the fraction of text that sits inside anchor tags, and further
// discounted by how much of the text stems to a small repeated
// vocabulary (a cheap proxy for nav/boilerplate blocks, which tend to
// repeat a handful of short words like "home", "next", "login").
func candidateScore(s *goquery.Selection, text string) float64 {
	tag := goquery.NodeName(s)
	score := 0.0
	switch tag {
	case "div", "article", "section":
		score += 5.0
	case "p", "pre", "td", "li":
		score += 3.0
	}
	score += float64(len(text)) / 100.0
	score += float64(strings.Count(text, ","))

	score *= 1.0 - linkDensity(s)
	score *= 1.0 - boilerplateStemDensity(text)
	if score < 0 {
		return 0
	}
	return score
}

// linkDensity is the fraction of a candidate's text that sits inside
// descendant <a> tags; a high fraction indicates a link list (nav,
// related-articles block) rather than prose.
func linkDensity(s *goquery.Selection) float64 {
	total := len(strings.TrimSpace(s.Text()))
	if total == 0 {
		return 0
	}
	linkLen := 0
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkLen += len(strings.TrimSpace(a.Text()))
	})
	d := float64(linkLen) / float64(total)
	if d > 1 {
		d = 1
	}
	return d
}

// boilerplateStems is how many of the most frequent stems (each seen
// more than twice) boilerplateStemDensity counts.
const boilerplateStems = 5

// boilerplateStemDensity stems every word in text and returns the
// fraction belonging to the handful of stems that recur most often;
// boilerplate blocks (nav bars, footers) tend to repeat a tiny
// vocabulary, while prose has a long tail of distinct stems.
func boilerplateStemDensity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, ".,!?;:\"'()"))
		if w == "" {
			continue
		}
		stem, err := snowball.Stem(w, "english", true)
		if err != nil {
			stem = w
		}
		counts[stem]++
	}
	var top []int
	for _, c := range counts {
		if c > 2 {
			top = append(top, c)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(top)))
	if len(top) > boilerplateStems {
		top = top[:boilerplateStems]
	}
	repeated := 0
	for _, c := range top {
		repeated += c
	}
	return float64(repeated) / float64(len(words))
}
