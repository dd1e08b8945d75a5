package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wxpath/wxpath/internal/lexer"
)

// SyntaxError names the offending segment or token. Syntax errors are
// fatal to the evaluation.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string { return "wxpath syntax error: " + e.Msg }

func syntaxf(format string, args ...any) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...)}
}

// precedence, low to high: "||" (5), comparisons (10), "+ -" (20),
// "* /" (30), "!" simple-map (40).
var precedence = map[string]int{
	"||": 5,
	"=":  10,
	"!=": 10,
	"<":  10,
	"<=": 10,
	">":  10,
	">=": 10,
	"+":  20,
	"-":  20,
	"*":  30,
	"/":  30,
	"!":  40,
}

// Parse parses DSL source text into a Segments program and runs the
// post-parse validator. It is the package's single public entry point.
func Parse(src string) (Segments, error) {
	prog, err := parseUnvalidated(src)
	if err != nil {
		return nil, err
	}
	if err := Validate(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

func parseUnvalidated(src string) (Segments, error) {
	tokens := lexer.Tokenize(src)

	opIdx, _ := findWxpathBoundary(tokens)
	if opIdx < 0 {
		hasWxpath := false
		for _, t := range tokens {
			if t.Kind == lexer.WXPATH {
				hasWxpath = true
				break
			}
		}
		if !hasWxpath {
			return Segments{&XPath{Value: strings.TrimSpace(src)}}, nil
		}
		p := newParser(tokens)
		return p.parseTop()
	}

	opTok := tokens[opIdx]
	xpathStr := strings.TrimSpace(src[:opTok.Start])

	rest := tokens[opIdx+1:]
	p := newParser(rest)
	right, err := p.parseTop()
	if err != nil {
		return nil, err
	}
	return Segments{&Binary{Left: &XPath{Value: xpathStr}, Op: opTok.Value, Right: right}}, nil
}

// findWxpathBoundary finds the operator that connects a pure-xpath prefix
// to the first WXPATH token: the last depth-0 OP token before it. Returns
// (-1, -1) if there is no such operator (including when there is no
// WXPATH token at all).
func findWxpathBoundary(tokens []lexer.Token) (int, int) {
	wxpathPos := -1
	for i, t := range tokens {
		if t.Kind == lexer.WXPATH {
			wxpathPos = i
			break
		}
	}
	if wxpathPos < 0 {
		return -1, -1
	}

	parenDepth := 0
	for i := wxpathPos - 1; i >= 0; i-- {
		switch tokens[i].Kind {
		case lexer.RPAREN:
			parenDepth++
		case lexer.LPAREN:
			parenDepth--
		case lexer.OP:
			if parenDepth == 0 {
				return i, wxpathPos
			}
		}
	}
	return -1, -1
}

// parserState is the Pratt parser over one token slice. It always ends
// with an EOF token (callers slice tokens so that invariant holds).
type parserState struct {
	tokens []lexer.Token
	pos    int
}

func newParser(tokens []lexer.Token) *parserState {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != lexer.EOF {
		tokens = append(tokens, lexer.Token{Kind: lexer.EOF})
	}
	return &parserState{tokens: tokens}
}

// cur skips whitespace tokens in place and returns the next structurally
// significant token. Structural dispatch (nud() and the binary-operator
// loop) must not trip over whitespace separating a boundary operator
// from the following "url(". The raw capture helpers below read tokens
// without this skip, preserving whitespace verbatim inside captured
// XPath text.
func (p *parserState) cur() lexer.Token {
	for p.tokens[p.pos].Kind == lexer.WS {
		p.pos++
	}
	return p.tokens[p.pos]
}

func (p *parserState) advance() {
	p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *parserState) raw() lexer.Token { return p.tokens[p.pos] }

func (p *parserState) rawAdvance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

// parseTop parses one expression and requires the stream to be fully
// consumed.
func (p *parserState) parseTop() (Segments, error) {
	left, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.EOF {
		return nil, syntaxf("unexpected token %q", p.cur().Value)
	}
	return toSegments(left), nil
}

func toSegments(node any) Segments {
	switch v := node.(type) {
	case Segments:
		return v
	case Segment:
		return Segments{v}
	default:
		return nil
	}
}

// expression parses a binary-operator chain honoring precedence, or a
// segment sequence when the next token is WXPATH.
func (p *parserState) expression(minPrec int) (any, error) {
	return p.parseBinary(minPrec)
}

func (p *parserState) parseBinary(minPrec int) (any, error) {
	var left any
	var err error

	if p.cur().Kind == lexer.WXPATH {
		left, err = p.parseSegments()
	} else {
		left, err = p.nud()
	}
	if err != nil {
		return nil, err
	}

	for p.cur().Kind == lexer.OP {
		op := p.cur().Value
		prec, ok := precedence[op]
		if !ok || prec < minPrec {
			break
		}
		p.advance()

		var right any
		if p.cur().Kind == lexer.WXPATH {
			right, err = p.parseSegments()
		} else {
			right, err = p.parseBinary(prec + 1)
		}
		if err != nil {
			return nil, err
		}
		left = &Binary{Left: asXPath(left), Op: op, Right: toSegments(right)}
	}

	return left, nil
}

// asXPath coerces a nud() result into an *XPath node for Binary.Left. In
// practice the left-hand side of a top-level Binary is always a pure
// XPath prefix by construction (see findWxpathBoundary), so this only
// needs to handle the segment-sequence parse path producing a single
// XPath segment.
func asXPath(v any) *XPath {
	switch n := v.(type) {
	case *XPath:
		return n
	case Segments:
		if len(n) == 1 {
			if x, ok := n[0].(*XPath); ok {
				return x
			}
		}
	}
	return &XPath{}
}

// parseSegments parses a run of url()-calls interspersed with captured
// XPath text, e.g. url('…')//a/url(@href)//b. Adjacency validation
// happens afterwards in Validate.
func (p *parserState) parseSegments() (Segments, error) {
	var segs Segments

	for p.cur().Kind != lexer.EOF {
		switch p.cur().Kind {
		case lexer.WXPATH:
			call, err := p.nud()
			if err != nil {
				return nil, err
			}
			if call == nil {
				continue
			}
			switch c := call.(type) {
			case Segments:
				segs = append(segs, c...)
			case Segment:
				segs = append(segs, c)
			}
		case lexer.RPAREN, lexer.COMMA, lexer.RBRACE:
			return segs, nil
		default:
			content := p.captureXPathUntilWxpathOrEnd()
			if strings.TrimSpace(content) != "" {
				segs = append(segs, &XPath{Value: strings.TrimSpace(content)})
			}
		}
	}

	return segs, nil
}

// nud parses a null-denotation expression: literals, a parenthesized
// expression, or a url()-shaped WXPATH call.
func (p *parserState) nud() (any, error) {
	tok := p.cur()

	switch tok.Kind {
	case lexer.STRING:
		p.advance()
		return &XPath{Value: unquote(tok.Value)}, nil

	case lexer.DOT:
		p.advance()
		return &ContextItem{}, nil

	case lexer.WXPATH:
		funcName := strings.ReplaceAll(strings.ReplaceAll(tok.Value, " ", ""), "\n", "")
		p.advance()
		if p.cur().Kind == lexer.LPAREN {
			return p.parseCall(funcName)
		}
		return &XPath{Value: funcName}, nil

	case lexer.LPAREN:
		p.advance()
		expr, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != lexer.RPAREN {
			return nil, syntaxf("expected ')'")
		}
		p.advance()
		return expr, nil

	case lexer.NUMBER, lexer.INTEGER:
		// Bare numeric literals only ever appear inside raw XPath text
		// captured elsewhere (e.g. "(1 to 3)"); reaching nud() directly
		// means they stand alone as a sub-expression of a url() argument.
		p.advance()
		return &XPath{Value: tok.Value}, nil
	}

	// Any other token is raw XPath content; the caller (parseSegments /
	// capture helpers) is responsible for accumulating it.
	return nil, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

// captureXPathUntilWxpathOrEnd accumulates raw token text (preserving
// whitespace) until a depth-0 WXPATH, EOF, RPAREN, or COMMA token,
// balancing parens/braces so nested calls like contains(...) or map
// constructors are captured verbatim. Operates on raw
// (non-whitespace-skipping) tokens.
func (p *parserState) captureXPathUntilWxpathOrEnd() string {
	var b strings.Builder
	parenDepth, braceDepth := 0, 0

	for p.raw().Kind != lexer.EOF {
		tok := p.raw()
		if parenDepth == 0 && braceDepth == 0 {
			if tok.Kind == lexer.WXPATH || tok.Kind == lexer.RPAREN || tok.Kind == lexer.COMMA {
				break
			}
		}
		if tok.Kind == lexer.LPAREN {
			parenDepth++
		} else if tok.Kind == lexer.RPAREN {
			parenDepth--
			if parenDepth < 0 {
				break
			}
		}
		if tok.Kind == lexer.LBRACE {
			braceDepth++
		} else if tok.Kind == lexer.RBRACE {
			braceDepth--
			if braceDepth < 0 {
				break
			}
		}
		b.WriteString(tok.Value)
		p.rawAdvance()
	}

	return b.String()
}

// urlArgElement is one piece of a captured url(...) argument list: either
// plain XPath text, a context-item ".", a nested call, or a depth=N
// integer.
type urlArgElement struct {
	xpath   *XPath
	ctx     *ContextItem
	literal *string // a quoted string literal, e.g. the 'url' of url('url')
	call    any     // Segment or Segments from a nested nud()
	depth   *int
	isDepth bool
}

// captureURLArgContent captures the content of a url(...) call already
// past its opening '(', handling nested wxpath expressions and the
// follow=/depth= keyword arguments.
func (p *parserState) captureURLArgContent() []urlArgElement {
	var elements []urlArgElement
	var currentXPath, followXPath, depthNumber strings.Builder
	parenBalance := 1
	braceBalance := 0
	reachedFollow := false
	reachedDepth := false

	flushXPath := func() {
		s := strings.TrimSpace(currentXPath.String())
		if s == "" {
			return
		}
		if s == "." {
			elements = append(elements, urlArgElement{ctx: &ContextItem{}})
		} else {
			elements = append(elements, urlArgElement{xpath: &XPath{Value: s}})
		}
		currentXPath.Reset()
	}

	for parenBalance > 0 && p.raw().Kind != lexer.EOF {
		tok := p.raw()
		switch tok.Kind {
		case lexer.WXPATH:
			flushXPath()
			nested, _ := p.nud()
			if nested != nil {
				elements = append(elements, urlArgElement{call: nested})
			}
			continue

		case lexer.FOLLOW:
			reachedFollow, reachedDepth = true, false
			p.rawAdvance()
			continue

		case lexer.DEPTH:
			reachedDepth, reachedFollow = true, false
			p.rawAdvance()
			continue

		case lexer.LPAREN:
			parenBalance++
			appendToActive(&currentXPath, &followXPath, reachedFollow, tok.Value)
			p.rawAdvance()
			continue

		case lexer.RPAREN:
			parenBalance--
			if parenBalance == 0 {
				goto done
			}
			appendToActive(&currentXPath, &followXPath, reachedFollow, tok.Value)
			p.rawAdvance()
			continue

		case lexer.LBRACE:
			braceBalance++
			appendToActive(&currentXPath, &followXPath, reachedFollow, tok.Value)
			p.rawAdvance()
			continue

		case lexer.RBRACE:
			braceBalance--
			appendToActive(&currentXPath, &followXPath, reachedFollow, tok.Value)
			p.rawAdvance()
			continue

		default:
			if reachedFollow {
				followXPath.WriteString(tok.Value)
			} else if reachedDepth {
				depthNumber.WriteString(tok.Value)
			} else {
				currentXPath.WriteString(tok.Value)
			}
			p.rawAdvance()
		}
	}
done:
	_ = braceBalance
	flushXPath()

	if strings.TrimSpace(followXPath.String()) != "" {
		elements = append(elements, urlArgElement{xpath: &XPath{Value: strings.TrimSpace(followXPath.String())}})
	}
	if d := strings.TrimSpace(depthNumber.String()); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			elements = append(elements, urlArgElement{depth: &n, isDepth: true})
		}
	}

	return elements
}

func appendToActive(currentXPath, followXPath *strings.Builder, reachedFollow bool, v string) {
	if reachedFollow {
		followXPath.WriteString(v)
	} else {
		currentXPath.WriteString(v)
	}
}

// parseCall parses a function call already past its name, including the
// url()-family argument-shape specialization.
func (p *parserState) parseCall(funcName string) (any, error) {
	p.advance() // consume '('

	var elements []urlArgElement
	isURLFamily := strings.HasSuffix(funcName, "url")

	if isURLFamily {
		switch p.cur().Kind {
		case lexer.STRING:
			lit := unquote(p.cur().Value)
			p.advance()
			elements = append(elements, urlArgElement{literal: &lit})
			if p.cur().Kind == lexer.FOLLOW || p.cur().Kind == lexer.DEPTH {
				elements = append(elements, p.captureURLArgContent()...)
			}
		case lexer.WXPATH:
			nested, err := p.nud()
			if err != nil {
				return nil, err
			}
			elements = append(elements, urlArgElement{call: nested})
		default:
			elements = p.captureURLArgContent()
		}
	}

	if p.cur().Kind != lexer.RPAREN {
		// Additional bare expression arguments (rare; e.g. a nested
		// non-url() call). Parsed best-effort as xpath text.
		content := p.captureXPathUntilWxpathOrEnd()
		if strings.TrimSpace(content) != "" {
			elements = append(elements, urlArgElement{xpath: &XPath{Value: strings.TrimSpace(content)}})
		}
	}

	if p.cur().Kind != lexer.RPAREN {
		return nil, syntaxf("expected ')' closing %s(...)", funcName)
	}
	p.advance()

	return specifyCallType(funcName, elements)
}

// effectiveQueryPath rebuilds the XPath a slash-prefixed url(<xpath>)
// call actually evaluates: the call token's slash prefix belongs to the
// path, so //url(@href) selects every descendant href (".//@href"), not
// the context node's own attribute. Arguments that are already a full
// path ("//main//a/@href") are used verbatim.
func effectiveQueryPath(funcName, arg string) string {
	if !strings.HasPrefix(arg, "@") {
		return arg
	}
	return "." + strings.TrimSuffix(funcName, "url") + arg
}

// specifyCallType decides which URL_* shape a url()-family call produces
// based on its argument count and shapes.
func specifyCallType(funcName string, args []urlArgElement) (any, error) {
	isLiteral := func(a urlArgElement) (string, bool) {
		if a.literal != nil {
			return *a.literal, true
		}
		return "", false
	}
	isPlainXPath := func(a urlArgElement) (string, bool) {
		if a.xpath != nil {
			return a.xpath.Value, true
		}
		return "", false
	}

	switch funcName {
	case "url":
		switch len(args) {
		case 1:
			if lit, ok := isLiteral(args[0]); ok {
				return &URLLiteral{Literal: lit}, nil
			}
			if path, ok := isPlainXPath(args[0]); ok {
				return &URLQuery{Path: path}, nil
			}
			if args[0].ctx != nil {
				return &URLQuery{IsContextItem: true}, nil
			}
			return nil, syntaxf("url(): unknown argument shape")
		case 2:
			lit0, isLit0 := isLiteral(args[0])
			if isLit0 {
				if path, ok := isPlainXPath(args[1]); ok {
					return &URLCrawl{Literal: lit0, Follow: path}, nil
				}
			}
			if isLit0 && args[1].isDepth {
				return &URLLiteral{Literal: lit0, Depth: args[1].depth}, nil
			}
			return nil, syntaxf("url(): unknown 2-argument shape")
		case 3:
			lit0, isLit0 := isLiteral(args[0])
			if !isLit0 {
				return nil, syntaxf("url(): unknown 3-argument shape")
			}
			var follow string
			var depth *int
			for _, a := range args[1:] {
				if a.isDepth {
					depth = a.depth
				} else if path, ok := isPlainXPath(a); ok {
					follow = path
				}
			}
			if follow == "" {
				return nil, syntaxf("url(): 3-argument form requires follow=")
			}
			return &URLCrawl{Literal: lit0, Follow: follow, Depth: depth}, nil
		default:
			return nil, syntaxf("url(): unexpected argument count %d", len(args))
		}

	case "/url", "//url":
		if len(args) != 1 {
			return nil, syntaxf("%s(): expected exactly one argument", funcName)
		}
		if path, ok := isPlainXPath(args[0]); ok {
			return &URLQuery{Path: effectiveQueryPath(funcName, path)}, nil
		}
		if args[0].ctx != nil {
			return &URLQuery{IsContextItem: true}, nil
		}
		return nil, syntaxf("%s(): unknown argument shape", funcName)

	case "///url":
		if len(args) != 1 {
			return nil, syntaxf("///url(): expected exactly one argument")
		}
		if path, ok := isPlainXPath(args[0]); ok {
			return &URLInf{Path: effectiveQueryPath("//url", path)}, nil
		}
		if args[0].ctx != nil {
			return &URLInf{IsContextItem: true}, nil
		}
		return nil, syntaxf("///url(): unknown argument shape")

	default:
		return nil, syntaxf("unknown call: %s", funcName)
	}
}
