package hooks

import (
	"golang.org/x/net/html"

	"github.com/wxpath/wxpath/internal/node"
)

// Serializer is a built-in PostExtract hook that turns the raw
// XPath-engine values an operator handler can yield (a *node.Node, a
// node.StringResult, an *html.Node, a bool, a float64) into plain Go
// values suitable for JSON encoding.
type Serializer struct{}

func (Serializer) Name() string { return "serializer" }

func (Serializer) PostExtract(value any) (any, bool) {
	return serialize(value), true
}

func serialize(value any) any {
	switch v := value.(type) {
	case node.StringResult:
		return map[string]any{
			"value":    v.Text,
			"base_url": v.BaseURL,
			"depth":    v.Depth,
		}
	case *node.Node:
		return map[string]any{
			"base_url": v.BaseURL,
			"backlink": v.Backlink,
			"depth":    v.Depth,
			"text":     node.InnerText(v.Raw),
		}
	case *html.Node:
		return node.InnerText(v)
	default:
		return v
	}
}
