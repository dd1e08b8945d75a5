// LangChainLoader adapts crawl output into a document loader for a RAG
// pipeline. It works over the shapes hooks.Serializer already produces
// rather than talking to any actual langchain package: wxpath's side of
// that integration is the document conversion, not the downstream chain
// itself.
package plugins

import (
	"context"
	"strconv"
)

// LangChainLoader adapts the map[string]any / string shapes
// hooks.Serializer yields (document maps carrying base_url/backlink/
// depth/text, or string-result maps carrying value/base_url/depth)
// into Document, the generic shape a RAG ingestion pipeline consumes.
type LangChainLoader struct{}

func (LangChainLoader) Name() string { return "langchain_loader" }

func (LangChainLoader) Description() string {
	return "adapts extracted wxpath values into generic Documents for a LangChain-style ingestion pipeline"
}

func (LangChainLoader) Load(_ context.Context, value any) (*Document, bool, error) {
	switch v := value.(type) {
	case map[string]any:
		return documentFromMap(v)
	case string:
		if v == "" {
			return nil, false, nil
		}
		return &Document{Source: "wxpath", Content: v}, true, nil
	default:
		return nil, false, nil
	}
}

func documentFromMap(v map[string]any) (*Document, bool, error) {
	baseURL, _ := v["base_url"].(string)

	// hooks.Serializer's node.StringResult shape: {value, base_url, depth}.
	if text, ok := v["value"].(string); ok {
		return &Document{
			Source:   "wxpath",
			URL:      baseURL,
			Content:  text,
			Metadata: depthMetadata(v),
		}, true, nil
	}

	// hooks.Serializer's *node.Node shape: {base_url, backlink, depth, text}.
	if text, ok := v["text"].(string); ok {
		meta := depthMetadata(v)
		if backlink, _ := v["backlink"].(string); backlink != "" {
			meta["backlink"] = backlink
		}
		return &Document{
			Source:   "wxpath",
			URL:      baseURL,
			Content:  text,
			Metadata: meta,
		}, true, nil
	}

	return nil, false, nil
}

func depthMetadata(v map[string]any) map[string]string {
	meta := make(map[string]string)
	switch d := v["depth"].(type) {
	case int:
		meta["depth"] = strconv.Itoa(d)
	case float64:
		meta["depth"] = strconv.Itoa(int(d))
	}
	return meta
}
