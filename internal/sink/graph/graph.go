// Package graph is a PostExtract sink that records the page-link graph
// discovered during a crawl into a bbolt database instead of (or
// alongside) the default NDJSON stream: one bucket mapping a page's URL
// to its serialized document, another mapping "backlink -> page" edges
// to a discovery timestamp.
package graph

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

var (
	pagesBucket = []byte("pages")
	edgesBucket = []byte("edges")
)

// Sink writes extracted documents and the backlink edges between them
// into a bbolt database at path.
type Sink struct {
	db     *bbolt.DB
	logger *log.Logger
}

// Open creates (or reopens) the bbolt database at path and ensures both
// buckets exist.
func Open(path string) (*Sink, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("graph: open %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(pagesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(edgesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("graph: create buckets: %w", err)
	}
	return &Sink{db: db, logger: log.New(os.Stderr, "graph: ", log.LstdFlags)}, nil
}

func (*Sink) Name() string { return "graph_sink" }

// PostExtract stores value (expected to be the map[string]any a
// hooks.Serializer produces, carrying base_url/backlink/depth/text) as
// a page record, and, when a non-empty backlink is present, an edge
// from backlink to base_url. Values that aren't a recognizable document
// map pass through unmodified; the sink never vetoes a branch. Write
// failures are logged and the value still passes through.
func (s *Sink) PostExtract(value any) (any, bool) {
	doc, ok := value.(map[string]any)
	if !ok {
		return value, true
	}
	baseURL, _ := doc["base_url"].(string)
	if baseURL == "" {
		return value, true
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		encoded, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := tx.Bucket(pagesBucket).Put([]byte(baseURL), encoded); err != nil {
			return err
		}
		if backlink, _ := doc["backlink"].(string); backlink != "" {
			key := []byte(backlink + " -> " + baseURL)
			return tx.Bucket(edgesBucket).Put(key, []byte(time.Now().UTC().Format(time.RFC3339)))
		}
		return nil
	})
	if err != nil {
		s.logger.Printf("store %s: %v", baseURL, err)
	}

	return value, true
}

// Close releases the underlying database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}
