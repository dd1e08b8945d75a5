// Package blob is a PostExtract sink that uploads each extracted value
// as one JSON object to S3 instead of (or alongside) the default NDJSON
// stream, keyed by a monotonic sequence number since a crawl has no
// natural per-value key.
package blob

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Sink uploads extracted values as "<prefix>/<seq>.json" objects in
// bucket, one PutObject call per value.
type Sink struct {
	svc    *s3.S3
	bucket string
	prefix string
	seq    uint64
	logger *log.Logger
}

// New parses addr in "<region>:<bucket>[/<prefix>]" form and opens an
// S3 session.
func New(addr string) (*Sink, error) {
	region, rest, ok := strings.Cut(addr, ":")
	if !ok {
		return nil, fmt.Errorf("blob: %q does not have the expected <region>:<bucket>[/<prefix>] format", addr)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, fmt.Errorf("blob: %q is missing a bucket name", addr)
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("blob: opening session: %w", err)
	}
	return &Sink{
		svc:    s3.New(sess),
		bucket: bucket,
		prefix: prefix,
		logger: log.New(os.Stderr, "blob: ", log.LstdFlags),
	}, nil
}

func (*Sink) Name() string { return "blob_sink" }

// PostExtract uploads value, JSON-encoded, as its own object. Marshal
// and upload errors are logged here and the value still passes through
// unmodified, so the stream keeps going even when S3 is unreachable for
// one value.
func (s *Sink) PostExtract(value any) (any, bool) {
	encoded, err := json.Marshal(value)
	if err != nil {
		s.logger.Printf("marshal error: %v", err)
		return value, true
	}
	n := atomic.AddUint64(&s.seq, 1)
	key := fmt.Sprintf("%s%06d.json", keyPrefix(s.prefix), n)
	if _, err := s.svc.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(encoded),
		ContentType: aws.String("application/json"),
	}); err != nil {
		s.logger.Printf("upload %s: %v", key, err)
	}
	return value, true
}

func keyPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimSuffix(prefix, "/") + "/"
}
