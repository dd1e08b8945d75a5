// Package httpclient implements the bounded-concurrency fetcher: a
// global semaphore, a lazily-created per-host semaphore, an adaptive
// throttler, a retry policy with exponential backoff and jitter, and
// optional robots.txt enforcement. rehttp provides a transport-level
// safety net for connection errors; the request-level RetryPolicy covers
// everything that needs per-Request knowledge (MaxRetries, DontRetry,
// the filename filter), which a transport RetryFn never sees.
package httpclient

import "time"

// Request is one fetch to perform. MaxRetries, when zero, falls back to
// the client's configured default; DontRetry forces zero retries
// regardless (the filename filter sets it for .pdf/.zip/.exe paths).
type Request struct {
	URL        string
	Method     string
	Headers    map[string]string
	Timeout    time.Duration
	Retries    int
	MaxRetries int
	DontRetry  bool

	// Meta is an opaque correlation bag, echoed onto the resulting
	// Response untouched.
	Meta map[string]any
}

func (r *Request) method() string {
	if r.Method == "" {
		return "GET"
	}
	return r.Method
}
