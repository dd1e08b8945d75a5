package httpclient

import (
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"time"
)

// RetryPolicy decides whether a completed attempt should be retried and
// computes the backoff to wait before resubmission. Not delegated to
// rehttp: the policy needs per-Request knowledge (MaxRetries, DontRetry)
// that rehttp's transport-level RetryFn never sees.
type RetryPolicy struct {
	// RetryStatuses is the set of HTTP statuses eligible for retry.
	// Defaults to {500, 502, 503, 504}.
	RetryStatuses map[int]bool
	// MaxRetries is the policy's global ceiling. A per-request
	// Request.MaxRetries can only lower the effective limit, never
	// raise it past this.
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
	Jitter     bool

	// excludedExts force MaxRetries to 0 regardless of policy/request
	// settings.
	excludedExts map[string]bool
}

// NewRetryPolicy builds a RetryPolicy with the defaults
// {500,502,503,504}, base=0.5s, cap=30s, jitter enabled.
func NewRetryPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		RetryStatuses: map[int]bool{500: true, 502: true, 503: true, 504: true},
		MaxRetries:    maxRetries,
		Base:          500 * time.Millisecond,
		Cap:           30 * time.Second,
		Jitter:        true,
		excludedExts:  map[string]bool{".pdf": true, ".zip": true, ".exe": true},
	}
}

// ApplyFilenameFilter forces req.MaxRetries to 0 when its URL path ends
// in an excluded extension.
func (p *RetryPolicy) ApplyFilenameFilter(req *Request, urlPath string) {
	ext := strings.ToLower(filepath.Ext(urlPath))
	if p.excludedExts[ext] {
		req.MaxRetries = 0
		req.DontRetry = true
	}
}

// ShouldRetry reports whether resp is eligible for another attempt,
// given its owning Request: never retry when req.DontRetry; never retry
// past req.MaxRetries (when set) or the policy's own MaxRetries,
// whichever is lower; otherwise retry on a retryable status or any
// transport error.
func (p *RetryPolicy) ShouldRetry(req *Request, resp *Response) bool {
	if req.DontRetry {
		return false
	}
	limit := p.MaxRetries
	if req.MaxRetries > 0 && req.MaxRetries < limit {
		limit = req.MaxRetries
	}
	if req.Retries >= limit {
		return false
	}
	if resp.Error != nil {
		return true
	}
	return p.RetryStatuses[resp.Status]
}

// Backoff computes min(cap, base*2^attempt) * uniform(0.7, 1.3).
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	exp := math.Pow(2, float64(attempt))
	d := time.Duration(float64(p.Base) * exp)
	if d > p.Cap {
		d = p.Cap
	}
	if !p.Jitter {
		return d
	}
	factor := 0.7 + rand.Float64()*0.6
	return time.Duration(float64(d) * factor)
}
