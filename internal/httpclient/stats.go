package httpclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats counts the client's activity: requests enqueued/started/
// completed, in-flight-by-host, cumulative throttle wait, latency
// min/max/EWMA, a status-code histogram, bytes received, and
// retries/errors by host. Updated by plain method calls hung off the
// worker loop.
type Stats struct {
	mu sync.Mutex

	Enqueued  int
	Started   int
	Completed int
	CacheHits int

	InFlightByHost map[string]int
	ThrottleWait   time.Duration

	latencySum   time.Duration
	latencyCount int
	LatencyMin   time.Duration
	LatencyMax   time.Duration
	LatencyEWMA  time.Duration

	StatusHistogram map[int]int
	BytesReceived   uint64

	RetriesScheduled int
	RetriesExecuted  int
	ErrorsByHost     map[string]int
}

// NewStats returns a zero-valued, ready-to-use Stats.
func NewStats() *Stats {
	return &Stats{
		InFlightByHost:  make(map[string]int),
		StatusHistogram: make(map[int]int),
		ErrorsByHost:    make(map[string]int),
	}
}

func (s *Stats) OnEnqueue() {
	s.mu.Lock()
	s.Enqueued++
	s.mu.Unlock()
}

func (s *Stats) OnStart(host string) {
	s.mu.Lock()
	s.Started++
	s.InFlightByHost[host]++
	s.mu.Unlock()
}

func (s *Stats) OnThrottleWait(d time.Duration) {
	s.mu.Lock()
	s.ThrottleWait += d
	s.mu.Unlock()
}

func (s *Stats) OnRetryScheduled() {
	s.mu.Lock()
	s.RetriesScheduled++
	s.mu.Unlock()
}

// OnComplete records one finished attempt (success or error).
func (s *Stats) OnComplete(host string, resp *Response, retried bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Completed++
	if s.InFlightByHost[host] > 0 {
		s.InFlightByHost[host]--
	}
	if retried {
		s.RetriesExecuted++
	}

	latency := resp.Elapsed()
	s.latencySum += latency
	s.latencyCount++
	if s.LatencyMin == 0 || latency < s.LatencyMin {
		s.LatencyMin = latency
	}
	if latency > s.LatencyMax {
		s.LatencyMax = latency
	}
	const smoothing = 0.8
	if s.LatencyEWMA == 0 {
		s.LatencyEWMA = latency
	} else {
		s.LatencyEWMA = time.Duration(smoothing*float64(s.LatencyEWMA) + (1-smoothing)*float64(latency))
	}

	if resp.Error != nil {
		s.ErrorsByHost[host]++
	} else {
		s.StatusHistogram[resp.Status]++
		s.BytesReceived += uint64(len(resp.Body))
	}
}

// Summary renders a one-line human-readable shutdown summary.
func (s *Stats) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf(
		"requests=%d completed=%d retries=%d bytes=%s throttle_wait=%s latency_ewma=%s",
		s.Enqueued, s.Completed, s.RetriesExecuted,
		humanize.Bytes(s.BytesReceived), s.ThrottleWait, s.LatencyEWMA,
	)
}
