package httpclient

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Throttler decides how long a worker should pause before issuing the
// next request to host, and is told about every completed request's
// observed latency so it can adapt.
type Throttler interface {
	Wait(host string)
	Observe(host string, latency time.Duration)
}

// hostState is the per-host (latency EWMA, delay) pair the adaptive
// throttler maintains. Guarded by AdaptiveThrottler.mu rather than a
// per-entry lock: workers on different hosts touch the same map, and
// every Wait/Observe call needs to read-then-write atomically.
type hostState struct {
	latencyEWMA time.Duration
	delay       time.Duration
}

// AdaptiveThrottler adapts a per-host delay to observed latency:
// ewma <- smoothing*ewma + (1-smoothing)*observed;
// delay <- clamp(0, MaxDelay, ewma/TargetConcurrency).
type AdaptiveThrottler struct {
	Smoothing         float64
	TargetConcurrency float64
	MaxDelay          time.Duration
	Clock             clock.Clock

	mu    sync.RWMutex
	hosts map[string]*hostState
}

// NewAdaptiveThrottler builds an AdaptiveThrottler with the given
// target concurrency and max delay; smoothing defaults to 0.8 and the
// clock defaults to the real wall clock (tests substitute
// clock.NewMock()).
func NewAdaptiveThrottler(targetConcurrency float64, maxDelay time.Duration) *AdaptiveThrottler {
	return &AdaptiveThrottler{
		Smoothing:         0.8,
		TargetConcurrency: targetConcurrency,
		MaxDelay:          maxDelay,
		Clock:             clock.New(),
		hosts:             make(map[string]*hostState),
	}
}

func (t *AdaptiveThrottler) state(host string) *hostState {
	t.mu.RLock()
	s, ok := t.hosts[host]
	t.mu.RUnlock()
	if ok {
		return s
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.hosts[host]; ok {
		return s
	}
	s = &hostState{}
	t.hosts[host] = s
	return s
}

// Wait sleeps for the host's current delay.
func (t *AdaptiveThrottler) Wait(host string) {
	s := t.state(host)
	t.mu.RLock()
	d := s.delay
	t.mu.RUnlock()
	if d > 0 {
		t.Clock.Sleep(d)
	}
}

// Observe folds latency into the host's EWMA and recomputes its delay.
func (t *AdaptiveThrottler) Observe(host string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.hosts[host]
	if !ok {
		s = &hostState{}
		t.hosts[host] = s
	}
	if s.latencyEWMA == 0 {
		s.latencyEWMA = latency
	} else {
		s.latencyEWMA = time.Duration(t.Smoothing*float64(s.latencyEWMA) + (1-t.Smoothing)*float64(latency))
	}
	target := t.TargetConcurrency
	if target <= 0 {
		target = 1
	}
	delay := time.Duration(float64(s.latencyEWMA) / target)
	if delay < 0 {
		delay = 0
	}
	if delay > t.MaxDelay {
		delay = t.MaxDelay
	}
	s.delay = delay
}

// ZeroThrottle never delays requests.
type ZeroThrottle struct{}

func (ZeroThrottle) Wait(string)                   {}
func (ZeroThrottle) Observe(string, time.Duration) {}

// FixedThrottle waits a fixed delay before every request regardless of
// host or observed latency.
type FixedThrottle struct {
	Delay time.Duration
	Clock clock.Clock
}

func NewFixedThrottle(delay time.Duration) *FixedThrottle {
	return &FixedThrottle{Delay: delay, Clock: clock.New()}
}

func (f *FixedThrottle) Wait(string) {
	if f.Delay > 0 {
		f.Clock.Sleep(f.Delay)
	}
}

func (f *FixedThrottle) Observe(string, time.Duration) {}
