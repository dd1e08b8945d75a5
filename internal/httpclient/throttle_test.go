package httpclient

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveThrottlerObserveRaisesDelay(t *testing.T) {
	th := NewAdaptiveThrottler(1.0, time.Second)
	mock := clock.NewMock()
	th.Clock = mock

	th.Observe("a.test", 100*time.Millisecond)
	first := th.state("a.test").delay

	th.Observe("a.test", 100*time.Millisecond)
	second := th.state("a.test").delay

	require.True(t, first > 0, "first observation should set a non-zero delay")
	assert.InDelta(t, float64(first), float64(second), float64(time.Millisecond), "EWMA of identical observations should converge, not drift")
}

func TestAdaptiveThrottlerClampsToMaxDelay(t *testing.T) {
	th := NewAdaptiveThrottler(1.0, 50*time.Millisecond)
	th.Observe("a.test", 10*time.Second)
	assert.Equal(t, 50*time.Millisecond, th.state("a.test").delay)
}

func TestAdaptiveThrottlerWaitUsesMockClock(t *testing.T) {
	th := NewAdaptiveThrottler(1.0, time.Second)
	mock := clock.NewMock()
	th.Clock = mock
	th.Observe("a.test", 200*time.Millisecond)

	done := make(chan struct{})
	go func() {
		th.Wait("a.test")
		close(done)
	}()

	// Give the goroutine a chance to block on Clock.Sleep before advancing.
	time.Sleep(10 * time.Millisecond)
	mock.Add(200 * time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the mock clock advanced past its delay")
	}
}

func TestAdaptiveThrottlerPerHostIsolation(t *testing.T) {
	th := NewAdaptiveThrottler(1.0, time.Second)
	th.Observe("busy.test", 500*time.Millisecond)
	assert.Equal(t, time.Duration(0), th.state("quiet.test").delay)
}

func TestZeroThrottleNeverWaits(t *testing.T) {
	var z ZeroThrottle
	z.Wait("anything")
	z.Observe("anything", time.Hour)
}

func TestFixedThrottleUsesMockClock(t *testing.T) {
	f := NewFixedThrottle(time.Second)
	mock := clock.NewMock()
	f.Clock = mock

	done := make(chan struct{})
	go func() {
		f.Wait("host")
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	mock.Add(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the mock clock advanced")
	}
}
