package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := New(4, 2)
	c.Throttler = ZeroThrottle{}
	c.Retry = NewRetryPolicy(3)
	c.Retry.Base = 10 * time.Millisecond
	c.Retry.Jitter = false
	return c
}

func collect(t *testing.T, c *Client, n int, timeout time.Duration) []*Response {
	t.Helper()
	var out []*Response
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case resp := <-c.Responses():
			out = append(out, resp)
		case <-deadline:
			t.Fatalf("collected %d of %d responses within %s", len(out), n, timeout)
		}
	}
	return out
}

func TestClientRetryThenSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := newTestClient(t)
	c.Start()
	defer c.Close()

	require.NoError(t, c.Submit(&Request{URL: server.URL}))
	resps := collect(t, c, 1, 5*time.Second)

	require.NoError(t, resps[0].Error)
	assert.Equal(t, http.StatusOK, resps[0].Status)
	assert.Equal(t, []byte("ok"), resps[0].Body)
	assert.Equal(t, 1, resps[0].Retries)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestClientRetryExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t)
	c.Retry.MaxRetries = 1
	c.Start()
	defer c.Close()

	require.NoError(t, c.Submit(&Request{URL: server.URL}))
	resps := collect(t, c, 1, 5*time.Second)

	assert.Equal(t, http.StatusInternalServerError, resps[0].Status)
	assert.Equal(t, 1, resps[0].Retries)
}

func TestClientFastRequestNotBlockedByRetryingPeer(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fast"))
	}))
	defer fast.Close()

	c := newTestClient(t)
	c.Retry.MaxRetries = 2
	c.Retry.Base = 300 * time.Millisecond
	c.Start()
	defer c.Close()

	require.NoError(t, c.Submit(&Request{URL: slow.URL}))
	require.NoError(t, c.Submit(&Request{URL: fast.URL}))

	resps := collect(t, c, 2, 5*time.Second)
	assert.Equal(t, fast.URL, resps[0].Request.URL, "the fast response should arrive while the other request is still backing off")
	assert.Equal(t, slow.URL, resps[1].Request.URL)
}

func TestClientSubmitAfterCloseFails(t *testing.T) {
	c := newTestClient(t)
	c.Start()
	c.Close()
	assert.Error(t, c.Submit(&Request{URL: "http://test/"}))
}

func TestClientRecordsStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("body"))
	}))
	defer server.Close()

	c := newTestClient(t)
	c.Start()
	defer c.Close()

	require.NoError(t, c.Submit(&Request{URL: server.URL}))
	collect(t, c, 1, 5*time.Second)

	c.Stats.mu.Lock()
	defer c.Stats.mu.Unlock()
	assert.Equal(t, 1, c.Stats.Enqueued)
	assert.Equal(t, 1, c.Stats.Completed)
	assert.Equal(t, 1, c.Stats.StatusHistogram[http.StatusOK])
	assert.Equal(t, uint64(4), c.Stats.BytesReceived)
}
