package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"github.com/aybabtme/iocontrol"
)

// Client is the bounded-concurrency fetcher: a fixed pool of worker
// goroutines pop requests off an internal channel, each acquiring the
// global then per-host semaphore (in that order, to avoid inversion),
// waiting on the throttler, issuing the GET, and pushing the Response
// onto a shared completion channel.
//
// The underlying *http.Client wraps a plain http.Transport in
// rehttp.NewTransport; InsecureSkipVerify keeps self-signed test
// fixtures fetchable.
type Client struct {
	UserAgent   string
	Headers     map[string]string
	Proxies     map[string]string // per-host proxy URL
	MaxBytesSec int64             // 0 disables the iocontrol throughput cap

	Retry     *RetryPolicy
	Throttler Throttler
	Robots    *RobotsPolicy // nil disables robots enforcement (default)

	Stats *Stats

	concurrency int
	perHost     int

	httpClient *http.Client

	global   chan struct{}
	hostSems sync.Map // map[string]chan struct{}

	in     chan *Request
	out    chan *Response
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed chan struct{}
}

// New builds a Client with concurrency total workers and perHost
// in-flight requests per host, an adaptive throttler targeting one
// request per host at a time, and the default retry policy (3 global
// retries).
func New(concurrency, perHost int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		UserAgent:   "Mozilla/5.0 (compatible; wxpath/1.0; +https://github.com/wxpath/wxpath)",
		Proxies:     make(map[string]string),
		concurrency: concurrency,
		perHost:     perHost,
		Retry:       NewRetryPolicy(3),
		Throttler:   NewAdaptiveThrottler(1.0, 5*time.Second),
		Stats:       NewStats(),
		global:      make(chan struct{}, concurrency),
		in:          make(chan *Request, concurrency*4),
		out:         make(chan *Response, concurrency*4),
		ctx:         ctx,
		cancel:      cancel,
		closed:      make(chan struct{}),
	}

	transport := rehttp.NewTransport(
		&http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			Proxy:           c.proxyFunc,
		},
		rehttp.RetryAll(rehttp.RetryMaxRetries(2), rehttp.RetryTemporaryErr()),
		rehttp.ExpJitterDelay(200*time.Millisecond, 5*time.Second),
	)
	c.httpClient = &http.Client{Transport: transport}
	return c
}

// proxyFunc looks up a per-host proxy from c.Proxies, in the
// http.Transport.Proxy hook shape.
func (c *Client) proxyFunc(req *http.Request) (*url.URL, error) {
	proxy, ok := c.Proxies[req.URL.Hostname()]
	if !ok || proxy == "" {
		return nil, nil
	}
	return url.Parse(proxy)
}

// Start launches the worker pool. Must be called once before Submit.
func (c *Client) Start() {
	c.wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go c.worker()
	}
	go func() {
		c.wg.Wait()
		close(c.out)
	}()
}

// Submit enqueues req, non-blocking unless the internal buffer is full.
// Returns an error if the client has been closed.
func (c *Client) Submit(req *Request) error {
	select {
	case <-c.closed:
		return fmt.Errorf("httpclient: client closed")
	default:
	}
	c.Stats.OnEnqueue()
	select {
	case c.in <- req:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Responses returns the channel Responses are delivered on, in
// completion order, until Close is called and all in-flight work drains.
func (c *Client) Responses() <-chan *Response { return c.out }

// Close stops accepting new submissions and cancels all in-flight
// workers cooperatively.
func (c *Client) Close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	close(c.in)
	c.cancel()
}

func (c *Client) hostSemaphore(host string) chan struct{} {
	v, _ := c.hostSems.LoadOrStore(host, make(chan struct{}, c.perHost))
	return v.(chan struct{})
}

func (c *Client) worker() {
	defer c.wg.Done()
	for req := range c.in {
		select {
		case <-c.ctx.Done():
			// A cancelled worker must not push a synthetic error
			// Response for the request it was processing: the caller
			// already knows the engine is shutting down.
			return
		default:
		}
		c.process(req)
	}
}

func (c *Client) process(req *Request) {
	u, err := url.Parse(req.URL)
	if err != nil {
		c.emit(&Response{Request: req, Error: fmt.Errorf("httpclient: parse url: %w", err)})
		return
	}
	c.Retry.ApplyFilenameFilter(req, u.Path)

	if c.Robots != nil && !c.Robots.Allowed(u) {
		c.emit(&Response{Request: req, Error: fmt.Errorf("httpclient: disallowed by robots.txt: %s", req.URL)})
		return
	}

	host := u.Host
	if err := c.acquire(host); err != nil {
		return
	}
	defer c.release(host)

	for {
		waitStart := time.Now()
		c.Throttler.Wait(host)
		c.Stats.OnThrottleWait(time.Since(waitStart))

		c.Stats.OnStart(host)
		resp := c.do(req, u)
		c.Throttler.Observe(host, resp.Elapsed())

		if c.Retry.ShouldRetry(req, resp) {
			c.Stats.OnRetryScheduled()
			req.Retries++
			backoff := c.Retry.Backoff(req.Retries)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			c.Stats.OnComplete(host, resp, true)
			continue
		}
		c.Stats.OnComplete(host, resp, false)
		resp.Retries = req.Retries
		resp.Meta = req.Meta
		c.emit(resp)
		return
	}
}

func (c *Client) acquire(host string) error {
	select {
	case c.global <- struct{}{}:
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
	sem := c.hostSemaphore(host)
	select {
	case sem <- struct{}{}:
		return nil
	case <-c.ctx.Done():
		<-c.global
		return c.ctx.Err()
	}
}

func (c *Client) release(host string) {
	<-c.hostSemaphore(host)
	if c.global != nil {
		<-c.global
	}
}

func (c *Client) do(req *Request, u *url.URL) *Response {
	start := time.Now()
	timeout := req.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), req.URL, nil)
	if err != nil {
		return &Response{Request: req, Error: err, RequestStart: start, ResponseEnd: time.Now()}
	}
	httpReq.Header.Set("User-Agent", c.UserAgent)
	for k, v := range c.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &Response{Request: req, Error: err, RequestStart: start, ResponseEnd: time.Now()}
	}
	defer httpResp.Body.Close()

	var reader io.Reader = httpResp.Body
	if c.MaxBytesSec > 0 {
		reader = iocontrol.ThrottledReader(httpResp.Body, int(c.MaxBytesSec), time.Second)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return &Response{Request: req, Error: err, RequestStart: start, ResponseEnd: time.Now()}
	}

	return &Response{
		Request:      req,
		Status:       httpResp.StatusCode,
		Body:         buf.Bytes(),
		Headers:      httpResp.Header,
		RequestStart: start,
		ResponseEnd:  time.Now(),
	}
}

func (c *Client) emit(resp *Response) {
	select {
	case c.out <- resp:
	case <-c.ctx.Done():
	}
}
