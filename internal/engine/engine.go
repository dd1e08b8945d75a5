// Package engine implements the concurrent breadth-first crawl driver: a
// submitter goroutine that dequeues Tasks and hands fetches to the HTTP
// client, a driver that consumes responses and re-enters the operator
// dispatch table, and a local, synchronous pipeline loop that drains
// non-fetching intents without a network round trip.
package engine

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/wxpath/wxpath/internal/hooks"
	"github.com/wxpath/wxpath/internal/httpclient"
	"github.com/wxpath/wxpath/internal/intent"
	"github.com/wxpath/wxpath/internal/node"
	"github.com/wxpath/wxpath/internal/operator"
	"github.com/wxpath/wxpath/internal/parser"
	"github.com/wxpath/wxpath/internal/task"
)

// ErrorPolicy governs what happens when an XPath-runtime error occurs
// mid-pipeline. It is context-local, inheriting Engine's process default
// when the context carries no override.
type ErrorPolicy int

const (
	// PolicyIgnore silently drops the branch.
	PolicyIgnore ErrorPolicy = iota
	// PolicyLog logs the error and drops the branch.
	PolicyLog
	// PolicyCollect turns the error into a {_error, _ctx} value yielded
	// downstream instead of raising.
	PolicyCollect
	// PolicyRaise propagates the error, terminating the evaluation.
	PolicyRaise
)

type errorPolicyKey struct{}

// WithErrorPolicy returns a context carrying policy as the task-local
// override consulted by the pipeline loop.
func WithErrorPolicy(ctx context.Context, policy ErrorPolicy) context.Context {
	return context.WithValue(ctx, errorPolicyKey{}, policy)
}

func errorPolicyFrom(ctx context.Context, def ErrorPolicy) ErrorPolicy {
	if v, ok := ctx.Value(errorPolicyKey{}).(ErrorPolicy); ok {
		return v
	}
	return def
}

// Result is one value flowing out of the engine's result stream.
type Result struct {
	Value any
	Err   error
}

// Engine is one evaluation's concurrent BFS driver. The seen-URL set
// lives and dies with one evaluation, so a fresh Engine is required per
// Run.
type Engine struct {
	Client         *httpclient.Client
	Hooks          *hooks.Registry
	MaxDepth       int
	RequestTimeout time.Duration
	ErrorPolicy    ErrorPolicy
	Logger         *log.Logger

	queue    *fifo
	mu       sync.Mutex
	seen     map[string]bool
	inflight map[string]*task.Task
	pending  int

	results  chan Result
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds an Engine. client should not yet be Started; Run starts it.
func New(client *httpclient.Client, registry *hooks.Registry, maxDepth int) *Engine {
	return &Engine{
		Client:         client,
		Hooks:          registry,
		MaxDepth:       maxDepth,
		RequestTimeout: 10 * time.Second,
		ErrorPolicy:    PolicyLog,
		Logger:         log.New(os.Stderr, "engine: ", log.LstdFlags),
		queue:          newFIFO(),
		seen:           make(map[string]bool),
		inflight:       make(map[string]*task.Task),
		results:        make(chan Result, 64),
		stop:           make(chan struct{}),
	}
}

// Run seeds program as a dummy depth -1 task (so its children enter at
// depth 0) and returns the channel values are delivered on. The channel closes when
// the evaluation terminates (queue empty, no pending fetches, no
// in-flight requests) or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, program parser.Segments) (<-chan Result, error) {
	e.Client.Start()

	// The seed task has no URL and no element; its only job is to run
	// the program's first segment(s) that don't require an already-
	// loaded document (URL_LIT, URL_CRAWL, Binary) and enqueue the
	// resulting Crawl(s). Depth -1 so the first child enters at 0. This
	// must happen before the submitter/driver goroutines start: both
	// check queue/pending/inflight to decide termination, and an empty
	// queue observed before the seed has pushed anything would read as
	// "already done."
	e.runPipeline(ctx, nil, program, -1, "", e.MaxDepth)

	e.wg.Add(2)
	go e.submitter(ctx)
	go e.driver(ctx)

	go func() {
		e.wg.Wait()
		e.Client.Close()
		close(e.results)
	}()

	return e.results, nil
}

// Stop cancels the evaluation cooperatively; already-yielded results are
// preserved.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *Engine) submitter(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		default:
		}

		t, ok := e.queue.pop()
		if !ok {
			if e.checkTermination() {
				return
			}
			select {
			case <-e.queue.notify:
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}

		e.mu.Lock()
		if e.seen[t.URL] || e.inflight[t.URL] != nil {
			e.mu.Unlock()
			// Acknowledged, not submitted: already seen or in flight.
			continue
		}
		e.seen[t.URL] = true
		e.inflight[t.URL] = t
		e.pending++
		e.mu.Unlock()

		timeout := e.RequestTimeout
		req := &httpclient.Request{URL: t.URL, Timeout: timeout}
		if err := e.Client.Submit(req); err != nil {
			e.mu.Lock()
			delete(e.inflight, t.URL)
			e.pending--
			e.mu.Unlock()
			e.checkTermination()
		}
	}
}

func (e *Engine) driver(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case resp, ok := <-e.Client.Responses():
			if !ok {
				return
			}
			e.handleResponse(ctx, resp)
			if e.checkTermination() {
				return
			}
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		}
	}
}

func (e *Engine) handleResponse(ctx context.Context, resp *httpclient.Response) {
	e.mu.Lock()
	t, ok := e.inflight[resp.Request.URL]
	if ok {
		delete(e.inflight, resp.Request.URL)
		e.pending--
	}
	e.mu.Unlock()

	if !ok {
		// Spurious: no Task was in inflight for this URL at delivery
		// time. Never legitimately happens; log and continue.
		e.Logger.Printf("spurious response for %s, no matching task", resp.Request.URL)
		return
	}

	if resp.Error != nil {
		e.Logger.Printf("fetch error for %s: %v", t.URL, resp.Error)
		return
	}
	if resp.Status != 200 {
		e.Logger.Printf("non-200 status %d for %s", resp.Status, t.URL)
		return
	}
	if len(resp.Body) == 0 {
		e.Logger.Printf("empty body for %s", t.URL)
		return
	}

	fc := hooks.FetchContext{URL: t.URL, Backlink: t.Backlink, Depth: t.Depth}
	body, keep := e.Hooks.RunPostFetch(ctx, fc, resp.Body)
	if !keep {
		return
	}

	doc, err := node.Parse(bytes.NewReader(body), t.URL, t.Backlink, t.Depth, &node.ResponseMeta{
		Status:     resp.Status,
		RequestAt:  resp.RequestStart,
		ResponseAt: resp.ResponseEnd,
	})
	if err != nil {
		e.Logger.Printf("parse error for %s: %v", t.URL, err)
		return
	}

	doc, keep = e.Hooks.RunPostParse(ctx, fc, doc)
	if !keep {
		return
	}

	maxDepth := e.MaxDepth
	if t.MaxDepth > 0 {
		maxDepth = t.MaxDepth
	}

	if len(t.Segments) == 0 {
		e.yield(ctx, doc)
		return
	}
	e.runPipeline(ctx, doc, t.Segments, t.Depth, t.URL, maxDepth)
}

// runPipeline is the local, non-fetching evaluation loop: it pops
// (elem, segments) pairs from a work list seeded with (startElem,
// startSegs), dispatches the head segment, and reacts to each resulting
// intent. Crawl intents enqueue a new global Task; everything else stays
// local. Runs entirely on the calling goroutine (the driver, or the
// initial seed call from Run), so parsing, XPath evaluation, and hook
// application stay serialized.
func (e *Engine) runPipeline(ctx context.Context, startElem any, startSegs parser.Segments, depth int, backlink string, maxDepth int) {
	type work struct {
		elem  any
		segs  parser.Segments
		depth int
	}
	local := []work{{startElem, startSegs, depth}}

	for len(local) > 0 {
		w := local[0]
		local = local[1:]
		if len(w.segs) == 0 {
			continue
		}

		intents, err := operator.Dispatch(w.elem, w.segs, w.depth)
		if err != nil {
			// A missing operator handler is a programmer bug, fatal to
			// the whole evaluation; only XPath-runtime errors are
			// per-branch and policy-driven.
			var dispatchErr *operator.DispatchError
			if errors.As(err, &dispatchErr) {
				e.fail(ctx, err)
				return
			}
			e.reportError(ctx, backlink, err)
			continue
		}

		for _, in := range intents {
			switch v := in.(type) {
			case intent.Data:
				e.yield(ctx, v.Value)

			case intent.Crawl:
				nextDepth := w.depth + 1
				effectiveMax := maxDepth
				if v.MaxDepth != nil {
					effectiveMax = *v.MaxDepth
				}
				if nextDepth > effectiveMax {
					continue
				}
				t := task.New(nil, v.URL, v.Next, nextDepth, backlink)
				t.MaxDepth = effectiveMax
				e.queue.push(t)

			case intent.Process:
				local = append(local, work{v.Elem, v.Next, w.depth})

			case intent.Extract:
				local = append(local, work{v.Elem, v.Next, w.depth})

			case intent.InfiniteCrawl:
				local = append(local, work{v.Elem, v.Next, w.depth})
			}
		}
	}
}

func (e *Engine) reportError(ctx context.Context, backlink string, err error) {
	policy := errorPolicyFrom(ctx, e.ErrorPolicy)
	switch policy {
	case PolicyIgnore:
	case PolicyLog:
		e.Logger.Printf("xpath runtime error (backlink=%s): %v", backlink, err)
	case PolicyCollect:
		e.yield(ctx, map[string]any{"_error": err.Error(), "_ctx": backlink})
	case PolicyRaise:
		e.fail(ctx, err)
	}
}

// fail surfaces err as a fatal result and stops the evaluation.
func (e *Engine) fail(ctx context.Context, err error) {
	select {
	case e.results <- Result{Err: err}:
	case <-ctx.Done():
	case <-e.stop:
	}
	e.Stop()
}

func (e *Engine) yield(ctx context.Context, value any) {
	out, keep := e.Hooks.RunPostExtract(ctx, value)
	if !keep {
		return
	}
	select {
	case e.results <- Result{Value: out}:
	case <-ctx.Done():
	case <-e.stop:
	}
}

// checkTermination reports whether the evaluation is finished (queue
// empty, no pending fetches, no in-flight requests) and, if so, signals
// Stop so both goroutines exit.
func (e *Engine) checkTermination() bool {
	e.mu.Lock()
	done := e.queue.len() == 0 && e.pending == 0 && len(e.inflight) == 0
	e.mu.Unlock()
	if done {
		e.Stop()
	}
	return done
}
