package hooks

import (
	"encoding/json"
	"log"
	"os"
	"sync/atomic"
)

// NDJSONWriter is an opt-in built-in PostExtract hook that
// asynchronously serializes JSON-compatible extracted values to a
// configured path via a bounded queue, dropping (and counting) when the
// queue is full, logging periodically, and flushing on shutdown. The
// queue never blocks the evaluation on a slow disk.
type NDJSONWriter struct {
	path   string
	queue  chan []byte
	done   chan struct{}
	logger *log.Logger

	dropped int64
	written int64
}

// NewNDJSONWriter opens path for append and starts the background
// flusher goroutine. Call Close to drain and release the file handle.
func NewNDJSONWriter(path string, queueSize int, logger *log.Logger) (*NDJSONWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stderr, "ndjson: ", log.LstdFlags)
	}
	w := &NDJSONWriter{
		path:   path,
		queue:  make(chan []byte, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.flush(f)
	return w, nil
}

func (*NDJSONWriter) Name() string { return "ndjson_writer" }

// PostExtract marshals value to a single JSON line and enqueues it,
// never blocking: if the queue is full the value is dropped and counted.
// The value itself always passes through unmodified so downstream
// consumers still see it.
func (w *NDJSONWriter) PostExtract(value any) (any, bool) {
	line, err := json.Marshal(value)
	if err != nil {
		w.logger.Printf("marshal error: %v", err)
		return value, true
	}
	select {
	case w.queue <- line:
	default:
		atomic.AddInt64(&w.dropped, 1)
		if d := atomic.LoadInt64(&w.dropped); d%100 == 1 {
			w.logger.Printf("queue full, dropped %d values so far", d)
		}
	}
	return value, true
}

func (w *NDJSONWriter) flush(f *os.File) {
	defer f.Close()
	for line := range w.queue {
		if _, err := f.Write(append(line, '\n')); err != nil {
			w.logger.Printf("write error: %v", err)
		}
		atomic.AddInt64(&w.written, 1)
	}
	close(w.done)
}

// Close stops accepting new values, drains the queue to disk, and
// releases the file handle.
func (w *NDJSONWriter) Close() {
	close(w.queue)
	<-w.done
}
