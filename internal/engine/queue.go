package engine

import (
	"sync"

	"github.com/wxpath/wxpath/internal/task"
)

// fifo is the engine's pending-Task queue. Mutex-guarded so the driver
// can push new Crawl-derived tasks concurrently with the submitter
// draining them; notify wakes an idle submitter without busy-waiting.
type fifo struct {
	mu     sync.Mutex
	items  []*task.Task
	notify chan struct{}
}

func newFIFO() *fifo {
	return &fifo{notify: make(chan struct{}, 1)}
}

func (q *fifo) push(t *task.Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.signal()
}

func (q *fifo) pop() (*task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

func (q *fifo) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *fifo) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
