// Package ingest provides the bounded in-memory queue that decouples
// message sends from link preview enrichment. Producers enqueue tasks
// from the send path without blocking; workers drain the queue, fetch
// the page and patch the message.
package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Task describes a single enrichment job: fetch URL and attach the
// extracted metadata to MessageID. URL may be backed by a pooled
// ByteBuffer; consumers must call Item.Done() when finished.
type Task struct {
	MessageID string
	// URL holds the raw link bytes for the task (may be nil).
	URL []byte
	// TS is the enqueue timestamp (nanoseconds), informational only.
	TS int64
	// EnqSeq is a monotonic enqueue sequence assigned when the task is
	// accepted into the queue.
	EnqSeq uint64
}

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("ingest queue full")

// Item wraps a Task and owns a pooled ByteBuffer if one was used.
// Consumers MUST call Done() exactly once after processing the item to
// return pooled resources.
type Item struct {
	Task *Task

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases internal pooled resources back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) > maxPooledBuffer {
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		if it.Task != nil {
			it.Task.URL = nil
			taskPool.Put(it.Task)
			it.Task = nil
		}
	})
}

// Queue is a bounded in-memory queue. It is safe for concurrent
// producers. Consumers should range over Out() or use RunWorker.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

var taskPool = sync.Pool{New: func() any { return &Task{} }}

// maxPooledBuffer controls the largest buffer that will be returned to
// the pool. Larger buffers are dropped so GC can reclaim them.
var maxPooledBuffer = 64 * 1024

var enqSeq uint64

// NewQueue creates a bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out returns a read-only channel consumers can range over. Do not close
// it from callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

// TryEnqueue enqueues an enrichment task without blocking, copying the
// URL into a pooled buffer. Returns ErrQueueFull when at capacity.
func (q *Queue) TryEnqueue(messageID, url string, ts int64) error {
	task := taskPool.Get().(*Task)
	task.MessageID = messageID
	task.TS = ts
	task.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if url != "" {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], url...)
		task.URL = bb.B[:len(url)]
	} else {
		task.URL = nil
	}

	it := &Item{Task: task, buf: bb}

	select {
	case q.ch <- it:
		return nil
	default:
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		task.URL = nil
		taskPool.Put(task)
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Enqueue blocks until space is available or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, messageID, url string, ts int64) error {
	task := taskPool.Get().(*Task)
	task.MessageID = messageID
	task.TS = ts
	task.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if url != "" {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], url...)
		task.URL = bb.B[:len(url)]
	} else {
		task.URL = nil
	}
	it := &Item{Task: task, buf: bb}

	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		task.URL = nil
		taskPool.Put(task)
		atomic.AddUint64(&q.dropped, 1)
		return ctx.Err()
	}
}

// CloseAndDrain closes the queue channel and drains remaining items,
// releasing their resources.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// RunWorker runs a worker loop that invokes handler for each dequeued
// Task. Item.Done() is called even if handler returns an error. The
// worker exits when stop is closed or the queue is closed.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Task) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				_ = handler(it.Task)
			}(it)
		case <-stop:
			return
		}
	}
}

// Len returns the current number of queued items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the number of tasks rejected due to a full queue or
// context cancellation during enqueue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
