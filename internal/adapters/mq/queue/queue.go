// Package queue is the bounded hand-off between sample ingestion and the
// classification worker. Enqueue never blocks: a full queue drops the sample.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/logtech/roadsafe/internal/domain/classifier"
	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/metrics"
)

// DefaultCapacity is the default number of buffered samples.
const DefaultCapacity = 4096

// Item is a sample stamped with the monitoring context current at receipt.
type Item struct {
	Sample     model.MotionSample
	Context    classifier.Context
	ReceivedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an item or returns ErrFull or ErrClosed without blocking.
	Enqueue(ctx context.Context, it Item) error

	// Dequeue returns a channel of items, closed once the queue is closed
	// and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan Item

	Len(ctx context.Context) int
	Cap() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Item
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Item, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, it Item) error { //nolint:gocritic // hugeParam: Item is passed by value through the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordError("queue", "closed")
		return ErrClosed
	}
	select {
	case q.items <- it:
		q.publish()
		return nil
	case <-ctx.Done():
		metrics.RecordError("queue", "context_cancelled")
		return ctx.Err()
	default:
		metrics.RecordError("queue", "queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for {
			select {
			case it, ok := <-q.items:
				if !ok {
					return
				}
				select {
				case out <- it:
					q.publish()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting items. Buffered items are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) publish() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
