package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/maltedev/business-registry-scraper/internal/models"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

type Queue interface {
	Push(job *models.Job) error
	Pop(ctx context.Context) (*models.Job, error)
	TryPop() (*models.Job, error)
	Size() int
	Close() error
}

// InMemoryQueue is a FIFO job queue. After Close, remaining jobs can still
// be popped; Pop returns ErrQueueClosed once it is drained.
type InMemoryQueue struct {
	mu     sync.Mutex
	jobs   []*models.Job
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		jobs:   make([]*models.Job, 0),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(job *models.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop blocks until a job is available, the queue is closed and drained, or
// ctx is done.
func (q *InMemoryQueue) Pop(ctx context.Context) (*models.Job, error) {
	for {
		job, err := q.TryPop()
		if !errors.Is(err, ErrQueueEmpty) {
			return job, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		case <-q.done:
		}
	}
}

// TryPop returns the next job without blocking.
func (q *InMemoryQueue) TryPop() (*models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		return nil, ErrQueueEmpty
	}

	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	if len(q.jobs) > 0 {
		q.signal()
	}
	return job, nil
}

func (q *InMemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

type BatchQueue struct {
	queue     Queue
	batchSize int
}

func NewBatchQueue(q Queue, batchSize int) *BatchQueue {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchQueue{
		queue:     q,
		batchSize: batchSize,
	}
}

func (b *BatchQueue) PushBatch(jobs []*models.Job) error {
	for _, job := range jobs {
		if err := b.queue.Push(job); err != nil {
			return err
		}
	}
	return nil
}

// PopBatch blocks for the first job, then takes up to batchSize-1 more that
// are already waiting.
func (b *BatchQueue) PopBatch(ctx context.Context) ([]*models.Job, error) {
	return b.PopUpTo(ctx, b.batchSize)
}

// PopUpTo is PopBatch with a smaller ceiling. n is capped at the batch size.
func (b *BatchQueue) PopUpTo(ctx context.Context, n int) ([]*models.Job, error) {
	if n < 1 || n > b.batchSize {
		n = b.batchSize
	}

	first, err := b.queue.Pop(ctx)
	if err != nil {
		return nil, err
	}

	jobs := []*models.Job{first}
	for len(jobs) < n {
		job, err := b.queue.TryPop()
		if err != nil {
			break
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
