package consumer

import (
	"context"
	"errors"

	"github.com/maltedev/business-registry-scraper/internal/queue"
)

// MemorySource feeds jobs from an in-process queue. Closing the queue ends
// Run once the remaining jobs are done.
type MemorySource struct {
	batch *queue.BatchQueue
}

func NewMemorySource(q queue.Queue, batchSize int) *MemorySource {
	return &MemorySource{batch: queue.NewBatchQueue(q, batchSize)}
}

func (s *MemorySource) Fetch(ctx context.Context, max int) ([]Delivery, error) {
	jobs, err := s.batch.PopUpTo(ctx, max)
	if errors.Is(err, queue.ErrQueueClosed) {
		return nil, ErrSourceClosed
	}
	if err != nil {
		return nil, err
	}

	deliveries := make([]Delivery, 0, len(jobs))
	for _, job := range jobs {
		deliveries = append(deliveries, Delivery{MessageID: job.ID, Job: *job})
	}
	return deliveries, nil
}
