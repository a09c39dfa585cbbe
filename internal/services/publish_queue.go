package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

type jobPublisher interface {
	Publish(ctx context.Context, job PublishJob) error
}

// QueueStats counts finished publish jobs
type QueueStats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Pending   int   `json:"pending"`
}

// PublishQueue runs publish jobs on a fixed pool of workers after the
// request that produced them has been answered.
type PublishQueue struct {
	publisher  jobPublisher
	jobs       chan PublishJob
	jobTimeout time.Duration

	// quit is closed by Close and releases enqueuers waiting for space
	quit    chan struct{}
	mu      sync.RWMutex
	closed  bool
	senders sync.WaitGroup
	wg      sync.WaitGroup

	published atomic.Int64
	failed    atomic.Int64
}

// NewPublishQueue starts workers goroutines consuming a queue of size jobs
func NewPublishQueue(publisher jobPublisher, workers, size int, jobTimeout time.Duration) *PublishQueue {
	if workers <= 0 {
		workers = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	q := &PublishQueue{
		publisher:  publisher,
		jobs:       make(chan PublishJob, size),
		jobTimeout: jobTimeout,
		quit:       make(chan struct{}),
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue schedules job, waiting for queue space until ctx is done or the
// queue is closed
func (q *PublishQueue) Enqueue(ctx context.Context, job PublishJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.RUnlock()
	defer q.senders.Done()

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrQueueClosed
	}
}

func (q *PublishQueue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(job)
	}
}

func (q *PublishQueue) run(job PublishJob) {
	ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
	defer cancel()

	if err := q.publisher.Publish(ctx, job); err != nil {
		q.failed.Add(1)
		log.Error().
			Err(err).
			Str("img_uuid", job.ImageID).
			Str("key", job.Key).
			Msg("Failed to publish image")
		return
	}
	q.published.Add(1)
}

// Stats reports how many jobs have finished and how many are waiting
func (q *PublishQueue) Stats() QueueStats {
	return QueueStats{
		Published: q.published.Load(),
		Failed:    q.failed.Load(),
		Pending:   len(q.jobs),
	}
}

// Close stops accepting jobs and waits for queued ones to finish or ctx to
// end. Enqueuers blocked on a full queue are released with ErrQueueClosed.
func (q *PublishQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	first := !q.closed
	if first {
		q.closed = true
		close(q.quit)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if first {
			// no sender can touch jobs once they have all returned
			q.senders.Wait()
			close(q.jobs)
		}
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Warn().Int("pending", len(q.jobs)).Msg("Publish queue drain interrupted")
		return ctx.Err()
	}
}
