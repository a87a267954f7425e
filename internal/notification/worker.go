package notification

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/metrics"
)

// WorkerPool delivers notices on a fixed set of goroutines.
type WorkerPool struct {
	size      int
	jobs      chan Notice
	deliverer Deliverer
	log       *logrus.Entry
	wg        sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool creates a pool of size workers with a queue of queueSize
// pending notices.
func NewWorkerPool(size, queueSize int, deliverer Deliverer) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = size
	}
	return &WorkerPool{
		size:      size,
		jobs:      make(chan Notice, queueSize),
		deliverer: deliverer,
		log:       logger.WithComponent("notification"),
	}
}

// Start launches the worker goroutines. They stop when ctx is done.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Drain closes the queue and waits until the workers have delivered what was
// queued, or ctx is done. Later dispatches are dropped.
func (wp *WorkerPool) Drain(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
	wp.mu.Unlock()
	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.WithField("worker", id)
	defer wp.wg.Done()
	log.Debug("Worker started")
	for {
		select {
		case n, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.deliver(ctx, log, n)
		case <-ctx.Done():
			log.Debug("Worker shutting down")
			return
		}
	}
}

func (wp *WorkerPool) deliver(ctx context.Context, log *logrus.Entry, n Notice) {
	log = log.WithFields(logrus.Fields{
		"work_order_id": n.WorkOrderID,
		"level":         n.Level,
		"delivery_key":  n.DeliveryKey,
	})
	if err := wp.deliverer.Deliver(ctx, n); err != nil {
		metrics.Deliveries.WithLabelValues(metrics.DeliveryFailed).Inc()
		log.WithError(err).Warn("Escalation notice delivery failed")
		return
	}
	log.Debug("Escalation notice delivered")
}

// Dispatch queues n without blocking. It returns false, and drops the
// notice, when the queue is full or the pool has been drained.
func (wp *WorkerPool) Dispatch(n Notice) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		metrics.Deliveries.WithLabelValues(metrics.DeliveryDropped).Inc()
		wp.log.WithField("work_order_id", n.WorkOrderID).Warn("Notification pool drained, dropping escalation notice")
		return false
	}
	select {
	case wp.jobs <- n:
		return true
	default:
		metrics.Deliveries.WithLabelValues(metrics.DeliveryDropped).Inc()
		wp.log.WithField("work_order_id", n.WorkOrderID).Warn("Notification queue full, dropping escalation notice")
		return false
	}
}

// Jobs returns the queue for testing.
func (wp *WorkerPool) Jobs() chan Notice {
	return wp.jobs
}
