package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/common"
	"github.com/dmitrijs2005/ingestor/internal/logging"
	"github.com/dmitrijs2005/ingestor/internal/server/models"
)

// Pool runs a fixed set of workers that feed notifications through the
// pipeline. Notifications for different keys are independent, so workers
// share nothing but the two external stores.
type Pool struct {
	workers    int
	jobTimeout time.Duration
	pipeline   *Pipeline
	jobs       chan models.Notification
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     bool
	ctx        context.Context
	cancel     context.CancelFunc
	logger     logging.Logger
}

// NewPool creates a pool with the given number of workers and a per-job
// processing budget. Call Start to launch the goroutines.
func NewPool(workers int, jobTimeout time.Duration, pipeline *Pipeline, logger logging.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers:    workers,
		jobTimeout: jobTimeout,
		pipeline:   pipeline,
		jobs:       make(chan models.Notification, workers*2),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.With("module", "ingest_pool"),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit enqueues a notification, blocking when the buffer is full
// (backpressure toward the event source). Returns false once the pool is
// shutting down.
func (p *Pool) Submit(n models.Notification) bool {
	// The lock also serializes Submit against Shutdown so the jobs
	// channel is never closed under a pending send.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- n:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Shutdown stops accepting jobs, drains the queue, and waits for workers.
// Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With("worker_id", id)
	for n := range p.jobs {
		p.process(log, n)
	}
	log.Debug(context.Background(), "worker exiting")
}

// process runs one notification under the job timeout. Failures are logged
// for the operator and left to the event source's redelivery; a notification
// whose source is gone without a trace is terminal and only reported.
func (p *Pool) process(log logging.Logger, n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	start := time.Now()
	err := p.pipeline.Process(ctx, n)
	latency := time.Since(start)

	switch {
	case err == nil:
		log.Debug(ctx, "notification handled", "key", n.Key, "latency", latency)
	case errors.Is(err, common.ErrSourceNotFound):
		log.Error(ctx, "dropping notification, source object unrecoverable", "key", n.Key, "error", err)
	default:
		log.Error(ctx, "notification failed, leaving for redelivery", "key", n.Key, "latency", latency, "error", err)
	}
}
