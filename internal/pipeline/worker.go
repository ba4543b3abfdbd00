package pipeline

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	// ProcessNext runs one due job, reporting whether any work was found.
	ProcessNext(ctx context.Context) (bool, error)
}

// WorkerPool runs a fixed number of polling workers. Each worker drains due
// jobs back to back and only sleeps for the poll interval once the queue is
// empty, so a backlog is worked off at full concurrency.
type WorkerPool struct {
	processor    JobProcessor
	workers      int
	pollInterval time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool instance
func NewWorkerPool(processor JobProcessor, workers int, pollInterval time.Duration) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &WorkerPool{
		processor:    processor,
		workers:      workers,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the workers and returns immediately.
func (p *WorkerPool) Start(ctx context.Context) {
	log.Printf("Worker pool started: %d workers, poll interval %v", p.workers, p.pollInterval)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
}

func (p *WorkerPool) loop(ctx context.Context, id int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d stopped: context cancelled", id)
			return
		case <-p.stopChan:
			log.Printf("Worker %d stopped: stop signal received", id)
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain processes jobs until none are due or shutdown begins.
func (p *WorkerPool) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		default:
		}

		processed, err := p.processor.ProcessNext(ctx)
		if err != nil {
			log.Printf("Error processing jobs: %v", err)
			return
		}
		if !processed {
			return
		}
	}
}

// Stop signals all workers and waits for in-flight jobs to finish.
func (p *WorkerPool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
	log.Println("Worker pool shutdown complete")
}
