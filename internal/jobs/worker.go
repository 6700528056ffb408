package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor is one unit of background work, invoked once per tick.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed interval until stopped. A
// processor error is logged and the loop keeps ticking; only Stop or
// context cancellation ends it.
type Worker struct {
	processor JobProcessor
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewWorker(processor JobProcessor, interval time.Duration) *Worker {
	return &Worker{
		processor: processor,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the polling loop. It blocks; callers run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	log.Printf("worker: polling every %v", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("worker: context cancelled")
			return
		case <-w.stop:
			log.Println("worker: stop requested")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("worker: pass failed: %v", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for the in-flight pass.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}
