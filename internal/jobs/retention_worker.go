package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/pbparthas/enki/internal/service"
)

// DecayRunner defines the interface for running a decay pass
type DecayRunner interface {
	RunDecay(ctx context.Context) (*service.DecayReport, error)
}

// RetentionWorker drives the scheduled decay pass. It shares the
// Worker polling loop with the embedding pipeline; the interval is
// just much longer.
type RetentionWorker struct {
	engine DecayRunner
}

func NewRetentionWorker(engine DecayRunner) *RetentionWorker {
	return &RetentionWorker{engine: engine}
}

// ProcessJobs implements the JobProcessor interface
func (w *RetentionWorker) ProcessJobs(ctx context.Context) error {
	report, err := w.engine.RunDecay(ctx)
	if err != nil {
		return fmt.Errorf("decay pass failed: %w", err)
	}

	log.Printf("Decay pass: scanned=%d updated=%d unchanged=%d pinned=%d unparsable=%d",
		report.Scanned, report.Updated, report.Unchanged, report.Pinned, report.Unparsable)
	return nil
}
