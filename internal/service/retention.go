package service

import (
	"context"
	"math"
	"time"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/telemetry"
)

// decayWriteEpsilon keeps repeated decay passes from rewriting rows
// whose weight is already within rounding distance of the target.
const decayWriteEpsilon = 0.01

// Thresholds holds the decay ladder. Each value is the weight assigned
// once an item's last recall is older than the named horizon.
type Thresholds struct {
	D90  float64
	D180 float64
	D365 float64
}

// DefaultThresholds returns the standard ladder.
func DefaultThresholds() Thresholds {
	return Thresholds{D90: 0.5, D180: 0.2, D365: 0.1}
}

// DecayReport summarizes a decay pass. Buckets count every scanned item
// by the weight tier it landed in, whether or not a write happened.
type DecayReport struct {
	Scanned    int
	Updated    int
	Unchanged  int
	Pinned     int
	Unparsable int
	Buckets    map[string]int
}

// RetentionEngine applies recall-driven decay to the content store.
// Decay is always soft; the only irreversible operation here is
// ProcessFlaggedDeletions, and flags are set by reviewers, never by
// the engine itself.
type RetentionEngine struct {
	itemRepo   ItemRepositoryInterface
	thresholds Thresholds
	now        func() time.Time
}

func NewRetentionEngine(itemRepo ItemRepositoryInterface, thresholds Thresholds) *RetentionEngine {
	return &RetentionEngine{
		itemRepo:   itemRepo,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NewRetentionEngineWithClock creates a RetentionEngine with an
// injected clock (for testing).
func NewRetentionEngineWithClock(itemRepo ItemRepositoryInterface, thresholds Thresholds, now func() time.Time) *RetentionEngine {
	return &RetentionEngine{itemRepo: itemRepo, thresholds: thresholds, now: now}
}

// CalculateWeight returns the decay weight for an item. Starred and
// preference items always hold 1.0. Items never recalled sit at the
// deepest decay tier; everything else steps down the ladder by whole
// days since last recall.
func CalculateWeight(lastAccessed *time.Time, starred bool, category domain.Category, thresholds Thresholds, now time.Time) float64 {
	if starred || category == domain.CategoryPreference {
		return 1.0
	}
	if lastAccessed == nil {
		return thresholds.D365
	}

	days := int(now.UTC().Sub(lastAccessed.UTC()).Hours() / 24)
	switch {
	case days >= 365:
		return thresholds.D365
	case days >= 180:
		return thresholds.D180
	case days >= 90:
		return thresholds.D90
	default:
		return 1.0
	}
}

// RunDecay recomputes the weight of every item and persists only
// meaningful changes. A row whose last_accessed fails to parse is
// counted unchanged and skipped; bad data never fails the pass.
// Re-running immediately produces no writes.
func (e *RetentionEngine) RunDecay(ctx context.Context) (*DecayReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetentionEngine.RunDecay", telemetry.SpanAttributes{
		Operation: "run_decay",
	})
	defer span.End()

	rows, err := e.itemRepo.DecayRows(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	report := &DecayReport{Buckets: make(map[string]int)}

	for _, row := range rows {
		report.Scanned++

		if row.Starred || row.Category == domain.CategoryPreference {
			report.Pinned++
			report.Unchanged++
			report.Buckets[bucketLabel(1.0)]++
			continue
		}

		var lastAccessed *time.Time
		if row.LastAccessed != "" {
			ts, err := time.Parse(time.RFC3339, row.LastAccessed)
			if err != nil {
				report.Unparsable++
				report.Unchanged++
				continue
			}
			lastAccessed = &ts
		}

		target := CalculateWeight(lastAccessed, false, row.Category, e.thresholds, now)
		report.Buckets[bucketLabel(target)]++

		if math.Abs(row.Weight-target) <= decayWriteEpsilon {
			report.Unchanged++
			continue
		}
		if err := e.itemRepo.UpdateWeight(ctx, row.ID, target); err != nil {
			return nil, err
		}
		report.Updated++
	}

	return report, nil
}

func bucketLabel(weight float64) string {
	switch weight {
	case 1.0:
		return "active"
	case 0.5:
		return "d90"
	case 0.2:
		return "d180"
	case 0.1:
		return "d365"
	default:
		// Non-default thresholds still need stable labels.
		switch {
		case weight >= 1.0:
			return "active"
		case weight >= 0.5:
			return "d90"
		case weight >= 0.2:
			return "d180"
		default:
			return "d365"
		}
	}
}

// RefreshWeight resets an item to full weight and stamps the recall.
// This is the only mechanism by which decayed knowledge regains
// relevance. Superseded items stay at weight zero.
func (e *RetentionEngine) RefreshWeight(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "RetentionEngine.RefreshWeight", telemetry.SpanAttributes{
		ItemID:    id,
		Operation: "refresh_weight",
	})
	defer span.End()

	item, err := e.itemRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item.IsSuperseded() {
		return domain.ErrSupersededImmutable
	}
	return e.itemRepo.RefreshWeight(ctx, id, e.now())
}

// ProcessFlaggedDeletions hard-deletes every item a reviewer flagged
// and reports counts by category. This is the sole irreversible
// operation in the retention path.
func (e *RetentionEngine) ProcessFlaggedDeletions(ctx context.Context) (map[domain.Category]int, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetentionEngine.ProcessFlaggedDeletions", telemetry.SpanAttributes{
		Operation: "process_flagged_deletions",
	})
	defer span.End()

	return e.itemRepo.DeleteFlagged(ctx)
}

// Thresholds exposes the configured ladder, mainly for reporting.
func (e *RetentionEngine) Thresholds() Thresholds {
	return e.thresholds
}
