package service

import (
	"context"
	"errors"
	"time"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/telemetry"
)

// ReviewService is the trusted review surface: promotion, discard and
// deletion flagging. It is wired only behind reviewer-scoped routes;
// agent-scoped callers never hold a reference to it.
type ReviewService struct {
	txRunner      TxRunner
	candidateRepo CandidateRepositoryInterface
	itemRepo      ItemRepositoryInterface
	uuidGen       UUIDGenerator
	now           func() time.Time
}

func NewReviewService(
	txRunner TxRunner,
	candidateRepo CandidateRepositoryInterface,
	itemRepo ItemRepositoryInterface,
) *ReviewService {
	return &ReviewService{
		txRunner:      txRunner,
		candidateRepo: candidateRepo,
		itemRepo:      itemRepo,
		uuidGen:       &DefaultUUIDGenerator{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// NewReviewServiceWithDeps creates a ReviewService with injected UUID
// generation and clock (for testing).
func NewReviewServiceWithDeps(
	txRunner TxRunner,
	candidateRepo CandidateRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	uuidGen UUIDGenerator,
	now func() time.Time,
) *ReviewService {
	return &ReviewService{
		txRunner:      txRunner,
		candidateRepo: candidateRepo,
		itemRepo:      itemRepo,
		uuidGen:       uuidGen,
		now:           now,
	}
}

// Promote moves a candidate into the content store. The item insert,
// embedding job and candidate removal commit as one transaction, so a
// crashed promotion leaves the candidate staged and a retry is safe:
// content already promoted under the same hash adopts the existing
// item instead of erroring.
func (s *ReviewService) Promote(ctx context.Context, candidateID string) (*domain.Item, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.Promote", telemetry.SpanAttributes{
		CandidateID: candidateID,
		Operation:   "promote",
	})
	defer span.End()

	candidate, err := s.candidateRepo.GetByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := domain.NewItem(s.uuidGen.NewString(), candidate.Content, candidate.Category, candidate.Project, now)
	item.Summary = candidate.Summary
	item.PromotedAt = &now

	if err := domain.ValidateItem(item); err != nil {
		return nil, err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		created, err := repos.Items().Create(ctx, item)
		if err != nil {
			return err
		}
		if !created {
			existing, err := repos.Items().GetByHash(ctx, item.ContentHash)
			if err != nil {
				return err
			}
			item = existing
		} else {
			if err := repos.EmbeddingJobs().Create(ctx, &domain.EmbeddingJob{
				ID:        s.uuidGen.NewString(),
				ItemID:    item.ID,
				Status:    domain.EmbeddingJobStatusPending,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		return repos.Candidates().Delete(ctx, candidate.ID)
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// PromoteBatchOutput aggregates a batch promotion. The batch always
// completes; per-candidate failures never abort the remainder.
type PromoteBatchOutput struct {
	Promoted int
	Failed   int
	ItemIDs  []string
}

func (s *ReviewService) PromoteBatch(ctx context.Context, candidateIDs []string) (*PromoteBatchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.PromoteBatch", telemetry.SpanAttributes{
		Operation: "promote_batch",
	})
	defer span.End()

	out := &PromoteBatchOutput{}
	for _, id := range candidateIDs {
		item, err := s.Promote(ctx, id)
		if err != nil {
			telemetry.CaptureError(ctx, err)
			out.Failed++
			continue
		}
		out.Promoted++
		out.ItemIDs = append(out.ItemIDs, item.ID)
	}
	return out, nil
}

// Discard removes a candidate without promotion. Terminal.
func (s *ReviewService) Discard(ctx context.Context, candidateID string) error {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.Discard", telemetry.SpanAttributes{
		CandidateID: candidateID,
		Operation:   "discard",
	})
	defer span.End()

	return s.candidateRepo.Delete(ctx, candidateID)
}

// FlagForDeletion marks an item for the next flagged-deletion sweep.
// The flag is reversible until the sweep runs.
func (s *ReviewService) FlagForDeletion(ctx context.Context, itemID, reason string) (*domain.Item, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.FlagForDeletion", telemetry.SpanAttributes{
		ItemID:    itemID,
		Operation: "flag_for_deletion",
	})
	defer span.End()

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	item.FlaggedForDeletion = true
	item.FlagReason = reason
	if err := s.itemRepo.Replace(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Unflag clears a pending deletion flag.
func (s *ReviewService) Unflag(ctx context.Context, itemID string) (*domain.Item, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.Unflag", telemetry.SpanAttributes{
		ItemID:    itemID,
		Operation: "unflag",
	})
	defer span.End()

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.FlaggedForDeletion {
		return nil, domain.ErrNotFlagged
	}
	item.FlaggedForDeletion = false
	item.FlagReason = ""
	if err := s.itemRepo.Replace(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// IsNotFound reports whether err is one of the review-path not-found
// sentinels, used by batch callers to distinguish per-item misses.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrCandidateNotFound) || errors.Is(err, domain.ErrItemNotFound)
}
