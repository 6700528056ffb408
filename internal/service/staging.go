package service

import (
	"context"
	"time"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/pagination"
	"github.com/pbparthas/enki/internal/telemetry"
)

// CandidateRepositoryInterface defines the repository interface for
// staged candidate persistence.
type CandidateRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Candidate) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Candidate, error)
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Delete(ctx context.Context, id string) error
	ListWithCursor(ctx context.Context, project string, category domain.Category, cursor *pagination.Cursor, limit int) ([]*domain.Candidate, string, error)
}

// StagingStore handles the untrusted intake tier. Any producer may add
// candidates; only the review surface moves them onward.
type StagingStore struct {
	candidateRepo CandidateRepositoryInterface
	itemRepo      ItemRepositoryInterface
	uuidGen       UUIDGenerator
	now           func() time.Time
}

func NewStagingStore(
	candidateRepo CandidateRepositoryInterface,
	itemRepo ItemRepositoryInterface,
) *StagingStore {
	return &StagingStore{
		candidateRepo: candidateRepo,
		itemRepo:      itemRepo,
		uuidGen:       &DefaultUUIDGenerator{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// NewStagingStoreWithDeps creates a StagingStore with injected UUID
// generation and clock (for testing).
func NewStagingStoreWithDeps(
	candidateRepo CandidateRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	uuidGen UUIDGenerator,
	now func() time.Time,
) *StagingStore {
	return &StagingStore{
		candidateRepo: candidateRepo,
		itemRepo:      itemRepo,
		uuidGen:       uuidGen,
		now:           now,
	}
}

// AddCandidateInput represents the input for staging a candidate.
type AddCandidateInput struct {
	Content   string
	Category  domain.Category
	Project   string
	Summary   string
	Source    string
	SessionID string
}

// AddCandidate stages a candidate for review. Content already present
// in staging or in the content store is rejected with
// domain.ErrDuplicateContent before any insert.
func (s *StagingStore) AddCandidate(ctx context.Context, input AddCandidateInput) (*domain.Candidate, error) {
	ctx, span := telemetry.StartSpan(ctx, "StagingStore.AddCandidate", telemetry.SpanAttributes{
		Project:   input.Project,
		Operation: "add_candidate",
	})
	defer span.End()

	candidate := domain.NewCandidate(
		s.uuidGen.NewString(),
		input.Content,
		input.Category,
		input.Project,
		input.Summary,
		input.Source,
		input.SessionID,
		s.now(),
	)

	if err := domain.ValidateCandidate(candidate); err != nil {
		return nil, err
	}

	// The item-store check catches content already promoted; the insert
	// itself is the race-free staging check.
	promoted, err := s.itemRepo.ExistsByHash(ctx, candidate.ContentHash)
	if err != nil {
		return nil, err
	}
	if promoted {
		return nil, domain.ErrDuplicateContent
	}

	created, err := s.candidateRepo.Create(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.ErrDuplicateContent
	}
	return candidate, nil
}

// GetCandidate retrieves a staged candidate by ID.
func (s *StagingStore) GetCandidate(ctx context.Context, id string) (*domain.Candidate, error) {
	ctx, span := telemetry.StartSpan(ctx, "StagingStore.GetCandidate", telemetry.SpanAttributes{
		CandidateID: id,
		Operation:   "get_candidate",
	})
	defer span.End()

	return s.candidateRepo.GetByID(ctx, id)
}

// ListCandidatesInput pages over staged candidates, newest first.
type ListCandidatesInput struct {
	Project  string
	Category domain.Category
	Cursor   string
	Limit    int
}

type ListCandidatesOutput struct {
	Candidates []*domain.Candidate
	NextCursor string
	HasMore    bool
}

func (s *StagingStore) ListCandidates(ctx context.Context, input ListCandidatesInput) (*ListCandidatesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "StagingStore.ListCandidates", telemetry.SpanAttributes{
		Project:   input.Project,
		Operation: "list_candidates",
	})
	defer span.End()

	if input.Category != "" && !domain.IsValidCategory(input.Category) {
		return nil, domain.ErrInvalidCategory
	}

	var cursor *pagination.Cursor
	if input.Cursor != "" {
		decoded, err := pagination.DecodeCursor(input.Cursor)
		if err != nil {
			return nil, &domain.DomainError{
				Code:    domain.ErrCodeValidation,
				Message: "invalid cursor",
				Err:     err,
			}
		}
		cursor = decoded
	}

	candidates, nextCursor, err := s.candidateRepo.ListWithCursor(ctx, input.Project, input.Category, cursor, input.Limit)
	if err != nil {
		return nil, err
	}
	return &ListCandidatesOutput{
		Candidates: candidates,
		NextCursor: nextCursor,
		HasMore:    nextCursor != "",
	}, nil
}
