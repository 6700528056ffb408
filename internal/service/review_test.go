package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeTxRepos hands the test's mocks out as transaction-bound repositories.
type fakeTxRepos struct {
	items      ItemRepositoryInterface
	candidates CandidateRepositoryInterface
	jobs       EmbeddingJobRepositoryInterface
}

func (f *fakeTxRepos) Items() ItemRepositoryInterface               { return f.items }
func (f *fakeTxRepos) Candidates() CandidateRepositoryInterface     { return f.candidates }
func (f *fakeTxRepos) EmbeddingJobs() EmbeddingJobRepositoryInterface { return f.jobs }

// fakeTxRunner runs the callback directly; a non-nil err simulates a
// transaction that fails to begin or commit.
type fakeTxRunner struct {
	repos TxRepositories
	err   error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(f.repos)
}

func TestReviewService_Promote(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newReviewFixture := func(uuids ...string) (*ReviewService, *MockCandidateRepository, *MockItemRepository, *MockEmbeddingJobRepository) {
		mockCandidateRepo := new(MockCandidateRepository)
		mockItemRepo := new(MockItemRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		runner := &fakeTxRunner{repos: &fakeTxRepos{
			items:      mockItemRepo,
			candidates: mockCandidateRepo,
			jobs:       mockJobRepo,
		}}
		svc := NewReviewServiceWithDeps(runner, mockCandidateRepo, mockItemRepo, NewMockUUIDGenerator(uuids...), fixedClock(now))
		return svc, mockCandidateRepo, mockItemRepo, mockJobRepo
	}

	t.Run("promotes candidate into the content store", func(t *testing.T) {
		svc, mockCandidateRepo, mockItemRepo, mockJobRepo := newReviewFixture("item-1", "job-1")

		candidate := domain.NewCandidate("cand-1", "goroutine leak in poller", domain.CategoryFix, "alpha", "poller fix", "agent:builder", "sess-1", now.AddDate(0, 0, -1))
		mockCandidateRepo.On("GetByID", mock.Anything, "cand-1").Return(candidate, nil)
		mockItemRepo.On("Create", mock.Anything, mock.MatchedBy(func(i *domain.Item) bool {
			return i.ID == "item-1" &&
				i.Content == candidate.Content &&
				i.ContentHash == candidate.ContentHash &&
				i.Category == domain.CategoryFix &&
				i.Project == "alpha" &&
				i.Summary == "poller fix" &&
				i.PromotedAt != nil && i.PromotedAt.Equal(now)
		})).Return(true, nil)
		mockJobRepo.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.EmbeddingJob) bool {
			return j.ID == "job-1" && j.ItemID == "item-1"
		})).Return(nil)
		mockCandidateRepo.On("Delete", mock.Anything, "cand-1").Return(nil)

		item, err := svc.Promote(ctx, "cand-1")
		require.NoError(t, err)
		assert.Equal(t, "item-1", item.ID)
		mockCandidateRepo.AssertExpectations(t)
		mockItemRepo.AssertExpectations(t)
		mockJobRepo.AssertExpectations(t)
	})

	t.Run("retry after partial promotion adopts the existing item", func(t *testing.T) {
		svc, mockCandidateRepo, mockItemRepo, mockJobRepo := newReviewFixture("item-2")

		candidate := domain.NewCandidate("cand-1", "same content", domain.CategoryFix, "", "", "agent:builder", "", now)
		existing := domain.NewItem("item-original", "same content", domain.CategoryFix, "", now.AddDate(0, 0, -1))
		mockCandidateRepo.On("GetByID", mock.Anything, "cand-1").Return(candidate, nil)
		mockItemRepo.On("Create", mock.Anything, mock.Anything).Return(false, nil)
		mockItemRepo.On("GetByHash", mock.Anything, candidate.ContentHash).Return(existing, nil)
		mockCandidateRepo.On("Delete", mock.Anything, "cand-1").Return(nil)

		item, err := svc.Promote(ctx, "cand-1")
		require.NoError(t, err)
		assert.Equal(t, "item-original", item.ID)
		mockJobRepo.AssertNotCalled(t, "Create")
	})

	t.Run("missing candidate propagates not found", func(t *testing.T) {
		svc, mockCandidateRepo, _, _ := newReviewFixture()
		mockCandidateRepo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrCandidateNotFound)

		_, err := svc.Promote(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrCandidateNotFound)
	})

	t.Run("failed transaction leaves the candidate staged", func(t *testing.T) {
		mockCandidateRepo := new(MockCandidateRepository)
		mockItemRepo := new(MockItemRepository)
		txErr := errors.New("deadlock detected")
		svc := NewReviewServiceWithDeps(&fakeTxRunner{err: txErr}, mockCandidateRepo, mockItemRepo, NewMockUUIDGenerator("item-3"), fixedClock(now))

		candidate := domain.NewCandidate("cand-1", "content", domain.CategoryFix, "", "", "agent:builder", "", now)
		mockCandidateRepo.On("GetByID", mock.Anything, "cand-1").Return(candidate, nil)

		_, err := svc.Promote(ctx, "cand-1")
		assert.ErrorIs(t, err, txErr)
		mockCandidateRepo.AssertNotCalled(t, "Delete")
	})
}

func TestReviewService_PromoteBatch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("one failure does not abort the batch", func(t *testing.T) {
		mockCandidateRepo := new(MockCandidateRepository)
		mockItemRepo := new(MockItemRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		runner := &fakeTxRunner{repos: &fakeTxRepos{
			items:      mockItemRepo,
			candidates: mockCandidateRepo,
			jobs:       mockJobRepo,
		}}
		svc := NewReviewServiceWithDeps(runner, mockCandidateRepo, mockItemRepo, NewMockUUIDGenerator("item-1", "job-1", "item-2", "job-2"), fixedClock(now))

		good1 := domain.NewCandidate("cand-1", "first", domain.CategoryFix, "", "", "agent:builder", "", now)
		good2 := domain.NewCandidate("cand-3", "third", domain.CategoryFix, "", "", "agent:builder", "", now)
		mockCandidateRepo.On("GetByID", mock.Anything, "cand-1").Return(good1, nil)
		mockCandidateRepo.On("GetByID", mock.Anything, "cand-2").Return(nil, domain.ErrCandidateNotFound)
		mockCandidateRepo.On("GetByID", mock.Anything, "cand-3").Return(good2, nil)
		mockItemRepo.On("Create", mock.Anything, mock.Anything).Return(true, nil)
		mockJobRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		mockCandidateRepo.On("Delete", mock.Anything, "cand-1").Return(nil)
		mockCandidateRepo.On("Delete", mock.Anything, "cand-3").Return(nil)

		out, err := svc.PromoteBatch(ctx, []string{"cand-1", "cand-2", "cand-3"})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Promoted)
		assert.Equal(t, 1, out.Failed)
		assert.Equal(t, []string{"item-1", "item-2"}, out.ItemIDs)
	})

	t.Run("empty batch reports zero totals", func(t *testing.T) {
		svc := NewReviewService(&fakeTxRunner{}, new(MockCandidateRepository), new(MockItemRepository))

		out, err := svc.PromoteBatch(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Promoted)
		assert.Equal(t, 0, out.Failed)
		assert.Empty(t, out.ItemIDs)
	})
}

func TestReviewService_Discard(t *testing.T) {
	ctx := context.Background()
	mockCandidateRepo := new(MockCandidateRepository)
	svc := NewReviewService(&fakeTxRunner{}, mockCandidateRepo, new(MockItemRepository))

	mockCandidateRepo.On("Delete", mock.Anything, "cand-1").Return(nil)
	require.NoError(t, svc.Discard(ctx, "cand-1"))
	mockCandidateRepo.AssertExpectations(t)
}

func TestReviewService_FlagForDeletion(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("sets flag and reason", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		svc := NewReviewService(&fakeTxRunner{}, new(MockCandidateRepository), mockItemRepo)

		item := domain.NewItem("item-1", "content", domain.CategoryFix, "", now)
		mockItemRepo.On("GetByID", mock.Anything, "item-1").Return(item, nil)
		mockItemRepo.On("Replace", mock.Anything, mock.MatchedBy(func(i *domain.Item) bool {
			return i.FlaggedForDeletion && i.FlagReason == "obsolete after refactor"
		})).Return(nil)

		flagged, err := svc.FlagForDeletion(ctx, "item-1", "obsolete after refactor")
		require.NoError(t, err)
		assert.True(t, flagged.FlaggedForDeletion)
	})

	t.Run("unflag clears a pending flag", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		svc := NewReviewService(&fakeTxRunner{}, new(MockCandidateRepository), mockItemRepo)

		item := domain.NewItem("item-1", "content", domain.CategoryFix, "", now)
		item.FlaggedForDeletion = true
		item.FlagReason = "mistake"
		mockItemRepo.On("GetByID", mock.Anything, "item-1").Return(item, nil)
		mockItemRepo.On("Replace", mock.Anything, mock.MatchedBy(func(i *domain.Item) bool {
			return !i.FlaggedForDeletion && i.FlagReason == ""
		})).Return(nil)

		unflagged, err := svc.Unflag(ctx, "item-1")
		require.NoError(t, err)
		assert.False(t, unflagged.FlaggedForDeletion)
	})

	t.Run("unflagging an unflagged item fails", func(t *testing.T) {
		mockItemRepo := new(MockItemRepository)
		svc := NewReviewService(&fakeTxRunner{}, new(MockCandidateRepository), mockItemRepo)

		item := domain.NewItem("item-1", "content", domain.CategoryFix, "", now)
		mockItemRepo.On("GetByID", mock.Anything, "item-1").Return(item, nil)

		_, err := svc.Unflag(ctx, "item-1")
		assert.ErrorIs(t, err, domain.ErrNotFlagged)
		mockItemRepo.AssertNotCalled(t, "Replace")
	})
}
