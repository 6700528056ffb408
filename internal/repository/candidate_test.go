//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCandidate(content string, category domain.Category, project string) *domain.Candidate {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.NewCandidate(uuid.NewString(), content, category, project, "", "agent:builder", "", now)
}

func TestCandidateRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewCandidateRepository(pool)

	t.Run("creates and retrieves a candidate", func(t *testing.T) {
		candidate := newTestCandidate("stage this learning", domain.CategoryLearning, "alpha")
		candidate.Summary = "a staged learning"
		candidate.SessionID = "sess-42"

		created, err := repo.Create(ctx, candidate)
		require.NoError(t, err)
		assert.True(t, created)

		got, err := repo.GetByID(ctx, candidate.ID)
		require.NoError(t, err)
		assert.Equal(t, candidate.Content, got.Content)
		assert.Equal(t, domain.CandidateStatusRaw, got.Status)
		assert.Equal(t, "sess-42", got.SessionID)
		assert.Equal(t, "agent:builder", got.Source)
	})

	t.Run("duplicate content hash writes nothing", func(t *testing.T) {
		first := newTestCandidate("duplicate staging content", domain.CategoryFix, "")
		created, err := repo.Create(ctx, first)
		require.NoError(t, err)
		require.True(t, created)

		second := newTestCandidate("duplicate staging content", domain.CategoryFix, "")
		created, err = repo.Create(ctx, second)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrCandidateNotFound)
	})
}

func TestCandidateRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewCandidateRepository(pool)

	candidate := newTestCandidate("short lived candidate", domain.CategoryFix, "")
	_, err := repo.Create(ctx, candidate)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, candidate.ID))
	_, err = repo.GetByID(ctx, candidate.ID)
	assert.ErrorIs(t, err, domain.ErrCandidateNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, candidate.ID), domain.ErrCandidateNotFound)
}

func TestCandidateRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewCandidateRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		c := domain.NewCandidate(uuid.NewString(), "alpha fix "+uuid.NewString(), domain.CategoryFix, "alpha", "", "agent:builder", "", base.Add(time.Duration(i)*time.Minute))
		_, err := repo.Create(ctx, c)
		require.NoError(t, err)
	}
	learning := domain.NewCandidate(uuid.NewString(), "alpha learning", domain.CategoryLearning, "alpha", "", "agent:builder", "", base)
	_, err := repo.Create(ctx, learning)
	require.NoError(t, err)
	betaFix := domain.NewCandidate(uuid.NewString(), "beta fix", domain.CategoryFix, "beta", "", "agent:builder", "", base)
	_, err = repo.Create(ctx, betaFix)
	require.NoError(t, err)

	t.Run("filters by project", func(t *testing.T) {
		got, _, err := repo.ListWithCursor(ctx, "alpha", "", nil, 20)
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("filters by project and category", func(t *testing.T) {
		got, _, err := repo.ListWithCursor(ctx, "alpha", domain.CategoryFix, nil, 20)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("pages newest first", func(t *testing.T) {
		page, cursor, err := repo.ListWithCursor(ctx, "alpha", domain.CategoryFix, nil, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.NotEmpty(t, cursor)
		assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt) || page[0].CreatedAt.Equal(page[1].CreatedAt))
	})
}
