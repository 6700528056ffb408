//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/service"
	"github.com/pbparthas/enki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxRunner(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	items := NewItemRepository(pool)
	candidates := NewCandidateRepository(pool)

	t.Run("commit makes all writes visible", func(t *testing.T) {
		item := newTestItem("promoted through a transaction", domain.CategoryDecision, "alpha")
		candidate := newTestCandidate("staged and consumed", domain.CategoryFix, "alpha")
		created, err := candidates.Create(ctx, candidate)
		require.NoError(t, err)
		require.True(t, created)

		err = runner.WithTx(ctx, func(repos service.TxRepositories) error {
			createdItem, err := repos.Items().Create(ctx, item)
			if err != nil {
				return err
			}
			if !createdItem {
				return errors.New("expected item insert")
			}
			return repos.Candidates().Delete(ctx, candidate.ID)
		})
		require.NoError(t, err)

		got, err := items.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.Content, got.Content)

		_, err = candidates.GetByID(ctx, candidate.ID)
		assert.ErrorIs(t, err, domain.ErrCandidateNotFound)
	})

	t.Run("error rolls back every write", func(t *testing.T) {
		item := newTestItem("never committed", domain.CategoryLearning, "alpha")
		candidate := newTestCandidate("survives the rollback", domain.CategoryFix, "alpha")
		created, err := candidates.Create(ctx, candidate)
		require.NoError(t, err)
		require.True(t, created)

		boom := errors.New("promotion failed")
		err = runner.WithTx(ctx, func(repos service.TxRepositories) error {
			if _, err := repos.Items().Create(ctx, item); err != nil {
				return err
			}
			if err := repos.Candidates().Delete(ctx, candidate.ID); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = items.GetByID(ctx, item.ID)
		assert.ErrorIs(t, err, domain.ErrItemNotFound, "item insert rolled back")

		_, err = candidates.GetByID(ctx, candidate.ID)
		require.NoError(t, err, "candidate delete rolled back")
	})
}
