//go:build integration

package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPIKey(name string, role domain.APIKeyRole) *domain.APIKey {
	hash := sha256.Sum256([]byte(uuid.NewString()))
	return &domain.APIKey{
		ID:        uuid.NewString(),
		Name:      name,
		KeyHash:   hex.EncodeToString(hash[:]),
		Role:      role,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAPIKeyRepository(pool)

	t.Run("creates and retrieves by hash", func(t *testing.T) {
		key := newTestAPIKey("agent-key", domain.RoleAgent)
		require.NoError(t, repo.Create(ctx, key))

		got, err := repo.GetByHash(ctx, key.KeyHash)
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
		assert.Equal(t, domain.RoleAgent, got.Role)
		assert.False(t, got.IsRevoked())
	})

	t.Run("unknown hash is not found", func(t *testing.T) {
		_, err := repo.GetByHash(ctx, "deadbeef")
		assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
	})

	t.Run("counts only active keys per role", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		reviewer := newTestAPIKey("reviewer-key", domain.RoleReviewer)
		require.NoError(t, repo.Create(ctx, reviewer))
		agent := newTestAPIKey("agent-key", domain.RoleAgent)
		require.NoError(t, repo.Create(ctx, agent))

		count, err := repo.CountByRole(ctx, domain.RoleReviewer)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, repo.Revoke(ctx, reviewer.ID))
		count, err = repo.CountByRole(ctx, domain.RoleReviewer)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("revoke is one-shot", func(t *testing.T) {
		key := newTestAPIKey("revocable", domain.RoleAgent)
		require.NoError(t, repo.Create(ctx, key))

		require.NoError(t, repo.Revoke(ctx, key.ID))
		got, err := repo.GetByID(ctx, key.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRevoked())

		assert.ErrorIs(t, repo.Revoke(ctx, key.ID), domain.ErrAPIKeyNotFound)
	})

	t.Run("list returns newest first", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		older := newTestAPIKey("older", domain.RoleAgent)
		older.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
		require.NoError(t, repo.Create(ctx, older))
		newer := newTestAPIKey("newer", domain.RoleAgent)
		require.NoError(t, repo.Create(ctx, newer))

		keys, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, "newer", keys[0].Name)
		assert.Equal(t, "older", keys[1].Name)
	})
}
