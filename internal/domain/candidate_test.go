package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCandidate(t *testing.T) {
	now := time.Now().UTC()
	c := NewCandidate("cand-1", " Fix race in init ", CategoryFix, "alpha", "init guarded by sync.Once", "agent:builder", "sess-9", now)

	assert.Equal(t, CandidateStatusRaw, c.Status)
	assert.Equal(t, HashContent("Fix race in init"), c.ContentHash)
	assert.Equal(t, "agent:builder", c.Source)
	assert.Equal(t, now, c.CreatedAt)
}

func TestValidateCandidate(t *testing.T) {
	now := time.Now().UTC()

	valid := func() *Candidate {
		return NewCandidate("cand-1", "content", CategoryLearning, "", "", "hook:stop", "", now)
	}

	t.Run("valid candidate passes", func(t *testing.T) {
		assert.NoError(t, ValidateCandidate(valid()))
	})

	t.Run("nil candidate fails", func(t *testing.T) {
		assert.Error(t, ValidateCandidate(nil))
	})

	t.Run("missing source fails", func(t *testing.T) {
		c := valid()
		c.Source = ""
		assert.Error(t, ValidateCandidate(c))
	})

	t.Run("invalid category fails", func(t *testing.T) {
		c := valid()
		c.Category = "musing"
		assert.ErrorIs(t, ValidateCandidate(c), ErrInvalidCategory)
	})

	t.Run("invalid status fails", func(t *testing.T) {
		c := valid()
		c.Status = "pending"
		assert.Error(t, ValidateCandidate(c))
	})
}

func TestAPIKey_CanReview(t *testing.T) {
	reviewer := &APIKey{Role: RoleReviewer}
	agent := &APIKey{Role: RoleAgent}

	assert.True(t, reviewer.CanReview())
	assert.False(t, agent.CanReview())
}

func TestValidateAPIKey(t *testing.T) {
	key := &APIKey{
		ID:        "key-1",
		Name:      "ci",
		Role:      RoleAgent,
		KeyHash:   "abc",
		CreatedAt: time.Now().UTC(),
	}
	assert.NoError(t, ValidateAPIKey(key))

	key.Role = "superuser"
	assert.Error(t, ValidateAPIKey(key))
}
