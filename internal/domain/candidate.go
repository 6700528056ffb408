package domain

import (
	"fmt"
	"strings"
	"time"
)

// CandidateStatus represents the review status of a staged candidate.
// promoted and discarded are terminal; candidates in those states are
// removed from the staging store rather than kept around.
type CandidateStatus string

const (
	CandidateStatusRaw       CandidateStatus = "raw"
	CandidateStatusPromoted  CandidateStatus = "promoted"
	CandidateStatusDiscarded CandidateStatus = "discarded"
)

// Candidate is an unreviewed, staged knowledge unit awaiting promotion
// or discard.
type Candidate struct {
	ID          string
	Content     string
	ContentHash string
	Category    Category
	Project     string // empty = global
	Summary     string
	Source      string // provenance: agent name, hook, session transcript
	SessionID   string
	Status      CandidateStatus
	CreatedAt   time.Time
}

// NewCandidate creates a raw Candidate with its content hash computed.
func NewCandidate(id, content string, category Category, project, summary, source, sessionID string, now time.Time) *Candidate {
	return &Candidate{
		ID:          id,
		Content:     content,
		ContentHash: HashContent(content),
		Category:    category,
		Project:     project,
		Summary:     summary,
		Source:      source,
		SessionID:   sessionID,
		Status:      CandidateStatusRaw,
		CreatedAt:   now,
	}
}

// ValidateCandidate validates a Candidate instance
func ValidateCandidate(c *Candidate) error {
	if c == nil {
		return fmt.Errorf("candidate cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("candidate ID is required")
	}

	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("candidate Content is required")
	}

	if c.Source == "" {
		return fmt.Errorf("candidate Source is required")
	}

	if !IsValidCategory(c.Category) {
		return ErrInvalidCategory
	}

	if !isValidCandidateStatus(c.Status) {
		return fmt.Errorf("candidate Status is invalid: %s", c.Status)
	}

	return nil
}

func isValidCandidateStatus(s CandidateStatus) bool {
	switch s {
	case CandidateStatusRaw, CandidateStatusPromoted, CandidateStatusDiscarded:
		return true
	}
	return false
}
