package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Category classifies a knowledge item
type Category string

const (
	CategoryDecision      Category = "decision"
	CategoryLearning      Category = "learning"
	CategoryPattern       Category = "pattern"
	CategoryFix           Category = "fix"
	CategoryPreference    Category = "preference"
	CategoryCodeKnowledge Category = "code_knowledge"
)

// Item represents one promoted unit of institutional knowledge.
// Weight is a [0,1] relevance multiplier maintained by the retention
// engine; starred and preference items are pinned at 1.0, superseded
// items at 0.0.
type Item struct {
	ID                 string
	Content            string
	ContentHash        string
	Category           Category
	Project            string // empty = global
	Summary            string
	Tags               []string
	Context            string
	Weight             float64
	Starred            bool
	CreatedAt          time.Time
	LastAccessed       *time.Time
	SupersededBy       *string
	PromotedAt         *time.Time
	FlaggedForDeletion bool
	FlagReason         string
	Embedding          []float32
}

// HashContent computes the content hash over trimmed content so that
// whitespace-only differences collapse to the same item.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// NewItem creates an Item with the store's creation defaults applied.
func NewItem(id, content string, category Category, project string, now time.Time) *Item {
	accessed := now
	return &Item{
		ID:           id,
		Content:      content,
		ContentHash:  HashContent(content),
		Category:     category,
		Project:      project,
		Weight:       1.0,
		Starred:      false,
		CreatedAt:    now,
		LastAccessed: &accessed,
	}
}

// IsPinned reports whether the item's weight is held at 1.0 regardless
// of recall recency.
func (i *Item) IsPinned() bool {
	return i.Starred || i.Category == CategoryPreference
}

// IsSuperseded reports whether the item has been replaced by another.
func (i *Item) IsSuperseded() bool {
	return i.SupersededBy != nil && *i.SupersededBy != ""
}

// ValidateItem validates an Item instance
func ValidateItem(i *Item) error {
	if i == nil {
		return fmt.Errorf("item cannot be nil")
	}

	if i.ID == "" {
		return fmt.Errorf("item ID is required")
	}

	if strings.TrimSpace(i.Content) == "" {
		return fmt.Errorf("item Content is required")
	}

	if i.ContentHash == "" {
		return fmt.Errorf("item ContentHash is required")
	}

	if !IsValidCategory(i.Category) {
		return ErrInvalidCategory
	}

	if i.Weight < 0.0 || i.Weight > 1.0 {
		return fmt.Errorf("item Weight must be in [0.0, 1.0], got %f", i.Weight)
	}

	// Supersession overrides pinning: a replaced preference or starred
	// item holds weight 0.0, not 1.0.
	if i.IsSuperseded() {
		if i.Weight != 0.0 {
			return fmt.Errorf("superseded item must have weight 0.0, got %f", i.Weight)
		}
	} else if i.IsPinned() && i.Weight != 1.0 {
		return fmt.Errorf("pinned item must have weight 1.0, got %f", i.Weight)
	}

	return nil
}

// IsValidCategory checks whether c is one of the known categories.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryDecision, CategoryLearning, CategoryPattern,
		CategoryFix, CategoryPreference, CategoryCodeKnowledge:
		return true
	}
	return false
}
