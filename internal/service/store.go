package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/pagination"
	"github.com/pbparthas/enki/internal/telemetry"
)

// ItemRepositoryInterface defines the repository interface for item persistence.
type ItemRepositoryInterface interface {
	Create(ctx context.Context, item *domain.Item) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	GetByHash(ctx context.Context, hash string) (*domain.Item, error)
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Replace(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, ids []string, now time.Time) error
	UpdateWeight(ctx context.Context, id string, weight float64) error
	RefreshWeight(ctx context.Context, id string, now time.Time) error
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
	DecayRows(ctx context.Context) ([]DecayRow, error)
	DeleteFlagged(ctx context.Context) (map[domain.Category]int, error)
	ListWithCursor(ctx context.Context, project string, cursor *pagination.Cursor, limit int) ([]*domain.Item, string, error)
}

// EmbeddingJobRepositoryInterface defines the repository interface for
// embedding job persistence.
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// DecayRow is the projection of an item the retention engine iterates.
// LastAccessed stays a string so one malformed row is a per-row parse
// failure, not a failed decay pass.
type DecayRow struct {
	ID           string
	Category     domain.Category
	Starred      bool
	Weight       float64
	LastAccessed string // RFC 3339 UTC, empty when never recalled
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// ContentStore handles business logic for promoted knowledge items.
// Direct writes are the trusted path: promotion from staging goes
// through ReviewService instead.
type ContentStore struct {
	itemRepo         ItemRepositoryInterface
	embeddingJobRepo EmbeddingJobRepositoryInterface
	uuidGen          UUIDGenerator
	now              func() time.Time
}

func NewContentStore(
	itemRepo ItemRepositoryInterface,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
) *ContentStore {
	return &ContentStore{
		itemRepo:         itemRepo,
		embeddingJobRepo: embeddingJobRepo,
		uuidGen:          &DefaultUUIDGenerator{},
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// NewContentStoreWithDeps creates a ContentStore with injected UUID
// generation and clock (for testing).
func NewContentStoreWithDeps(
	itemRepo ItemRepositoryInterface,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
	uuidGen UUIDGenerator,
	now func() time.Time,
) *ContentStore {
	return &ContentStore{
		itemRepo:         itemRepo,
		embeddingJobRepo: embeddingJobRepo,
		uuidGen:          uuidGen,
		now:              now,
	}
}

// CreateItemInput represents the input for storing a knowledge item.
type CreateItemInput struct {
	Content  string
	Category domain.Category
	Project  string
	Summary  string
	Tags     []string
	Context  string
}

// CreateItemOutput reports the stored item and whether the call
// deduplicated against an existing one.
type CreateItemOutput struct {
	Item    *domain.Item
	Existed bool
}

// CreateItem stores a knowledge item directly, bypassing staging.
// Only preference items are trusted-by-construction; everything else
// must arrive through candidate promotion. Content is deduplicated by
// hash: storing the same trimmed content twice returns the existing
// item with Existed set, and never errors.
func (s *ContentStore) CreateItem(ctx context.Context, input CreateItemInput) (*CreateItemOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContentStore.CreateItem", telemetry.SpanAttributes{
		Project:   input.Project,
		Operation: "create",
	})
	defer span.End()

	if input.Category != domain.CategoryPreference {
		return nil, domain.ErrDirectCreateGated
	}

	now := s.now()
	item := domain.NewItem(s.uuidGen.NewString(), input.Content, input.Category, input.Project, now)
	item.Summary = input.Summary
	item.Tags = input.Tags
	item.Context = input.Context

	if err := domain.ValidateItem(item); err != nil {
		return nil, err
	}

	created, err := s.itemRepo.Create(ctx, item)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.itemRepo.GetByHash(ctx, item.ContentHash)
		if err != nil {
			return nil, err
		}
		return &CreateItemOutput{Item: existing, Existed: true}, nil
	}

	if err := s.queueEmbedding(ctx, item.ID, now); err != nil {
		return nil, err
	}

	return &CreateItemOutput{Item: item, Existed: false}, nil
}

// GetItem retrieves an item by ID.
func (s *ContentStore) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContentStore.GetItem", telemetry.SpanAttributes{
		ItemID:    id,
		Operation: "get",
	})
	defer span.End()

	return s.itemRepo.GetByID(ctx, id)
}

// UpdateItemInput carries field replacements for an item. Nil fields
// are left untouched; non-nil fields replace the stored value whole.
type UpdateItemInput struct {
	ItemID  string
	Content *string
	Summary *string
	Tags    *[]string
	Context *string
	Project *string
}

// UpdateItem applies value replacements to an item. Changing content
// recomputes the hash and queues a fresh embedding job. Superseded
// items reject updates.
func (s *ContentStore) UpdateItem(ctx context.Context, input UpdateItemInput) (*domain.Item, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContentStore.UpdateItem", telemetry.SpanAttributes{
		ItemID:    input.ItemID,
		Operation: "update",
	})
	defer span.End()

	item, err := s.itemRepo.GetByID(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if item.IsSuperseded() {
		return nil, domain.ErrSupersededImmutable
	}

	contentChanged := false
	if input.Content != nil && *input.Content != item.Content {
		item.Content = *input.Content
		item.ContentHash = domain.HashContent(*input.Content)
		contentChanged = true
	}
	if input.Summary != nil {
		item.Summary = *input.Summary
	}
	if input.Tags != nil {
		item.Tags = *input.Tags
	}
	if input.Context != nil {
		item.Context = *input.Context
	}
	if input.Project != nil {
		item.Project = *input.Project
	}

	if err := domain.ValidateItem(item); err != nil {
		return nil, err
	}
	if err := s.itemRepo.Replace(ctx, item); err != nil {
		return nil, err
	}

	if contentChanged {
		if err := s.queueEmbedding(ctx, item.ID, s.now()); err != nil {
			return nil, err
		}
	}

	return item, nil
}

// StarItem pins an item: starred items hold full weight through decay.
func (s *ContentStore) StarItem(ctx context.Context, id string, starred bool) (*domain.Item, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContentStore.StarItem", telemetry.SpanAttributes{
		ItemID:    id,
		Operation: "star",
	})
	defer span.End()

	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Starred = starred
	if starred {
		item.Weight = 1.0
	}
	if err := s.itemRepo.Replace(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// SupersedeItem marks old as replaced by successor. The old item keeps
// its row for lineage but drops out of every recall path.
func (s *ContentStore) SupersedeItem(ctx context.Context, oldID, newID string) (*domain.Item, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContentStore.SupersedeItem", telemetry.SpanAttributes{
		ItemID:    oldID,
		Operation: "supersede",
	})
	defer span.End()

	if oldID == newID {
		return nil, &domain.DomainError{
			Code:    domain.ErrCodeInvalidOperation,
			Message: "an item cannot supersede itself",
		}
	}
	successor, err := s.itemRepo.GetByID(ctx, newID)
	if err != nil {
		return nil, err
	}
	item, err := s.itemRepo.GetByID(ctx, oldID)
	if err != nil {
		return nil, err
	}
	item.SupersededBy = &successor.ID
	item.Weight = 0.0
	item.Starred = false
	if err := s.itemRepo.Replace(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ListItemsInput pages over stored items, optionally scoped to a project.
type ListItemsInput struct {
	Project string
	Cursor  string
	Limit   int
}

type ListItemsOutput struct {
	Items      []*domain.Item
	NextCursor string
	HasMore    bool
}

func (s *ContentStore) ListItems(ctx context.Context, input ListItemsInput) (*ListItemsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContentStore.ListItems", telemetry.SpanAttributes{
		Project:   input.Project,
		Operation: "list",
	})
	defer span.End()

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

	items, nextCursor, err := s.itemRepo.ListWithCursor(ctx, input.Project, cursor, input.Limit)
	if err != nil {
		return nil, err
	}
	return &ListItemsOutput{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    nextCursor != "",
	}, nil
}

func (s *ContentStore) queueEmbedding(ctx context.Context, itemID string, now time.Time) error {
	return s.embeddingJobRepo.Create(ctx, &domain.EmbeddingJob{
		ID:        s.uuidGen.NewString(),
		ItemID:    itemID,
		Status:    domain.EmbeddingJobStatusPending,
		CreatedAt: now,
	})
}
