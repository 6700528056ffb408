package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/telemetry"
)

const (
	// Oversampling leaves room for threshold filtering and re-ranking.
	candidateMultiplier = 3

	projectExactBoost  = 1.5
	projectGlobalBoost = 1.2

	defaultMinScoreFraction = 0.3
)

// Scope selects which items a search considers.
type Scope string

const (
	ScopeAll     Scope = "all"     // no project filter
	ScopeProject Scope = "project" // only the requested project
	ScopeGlobal  Scope = "global"  // only unscoped items
)

// SearchFilters narrows the retrieval passes.
type SearchFilters struct {
	Scope   Scope
	Project string
}

// RawHit is one retrieval-pass result before fusion and ranking.
type RawHit struct {
	ID        string
	Project   string // empty = global
	Weight    float64
	CreatedAt time.Time
	Score     float64
}

// SearchResult is a ranked item with its scoring breakdown.
type SearchResult struct {
	Item       *domain.Item
	RawScore   float64
	FinalScore float64
}

// SearchRepositoryInterface defines the retrieval passes backing
// hybrid search.
type SearchRepositoryInterface interface {
	SearchLexical(ctx context.Context, query string, filters SearchFilters, limit int) ([]*RawHit, error)
	SearchSemantic(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]*RawHit, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SearchService ranks content-store items for a query by fusing a
// lexical pass with an optional semantic pass.
type SearchService struct {
	searchRepo       SearchRepositoryInterface
	itemRepo         ItemRepositoryInterface
	embedder         EmbeddingClient // nil disables the semantic pass
	minScoreFraction float64
	now              func() time.Time
}

func NewSearchService(
	searchRepo SearchRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	embedder EmbeddingClient,
	minScoreFraction float64,
) *SearchService {
	if minScoreFraction <= 0 {
		minScoreFraction = defaultMinScoreFraction
	}
	return &SearchService{
		searchRepo:       searchRepo,
		itemRepo:         itemRepo,
		embedder:         embedder,
		minScoreFraction: minScoreFraction,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// NewSearchServiceWithClock creates a SearchService with an injected
// clock (for testing).
func NewSearchServiceWithClock(
	searchRepo SearchRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	embedder EmbeddingClient,
	minScoreFraction float64,
	now func() time.Time,
) *SearchService {
	s := NewSearchService(searchRepo, itemRepo, embedder, minScoreFraction)
	s.now = now
	return s
}

// SearchInput describes one search request.
type SearchInput struct {
	Query    string
	Project  string
	Scope    Scope
	Limit    int
	MinScore float64 // optional absolute floor on final score
}

type SearchOutput struct {
	Results []*SearchResult
}

// Search runs the ranked hybrid retrieval pipeline and touches the
// returned items so recall feeds back into decay. An empty query
// returns an empty result without touching anything; a failed
// embedding pass degrades to lexical-only.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Project:   input.Project,
		Operation: "search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return &SearchOutput{Results: []*SearchResult{}}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	filters := normalizeFilters(input.Scope, input.Project)
	oversample := limit * candidateMultiplier

	lexical, err := s.searchRepo.SearchLexical(ctx, query, filters, oversample)
	if err != nil {
		return nil, err
	}

	merged := mergeByID(lexical, s.semanticPass(ctx, query, filters, oversample))
	if len(merged) == 0 {
		return &SearchOutput{Results: []*SearchResult{}}, nil
	}

	// Adaptive threshold: raw scores are not comparable across
	// queries, so the floor is relative to this query's best match.
	threshold := s.minScoreFraction * maxAbsScore(merged)

	type scored struct {
		hit   *RawHit
		final float64
	}
	var kept []scored
	for _, hit := range merged {
		raw := math.Abs(hit.Score)
		if raw < threshold {
			continue
		}
		final := raw * projectBoost(hit.Project, input.Project) * hit.Weight
		if input.MinScore > 0 && final < input.MinScore {
			continue
		}
		kept = append(kept, scored{hit: hit, final: final})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].final != kept[j].final {
			return kept[i].final > kept[j].final
		}
		return kept[i].hit.CreatedAt.After(kept[j].hit.CreatedAt)
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}

	results := make([]*SearchResult, 0, len(kept))
	ids := make([]string, 0, len(kept))
	for _, sc := range kept {
		item, err := s.itemRepo.GetByID(ctx, sc.hit.ID)
		if err != nil {
			// Deleted between retrieval and hydration.
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		results = append(results, &SearchResult{
			Item:       item,
			RawScore:   math.Abs(sc.hit.Score),
			FinalScore: sc.final,
		})
		ids = append(ids, item.ID)
	}

	if len(ids) > 0 {
		if err := s.itemRepo.Touch(ctx, ids, s.now()); err != nil {
			return nil, err
		}
	}

	return &SearchOutput{Results: results}, nil
}

// semanticPass returns the semantic hits, or nothing when the embedder
// is absent or failing. Search never fails on the semantic side.
func (s *SearchService) semanticPass(ctx context.Context, query string, filters SearchFilters, limit int) []*RawHit {
	if s.embedder == nil {
		return nil
	}
	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return nil
	}
	hits, err := s.searchRepo.SearchSemantic(ctx, embedding, filters, limit)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return nil
	}
	return hits
}

func normalizeFilters(scope Scope, project string) SearchFilters {
	switch scope {
	case ScopeProject, ScopeGlobal:
	default:
		scope = ScopeAll
	}
	if scope == ScopeProject && project == "" {
		scope = ScopeAll
	}
	return SearchFilters{Scope: scope, Project: project}
}

// mergeByID fuses the two retrieval passes, keeping the larger
// absolute raw score when both modalities return the same item.
func mergeByID(lexical, semantic []*RawHit) []*RawHit {
	byID := make(map[string]*RawHit, len(lexical)+len(semantic))
	order := make([]string, 0, len(lexical)+len(semantic))

	add := func(hit *RawHit) {
		existing, ok := byID[hit.ID]
		if !ok {
			byID[hit.ID] = hit
			order = append(order, hit.ID)
			return
		}
		if math.Abs(hit.Score) > math.Abs(existing.Score) {
			byID[hit.ID] = hit
		}
	}
	for _, hit := range lexical {
		add(hit)
	}
	for _, hit := range semantic {
		add(hit)
	}

	merged := make([]*RawHit, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	return merged
}

func maxAbsScore(hits []*RawHit) float64 {
	max := 0.0
	for _, hit := range hits {
		if abs := math.Abs(hit.Score); abs > max {
			max = abs
		}
	}
	return max
}

func projectBoost(itemProject, requestedProject string) float64 {
	if requestedProject == "" {
		return 1.0
	}
	if itemProject == requestedProject {
		return projectExactBoost
	}
	if itemProject == "" {
		return projectGlobalBoost
	}
	return 1.0
}
