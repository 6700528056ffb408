package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pbparthas/enki/internal/service"
)

// SearchRepository implements the retrieval passes for hybrid search.
// Superseded items are excluded from every pass; they remain readable
// by id but never surface in recall sets.
type SearchRepository struct {
	pool *pgxpool.Pool
}

func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

// SearchLexical runs a full-text pass over content, summary and context
// and returns raw ts_rank scores, best first.
func (r *SearchRepository) SearchLexical(ctx context.Context, query string, filters service.SearchFilters, limit int) ([]*service.RawHit, error) {
	if limit <= 0 {
		limit = 20
	}

	sql := `
		SELECT id, coalesce(project, ''), weight, created_at,
		       ts_rank(tsv, plainto_tsquery('english', $1))::float8 AS score
		FROM knowledge_items
		WHERE superseded_by IS NULL
		  AND tsv @@ plainto_tsquery('english', $1)`
	args := []any{query}

	sql, args = applyScopeFilter(sql, args, filters)
	args = append(args, limit)
	sql += ` ORDER BY score DESC LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRawHits(rows)
}

// SearchSemantic runs a cosine-similarity pass over item embeddings.
func (r *SearchRepository) SearchSemantic(ctx context.Context, embedding []float32, filters service.SearchFilters, limit int) ([]*service.RawHit, error) {
	if limit <= 0 {
		limit = 20
	}

	sql := `
		SELECT id, coalesce(project, ''), weight, created_at,
		       (1.0 / (1.0 + (embedding <=> $1)))::float8 AS score
		FROM knowledge_items
		WHERE superseded_by IS NULL
		  AND embedding IS NOT NULL`
	args := []any{pgvector.NewVector(embedding)}

	sql, args = applyScopeFilter(sql, args, filters)
	args = append(args, limit)
	sql += ` ORDER BY score DESC LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRawHits(rows)
}

func applyScopeFilter(sql string, args []any, filters service.SearchFilters) (string, []any) {
	switch filters.Scope {
	case service.ScopeProject:
		// Project scope still recalls global items; ranking boosts the
		// exact project above them.
		args = append(args, filters.Project)
		sql += ` AND (project = $` + itoa(len(args)) + ` OR project IS NULL)`
	case service.ScopeGlobal:
		sql += ` AND project IS NULL`
	}
	return sql, args
}

func scanRawHits(rows pgx.Rows) ([]*service.RawHit, error) {
	var hits []*service.RawHit
	for rows.Next() {
		var hit service.RawHit
		if err := rows.Scan(&hit.ID, &hit.Project, &hit.Weight, &hit.CreatedAt, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, &hit)
	}
	return hits, rows.Err()
}
