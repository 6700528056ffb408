package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/pagination"
	"github.com/pbparthas/enki/internal/service"
)

const itemColumns = `id, content, content_hash, category, project, summary, tags, context,
	 weight, starred, created_at, last_accessed, superseded_by, promoted_at,
	 flagged_for_deletion, flag_reason`

// ItemRepository persists promoted knowledge items.
type ItemRepository struct {
	db dbtx
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: pool}
}

func NewItemRepositoryWithTx(tx pgx.Tx) *ItemRepository {
	return &ItemRepository{db: tx}
}

// Create inserts the item unless its content hash is already present.
// It returns false when the hash collided, in which case nothing was
// written and the caller should fetch the existing row.
func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (id, content, content_hash, category, project, summary, tags, context,
		                              weight, starred, created_at, last_accessed, superseded_by, promoted_at,
		                              flagged_for_deletion, flag_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (content_hash) DO NOTHING`,
		item.ID, item.Content, item.ContentHash, item.Category, nullableString(item.Project),
		item.Summary, item.Tags, item.Context, item.Weight, item.Starred, item.CreatedAt,
		item.LastAccessed, item.SupersededBy, item.PromotedAt, item.FlaggedForDeletion, item.FlagReason,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE id = $1`, id)
	return scanItem(row)
}

func (r *ItemRepository) GetByHash(ctx context.Context, hash string) (*domain.Item, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE content_hash = $1`, hash)
	return scanItem(row)
}

func (r *ItemRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM knowledge_items WHERE content_hash = $1)`, hash,
	).Scan(&exists)
	return exists, err
}

// Replace writes the full mutable row for the item (value replacement,
// not field-by-field mutation) so hash-follows-content holds atomically.
func (r *ItemRepository) Replace(ctx context.Context, item *domain.Item) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET content = $1, content_hash = $2, summary = $3, tags = $4, context = $5,
		     weight = $6, starred = $7, last_accessed = $8, superseded_by = $9,
		     promoted_at = $10, flagged_for_deletion = $11, flag_reason = $12
		 WHERE id = $13`,
		item.Content, item.ContentHash, item.Summary, item.Tags, item.Context,
		item.Weight, item.Starred, item.LastAccessed, item.SupersededBy,
		item.PromotedAt, item.FlaggedForDeletion, item.FlagReason, item.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM knowledge_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// Touch stamps last_accessed for every listed item. Used on each search
// result set so recall feeds back into retention.
func (r *ItemRepository) Touch(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET last_accessed = $1 WHERE id = ANY($2)`,
		now, ids,
	)
	return err
}

func (r *ItemRepository) UpdateWeight(ctx context.Context, id string, weight float64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET weight = $1 WHERE id = $2`, weight, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// RefreshWeight resets the item to full weight and stamps the recall.
func (r *ItemRepository) RefreshWeight(ctx context.Context, id string, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET weight = 1.0, last_accessed = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *ItemRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// DecayRows returns the minimal projection the retention engine
// iterates. Superseded items stay out of the projection: their weight
// is pinned at 0.0 and must never be recomputed from recall recency.
// last_accessed is surfaced as text so a malformed value in storage is
// a per-row parse failure for the engine, never a failed pass.
func (r *ItemRepository) DecayRows(ctx context.Context) ([]service.DecayRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, category, starred, weight,
		        coalesce(to_char(last_accessed AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), '')
		 FROM knowledge_items
		 WHERE superseded_by IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []service.DecayRow
	for rows.Next() {
		var row service.DecayRow
		if err := rows.Scan(&row.ID, &row.Category, &row.Starred, &row.Weight, &row.LastAccessed); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeleteFlagged removes every item flagged for deletion and reports
// counts grouped by category.
func (r *ItemRepository) DeleteFlagged(ctx context.Context) (map[domain.Category]int, error) {
	rows, err := r.db.Query(ctx,
		`DELETE FROM knowledge_items WHERE flagged_for_deletion RETURNING category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Category]int)
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		counts[category]++
	}
	return counts, rows.Err()
}

// ListWithCursor pages over items newest first, optionally scoped to a
// project, using the keyset cursor convention.
func (r *ItemRepository) ListWithCursor(ctx context.Context, project string, cursor *pagination.Cursor, limit int) ([]*domain.Item, string, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + itemColumns + ` FROM knowledge_items`
	args := []any{}
	where := []string{}

	if project != "" {
		args = append(args, project)
		where = append(where, `project = $1`)
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		where = append(where, `(created_at, id) < ($`+itoa(len(args)-1)+`, $`+itoa(len(args))+`)`)
	}
	for i, cond := range where {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}
	args = append(args, limit+1)
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	items, err := scanItemRows(rows)
	if err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}
	return items, nextCursor, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var item domain.Item
	var project, supersededBy *string
	if err := row.Scan(
		&item.ID, &item.Content, &item.ContentHash, &item.Category, &project,
		&item.Summary, &item.Tags, &item.Context, &item.Weight, &item.Starred,
		&item.CreatedAt, &item.LastAccessed, &supersededBy, &item.PromotedAt,
		&item.FlaggedForDeletion, &item.FlagReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	if project != nil {
		item.Project = *project
	}
	item.SupersededBy = supersededBy
	return &item, nil
}

func scanItemRows(rows pgx.Rows) ([]*domain.Item, error) {
	var items []*domain.Item
	for rows.Next() {
		var item domain.Item
		var project, supersededBy *string
		if err := rows.Scan(
			&item.ID, &item.Content, &item.ContentHash, &item.Category, &project,
			&item.Summary, &item.Tags, &item.Context, &item.Weight, &item.Starred,
			&item.CreatedAt, &item.LastAccessed, &supersededBy, &item.PromotedAt,
			&item.FlaggedForDeletion, &item.FlagReason,
		); err != nil {
			return nil, err
		}
		if project != nil {
			item.Project = *project
		}
		item.SupersededBy = supersededBy
		items = append(items, &item)
	}
	return items, rows.Err()
}
