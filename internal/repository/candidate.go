package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/pagination"
)

const candidateColumns = `id, content, content_hash, category, project, summary, source, session_id, status, created_at`

// CandidateRepository persists staged, unreviewed candidates.
type CandidateRepository struct {
	db dbtx
}

func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{db: pool}
}

func NewCandidateRepositoryWithTx(tx pgx.Tx) *CandidateRepository {
	return &CandidateRepository{db: tx}
}

// Create inserts the candidate unless its content hash is already
// staged. Returns false when the hash collided (nothing written).
func (r *CandidateRepository) Create(ctx context.Context, c *domain.Candidate) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO candidates (id, content, content_hash, category, project, summary, source, session_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (content_hash) DO NOTHING`,
		c.ID, c.Content, c.ContentHash, c.Category, nullableString(c.Project),
		c.Summary, c.Source, nullableString(c.SessionID), c.Status, c.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CandidateRepository) GetByID(ctx context.Context, id string) (*domain.Candidate, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	return scanCandidate(row)
}

func (r *CandidateRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM candidates WHERE content_hash = $1)`, hash,
	).Scan(&exists)
	return exists, err
}

// Delete removes the candidate row. Promotion and discard are both
// terminal, so rows never linger in a terminal status.
func (r *CandidateRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCandidateNotFound
	}
	return nil
}

// ListWithCursor pages over candidates newest first with optional
// project and category filters.
func (r *CandidateRepository) ListWithCursor(ctx context.Context, project string, category domain.Category, cursor *pagination.Cursor, limit int) ([]*domain.Candidate, string, error) {
	if limit <= 0 {
		limit = 20
	}

	var where []string
	var args []any

	if project != "" {
		args = append(args, project)
		where = append(where, `project = $`+itoa(len(args)))
	}
	if category != "" {
		args = append(args, category)
		where = append(where, `category = $`+itoa(len(args)))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		where = append(where, `(created_at, id) < ($`+itoa(len(args)-1)+`, $`+itoa(len(args))+`)`)
	}

	query := `SELECT ` + candidateColumns + ` FROM candidates`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	args = append(args, limit+1)
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var candidates []*domain.Candidate
	for rows.Next() {
		c, err := scanCandidateFromRows(rows)
		if err != nil {
			return nil, "", err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(candidates) > limit {
		candidates = candidates[:limit]
		last := candidates[len(candidates)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}
	return candidates, nextCursor, nil
}

func scanCandidate(row pgx.Row) (*domain.Candidate, error) {
	var c domain.Candidate
	var project, sessionID *string
	if err := row.Scan(
		&c.ID, &c.Content, &c.ContentHash, &c.Category, &project,
		&c.Summary, &c.Source, &sessionID, &c.Status, &c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCandidateNotFound
		}
		return nil, err
	}
	if project != nil {
		c.Project = *project
	}
	if sessionID != nil {
		c.SessionID = *sessionID
	}
	return &c, nil
}

func scanCandidateFromRows(rows pgx.Rows) (*domain.Candidate, error) {
	var c domain.Candidate
	var project, sessionID *string
	if err := rows.Scan(
		&c.ID, &c.Content, &c.ContentHash, &c.Category, &project,
		&c.Summary, &c.Source, &sessionID, &c.Status, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	if project != nil {
		c.Project = *project
	}
	if sessionID != nil {
		c.SessionID = *sessionID
	}
	return &c, nil
}
