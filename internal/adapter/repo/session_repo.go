package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/sqlinline"
)

// SessionRepositoryPG implements domain.SessionRepository backed by
// PostgreSQL.
type SessionRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewSessionRepository creates a new SessionRepositoryPG.
func NewSessionRepository(sql infra.SQLExecutor) *SessionRepositoryPG {
	return &SessionRepositoryPG{sql: sql}
}

// Persist inserts or updates the session record and returns its id.
func (r *SessionRepositoryPG) Persist(ctx context.Context, record *domain.SessionRecord) (string, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertSession,
		record.ID,
		record.UserID,
		record.BrandName,
		record.ProductName,
		record.Market,
		record.Locale,
		record.State,
		nullableJSON(record.Strategy),
		nullableJSON(record.Variations),
	)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// Get fetches one session record by id.
func (r *SessionRepositoryPG) Get(ctx context.Context, id string) (*domain.SessionRecord, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectSessionByID, id)
	var record domain.SessionRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.BrandName,
		&record.ProductName,
		&record.Market,
		&record.Locale,
		&record.State,
		&record.Strategy,
		&record.Variations,
		&record.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// History lists the user's persisted sessions, newest first.
func (r *SessionRepositoryPG) History(ctx context.Context, userID string, limit, offset int) ([]domain.SessionSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListSessionsByUser, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.SessionSummary
	for rows.Next() {
		var s domain.SessionSummary
		if err := rows.Scan(&s.ID, &s.BrandName, &s.ProductName, &s.Market, &s.State, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Delete removes a persisted session.
func (r *SessionRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteSession, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
