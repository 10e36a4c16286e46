package database

import (
	"context"
	"database/sql"
	"fmt"

	"seat_monitor_bot/internal/domain/watch"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrWatchNotFound = fmt.Errorf("watch request not found")

type PostgresWatchRepository struct {
	db *sql.DB
}

func NewPostgresWatchRepository(db *sql.DB) *PostgresWatchRepository {
	return &PostgresWatchRepository{db: db}
}

func (r *PostgresWatchRepository) Create(ctx context.Context, req *watch.Request) error {
	query := `INSERT INTO watch_requests (email, term_code, section_code, block_key, course_label, is_active)
               VALUES ($1, $2, $3, $4, $5, TRUE)
               RETURNING id, is_active, created_at`

	err := r.db.QueryRowContext(ctx, query,
		req.Email, req.TermCode, req.SectionCode, req.BlockKey, req.CourseLabel,
	).Scan(&req.ID, &req.IsActive, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating watch request: %w", err)
	}
	return nil
}

func (r *PostgresWatchRepository) GetByID(ctx context.Context, id int64) (*watch.Request, error) {
	query := `SELECT id, email, term_code, section_code, block_key, course_label, is_active, created_at
               FROM watch_requests WHERE id = $1`
	req := &watch.Request{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.Email, &req.TermCode, &req.SectionCode, &req.BlockKey,
		&req.CourseLabel, &req.IsActive, &req.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrWatchNotFound
		}
		return nil, fmt.Errorf("error getting watch request by ID: %w", err)
	}
	return req, nil
}

func (r *PostgresWatchRepository) ListAll(ctx context.Context) ([]*watch.Request, error) {
	query := `SELECT id, email, term_code, section_code, block_key, course_label, is_active, created_at
               FROM watch_requests ORDER BY id DESC`
	return r.list(ctx, query)
}

func (r *PostgresWatchRepository) ListActive(ctx context.Context) ([]*watch.Request, error) {
	query := `SELECT id, email, term_code, section_code, block_key, course_label, is_active, created_at
               FROM watch_requests WHERE is_active = TRUE ORDER BY id ASC`
	return r.list(ctx, query)
}

func (r *PostgresWatchRepository) list(ctx context.Context, query string) ([]*watch.Request, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing watch requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*watch.Request, 0)
	for rows.Next() {
		req := &watch.Request{}
		if err := rows.Scan(
			&req.ID, &req.Email, &req.TermCode, &req.SectionCode, &req.BlockKey,
			&req.CourseLabel, &req.IsActive, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning watch request: %w", err)
		}
		requests = append(requests, req)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watch requests: %w", err)
	}
	return requests, nil
}

func (r *PostgresWatchRepository) Disable(ctx context.Context, id int64) error {
	query := `UPDATE watch_requests SET is_active = FALSE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error disabling watch request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking disabled watch request: %w", err)
	}
	if affected == 0 {
		return ErrWatchNotFound
	}
	return nil
}
