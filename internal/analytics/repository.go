package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, e Event) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analytics_events (id, event_type, path, referrer, session_id, product_id, user_agent, created_at)
		VALUES (:id, :event_type, :path, :referrer, :session_id, :product_id, :user_agent, :created_at)
	`, e)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

func (r *Repository) CountByType(ctx context.Context, since time.Time) ([]TypeCount, error) {
	counts := make([]TypeCount, 0)
	err := r.db.SelectContext(ctx, &counts, `
		SELECT event_type, COUNT(*) AS count
		FROM analytics_events
		WHERE created_at >= $1
		GROUP BY event_type
		ORDER BY count DESC, event_type ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}
	return counts, nil
}

func (r *Repository) TopPaths(ctx context.Context, since time.Time, limit int) ([]PathCount, error) {
	counts := make([]PathCount, 0)
	err := r.db.SelectContext(ctx, &counts, `
		SELECT path, COUNT(*) AS count
		FROM analytics_events
		WHERE created_at >= $1
		GROUP BY path
		ORDER BY count DESC, path ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("count top paths: %w", err)
	}
	return counts, nil
}

func (r *Repository) CountPerDay(ctx context.Context, since time.Time) ([]DayCount, error) {
	counts := make([]DayCount, 0)
	err := r.db.SelectContext(ctx, &counts, `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*) AS count
		FROM analytics_events
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("count events per day: %w", err)
	}
	return counts, nil
}
