package testimonial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const columns = `id, author_name, content, rating, is_approved, created_at, updated_at`

type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Repository) List(ctx context.Context, approvedOnly bool) ([]Testimonial, error) {
	testimonials := make([]Testimonial, 0)
	err := r.db.SelectContext(ctx, &testimonials, `
		SELECT `+columns+`
		FROM testimonials
		WHERE (NOT $1 OR is_approved)
		ORDER BY created_at DESC
	`, approvedOnly)
	if err != nil {
		return nil, fmt.Errorf("select testimonials: %w", err)
	}
	return testimonials, nil
}

func (r *Repository) Create(ctx context.Context, input Input) (Testimonial, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Testimonial{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := r.now()
	t := Testimonial{
		ID:         id.String(),
		AuthorName: input.AuthorName,
		Content:    input.Content,
		Rating:     input.Rating,
		IsApproved: input.IsApproved,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO testimonials (`+columns+`)
		VALUES (:id, :author_name, :content, :rating, :is_approved, :created_at, :updated_at)
	`, t)
	if err != nil {
		return Testimonial{}, fmt.Errorf("insert testimonial: %w", err)
	}

	return t, nil
}

func (r *Repository) Update(ctx context.Context, id string, input Input) (Testimonial, error) {
	var t Testimonial
	err := r.db.GetContext(ctx, &t, `
		UPDATE testimonials
		SET author_name = $2, content = $3, rating = $4, is_approved = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+columns,
		id, input.AuthorName, input.Content, input.Rating, input.IsApproved, r.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Testimonial{}, ErrNotFound
		}
		return Testimonial{}, fmt.Errorf("update testimonial: %w", err)
	}
	return t, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM testimonials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete testimonial: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
