package contact

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const columns = `id, name, email, phone, subject, message, ip, is_read, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, m Message) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO contact_messages (`+columns+`)
		VALUES (:id, :name, :email, :phone, :subject, :message, :ip, :is_read, :created_at)
	`, m)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, unreadOnly bool) ([]Message, error) {
	messages := make([]Message, 0)
	err := r.db.SelectContext(ctx, &messages, `
		SELECT `+columns+`
		FROM contact_messages
		WHERE (NOT $1 OR NOT is_read)
		ORDER BY created_at DESC
	`, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("select contact messages: %w", err)
	}
	return messages, nil
}

func (r *Repository) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE contact_messages SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark contact message read: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact message: %w", err)
	}
	return expectOneRow(res)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectOneRow(res rowsAffected) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
