package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const productColumns = `p.id, p.category_id, COALESCE(c.slug, ''), p.name, p.description, p.price_cents,
	p.image_url, p.whatsapp_message, p.is_featured, p.is_active, p.created_at, p.updated_at`

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p          Product
		categoryID sql.NullString
	)
	if err := row.Scan(&p.ID, &categoryID, &p.CategorySlug, &p.Name, &p.Description, &p.PriceCents,
		&p.ImageURL, &p.WhatsappMessage, &p.IsFeatured, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.String
	}
	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ($1 OR p.is_active)
		  AND ($2 = '' OR c.slug = $2)
		ORDER BY p.is_featured DESC, p.created_at DESC
	`, filter.IncludeInactive, filter.CategorySlug)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("query product: %w", err)
	}

	return p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Product{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := r.now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO products (id, category_id, name, description, price_cents, image_url,
			whatsapp_message, is_featured, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, id.String(), input.CategoryID, input.Name, input.Description, input.PriceCents, input.ImageURL,
		input.WhatsappMessage, input.IsFeatured, activeOrDefault(input.IsActive), now)
	if err != nil {
		return Product{}, mapWriteError("insert product", err)
	}

	return r.GetProduct(ctx, id.String())
}

func (r *Repository) UpdateProduct(ctx context.Context, id string, input ProductInput) (Product, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET category_id = $2, name = $3, description = $4, price_cents = $5, image_url = $6,
			whatsapp_message = $7, is_featured = $8, is_active = $9, updated_at = $10
		WHERE id = $1
	`, id, input.CategoryID, input.Name, input.Description, input.PriceCents, input.ImageURL,
		input.WhatsappMessage, input.IsFeatured, activeOrDefault(input.IsActive), r.now())
	if err != nil {
		return Product{}, mapWriteError("update product", err)
	}
	if err := expectOneRow(res); err != nil {
		return Product{}, err
	}

	return r.GetProduct(ctx, id)
}

func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, description, sort_order, created_at, updated_at
		FROM categories
		ORDER BY sort_order ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

func (r *Repository) CreateCategory(ctx context.Context, input CategoryInput) (Category, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Category{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := r.now()
	c := Category{
		ID:          id.String(),
		Name:        input.Name,
		Slug:        input.Slug,
		Description: input.Description,
		SortOrder:   input.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, description, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, c.ID, c.Name, c.Slug, c.Description, c.SortOrder, now)
	if err != nil {
		return Category{}, mapWriteError("insert category", err)
	}

	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id string, input CategoryInput) (Category, error) {
	var c Category
	err := r.db.QueryRowContext(ctx, `
		UPDATE categories
		SET name = $2, slug = $3, description = $4, sort_order = $5, updated_at = $6
		WHERE id = $1
		RETURNING id, name, slug, description, sort_order, created_at, updated_at
	`, id, input.Name, input.Slug, input.Description, input.SortOrder, r.now()).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, mapWriteError("update category", err)
	}

	return c, nil
}

// DeleteCategory leaves its products uncategorised.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrSlugTaken
		case "23503":
			return ErrUnknownCategory
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func activeOrDefault(value *bool) bool {
	if value == nil {
		return true
	}
	return *value
}
