package product

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSlugTaken       = errors.New("slug already in use")
	ErrUnknownCategory = errors.New("category does not exist")
)

type Product struct {
	ID              string    `json:"id"`
	CategoryID      *string   `json:"categoryId"`
	CategorySlug    string    `json:"categorySlug,omitempty"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	PriceCents      int64     `json:"priceCents"`
	ImageURL        string    `json:"imageUrl"`
	WhatsappMessage string    `json:"whatsappMessage"`
	IsFeatured      bool      `json:"isFeatured"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type ProductInput struct {
	CategoryID      *string `json:"categoryId" validate:"omitempty,uuid"`
	Name            string  `json:"name" validate:"required,max=150"`
	Description     string  `json:"description" validate:"max=2000"`
	PriceCents      int64   `json:"priceCents" validate:"min=0"`
	ImageURL        string  `json:"imageUrl" validate:"required,max=500"`
	WhatsappMessage string  `json:"whatsappMessage" validate:"max=500"`
	IsFeatured      bool    `json:"isFeatured"`
	IsActive        *bool   `json:"isActive"`
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=80"`
	Description string `json:"description" validate:"max=500"`
	SortOrder   int    `json:"sortOrder" validate:"min=0"`
}

// ListFilter narrows product listings. Public listings never include inactive
// products.
type ListFilter struct {
	CategorySlug    string
	IncludeInactive bool
}
