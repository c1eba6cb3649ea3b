package testimonial

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("testimonial not found")

type Testimonial struct {
	ID         string    `db:"id" json:"id"`
	AuthorName string    `db:"author_name" json:"authorName"`
	Content    string    `db:"content" json:"content"`
	Rating     int       `db:"rating" json:"rating"`
	IsApproved bool      `db:"is_approved" json:"isApproved"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

type Input struct {
	AuthorName string `json:"authorName" validate:"required,max=100"`
	Content    string `json:"content" validate:"required,max=1000"`
	Rating     int    `json:"rating" validate:"min=1,max=5"`
	IsApproved bool   `json:"isApproved"`
}
