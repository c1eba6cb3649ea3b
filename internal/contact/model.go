package contact

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("message not found")

type Message struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Subject   string    `db:"subject" json:"subject"`
	Message   string    `db:"message" json:"message"`
	IP        string    `db:"ip" json:"ip"`
	IsRead    bool      `db:"is_read" json:"isRead"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Input struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"omitempty,max=30"`
	Subject string `json:"subject" validate:"omitempty,max=150"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
}
