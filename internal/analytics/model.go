package analytics

import "time"

const (
	EventPageView    = "page_view"
	EventProductView = "product_view"
	EventClick       = "click"
	EventContactOpen = "contact_open"
)

const (
	DefaultSummaryDays = 7
	MaxSummaryDays     = 90
	topPathsLimit      = 10
)

type Event struct {
	ID        string    `db:"id"`
	Type      string    `db:"event_type"`
	Path      string    `db:"path"`
	Referrer  string    `db:"referrer"`
	SessionID string    `db:"session_id"`
	ProductID *string   `db:"product_id"`
	UserAgent string    `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
}

type TrackInput struct {
	Type      string  `json:"type" validate:"required,oneof=page_view product_view click contact_open"`
	Path      string  `json:"path" validate:"required,max=500"`
	Referrer  string  `json:"referrer" validate:"max=500"`
	SessionID string  `json:"sessionId" validate:"max=100"`
	ProductID *string `json:"productId" validate:"omitempty,uuid"`
}

type TypeCount struct {
	Type  string `db:"event_type" json:"type"`
	Count int64  `db:"count" json:"count"`
}

type PathCount struct {
	Path  string `db:"path" json:"path"`
	Count int64  `db:"count" json:"count"`
}

type DayCount struct {
	Day   time.Time `db:"day" json:"day"`
	Count int64     `db:"count" json:"count"`
}

type Summary struct {
	Days     int         `json:"days"`
	Since    time.Time   `json:"since"`
	Total    int64       `json:"total"`
	ByType   []TypeCount `json:"byType"`
	TopPaths []PathCount `json:"topPaths"`
	PerDay   []DayCount  `json:"perDay"`
}
