package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"snw-store/internal/apperr"
	"snw-store/internal/validate"
)

const (
	maxUserAgentLength = 500
	msgInvalidDays     = "Período inválido: use entre 1 e 90 dias"
)

type Store interface {
	Insert(ctx context.Context, e Event) error
	CountByType(ctx context.Context, since time.Time) ([]TypeCount, error)
	TopPaths(ctx context.Context, since time.Time, limit int) ([]PathCount, error)
	CountPerDay(ctx context.Context, since time.Time) ([]DayCount, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Track(ctx context.Context, userAgent string, input TrackInput) error {
	input.Type = clean(input.Type)
	input.Path = clean(input.Path)
	input.Referrer = clean(input.Referrer)
	input.SessionID = clean(input.SessionID)
	if input.ProductID != nil && strings.TrimSpace(*input.ProductID) == "" {
		input.ProductID = nil
	}
	if err := validate.Struct(input); err != nil {
		return err
	}

	userAgent = truncate(clean(userAgent), maxUserAgentLength)

	id, err := uuid.NewV7()
	if err != nil {
		return apperr.Internal(fmt.Errorf("generate uuid v7: %w", err))
	}

	err = s.store.Insert(ctx, Event{
		ID:        id.String(),
		Type:      input.Type,
		Path:      input.Path,
		Referrer:  input.Referrer,
		SessionID: input.SessionID,
		ProductID: input.ProductID,
		UserAgent: userAgent,
		CreatedAt: s.now(),
	})
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Summary aggregates the last days days, counted from the start of the
// oldest UTC day in range.
func (s *Service) Summary(ctx context.Context, days int) (Summary, error) {
	if days < 1 || days > MaxSummaryDays {
		return Summary{}, apperr.Validation(msgInvalidDays)
	}

	today := s.now().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	byType, err := s.store.CountByType(ctx, since)
	if err != nil {
		return Summary{}, apperr.Internal(err)
	}
	topPaths, err := s.store.TopPaths(ctx, since, topPathsLimit)
	if err != nil {
		return Summary{}, apperr.Internal(err)
	}
	perDay, err := s.store.CountPerDay(ctx, since)
	if err != nil {
		return Summary{}, apperr.Internal(err)
	}

	var total int64
	for _, c := range byType {
		total += c.Count
	}

	return Summary{
		Days:     days,
		Since:    since,
		Total:    total,
		ByType:   byType,
		TopPaths: topPaths,
		PerDay:   perDay,
	}, nil
}

// clean replaces invalid UTF-8, which Postgres rejects in text columns.
func clean(value string) string {
	return strings.TrimSpace(strings.ToValidUTF8(value, "\uFFFD"))
}

// truncate cuts value to at most limit bytes without splitting a rune.
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
