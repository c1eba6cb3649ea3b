package contact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"snw-store/internal/apperr"
	"snw-store/internal/observability"
	"snw-store/internal/ratelimit"
	"snw-store/internal/sanitize"
	"snw-store/internal/validate"
)

const msgTooManyMessages = "Muitas mensagens enviadas. Tente novamente mais tarde."

// SubmitPolicy limits contact form submissions per client IP.
var SubmitPolicy = ratelimit.Policy{MaxRequests: 3, Window: 10 * time.Minute, BlockDuration: 30 * time.Minute}

type Store interface {
	Insert(ctx context.Context, m Message) error
	List(ctx context.Context, unreadOnly bool) ([]Message, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type Service struct {
	store   Store
	limiter ratelimit.Limiter
	now     func() time.Time
}

func NewService(store Store, limiter ratelimit.Limiter) *Service {
	return &Service{store: store, limiter: limiter, now: func() time.Time { return time.Now().UTC() }}
}

// Submit stores a visitor message after the per-IP limit, sanitising and
// validation pass.
func (s *Service) Submit(ctx context.Context, ip string, input Input) (Message, error) {
	res, err := s.limiter.Check(ctx, "contact:"+ip, SubmitPolicy)
	if err != nil {
		return Message{}, apperr.Internal(fmt.Errorf("check contact rate limit: %w", err))
	}
	if !res.Allowed {
		observability.RateLimitRejectionsTotal.WithLabelValues("contact").Inc()
		return Message{}, apperr.RateLimited(msgTooManyMessages, res.RetryAfterSeconds())
	}

	input = Input{
		Name:    sanitize.Text(input.Name),
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:   sanitize.Text(input.Phone),
		Subject: sanitize.Text(input.Subject),
		Message: sanitize.Text(input.Message),
	}
	if err := validate.Struct(input); err != nil {
		return Message{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Message{}, apperr.Internal(fmt.Errorf("generate uuid v7: %w", err))
	}

	m := Message{
		ID:        id.String(),
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Subject:   input.Subject,
		Message:   input.Message,
		IP:        ip,
		CreatedAt: s.now(),
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return Message{}, apperr.Internal(err)
	}

	observability.LoggerFrom(ctx).Info("contact_message_received", map[string]any{"message_id": m.ID})
	return m, nil
}

func (s *Service) List(ctx context.Context, unreadOnly bool) ([]Message, error) {
	return s.store.List(ctx, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.store.MarkRead(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
