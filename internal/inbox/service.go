package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service handles message send/read/ack/expiry over a Repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

type SendRequest struct {
	From        string
	To          string
	Subject     string
	Content     string
	Priority    Priority
	TTL         time.Duration
	Attachments []string
}

func (s *Service) Send(ctx context.Context, req SendRequest) (*Message, error) {
	if req.To == "" || req.Content == "" {
		return nil, ErrInvalidInput
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if req.TTL <= 0 {
		req.TTL = 24 * time.Hour
	}

	now := time.Now()
	msg := &Message{
		ID:          uuid.NewString(),
		From:        req.From,
		To:          req.To,
		Subject:     req.Subject,
		Content:     req.Content,
		Priority:    req.Priority,
		Status:      StatusPending,
		CreatedAt:   now,
		TTLExpiry:   now.Add(req.TTL),
		Attachments: req.Attachments,
	}
	if err := s.repo.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

func (s *Service) Inbox(ctx context.Context, agentID string) ([]*Message, error) {
	return s.repo.ListForAgent(ctx, agentID, StatusPending)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id, time.Now())
}

func (s *Service) MarkAcked(ctx context.Context, id string) error {
	return s.repo.MarkAcked(ctx, id, time.Now())
}

// ExpireDue moves every overdue pending message to the dead-letter store.
// Called from the daemon's periodic TTL-expiry loop (spec §5).
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	n, err := s.repo.ExpirePending(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("expire due messages: %w", err)
	}
	if n > 0 && s.logger != nil {
		s.logger.Info("expired inbox messages", "count", n)
	}
	return n, nil
}

func (s *Service) DeadLetters(ctx context.Context, agentID string) ([]*DeadLetter, error) {
	return s.repo.ListDeadLettersForAgent(ctx, agentID)
}
