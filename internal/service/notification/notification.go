// Package notification keeps the in-app notifications shown to staff users.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
)

// Notification types written by the event workers.
const (
	TypeQueueConfirmed       = "queue_confirmed"
	TypeAppointmentCreated   = "appointment_created"
	TypeAppointmentCancelled = "appointment_cancelled"
	TypeInsuranceReviewed    = "insurance_reviewed"
	TypePaymentReceived      = "payment_received"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	UserID   uuid.UUID
	CenterID *uuid.UUID
	Type     string
	Title    string
	Body     string
	Data     map[string]any
}

type ListRequest struct {
	pagination.Request
	UnreadOnly bool
}

// ListResult is a page of notifications plus the caller's unread count.
type ListResult struct {
	*pagination.Result[*repo.Notification]
	Unread int `json:"unread"`
}

// Store is the persistence the service needs; *repo.NotificationRepo satisfies it.
type Store interface {
	Create(ctx context.Context, n *repo.Notification) error
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, p repo.Page) ([]*repo.Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*repo.Notification, error)
	List(ctx context.Context, userID uuid.UUID, req ListRequest) (*ListResult, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type notificationService struct {
	store Store
}

func New(store Store) Service {
	return &notificationService{store: store}
}

func (s *notificationService) Create(ctx context.Context, req CreateRequest) (*repo.Notification, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	n := &repo.Notification{
		UserID:   req.UserID,
		CenterID: req.CenterID,
		Type:     req.Type,
		Title:    title,
		Body:     req.Body,
	}
	if req.Data != nil {
		b, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("encode notification data: %w", err)
		}
		n.Data = b
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, req ListRequest) (*ListResult, error) {
	list, total, err := s.store.List(ctx, userID, req.UnreadOnly, req.Repo())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	return &ListResult{Result: pagination.NewResult(list, total, req.Request), Unread: unread}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.MarkRead(ctx, userID, id); err != nil {
		if repo.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}
