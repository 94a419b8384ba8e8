// Package messaging records patient conversations on WhatsApp and staff
// messages on Slack. Outbound messages are queued here and delivered by an
// external relay that consumes message.outbound events.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// MaxBodyLength is the WhatsApp text message limit.
const MaxBodyLength = 4096

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type SendRequest struct {
	PatientID *uuid.UUID `json:"patient_id"`
	Channel   string     `json:"channel"`
	To        string     `json:"to"`
	Body      string     `json:"body"`
}

type ListRequest struct {
	pagination.Request
	PatientID *uuid.UUID
	Channel   string
}

// Store is the persistence the service needs.
type Store interface {
	Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error)
	Create(ctx context.Context, m *repo.Message) error
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Message, error)
	List(ctx context.Context, centerID uuid.UUID, f repo.MessageFilter, p repo.Page) ([]*repo.Message, int, error)
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.Message], error)
	Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Message, error)
	Send(ctx context.Context, scope *reqctx.CenterScope, req SendRequest) (*repo.Message, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type messagingService struct {
	store  Store
	phones *phone.Normalizer
	events events.Publisher
	sender string
}

func New(store Store, phones *phone.Normalizer, pub events.Publisher, cfg *config.Config) Service {
	return &messagingService{
		store:  store,
		phones: phones,
		events: pub,
		sender: cfg.WhatsApp.SenderNumber,
	}
}

func (s *messagingService) List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.Message], error) {
	if req.Channel != "" && !validChannel(req.Channel) {
		return nil, ErrInvalidChannel
	}
	list, total, err := s.store.List(ctx, scope.CenterID, repo.MessageFilter{
		PatientID: req.PatientID,
		Channel:   req.Channel,
	}, req.Repo())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return pagination.NewResult(list, total, req.Request), nil
}

func (s *messagingService) Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Message, error) {
	m, err := s.store.Get(ctx, scope.CenterID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *messagingService) Send(ctx context.Context, scope *reqctx.CenterScope, req SendRequest) (*repo.Message, error) {
	if !validChannel(req.Channel) {
		return nil, ErrInvalidChannel
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, ErrBodyRequired
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, ErrBodyTooLong
	}

	var p *repo.Patient
	if req.PatientID != nil {
		var err error
		p, err = s.store.Patient(ctx, scope.CenterID, *req.PatientID)
		if err != nil {
			if repo.IsNotFound(err) {
				return nil, ErrPatientNotFound
			}
			return nil, fmt.Errorf("get patient: %w", err)
		}
	}

	to, err := s.recipient(req.Channel, strings.TrimSpace(req.To), p)
	if err != nil {
		return nil, err
	}

	center := scope.CenterID
	m := &repo.Message{
		CenterID:    &center,
		PatientID:   req.PatientID,
		Channel:     req.Channel,
		Direction:   repo.DirectionOutbound,
		FromAddress: s.sender,
		ToAddress:   to,
		Body:        body,
		Status:      repo.MessageQueued,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	events.PublishBestEffort(ctx, s.events, events.Event{
		Type:     events.MessageOutbound,
		CenterID: scope.CenterID,
		EntityID: m.ID,
		ActorID:  scope.Actor(),
		Data: map[string]any{
			"channel": m.Channel,
			"from":    m.FromAddress,
			"to":      m.ToAddress,
			"body":    m.Body,
		},
	})
	return m, nil
}

// recipient resolves the destination address. WhatsApp numbers fall back to
// the patient's phone and are normalised to E.164; Slack takes a channel id.
func (s *messagingService) recipient(channel, to string, p *repo.Patient) (string, error) {
	if channel == repo.ChannelSlack {
		if to == "" {
			return "", ErrRecipientRequired
		}
		return to, nil
	}
	if to == "" && p != nil && p.Phone != nil {
		to = *p.Phone
	}
	if to == "" {
		return "", ErrRecipientRequired
	}
	n, err := s.phones.E164(to)
	if err != nil {
		return "", ErrInvalidRecipient
	}
	return n, nil
}

func validChannel(c string) bool {
	return c == repo.ChannelWhatsApp || c == repo.ChannelSlack
}

// ---------------------------------------------------------------------------
// Repository adapter
// ---------------------------------------------------------------------------

// RepoStore backs Store with the repository client.
type RepoStore struct {
	*repo.MessageRepo
	DB *repo.Client
}

func NewRepoStore(db *repo.Client) *RepoStore {
	return &RepoStore{MessageRepo: db.Message, DB: db}
}

func (r *RepoStore) Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error) {
	return r.DB.Patient.Get(ctx, centerID, id)
}
