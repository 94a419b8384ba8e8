// Package webhook accepts signed provider callbacks (WhatsApp Cloud API and
// Slack Events API), stores every delivery and applies the ones it knows.
package webhook

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/crypto"
	"github.com/Alijeyrad/medcenter_backend/pkg/observability"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
)

const (
	ProviderWhatsApp = "whatsapp"
	ProviderSlack    = "slack"
)

// SlackMaxSkew bounds the age of a Slack request timestamp.
const SlackMaxSkew = 5 * time.Minute

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Summary reports what a delivery changed.
type Summary struct {
	EventID  uuid.UUID `json:"event_id"`
	Inbound  int       `json:"inbound"`
	Statuses int       `json:"statuses"`
}

// SlackResult carries the challenge for url_verification requests.
type SlackResult struct {
	Summary
	Challenge string `json:"challenge,omitempty"`
}

// Store is the persistence the service needs.
type Store interface {
	SaveEvent(ctx context.Context, e *repo.WebhookEvent) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	FindPatientByPhone(ctx context.Context, phone string) (*repo.Patient, error)
	CreateMessage(ctx context.Context, m *repo.Message) error
	SetStatusByExternalID(ctx context.Context, externalID, status string) (bool, error)
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	// VerifyWhatsApp answers the subscription handshake with the challenge.
	VerifyWhatsApp(mode, token, challenge string) (string, error)
	HandleWhatsApp(ctx context.Context, body []byte, signature string) (*Summary, error)
	HandleSlack(ctx context.Context, body []byte, timestamp, signature string) (*SlackResult, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type webhookService struct {
	store   Store
	phones  *phone.Normalizer
	metrics *observability.Metrics
	wa      config.WhatsAppConfig
	slack   config.SlackConfig
	now     func() time.Time
}

func New(store Store, phones *phone.Normalizer, metrics *observability.Metrics, cfg *config.Config) Service {
	return &webhookService{
		store:   store,
		phones:  phones,
		metrics: metrics,
		wa:      cfg.WhatsApp,
		slack:   cfg.Slack,
		now:     time.Now,
	}
}

func (s *webhookService) VerifyWhatsApp(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || s.wa.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.wa.VerifyToken)) != 1 {
		return "", ErrVerifyFailed
	}
	return challenge, nil
}

func (s *webhookService) HandleWhatsApp(ctx context.Context, body []byte, signature string) (*Summary, error) {
	valid := crypto.VerifyHMACSHA256([]byte(s.wa.AppSecret), body, signature, "sha256=")
	s.metrics.Webhook(ctx, ProviderWhatsApp, valid)

	var payload waPayload
	parseErr := json.Unmarshal(body, &payload)

	ev, err := s.save(ctx, ProviderWhatsApp, payload.eventType(), body, valid)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrInvalidSignature
	}
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, parseErr)
	}

	sum := &Summary{EventID: ev.ID}
	for _, entry := range payload.Entry {
		for _, ch := range entry.Changes {
			for _, m := range ch.Value.Messages {
				ok, err := s.storeInbound(ctx, ch.Value.Metadata.DisplayPhoneNumber, m)
				if err != nil {
					return nil, err
				}
				if ok {
					sum.Inbound++
				}
			}
			for _, st := range ch.Value.Statuses {
				status, known := waStatuses[st.Status]
				if !known || st.ID == "" {
					continue
				}
				matched, err := s.store.SetStatusByExternalID(ctx, st.ID, status)
				if err != nil {
					return nil, fmt.Errorf("apply status: %w", err)
				}
				if matched {
					sum.Statuses++
				}
			}
		}
	}
	s.markProcessed(ctx, ev.ID)
	return sum, nil
}

func (s *webhookService) HandleSlack(ctx context.Context, body []byte, timestamp, signature string) (*SlackResult, error) {
	valid := s.slackTimestampFresh(timestamp) &&
		crypto.VerifyHMACSHA256([]byte(s.slack.SigningSecret), []byte("v0:"+timestamp+":"+string(body)), signature, "v0=")
	s.metrics.Webhook(ctx, ProviderSlack, valid)

	var payload slackPayload
	parseErr := json.Unmarshal(body, &payload)

	ev, err := s.save(ctx, ProviderSlack, payload.eventType(), body, valid)
	if err != nil {
		return nil, err
	}
	if !valid {
		if !s.slackTimestampFresh(timestamp) {
			return nil, ErrStaleTimestamp
		}
		return nil, ErrInvalidSignature
	}
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, parseErr)
	}

	res := &SlackResult{Summary: Summary{EventID: ev.ID}}
	switch payload.Type {
	case "url_verification":
		res.Challenge = payload.Challenge
	case "event_callback":
		// Bot echoes and edits carry a subtype; only plain user messages are kept.
		if e := payload.Event; e.Type == "message" && e.Subtype == "" && e.Text != "" {
			m := &repo.Message{
				Channel:     repo.ChannelSlack,
				Direction:   repo.DirectionInbound,
				FromAddress: e.User,
				ToAddress:   e.Channel,
				Body:        e.Text,
				Status:      repo.MessageReceived,
			}
			if e.TS != "" {
				ts := e.TS
				m.ExternalID = &ts
			}
			if err := s.store.CreateMessage(ctx, m); err != nil {
				return nil, fmt.Errorf("store slack message: %w", err)
			}
			res.Inbound++
		}
	}
	s.markProcessed(ctx, ev.ID)
	return res, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *webhookService) save(ctx context.Context, provider, eventType string, body []byte, valid bool) (*repo.WebhookEvent, error) {
	payload := json.RawMessage(body)
	switch {
	case !valid:
		// Unverified bodies are not kept, only their size and digest.
		sum := sha256.Sum256(body)
		payload, _ = json.Marshal(map[string]any{"size": len(body), "sha256": hex.EncodeToString(sum[:])})
		eventType = ""
	case !json.Valid(body):
		// jsonb rejects non-JSON bodies; keep them as a string.
		payload, _ = json.Marshal(map[string]string{"raw": string(body)})
	}
	ev := &repo.WebhookEvent{
		Provider:       provider,
		EventType:      eventType,
		Payload:        payload,
		SignatureValid: valid,
	}
	if err := s.store.SaveEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("store webhook event: %w", err)
	}
	if !valid {
		slog.WarnContext(ctx, "webhook signature rejected", "provider", provider, "event_id", ev.ID)
	}
	return ev, nil
}

func (s *webhookService) markProcessed(ctx context.Context, id uuid.UUID) {
	if err := s.store.MarkProcessed(ctx, id); err != nil {
		slog.WarnContext(ctx, "mark webhook processed", "event_id", id, "error", err)
	}
}

// storeInbound saves a WhatsApp message, linking it to the patient with the
// sender's phone. Non-text messages are stored with a placeholder body.
func (s *webhookService) storeInbound(ctx context.Context, businessNumber string, in waMessage) (bool, error) {
	if in.From == "" {
		return false, nil
	}
	from := in.From
	if n, err := s.phones.E164(in.From); err == nil {
		from = n
	}

	m := &repo.Message{
		Channel:     repo.ChannelWhatsApp,
		Direction:   repo.DirectionInbound,
		FromAddress: from,
		ToAddress:   businessNumber,
		Body:        in.body(),
		Status:      repo.MessageReceived,
	}
	if in.ID != "" {
		id := in.ID
		m.ExternalID = &id
	}

	p, err := s.store.FindPatientByPhone(ctx, from)
	switch {
	case err == nil:
		m.CenterID, m.PatientID = &p.CenterID, &p.ID
	case !repo.IsNotFound(err):
		return false, fmt.Errorf("match patient: %w", err)
	}

	if err := s.store.CreateMessage(ctx, m); err != nil {
		return false, fmt.Errorf("store inbound message: %w", err)
	}
	return true, nil
}

func (s *webhookService) slackTimestampFresh(ts string) bool {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	skew := s.now().Unix() - sec
	return math.Abs(float64(skew)) <= SlackMaxSkew.Seconds()
}

// ---------------------------------------------------------------------------
// Repository adapter
// ---------------------------------------------------------------------------

// RepoStore backs Store with the repository client.
type RepoStore struct {
	DB *repo.Client
}

func NewRepoStore(db *repo.Client) *RepoStore {
	return &RepoStore{DB: db}
}

func (r *RepoStore) SaveEvent(ctx context.Context, e *repo.WebhookEvent) error {
	return r.DB.Webhook.Create(ctx, e)
}

func (r *RepoStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.DB.Webhook.MarkProcessed(ctx, id)
}

func (r *RepoStore) FindPatientByPhone(ctx context.Context, phone string) (*repo.Patient, error) {
	return r.DB.Patient.FindByPhone(ctx, phone)
}

func (r *RepoStore) CreateMessage(ctx context.Context, m *repo.Message) error {
	return r.DB.Message.Create(ctx, m)
}

func (r *RepoStore) SetStatusByExternalID(ctx context.Context, externalID, status string) (bool, error) {
	return r.DB.Message.SetStatusByExternalID(ctx, externalID, status)
}
