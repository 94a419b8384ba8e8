// Package events publishes domain events on NATS. Subjects have the form
// medcenter.<event>.<center id>; payloads are JSON encoded Event values.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

const subjectPrefix = "medcenter"

const (
	QueueConfirmed       = "queue.confirmed"
	AppointmentCreated   = "appointment.created"
	AppointmentCancelled = "appointment.cancelled"
	PaymentReceived      = "payment.received"
	MessageOutbound      = "message.outbound"
	InsuranceReviewed    = "insurance.reviewed"
)

type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	CenterID   uuid.UUID      `json:"center_id"`
	EntityID   uuid.UUID      `json:"entity_id"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Subject returns the NATS subject an event of type t for centerID is published on.
func Subject(t string, centerID uuid.UUID) string {
	return subjectPrefix + "." + t + "." + centerID.String()
}

// Wildcard matches events of type t for every center.
func Wildcard(t string) string {
	return subjectPrefix + "." + t + ".*"
}

// Publisher is implemented by the NATS publisher and by test recorders.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) Publish(_ context.Context, e Event) error {
	if e.Type == "" {
		return fmt.Errorf("publish event: empty type")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.Must(uuid.NewV7())
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.nc.Publish(Subject(e.Type, e.CenterID), b); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Decode parses a NATS payload and cross-checks its type with the subject.
func Decode(msg *nats.Msg) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		return e, fmt.Errorf("decode event on %s: %w", msg.Subject, err)
	}
	if want := strings.TrimPrefix(msg.Subject, subjectPrefix+"."); !strings.HasPrefix(want, e.Type+".") {
		return e, fmt.Errorf("event type %q does not match subject %s", e.Type, msg.Subject)
	}
	return e, nil
}

// PublishBestEffort logs publish failures instead of returning them. Used
// after the database write has already committed.
func PublishBestEffort(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "event publish failed", "type", e.Type, "entity_id", e.EntityID,
			"request_id", reqctx.RequestIDFromContext(ctx), "error", err)
	}
}

// Handler processes a decoded event.
type Handler func(ctx context.Context, e Event) error

// Subscribe registers h for events of type t from every center.
func Subscribe(nc *nats.Conn, t string, worker string, h Handler) (*nats.Subscription, error) {
	return nc.Subscribe(Wildcard(t), func(msg *nats.Msg) {
		e, err := Decode(msg)
		if err != nil {
			slog.Warn(worker+": bad event", "subject", msg.Subject, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h(ctx, e); err != nil {
			slog.Warn(worker+": handler failed", "type", e.Type, "entity_id", e.EntityID, "error", err)
		}
	})
}
