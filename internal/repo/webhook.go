package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

type WebhookRepo struct{ conn querier }

func (r *WebhookRepo) Create(ctx context.Context, e *WebhookEvent) error {
	now := time.Now().UTC()
	if e.ID == uuid.Nil {
		e.ID = uuid.Must(uuid.NewV7())
	}
	e.CreatedAt = now
	_, err := exec(ctx, r.conn, sqlb.Insert("webhook_events").
		Set("id", e.ID).
		Set("provider", e.Provider).
		Set("event_type", e.EventType).
		Set("payload", rawArg(e.Payload, "{}")).
		Set("signature_valid", e.SignatureValid).
		Set("created_at", now))
	return err
}

func (r *WebhookRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Update("webhook_events").
		Set("processed_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("id", id), entsql.IsNull("processed_at"))))
}
