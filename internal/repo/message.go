package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var messageColumns = []string{
	"id", "center_id", "patient_id", "channel", "direction", "from_address", "to_address",
	"body", "status", "external_id", "created_at", "updated_at",
}

type MessageRepo struct{ conn querier }

func scanMessage(s scanner) (*Message, error) {
	var m Message
	if err := s.Scan(&m.ID, &m.CenterID, &m.PatientID, &m.Channel, &m.Direction, &m.FromAddress,
		&m.ToAddress, &m.Body, &m.Status, &m.ExternalID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) Create(ctx context.Context, m *Message) error {
	now := time.Now().UTC()
	if m.ID == uuid.Nil {
		m.ID = uuid.Must(uuid.NewV7())
	}
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := exec(ctx, r.conn, sqlb.Insert("messages").
		Set("id", m.ID).
		Set("center_id", m.CenterID).
		Set("patient_id", m.PatientID).
		Set("channel", m.Channel).
		Set("direction", m.Direction).
		Set("from_address", m.FromAddress).
		Set("to_address", m.ToAddress).
		Set("body", m.Body).
		Set("status", m.Status).
		Set("external_id", m.ExternalID).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *MessageRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*Message, error) {
	sel := sqlb.Select(messageColumns...).From(sqlb.Table("messages")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanMessage)
}

type MessageFilter struct {
	PatientID *uuid.UUID
	Channel   string
}

func (r *MessageRepo) List(ctx context.Context, centerID uuid.UUID, f MessageFilter, p Page) ([]*Message, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID)}
	if f.PatientID != nil {
		preds = append(preds, entsql.EQ("patient_id", *f.PatientID))
	}
	if f.Channel != "" {
		preds = append(preds, entsql.EQ("channel", f.Channel))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "messages", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(messageColumns...).From(sqlb.Table("messages")).Where(where).OrderBy(entsql.Desc("created_at"))
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanMessage)
	return list, total, err
}

// SetStatus updates a message by id (relay acknowledgements).
func (r *MessageRepo) SetStatus(ctx context.Context, id uuid.UUID, status string, externalID *string) error {
	upd := sqlb.Update("messages").
		Set("status", status).
		Set("updated_at", time.Now().UTC())
	if externalID != nil {
		upd.Set("external_id", *externalID)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.EQ("id", id)))
}

// SetStatusByExternalID applies a provider delivery receipt. It reports
// whether any outbound message matched.
func (r *MessageRepo) SetStatusByExternalID(ctx context.Context, externalID, status string) (bool, error) {
	n, err := exec(ctx, r.conn, sqlb.Update("messages").
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("external_id", externalID), entsql.EQ("direction", DirectionOutbound))))
	return n > 0, err
}
