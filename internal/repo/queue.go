package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var queueColumns = []string{
	"id", "center_id", "patient_id", "appointment_id", "doctor_id", "queue_date", "queue_number",
	"status", "confirmed_at", "confirmed_by", "notes", "created_at", "updated_at",
}

type QueueRepo struct{ conn querier }

func scanQueueItem(s scanner) (*QueueItem, error) {
	var q QueueItem
	if err := s.Scan(&q.ID, &q.CenterID, &q.PatientID, &q.AppointmentID, &q.DoctorID, &q.QueueDate,
		&q.QueueNumber, &q.Status, &q.ConfirmedAt, &q.ConfirmedBy, &q.Notes, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

// Create inserts a waiting item with the next number of its center's day.
// Must run inside WithTx: the advisory lock is held until commit.
func (r *QueueRepo) Create(ctx context.Context, q *QueueItem) error {
	now := time.Now().UTC()
	if q.ID == uuid.Nil {
		q.ID = uuid.Must(uuid.NewV7())
	}
	if q.QueueDate.IsZero() {
		q.QueueDate = now
	}
	day := q.QueueDate.Format(time.DateOnly)

	if _, err := r.conn.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "queue:"+q.CenterID.String()+":"+day); err != nil {
		return mapErr(err)
	}
	if err := r.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(queue_number), 0) + 1 FROM queue_items WHERE center_id = $1 AND queue_date = $2`,
		q.CenterID, day,
	).Scan(&q.QueueNumber); err != nil {
		return mapErr(err)
	}

	q.Status = QueueWaiting
	q.CreatedAt, q.UpdatedAt = now, now
	_, err := exec(ctx, r.conn, sqlb.Insert("queue_items").
		Set("id", q.ID).
		Set("center_id", q.CenterID).
		Set("patient_id", q.PatientID).
		Set("appointment_id", q.AppointmentID).
		Set("doctor_id", q.DoctorID).
		Set("queue_date", day).
		Set("queue_number", q.QueueNumber).
		Set("status", q.Status).
		Set("notes", q.Notes).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *QueueRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*QueueItem, error) {
	sel := sqlb.Select(queueColumns...).From(sqlb.Table("queue_items")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanQueueItem)
}

type QueueFilter struct {
	Date     *time.Time
	Status   []string
	DoctorID *uuid.UUID
}

func (r *QueueRepo) List(ctx context.Context, centerID uuid.UUID, f QueueFilter, p Page) ([]*QueueItem, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID)}
	if f.Date != nil {
		preds = append(preds, entsql.EQ("queue_date", f.Date.Format(time.DateOnly)))
	}
	if len(f.Status) > 0 {
		args := make([]any, len(f.Status))
		for i, s := range f.Status {
			args[i] = s
		}
		preds = append(preds, entsql.In("status", args...))
	}
	if f.DoctorID != nil {
		preds = append(preds, entsql.EQ("doctor_id", *f.DoctorID))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "queue_items", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(queueColumns...).From(sqlb.Table("queue_items")).Where(where).
		OrderBy(entsql.Desc("queue_date"), "queue_number")
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanQueueItem)
	return list, total, err
}

// Confirm hands a waiting item to doctorID. Returns ErrNotFound if the item
// is no longer waiting.
func (r *QueueRepo) Confirm(ctx context.Context, centerID, id, doctorID uuid.UUID, confirmedBy *uuid.UUID, notes *string) error {
	now := time.Now().UTC()
	upd := sqlb.Update("queue_items").
		Set("status", QueueConfirmed).
		Set("doctor_id", doctorID).
		Set("confirmed_at", now).
		Set("confirmed_by", confirmedBy).
		Set("updated_at", now)
	if notes != nil {
		upd.Set("notes", *notes)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(
		entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.EQ("status", QueueWaiting))))
}

// Transition moves the item to status to when it is currently in one of from.
func (r *QueueRepo) Transition(ctx context.Context, centerID, id uuid.UUID, to string, from ...string) error {
	args := make([]any, len(from))
	for i, s := range from {
		args[i] = s
	}
	return execOne(ctx, r.conn, sqlb.Update("queue_items").
		Set("status", to).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.In("status", args...))))
}
