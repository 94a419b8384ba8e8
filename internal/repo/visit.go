package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var visitColumns = []string{
	"id", "center_id", "patient_id", "doctor_id", "queue_item_id", "appointment_id", "status",
	"chief_complaint", "diagnosis", "notes", "started_at", "closed_at", "created_at", "updated_at",
}

type VisitRepo struct{ conn querier }

func scanVisit(s scanner) (*Visit, error) {
	var v Visit
	if err := s.Scan(&v.ID, &v.CenterID, &v.PatientID, &v.DoctorID, &v.QueueItemID, &v.AppointmentID,
		&v.Status, &v.ChiefComplaint, &v.Diagnosis, &v.Notes, &v.StartedAt, &v.ClosedAt,
		&v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VisitRepo) Create(ctx context.Context, v *Visit) error {
	now := time.Now().UTC()
	if v.ID == uuid.Nil {
		v.ID = uuid.Must(uuid.NewV7())
	}
	v.Status = VisitOpen
	v.StartedAt, v.CreatedAt, v.UpdatedAt = now, now, now

	_, err := exec(ctx, r.conn, sqlb.Insert("visits").
		Set("id", v.ID).
		Set("center_id", v.CenterID).
		Set("patient_id", v.PatientID).
		Set("doctor_id", v.DoctorID).
		Set("queue_item_id", v.QueueItemID).
		Set("appointment_id", v.AppointmentID).
		Set("status", v.Status).
		Set("chief_complaint", v.ChiefComplaint).
		Set("notes", v.Notes).
		Set("started_at", now).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *VisitRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*Visit, error) {
	sel := sqlb.Select(visitColumns...).From(sqlb.Table("visits")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanVisit)
}

type VisitFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
}

func (r *VisitRepo) List(ctx context.Context, centerID uuid.UUID, f VisitFilter, p Page) ([]*Visit, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID)}
	if f.PatientID != nil {
		preds = append(preds, entsql.EQ("patient_id", *f.PatientID))
	}
	if f.DoctorID != nil {
		preds = append(preds, entsql.EQ("doctor_id", *f.DoctorID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "visits", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(visitColumns...).From(sqlb.Table("visits")).Where(where).OrderBy(entsql.Desc("started_at"))
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanVisit)
	return list, total, err
}

type VisitUpdate struct {
	ChiefComplaint *string
	Diagnosis      *string
	Notes          *string
}

// Update edits an open visit's clinical notes.
func (r *VisitRepo) Update(ctx context.Context, centerID, id uuid.UUID, in VisitUpdate) error {
	upd := sqlb.Update("visits").Set("updated_at", time.Now().UTC())
	if in.ChiefComplaint != nil {
		upd.Set("chief_complaint", *in.ChiefComplaint)
	}
	if in.Diagnosis != nil {
		upd.Set("diagnosis", *in.Diagnosis)
	}
	if in.Notes != nil {
		upd.Set("notes", *in.Notes)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(
		entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.EQ("status", VisitOpen))))
}

// Close finalises an open visit with its diagnosis.
func (r *VisitRepo) Close(ctx context.Context, centerID, id uuid.UUID, diagnosis, notes *string) error {
	now := time.Now().UTC()
	upd := sqlb.Update("visits").
		Set("status", VisitClosed).
		Set("closed_at", now).
		Set("updated_at", now)
	if diagnosis != nil {
		upd.Set("diagnosis", *diagnosis)
	}
	if notes != nil {
		upd.Set("notes", *notes)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(
		entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.EQ("status", VisitOpen))))
}
