package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var appointmentColumns = []string{
	"id", "center_id", "patient_id", "doctor_id", "start_time", "end_time", "status",
	"reason", "notes", "cancel_reason", "created_at", "updated_at",
}

type AppointmentRepo struct{ conn querier }

func scanAppointment(s scanner) (*Appointment, error) {
	var a Appointment
	if err := s.Scan(&a.ID, &a.CenterID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.EndTime,
		&a.Status, &a.Reason, &a.Notes, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AppointmentRepo) Create(ctx context.Context, a *Appointment) error {
	now := time.Now().UTC()
	if a.ID == uuid.Nil {
		a.ID = uuid.Must(uuid.NewV7())
	}
	if a.Status == "" {
		a.Status = AppointmentPending
	}
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := exec(ctx, r.conn, sqlb.Insert("appointments").
		Set("id", a.ID).
		Set("center_id", a.CenterID).
		Set("patient_id", a.PatientID).
		Set("doctor_id", a.DoctorID).
		Set("start_time", a.StartTime.UTC()).
		Set("end_time", a.EndTime.UTC()).
		Set("status", a.Status).
		Set("reason", a.Reason).
		Set("notes", a.Notes).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *AppointmentRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*Appointment, error) {
	sel := sqlb.Select(appointmentColumns...).From(sqlb.Table("appointments")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanAppointment)
}

// LockDoctor serialises bookings of one doctor until the surrounding
// transaction ends.
func (r *AppointmentRepo) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	_, err := r.conn.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "appointment:"+doctorID.String())
	return mapErr(err)
}

// HasOverlap reports whether the doctor already has a live appointment
// intersecting [start, end), ignoring excludeID.
func (r *AppointmentRepo) HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("doctor_id", doctorID),
		entsql.In("status", AppointmentPending, AppointmentConfirmed),
		entsql.LT("start_time", end.UTC()),
		entsql.GT("end_time", start.UTC()),
	}
	if excludeID != nil {
		preds = append(preds, entsql.NEQ("id", *excludeID))
	}
	n, err := count(ctx, r.conn, "appointments", entsql.And(preds...))
	return n > 0, err
}

type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	From      *time.Time
	To        *time.Time
}

func (r *AppointmentRepo) List(ctx context.Context, centerID uuid.UUID, f AppointmentFilter, p Page) ([]*Appointment, int, error) {
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
	if f.From != nil {
		preds = append(preds, entsql.GTE("start_time", f.From.UTC()))
	}
	if f.To != nil {
		preds = append(preds, entsql.LT("start_time", f.To.UTC()))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "appointments", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(appointmentColumns...).From(sqlb.Table("appointments")).Where(where).OrderBy("start_time")
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanAppointment)
	return list, total, err
}

type AppointmentUpdate struct {
	StartTime *time.Time
	EndTime   *time.Time
	Reason    *string
	Notes     *string
}

func (r *AppointmentRepo) Update(ctx context.Context, centerID, id uuid.UUID, in AppointmentUpdate) error {
	upd := sqlb.Update("appointments").Set("updated_at", time.Now().UTC())
	if in.StartTime != nil {
		upd.Set("start_time", in.StartTime.UTC())
	}
	if in.EndTime != nil {
		upd.Set("end_time", in.EndTime.UTC())
	}
	if in.Reason != nil {
		upd.Set("reason", *in.Reason)
	}
	if in.Notes != nil {
		upd.Set("notes", *in.Notes)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(
		entsql.EQ("id", id), entsql.EQ("center_id", centerID),
		entsql.In("status", AppointmentPending, AppointmentConfirmed))))
}

// Transition moves the appointment to status only if it is currently in one
// of from. It returns ErrNotFound when the guard does not match.
func (r *AppointmentRepo) Transition(ctx context.Context, centerID, id uuid.UUID, from []string, to string, cancelReason *string) error {
	upd := sqlb.Update("appointments").
		Set("status", to).
		Set("updated_at", time.Now().UTC())
	if cancelReason != nil {
		upd.Set("cancel_reason", *cancelReason)
	}
	args := make([]any, len(from))
	for i, s := range from {
		args[i] = s
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(
		entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.In("status", args...))))
}

// DeletePending removes an appointment that never left pending.
func (r *AppointmentRepo) DeletePending(ctx context.Context, centerID, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Delete("appointments").Where(entsql.And(
		entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.EQ("status", AppointmentPending))))
}
