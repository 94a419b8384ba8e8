package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var patientColumns = []string{
	"id", "center_id", "file_number", "first_name", "last_name", "national_id", "national_id_hash",
	"phone", "email", "birth_date", "gender", "insurance_provider", "insurance_number",
	"uses_insurance", "status", "notes", "created_at", "updated_at",
}

type PatientRepo struct{ conn querier }

func scanPatient(s scanner) (*Patient, error) {
	var p Patient
	if err := s.Scan(&p.ID, &p.CenterID, &p.FileNumber, &p.FirstName, &p.LastName, &p.NationalID,
		&p.NationalIDHash, &p.Phone, &p.Email, &p.BirthDate, &p.Gender, &p.InsuranceProvider,
		&p.InsuranceNumber, &p.UsesInsurance, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// confirmedToDoctor limits patients to those handed off to doctorID.
func confirmedToDoctor(doctorID uuid.UUID) *entsql.Predicate {
	return handedTo("id", doctorID)
}

// handedTo matches rows whose column holds a patient handed off to doctorID.
func handedTo(column string, doctorID uuid.UUID) *entsql.Predicate {
	return exprP(column+` IN (SELECT patient_id FROM queue_items WHERE doctor_id = ? AND status IN ('confirmed', 'in_session')
		UNION SELECT patient_id FROM visits WHERE doctor_id = ?)`, doctorID, doctorID)
}

func (r *PatientRepo) Create(ctx context.Context, p *Patient) error {
	now := time.Now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.Must(uuid.NewV7())
	}
	if p.Status == "" {
		p.Status = PatientStatusActive
	}
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := exec(ctx, r.conn, sqlb.Insert("patients").
		Set("id", p.ID).
		Set("center_id", p.CenterID).
		Set("file_number", p.FileNumber).
		Set("first_name", p.FirstName).
		Set("last_name", p.LastName).
		Set("national_id", p.NationalID).
		Set("national_id_hash", p.NationalIDHash).
		Set("phone", p.Phone).
		Set("email", p.Email).
		Set("birth_date", p.BirthDate).
		Set("gender", p.Gender).
		Set("insurance_provider", p.InsuranceProvider).
		Set("insurance_number", p.InsuranceNumber).
		Set("uses_insurance", p.UsesInsurance).
		Set("status", p.Status).
		Set("notes", p.Notes).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *PatientRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*Patient, error) {
	sel := sqlb.Select(patientColumns...).From(sqlb.Table("patients")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.IsNull("deleted_at")))
	return queryOne(ctx, r.conn, sel, scanPatient)
}

// VisibleToDoctor reports whether the patient has been handed off to doctorID.
func (r *PatientRepo) VisibleToDoctor(ctx context.Context, centerID, patientID, doctorID uuid.UUID) (bool, error) {
	n, err := count(ctx, r.conn, "patients", entsql.And(
		entsql.EQ("id", patientID),
		entsql.EQ("center_id", centerID),
		entsql.IsNull("deleted_at"),
		confirmedToDoctor(doctorID),
	))
	return n > 0, err
}

// NationalIDTaken reports whether another live patient of the center has hash.
func (r *PatientRepo) NationalIDTaken(ctx context.Context, centerID uuid.UUID, hash string, excludeID *uuid.UUID) (bool, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("center_id", centerID),
		entsql.EQ("national_id_hash", hash),
		entsql.IsNull("deleted_at"),
	}
	if excludeID != nil {
		preds = append(preds, entsql.NEQ("id", *excludeID))
	}
	n, err := count(ctx, r.conn, "patients", entsql.And(preds...))
	return n > 0, err
}

// FindByPhone returns the most recently created patient with phone, any center.
func (r *PatientRepo) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	sel := sqlb.Select(patientColumns...).From(sqlb.Table("patients")).
		Where(entsql.And(entsql.EQ("phone", phone), entsql.IsNull("deleted_at"))).
		OrderBy(entsql.Desc("created_at")).
		Limit(1)
	return queryOne(ctx, r.conn, sel, scanPatient)
}

type PatientFilter struct {
	Search string
	Status string
	// DoctorID restricts results to patients confirmed to that doctor.
	DoctorID *uuid.UUID
}

func (r *PatientRepo) List(ctx context.Context, centerID uuid.UUID, f PatientFilter, p Page) ([]*Patient, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID), entsql.IsNull("deleted_at")}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	if f.Search != "" {
		preds = append(preds, entsql.Or(
			entsql.ContainsFold("first_name", f.Search),
			entsql.ContainsFold("last_name", f.Search),
			entsql.ContainsFold("file_number", f.Search),
			entsql.Contains("phone", f.Search),
		))
	}
	if f.DoctorID != nil {
		preds = append(preds, confirmedToDoctor(*f.DoctorID))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "patients", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(patientColumns...).From(sqlb.Table("patients")).Where(where).OrderBy(entsql.Desc("created_at"))
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanPatient)
	return list, total, err
}

type PatientUpdate struct {
	FirstName         *string
	LastName          *string
	NationalID        *string
	NationalIDHash    *string
	Phone             *string
	Email             *string
	BirthDate         *time.Time
	Gender            *string
	InsuranceProvider *string
	InsuranceNumber   *string
	UsesInsurance     *bool
	Status            *string
	Notes             *string
}

func (r *PatientRepo) Update(ctx context.Context, centerID, id uuid.UUID, in PatientUpdate) error {
	upd := sqlb.Update("patients").Set("updated_at", time.Now().UTC())
	set := func(col string, v any, ok bool) {
		if ok {
			upd.Set(col, v)
		}
	}
	set("first_name", in.FirstName, in.FirstName != nil)
	set("last_name", in.LastName, in.LastName != nil)
	set("national_id", in.NationalID, in.NationalID != nil)
	set("national_id_hash", in.NationalIDHash, in.NationalIDHash != nil)
	set("phone", in.Phone, in.Phone != nil)
	set("email", in.Email, in.Email != nil)
	set("birth_date", in.BirthDate, in.BirthDate != nil)
	set("gender", in.Gender, in.Gender != nil)
	set("insurance_provider", in.InsuranceProvider, in.InsuranceProvider != nil)
	set("insurance_number", in.InsuranceNumber, in.InsuranceNumber != nil)
	set("uses_insurance", in.UsesInsurance, in.UsesInsurance != nil)
	set("status", in.Status, in.Status != nil)
	set("notes", in.Notes, in.Notes != nil)

	return execOne(ctx, r.conn, upd.Where(entsql.And(
		entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.IsNull("deleted_at"))))
}

func (r *PatientRepo) SoftDelete(ctx context.Context, centerID, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Update("patients").
		Set("deleted_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.IsNull("deleted_at"))))
}
