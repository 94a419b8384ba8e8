package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var insuranceRequestColumns = []string{
	"id", "center_id", "patient_id", "queue_item_id", "provider", "policy_number", "status",
	"approved_amount", "required_documents", "reviewed_by", "reviewed_at", "review_notes",
	"created_at", "updated_at",
}

var insuranceDocumentColumns = []string{
	"id", "center_id", "insurance_request_id", "doc_type", "file_key", "file_name",
	"content_type", "size", "uploaded_by", "created_at",
}

type InsuranceRepo struct{ conn querier }

func scanInsuranceRequest(s scanner) (*InsuranceRequest, error) {
	var (
		r    InsuranceRequest
		docs []byte
	)
	if err := s.Scan(&r.ID, &r.CenterID, &r.PatientID, &r.QueueItemID, &r.Provider, &r.PolicyNumber,
		&r.Status, &r.ApprovedAmount, &docs, &r.ReviewedBy, &r.ReviewedAt, &r.ReviewNotes,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	list, err := decodeStrings(docs)
	if err != nil {
		return nil, err
	}
	r.RequiredDocuments = list
	return &r, nil
}

func scanInsuranceDocument(s scanner) (*InsuranceDocument, error) {
	var d InsuranceDocument
	if err := s.Scan(&d.ID, &d.CenterID, &d.RequestID, &d.DocType, &d.FileKey, &d.FileName,
		&d.ContentType, &d.Size, &d.UploadedBy, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *InsuranceRepo) CreateRequest(ctx context.Context, req *InsuranceRequest) error {
	now := time.Now().UTC()
	if req.ID == uuid.Nil {
		req.ID = uuid.Must(uuid.NewV7())
	}
	if req.RequiredDocuments == nil {
		req.RequiredDocuments = []string{}
	}
	req.Status = InsurancePending
	req.CreatedAt, req.UpdatedAt = now, now

	docs, err := jsonArg(req.RequiredDocuments)
	if err != nil {
		return err
	}
	_, err = exec(ctx, r.conn, sqlb.Insert("insurance_requests").
		Set("id", req.ID).
		Set("center_id", req.CenterID).
		Set("patient_id", req.PatientID).
		Set("queue_item_id", req.QueueItemID).
		Set("provider", req.Provider).
		Set("policy_number", req.PolicyNumber).
		Set("status", req.Status).
		Set("approved_amount", req.ApprovedAmount).
		Set("required_documents", docs).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *InsuranceRepo) GetRequest(ctx context.Context, centerID, id uuid.UUID) (*InsuranceRequest, error) {
	sel := sqlb.Select(insuranceRequestColumns...).From(sqlb.Table("insurance_requests")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanInsuranceRequest)
}

// Latest returns the newest request for the queue item, falling back to the
// newest patient-level request (no queue item) when the item has none.
func (r *InsuranceRepo) Latest(ctx context.Context, centerID, patientID uuid.UUID, queueItemID *uuid.UUID) (*InsuranceRequest, error) {
	base := func(p *entsql.Predicate) *entsql.Selector {
		return sqlb.Select(insuranceRequestColumns...).From(sqlb.Table("insurance_requests")).
			Where(entsql.And(entsql.EQ("center_id", centerID), p)).
			OrderBy(entsql.Desc("created_at")).
			Limit(1)
	}
	if queueItemID == nil {
		return queryOne(ctx, r.conn, base(entsql.EQ("patient_id", patientID)), scanInsuranceRequest)
	}
	req, err := queryOne(ctx, r.conn, base(entsql.EQ("queue_item_id", *queueItemID)), scanInsuranceRequest)
	if err == nil || !IsNotFound(err) {
		return req, err
	}
	return queryOne(ctx, r.conn, base(entsql.And(entsql.EQ("patient_id", patientID), entsql.IsNull("queue_item_id"))), scanInsuranceRequest)
}

type InsuranceFilter struct {
	PatientID *uuid.UUID
	Status    string
	// DoctorID restricts results to patients handed off to that doctor.
	DoctorID *uuid.UUID
}

func (r *InsuranceRepo) ListRequests(ctx context.Context, centerID uuid.UUID, f InsuranceFilter, p Page) ([]*InsuranceRequest, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID)}
	if f.PatientID != nil {
		preds = append(preds, entsql.EQ("patient_id", *f.PatientID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	if f.DoctorID != nil {
		preds = append(preds, handedTo("patient_id", *f.DoctorID))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "insurance_requests", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(insuranceRequestColumns...).From(sqlb.Table("insurance_requests")).
		Where(where).OrderBy(entsql.Desc("created_at"))
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanInsuranceRequest)
	return list, total, err
}

type InsuranceUpdate struct {
	Provider          *string
	PolicyNumber      *string
	RequiredDocuments []string
}

// UpdateRequest edits a pending request.
func (r *InsuranceRepo) UpdateRequest(ctx context.Context, centerID, id uuid.UUID, in InsuranceUpdate) error {
	upd := sqlb.Update("insurance_requests").Set("updated_at", time.Now().UTC())
	if in.Provider != nil {
		upd.Set("provider", *in.Provider)
	}
	if in.PolicyNumber != nil {
		upd.Set("policy_number", *in.PolicyNumber)
	}
	if in.RequiredDocuments != nil {
		docs, err := jsonArg(in.RequiredDocuments)
		if err != nil {
			return err
		}
		upd.Set("required_documents", docs)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(
		entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.EQ("status", InsurancePending))))
}

// Review records the decision on a pending request.
func (r *InsuranceRepo) Review(ctx context.Context, centerID, id uuid.UUID, status string, approvedAmount int64, reviewer *uuid.UUID, notes *string) error {
	now := time.Now().UTC()
	return execOne(ctx, r.conn, sqlb.Update("insurance_requests").
		Set("status", status).
		Set("approved_amount", approvedAmount).
		Set("reviewed_by", reviewer).
		Set("reviewed_at", now).
		Set("review_notes", notes).
		Set("updated_at", now).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.EQ("status", InsurancePending))))
}

func (r *InsuranceRepo) AddDocument(ctx context.Context, d *InsuranceDocument) error {
	now := time.Now().UTC()
	if d.ID == uuid.Nil {
		d.ID = uuid.Must(uuid.NewV7())
	}
	d.CreatedAt = now
	_, err := exec(ctx, r.conn, sqlb.Insert("insurance_documents").
		Set("id", d.ID).
		Set("center_id", d.CenterID).
		Set("insurance_request_id", d.RequestID).
		Set("doc_type", d.DocType).
		Set("file_key", d.FileKey).
		Set("file_name", d.FileName).
		Set("content_type", d.ContentType).
		Set("size", d.Size).
		Set("uploaded_by", d.UploadedBy).
		Set("created_at", now))
	return err
}

func (r *InsuranceRepo) GetDocument(ctx context.Context, centerID, id uuid.UUID) (*InsuranceDocument, error) {
	sel := sqlb.Select(insuranceDocumentColumns...).From(sqlb.Table("insurance_documents")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanInsuranceDocument)
}

func (r *InsuranceRepo) ListDocuments(ctx context.Context, centerID, requestID uuid.UUID) ([]*InsuranceDocument, error) {
	sel := sqlb.Select(insuranceDocumentColumns...).From(sqlb.Table("insurance_documents")).
		Where(entsql.And(entsql.EQ("insurance_request_id", requestID), entsql.EQ("center_id", centerID))).
		OrderBy("created_at")
	return queryAll(ctx, r.conn, sel, scanInsuranceDocument)
}

func (r *InsuranceRepo) DeleteDocument(ctx context.Context, centerID, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Delete("insurance_documents").
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID))))
}
