package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var paymentColumns = []string{
	"id", "center_id", "invoice_id", "amount", "method", "reference", "gateway_authority",
	"status", "received_by", "paid_at", "created_at", "updated_at",
}

type PaymentRepo struct{ conn querier }

func scanPayment(s scanner) (*Payment, error) {
	var p Payment
	if err := s.Scan(&p.ID, &p.CenterID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference,
		&p.GatewayAuthority, &p.Status, &p.ReceivedBy, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) Create(ctx context.Context, p *Payment) error {
	now := time.Now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.Must(uuid.NewV7())
	}
	if p.Status == "" {
		p.Status = PaymentPending
	}
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := exec(ctx, r.conn, sqlb.Insert("payments").
		Set("id", p.ID).
		Set("center_id", p.CenterID).
		Set("invoice_id", p.InvoiceID).
		Set("amount", p.Amount).
		Set("method", p.Method).
		Set("reference", p.Reference).
		Set("gateway_authority", p.GatewayAuthority).
		Set("status", p.Status).
		Set("received_by", p.ReceivedBy).
		Set("paid_at", p.PaidAt).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *PaymentRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*Payment, error) {
	sel := sqlb.Select(paymentColumns...).From(sqlb.Table("payments")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanPayment)
}

// GetByAuthority finds an online payment by its gateway authority, locking it.
func (r *PaymentRepo) GetByAuthority(ctx context.Context, authority string) (*Payment, error) {
	sel := sqlb.Select(paymentColumns...).From(sqlb.Table("payments")).
		Where(entsql.EQ("gateway_authority", authority)).
		ForUpdate()
	return queryOne(ctx, r.conn, sel, scanPayment)
}

func (r *PaymentRepo) SetAuthority(ctx context.Context, id uuid.UUID, authority string) error {
	return execOne(ctx, r.conn, sqlb.Update("payments").
		Set("gateway_authority", authority).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", PaymentPending))))
}

// Settle moves a pending payment to success or failed.
func (r *PaymentRepo) Settle(ctx context.Context, id uuid.UUID, status string, reference *string) error {
	now := time.Now().UTC()
	upd := sqlb.Update("payments").
		Set("status", status).
		Set("updated_at", now)
	if status == PaymentSuccess {
		upd.Set("paid_at", now)
	}
	if reference != nil {
		upd.Set("reference", *reference)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", PaymentPending))))
}

type PaymentFilter struct {
	InvoiceID *uuid.UUID
	Status    string
}

func (r *PaymentRepo) List(ctx context.Context, centerID uuid.UUID, f PaymentFilter, p Page) ([]*Payment, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID)}
	if f.InvoiceID != nil {
		preds = append(preds, entsql.EQ("invoice_id", *f.InvoiceID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "payments", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(paymentColumns...).From(sqlb.Table("payments")).Where(where).OrderBy(entsql.Desc("created_at"))
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanPayment)
	return list, total, err
}
