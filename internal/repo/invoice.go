package repo

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var invoiceColumns = []string{
	"id", "center_id", "patient_id", "queue_item_id", "visit_id", "number", "status", "subtotal",
	"discount", "insurance_share", "total", "paid_amount", "currency", "issued_at", "created_at", "updated_at",
}

var invoiceItemColumns = []string{
	"id", "invoice_id", "description", "quantity", "unit_price", "amount", "created_at",
}

type InvoiceRepo struct{ conn querier }

func scanInvoice(s scanner) (*Invoice, error) {
	var i Invoice
	if err := s.Scan(&i.ID, &i.CenterID, &i.PatientID, &i.QueueItemID, &i.VisitID, &i.Number, &i.Status,
		&i.Subtotal, &i.Discount, &i.InsuranceShare, &i.Total, &i.PaidAmount, &i.Currency, &i.IssuedAt,
		&i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func scanInvoiceItem(s scanner) (*InvoiceItem, error) {
	var it InvoiceItem
	if err := s.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Amount, &it.CreatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

// nextNumber allocates INV-<year>-<seq> for the center. Must run in a transaction.
func (r *InvoiceRepo) nextNumber(ctx context.Context, centerID uuid.UUID, now time.Time) (string, error) {
	if _, err := r.conn.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "invoice:"+centerID.String()); err != nil {
		return "", mapErr(err)
	}
	prefix := fmt.Sprintf("INV-%d-", now.Year())
	var n int
	if err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE center_id = $1 AND number LIKE $2`,
		centerID, prefix+"%",
	).Scan(&n); err != nil {
		return "", mapErr(err)
	}
	return fmt.Sprintf("%s%06d", prefix, n+1), nil
}

// Create inserts the invoice with its items, numbering it. Call inside WithTx.
func (r *InvoiceRepo) Create(ctx context.Context, inv *Invoice) error {
	now := time.Now().UTC()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.Must(uuid.NewV7())
	}
	if inv.Status == "" {
		inv.Status = InvoiceDraft
	}
	number, err := r.nextNumber(ctx, inv.CenterID, now)
	if err != nil {
		return err
	}
	inv.Number = number
	inv.CreatedAt, inv.UpdatedAt = now, now

	if _, err := exec(ctx, r.conn, sqlb.Insert("invoices").
		Set("id", inv.ID).
		Set("center_id", inv.CenterID).
		Set("patient_id", inv.PatientID).
		Set("queue_item_id", inv.QueueItemID).
		Set("visit_id", inv.VisitID).
		Set("number", inv.Number).
		Set("status", inv.Status).
		Set("subtotal", inv.Subtotal).
		Set("discount", inv.Discount).
		Set("insurance_share", inv.InsuranceShare).
		Set("total", inv.Total).
		Set("paid_amount", int64(0)).
		Set("currency", inv.Currency).
		Set("issued_at", inv.IssuedAt).
		Set("created_at", now).
		Set("updated_at", now)); err != nil {
		return err
	}

	for _, it := range inv.Items {
		if it.ID == uuid.Nil {
			it.ID = uuid.Must(uuid.NewV7())
		}
		it.InvoiceID = inv.ID
		it.CreatedAt = now
		if _, err := exec(ctx, r.conn, sqlb.Insert("invoice_items").
			Set("id", it.ID).
			Set("invoice_id", it.InvoiceID).
			Set("description", it.Description).
			Set("quantity", it.Quantity).
			Set("unit_price", it.UnitPrice).
			Set("amount", it.Amount).
			Set("created_at", now)); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the invoice with its items.
func (r *InvoiceRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*Invoice, error) {
	sel := sqlb.Select(invoiceColumns...).From(sqlb.Table("invoices")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	inv, err := queryOne(ctx, r.conn, sel, scanInvoice)
	if err != nil {
		return nil, err
	}
	items, err := queryAll(ctx, r.conn, sqlb.Select(invoiceItemColumns...).From(sqlb.Table("invoice_items")).
		Where(entsql.EQ("invoice_id", id)).OrderBy("created_at"), scanInvoiceItem)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

// GetForUpdate locks the invoice row for the rest of the transaction.
func (r *InvoiceRepo) GetForUpdate(ctx context.Context, centerID, id uuid.UUID) (*Invoice, error) {
	sel := sqlb.Select(invoiceColumns...).From(sqlb.Table("invoices")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID))).
		ForUpdate()
	return queryOne(ctx, r.conn, sel, scanInvoice)
}

type InvoiceFilter struct {
	PatientID   *uuid.UUID
	QueueItemID *uuid.UUID
	Status      string
}

func (r *InvoiceRepo) List(ctx context.Context, centerID uuid.UUID, f InvoiceFilter, p Page) ([]*Invoice, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID)}
	if f.PatientID != nil {
		preds = append(preds, entsql.EQ("patient_id", *f.PatientID))
	}
	if f.QueueItemID != nil {
		preds = append(preds, entsql.EQ("queue_item_id", *f.QueueItemID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "invoices", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(invoiceColumns...).From(sqlb.Table("invoices")).Where(where).OrderBy(entsql.Desc("created_at"))
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanInvoice)
	return list, total, err
}

// ListBillable returns non-void invoices linked to a queue item, or when
// queueItemID is nil, the patient's open invoices.
func (r *InvoiceRepo) ListBillable(ctx context.Context, centerID, patientID uuid.UUID, queueItemID *uuid.UUID) ([]*Invoice, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("center_id", centerID),
		entsql.EQ("patient_id", patientID),
		entsql.NotIn("status", InvoiceVoid, InvoiceDraft),
	}
	if queueItemID != nil {
		preds = append(preds, entsql.EQ("queue_item_id", *queueItemID))
	} else {
		preds = append(preds, entsql.In("status", InvoiceIssued, InvoicePartiallyPaid))
	}
	sel := sqlb.Select(invoiceColumns...).From(sqlb.Table("invoices")).Where(entsql.And(preds...)).OrderBy("created_at")
	return queryAll(ctx, r.conn, sel, scanInvoice)
}

// Issue moves a draft invoice to issued.
func (r *InvoiceRepo) Issue(ctx context.Context, centerID, id uuid.UUID) error {
	now := time.Now().UTC()
	return execOne(ctx, r.conn, sqlb.Update("invoices").
		Set("status", InvoiceIssued).
		Set("issued_at", now).
		Set("updated_at", now).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID), entsql.EQ("status", InvoiceDraft))))
}

// Void cancels an invoice that has not received any payment.
func (r *InvoiceRepo) Void(ctx context.Context, centerID, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Update("invoices").
		Set("status", InvoiceVoid).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("id", id), entsql.EQ("center_id", centerID),
			entsql.In("status", InvoiceDraft, InvoiceIssued), entsql.EQ("paid_amount", 0))))
}

// ApplyPayment adds amount to paid_amount and derives the status from it.
// The guard keeps paid_amount within total and skips draft/void invoices.
func (r *InvoiceRepo) ApplyPayment(ctx context.Context, id uuid.UUID, amount int64) (*Invoice, error) {
	row := r.conn.QueryRowContext(ctx, `
UPDATE invoices SET
    paid_amount = paid_amount + $2,
    status = CASE
        WHEN paid_amount + $2 >= total THEN 'paid'
        WHEN paid_amount + $2 > 0 THEN 'partially_paid'
        ELSE 'issued'
    END,
    updated_at = NOW()
WHERE id = $1
  AND status IN ('issued', 'partially_paid')
  AND paid_amount + $2 <= total
RETURNING id, center_id, patient_id, queue_item_id, visit_id, number, status, subtotal, discount,
          insurance_share, total, paid_amount, currency, issued_at, created_at, updated_at`, id, amount)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return inv, nil
}

// DeriveInvoiceStatus maps paid amount to status for issued invoices.
func DeriveInvoiceStatus(total, paid int64) string {
	switch {
	case paid <= 0:
		return InvoiceIssued
	case paid < total:
		return InvoicePartiallyPaid
	default:
		return InvoicePaid
	}
}
