package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// DashboardRepo runs the aggregate queries behind role dashboards.
type DashboardRepo struct{ conn querier }

func (r *DashboardRepo) groupCount(ctx context.Context, table, column string, where *entsql.Predicate) (map[string]int, error) {
	sel := sqlb.Select(column, "COUNT(*)").From(sqlb.Table(table)).Where(where).GroupBy(column)
	query, args := sel.Query()
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			k string
			n int
		)
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

// QueueByStatus counts a day's queue items per status, optionally for one doctor.
func (r *DashboardRepo) QueueByStatus(ctx context.Context, centerID uuid.UUID, day time.Time, doctorID *uuid.UUID) (map[string]int, error) {
	where := entsql.And(entsql.EQ("center_id", centerID), entsql.EQ("queue_date", day.Format(time.DateOnly)))
	if doctorID != nil {
		where = entsql.And(where, entsql.EQ("doctor_id", *doctorID))
	}
	return r.groupCount(ctx, "queue_items", "status", where)
}

func (r *DashboardRepo) InvoicesByStatus(ctx context.Context, centerID uuid.UUID) (map[string]int, error) {
	return r.groupCount(ctx, "invoices", "status", entsql.EQ("center_id", centerID))
}

func (r *DashboardRepo) InsuranceByStatus(ctx context.Context, centerID uuid.UUID) (map[string]int, error) {
	return r.groupCount(ctx, "insurance_requests", "status", entsql.EQ("center_id", centerID))
}

// Outstanding sums unpaid balances of issued and partially paid invoices.
func (r *DashboardRepo) Outstanding(ctx context.Context, centerID uuid.UUID) (int64, error) {
	sel := sqlb.Select("COALESCE(SUM(total - paid_amount), 0)").From(sqlb.Table("invoices")).
		Where(entsql.And(entsql.EQ("center_id", centerID), entsql.In("status", InvoiceIssued, InvoicePartiallyPaid)))
	return r.sum(ctx, sel)
}

// Revenue sums successful payments with paid_at in [from, to).
func (r *DashboardRepo) Revenue(ctx context.Context, centerID uuid.UUID, from, to time.Time) (int64, error) {
	sel := sqlb.Select("COALESCE(SUM(amount), 0)").From(sqlb.Table("payments")).
		Where(entsql.And(
			entsql.EQ("center_id", centerID),
			entsql.EQ("status", PaymentSuccess),
			entsql.GTE("paid_at", from.UTC()),
			entsql.LT("paid_at", to.UTC()),
		))
	return r.sum(ctx, sel)
}

func (r *DashboardRepo) OpenVisits(ctx context.Context, centerID uuid.UUID, doctorID *uuid.UUID) (int, error) {
	where := entsql.And(entsql.EQ("center_id", centerID), entsql.EQ("status", VisitOpen))
	if doctorID != nil {
		where = entsql.And(where, entsql.EQ("doctor_id", *doctorID))
	}
	return count(ctx, r.conn, "visits", where)
}

// Appointments counts live appointments starting in [from, to).
func (r *DashboardRepo) Appointments(ctx context.Context, centerID uuid.UUID, doctorID *uuid.UUID, from, to time.Time) (int, error) {
	where := entsql.And(
		entsql.EQ("center_id", centerID),
		entsql.In("status", AppointmentPending, AppointmentConfirmed, AppointmentCompleted),
		entsql.GTE("start_time", from.UTC()),
		entsql.LT("start_time", to.UTC()),
	)
	if doctorID != nil {
		where = entsql.And(where, entsql.EQ("doctor_id", *doctorID))
	}
	return count(ctx, r.conn, "appointments", where)
}

func (r *DashboardRepo) sum(ctx context.Context, sel *entsql.Selector) (int64, error) {
	query, args := sel.Query()
	var n int64
	if err := r.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
