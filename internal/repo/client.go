// Package repo is the PostgreSQL data layer. Queries are built with ent's
// dialect/sql builder and executed over database/sql with lib/pq.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// sqlb builds Postgres-flavoured statements ($n placeholders, double-quoted identifiers).
var sqlb = entsql.Dialect(dialect.Postgres)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timedConn logs statements slower than threshold.
type timedConn struct {
	querier
	threshold time.Duration
}

func (t timedConn) observe(ctx context.Context, query string, start time.Time) {
	if d := time.Since(start); d >= t.threshold {
		slog.WarnContext(ctx, "slow query", "duration_ms", d.Milliseconds(), "query", query)
	}
}

func (t timedConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	defer t.observe(ctx, query, time.Now())
	return t.querier.ExecContext(ctx, query, args...)
}

func (t timedConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	defer t.observe(ctx, query, time.Now())
	return t.querier.QueryContext(ctx, query, args...)
}

func (t timedConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	defer t.observe(ctx, query, time.Now())
	return t.querier.QueryRowContext(ctx, query, args...)
}

type scanner interface {
	Scan(dest ...any) error
}

// Client groups the per-table repositories. A Client returned by WithTx
// routes every repository through the same transaction.
type Client struct {
	db   *sql.DB
	conn querier
	inTx bool
	slow time.Duration

	User         *UserRepo
	Center       *CenterRepo
	Member       *MemberRepo
	Patient      *PatientRepo
	Appointment  *AppointmentRepo
	Queue        *QueueRepo
	Visit        *VisitRepo
	Invoice      *InvoiceRepo
	Payment      *PaymentRepo
	Insurance    *InsuranceRepo
	Rule         *RuleRepo
	Workflow     *WorkflowRepo
	Message      *MessageRepo
	Webhook      *WebhookRepo
	Notification *NotificationRepo
	Dashboard    *DashboardRepo
}

func NewClient(db *sql.DB) *Client {
	return newClient(db, db, 0)
}

// NewClientWithSlowLog is NewClient that logs statements taking longer than
// threshold. A zero threshold disables logging.
func NewClientWithSlowLog(db *sql.DB, threshold time.Duration) *Client {
	return newClient(db, db, threshold)
}

func newClient(db *sql.DB, conn querier, slow time.Duration) *Client {
	if slow > 0 {
		conn = timedConn{querier: conn, threshold: slow}
	}
	return &Client{
		db:           db,
		conn:         conn,
		slow:         slow,
		User:         &UserRepo{conn: conn},
		Center:       &CenterRepo{conn: conn},
		Member:       &MemberRepo{conn: conn},
		Patient:      &PatientRepo{conn: conn},
		Appointment:  &AppointmentRepo{conn: conn},
		Queue:        &QueueRepo{conn: conn},
		Visit:        &VisitRepo{conn: conn},
		Invoice:      &InvoiceRepo{conn: conn},
		Payment:      &PaymentRepo{conn: conn},
		Insurance:    &InsuranceRepo{conn: conn},
		Rule:         &RuleRepo{conn: conn},
		Workflow:     &WorkflowRepo{conn: conn},
		Message:      &MessageRepo{conn: conn},
		Webhook:      &WebhookRepo{conn: conn},
		Notification: &NotificationRepo{conn: conn},
		Dashboard:    &DashboardRepo{conn: conn},
	}
}

// DB exposes the underlying pool.
func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Close() error { return c.db.Close() }

func (c *Client) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

// WithTx runs fn inside a transaction. fn's error rolls the transaction back.
// Nested calls reuse the outer transaction.
func (c *Client) WithTx(ctx context.Context, fn func(tx *Client) error) error {
	if c.inTx {
		return fn(c)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txc := newClient(c.db, tx, c.slow)
	txc.inTx = true
	if err := fn(txc); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w: rollback: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// exec runs a builder statement and reports whether it touched any row.
func exec(ctx context.Context, conn querier, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// execOne is exec that treats zero affected rows as ErrNotFound.
func execOne(ctx context.Context, conn querier, q entsql.Querier) error {
	n, err := exec(ctx, conn, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func count(ctx context.Context, conn querier, table string, where *entsql.Predicate) (int, error) {
	sel := sqlb.Select("COUNT(*)").From(sqlb.Table(table))
	if where != nil {
		sel.Where(where)
	}
	query, args := sel.Query()
	var n int
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

// queryAll runs sel and scans every row with fn.
func queryAll[T any](ctx context.Context, conn querier, sel *entsql.Selector, fn func(scanner) (*T, error)) ([]*T, error) {
	query, args := sel.Query()
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := fn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// queryOne runs sel and scans the single row with fn.
func queryOne[T any](ctx context.Context, conn querier, sel *entsql.Selector, fn func(scanner) (*T, error)) (*T, error) {
	query, args := sel.Query()
	v, err := fn(conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return v, nil
}

// exprP is entsql.ExprP with '?' placeholders rendered as numbered Postgres
// arguments, so raw fragments compose with builder predicates.
func exprP(expr string, args ...any) *entsql.Predicate {
	return entsql.P(func(b *entsql.Builder) {
		parts := strings.Split(expr, "?")
		for i, part := range parts {
			b.WriteString(part)
			if i < len(parts)-1 && i < len(args) {
				b.Arg(args[i])
			}
		}
	})
}

// qc renders a table-qualified, quoted column ("m"."id") for joined selects.
func qc(table, column string) string {
	return `"` + table + `"."` + column + `"`
}
