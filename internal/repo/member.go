package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var memberColumns = []string{
	qc("m", "id"), qc("m", "center_id"), qc("m", "user_id"), qc("m", "role"), qc("m", "specialty"),
	qc("m", "is_active"), qc("m", "created_at"), qc("m", "updated_at"),
	qc("u", "first_name"), qc("u", "last_name"), qc("u", "email"), qc("c", "name"),
}

type MemberRepo struct{ conn querier }

func scanMember(s scanner) (*CenterMember, error) {
	var m CenterMember
	if err := s.Scan(&m.ID, &m.CenterID, &m.UserID, &m.Role, &m.Specialty, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt, &m.FirstName, &m.LastName, &m.Email, &m.CenterName); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepo) selectMembers() *entsql.Selector {
	return sqlb.Select(memberColumns...).
		From(sqlb.Table("center_members").As("m")).
		Join(sqlb.Table("users").As("u")).On(qc("u", "id"), qc("m", "user_id")).
		Join(sqlb.Table("centers").As("c")).On(qc("c", "id"), qc("m", "center_id"))
}

func (r *MemberRepo) Create(ctx context.Context, m *CenterMember) error {
	now := time.Now().UTC()
	if m.ID == uuid.Nil {
		m.ID = uuid.Must(uuid.NewV7())
	}
	m.IsActive = true
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := exec(ctx, r.conn, sqlb.Insert("center_members").
		Set("id", m.ID).
		Set("center_id", m.CenterID).
		Set("user_id", m.UserID).
		Set("role", m.Role).
		Set("specialty", m.Specialty).
		Set("is_active", true).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *MemberRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*CenterMember, error) {
	sel := r.selectMembers().Where(entsql.And(entsql.EQ(qc("m", "id"), id), entsql.EQ(qc("m", "center_id"), centerID)))
	return queryOne(ctx, r.conn, sel, scanMember)
}

func (r *MemberRepo) GetByUser(ctx context.Context, centerID, userID uuid.UUID) (*CenterMember, error) {
	sel := r.selectMembers().Where(entsql.And(entsql.EQ(qc("m", "user_id"), userID), entsql.EQ(qc("m", "center_id"), centerID)))
	return queryOne(ctx, r.conn, sel, scanMember)
}

type MemberFilter struct {
	Role       string
	ActiveOnly bool
}

func (r *MemberRepo) List(ctx context.Context, centerID uuid.UUID, f MemberFilter, p Page) ([]*CenterMember, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID)}
	if f.Role != "" {
		preds = append(preds, entsql.EQ("role", f.Role))
	}
	if f.ActiveOnly {
		preds = append(preds, entsql.EQ("is_active", true))
	}
	total, err := count(ctx, r.conn, "center_members", entsql.And(preds...))
	if err != nil {
		return nil, 0, err
	}

	qualified := []*entsql.Predicate{entsql.EQ(qc("m", "center_id"), centerID)}
	if f.Role != "" {
		qualified = append(qualified, entsql.EQ(qc("m", "role"), f.Role))
	}
	if f.ActiveOnly {
		qualified = append(qualified, entsql.EQ(qc("m", "is_active"), true))
	}
	sel := r.selectMembers().Where(entsql.And(qualified...)).OrderBy(qc("u", "last_name"), qc("u", "first_name"))
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanMember)
	return list, total, err
}

// ListByUser returns every active membership of a user across centers.
func (r *MemberRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*CenterMember, error) {
	sel := r.selectMembers().
		Where(entsql.And(entsql.EQ(qc("m", "user_id"), userID), entsql.EQ(qc("m", "is_active"), true), entsql.IsNull(qc("c", "deleted_at")))).
		OrderBy(qc("c", "name"))
	return queryAll(ctx, r.conn, sel, scanMember)
}

type MemberUpdate struct {
	Role      *string
	Specialty *string
	IsActive  *bool
}

func (r *MemberRepo) Update(ctx context.Context, centerID, id uuid.UUID, in MemberUpdate) error {
	upd := sqlb.Update("center_members").Set("updated_at", time.Now().UTC())
	if in.Role != nil {
		upd.Set("role", *in.Role)
	}
	if in.Specialty != nil {
		upd.Set("specialty", *in.Specialty)
	}
	if in.IsActive != nil {
		upd.Set("is_active", *in.IsActive)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID))))
}
