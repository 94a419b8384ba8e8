package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var centerColumns = []string{
	"id", "name", "slug", "phone", "address", "timezone", "is_active", "created_at", "updated_at",
}

type CenterRepo struct{ conn querier }

func scanCenter(s scanner) (*Center, error) {
	var c Center
	if err := s.Scan(&c.ID, &c.Name, &c.Slug, &c.Phone, &c.Address, &c.Timezone,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CenterRepo) selectCenters() *entsql.Selector {
	return sqlb.Select(centerColumns...).From(sqlb.Table("centers")).Where(entsql.IsNull("deleted_at"))
}

func (r *CenterRepo) Create(ctx context.Context, c *Center) error {
	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.Must(uuid.NewV7())
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	c.IsActive = true
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := exec(ctx, r.conn, sqlb.Insert("centers").
		Set("id", c.ID).
		Set("name", c.Name).
		Set("slug", c.Slug).
		Set("phone", c.Phone).
		Set("address", c.Address).
		Set("timezone", c.Timezone).
		Set("is_active", c.IsActive).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *CenterRepo) Get(ctx context.Context, id uuid.UUID) (*Center, error) {
	return queryOne(ctx, r.conn, r.selectCenters().Where(entsql.EQ("id", id)), scanCenter)
}

func (r *CenterRepo) GetBySlug(ctx context.Context, slug string) (*Center, error) {
	return queryOne(ctx, r.conn, r.selectCenters().Where(entsql.EQ("slug", slug)), scanCenter)
}

// List returns all centers, or only those userID is an active member of
// when userID is non-nil.
func (r *CenterRepo) List(ctx context.Context, userID *uuid.UUID, p Page) ([]*Center, int, error) {
	where := entsql.IsNull("deleted_at")
	if userID != nil {
		where = entsql.And(where, exprP(
			`id IN (SELECT center_id FROM center_members WHERE user_id = ? AND is_active)`, *userID))
	}
	total, err := count(ctx, r.conn, "centers", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(centerColumns...).From(sqlb.Table("centers")).Where(where).OrderBy("name")
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanCenter)
	return list, total, err
}

type CenterUpdate struct {
	Name     *string
	Phone    *string
	Address  *string
	Timezone *string
	IsActive *bool
}

func (r *CenterRepo) Update(ctx context.Context, id uuid.UUID, in CenterUpdate) error {
	upd := sqlb.Update("centers").Set("updated_at", time.Now().UTC())
	if in.Name != nil {
		upd.Set("name", *in.Name)
	}
	if in.Phone != nil {
		upd.Set("phone", *in.Phone)
	}
	if in.Address != nil {
		upd.Set("address", *in.Address)
	}
	if in.Timezone != nil {
		upd.Set("timezone", *in.Timezone)
	}
	if in.IsActive != nil {
		upd.Set("is_active", *in.IsActive)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(entsql.EQ("id", id), entsql.IsNull("deleted_at"))))
}

func (r *CenterRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return execOne(ctx, r.conn, sqlb.Update("centers").
		Set("deleted_at", now).
		Set("is_active", false).
		Where(entsql.And(entsql.EQ("id", id), entsql.IsNull("deleted_at"))))
}
