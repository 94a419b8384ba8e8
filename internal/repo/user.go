package repo

import (
	"context"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var userColumns = []string{
	"id", "email", "phone", "password_hash", "first_name", "last_name",
	"status", "is_superadmin", "last_login_at", "created_at", "updated_at",
}

type UserRepo struct{ conn querier }

func scanUser(s scanner) (*User, error) {
	var u User
	err := s.Scan(&u.ID, &u.Email, &u.Phone, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Status, &u.IsSuperadmin, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) selectUsers() *entsql.Selector {
	return sqlb.Select(userColumns...).From(sqlb.Table("users")).Where(entsql.IsNull("deleted_at"))
}

func (r *UserRepo) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	if u.ID == uuid.Nil {
		u.ID = uuid.Must(uuid.NewV7())
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := exec(ctx, r.conn, sqlb.Insert("users").
		Set("id", u.ID).
		Set("email", u.Email).
		Set("phone", u.Phone).
		Set("password_hash", u.PasswordHash).
		Set("first_name", u.FirstName).
		Set("last_name", u.LastName).
		Set("status", u.Status).
		Set("is_superadmin", u.IsSuperadmin).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return queryOne(ctx, r.conn, r.selectUsers().Where(entsql.EQ("id", id)), scanUser)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	sel := r.selectUsers().Where(entsql.EQ("lower(email)", strings.ToLower(strings.TrimSpace(email))))
	return queryOne(ctx, r.conn, sel, scanUser)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return queryOne(ctx, r.conn, r.selectUsers().Where(entsql.EQ("phone", phone)), scanUser)
}

// UserUpdate holds optional profile changes; nil fields are left untouched.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Status    *string
}

func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, in UserUpdate) error {
	upd := sqlb.Update("users").Set("updated_at", time.Now().UTC())
	if in.FirstName != nil {
		upd.Set("first_name", *in.FirstName)
	}
	if in.LastName != nil {
		upd.Set("last_name", *in.LastName)
	}
	if in.Phone != nil {
		upd.Set("phone", *in.Phone)
	}
	if in.Status != nil {
		upd.Set("status", *in.Status)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(entsql.EQ("id", id), entsql.IsNull("deleted_at"))))
}

func (r *UserRepo) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	return execOne(ctx, r.conn, sqlb.Update("users").
		Set("password_hash", hash).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)))
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Update("users").
		Set("last_login_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)))
}

func (r *UserRepo) SetSuperadmin(ctx context.Context, id uuid.UUID, v bool) error {
	return execOne(ctx, r.conn, sqlb.Update("users").
		Set("is_superadmin", v).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)))
}
