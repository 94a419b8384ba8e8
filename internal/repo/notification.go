package repo

import (
	"context"
	"encoding/json"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var notificationColumns = []string{"id", "user_id", "center_id", "type", "title", "body", "data", "is_read", "created_at"}

type NotificationRepo struct{ conn querier }

func scanNotification(s scanner) (*Notification, error) {
	var (
		n    Notification
		data []byte
	)
	if err := s.Scan(&n.ID, &n.UserID, &n.CenterID, &n.Type, &n.Title, &n.Body, &data, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Data = json.RawMessage(data)
	return &n, nil
}

func (r *NotificationRepo) Create(ctx context.Context, n *Notification) error {
	now := time.Now().UTC()
	if n.ID == uuid.Nil {
		n.ID = uuid.Must(uuid.NewV7())
	}
	n.CreatedAt = now
	_, err := exec(ctx, r.conn, sqlb.Insert("notifications").
		Set("id", n.ID).
		Set("user_id", n.UserID).
		Set("center_id", n.CenterID).
		Set("type", n.Type).
		Set("title", n.Title).
		Set("body", n.Body).
		Set("data", rawArg(n.Data, "{}")).
		Set("is_read", false).
		Set("created_at", now))
	return err
}

func (r *NotificationRepo) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, p Page) ([]*Notification, int, error) {
	where := entsql.EQ("user_id", userID)
	if unreadOnly {
		where = entsql.And(where, entsql.EQ("is_read", false))
	}
	total, err := count(ctx, r.conn, "notifications", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(notificationColumns...).From(sqlb.Table("notifications")).Where(where).OrderBy(entsql.Desc("created_at"))
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanNotification)
	return list, total, err
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return count(ctx, r.conn, "notifications", entsql.And(entsql.EQ("user_id", userID), entsql.EQ("is_read", false)))
}

func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Update("notifications").
		Set("is_read", true).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("user_id", userID))))
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return exec(ctx, r.conn, sqlb.Update("notifications").
		Set("is_read", true).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("is_read", false))))
}
