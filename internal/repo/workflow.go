package repo

import (
	"context"
	"encoding/json"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var workflowColumns = []string{"id", "center_id", "name", "trigger", "steps", "is_active", "created_at", "updated_at"}

type WorkflowRepo struct{ conn querier }

func scanWorkflow(s scanner) (*Workflow, error) {
	var (
		w     Workflow
		steps []byte
	)
	if err := s.Scan(&w.ID, &w.CenterID, &w.Name, &w.Trigger, &steps, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Steps = json.RawMessage(steps)
	return &w, nil
}

func (r *WorkflowRepo) Create(ctx context.Context, w *Workflow) error {
	now := time.Now().UTC()
	if w.ID == uuid.Nil {
		w.ID = uuid.Must(uuid.NewV7())
	}
	w.CreatedAt, w.UpdatedAt = now, now
	_, err := exec(ctx, r.conn, sqlb.Insert("workflows").
		Set("id", w.ID).
		Set("center_id", w.CenterID).
		Set("name", w.Name).
		Set("trigger", w.Trigger).
		Set("steps", rawArg(w.Steps, "[]")).
		Set("is_active", w.IsActive).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *WorkflowRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*Workflow, error) {
	sel := sqlb.Select(workflowColumns...).From(sqlb.Table("workflows")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanWorkflow)
}

func (r *WorkflowRepo) List(ctx context.Context, centerID uuid.UUID, trigger string, p Page) ([]*Workflow, int, error) {
	where := entsql.EQ("center_id", centerID)
	if trigger != "" {
		where = entsql.And(where, entsql.EQ("trigger", trigger))
	}
	total, err := count(ctx, r.conn, "workflows", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(workflowColumns...).From(sqlb.Table("workflows")).Where(where).OrderBy("name")
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanWorkflow)
	return list, total, err
}

type WorkflowUpdate struct {
	Name     *string
	Trigger  *string
	Steps    json.RawMessage
	IsActive *bool
}

func (r *WorkflowRepo) Update(ctx context.Context, centerID, id uuid.UUID, in WorkflowUpdate) error {
	upd := sqlb.Update("workflows").Set("updated_at", time.Now().UTC())
	if in.Name != nil {
		upd.Set("name", *in.Name)
	}
	if in.Trigger != nil {
		upd.Set("trigger", *in.Trigger)
	}
	if in.Steps != nil {
		upd.Set("steps", rawArg(in.Steps, "[]"))
	}
	if in.IsActive != nil {
		upd.Set("is_active", *in.IsActive)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID))))
}

func (r *WorkflowRepo) Delete(ctx context.Context, centerID, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Delete("workflows").
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID))))
}
