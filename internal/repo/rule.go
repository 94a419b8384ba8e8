package repo

import (
	"context"
	"encoding/json"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var ruleColumns = []string{
	"id", "center_id", "name", "description", "trigger", "match", "conditions", "expression",
	"action", "priority", "is_active", "created_at", "updated_at",
}

type RuleRepo struct{ conn querier }

func scanRule(s scanner) (*BusinessRule, error) {
	var (
		r                  BusinessRule
		conditions, action []byte
	)
	if err := s.Scan(&r.ID, &r.CenterID, &r.Name, &r.Description, &r.Trigger, &r.Match, &conditions,
		&r.Expression, &action, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Conditions = json.RawMessage(conditions)
	r.Action = json.RawMessage(action)
	return &r, nil
}

func (r *RuleRepo) Create(ctx context.Context, rule *BusinessRule) error {
	now := time.Now().UTC()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.Must(uuid.NewV7())
	}
	rule.CreatedAt, rule.UpdatedAt = now, now

	_, err := exec(ctx, r.conn, sqlb.Insert("business_rules").
		Set("id", rule.ID).
		Set("center_id", rule.CenterID).
		Set("name", rule.Name).
		Set("description", rule.Description).
		Set("trigger", rule.Trigger).
		Set("match", rule.Match).
		Set("conditions", rawArg(rule.Conditions, "[]")).
		Set("expression", rule.Expression).
		Set("action", rawArg(rule.Action, "{}")).
		Set("priority", rule.Priority).
		Set("is_active", rule.IsActive).
		Set("created_at", now).
		Set("updated_at", now))
	return err
}

func (r *RuleRepo) Get(ctx context.Context, centerID, id uuid.UUID) (*BusinessRule, error) {
	sel := sqlb.Select(ruleColumns...).From(sqlb.Table("business_rules")).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID)))
	return queryOne(ctx, r.conn, sel, scanRule)
}

type RuleFilter struct {
	Trigger    string
	ActiveOnly bool
}

func (r *RuleRepo) List(ctx context.Context, centerID uuid.UUID, f RuleFilter, p Page) ([]*BusinessRule, int, error) {
	preds := []*entsql.Predicate{entsql.EQ("center_id", centerID)}
	if f.Trigger != "" {
		preds = append(preds, entsql.EQ("trigger", f.Trigger))
	}
	if f.ActiveOnly {
		preds = append(preds, entsql.EQ("is_active", true))
	}
	where := entsql.And(preds...)

	total, err := count(ctx, r.conn, "business_rules", where)
	if err != nil {
		return nil, 0, err
	}
	sel := sqlb.Select(ruleColumns...).From(sqlb.Table("business_rules")).Where(where).
		OrderBy(entsql.Desc("priority"), "created_at")
	list, err := queryAll(ctx, r.conn, p.apply(sel), scanRule)
	return list, total, err
}

// ListActive returns the active rules of a trigger, highest priority first.
func (r *RuleRepo) ListActive(ctx context.Context, centerID uuid.UUID, trigger string) ([]*BusinessRule, error) {
	list, _, err := r.List(ctx, centerID, RuleFilter{Trigger: trigger, ActiveOnly: true}, Page{})
	return list, err
}

type RuleUpdate struct {
	Name        *string
	Description *string
	Trigger     *string
	Match       *string
	Conditions  json.RawMessage
	Expression  *string
	Action      json.RawMessage
	Priority    *int
	IsActive    *bool
}

func (r *RuleRepo) Update(ctx context.Context, centerID, id uuid.UUID, in RuleUpdate) error {
	upd := sqlb.Update("business_rules").Set("updated_at", time.Now().UTC())
	if in.Name != nil {
		upd.Set("name", *in.Name)
	}
	if in.Description != nil {
		upd.Set("description", *in.Description)
	}
	if in.Trigger != nil {
		upd.Set("trigger", *in.Trigger)
	}
	if in.Match != nil {
		upd.Set("match", *in.Match)
	}
	if in.Conditions != nil {
		upd.Set("conditions", rawArg(in.Conditions, "[]"))
	}
	if in.Expression != nil {
		if *in.Expression == "" {
			upd.SetNull("expression")
		} else {
			upd.Set("expression", *in.Expression)
		}
	}
	if in.Action != nil {
		upd.Set("action", rawArg(in.Action, "{}"))
	}
	if in.Priority != nil {
		upd.Set("priority", *in.Priority)
	}
	if in.IsActive != nil {
		upd.Set("is_active", *in.IsActive)
	}
	return execOne(ctx, r.conn, upd.Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID))))
}

func (r *RuleRepo) Delete(ctx context.Context, centerID, id uuid.UUID) error {
	return execOne(ctx, r.conn, sqlb.Delete("business_rules").
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("center_id", centerID))))
}
