// Package rules stores admin-configured business rules and evaluates them
// against a request context at the trigger points of the workflow.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/pkg/observability"
)

func redisKeyRules(centerID uuid.UUID, trigger string) string {
	return "rules:" + centerID.String() + ":" + trigger
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Trigger     string          `json:"trigger"`
	Match       string          `json:"match"`
	Conditions  json.RawMessage `json:"conditions"`
	Expression  *string         `json:"expression"`
	Action      json.RawMessage `json:"action"`
	Priority    int             `json:"priority"`
	IsActive    *bool           `json:"is_active"`
}

type UpdateRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Trigger     *string         `json:"trigger"`
	Match       *string         `json:"match"`
	Conditions  json.RawMessage `json:"conditions"`
	Expression  *string         `json:"expression"`
	Action      json.RawMessage `json:"action"`
	Priority    *int            `json:"priority"`
	IsActive    *bool           `json:"is_active"`
}

type ListRequest struct {
	pagination.Request
	Trigger    string
	ActiveOnly bool
}

// DryRunRequest evaluates either the stored rules of a trigger or, when Rule
// is set, a single unsaved rule.
type DryRunRequest struct {
	Trigger string         `json:"trigger"`
	Context map[string]any `json:"context"`
	Rule    *CreateRequest `json:"rule,omitempty"`
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	List(ctx context.Context, centerID uuid.UUID, req ListRequest) (*pagination.Result[*repo.BusinessRule], error)
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.BusinessRule, error)
	Create(ctx context.Context, centerID uuid.UUID, req CreateRequest) (*repo.BusinessRule, error)
	Update(ctx context.Context, centerID, id uuid.UUID, req UpdateRequest) (*repo.BusinessRule, error)
	Delete(ctx context.Context, centerID, id uuid.UUID) error

	// Evaluate runs the active rules of trigger against data.
	Evaluate(ctx context.Context, centerID uuid.UUID, trigger string, data map[string]any) (*Result, error)
	DryRun(ctx context.Context, centerID uuid.UUID, req DryRunRequest) (*Result, error)
}

// Store is the persistence the service needs; *repo.RuleRepo satisfies it.
type Store interface {
	Create(ctx context.Context, rule *repo.BusinessRule) error
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.BusinessRule, error)
	List(ctx context.Context, centerID uuid.UUID, f repo.RuleFilter, p repo.Page) ([]*repo.BusinessRule, int, error)
	ListActive(ctx context.Context, centerID uuid.UUID, trigger string) ([]*repo.BusinessRule, error)
	Update(ctx context.Context, centerID, id uuid.UUID, in repo.RuleUpdate) error
	Delete(ctx context.Context, centerID, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type rulesService struct {
	store   Store
	rdb     *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// New builds the service. rdb may be nil, which disables the rule cache.
func New(store Store, rdb *redis.Client, cfg *config.Config, metrics *observability.Metrics) Service {
	ttl := time.Duration(cfg.Rules.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &rulesService{store: store, rdb: rdb, ttl: ttl, metrics: metrics}
}

func (s *rulesService) List(ctx context.Context, centerID uuid.UUID, req ListRequest) (*pagination.Result[*repo.BusinessRule], error) {
	list, total, err := s.store.List(ctx, centerID,
		repo.RuleFilter{Trigger: req.Trigger, ActiveOnly: req.ActiveOnly}, req.Repo())
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return pagination.NewResult(list, total, req.Request), nil
}

func (s *rulesService) Get(ctx context.Context, centerID, id uuid.UUID) (*repo.BusinessRule, error) {
	r, err := s.store.Get(ctx, centerID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return r, nil
}

func (s *rulesService) Create(ctx context.Context, centerID uuid.UUID, req CreateRequest) (*repo.BusinessRule, error) {
	br, err := buildRule(centerID, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, br); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	s.invalidate(ctx, centerID)
	return br, nil
}

func (s *rulesService) Update(ctx context.Context, centerID, id uuid.UUID, req UpdateRequest) (*repo.BusinessRule, error) {
	cur, err := s.Get(ctx, centerID, id)
	if err != nil {
		return nil, err
	}

	// Validate the merged rule before writing anything.
	merged := *cur
	if req.Name != nil {
		merged.Name = strings.TrimSpace(*req.Name)
	}
	if req.Trigger != nil {
		merged.Trigger = *req.Trigger
	}
	if req.Match != nil {
		merged.Match = *req.Match
	}
	if len(req.Conditions) > 0 {
		merged.Conditions = req.Conditions
	}
	if req.Expression != nil {
		merged.Expression = req.Expression
	}
	if len(req.Action) > 0 {
		merged.Action = req.Action
	}
	if err := validateRow(&merged); err != nil {
		return nil, err
	}

	var name *string
	if req.Name != nil {
		name = &merged.Name
	}
	upd := repo.RuleUpdate{
		Name:        name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Match:       req.Match,
		Conditions:  req.Conditions,
		Expression:  req.Expression,
		Action:      req.Action,
		Priority:    req.Priority,
		IsActive:    req.IsActive,
	}
	if err := s.store.Update(ctx, centerID, id, upd); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("update rule: %w", err)
	}
	s.invalidate(ctx, centerID)
	return s.Get(ctx, centerID, id)
}

func (s *rulesService) Delete(ctx context.Context, centerID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, centerID, id); err != nil {
		if repo.IsNotFound(err) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("delete rule: %w", err)
	}
	s.invalidate(ctx, centerID)
	return nil
}

func (s *rulesService) Evaluate(ctx context.Context, centerID uuid.UUID, trigger string, data map[string]any) (*Result, error) {
	if !IsValidTrigger(trigger) {
		return nil, ErrInvalidTrigger
	}
	rows, err := s.activeRules(ctx, centerID, trigger)
	if err != nil {
		return nil, err
	}

	list := make([]*Rule, 0, len(rows))
	for _, row := range rows {
		r, err := Decode(row)
		if err != nil {
			// Stored rules are validated on write; skip rows that still fail.
			slog.WarnContext(ctx, "skipping invalid business rule", "rule_id", row.ID, "error", err)
			continue
		}
		list = append(list, r)
	}

	res := EvaluateRules(trigger, list, data)
	for _, m := range res.Matches {
		s.metrics.RuleMatch(ctx, trigger, m.Action.Type)
	}
	if len(res.Errors) > 0 {
		slog.WarnContext(ctx, "business rule evaluation errors", "trigger", trigger, "errors", res.Errors)
	}
	return res, nil
}

func (s *rulesService) DryRun(ctx context.Context, centerID uuid.UUID, req DryRunRequest) (*Result, error) {
	data := req.Context
	if data == nil {
		data = map[string]any{}
	}
	if req.Rule == nil {
		return s.Evaluate(ctx, centerID, req.Trigger, data)
	}

	br, err := buildRule(centerID, *req.Rule)
	if err != nil {
		return nil, err
	}
	r, err := Decode(br)
	if err != nil {
		return nil, err
	}
	return EvaluateRules(br.Trigger, []*Rule{r}, data), nil
}

// activeRules reads through the Redis cache.
func (s *rulesService) activeRules(ctx context.Context, centerID uuid.UUID, trigger string) ([]*repo.BusinessRule, error) {
	key := redisKeyRules(centerID, trigger)
	if s.rdb != nil {
		b, err := s.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var cached []*repo.BusinessRule
			if jerr := json.Unmarshal(b, &cached); jerr == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			slog.WarnContext(ctx, "rule cache read failed", "key", key, "error", err)
		}
	}

	rows, err := s.store.ListActive(ctx, centerID, trigger)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	if s.rdb != nil {
		if b, err := json.Marshal(rows); err == nil {
			if err := s.rdb.Set(ctx, key, b, s.ttl).Err(); err != nil {
				slog.WarnContext(ctx, "rule cache write failed", "key", key, "error", err)
			}
		}
	}
	return rows, nil
}

func (s *rulesService) invalidate(ctx context.Context, centerID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	keys := make([]string, len(Triggers))
	for i, t := range Triggers {
		keys[i] = redisKeyRules(centerID, t)
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.WarnContext(ctx, "rule cache invalidation failed", "center_id", centerID, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func buildRule(centerID uuid.UUID, req CreateRequest) (*repo.BusinessRule, error) {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	match := req.Match
	if match == "" {
		match = MatchAll
	}
	conds := req.Conditions
	if len(conds) == 0 {
		conds = json.RawMessage("[]")
	}
	br := &repo.BusinessRule{
		CenterID:    centerID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Trigger:     req.Trigger,
		Match:       match,
		Conditions:  conds,
		Expression:  req.Expression,
		Action:      req.Action,
		Priority:    req.Priority,
		IsActive:    active,
	}
	if err := validateRow(br); err != nil {
		return nil, err
	}
	return br, nil
}

func validateRow(br *repo.BusinessRule) error {
	if br.Name == "" {
		return ErrNameRequired
	}
	if !IsValidTrigger(br.Trigger) {
		return ErrInvalidTrigger
	}
	if br.Match != MatchAll && br.Match != MatchAny {
		return ErrInvalidMatch
	}
	_, err := Decode(br)
	return err
}
