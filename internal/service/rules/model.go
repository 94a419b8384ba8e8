package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/casbin/govaluate"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
)

const (
	TriggerConfirmToDoctor   = "confirm_to_doctor"
	TriggerAppointmentCreate = "appointment_create"
	TriggerInvoiceIssue      = "invoice_issue"
	TriggerPaymentRecord     = "payment_record"
)

// Triggers lists every trigger a rule may be attached to.
var Triggers = []string{TriggerConfirmToDoctor, TriggerAppointmentCreate, TriggerInvoiceIssue, TriggerPaymentRecord}

const (
	MatchAll = "all"
	MatchAny = "any"
)

const (
	OpEq        = "eq"
	OpNeq       = "neq"
	OpGt        = "gt"
	OpGte       = "gte"
	OpLt        = "lt"
	OpLte       = "lte"
	OpIn        = "in"
	OpNotIn     = "not_in"
	OpContains  = "contains"
	OpExists    = "exists"
	OpNotExists = "not_exists"
)

const (
	ActionBlock            = "block"
	ActionWarn             = "warn"
	ActionRequirePayment   = "require_payment"
	ActionRequireInsurance = "require_insurance"
	ActionNotify           = "notify"
)

type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

type Action struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Rule is a stored business rule with its JSON columns decoded.
type Rule struct {
	ID         string
	Name       string
	Trigger    string
	Match      string
	Priority   int
	Conditions []Condition
	Expression *govaluate.EvaluableExpression
	Action     Action
}

func IsValidTrigger(t string) bool {
	for _, v := range Triggers {
		if v == t {
			return true
		}
	}
	return false
}

func validOperator(op string) bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpContains, OpExists, OpNotExists:
		return true
	}
	return false
}

func validAction(t string) bool {
	switch t {
	case ActionBlock, ActionWarn, ActionRequirePayment, ActionRequireInsurance, ActionNotify:
		return true
	}
	return false
}

// ParseConditions decodes and validates a conditions column.
func ParseConditions(raw json.RawMessage) ([]Condition, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var conds []Condition
	if err := json.Unmarshal(raw, &conds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	for i, c := range conds {
		if strings.TrimSpace(c.Field) == "" {
			return nil, fmt.Errorf("%w: condition %d has no field", ErrInvalidCondition, i)
		}
		if !validOperator(c.Operator) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, c.Operator)
		}
		if c.Operator == OpIn || c.Operator == OpNotIn {
			if _, ok := c.Value.([]any); !ok {
				return nil, fmt.Errorf("%w: %s needs a list value", ErrInvalidCondition, c.Operator)
			}
		}
	}
	return conds, nil
}

func ParseAction(raw json.RawMessage) (Action, error) {
	var a Action
	if len(raw) == 0 {
		return a, fmt.Errorf("%w: missing", ErrInvalidAction)
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	if !validAction(a.Type) {
		return a, fmt.Errorf("%w: type %q", ErrInvalidAction, a.Type)
	}
	return a, nil
}

// CompileExpression parses a govaluate expression. Variables use bracket
// syntax with dotted paths, e.g. [invoice.outstanding] > 0.
func CompileExpression(expr string) (*govaluate.EvaluableExpression, error) {
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return e, nil
}

// Decode turns a stored row into a Rule.
func Decode(br *repo.BusinessRule) (*Rule, error) {
	conds, err := ParseConditions(br.Conditions)
	if err != nil {
		return nil, err
	}
	action, err := ParseAction(br.Action)
	if err != nil {
		return nil, err
	}
	r := &Rule{
		ID:         br.ID.String(),
		Name:       br.Name,
		Trigger:    br.Trigger,
		Match:      br.Match,
		Priority:   br.Priority,
		Conditions: conds,
		Action:     action,
	}
	if r.Match == "" {
		r.Match = MatchAll
	}
	if br.Expression != nil && strings.TrimSpace(*br.Expression) != "" {
		if r.Expression, err = CompileExpression(*br.Expression); err != nil {
			return nil, err
		}
	}
	return r, nil
}
