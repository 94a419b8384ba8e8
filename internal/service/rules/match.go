package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Match is one rule that fired.
type Match struct {
	RuleID   string `json:"rule_id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Action   Action `json:"action"`
}

// Result collects every match of one evaluation, highest priority first.
type Result struct {
	Trigger string   `json:"trigger"`
	Matches []Match  `json:"matches"`
	Errors  []string `json:"errors,omitempty"`
}

// Blocking returns the first block action, if any.
func (r *Result) Blocking() *Match {
	if r == nil {
		return nil
	}
	for i := range r.Matches {
		if r.Matches[i].Action.Type == ActionBlock {
			return &r.Matches[i]
		}
	}
	return nil
}

func (r *Result) Warnings() []string {
	return r.messages(ActionWarn)
}

func (r *Result) Notifications() []Match {
	var out []Match
	if r == nil {
		return out
	}
	for _, m := range r.Matches {
		if m.Action.Type == ActionNotify {
			out = append(out, m)
		}
	}
	return out
}

func (r *Result) RequiresPayment() bool { return r.has(ActionRequirePayment) }

func (r *Result) RequiresInsurance() bool { return r.has(ActionRequireInsurance) }

func (r *Result) has(t string) bool {
	if r == nil {
		return false
	}
	for _, m := range r.Matches {
		if m.Action.Type == t {
			return true
		}
	}
	return false
}

func (r *Result) messages(t string) []string {
	out := []string{}
	if r == nil {
		return out
	}
	for _, m := range r.Matches {
		if m.Action.Type == t {
			msg := m.Action.Message
			if msg == "" {
				msg = m.Name
			}
			out = append(out, msg)
		}
	}
	return out
}

// EvaluateRules runs rules (already sorted by priority) against data.
// A rule whose expression cannot be evaluated does not match; the failure is
// reported in Result.Errors.
func EvaluateRules(trigger string, list []*Rule, data map[string]any) *Result {
	res := &Result{Trigger: trigger, Matches: []Match{}}
	for _, r := range list {
		ok, err := r.Matches(data)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", r.Name, err))
			continue
		}
		if ok {
			res.Matches = append(res.Matches, Match{RuleID: r.ID, Name: r.Name, Priority: r.Priority, Action: r.Action})
		}
	}
	return res
}

// Matches reports whether the conditions (combined by Match) and the
// expression both hold. A rule with neither always matches.
func (r *Rule) Matches(data map[string]any) (bool, error) {
	if len(r.Conditions) > 0 {
		ok := r.Match != MatchAny
		for _, c := range r.Conditions {
			hit := c.Holds(data)
			if r.Match == MatchAny && hit {
				ok = true
				break
			}
			if r.Match != MatchAny && !hit {
				ok = false
				break
			}
		}
		if !ok {
			return false, nil
		}
	}
	if r.Expression == nil {
		return true, nil
	}
	v, err := r.Expression.Eval(pathParams(data))
	if err != nil {
		return false, err
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, fmt.Errorf("expression returned %T, want bool", v)
	}
	return b, nil
}

// Holds evaluates one condition. A missing field only satisfies not_exists.
func (c Condition) Holds(data map[string]any) bool {
	v, found := Lookup(data, c.Field)
	if c.Operator == OpNotExists {
		return !found || v == nil
	}
	if !found {
		return false
	}
	switch c.Operator {
	case OpExists:
		return v != nil
	case OpEq:
		return equal(v, c.Value)
	case OpNeq:
		return !equal(v, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		cmp, ok := compare(v, c.Value)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn, OpNotIn:
		list, ok := c.Value.([]any)
		if !ok {
			return false
		}
		in := false
		for _, item := range list {
			if equal(v, item) {
				in = true
				break
			}
		}
		return in == (c.Operator == OpIn)
	case OpContains:
		return contains(v, c.Value)
	}
	return false
}

// Lookup resolves a dotted path in nested maps.
func Lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

type pathParams map[string]any

func (p pathParams) Get(name string) (any, error) {
	v, ok := Lookup(p, name)
	if !ok {
		return nil, errors.New("unknown field " + name)
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case string, bool, nil:
		return false
	}
	_, ok := toFloat(v)
	return ok
}

func equal(a, b any) bool {
	if isNumber(a) || isNumber(b) {
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		return okA && okB && fa == fb
	}
	switch at := a.(type) {
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	case nil:
		return b == nil
	}
	return false
}

// compare orders numbers numerically and strings lexically.
func compare(a, b any) (int, bool) {
	if isNumber(a) || isNumber(b) {
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		if !okA || !okB {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	as, okA := a.(string)
	bs, okB := b.(string)
	if !okA || !okB {
		return 0, false
	}
	return strings.Compare(as, bs), true
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(strings.ToLower(h), strings.ToLower(n))
	case []any:
		for _, item := range h {
			if equal(item, needle) {
				return true
			}
		}
	case []string:
		for _, item := range h {
			if equal(item, needle) {
				return true
			}
		}
	}
	return false
}
