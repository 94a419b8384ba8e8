package rules

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
)

func sampleContext() map[string]any {
	return map[string]any{
		"patient": map[string]any{
			"uses_insurance": true,
			"gender":         "female",
			"age":            67,
			"tags":           []any{"vip", "chronic"},
			"name":           "Sara Ahmadi",
		},
		"invoice": map[string]any{
			"outstanding": int64(250000),
			"count":       2,
			"status":      "partially_paid",
		},
		"insurance": map[string]any{
			"status":          "pending",
			"approved_amount": "0",
		},
		"actor": map[string]any{"role": "receptionist"},
		"date":  "2026-03-01",
	}
}

func TestConditionHolds(t *testing.T) {
	data := sampleContext()

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq string", Condition{"insurance.status", OpEq, "pending"}, true},
		{"eq string mismatch", Condition{"insurance.status", OpEq, "approved"}, false},
		{"eq bool", Condition{"patient.uses_insurance", OpEq, true}, true},
		{"eq int vs json float", Condition{"patient.age", OpEq, float64(67)}, true},
		{"eq numeric string", Condition{"insurance.approved_amount", OpEq, float64(0)}, true},
		{"eq type mismatch", Condition{"patient.gender", OpEq, float64(1)}, false},
		{"neq", Condition{"actor.role", OpNeq, "doctor"}, true},
		{"neq missing field", Condition{"actor.missing", OpNeq, "doctor"}, false},
		{"gt", Condition{"invoice.outstanding", OpGt, float64(0)}, true},
		{"gt equal", Condition{"invoice.count", OpGt, float64(2)}, false},
		{"gte", Condition{"invoice.count", OpGte, float64(2)}, true},
		{"lt", Condition{"patient.age", OpLt, float64(18)}, false},
		{"lte numeric string value", Condition{"patient.age", OpLte, "67"}, true},
		{"gt string vs number", Condition{"patient.gender", OpGt, float64(3)}, false},
		{"lt lexical dates", Condition{"date", OpLt, "2026-04-01"}, true},
		{"in", Condition{"actor.role", OpIn, []any{"receptionist", "admin"}}, true},
		{"in miss", Condition{"actor.role", OpIn, []any{"doctor"}}, false},
		{"in numbers", Condition{"invoice.count", OpIn, []any{float64(1), float64(2)}}, true},
		{"not_in", Condition{"actor.role", OpNotIn, []any{"doctor"}}, true},
		{"not_in missing field", Condition{"nope", OpNotIn, []any{"doctor"}}, false},
		{"contains substring case-insensitive", Condition{"patient.name", OpContains, "ahmadi"}, true},
		{"contains list", Condition{"patient.tags", OpContains, "vip"}, true},
		{"contains list miss", Condition{"patient.tags", OpContains, "new"}, false},
		{"exists", Condition{"invoice.status", OpExists, nil}, true},
		{"exists missing", Condition{"invoice.missing", OpExists, nil}, false},
		{"not_exists missing", Condition{"visit.id", OpNotExists, nil}, true},
		{"not_exists present", Condition{"patient.age", OpNotExists, nil}, false},
		{"path through scalar", Condition{"patient.age.value", OpExists, nil}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Holds(data); got != tt.want {
				t.Errorf("Holds(%+v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func rule(t *testing.T, match string, conds []Condition, expr string, action Action) *Rule {
	t.Helper()
	c, _ := json.Marshal(conds)
	a, _ := json.Marshal(action)
	br := &repo.BusinessRule{
		ID:         uuid.New(),
		Name:       "r",
		Trigger:    TriggerConfirmToDoctor,
		Match:      match,
		Conditions: c,
		Action:     a,
	}
	if expr != "" {
		br.Expression = &expr
	}
	r, err := Decode(br)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return r
}

func TestRuleMatches(t *testing.T) {
	data := sampleContext()
	block := Action{Type: ActionBlock, Message: "no"}

	tests := []struct {
		name    string
		rule    *Rule
		want    bool
		wantErr bool
	}{
		{"no conditions no expression", rule(t, MatchAll, nil, "", block), true, false},
		{"all satisfied", rule(t, MatchAll, []Condition{
			{"insurance.status", OpEq, "pending"},
			{"invoice.outstanding", OpGt, float64(0)},
		}, "", block), true, false},
		{"all one fails", rule(t, MatchAll, []Condition{
			{"insurance.status", OpEq, "pending"},
			{"invoice.outstanding", OpEq, float64(0)},
		}, "", block), false, false},
		{"any one holds", rule(t, MatchAny, []Condition{
			{"insurance.status", OpEq, "approved"},
			{"actor.role", OpEq, "receptionist"},
		}, "", block), true, false},
		{"any none hold", rule(t, MatchAny, []Condition{
			{"insurance.status", OpEq, "approved"},
			{"actor.role", OpEq, "doctor"},
		}, "", block), false, false},
		{"expression only", rule(t, MatchAll, nil, "[invoice.outstanding] > 100000 && [patient.age] >= 65", block), true, false},
		{"expression false", rule(t, MatchAll, nil, "[invoice.count] > 5", block), false, false},
		{"conditions and expression", rule(t, MatchAll, []Condition{
			{"patient.uses_insurance", OpEq, true},
		}, "[insurance.status] == 'approved'", block), false, false},
		{"expression unknown field", rule(t, MatchAll, nil, "[nope.value] > 1", block), false, true},
		{"expression not boolean", rule(t, MatchAll, nil, "[invoice.count] + 1", block), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rule.Matches(data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Matches error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateRules(t *testing.T) {
	data := sampleContext()
	list := []*Rule{
		rule(t, MatchAll, []Condition{{"invoice.outstanding", OpGt, float64(0)}}, "", Action{Type: ActionWarn, Message: "balance due"}),
		rule(t, MatchAll, []Condition{{"insurance.status", OpEq, "rejected"}}, "", Action{Type: ActionBlock, Message: "rejected"}),
		rule(t, MatchAll, []Condition{{"patient.uses_insurance", OpEq, true}}, "", Action{Type: ActionRequireInsurance}),
		rule(t, MatchAll, nil, "[bad.field] > 0", Action{Type: ActionBlock}),
		rule(t, MatchAll, []Condition{{"patient.tags", OpContains, "vip"}}, "", Action{Type: ActionNotify, Message: "vip arrived"}),
	}

	res := EvaluateRules(TriggerConfirmToDoctor, list, data)
	if len(res.Matches) != 3 {
		t.Fatalf("got %d matches, want 3: %+v", len(res.Matches), res.Matches)
	}
	if res.Blocking() != nil {
		t.Errorf("unexpected blocking match %+v", res.Blocking())
	}
	if w := res.Warnings(); len(w) != 1 || w[0] != "balance due" {
		t.Errorf("Warnings = %v", w)
	}
	if !res.RequiresInsurance() || res.RequiresPayment() {
		t.Errorf("RequiresInsurance = %v, RequiresPayment = %v", res.RequiresInsurance(), res.RequiresPayment())
	}
	if n := res.Notifications(); len(n) != 1 {
		t.Errorf("Notifications = %v", n)
	}
	if len(res.Errors) != 1 {
		t.Errorf("Errors = %v, want one expression error", res.Errors)
	}
}

func TestBlockingReturnsFirst(t *testing.T) {
	res := &Result{Matches: []Match{
		{Name: "warn", Action: Action{Type: ActionWarn}},
		{Name: "first", Action: Action{Type: ActionBlock, Message: "stop"}},
		{Name: "second", Action: Action{Type: ActionBlock}},
	}}
	b := res.Blocking()
	if b == nil || b.Name != "first" {
		t.Fatalf("Blocking = %+v, want first", b)
	}
	var nilRes *Result
	if nilRes.Blocking() != nil || nilRes.RequiresPayment() {
		t.Error("nil result should be inert")
	}
}

func TestParseConditionsValidation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"empty", ``, false},
		{"null", `null`, false},
		{"valid", `[{"field":"a.b","operator":"eq","value":1}]`, false},
		{"bad operator", `[{"field":"a","operator":"like","value":1}]`, true},
		{"missing field", `[{"operator":"eq","value":1}]`, true},
		{"in needs list", `[{"field":"a","operator":"in","value":"x"}]`, true},
		{"not json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConditions(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseConditions(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
	if v, ok := Lookup(data, "a.b.c"); !ok || v != 1 {
		t.Errorf("Lookup a.b.c = %v, %v", v, ok)
	}
	if _, ok := Lookup(data, "a.x"); ok {
		t.Error("Lookup a.x should miss")
	}
}
