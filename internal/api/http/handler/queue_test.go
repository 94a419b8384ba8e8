package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/handoff"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/internal/service/verification"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

type fakeHandoff struct {
	got handoff.ConfirmRequest
	out *handoff.Outcome
	err error
}

func (f *fakeHandoff) ConfirmToDoctor(_ context.Context, req handoff.ConfirmRequest) (*handoff.Outcome, error) {
	f.got = req
	return f.out, f.err
}

func newQueueApp(ho handoff.Service, scope *reqctx.CenterScope) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	h := NewQueueHandler(nil, ho, nil)
	app.Post("/queue/:id/confirm-to-doctor", func(c fiber.Ctx) error {
		c.Locals(middleware.LocalsScope, scope)
		return c.Next()
	}, h.ConfirmToDoctor)
	return app
}

type envelope struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data"`
	Error        string          `json:"error"`
	Rule         *rules.Match    `json:"rule"`
	Verification *struct {
		CanProceed bool     `json:"can_proceed"`
		Reasons    []string `json:"reasons"`
	} `json:"verification"`
}

func post(t *testing.T, app *fiber.App, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return resp.StatusCode, env
}

func TestConfirmToDoctorSuccess(t *testing.T) {
	item := &repo.QueueItem{ID: uuid.New(), Status: repo.QueueConfirmed}
	ho := &fakeHandoff{out: &handoff.Outcome{QueueItem: item, Warnings: []string{"late arrival"}}}
	member := uuid.New()
	scope := &reqctx.CenterScope{CenterID: uuid.New(), MemberID: member, Role: repo.RoleReceptionist}
	doctor := uuid.New()

	status, env := post(t, newQueueApp(ho, scope), "/queue/"+item.ID.String()+"/confirm-to-doctor",
		`{"doctor_id":"`+doctor.String()+`","note":"fever"}`)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("status = %d env = %+v", status, env)
	}
	if ho.got.QueueItemID != item.ID || ho.got.DoctorID != doctor || ho.got.CenterID != scope.CenterID {
		t.Fatalf("request = %+v", ho.got)
	}
	if ho.got.ActorID == nil || *ho.got.ActorID != member || ho.got.ActorRole != repo.RoleReceptionist {
		t.Fatalf("actor = %v role = %q", ho.got.ActorID, ho.got.ActorRole)
	}
	if ho.got.Note == nil || *ho.got.Note != "fever" {
		t.Fatalf("note = %v", ho.got.Note)
	}
	var out struct {
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil || len(out.Warnings) != 1 {
		t.Fatalf("data = %s", env.Data)
	}
}

func TestConfirmToDoctorErrors(t *testing.T) {
	blocked := &rules.BlockedError{Match: rules.Match{RuleID: "r1", Name: "no debt", Action: rules.Action{Type: "block", Message: "settle the balance first"}}}
	unverified := &handoff.VerificationError{Result: verification.Result{Reasons: []string{"outstanding balance"}}}

	tests := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
		rule    bool
		verif   bool
	}{
		{name: "missing doctor", body: `{}`, status: http.StatusBadRequest, message: "doctor_id is required"},
		{name: "bad json", body: `{`, status: http.StatusBadRequest, message: "invalid request body"},
		{name: "blocked by rule", err: blocked, status: http.StatusUnprocessableEntity, message: "settle the balance first", rule: true},
		{name: "verification failed", err: unverified, status: http.StatusUnprocessableEntity, message: handoff.ErrVerificationFailed.Error(), verif: true},
		{name: "not waiting", err: handoff.ErrInvalidTransition, status: http.StatusConflict, message: handoff.ErrInvalidTransition.Error()},
		{name: "unknown doctor", err: handoff.ErrDoctorNotFound, status: http.StatusBadRequest, message: handoff.ErrDoctorNotFound.Error()},
		{name: "unknown item", err: verification.ErrQueueItemNotFound, status: http.StatusNotFound, message: verification.ErrQueueItemNotFound.Error()},
		{name: "internal", err: errors.New("db down"), status: http.StatusInternalServerError, message: "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if body == "" {
				body = `{"doctor_id":"` + uuid.NewString() + `"}`
			}
			ho := &fakeHandoff{err: tt.err}
			app := newQueueApp(ho, &reqctx.CenterScope{CenterID: uuid.New()})

			status, env := post(t, app, "/queue/"+uuid.NewString()+"/confirm-to-doctor", body)
			if status != tt.status || env.Success || env.Error != tt.message {
				t.Fatalf("status = %d env = %+v", status, env)
			}
			if tt.rule && (env.Rule == nil || env.Rule.RuleID != "r1") {
				t.Fatalf("rule detail missing: %+v", env.Rule)
			}
			if tt.verif && (env.Verification == nil || env.Verification.Reasons[0] != "outstanding balance") {
				t.Fatalf("verification detail missing: %+v", env.Verification)
			}
		})
	}
}

func TestConfirmToDoctorBadID(t *testing.T) {
	app := newQueueApp(&fakeHandoff{}, &reqctx.CenterScope{CenterID: uuid.New()})
	status, env := post(t, app, "/queue/nope/confirm-to-doctor", `{}`)
	if status != http.StatusBadRequest || env.Error != "invalid queue item id" {
		t.Fatalf("status = %d env = %+v", status, env)
	}
}

func TestErrorHandlerEnvelope(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/forbidden", func(c fiber.Ctx) error { return fiber.ErrForbidden })

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode != http.StatusNotFound || env.Success || env.Error == "" {
		t.Fatalf("status = %d env = %+v", resp.StatusCode, env)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/forbidden", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	env = envelope{}
	_ = json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode != http.StatusForbidden || env.Error != "Forbidden" {
		t.Fatalf("status = %d env = %+v", resp.StatusCode, env)
	}
}
