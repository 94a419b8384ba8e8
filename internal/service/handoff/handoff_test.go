package handoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/internal/service/verification"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

type fakeVerifier struct {
	snap *verification.Snapshot
}

func (f *fakeVerifier) Load(_ context.Context, _, id uuid.UUID) (*verification.Snapshot, error) {
	if f.snap == nil || f.snap.Item.ID != id {
		return nil, verification.ErrQueueItemNotFound
	}
	cp := *f.snap
	return &cp, nil
}

func (f *fakeVerifier) ForQueueItem(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*verification.Result, error) {
	s, err := f.Load(ctx, scope.CenterID, id)
	if err != nil {
		return nil, err
	}
	r := verification.Verify(s.Input)
	return &r, nil
}

// fakeRules only implements Evaluate; the embedded interface covers the rest.
type fakeRules struct {
	rules.Service
	matches  []rules.Match
	gotData  map[string]any
	gotCalls int
}

func (f *fakeRules) Evaluate(_ context.Context, _ uuid.UUID, trigger string, data map[string]any) (*rules.Result, error) {
	f.gotCalls++
	f.gotData = data
	return &rules.Result{Trigger: trigger, Matches: f.matches}, nil
}

type fakeStore struct {
	members    map[uuid.UUID]*repo.CenterMember
	confirmed  int
	confirmErr error
	gotActor   *uuid.UUID
}

func (f *fakeStore) Member(_ context.Context, _, id uuid.UUID) (*repo.CenterMember, error) {
	m, ok := f.members[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) Confirm(_ context.Context, item *repo.QueueItem, doctorID uuid.UUID, actor *uuid.UUID, note *string) (*repo.QueueItem, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	f.confirmed++
	f.gotActor = actor
	out := *item
	out.Status = repo.QueueConfirmed
	out.DoctorID = &doctorID
	out.ConfirmedBy = actor
	out.Notes = note
	return &out, nil
}

type fixture struct {
	center   uuid.UUID
	doctor   *repo.CenterMember
	actor    uuid.UUID
	item     *repo.QueueItem
	verifier *fakeVerifier
	rules    *fakeRules
	store    *fakeStore
	events   *events.Recorder
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{center: uuid.New(), actor: uuid.New()}
	f.doctor = &repo.CenterMember{ID: uuid.New(), CenterID: f.center, Role: repo.RoleDoctor, IsActive: true}
	patient := &repo.Patient{ID: uuid.New(), CenterID: f.center, Status: repo.PatientStatusActive}
	f.item = &repo.QueueItem{ID: uuid.New(), CenterID: f.center, PatientID: patient.ID, Status: repo.QueueWaiting, QueueNumber: 4}
	f.verifier = &fakeVerifier{snap: &verification.Snapshot{
		Item:    f.item,
		Patient: patient,
		Input: verification.Input{
			Invoices: []*repo.Invoice{{Status: repo.InvoicePaid, Total: 1000, PaidAmount: 1000}},
		},
	}}
	f.rules = &fakeRules{}
	f.store = &fakeStore{members: map[uuid.UUID]*repo.CenterMember{f.doctor.ID: f.doctor}}
	f.events = &events.Recorder{}
	svc := New(f.store, f.verifier, f.rules, f.events, nil).(*handoffService)
	svc.now = func() time.Time { return time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC) }
	f.svc = svc
	return f
}

func (f *fixture) request() ConfirmRequest {
	return ConfirmRequest{
		CenterID:    f.center,
		QueueItemID: f.item.ID,
		DoctorID:    f.doctor.ID,
		ActorID:     &f.actor,
		ActorRole:   repo.RoleReceptionist,
	}
}

func TestConfirmToDoctorSuccess(t *testing.T) {
	f := newFixture(t)
	f.rules.matches = []rules.Match{
		{Name: "late", Action: rules.Action{Type: rules.ActionWarn, Message: "patient is late"}},
		{Name: "vip", Action: rules.Action{Type: rules.ActionNotify, Message: "VIP patient"}},
	}

	out, err := f.svc.ConfirmToDoctor(context.Background(), f.request())
	if err != nil {
		t.Fatalf("ConfirmToDoctor: %v", err)
	}
	if out.QueueItem.Status != repo.QueueConfirmed || *out.QueueItem.DoctorID != f.doctor.ID {
		t.Errorf("queue item = %+v", out.QueueItem)
	}
	if len(out.Warnings) != 1 || out.Warnings[0] != "patient is late" {
		t.Errorf("Warnings = %v", out.Warnings)
	}
	if !out.Verification.CanProceed {
		t.Error("verification should pass")
	}
	if f.store.gotActor == nil || *f.store.gotActor != f.actor {
		t.Errorf("confirmed_by = %v, want %v", f.store.gotActor, f.actor)
	}

	if got := f.events.Types(); len(got) != 1 || got[0] != events.QueueConfirmed {
		t.Fatalf("events = %v", got)
	}
	e := f.events.Events[0]
	if e.EntityID != f.item.ID || e.CenterID != f.center {
		t.Errorf("event = %+v", e)
	}
	if notices, _ := e.Data["rule_notices"].([]string); len(notices) != 1 || notices[0] != "VIP patient" {
		t.Errorf("rule_notices = %v", e.Data["rule_notices"])
	}

	actor, _ := rules.Lookup(f.rules.gotData, "actor.role")
	if actor != repo.RoleReceptionist {
		t.Errorf("rule context actor.role = %v", actor)
	}
	if v, _ := rules.Lookup(f.rules.gotData, "invoice.outstanding"); v != int64(0) {
		t.Errorf("rule context invoice.outstanding = %v", v)
	}
}

func TestConfirmToDoctorRejections(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(f *fixture, req *ConfirmRequest)
		wantErr   error
		evaluated bool
	}{
		{
			name:    "unknown queue item",
			mutate:  func(f *fixture, req *ConfirmRequest) { req.QueueItemID = uuid.New() },
			wantErr: verification.ErrQueueItemNotFound,
		},
		{
			name:    "item already confirmed",
			mutate:  func(f *fixture, req *ConfirmRequest) { f.item.Status = repo.QueueConfirmed },
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "doctor not a member",
			mutate:  func(f *fixture, req *ConfirmRequest) { req.DoctorID = uuid.New() },
			wantErr: ErrDoctorNotFound,
		},
		{
			name:    "member is not a doctor",
			mutate:  func(f *fixture, req *ConfirmRequest) { f.doctor.Role = repo.RoleReceptionist },
			wantErr: ErrDoctorNotFound,
		},
		{
			name:    "doctor deactivated",
			mutate:  func(f *fixture, req *ConfirmRequest) { f.doctor.IsActive = false },
			wantErr: ErrDoctorNotFound,
		},
		{
			name: "blocked by rule",
			mutate: func(f *fixture, req *ConfirmRequest) {
				f.rules.matches = []rules.Match{{Name: "no", Action: rules.Action{Type: rules.ActionBlock, Message: "closed today"}}}
			},
			wantErr:   ErrBlockedByRule,
			evaluated: true,
		},
		{
			name: "unpaid invoice",
			mutate: func(f *fixture, req *ConfirmRequest) {
				f.verifier.snap.Input.Invoices = []*repo.Invoice{{Status: repo.InvoiceIssued, Total: 500}}
			},
			wantErr:   ErrVerificationFailed,
			evaluated: true,
		},
		{
			name: "rule requires insurance",
			mutate: func(f *fixture, req *ConfirmRequest) {
				f.rules.matches = []rules.Match{{Name: "ins", Action: rules.Action{Type: rules.ActionRequireInsurance}}}
			},
			wantErr:   ErrVerificationFailed,
			evaluated: true,
		},
		{
			name:      "lost race on confirm",
			mutate:    func(f *fixture, req *ConfirmRequest) { f.store.confirmErr = repo.ErrNotFound },
			wantErr:   ErrInvalidTransition,
			evaluated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request()
			tt.mutate(f, &req)

			out, err := f.svc.ConfirmToDoctor(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if out != nil {
				t.Errorf("outcome = %+v, want nil", out)
			}
			if f.store.confirmed != 0 {
				t.Error("queue item must not be confirmed")
			}
			if len(f.events.Events) != 0 {
				t.Errorf("events published: %v", f.events.Types())
			}
			if (f.rules.gotCalls > 0) != tt.evaluated {
				t.Errorf("rules evaluated = %v, want %v", f.rules.gotCalls > 0, tt.evaluated)
			}
		})
	}
}

func TestErrorDetails(t *testing.T) {
	f := newFixture(t)
	f.rules.matches = []rules.Match{{Name: "x", Action: rules.Action{Type: rules.ActionBlock, Message: "closed today"}}}
	_, err := f.svc.ConfirmToDoctor(context.Background(), f.request())

	var blocked *BlockedError
	if !errors.As(err, &blocked) || blocked.Error() != "closed today" {
		t.Fatalf("BlockedError = %v", err)
	}

	f = newFixture(t)
	f.verifier.snap.Input.UsesInsurance = true
	_, err = f.svc.ConfirmToDoctor(context.Background(), f.request())
	var ver *VerificationError
	if !errors.As(err, &ver) {
		t.Fatalf("VerificationError = %v", err)
	}
	if ver.Result.CanProceed || len(ver.Result.Reasons) == 0 {
		t.Errorf("verification result = %+v", ver.Result)
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		birth time.Time
		want  int
	}{
		{time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC), 36},
		{time.Date(1990, 5, 11, 0, 0, 0, 0, time.UTC), 35},
		{time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		if got := age(tt.birth, now); got != tt.want {
			t.Errorf("age(%s) = %d, want %d", tt.birth.Format(time.DateOnly), got, tt.want)
		}
	}
}
