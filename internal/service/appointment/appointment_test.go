package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

type fakeRules struct {
	rules.Service
	matches []rules.Match
	gotData map[string]any
}

func (f *fakeRules) Evaluate(_ context.Context, _ uuid.UUID, trigger string, data map[string]any) (*rules.Result, error) {
	f.gotData = data
	return &rules.Result{Trigger: trigger, Matches: f.matches}, nil
}

type memStore struct {
	patients     map[uuid.UUID]*repo.Patient
	members      map[uuid.UUID]*repo.CenterMember
	appointments map[uuid.UUID]*repo.Appointment
	lastFilter   repo.AppointmentFilter
}

func (m *memStore) Patient(_ context.Context, _, id uuid.UUID) (*repo.Patient, error) {
	if p, ok := m.patients[id]; ok {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) Member(_ context.Context, _, id uuid.UUID) (*repo.CenterMember, error) {
	if mem, ok := m.members[id]; ok {
		return mem, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) Get(_ context.Context, centerID, id uuid.UUID) (*repo.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok || a.CenterID != centerID {
		return nil, repo.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) List(_ context.Context, _ uuid.UUID, f repo.AppointmentFilter, _ repo.Page) ([]*repo.Appointment, int, error) {
	m.lastFilter = f
	return nil, 0, nil
}

func (m *memStore) overlaps(doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) bool {
	for _, a := range m.appointments {
		if a.ID == exclude || a.DoctorID != doctorID {
			continue
		}
		if a.Status != repo.AppointmentPending && a.Status != repo.AppointmentConfirmed {
			continue
		}
		if a.StartTime.Before(end) && a.EndTime.After(start) {
			return true
		}
	}
	return false
}

func (m *memStore) Book(_ context.Context, a *repo.Appointment) error {
	if m.overlaps(a.DoctorID, a.StartTime, a.EndTime, uuid.Nil) {
		return ErrOverlap
	}
	a.ID = uuid.New()
	a.Status = repo.AppointmentPending
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *memStore) Reschedule(_ context.Context, current *repo.Appointment, in repo.AppointmentUpdate) error {
	start, end := current.StartTime, current.EndTime
	if in.StartTime != nil {
		start = *in.StartTime
	}
	if in.EndTime != nil {
		end = *in.EndTime
	}
	if m.overlaps(current.DoctorID, start, end, current.ID) {
		return ErrOverlap
	}
	a := m.appointments[current.ID]
	a.StartTime, a.EndTime = start, end
	return nil
}

func (m *memStore) Transition(_ context.Context, _, id uuid.UUID, from []string, to string, reason *string) error {
	a, ok := m.appointments[id]
	if !ok {
		return repo.ErrNotFound
	}
	for _, f := range from {
		if a.Status == f {
			a.Status = to
			a.CancelReason = reason
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *memStore) DeletePending(_ context.Context, _, id uuid.UUID) error {
	if a, ok := m.appointments[id]; !ok || a.Status != repo.AppointmentPending {
		return repo.ErrNotFound
	}
	delete(m.appointments, id)
	return nil
}

type fixture struct {
	scope   *reqctx.CenterScope
	patient *repo.Patient
	doctor  *repo.CenterMember
	store   *memStore
	rules   *fakeRules
	events  *events.Recorder
	svc     Service
	start   time.Time
}

func newFixture() *fixture {
	center := uuid.New()
	f := &fixture{
		scope:   &reqctx.CenterScope{CenterID: center, MemberID: uuid.New(), Role: repo.RoleReceptionist},
		patient: &repo.Patient{ID: uuid.New(), CenterID: center, Status: repo.PatientStatusActive},
		doctor:  &repo.CenterMember{ID: uuid.New(), CenterID: center, Role: repo.RoleDoctor, IsActive: true},
		rules:   &fakeRules{},
		events:  &events.Recorder{},
		start:   time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	f.store = &memStore{
		patients:     map[uuid.UUID]*repo.Patient{f.patient.ID: f.patient},
		members:      map[uuid.UUID]*repo.CenterMember{f.doctor.ID: f.doctor},
		appointments: map[uuid.UUID]*repo.Appointment{},
	}
	svc := New(f.store, f.rules, f.events).(*appointmentService)
	svc.now = func() time.Time { return f.start.Add(-48 * time.Hour) }
	f.svc = svc
	return f
}

func (f *fixture) book(t *testing.T, offset time.Duration) *repo.Appointment {
	t.Helper()
	res, err := f.svc.Create(context.Background(), f.scope, CreateRequest{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		StartTime: f.start.Add(offset),
		EndTime:   f.start.Add(offset + 30*time.Minute),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return res.Appointment
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{repo.AppointmentPending, repo.AppointmentConfirmed, true},
		{repo.AppointmentPending, repo.AppointmentCancelled, true},
		{repo.AppointmentPending, repo.AppointmentCompleted, false},
		{repo.AppointmentConfirmed, repo.AppointmentCompleted, true},
		{repo.AppointmentConfirmed, repo.AppointmentCancelled, true},
		{repo.AppointmentCompleted, repo.AppointmentCancelled, false},
		{repo.AppointmentCancelled, repo.AppointmentPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCreate(t *testing.T) {
	f := newFixture()
	a := f.book(t, 0)

	if a.Status != repo.AppointmentPending {
		t.Fatalf("status = %s", a.Status)
	}
	if got := f.events.Types(); len(got) != 1 || got[0] != events.AppointmentCreated {
		t.Fatalf("events = %v", got)
	}
	appt := f.rules.gotData["appointment"].(map[string]any)
	if appt["duration_minutes"] != 30 || appt["lead_hours"] != 48 || appt["hour"] != 10 {
		t.Fatalf("rule context = %v", appt)
	}
}

func TestCreateRejections(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture, req *CreateRequest)
		want  error
	}{
		{"end before start", func(f *fixture, r *CreateRequest) { r.EndTime = r.StartTime }, ErrInvalidTime},
		{"unknown patient", func(f *fixture, r *CreateRequest) { r.PatientID = uuid.New() }, ErrPatientNotFound},
		{"not a doctor", func(f *fixture, r *CreateRequest) { f.doctor.Role = repo.RoleReceptionist }, ErrDoctorNotFound},
		{"inactive doctor", func(f *fixture, r *CreateRequest) { f.doctor.IsActive = false }, ErrDoctorNotFound},
		{"blocked by rule", func(f *fixture, r *CreateRequest) {
			f.rules.matches = []rules.Match{{Name: "no weekends", Action: rules.Action{Type: rules.ActionBlock, Message: "closed"}}}
		}, rules.ErrBlocked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			req := CreateRequest{
				PatientID: f.patient.ID,
				DoctorID:  f.doctor.ID,
				StartTime: f.start,
				EndTime:   f.start.Add(time.Hour),
			}
			tc.setup(f, &req)
			if _, err := f.svc.Create(context.Background(), f.scope, req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if len(f.events.Events) != 0 {
				t.Fatal("rejected booking published an event")
			}
		})
	}
}

func TestCreateOverlap(t *testing.T) {
	f := newFixture()
	f.book(t, 0)
	_, err := f.svc.Create(context.Background(), f.scope, CreateRequest{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		StartTime: f.start.Add(15 * time.Minute),
		EndTime:   f.start.Add(45 * time.Minute),
	})
	if !errors.Is(err, ErrOverlap) {
		t.Fatalf("err = %v, want ErrOverlap", err)
	}
	// Back-to-back is fine.
	f.book(t, 30*time.Minute)
}

func TestSetStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.book(t, 0)

	if _, err := f.svc.SetStatus(ctx, f.scope, a.ID, repo.AppointmentCompleted, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending -> completed: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.scope, a.ID, "archived", nil); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("unknown status: %v", err)
	}
	got, err := f.svc.SetStatus(ctx, f.scope, a.ID, repo.AppointmentConfirmed, nil)
	if err != nil || got.Status != repo.AppointmentConfirmed {
		t.Fatalf("confirm: %v %v", got, err)
	}
	reason := "patient called"
	got, err = f.svc.SetStatus(ctx, f.scope, a.ID, repo.AppointmentCancelled, &reason)
	if err != nil || got.Status != repo.AppointmentCancelled || got.CancelReason == nil {
		t.Fatalf("cancel: %+v %v", got, err)
	}
	if _, err := f.svc.SetStatus(ctx, f.scope, a.ID, repo.AppointmentConfirmed, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancelled is terminal: %v", err)
	}
	types := f.events.Types()
	if types[len(types)-1] != events.AppointmentCancelled {
		t.Fatalf("events = %v", types)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.book(t, 0)
	b := f.book(t, time.Hour)

	clash := f.start.Add(10 * time.Minute)
	if _, err := f.svc.Update(ctx, f.scope, b.ID, UpdateRequest{StartTime: &clash}); !errors.Is(err, ErrInvalidTime) && !errors.Is(err, ErrOverlap) {
		t.Fatalf("clash: %v", err)
	}
	newEnd := clash.Add(15 * time.Minute)
	if _, err := f.svc.Update(ctx, f.scope, b.ID, UpdateRequest{StartTime: &clash, EndTime: &newEnd}); !errors.Is(err, ErrOverlap) {
		t.Fatalf("overlap: %v", err)
	}

	if _, err := f.svc.SetStatus(ctx, f.scope, a.ID, repo.AppointmentConfirmed, nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.svc.Delete(ctx, f.scope, a.ID); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("delete confirmed: %v", err)
	}
	if err := f.svc.Delete(ctx, f.scope, b.ID); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
}

func TestDoctorSeesOwnAppointments(t *testing.T) {
	f := newFixture()
	a := f.book(t, 0)
	other := &reqctx.CenterScope{CenterID: f.scope.CenterID, MemberID: uuid.New(), Role: repo.RoleDoctor}

	if _, err := f.svc.Get(context.Background(), other, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other doctor: %v", err)
	}
	own := &reqctx.CenterScope{CenterID: f.scope.CenterID, MemberID: f.doctor.ID, Role: repo.RoleDoctor}
	if _, err := f.svc.Get(context.Background(), own, a.ID); err != nil {
		t.Fatalf("own doctor: %v", err)
	}
	if _, err := f.svc.List(context.Background(), other, ListRequest{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if f.store.lastFilter.DoctorID == nil || *f.store.lastFilter.DoctorID != other.MemberID {
		t.Fatalf("filter = %+v", f.store.lastFilter)
	}
}
