package app

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/notification"
	"github.com/Alijeyrad/medcenter_backend/pkg/email"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
)

type fakeWorkerStore struct {
	members  map[uuid.UUID]*repo.CenterMember
	patients map[uuid.UUID]*repo.Patient
	center   *repo.Center
}

func (f *fakeWorkerStore) Member(_ context.Context, _, id uuid.UUID) (*repo.CenterMember, error) {
	if m, ok := f.members[id]; ok {
		return m, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeWorkerStore) MembersByRole(_ context.Context, _ uuid.UUID, role string) ([]*repo.CenterMember, error) {
	var out []*repo.CenterMember
	for _, m := range f.members {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeWorkerStore) Patient(_ context.Context, _, id uuid.UUID) (*repo.Patient, error) {
	if p, ok := f.patients[id]; ok {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeWorkerStore) Center(context.Context, uuid.UUID) (*repo.Center, error) {
	return f.center, nil
}

type recordingNotifier struct{ sent []notification.CreateRequest }

func (r *recordingNotifier) Create(_ context.Context, req notification.CreateRequest) (*repo.Notification, error) {
	r.sent = append(r.sent, req)
	return &repo.Notification{ID: uuid.New()}, nil
}

type recordingSMS struct {
	phone, name, doctor, status string
	at                          time.Time
}

func (r *recordingSMS) SendAppointmentNotice(_ context.Context, phone, name, doctor string, at time.Time, status string) error {
	r.phone, r.name, r.doctor, r.at, r.status = phone, name, doctor, at, status
	return nil
}

type recordingMailer struct{ msgs []email.Message }

func (r *recordingMailer) Send(_ context.Context, m email.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func strptr(s string) *string { return &s }

type fixture struct {
	w        *workers
	notes    *recordingNotifier
	sms      *recordingSMS
	mail     *recordingMailer
	doctor   *repo.CenterMember
	patient  *repo.Patient
	centerID uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		notes:    &recordingNotifier{},
		sms:      &recordingSMS{},
		mail:     &recordingMailer{},
		centerID: uuid.New(),
	}
	f.doctor = &repo.CenterMember{ID: uuid.New(), UserID: uuid.New(), Role: repo.RoleDoctor, FirstName: "Sara", LastName: "Karimi"}
	f.patient = &repo.Patient{ID: uuid.New(), FirstName: "Ali", LastName: "Rezaei",
		Phone: strptr("+989121234567"), Email: strptr("ali@example.com")}
	store := &fakeWorkerStore{
		members: map[uuid.UUID]*repo.CenterMember{
			f.doctor.ID: f.doctor,
		},
		patients: map[uuid.UUID]*repo.Patient{f.patient.ID: f.patient},
		center:   &repo.Center{ID: f.centerID, Name: "Tehran Clinic"},
	}
	f.w = &workers{store: store, notifier: f.notes, sms: f.sms, mailer: f.mail}
	return f
}

// roundTrip mimics the NATS hop so handlers see JSON-decoded data.
func roundTrip(t *testing.T, e events.Event) events.Event {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var out events.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestQueueConfirmedNotifiesDoctor(t *testing.T) {
	f := newFixture()
	e := roundTrip(t, events.Event{
		Type:     events.QueueConfirmed,
		CenterID: f.centerID,
		EntityID: uuid.New(),
		Data: map[string]any{
			"patient_id":   f.patient.ID.String(),
			"doctor_id":    f.doctor.ID.String(),
			"queue_number": 7,
			"rule_notices": []string{"check allergies"},
		},
	})
	if err := f.w.onQueueConfirmed(context.Background(), e); err != nil {
		t.Fatalf("onQueueConfirmed: %v", err)
	}
	if len(f.notes.sent) != 1 {
		t.Fatalf("notifications = %d", len(f.notes.sent))
	}
	n := f.notes.sent[0]
	if n.UserID != f.doctor.UserID || n.Type != "queue_confirmed" || n.Title != "Patient #7 confirmed to you" || n.Body != "Ali Rezaei" {
		t.Fatalf("notification = %+v", n)
	}
	if *n.CenterID != f.centerID || n.Data["rule_notices"] == nil {
		t.Fatalf("data = %+v", n.Data)
	}
}

func TestQueueConfirmedUnknownDoctor(t *testing.T) {
	f := newFixture()
	e := events.Event{Type: events.QueueConfirmed, CenterID: f.centerID,
		Data: map[string]any{"doctor_id": uuid.NewString()}}
	if err := f.w.onQueueConfirmed(context.Background(), e); err == nil {
		t.Fatal("expected error for unknown doctor")
	}
	e.Data["doctor_id"] = "nope"
	if err := f.w.onQueueConfirmed(context.Background(), e); err == nil {
		t.Fatal("expected error for malformed doctor id")
	}
}

func TestAppointmentEvents(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		typ, wantType, wantStatus string
	}{
		{events.AppointmentCreated, "appointment_created", "booked"},
		{events.AppointmentCancelled, "appointment_cancelled", "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			f := newFixture()
			e := roundTrip(t, events.Event{
				Type:     tt.typ,
				CenterID: f.centerID,
				EntityID: uuid.New(),
				Data: map[string]any{
					"patient_id": f.patient.ID.String(),
					"doctor_id":  f.doctor.ID.String(),
					"start_time": start.Format(time.RFC3339),
				},
			})
			if err := f.w.onAppointmentNotice(context.Background(), e); err != nil {
				t.Fatalf("notice: %v", err)
			}
			if err := f.w.onAppointmentSMS(context.Background(), e); err != nil {
				t.Fatalf("sms: %v", err)
			}
			if got := f.notes.sent[0]; got.Type != tt.wantType || got.UserID != f.doctor.UserID {
				t.Fatalf("notification = %+v", got)
			}
			if f.sms.phone != "+989121234567" || f.sms.doctor != "Sara Karimi" || f.sms.status != tt.wantStatus || !f.sms.at.Equal(start) {
				t.Fatalf("sms = %+v", f.sms)
			}
		})
	}
}

func TestAppointmentSMSWithoutPhone(t *testing.T) {
	f := newFixture()
	f.patient.Phone = nil
	e := events.Event{Type: events.AppointmentCreated, CenterID: f.centerID,
		Data: map[string]any{"patient_id": f.patient.ID.String(), "start_time": "bad"}}
	if err := f.w.onAppointmentSMS(context.Background(), e); err != nil {
		t.Fatalf("err = %v", err)
	}
	if f.sms.phone != "" {
		t.Fatal("sms sent without a phone")
	}
}

func TestPaymentReceivedSendsReceipt(t *testing.T) {
	f := newFixture()
	e := roundTrip(t, events.Event{
		Type:     events.PaymentReceived,
		CenterID: f.centerID,
		EntityID: uuid.New(),
		Data: map[string]any{
			"patient_id":     f.patient.ID.String(),
			"invoice_number": "INV-20260501-0003",
			"amount":         int64(250_000),
			"outstanding":    int64(50_000),
			"currency":       "IRR",
		},
	})
	if err := f.w.onPaymentReceived(context.Background(), e); err != nil {
		t.Fatalf("onPaymentReceived: %v", err)
	}
	if len(f.mail.msgs) != 1 {
		t.Fatalf("mails = %d", len(f.mail.msgs))
	}
	m := f.mail.msgs[0]
	if !strings.Contains(m.Subject, "INV-20260501-0003") || !strings.Contains(m.TextBody, "250000 IRR") ||
		!strings.Contains(m.TextBody, "Tehran Clinic") || !strings.Contains(m.TextBody, "50000 IRR") {
		t.Fatalf("receipt = %+v", m)
	}

	f.patient.Email = nil
	if err := f.w.onPaymentReceived(context.Background(), e); err != nil || len(f.mail.msgs) != 1 {
		t.Fatalf("patient without e-mail: err=%v mails=%d", err, len(f.mail.msgs))
	}
}

func TestInsuranceReviewedSkipsReviewer(t *testing.T) {
	f := newFixture()
	store := f.w.store.(*fakeWorkerStore)
	a := &repo.CenterMember{ID: uuid.New(), UserID: uuid.New(), Role: repo.RoleReceptionist}
	b := &repo.CenterMember{ID: uuid.New(), UserID: uuid.New(), Role: repo.RoleReceptionist}
	store.members[a.ID], store.members[b.ID] = a, b

	actor := b.UserID
	e := roundTrip(t, events.Event{
		Type:     events.InsuranceReviewed,
		CenterID: f.centerID,
		EntityID: uuid.New(),
		ActorID:  &actor,
		Data:     map[string]any{"status": repo.InsuranceApproved, "provider": "Tamin"},
	})
	if err := f.w.onInsuranceReviewed(context.Background(), e); err != nil {
		t.Fatalf("onInsuranceReviewed: %v", err)
	}
	if len(f.notes.sent) != 1 || f.notes.sent[0].UserID != a.UserID {
		t.Fatalf("notifications = %+v", f.notes.sent)
	}
	if f.notes.sent[0].Title != "Insurance request approved" {
		t.Fatalf("title = %q", f.notes.sent[0].Title)
	}
}

func TestDataInt64(t *testing.T) {
	e := events.Event{Data: map[string]any{"f": float64(12), "i": 3, "s": "44", "x": true}}
	tests := []struct {
		key  string
		want int64
		ok   bool
	}{
		{"f", 12, true},
		{"i", 3, true},
		{"s", 44, true},
		{"x", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		if got, ok := dataInt64(e, tt.key); got != tt.want || ok != tt.ok {
			t.Errorf("dataInt64(%s) = %d, %v", tt.key, got, ok)
		}
	}
}

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, email.Message) error { return email.ErrDisabled{} }

func TestPaymentReceivedMailDisabled(t *testing.T) {
	f := newFixture()
	f.w.mailer = disabledMailer{}
	e := events.Event{Type: events.PaymentReceived, CenterID: f.centerID,
		Data: map[string]any{"patient_id": f.patient.ID.String(), "invoice_number": "INV-1"}}
	if err := f.w.onPaymentReceived(context.Background(), e); err != nil {
		t.Fatalf("disabled mailer should not fail the handler: %v", err)
	}
}
