package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/notification"
	"github.com/Alijeyrad/medcenter_backend/pkg/email"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/sms"
)

// WorkerModule registers all NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	NC       *nats.Conn
	DB       *repo.Client
	NotifSvc notification.Service
	SMS      *sms.Client
	Email    *email.Client
}

func RegisterWorkers(p WorkerParams) {
	w := &workers{
		store:    repoWorkerStore{db: p.DB},
		notifier: p.NotifSvc,
		sms:      p.SMS,
		mailer:   p.Email,
	}
	var subs []*nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, r := range w.routes() {
				sub, err := events.Subscribe(p.NC, r.event, r.worker, r.handle)
				if err != nil {
					return fmt.Errorf("%s: subscribe %s: %w", r.worker, r.event, err)
				}
				subs = append(subs, sub)
			}
			slog.Info("event workers started", "subscriptions", len(subs))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// The connection itself is drained by ProvideNatsClient.
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil
		},
	})
}

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type workerStore interface {
	Member(ctx context.Context, centerID, id uuid.UUID) (*repo.CenterMember, error)
	MembersByRole(ctx context.Context, centerID uuid.UUID, role string) ([]*repo.CenterMember, error)
	Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error)
	Center(ctx context.Context, id uuid.UUID) (*repo.Center, error)
}

type notifier interface {
	Create(ctx context.Context, req notification.CreateRequest) (*repo.Notification, error)
}

type smsSender interface {
	SendAppointmentNotice(ctx context.Context, phoneNumber, patientName, doctorName string, at time.Time, status string) error
}

type mailer interface {
	Send(ctx context.Context, m email.Message) error
}

type repoWorkerStore struct{ db *repo.Client }

func (s repoWorkerStore) Member(ctx context.Context, centerID, id uuid.UUID) (*repo.CenterMember, error) {
	return s.db.Member.Get(ctx, centerID, id)
}

func (s repoWorkerStore) MembersByRole(ctx context.Context, centerID uuid.UUID, role string) ([]*repo.CenterMember, error) {
	members, _, err := s.db.Member.List(ctx, centerID, repo.MemberFilter{Role: role, ActiveOnly: true}, repo.Page{})
	return members, err
}

func (s repoWorkerStore) Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error) {
	return s.db.Patient.Get(ctx, centerID, id)
}

func (s repoWorkerStore) Center(ctx context.Context, id uuid.UUID) (*repo.Center, error) {
	return s.db.Center.Get(ctx, id)
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

type workers struct {
	store    workerStore
	notifier notifier
	sms      smsSender
	mailer   mailer
}

type route struct {
	event  string
	worker string
	handle events.Handler
}

func (w *workers) routes() []route {
	return []route{
		{events.QueueConfirmed, "notification_worker", w.onQueueConfirmed},
		{events.AppointmentCreated, "notification_worker", w.onAppointmentNotice},
		{events.AppointmentCancelled, "notification_worker", w.onAppointmentNotice},
		{events.AppointmentCreated, "sms_worker", w.onAppointmentSMS},
		{events.AppointmentCancelled, "sms_worker", w.onAppointmentSMS},
		{events.InsuranceReviewed, "notification_worker", w.onInsuranceReviewed},
		{events.PaymentReceived, "receipt_worker", w.onPaymentReceived},
		{events.MessageOutbound, "outbound_worker", w.onMessageOutbound},
	}
}

// ---------------------------------------------------------------------------
// notification_worker
// ---------------------------------------------------------------------------

// onQueueConfirmed tells the doctor a patient was handed to them.
func (w *workers) onQueueConfirmed(ctx context.Context, e events.Event) error {
	doctorID, err := dataUUID(e, "doctor_id")
	if err != nil {
		return err
	}
	doctor, err := w.store.Member(ctx, e.CenterID, doctorID)
	if err != nil {
		return fmt.Errorf("load doctor: %w", err)
	}

	title := "New patient in your queue"
	if n, ok := dataInt64(e, "queue_number"); ok {
		title = fmt.Sprintf("Patient #%d confirmed to you", n)
	}
	body := ""
	if patient, err := w.patientFor(ctx, e); err == nil {
		body = fullName(patient.FirstName, patient.LastName)
	}

	data := map[string]any{"queue_item_id": e.EntityID.String()}
	if notices, ok := e.Data["rule_notices"]; ok {
		data["rule_notices"] = notices
	}
	return w.notify(ctx, doctor.UserID, e.CenterID, "queue_confirmed", title, body, data)
}

// onAppointmentNotice tells the doctor about a booking or cancellation.
func (w *workers) onAppointmentNotice(ctx context.Context, e events.Event) error {
	doctorID, err := dataUUID(e, "doctor_id")
	if err != nil {
		return err
	}
	doctor, err := w.store.Member(ctx, e.CenterID, doctorID)
	if err != nil {
		return fmt.Errorf("load doctor: %w", err)
	}

	typ, title := "appointment_created", "New appointment"
	if e.Type == events.AppointmentCancelled {
		typ, title = "appointment_cancelled", "Appointment cancelled"
	}
	body := dataString(e, "start_time")
	if r := dataString(e, "cancel_reason"); r != "" {
		body += " (" + r + ")"
	}
	return w.notify(ctx, doctor.UserID, e.CenterID, typ, title, body,
		map[string]any{"appointment_id": e.EntityID.String()})
}

// onInsuranceReviewed tells the center's receptionists about a decision so
// they can continue the hand-off.
func (w *workers) onInsuranceReviewed(ctx context.Context, e events.Event) error {
	members, err := w.store.MembersByRole(ctx, e.CenterID, repo.RoleReceptionist)
	if err != nil {
		return fmt.Errorf("list receptionists: %w", err)
	}
	status := dataString(e, "status")
	title := "Insurance request " + status
	body := dataString(e, "provider")
	data := map[string]any{"insurance_request_id": e.EntityID.String(), "status": status}
	if q := dataString(e, "queue_item_id"); q != "" {
		data["queue_item_id"] = q
	}

	var firstErr error
	for _, m := range members {
		if e.ActorID != nil && m.UserID == *e.ActorID {
			continue
		}
		if err := w.notify(ctx, m.UserID, e.CenterID, "insurance_reviewed", title, body, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (w *workers) notify(ctx context.Context, userID, centerID uuid.UUID, typ, title, body string, data map[string]any) error {
	_, err := w.notifier.Create(ctx, notification.CreateRequest{
		UserID:   userID,
		CenterID: &centerID,
		Type:     typ,
		Title:    title,
		Body:     body,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// sms_worker
// ---------------------------------------------------------------------------

func (w *workers) onAppointmentSMS(ctx context.Context, e events.Event) error {
	patient, err := w.patientFor(ctx, e)
	if err != nil {
		return err
	}
	if patient.Phone == nil || *patient.Phone == "" {
		slog.Debug("sms_worker: patient has no phone", "patient_id", patient.ID)
		return nil
	}

	doctorName := ""
	if doctorID, err := dataUUID(e, "doctor_id"); err == nil {
		if d, err := w.store.Member(ctx, e.CenterID, doctorID); err == nil {
			doctorName = fullName(d.FirstName, d.LastName)
		}
	}
	at, err := time.Parse(time.RFC3339, dataString(e, "start_time"))
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}

	status := "booked"
	if e.Type == events.AppointmentCancelled {
		status = "cancelled"
	}
	return w.sms.SendAppointmentNotice(ctx, *patient.Phone,
		fullName(patient.FirstName, patient.LastName), doctorName, at, status)
}

// ---------------------------------------------------------------------------
// receipt_worker
// ---------------------------------------------------------------------------

func (w *workers) onPaymentReceived(ctx context.Context, e events.Event) error {
	patient, err := w.patientFor(ctx, e)
	if err != nil {
		return err
	}
	if patient.Email == nil || *patient.Email == "" {
		return nil
	}
	centerName := ""
	if c, err := w.store.Center(ctx, e.CenterID); err == nil {
		centerName = c.Name
	}

	amount, _ := dataInt64(e, "amount")
	outstanding, _ := dataInt64(e, "outstanding")
	msg := email.BuildPaymentReceiptEmail(email.ReceiptEmailData{
		Email:         *patient.Email,
		PatientName:   fullName(patient.FirstName, patient.LastName),
		CenterName:    centerName,
		InvoiceNumber: dataString(e, "invoice_number"),
		Amount:        amount,
		Currency:      dataString(e, "currency"),
		Outstanding:   outstanding,
		Reference:     dataString(e, "reference"),
	})
	if err := w.mailer.Send(ctx, msg); err != nil && !errors.As(err, &email.ErrDisabled{}) {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// outbound_worker
// ---------------------------------------------------------------------------

// onMessageOutbound records the hand-off to the provider integration. The
// message row stays queued until a provider status webhook updates it.
func (w *workers) onMessageOutbound(ctx context.Context, e events.Event) error {
	slog.InfoContext(ctx, "outbound message queued",
		"message_id", e.EntityID,
		"center_id", e.CenterID,
		"channel", dataString(e, "channel"),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Event data helpers
// ---------------------------------------------------------------------------

func (w *workers) patientFor(ctx context.Context, e events.Event) (*repo.Patient, error) {
	id, err := dataUUID(e, "patient_id")
	if err != nil {
		return nil, err
	}
	p, err := w.store.Patient(ctx, e.CenterID, id)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	return p, nil
}

func dataString(e events.Event, key string) string {
	s, _ := e.Data[key].(string)
	return s
}

func dataUUID(e events.Event, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(dataString(e, key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("event %s: bad %s: %w", e.Type, key, err)
	}
	return id, nil
}

// dataInt64 accepts float64 values from decoded JSON as well as in-process ints.
func dataInt64(e events.Event, key string) (int64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func fullName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
