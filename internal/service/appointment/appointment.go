package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// transitions lists the statuses each status may move to. Completed and
// cancelled are terminal.
var transitions = map[string][]string{
	repo.AppointmentPending:   {repo.AppointmentConfirmed, repo.AppointmentCancelled},
	repo.AppointmentConfirmed: {repo.AppointmentCompleted, repo.AppointmentCancelled},
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sources returns the statuses that may move to to.
func sources(to string) []string {
	var out []string
	for from, tos := range transitions {
		for _, s := range tos {
			if s == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type ListRequest struct {
	pagination.Request
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	From      *time.Time
	To        *time.Time
}

type CreateRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    *string   `json:"reason"`
	Notes     *string   `json:"notes"`
}

type CreateResult struct {
	Appointment *repo.Appointment `json:"appointment"`
	Warnings    []string          `json:"warnings"`
}

type UpdateRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Reason    *string    `json:"reason"`
	Notes     *string    `json:"notes"`
}

// Store is the persistence the service needs.
type Store interface {
	Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error)
	Member(ctx context.Context, centerID, id uuid.UUID) (*repo.CenterMember, error)
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Appointment, error)
	List(ctx context.Context, centerID uuid.UUID, f repo.AppointmentFilter, p repo.Page) ([]*repo.Appointment, int, error)
	// Book inserts a, failing with ErrOverlap when the doctor is busy.
	Book(ctx context.Context, a *repo.Appointment) error
	// Reschedule applies in, failing with ErrOverlap when the new range is busy.
	Reschedule(ctx context.Context, current *repo.Appointment, in repo.AppointmentUpdate) error
	Transition(ctx context.Context, centerID, id uuid.UUID, from []string, to string, cancelReason *string) error
	DeletePending(ctx context.Context, centerID, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.Appointment], error)
	Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Appointment, error)
	Create(ctx context.Context, scope *reqctx.CenterScope, req CreateRequest) (*CreateResult, error)
	Update(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req UpdateRequest) (*repo.Appointment, error)
	// SetStatus moves the appointment along the allowed transitions.
	SetStatus(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, status string, reason *string) (*repo.Appointment, error)
	Delete(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type appointmentService struct {
	store  Store
	rules  rules.Service
	events events.Publisher
	now    func() time.Time
}

func New(store Store, rulesSvc rules.Service, pub events.Publisher) Service {
	return &appointmentService{store: store, rules: rulesSvc, events: pub, now: time.Now}
}

func (s *appointmentService) List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.Appointment], error) {
	if req.Status != "" && !validStatus(req.Status) {
		return nil, ErrInvalidStatus
	}
	f := repo.AppointmentFilter{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Status:    req.Status,
		From:      req.From,
		To:        req.To,
	}
	if ownOnly(scope) {
		f.DoctorID = &scope.MemberID
	}
	page := req.Normalize()
	list, total, err := s.store.List(ctx, scope.CenterID, f, page.Repo())
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return pagination.NewResult(list, total, page), nil
}

func (s *appointmentService) Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Appointment, error) {
	a, err := s.store.Get(ctx, scope.CenterID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if ownOnly(scope) && a.DoctorID != scope.MemberID {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *appointmentService) Create(ctx context.Context, scope *reqctx.CenterScope, req CreateRequest) (*CreateResult, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, ErrInvalidTime
	}

	patient, err := s.store.Patient(ctx, scope.CenterID, req.PatientID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	doctor, err := s.store.Member(ctx, scope.CenterID, req.DoctorID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	if !doctor.IsActive || doctor.Role != repo.RoleDoctor {
		return nil, ErrDoctorNotFound
	}

	ruleRes, err := s.rules.Evaluate(ctx, scope.CenterID, rules.TriggerAppointmentCreate,
		evalContext(patient, doctor, req, scope.Role, s.now()))
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}
	if err := ruleRes.Check(); err != nil {
		return nil, err
	}

	a := &repo.Appointment{
		CenterID:  scope.CenterID,
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}
	if err := s.store.Book(ctx, a); err != nil {
		if errors.Is(err, ErrOverlap) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.publish(ctx, scope, events.AppointmentCreated, a)
	return &CreateResult{Appointment: a, Warnings: ruleRes.Warnings()}, nil
}

func (s *appointmentService) Update(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req UpdateRequest) (*repo.Appointment, error) {
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if current.Status != repo.AppointmentPending && current.Status != repo.AppointmentConfirmed {
		return nil, ErrInvalidTransition
	}

	start, end := current.StartTime, current.EndTime
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if !end.After(start) {
		return nil, ErrInvalidTime
	}

	err = s.store.Reschedule(ctx, current, repo.AppointmentUpdate{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Notes:     req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOverlap):
			return nil, err
		case repo.IsNotFound(err):
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return s.Get(ctx, scope, id)
}

func (s *appointmentService) SetStatus(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, status string, reason *string) (*repo.Appointment, error) {
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, status) {
		return nil, ErrInvalidTransition
	}
	if status != repo.AppointmentCancelled {
		reason = nil
	}

	if err := s.store.Transition(ctx, scope.CenterID, id, sources(status), status, reason); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("transition appointment: %w", err)
	}

	updated, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if status == repo.AppointmentCancelled {
		s.publish(ctx, scope, events.AppointmentCancelled, updated)
	}
	return updated, nil
}

func (s *appointmentService) Delete(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) error {
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if current.Status != repo.AppointmentPending {
		return ErrNotDeletable
	}
	if err := s.store.DeletePending(ctx, scope.CenterID, id); err != nil {
		if repo.IsNotFound(err) {
			return ErrNotDeletable
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *appointmentService) publish(ctx context.Context, scope *reqctx.CenterScope, typ string, a *repo.Appointment) {
	data := map[string]any{
		"patient_id": a.PatientID.String(),
		"doctor_id":  a.DoctorID.String(),
		"start_time": a.StartTime.UTC().Format(time.RFC3339),
		"status":     a.Status,
	}
	if a.CancelReason != nil {
		data["cancel_reason"] = *a.CancelReason
	}
	events.PublishBestEffort(ctx, s.events, events.Event{
		Type:     typ,
		CenterID: scope.CenterID,
		EntityID: a.ID,
		ActorID:  actorID(scope),
		Data:     data,
	})
}

// evalContext is the data appointment_create rules are evaluated against.
func evalContext(p *repo.Patient, doctor *repo.CenterMember, req CreateRequest, actorRole string, now time.Time) map[string]any {
	patient := map[string]any{
		"id":             p.ID.String(),
		"status":         p.Status,
		"uses_insurance": p.UsesInsurance,
	}
	if p.Gender != nil {
		patient["gender"] = *p.Gender
	}
	doc := map[string]any{"id": doctor.ID.String()}
	if doctor.Specialty != nil {
		doc["specialty"] = *doctor.Specialty
	}
	return map[string]any{
		"patient": patient,
		"doctor":  doc,
		"appointment": map[string]any{
			"hour":             req.StartTime.Hour(),
			"weekday":          int(req.StartTime.Weekday()),
			"duration_minutes": int(req.EndTime.Sub(req.StartTime).Minutes()),
			"lead_hours":       int(req.StartTime.Sub(now).Hours()),
			"has_reason":       req.Reason != nil && *req.Reason != "",
		},
		"actor": map[string]any{"role": actorRole},
	}
}

func ownOnly(scope *reqctx.CenterScope) bool {
	return !scope.IsSuperAdmin && scope.Role == repo.RoleDoctor
}

func actorID(scope *reqctx.CenterScope) *uuid.UUID {
	if scope.MemberID == uuid.Nil {
		return nil
	}
	id := scope.MemberID
	return &id
}

func validStatus(s string) bool {
	switch s {
	case repo.AppointmentPending, repo.AppointmentConfirmed, repo.AppointmentCompleted, repo.AppointmentCancelled:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Repository adapter
// ---------------------------------------------------------------------------

// RepoStore backs Store with the repository client.
type RepoStore struct {
	DB *repo.Client
}

func NewRepoStore(db *repo.Client) *RepoStore { return &RepoStore{DB: db} }

func (r *RepoStore) Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error) {
	return r.DB.Patient.Get(ctx, centerID, id)
}

func (r *RepoStore) Member(ctx context.Context, centerID, id uuid.UUID) (*repo.CenterMember, error) {
	return r.DB.Member.Get(ctx, centerID, id)
}

func (r *RepoStore) Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Appointment, error) {
	return r.DB.Appointment.Get(ctx, centerID, id)
}

func (r *RepoStore) List(ctx context.Context, centerID uuid.UUID, f repo.AppointmentFilter, p repo.Page) ([]*repo.Appointment, int, error) {
	return r.DB.Appointment.List(ctx, centerID, f, p)
}

func (r *RepoStore) Book(ctx context.Context, a *repo.Appointment) error {
	return r.DB.WithTx(ctx, func(tx *repo.Client) error {
		if err := tx.Appointment.LockDoctor(ctx, a.DoctorID); err != nil {
			return err
		}
		busy, err := tx.Appointment.HasOverlap(ctx, a.DoctorID, a.StartTime, a.EndTime, nil)
		if err != nil {
			return err
		}
		if busy {
			return ErrOverlap
		}
		return tx.Appointment.Create(ctx, a)
	})
}

func (r *RepoStore) Reschedule(ctx context.Context, current *repo.Appointment, in repo.AppointmentUpdate) error {
	return r.DB.WithTx(ctx, func(tx *repo.Client) error {
		if in.StartTime != nil || in.EndTime != nil {
			start, end := current.StartTime, current.EndTime
			if in.StartTime != nil {
				start = *in.StartTime
			}
			if in.EndTime != nil {
				end = *in.EndTime
			}
			if err := tx.Appointment.LockDoctor(ctx, current.DoctorID); err != nil {
				return err
			}
			busy, err := tx.Appointment.HasOverlap(ctx, current.DoctorID, start, end, &current.ID)
			if err != nil {
				return err
			}
			if busy {
				return ErrOverlap
			}
		}
		return tx.Appointment.Update(ctx, current.CenterID, current.ID, in)
	})
}

func (r *RepoStore) Transition(ctx context.Context, centerID, id uuid.UUID, from []string, to string, cancelReason *string) error {
	return r.DB.Appointment.Transition(ctx, centerID, id, from, to, cancelReason)
}

func (r *RepoStore) DeletePending(ctx context.Context, centerID, id uuid.UUID) error {
	return r.DB.Appointment.DeletePending(ctx, centerID, id)
}
