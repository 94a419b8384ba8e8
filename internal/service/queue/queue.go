// Package queue is the reception side of a visit day: check-in, the daily
// queue and cancellation. Hand-off to a doctor lives in handoff.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// doctorStatuses are the statuses a doctor may see: an item only reaches a
// doctor once it has been confirmed to them.
var doctorStatuses = []string{repo.QueueConfirmed, repo.QueueInSession, repo.QueueDone}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CheckInRequest struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	// DoctorID is the intended doctor; it defaults to the appointment's doctor.
	DoctorID *uuid.UUID `json:"doctor_id"`
	Notes    *string    `json:"notes"`
}

type ListRequest struct {
	pagination.Request
	Date     *time.Time
	Status   []string
	DoctorID *uuid.UUID
}

// Store is the persistence the service needs.
type Store interface {
	Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error)
	Appointment(ctx context.Context, centerID, id uuid.UUID) (*repo.Appointment, error)
	Member(ctx context.Context, centerID, id uuid.UUID) (*repo.CenterMember, error)
	// Create numbers and inserts a waiting item atomically.
	Create(ctx context.Context, item *repo.QueueItem) error
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.QueueItem, error)
	List(ctx context.Context, centerID uuid.UUID, f repo.QueueFilter, p repo.Page) ([]*repo.QueueItem, int, error)
	Transition(ctx context.Context, centerID, id uuid.UUID, to string, from ...string) error
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	CheckIn(ctx context.Context, scope *reqctx.CenterScope, req CheckInRequest) (*repo.QueueItem, error)
	Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.QueueItem, error)
	List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.QueueItem], error)
	// Worklist is today's confirmed and in-session items of the calling doctor.
	Worklist(ctx context.Context, scope *reqctx.CenterScope) ([]*repo.QueueItem, error)
	Cancel(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.QueueItem, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type queueService struct {
	store Store
	now   func() time.Time
}

func New(store Store) Service {
	return &queueService{store: store, now: time.Now}
}

func (s *queueService) CheckIn(ctx context.Context, scope *reqctx.CenterScope, req CheckInRequest) (*repo.QueueItem, error) {
	p, err := s.store.Patient(ctx, scope.CenterID, req.PatientID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	if p.Status != repo.PatientStatusActive {
		return nil, ErrPatientArchived
	}

	doctorID := req.DoctorID
	if req.AppointmentID != nil {
		a, err := s.store.Appointment(ctx, scope.CenterID, *req.AppointmentID)
		if err != nil {
			if repo.IsNotFound(err) {
				return nil, ErrAppointmentNotFound
			}
			return nil, fmt.Errorf("get appointment: %w", err)
		}
		if a.PatientID != p.ID {
			return nil, ErrAppointmentMismatch
		}
		if a.Status != repo.AppointmentPending && a.Status != repo.AppointmentConfirmed {
			return nil, ErrAppointmentClosed
		}
		if doctorID == nil {
			doctorID = &a.DoctorID
		}
	}
	if doctorID != nil {
		m, err := s.store.Member(ctx, scope.CenterID, *doctorID)
		if err != nil && !repo.IsNotFound(err) {
			return nil, fmt.Errorf("get doctor: %w", err)
		}
		if m == nil || !m.IsActive || m.Role != repo.RoleDoctor {
			return nil, ErrDoctorNotFound
		}
	}

	item := &repo.QueueItem{
		CenterID:      scope.CenterID,
		PatientID:     p.ID,
		AppointmentID: req.AppointmentID,
		DoctorID:      doctorID,
		QueueDate:     s.now().UTC(),
		Notes:         req.Notes,
	}
	if err := s.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create queue item: %w", err)
	}
	return item, nil
}

func (s *queueService) Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.QueueItem, error) {
	item, err := s.store.Get(ctx, scope.CenterID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	if ownOnly(scope) && !visibleToDoctor(item, scope.MemberID) {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *queueService) List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.QueueItem], error) {
	for _, st := range req.Status {
		if !validStatus(st) {
			return nil, ErrInvalidStatus
		}
	}
	f := repo.QueueFilter{Date: req.Date, Status: req.Status, DoctorID: req.DoctorID}
	if ownOnly(scope) {
		f.DoctorID = &scope.MemberID
		f.Status = restrict(req.Status, doctorStatuses)
		if len(f.Status) == 0 {
			return pagination.NewResult([]*repo.QueueItem{}, 0, req.Normalize()), nil
		}
	}

	page := req.Normalize()
	list, total, err := s.store.List(ctx, scope.CenterID, f, page.Repo())
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return pagination.NewResult(list, total, page), nil
}

func (s *queueService) Worklist(ctx context.Context, scope *reqctx.CenterScope) ([]*repo.QueueItem, error) {
	today := s.now().UTC()
	list, _, err := s.store.List(ctx, scope.CenterID, repo.QueueFilter{
		Date:     &today,
		Status:   []string{repo.QueueConfirmed, repo.QueueInSession},
		DoctorID: &scope.MemberID,
	}, repo.Page{Limit: pagination.MaxPerPage})
	if err != nil {
		return nil, fmt.Errorf("list worklist: %w", err)
	}
	return list, nil
}

func (s *queueService) Cancel(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.QueueItem, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return nil, err
	}
	err := s.store.Transition(ctx, scope.CenterID, id, repo.QueueCancelled, repo.QueueWaiting, repo.QueueConfirmed)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel queue item: %w", err)
	}
	return s.Get(ctx, scope, id)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func ownOnly(scope *reqctx.CenterScope) bool {
	return !scope.IsSuperAdmin && scope.Role == repo.RoleDoctor
}

func visibleToDoctor(item *repo.QueueItem, doctorID uuid.UUID) bool {
	if item.DoctorID == nil || *item.DoctorID != doctorID {
		return false
	}
	for _, s := range doctorStatuses {
		if item.Status == s {
			return true
		}
	}
	return false
}

// restrict intersects the requested statuses with allowed; an empty request
// means all of allowed.
func restrict(requested, allowed []string) []string {
	if len(requested) == 0 {
		return allowed
	}
	out := make([]string, 0, len(requested))
	for _, r := range requested {
		for _, a := range allowed {
			if r == a {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func validStatus(s string) bool {
	switch s {
	case repo.QueueWaiting, repo.QueueConfirmed, repo.QueueInSession, repo.QueueDone, repo.QueueCancelled:
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

func (r *RepoStore) Appointment(ctx context.Context, centerID, id uuid.UUID) (*repo.Appointment, error) {
	return r.DB.Appointment.Get(ctx, centerID, id)
}

func (r *RepoStore) Member(ctx context.Context, centerID, id uuid.UUID) (*repo.CenterMember, error) {
	return r.DB.Member.Get(ctx, centerID, id)
}

// Create runs in its own transaction so the per-day number lock is released on commit.
func (r *RepoStore) Create(ctx context.Context, item *repo.QueueItem) error {
	return r.DB.WithTx(ctx, func(tx *repo.Client) error {
		return tx.Queue.Create(ctx, item)
	})
}

func (r *RepoStore) Get(ctx context.Context, centerID, id uuid.UUID) (*repo.QueueItem, error) {
	return r.DB.Queue.Get(ctx, centerID, id)
}

func (r *RepoStore) List(ctx context.Context, centerID uuid.UUID, f repo.QueueFilter, p repo.Page) ([]*repo.QueueItem, int, error) {
	return r.DB.Queue.List(ctx, centerID, f, p)
}

func (r *RepoStore) Transition(ctx context.Context, centerID, id uuid.UUID, to string, from ...string) error {
	return r.DB.Queue.Transition(ctx, centerID, id, to, from...)
}
