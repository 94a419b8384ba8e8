// Package visit covers the doctor's side of a confirmed queue item: opening
// the visit, clinical notes and closing it with a diagnosis.
package visit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type OpenRequest struct {
	QueueItemID    uuid.UUID `json:"queue_item_id"`
	ChiefComplaint *string   `json:"chief_complaint"`
	Notes          *string   `json:"notes"`
}

type UpdateRequest struct {
	ChiefComplaint *string `json:"chief_complaint"`
	Diagnosis      *string `json:"diagnosis"`
	Notes          *string `json:"notes"`
}

type CloseRequest struct {
	Diagnosis *string `json:"diagnosis"`
	Notes     *string `json:"notes"`
}

type ListRequest struct {
	pagination.Request
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
}

// Store is the persistence the service needs.
type Store interface {
	QueueItem(ctx context.Context, centerID, id uuid.UUID) (*repo.QueueItem, error)
	// Open moves the item confirmed -> in_session and inserts v in one
	// transaction. Returns repo.ErrNotFound when the item is no longer confirmed.
	Open(ctx context.Context, item *repo.QueueItem, v *repo.Visit) error
	// Close closes the visit, moves its queue item to done and completes the
	// linked appointment in one transaction.
	Close(ctx context.Context, v *repo.Visit, diagnosis, notes *string) error
	Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Visit, error)
	List(ctx context.Context, centerID uuid.UUID, f repo.VisitFilter, p repo.Page) ([]*repo.Visit, int, error)
	Update(ctx context.Context, centerID, id uuid.UUID, in repo.VisitUpdate) error
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Open(ctx context.Context, scope *reqctx.CenterScope, req OpenRequest) (*repo.Visit, error)
	Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Visit, error)
	List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.Visit], error)
	Update(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req UpdateRequest) (*repo.Visit, error)
	Close(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req CloseRequest) (*repo.Visit, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type visitService struct {
	store Store
}

func New(store Store) Service {
	return &visitService{store: store}
}

func (s *visitService) Open(ctx context.Context, scope *reqctx.CenterScope, req OpenRequest) (*repo.Visit, error) {
	item, err := s.store.QueueItem(ctx, scope.CenterID, req.QueueItemID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	if item.Status != repo.QueueConfirmed || item.DoctorID == nil {
		return nil, ErrNotConfirmed
	}
	// Owners and admins may open on behalf of the assigned doctor.
	if ownOnly(scope) && *item.DoctorID != scope.MemberID {
		return nil, ErrNotAssigned
	}

	v := &repo.Visit{
		CenterID:       scope.CenterID,
		PatientID:      item.PatientID,
		DoctorID:       *item.DoctorID,
		QueueItemID:    &item.ID,
		AppointmentID:  item.AppointmentID,
		ChiefComplaint: trimmed(req.ChiefComplaint),
		Notes:          req.Notes,
	}
	if err := s.store.Open(ctx, item, v); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotConfirmed
		}
		return nil, fmt.Errorf("open visit: %w", err)
	}
	return v, nil
}

func (s *visitService) Get(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Visit, error) {
	v, err := s.store.Get(ctx, scope.CenterID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	if ownOnly(scope) && v.DoctorID != scope.MemberID {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *visitService) List(ctx context.Context, scope *reqctx.CenterScope, req ListRequest) (*pagination.Result[*repo.Visit], error) {
	if req.Status != "" && req.Status != repo.VisitOpen && req.Status != repo.VisitClosed {
		return nil, ErrInvalidStatus
	}
	f := repo.VisitFilter{PatientID: req.PatientID, DoctorID: req.DoctorID, Status: req.Status}
	if ownOnly(scope) {
		f.DoctorID = &scope.MemberID
	}
	page := req.Normalize()
	list, total, err := s.store.List(ctx, scope.CenterID, f, page.Repo())
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return pagination.NewResult(list, total, page), nil
}

func (s *visitService) Update(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req UpdateRequest) (*repo.Visit, error) {
	v, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if v.Status != repo.VisitOpen {
		return nil, ErrVisitClosed
	}
	err = s.store.Update(ctx, scope.CenterID, id, repo.VisitUpdate{
		ChiefComplaint: req.ChiefComplaint,
		Diagnosis:      req.Diagnosis,
		Notes:          req.Notes,
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrVisitClosed
		}
		return nil, fmt.Errorf("update visit: %w", err)
	}
	return s.Get(ctx, scope, id)
}

func (s *visitService) Close(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID, req CloseRequest) (*repo.Visit, error) {
	v, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if v.Status != repo.VisitOpen {
		return nil, ErrVisitClosed
	}
	diagnosis := trimmed(req.Diagnosis)
	if diagnosis == nil {
		diagnosis = trimmed(v.Diagnosis)
	}
	if diagnosis == nil {
		return nil, ErrDiagnosisRequired
	}

	if err := s.store.Close(ctx, v, diagnosis, req.Notes); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrVisitClosed
		}
		return nil, fmt.Errorf("close visit: %w", err)
	}
	return s.Get(ctx, scope, id)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func ownOnly(scope *reqctx.CenterScope) bool {
	return !scope.IsSuperAdmin && scope.Role == repo.RoleDoctor
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// ---------------------------------------------------------------------------
// Repository adapter
// ---------------------------------------------------------------------------

// RepoStore backs Store with the repository client.
type RepoStore struct {
	DB *repo.Client
}

func NewRepoStore(db *repo.Client) *RepoStore { return &RepoStore{DB: db} }

func (r *RepoStore) QueueItem(ctx context.Context, centerID, id uuid.UUID) (*repo.QueueItem, error) {
	return r.DB.Queue.Get(ctx, centerID, id)
}

func (r *RepoStore) Open(ctx context.Context, item *repo.QueueItem, v *repo.Visit) error {
	return r.DB.WithTx(ctx, func(tx *repo.Client) error {
		if err := tx.Queue.Transition(ctx, item.CenterID, item.ID, repo.QueueInSession, repo.QueueConfirmed); err != nil {
			return err
		}
		return tx.Visit.Create(ctx, v)
	})
}

func (r *RepoStore) Close(ctx context.Context, v *repo.Visit, diagnosis, notes *string) error {
	return r.DB.WithTx(ctx, func(tx *repo.Client) error {
		if err := tx.Visit.Close(ctx, v.CenterID, v.ID, diagnosis, notes); err != nil {
			return err
		}
		if v.QueueItemID != nil {
			err := tx.Queue.Transition(ctx, v.CenterID, *v.QueueItemID, repo.QueueDone, repo.QueueInSession)
			if err != nil && !repo.IsNotFound(err) {
				return fmt.Errorf("finish queue item: %w", err)
			}
		}
		if v.AppointmentID != nil {
			err := tx.Appointment.Transition(ctx, v.CenterID, *v.AppointmentID,
				[]string{repo.AppointmentConfirmed}, repo.AppointmentCompleted, nil)
			if err != nil && !repo.IsNotFound(err) {
				return fmt.Errorf("complete appointment: %w", err)
			}
		}
		return nil
	})
}

func (r *RepoStore) Get(ctx context.Context, centerID, id uuid.UUID) (*repo.Visit, error) {
	return r.DB.Visit.Get(ctx, centerID, id)
}

func (r *RepoStore) List(ctx context.Context, centerID uuid.UUID, f repo.VisitFilter, p repo.Page) ([]*repo.Visit, int, error) {
	return r.DB.Visit.List(ctx, centerID, f, p)
}

func (r *RepoStore) Update(ctx context.Context, centerID, id uuid.UUID, in repo.VisitUpdate) error {
	return r.DB.Visit.Update(ctx, centerID, id, in)
}
