// Package verification decides whether a queue item may be handed to a doctor:
// insurance approved, required documents uploaded, invoices paid.
package verification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// Store is the read side the checks need.
type Store interface {
	QueueItem(ctx context.Context, centerID, id uuid.UUID) (*repo.QueueItem, error)
	Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error)
	Billable(ctx context.Context, centerID, patientID uuid.UUID, queueItemID *uuid.UUID) ([]*repo.Invoice, error)
	LatestInsurance(ctx context.Context, centerID, patientID uuid.UUID, queueItemID *uuid.UUID) (*repo.InsuranceRequest, error)
	Documents(ctx context.Context, centerID, requestID uuid.UUID) ([]*repo.InsuranceDocument, error)
}

// Snapshot is the loaded state for one queue item.
type Snapshot struct {
	Item    *repo.QueueItem
	Patient *repo.Patient
	Input   Input
}

type Service interface {
	Load(ctx context.Context, centerID, queueItemID uuid.UUID) (*Snapshot, error)
	// ForQueueItem hides items not yet confirmed to a doctor caller.
	ForQueueItem(ctx context.Context, scope *reqctx.CenterScope, queueItemID uuid.UUID) (*Result, error)
}

type verificationService struct {
	store          Store
	requireInvoice bool
}

func New(store Store, cfg *config.Config) Service {
	return &verificationService{store: store, requireInvoice: cfg.Billing.RequireInvoice}
}

func (s *verificationService) Load(ctx context.Context, centerID, queueItemID uuid.UUID) (*Snapshot, error) {
	item, err := s.store.QueueItem(ctx, centerID, queueItemID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("load queue item: %w", err)
	}
	p, err := s.store.Patient(ctx, centerID, item.PatientID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	in := Input{UsesInsurance: p.UsesInsurance, RequireInvoice: s.requireInvoice}

	in.Invoices, err = s.store.Billable(ctx, centerID, p.ID, &item.ID)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}

	in.Insurance, err = s.store.LatestInsurance(ctx, centerID, p.ID, &item.ID)
	if err != nil && !repo.IsNotFound(err) {
		return nil, fmt.Errorf("load insurance request: %w", err)
	}
	if in.Insurance != nil && in.Insurance.QueueItemID != nil && *in.Insurance.QueueItemID != item.ID {
		in.Insurance = nil
	}
	if in.Insurance != nil {
		in.Documents, err = s.store.Documents(ctx, centerID, in.Insurance.ID)
		if err != nil {
			return nil, fmt.Errorf("load insurance documents: %w", err)
		}
	}

	return &Snapshot{Item: item, Patient: p, Input: in}, nil
}

func (s *verificationService) ForQueueItem(ctx context.Context, scope *reqctx.CenterScope, queueItemID uuid.UUID) (*Result, error) {
	snap, err := s.Load(ctx, scope.CenterID, queueItemID)
	if err != nil {
		return nil, err
	}
	if doctorOnly(scope) && !confirmedTo(snap.Item, scope.MemberID) {
		return nil, ErrQueueItemNotFound
	}
	res := Verify(snap.Input)
	return &res, nil
}

func doctorOnly(scope *reqctx.CenterScope) bool {
	return !scope.IsSuperAdmin && scope.Role == repo.RoleDoctor
}

func confirmedTo(item *repo.QueueItem, doctorID uuid.UUID) bool {
	if item.DoctorID == nil || *item.DoctorID != doctorID {
		return false
	}
	switch item.Status {
	case repo.QueueConfirmed, repo.QueueInSession, repo.QueueDone:
		return true
	}
	return false
}

// RepoStore reads through the repository client.
type RepoStore struct {
	DB *repo.Client
}

func NewRepoStore(db *repo.Client) *RepoStore { return &RepoStore{DB: db} }

func (r *RepoStore) QueueItem(ctx context.Context, centerID, id uuid.UUID) (*repo.QueueItem, error) {
	return r.DB.Queue.Get(ctx, centerID, id)
}

func (r *RepoStore) Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error) {
	return r.DB.Patient.Get(ctx, centerID, id)
}

func (r *RepoStore) Billable(ctx context.Context, centerID, patientID uuid.UUID, queueItemID *uuid.UUID) ([]*repo.Invoice, error) {
	return r.DB.Invoice.ListBillable(ctx, centerID, patientID, queueItemID)
}

func (r *RepoStore) LatestInsurance(ctx context.Context, centerID, patientID uuid.UUID, queueItemID *uuid.UUID) (*repo.InsuranceRequest, error) {
	return r.DB.Insurance.Latest(ctx, centerID, patientID, queueItemID)
}

func (r *RepoStore) Documents(ctx context.Context, centerID, requestID uuid.UUID) ([]*repo.InsuranceDocument, error) {
	return r.DB.Insurance.ListDocuments(ctx, centerID, requestID)
}
