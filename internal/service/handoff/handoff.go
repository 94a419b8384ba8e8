// Package handoff implements the reception to doctor hand-off. A waiting
// queue item only becomes visible to a doctor after business rules and
// payment verification pass and the confirmation has committed.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/internal/service/verification"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/observability"
)

const (
	outcomeConfirmed          = "confirmed"
	outcomeBlocked            = "blocked"
	outcomeVerificationFailed = "verification_failed"
	outcomeRejected           = "rejected"
)

type ConfirmRequest struct {
	CenterID    uuid.UUID
	QueueItemID uuid.UUID
	DoctorID    uuid.UUID // center member id
	// ActorID is the confirming member; nil for superadmins without membership.
	ActorID   *uuid.UUID
	ActorRole string
	Note      *string
}

type Outcome struct {
	QueueItem    *repo.QueueItem     `json:"queue_item"`
	Verification verification.Result `json:"verification"`
	Warnings     []string            `json:"warnings"`
	Rules        *rules.Result       `json:"rules"`
}

type Service interface {
	ConfirmToDoctor(ctx context.Context, req ConfirmRequest) (*Outcome, error)
}

// Store performs the membership lookup and the atomic confirmation.
type Store interface {
	Member(ctx context.Context, centerID, memberID uuid.UUID) (*repo.CenterMember, error)
	// Confirm marks the item confirmed (guarded by status = waiting) and the
	// linked appointment confirmed if pending, in one transaction.
	Confirm(ctx context.Context, item *repo.QueueItem, doctorID uuid.UUID, actor *uuid.UUID, note *string) (*repo.QueueItem, error)
}

type handoffService struct {
	store    Store
	verifier verification.Service
	rules    rules.Service
	events   events.Publisher
	metrics  *observability.Metrics
	now      func() time.Time
}

func New(store Store, verifier verification.Service, rulesSvc rules.Service, pub events.Publisher, metrics *observability.Metrics) Service {
	return &handoffService{
		store:    store,
		verifier: verifier,
		rules:    rulesSvc,
		events:   pub,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *handoffService) ConfirmToDoctor(ctx context.Context, req ConfirmRequest) (*Outcome, error) {
	// 1. queue item must be waiting
	snap, err := s.verifier.Load(ctx, req.CenterID, req.QueueItemID)
	if err != nil {
		return nil, err
	}
	if snap.Item.Status != repo.QueueWaiting {
		s.metrics.Handoff(ctx, outcomeRejected)
		return nil, ErrInvalidTransition
	}

	// 2. target must be an active doctor of the center
	doctor, err := s.store.Member(ctx, req.CenterID, req.DoctorID)
	if err != nil {
		if repo.IsNotFound(err) {
			s.metrics.Handoff(ctx, outcomeRejected)
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.IsActive || doctor.Role != repo.RoleDoctor {
		s.metrics.Handoff(ctx, outcomeRejected)
		return nil, ErrDoctorNotFound
	}

	// 3. business rules
	ruleRes, err := s.rules.Evaluate(ctx, req.CenterID, rules.TriggerConfirmToDoctor,
		evalContext(snap, doctor, req.ActorRole, s.now()))
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}
	if b := ruleRes.Blocking(); b != nil {
		s.metrics.Handoff(ctx, outcomeBlocked)
		slog.InfoContext(ctx, "hand-off blocked by rule",
			"queue_item_id", req.QueueItemID, "rule_id", b.RuleID, "rule", b.Name)
		return nil, &BlockedError{Match: *b}
	}

	// 4. payment / insurance verification
	in := snap.Input
	in.ForcePayment = ruleRes.RequiresPayment()
	in.ForceInsurance = ruleRes.RequiresInsurance()
	ver := verification.Verify(in)
	if !ver.CanProceed {
		s.metrics.Handoff(ctx, outcomeVerificationFailed)
		return nil, &VerificationError{Result: ver}
	}

	// 5. atomic confirmation
	item, err := s.store.Confirm(ctx, snap.Item, doctor.ID, req.ActorID, req.Note)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Another request moved the item after we loaded it.
			s.metrics.Handoff(ctx, outcomeRejected)
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm queue item: %w", err)
	}
	s.metrics.Handoff(ctx, outcomeConfirmed)

	// 6. notify
	data := map[string]any{
		"patient_id":   item.PatientID.String(),
		"doctor_id":    doctor.ID.String(),
		"queue_number": item.QueueNumber,
	}
	if n := ruleRes.Notifications(); len(n) > 0 {
		msgs := make([]string, len(n))
		for i, m := range n {
			msgs[i] = m.Action.Message
		}
		data["rule_notices"] = msgs
	}
	events.PublishBestEffort(ctx, s.events, events.Event{
		Type:     events.QueueConfirmed,
		CenterID: req.CenterID,
		EntityID: item.ID,
		ActorID:  req.ActorID,
		Data:     data,
	})

	return &Outcome{
		QueueItem:    item,
		Verification: ver,
		Warnings:     ruleRes.Warnings(),
		Rules:        ruleRes,
	}, nil
}

// RepoStore backs Store with the repository client.
type RepoStore struct {
	DB *repo.Client
}

func NewRepoStore(db *repo.Client) *RepoStore { return &RepoStore{DB: db} }

func (r *RepoStore) Member(ctx context.Context, centerID, memberID uuid.UUID) (*repo.CenterMember, error) {
	return r.DB.Member.Get(ctx, centerID, memberID)
}

func (r *RepoStore) Confirm(ctx context.Context, item *repo.QueueItem, doctorID uuid.UUID, actor *uuid.UUID, note *string) (*repo.QueueItem, error) {
	var out *repo.QueueItem
	err := r.DB.WithTx(ctx, func(tx *repo.Client) error {
		if err := tx.Queue.Confirm(ctx, item.CenterID, item.ID, doctorID, actor, note); err != nil {
			return err
		}
		if item.AppointmentID != nil {
			err := tx.Appointment.Transition(ctx, item.CenterID, *item.AppointmentID,
				[]string{repo.AppointmentPending}, repo.AppointmentConfirmed, nil)
			if err != nil && !repo.IsNotFound(err) {
				return fmt.Errorf("confirm appointment: %w", err)
			}
		}
		var err error
		out, err = tx.Queue.Get(ctx, item.CenterID, item.ID)
		return err
	})
	return out, err
}
