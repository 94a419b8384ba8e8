// Package dashboard builds the role-shaped summaries behind GET /dashboard.
// The business day is the UTC calendar day, the same day queue numbers use.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type Reception struct {
	Waiting          int `json:"waiting"`
	ConfirmedToday   int `json:"confirmed_today"`
	PendingInsurance int `json:"pending_insurance"`
	UnpaidInvoices   int `json:"unpaid_invoices"`
}

type Doctor struct {
	ConfirmedQueue    int `json:"confirmed_queue"`
	InSession         int `json:"in_session"`
	OpenVisits        int `json:"open_visits"`
	TodayAppointments int `json:"today_appointments"`
}

type Accounting struct {
	Currency         string         `json:"currency"`
	RevenueToday     int64          `json:"revenue_today"`
	Outstanding      int64          `json:"outstanding"`
	InvoicesByStatus map[string]int `json:"invoices_by_status"`
}

type Insurance struct {
	Pending  int            `json:"pending"`
	ByStatus map[string]int `json:"by_status"`
}

// Summary holds the sections visible to the caller's role; the others are nil.
type Summary struct {
	Role       string      `json:"role"`
	Date       string      `json:"date"`
	Reception  *Reception  `json:"reception,omitempty"`
	Doctor     *Doctor     `json:"doctor,omitempty"`
	Accounting *Accounting `json:"accounting,omitempty"`
	Insurance  *Insurance  `json:"insurance,omitempty"`
}

// Store is the persistence the service needs; *repo.DashboardRepo satisfies it.
type Store interface {
	QueueByStatus(ctx context.Context, centerID uuid.UUID, day time.Time, doctorID *uuid.UUID) (map[string]int, error)
	InvoicesByStatus(ctx context.Context, centerID uuid.UUID) (map[string]int, error)
	InsuranceByStatus(ctx context.Context, centerID uuid.UUID) (map[string]int, error)
	Outstanding(ctx context.Context, centerID uuid.UUID) (int64, error)
	Revenue(ctx context.Context, centerID uuid.UUID, from, to time.Time) (int64, error)
	OpenVisits(ctx context.Context, centerID uuid.UUID, doctorID *uuid.UUID) (int, error)
	Appointments(ctx context.Context, centerID uuid.UUID, doctorID *uuid.UUID, from, to time.Time) (int, error)
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Summary(ctx context.Context, scope *reqctx.CenterScope) (*Summary, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type dashboardService struct {
	store    Store
	currency string
	now      func() time.Time
}

func New(store Store, currency string) Service {
	if currency == "" {
		currency = "IRR"
	}
	return &dashboardService{store: store, currency: currency, now: time.Now}
}

// sections lists the dashboard sections per member role.
var sections = map[string][]string{
	repo.RoleOwner:            {"reception", "doctor", "accounting", "insurance"},
	repo.RoleAdmin:            {"reception", "doctor", "accounting", "insurance"},
	repo.RoleReceptionist:     {"reception"},
	repo.RoleDoctor:           {"doctor"},
	repo.RoleAccountant:       {"accounting"},
	repo.RoleInsuranceOfficer: {"insurance"},
}

func (s *dashboardService) Summary(ctx context.Context, scope *reqctx.CenterScope) (*Summary, error) {
	role := scope.Role
	if scope.IsSuperAdmin && role == "" {
		role = repo.RoleAdmin
	}
	parts, ok := sections[role]
	if !ok {
		return nil, ErrUnknownRole
	}

	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out := &Summary{Role: role, Date: day.Format(time.DateOnly)}

	for _, p := range parts {
		var err error
		switch p {
		case "reception":
			out.Reception, err = s.reception(ctx, scope.CenterID, day)
		case "doctor":
			// Owners and admins see the whole center; a doctor sees their own numbers.
			var doctorID *uuid.UUID
			if role == repo.RoleDoctor {
				id := scope.MemberID
				doctorID = &id
			}
			out.Doctor, err = s.doctor(ctx, scope.CenterID, doctorID, day)
		case "accounting":
			out.Accounting, err = s.accounting(ctx, scope.CenterID, day)
		case "insurance":
			out.Insurance, err = s.insurance(ctx, scope.CenterID)
		}
		if err != nil {
			return nil, fmt.Errorf("%s dashboard: %w", p, err)
		}
	}
	return out, nil
}

func (s *dashboardService) reception(ctx context.Context, centerID uuid.UUID, day time.Time) (*Reception, error) {
	queue, err := s.store.QueueByStatus(ctx, centerID, day, nil)
	if err != nil {
		return nil, err
	}
	ins, err := s.store.InsuranceByStatus(ctx, centerID)
	if err != nil {
		return nil, err
	}
	inv, err := s.store.InvoicesByStatus(ctx, centerID)
	if err != nil {
		return nil, err
	}
	return &Reception{
		Waiting:          queue[repo.QueueWaiting],
		ConfirmedToday:   queue[repo.QueueConfirmed] + queue[repo.QueueInSession] + queue[repo.QueueDone],
		PendingInsurance: ins[repo.InsurancePending],
		UnpaidInvoices:   inv[repo.InvoiceIssued] + inv[repo.InvoicePartiallyPaid],
	}, nil
}

func (s *dashboardService) doctor(ctx context.Context, centerID uuid.UUID, doctorID *uuid.UUID, day time.Time) (*Doctor, error) {
	queue, err := s.store.QueueByStatus(ctx, centerID, day, doctorID)
	if err != nil {
		return nil, err
	}
	open, err := s.store.OpenVisits(ctx, centerID, doctorID)
	if err != nil {
		return nil, err
	}
	appts, err := s.store.Appointments(ctx, centerID, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return &Doctor{
		ConfirmedQueue:    queue[repo.QueueConfirmed],
		InSession:         queue[repo.QueueInSession],
		OpenVisits:        open,
		TodayAppointments: appts,
	}, nil
}

func (s *dashboardService) accounting(ctx context.Context, centerID uuid.UUID, day time.Time) (*Accounting, error) {
	revenue, err := s.store.Revenue(ctx, centerID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	outstanding, err := s.store.Outstanding(ctx, centerID)
	if err != nil {
		return nil, err
	}
	inv, err := s.store.InvoicesByStatus(ctx, centerID)
	if err != nil {
		return nil, err
	}
	return &Accounting{
		Currency:         s.currency,
		RevenueToday:     revenue,
		Outstanding:      outstanding,
		InvoicesByStatus: inv,
	}, nil
}

func (s *dashboardService) insurance(ctx context.Context, centerID uuid.UUID) (*Insurance, error) {
	by, err := s.store.InsuranceByStatus(ctx, centerID)
	if err != nil {
		return nil, err
	}
	return &Insurance{Pending: by[repo.InsurancePending], ByStatus: by}, nil
}
