// Package billing owns invoices and the payments recorded against them,
// including the ZarinPal online flow.
package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/observability"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
	"github.com/Alijeyrad/medcenter_backend/pkg/zarinpal"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type ItemRequest struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

type CreateInvoiceRequest struct {
	PatientID   uuid.UUID     `json:"patient_id"`
	QueueItemID *uuid.UUID    `json:"queue_item_id"`
	VisitID     *uuid.UUID    `json:"visit_id"`
	Items       []ItemRequest `json:"items"`
	Discount    int64         `json:"discount"`
	// InsuranceShare is the part the center expects the insurer to cover.
	// It is informational; the patient owes Total.
	InsuranceShare int64 `json:"insurance_share"`
	// Issue issues the invoice right away.
	Issue bool `json:"issue"`
}

type ListInvoicesRequest struct {
	pagination.Request
	PatientID   *uuid.UUID
	QueueItemID *uuid.UUID
	Status      string
}

type ListPaymentsRequest struct {
	pagination.Request
	InvoiceID *uuid.UUID
	Status    string
}

type IssueResult struct {
	Invoice  *repo.Invoice `json:"invoice"`
	Warnings []string      `json:"warnings"`
}

type RecordPaymentRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Reference *string   `json:"reference"`
}

type PaymentResult struct {
	Payment  *repo.Payment `json:"payment"`
	Invoice  *repo.Invoice `json:"invoice"`
	Warnings []string      `json:"warnings,omitempty"`
}

type OnlinePaymentRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	// Amount defaults to the outstanding balance.
	Amount *int64 `json:"amount"`
}

type OnlinePaymentResult struct {
	Payment *repo.Payment `json:"payment"`
	PayURL  string        `json:"pay_url"`
}

// Gateway is the online payment provider; *zarinpal.Client satisfies it.
type Gateway interface {
	RequestPayment(ctx context.Context, amount int64, currency, desc, callbackURL string) (authority, payURL string, err error)
	VerifyPayment(ctx context.Context, authority string, amount int64) (*zarinpal.Verification, error)
}

// Settlement is the gateway's verdict on a pending online payment.
type Settlement struct {
	Status    string
	Reference *string
}

// Store is the persistence the service needs.
type Store interface {
	Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error)
	Invoice(ctx context.Context, centerID, id uuid.UUID) (*repo.Invoice, error)
	ListInvoices(ctx context.Context, centerID uuid.UUID, f repo.InvoiceFilter, p repo.Page) ([]*repo.Invoice, int, error)
	// CreateInvoice numbers and inserts inv with its items in one transaction.
	CreateInvoice(ctx context.Context, inv *repo.Invoice) error
	IssueInvoice(ctx context.Context, centerID, id uuid.UUID) error
	VoidInvoice(ctx context.Context, centerID, id uuid.UUID) error

	Payment(ctx context.Context, centerID, id uuid.UUID) (*repo.Payment, error)
	ListPayments(ctx context.Context, centerID uuid.UUID, f repo.PaymentFilter, p repo.Page) ([]*repo.Payment, int, error)
	// RecordPayment applies p.Amount to its invoice and inserts p in one
	// transaction. Returns repo.ErrNotFound when the invoice guard rejects it.
	RecordPayment(ctx context.Context, p *repo.Payment) (*repo.Invoice, error)
	CreatePayment(ctx context.Context, p *repo.Payment) error
	SetAuthority(ctx context.Context, id uuid.UUID, authority string) error
	FailPayment(ctx context.Context, id uuid.UUID) error
	// SettleOnline locks the payment with this authority and, while it is
	// pending, asks settle for the verdict and applies it. A payment that is
	// no longer pending is returned untouched with a nil invoice.
	SettleOnline(ctx context.Context, authority string, settle func(p *repo.Payment) (Settlement, error)) (*repo.Payment, *repo.Invoice, error)
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	// Invoices
	ListInvoices(ctx context.Context, scope *reqctx.CenterScope, req ListInvoicesRequest) (*pagination.Result[*repo.Invoice], error)
	GetInvoice(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Invoice, error)
	CreateInvoice(ctx context.Context, scope *reqctx.CenterScope, req CreateInvoiceRequest) (*IssueResult, error)
	IssueInvoice(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*IssueResult, error)
	VoidInvoice(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Invoice, error)

	// Payments
	ListPayments(ctx context.Context, scope *reqctx.CenterScope, req ListPaymentsRequest) (*pagination.Result[*repo.Payment], error)
	GetPayment(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Payment, error)
	RecordPayment(ctx context.Context, scope *reqctx.CenterScope, req RecordPaymentRequest) (*PaymentResult, error)

	// ZarinPal flow
	StartOnlinePayment(ctx context.Context, scope *reqctx.CenterScope, req OnlinePaymentRequest) (*OnlinePaymentResult, error)
	// VerifyOnlinePayment handles the gateway callback; it is not center scoped.
	VerifyOnlinePayment(ctx context.Context, authority, status string) (*PaymentResult, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type billingService struct {
	store    Store
	rules    rules.Service
	gateway  Gateway
	events   events.Publisher
	metrics  *observability.Metrics
	currency string
	callback string
	now      func() time.Time
}

// New wires the billing service. gateway may be nil when online payments are
// not configured.
func New(store Store, rulesSvc rules.Service, gateway Gateway, pub events.Publisher, metrics *observability.Metrics, cfg *config.Config) Service {
	currency := cfg.Billing.Currency
	if currency == "" {
		currency = "IRR"
	}
	return &billingService{
		store:    store,
		rules:    rulesSvc,
		gateway:  gateway,
		events:   pub,
		metrics:  metrics,
		currency: currency,
		callback: cfg.ZarinPal.CallbackURL,
		now:      time.Now,
	}
}

// ---------------------------------------------------------------------------
// Invoices
// ---------------------------------------------------------------------------

func (s *billingService) ListInvoices(ctx context.Context, scope *reqctx.CenterScope, req ListInvoicesRequest) (*pagination.Result[*repo.Invoice], error) {
	if req.Status != "" && !validInvoiceStatus(req.Status) {
		return nil, ErrInvalidStatus
	}
	page := req.Normalize()
	list, total, err := s.store.ListInvoices(ctx, scope.CenterID, repo.InvoiceFilter{
		PatientID:   req.PatientID,
		QueueItemID: req.QueueItemID,
		Status:      req.Status,
	}, page.Repo())
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return pagination.NewResult(list, total, page), nil
}

func (s *billingService) GetInvoice(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Invoice, error) {
	inv, err := s.store.Invoice(ctx, scope.CenterID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (s *billingService) CreateInvoice(ctx context.Context, scope *reqctx.CenterScope, req CreateInvoiceRequest) (*IssueResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	if _, err := s.store.Patient(ctx, scope.CenterID, req.PatientID); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}

	inv := &repo.Invoice{
		CenterID:       scope.CenterID,
		PatientID:      req.PatientID,
		QueueItemID:    req.QueueItemID,
		VisitID:        req.VisitID,
		Status:         repo.InvoiceDraft,
		Discount:       req.Discount,
		InsuranceShare: req.InsuranceShare,
		Currency:       s.currency,
	}
	for _, it := range req.Items {
		desc := strings.TrimSpace(it.Description)
		if desc == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return nil, ErrInvalidItem
		}
		amount := int64(it.Quantity) * it.UnitPrice
		inv.Items = append(inv.Items, &repo.InvoiceItem{
			Description: desc,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      amount,
		})
		inv.Subtotal += amount
	}
	if req.Discount < 0 || req.Discount > inv.Subtotal {
		return nil, ErrInvalidDiscount
	}
	inv.Total = inv.Subtotal - req.Discount
	if req.InsuranceShare < 0 || req.InsuranceShare > inv.Total {
		return nil, ErrInvalidDiscount
	}

	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	if req.Issue {
		return s.IssueInvoice(ctx, scope, inv.ID)
	}
	return &IssueResult{Invoice: inv, Warnings: []string{}}, nil
}

func (s *billingService) IssueInvoice(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*IssueResult, error) {
	inv, err := s.GetInvoice(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != repo.InvoiceDraft {
		return nil, ErrNotDraft
	}
	p, err := s.store.Patient(ctx, scope.CenterID, inv.PatientID)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}

	ruleRes, err := s.rules.Evaluate(ctx, scope.CenterID, rules.TriggerInvoiceIssue, map[string]any{
		"patient": patientContext(p),
		"invoice": invoiceContext(inv),
		"actor":   map[string]any{"role": scope.Role},
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}
	if err := ruleRes.Check(); err != nil {
		return nil, err
	}

	if err := s.store.IssueInvoice(ctx, scope.CenterID, id); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotDraft
		}
		return nil, fmt.Errorf("issue invoice: %w", err)
	}
	inv, err = s.GetInvoice(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return &IssueResult{Invoice: inv, Warnings: ruleRes.Warnings()}, nil
}

func (s *billingService) VoidInvoice(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Invoice, error) {
	if _, err := s.GetInvoice(ctx, scope, id); err != nil {
		return nil, err
	}
	if err := s.store.VoidInvoice(ctx, scope.CenterID, id); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotVoidable
		}
		return nil, fmt.Errorf("void invoice: %w", err)
	}
	return s.GetInvoice(ctx, scope, id)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func patientContext(p *repo.Patient) map[string]any {
	out := map[string]any{
		"id":             p.ID.String(),
		"status":         p.Status,
		"uses_insurance": p.UsesInsurance,
	}
	if p.InsuranceProvider != nil {
		out["insurance_provider"] = *p.InsuranceProvider
	}
	return out
}

func invoiceContext(inv *repo.Invoice) map[string]any {
	return map[string]any{
		"id":              inv.ID.String(),
		"status":          inv.Status,
		"subtotal":        inv.Subtotal,
		"discount":        inv.Discount,
		"insurance_share": inv.InsuranceShare,
		"total":           inv.Total,
		"paid":            inv.PaidAmount,
		"outstanding":     inv.Total - inv.PaidAmount,
		"items":           len(inv.Items),
		"has_queue_item":  inv.QueueItemID != nil,
	}
}

func validInvoiceStatus(s string) bool {
	switch s {
	case repo.InvoiceDraft, repo.InvoiceIssued, repo.InvoicePartiallyPaid, repo.InvoicePaid, repo.InvoiceVoid:
		return true
	}
	return false
}
