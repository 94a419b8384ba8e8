package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// manualMethods are the methods reception or accounting may record by hand.
var manualMethods = map[string]bool{
	repo.PaymentMethodCash:      true,
	repo.PaymentMethodCard:      true,
	repo.PaymentMethodTransfer:  true,
	repo.PaymentMethodInsurance: true,
}

func (s *billingService) ListPayments(ctx context.Context, scope *reqctx.CenterScope, req ListPaymentsRequest) (*pagination.Result[*repo.Payment], error) {
	page := req.Normalize()
	list, total, err := s.store.ListPayments(ctx, scope.CenterID, repo.PaymentFilter{
		InvoiceID: req.InvoiceID,
		Status:    req.Status,
	}, page.Repo())
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return pagination.NewResult(list, total, page), nil
}

func (s *billingService) GetPayment(ctx context.Context, scope *reqctx.CenterScope, id uuid.UUID) (*repo.Payment, error) {
	p, err := s.store.Payment(ctx, scope.CenterID, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *billingService) RecordPayment(ctx context.Context, scope *reqctx.CenterScope, req RecordPaymentRequest) (*PaymentResult, error) {
	if !manualMethods[req.Method] {
		return nil, ErrInvalidMethod
	}
	inv, err := s.payable(ctx, scope, req.InvoiceID, req.Amount)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Patient(ctx, scope.CenterID, inv.PatientID)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}

	ruleRes, err := s.rules.Evaluate(ctx, scope.CenterID, rules.TriggerPaymentRecord, map[string]any{
		"patient": patientContext(p),
		"invoice": invoiceContext(inv),
		"payment": map[string]any{"amount": req.Amount, "method": req.Method},
		"actor":   map[string]any{"role": scope.Role},
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}
	if err := ruleRes.Check(); err != nil {
		s.metrics.Payment(ctx, req.Method, "blocked")
		return nil, err
	}

	now := s.now().UTC()
	pay := &repo.Payment{
		CenterID:   scope.CenterID,
		InvoiceID:  inv.ID,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  req.Reference,
		Status:     repo.PaymentSuccess,
		ReceivedBy: scope.Actor(),
		PaidAt:     &now,
	}
	updated, err := s.store.RecordPayment(ctx, pay)
	if err != nil {
		if repo.IsNotFound(err) {
			// Another payment or a void got there first.
			return nil, ErrOverpayment
		}
		return nil, fmt.Errorf("record payment: %w", err)
	}
	s.metrics.Payment(ctx, pay.Method, pay.Status)
	s.publishReceived(ctx, pay, updated, scope.Actor())

	return &PaymentResult{Payment: pay, Invoice: updated, Warnings: ruleRes.Warnings()}, nil
}

func (s *billingService) StartOnlinePayment(ctx context.Context, scope *reqctx.CenterScope, req OnlinePaymentRequest) (*OnlinePaymentResult, error) {
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}
	inv, err := s.GetInvoice(ctx, scope, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	amount := inv.Outstanding()
	if req.Amount != nil {
		amount = *req.Amount
	}
	if _, err := s.payable(ctx, scope, req.InvoiceID, amount); err != nil {
		return nil, err
	}

	// The pending record exists before the gateway call so a callback can
	// always find it.
	pay := &repo.Payment{
		CenterID:   scope.CenterID,
		InvoiceID:  inv.ID,
		Amount:     amount,
		Method:     repo.PaymentMethodOnline,
		Status:     repo.PaymentPending,
		ReceivedBy: scope.Actor(),
	}
	if err := s.store.CreatePayment(ctx, pay); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	desc := fmt.Sprintf("Invoice %s", inv.Number)
	authority, payURL, err := s.gateway.RequestPayment(ctx, amount, inv.Currency, desc, s.callback)
	if err != nil {
		if ferr := s.store.FailPayment(ctx, pay.ID); ferr != nil {
			slog.WarnContext(ctx, "mark payment failed", "payment_id", pay.ID, "error", ferr)
		}
		s.metrics.Payment(ctx, pay.Method, repo.PaymentFailed)
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	if err := s.store.SetAuthority(ctx, pay.ID, authority); err != nil {
		return nil, fmt.Errorf("store authority: %w", err)
	}
	pay.GatewayAuthority = &authority

	return &OnlinePaymentResult{Payment: pay, PayURL: payURL}, nil
}

func (s *billingService) VerifyOnlinePayment(ctx context.Context, authority, status string) (*PaymentResult, error) {
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}
	if authority == "" {
		return nil, ErrPaymentNotFound
	}

	var gatewayErr error
	pay, inv, err := s.store.SettleOnline(ctx, authority, func(p *repo.Payment) (Settlement, error) {
		if status != "OK" {
			return Settlement{Status: repo.PaymentFailed}, nil
		}
		v, err := s.gateway.VerifyPayment(ctx, authority, p.Amount)
		if err != nil {
			gatewayErr = err
			return Settlement{Status: repo.PaymentFailed}, nil
		}
		ref := strconv.FormatInt(v.RefID, 10)
		return Settlement{Status: repo.PaymentSuccess, Reference: &ref}, nil
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	// Already settled by an earlier callback.
	if inv == nil {
		if pay.Status != repo.PaymentSuccess {
			return nil, ErrPaymentFailed
		}
		cur, err := s.store.Invoice(ctx, pay.CenterID, pay.InvoiceID)
		if err != nil {
			return nil, fmt.Errorf("get invoice: %w", err)
		}
		return &PaymentResult{Payment: pay, Invoice: cur}, nil
	}

	s.metrics.Payment(ctx, pay.Method, pay.Status)
	if pay.Status != repo.PaymentSuccess {
		if gatewayErr != nil {
			slog.WarnContext(ctx, "online payment verification failed",
				"payment_id", pay.ID, "authority", authority, "error", gatewayErr)
			return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, gatewayErr)
		}
		return nil, ErrPaymentFailed
	}
	s.publishReceived(ctx, pay, inv, pay.ReceivedBy)
	return &PaymentResult{Payment: pay, Invoice: inv}, nil
}

// payable checks that the invoice takes a payment of amount.
func (s *billingService) payable(ctx context.Context, scope *reqctx.CenterScope, invoiceID uuid.UUID, amount int64) (*repo.Invoice, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	inv, err := s.GetInvoice(ctx, scope, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != repo.InvoiceIssued && inv.Status != repo.InvoicePartiallyPaid {
		return nil, ErrNotPayable
	}
	if amount > inv.Outstanding() {
		return nil, ErrOverpayment
	}
	return inv, nil
}

func (s *billingService) publishReceived(ctx context.Context, pay *repo.Payment, inv *repo.Invoice, actor *uuid.UUID) {
	data := map[string]any{
		"invoice_id":     inv.ID.String(),
		"invoice_number": inv.Number,
		"patient_id":     inv.PatientID.String(),
		"amount":         pay.Amount,
		"method":         pay.Method,
		"currency":       inv.Currency,
		"outstanding":    inv.Outstanding(),
		"invoice_status": inv.Status,
	}
	if pay.Reference != nil {
		data["reference"] = *pay.Reference
	}
	events.PublishBestEffort(ctx, s.events, events.Event{
		Type:     events.PaymentReceived,
		CenterID: pay.CenterID,
		EntityID: pay.ID,
		ActorID:  actor,
		Data:     data,
	})
}
