package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
	"github.com/Alijeyrad/medcenter_backend/pkg/zarinpal"
)

type fakeRules struct {
	rules.Service
	byTrigger map[string][]rules.Match
	gotData   map[string]map[string]any
}

func (f *fakeRules) Evaluate(_ context.Context, _ uuid.UUID, trigger string, data map[string]any) (*rules.Result, error) {
	if f.gotData == nil {
		f.gotData = map[string]map[string]any{}
	}
	f.gotData[trigger] = data
	return &rules.Result{Trigger: trigger, Matches: f.byTrigger[trigger]}, nil
}

type fakeGateway struct {
	requestErr error
	verifyErr  error
	verified   int
}

func (g *fakeGateway) RequestPayment(_ context.Context, amount int64, currency, desc, callbackURL string) (string, string, error) {
	if g.requestErr != nil {
		return "", "", g.requestErr
	}
	return "A0000001", "https://gateway.test/StartPay/A0000001", nil
}

func (g *fakeGateway) VerifyPayment(_ context.Context, authority string, amount int64) (*zarinpal.Verification, error) {
	g.verified++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return &zarinpal.Verification{RefID: 98765}, nil
}

type memStore struct {
	patients map[uuid.UUID]*repo.Patient
	invoices map[uuid.UUID]*repo.Invoice
	payments map[uuid.UUID]*repo.Payment
}

func newMemStore() *memStore {
	return &memStore{
		patients: map[uuid.UUID]*repo.Patient{},
		invoices: map[uuid.UUID]*repo.Invoice{},
		payments: map[uuid.UUID]*repo.Payment{},
	}
}

func (m *memStore) Patient(_ context.Context, _, id uuid.UUID) (*repo.Patient, error) {
	if p, ok := m.patients[id]; ok {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) Invoice(_ context.Context, centerID, id uuid.UUID) (*repo.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok || inv.CenterID != centerID {
		return nil, repo.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memStore) ListInvoices(context.Context, uuid.UUID, repo.InvoiceFilter, repo.Page) ([]*repo.Invoice, int, error) {
	return nil, 0, nil
}

func (m *memStore) CreateInvoice(_ context.Context, inv *repo.Invoice) error {
	inv.ID = uuid.New()
	inv.Number = "INV-2026-000001"
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memStore) IssueInvoice(_ context.Context, _, id uuid.UUID) error {
	inv := m.invoices[id]
	if inv.Status != repo.InvoiceDraft {
		return repo.ErrNotFound
	}
	inv.Status = repo.InvoiceIssued
	return nil
}

func (m *memStore) VoidInvoice(_ context.Context, _, id uuid.UUID) error {
	inv := m.invoices[id]
	if (inv.Status != repo.InvoiceDraft && inv.Status != repo.InvoiceIssued) || inv.PaidAmount != 0 {
		return repo.ErrNotFound
	}
	inv.Status = repo.InvoiceVoid
	return nil
}

func (m *memStore) Payment(_ context.Context, _, id uuid.UUID) (*repo.Payment, error) {
	if p, ok := m.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) ListPayments(context.Context, uuid.UUID, repo.PaymentFilter, repo.Page) ([]*repo.Payment, int, error) {
	return nil, 0, nil
}

func (m *memStore) apply(invoiceID uuid.UUID, amount int64) (*repo.Invoice, error) {
	inv := m.invoices[invoiceID]
	if (inv.Status != repo.InvoiceIssued && inv.Status != repo.InvoicePartiallyPaid) || inv.PaidAmount+amount > inv.Total {
		return nil, repo.ErrNotFound
	}
	inv.PaidAmount += amount
	inv.Status = repo.DeriveInvoiceStatus(inv.Total, inv.PaidAmount)
	cp := *inv
	return &cp, nil
}

func (m *memStore) RecordPayment(_ context.Context, p *repo.Payment) (*repo.Invoice, error) {
	inv, err := m.apply(p.InvoiceID, p.Amount)
	if err != nil {
		return nil, err
	}
	return inv, m.CreatePayment(context.Background(), p)
}

func (m *memStore) CreatePayment(_ context.Context, p *repo.Payment) error {
	p.ID = uuid.New()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) SetAuthority(_ context.Context, id uuid.UUID, authority string) error {
	m.payments[id].GatewayAuthority = &authority
	return nil
}

func (m *memStore) FailPayment(_ context.Context, id uuid.UUID) error {
	m.payments[id].Status = repo.PaymentFailed
	return nil
}

func (m *memStore) SettleOnline(_ context.Context, authority string, settle func(p *repo.Payment) (Settlement, error)) (*repo.Payment, *repo.Invoice, error) {
	var pay *repo.Payment
	for _, p := range m.payments {
		if p.GatewayAuthority != nil && *p.GatewayAuthority == authority {
			pay = p
		}
	}
	if pay == nil {
		return nil, nil, repo.ErrNotFound
	}
	if pay.Status != repo.PaymentPending {
		cp := *pay
		return &cp, nil, nil
	}
	verdict, err := settle(pay)
	if err != nil {
		return nil, nil, err
	}
	var inv *repo.Invoice
	if verdict.Status == repo.PaymentSuccess {
		if inv, err = m.apply(pay.InvoiceID, pay.Amount); err != nil {
			verdict.Status = repo.PaymentFailed
		}
	}
	pay.Status = verdict.Status
	pay.Reference = verdict.Reference
	if inv == nil {
		inv = m.invoices[pay.InvoiceID]
	}
	cp := *pay
	return &cp, inv, nil
}

type fixture struct {
	scope   *reqctx.CenterScope
	patient *repo.Patient
	store   *memStore
	rules   *fakeRules
	gateway *fakeGateway
	events  *events.Recorder
	svc     Service
}

func newFixture() *fixture {
	f := &fixture{
		scope:   &reqctx.CenterScope{CenterID: uuid.New(), MemberID: uuid.New(), Role: repo.RoleAccountant},
		store:   newMemStore(),
		rules:   &fakeRules{byTrigger: map[string][]rules.Match{}},
		gateway: &fakeGateway{},
		events:  &events.Recorder{},
	}
	f.patient = &repo.Patient{ID: uuid.New(), CenterID: f.scope.CenterID, Status: repo.PatientStatusActive}
	f.store.patients[f.patient.ID] = f.patient
	cfg := &config.Config{}
	cfg.Billing.Currency = "IRR"
	cfg.ZarinPal.CallbackURL = "https://api.test/api/v1/payments/verify"
	f.svc = New(f.store, f.rules, f.gateway, f.events, nil, cfg)
	return f
}

// issued creates an issued invoice for 2 x 500 with a 100 discount.
func (f *fixture) issued(t *testing.T) *repo.Invoice {
	t.Helper()
	res, err := f.svc.CreateInvoice(context.Background(), f.scope, CreateInvoiceRequest{
		PatientID: f.patient.ID,
		Items:     []ItemRequest{{Description: "Consultation", Quantity: 2, UnitPrice: 500}},
		Discount:  100,
		Issue:     true,
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return res.Invoice
}

func TestCreateInvoiceTotals(t *testing.T) {
	f := newFixture()
	inv := f.issued(t)
	if inv.Subtotal != 1000 || inv.Total != 900 || inv.Status != repo.InvoiceIssued || inv.Currency != "IRR" {
		t.Fatalf("invoice = %+v", inv)
	}
	got := f.rules.gotData[rules.TriggerInvoiceIssue]["invoice"].(map[string]any)
	if got["total"] != int64(900) {
		t.Fatalf("rule context = %v", got)
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	cases := []struct {
		name string
		req  func(patient uuid.UUID) CreateInvoiceRequest
		want error
	}{
		{"no items", func(p uuid.UUID) CreateInvoiceRequest {
			return CreateInvoiceRequest{PatientID: p}
		}, ErrNoItems},
		{"unknown patient", func(uuid.UUID) CreateInvoiceRequest {
			return CreateInvoiceRequest{PatientID: uuid.New(), Items: []ItemRequest{{"x", 1, 1}}}
		}, ErrPatientNotFound},
		{"zero quantity", func(p uuid.UUID) CreateInvoiceRequest {
			return CreateInvoiceRequest{PatientID: p, Items: []ItemRequest{{"x", 0, 1}}}
		}, ErrInvalidItem},
		{"blank description", func(p uuid.UUID) CreateInvoiceRequest {
			return CreateInvoiceRequest{PatientID: p, Items: []ItemRequest{{" ", 1, 1}}}
		}, ErrInvalidItem},
		{"discount above subtotal", func(p uuid.UUID) CreateInvoiceRequest {
			return CreateInvoiceRequest{PatientID: p, Items: []ItemRequest{{"x", 1, 100}}, Discount: 101}
		}, ErrInvalidDiscount},
		{"insurance share above total", func(p uuid.UUID) CreateInvoiceRequest {
			return CreateInvoiceRequest{PatientID: p, Items: []ItemRequest{{"x", 1, 100}}, Discount: 50, InsuranceShare: 60}
		}, ErrInvalidDiscount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			if _, err := f.svc.CreateInvoice(context.Background(), f.scope, tc.req(f.patient.ID)); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestIssueBlockedByRule(t *testing.T) {
	f := newFixture()
	f.rules.byTrigger[rules.TriggerInvoiceIssue] = []rules.Match{{Name: "cap", Action: rules.Action{Type: rules.ActionBlock, Message: "too large"}}}
	res, err := f.svc.CreateInvoice(context.Background(), f.scope, CreateInvoiceRequest{
		PatientID: f.patient.ID,
		Items:     []ItemRequest{{Description: "MRI", Quantity: 1, UnitPrice: 1000}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	_, err = f.svc.IssueInvoice(context.Background(), f.scope, res.Invoice.ID)
	var blocked *rules.BlockedError
	if !errors.As(err, &blocked) || blocked.Error() != "too large" {
		t.Fatalf("err = %v", err)
	}
	if f.store.invoices[res.Invoice.ID].Status != repo.InvoiceDraft {
		t.Fatal("blocked invoice was issued")
	}
}

func TestRecordPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.issued(t)

	res, err := f.svc.RecordPayment(ctx, f.scope, RecordPaymentRequest{InvoiceID: inv.ID, Amount: 400, Method: repo.PaymentMethodCash})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if res.Invoice.Status != repo.InvoicePartiallyPaid || res.Invoice.PaidAmount != 400 {
		t.Fatalf("invoice = %+v", res.Invoice)
	}
	if res.Payment.ReceivedBy == nil || *res.Payment.ReceivedBy != f.scope.MemberID {
		t.Fatal("received_by not recorded")
	}

	if _, err := f.svc.RecordPayment(ctx, f.scope, RecordPaymentRequest{InvoiceID: inv.ID, Amount: 501, Method: repo.PaymentMethodCard}); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("overpayment: %v", err)
	}
	res, err = f.svc.RecordPayment(ctx, f.scope, RecordPaymentRequest{InvoiceID: inv.ID, Amount: 500, Method: repo.PaymentMethodCard})
	if err != nil || res.Invoice.Status != repo.InvoicePaid {
		t.Fatalf("final payment: %+v %v", res, err)
	}
	if _, err := f.svc.RecordPayment(ctx, f.scope, RecordPaymentRequest{InvoiceID: inv.ID, Amount: 1, Method: repo.PaymentMethodCash}); !errors.Is(err, ErrNotPayable) {
		t.Fatalf("paid invoice: %v", err)
	}
	if _, err := f.svc.VoidInvoice(ctx, f.scope, inv.ID); !errors.Is(err, ErrNotVoidable) {
		t.Fatalf("void paid invoice: %v", err)
	}

	types := f.events.Types()
	if len(types) != 2 || types[0] != events.PaymentReceived {
		t.Fatalf("events = %v", types)
	}
	if f.events.Events[1].Data["invoice_status"] != repo.InvoicePaid {
		t.Fatalf("event data = %v", f.events.Events[1].Data)
	}
}

func TestRecordPaymentRejections(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		method string
		block  bool
		want   error
	}{
		{"online is not manual", 100, repo.PaymentMethodOnline, false, ErrInvalidMethod},
		{"unknown method", 100, "barter", false, ErrInvalidMethod},
		{"zero amount", 0, repo.PaymentMethodCash, false, ErrInvalidAmount},
		{"blocked by rule", 100, repo.PaymentMethodCash, true, rules.ErrBlocked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			inv := f.issued(t)
			if tc.block {
				f.rules.byTrigger[rules.TriggerPaymentRecord] = []rules.Match{{Name: "no cash", Action: rules.Action{Type: rules.ActionBlock}}}
			}
			_, err := f.svc.RecordPayment(context.Background(), f.scope, RecordPaymentRequest{InvoiceID: inv.ID, Amount: tc.amount, Method: tc.method})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if f.store.invoices[inv.ID].PaidAmount != 0 {
				t.Fatal("rejected payment was applied")
			}
		})
	}
}

func TestDraftInvoiceIsNotPayable(t *testing.T) {
	f := newFixture()
	res, err := f.svc.CreateInvoice(context.Background(), f.scope, CreateInvoiceRequest{
		PatientID: f.patient.ID,
		Items:     []ItemRequest{{Description: "x", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	_, err = f.svc.RecordPayment(context.Background(), f.scope, RecordPaymentRequest{InvoiceID: res.Invoice.ID, Amount: 10, Method: repo.PaymentMethodCash})
	if !errors.Is(err, ErrNotPayable) {
		t.Fatalf("err = %v", err)
	}
	if _, err := f.svc.VoidInvoice(context.Background(), f.scope, res.Invoice.ID); err != nil {
		t.Fatalf("void draft: %v", err)
	}
}

func TestOnlinePayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.issued(t)

	started, err := f.svc.StartOnlinePayment(ctx, f.scope, OnlinePaymentRequest{InvoiceID: inv.ID})
	if err != nil {
		t.Fatalf("StartOnlinePayment: %v", err)
	}
	if started.Payment.Amount != 900 || started.PayURL == "" || started.Payment.Status != repo.PaymentPending {
		t.Fatalf("started = %+v", started)
	}

	res, err := f.svc.VerifyOnlinePayment(ctx, "A0000001", "OK")
	if err != nil {
		t.Fatalf("VerifyOnlinePayment: %v", err)
	}
	if res.Payment.Status != repo.PaymentSuccess || res.Payment.Reference == nil || *res.Payment.Reference != "98765" {
		t.Fatalf("payment = %+v", res.Payment)
	}
	if res.Invoice.Status != repo.InvoicePaid {
		t.Fatalf("invoice status = %s", res.Invoice.Status)
	}

	// A repeated callback does not verify or apply twice.
	again, err := f.svc.VerifyOnlinePayment(ctx, "A0000001", "OK")
	if err != nil || again.Invoice.PaidAmount != 900 {
		t.Fatalf("repeat: %+v %v", again, err)
	}
	if f.gateway.verified != 1 || len(f.events.Events) != 1 {
		t.Fatalf("verified=%d events=%d", f.gateway.verified, len(f.events.Events))
	}
}

func TestOnlinePaymentCancelledByUser(t *testing.T) {
	f := newFixture()
	inv := f.issued(t)
	if _, err := f.svc.StartOnlinePayment(context.Background(), f.scope, OnlinePaymentRequest{InvoiceID: inv.ID}); err != nil {
		t.Fatalf("StartOnlinePayment: %v", err)
	}
	if _, err := f.svc.VerifyOnlinePayment(context.Background(), "A0000001", "NOK"); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("err = %v", err)
	}
	if f.gateway.verified != 0 || f.store.invoices[inv.ID].PaidAmount != 0 {
		t.Fatal("cancelled payment reached the gateway or the invoice")
	}
	if _, err := f.svc.VerifyOnlinePayment(context.Background(), "unknown", "OK"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("unknown authority: %v", err)
	}
}

func TestOnlinePaymentGatewayErrors(t *testing.T) {
	f := newFixture()
	inv := f.issued(t)
	f.gateway.requestErr = zarinpal.ErrValidation
	if _, err := f.svc.StartOnlinePayment(context.Background(), f.scope, OnlinePaymentRequest{InvoiceID: inv.ID}); !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("request error: %v", err)
	}
	for _, p := range f.store.payments {
		if p.Status != repo.PaymentFailed {
			t.Fatalf("payment left %s", p.Status)
		}
	}

	f.gateway.requestErr = nil
	f.gateway.verifyErr = zarinpal.ErrAmountMismatch
	if _, err := f.svc.StartOnlinePayment(context.Background(), f.scope, OnlinePaymentRequest{InvoiceID: inv.ID}); err != nil {
		t.Fatalf("StartOnlinePayment: %v", err)
	}
	if _, err := f.svc.VerifyOnlinePayment(context.Background(), "A0000001", "OK"); !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("verify error: %v", err)
	}
}
