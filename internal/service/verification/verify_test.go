package verification

import (
	"reflect"
	"testing"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
)

func invoice(status string, total, paid int64) *repo.Invoice {
	return &repo.Invoice{Status: status, Total: total, PaidAmount: paid}
}

func insurance(status string, approved int64, docs ...string) *repo.InsuranceRequest {
	return &repo.InsuranceRequest{Status: status, ApprovedAmount: approved, RequiredDocuments: docs}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name        string
		in          Input
		canProceed  bool
		reasons     []string
		outstanding int64
	}{
		{
			name:       "cash patient fully paid",
			in:         Input{Invoices: []*repo.Invoice{invoice(repo.InvoicePaid, 1000, 1000)}},
			canProceed: true,
			reasons:    []string{},
		},
		{
			name:        "cash patient partially paid",
			in:          Input{Invoices: []*repo.Invoice{invoice(repo.InvoicePartiallyPaid, 1000, 400)}},
			reasons:     []string{ReasonPaymentOutstanding},
			outstanding: 600,
		},
		{
			name:       "no invoice allowed by default",
			in:         Input{},
			canProceed: true,
			reasons:    []string{},
		},
		{
			name:    "no invoice with require invoice",
			in:      Input{RequireInvoice: true},
			reasons: []string{ReasonInvoiceMissing},
		},
		{
			name: "void and draft invoices ignored",
			in: Input{Invoices: []*repo.Invoice{
				invoice(repo.InvoiceVoid, 500, 0),
				invoice(repo.InvoiceDraft, 700, 0),
			}},
			canProceed: true,
			reasons:    []string{},
		},
		{
			name:    "insured patient without request",
			in:      Input{UsesInsurance: true},
			reasons: []string{ReasonInsuranceMissing, ReasonDocumentsMissing},
		},
		{
			name: "insured patient pending request",
			in: Input{
				UsesInsurance: true,
				Insurance:     insurance(repo.InsurancePending, 0),
			},
			reasons: []string{ReasonInsuranceNotApproved},
		},
		{
			name: "insured patient rejected",
			in: Input{
				UsesInsurance: true,
				Insurance:     insurance(repo.InsuranceRejected, 0),
			},
			reasons: []string{ReasonInsuranceRejected},
		},
		{
			name: "approved but document missing",
			in: Input{
				UsesInsurance: true,
				Insurance:     insurance(repo.InsuranceApproved, 0, "referral", "id_card"),
				Documents:     []*repo.InsuranceDocument{{DocType: "id_card"}},
			},
			reasons: []string{ReasonDocumentsMissing},
		},
		{
			name: "approved share covers balance",
			in: Input{
				UsesInsurance: true,
				Insurance:     insurance(repo.InsuranceApproved, 700, "referral"),
				Documents:     []*repo.InsuranceDocument{{DocType: "referral"}},
				Invoices:      []*repo.Invoice{invoice(repo.InvoicePartiallyPaid, 1000, 300)},
			},
			canProceed: true,
			reasons:    []string{},
		},
		{
			name: "approved share leaves balance",
			in: Input{
				UsesInsurance: true,
				Insurance:     insurance(repo.InsuranceApproved, 500),
				Invoices:      []*repo.Invoice{invoice(repo.InvoiceIssued, 1000, 0)},
			},
			reasons:     []string{ReasonPaymentOutstanding},
			outstanding: 500,
		},
		{
			name: "pending insurance ignored for cash patient",
			in: Input{
				Insurance: insurance(repo.InsurancePending, 0),
				Invoices:  []*repo.Invoice{invoice(repo.InvoicePaid, 100, 100)},
			},
			canProceed: true,
			reasons:    []string{},
		},
		{
			name:    "rule forces insurance",
			in:      Input{ForceInsurance: true},
			reasons: []string{ReasonInsuranceMissing, ReasonDocumentsMissing},
		},
		{
			name:    "rule forces payment",
			in:      Input{ForcePayment: true},
			reasons: []string{ReasonInvoiceMissing},
		},
		{
			name: "all checks fail together",
			in: Input{
				UsesInsurance: true,
				Insurance:     insurance(repo.InsurancePending, 0, "referral"),
				Invoices:      []*repo.Invoice{invoice(repo.InvoiceIssued, 200, 0)},
			},
			reasons:     []string{ReasonInsuranceNotApproved, ReasonDocumentsMissing, ReasonPaymentOutstanding},
			outstanding: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verify(tt.in)
			if got.CanProceed != tt.canProceed {
				t.Errorf("CanProceed = %v, want %v", got.CanProceed, tt.canProceed)
			}
			if !reflect.DeepEqual(got.Reasons, tt.reasons) {
				t.Errorf("Reasons = %v, want %v", got.Reasons, tt.reasons)
			}
			if got.Outstanding != tt.outstanding {
				t.Errorf("Outstanding = %d, want %d", got.Outstanding, tt.outstanding)
			}
			if len(got.Checks) != 3 {
				t.Errorf("got %d checks, want 3", len(got.Checks))
			}
		})
	}
}

func TestVerifyReportsOptionalChecks(t *testing.T) {
	got := Verify(Input{Invoices: []*repo.Invoice{invoice(repo.InvoicePaid, 10, 10)}})
	for _, c := range got.Checks {
		if c.Name == CheckInsuranceApproved {
			if c.Required {
				t.Error("insurance check should not be required for cash patients")
			}
			if c.Passed || c.Reason != ReasonInsuranceMissing {
				t.Errorf("insurance check = %+v", c)
			}
		}
	}
}
