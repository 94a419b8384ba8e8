package verification

import (
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
)

const (
	CheckInsuranceApproved = "insurance_approved"
	CheckDocuments         = "documents_present"
	CheckPaid              = "paid"
)

const (
	ReasonInsuranceMissing     = "insurance_missing"
	ReasonInsuranceNotApproved = "insurance_not_approved"
	ReasonInsuranceRejected    = "insurance_rejected"
	ReasonDocumentsMissing     = "documents_missing"
	ReasonPaymentOutstanding   = "payment_outstanding"
	ReasonInvoiceMissing       = "invoice_missing"
)

// Input is a point-in-time snapshot of everything the checks look at.
type Input struct {
	UsesInsurance bool
	// Insurance is the latest request for the queue item or patient.
	Insurance *repo.InsuranceRequest
	Documents []*repo.InsuranceDocument
	Invoices  []*repo.Invoice

	// RequireInvoice fails the payment check when nothing is billable.
	RequireInvoice bool
	// Forced requirements set by business rule actions.
	ForcePayment   bool
	ForceInsurance bool
}

type Check struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Passed   bool   `json:"passed"`
	Reason   string `json:"reason,omitempty"`
}

type Result struct {
	CanProceed       bool     `json:"can_proceed"`
	Checks           []Check  `json:"checks"`
	Reasons          []string `json:"reasons"`
	Outstanding      int64    `json:"outstanding"`
	InsuranceStatus  string   `json:"insurance_status,omitempty"`
	MissingDocuments []string `json:"missing_documents,omitempty"`
}

// Verify runs the three checks independently and reports all of them.
// A check that is not required never blocks, but its outcome is still shown.
func Verify(in Input) Result {
	insRequired := in.UsesInsurance || in.ForceInsurance
	approved := in.Insurance != nil && in.Insurance.Status == repo.InsuranceApproved

	res := Result{Reasons: []string{}}
	if in.Insurance != nil {
		res.InsuranceStatus = in.Insurance.Status
	}

	ins := Check{Name: CheckInsuranceApproved, Required: insRequired, Passed: approved}
	if !approved {
		switch {
		case in.Insurance == nil:
			ins.Reason = ReasonInsuranceMissing
		case in.Insurance.Status == repo.InsuranceRejected:
			ins.Reason = ReasonInsuranceRejected
		default:
			ins.Reason = ReasonInsuranceNotApproved
		}
	}

	docs := Check{Name: CheckDocuments, Required: insRequired}
	res.MissingDocuments = missingDocuments(in.Insurance, in.Documents)
	docs.Passed = in.Insurance != nil && len(res.MissingDocuments) == 0
	if !docs.Passed {
		docs.Reason = ReasonDocumentsMissing
	}

	paid := Check{Name: CheckPaid, Required: true}
	billable := 0
	for _, inv := range in.Invoices {
		if inv.Status == repo.InvoiceVoid || inv.Status == repo.InvoiceDraft {
			continue
		}
		billable++
		res.Outstanding += inv.Outstanding()
	}
	if approved && in.Insurance.ApprovedAmount > 0 {
		res.Outstanding -= in.Insurance.ApprovedAmount
		if res.Outstanding < 0 {
			res.Outstanding = 0
		}
	}
	switch {
	case billable == 0 && (in.RequireInvoice || in.ForcePayment):
		paid.Reason = ReasonInvoiceMissing
	case res.Outstanding > 0:
		paid.Reason = ReasonPaymentOutstanding
	default:
		paid.Passed = true
	}

	res.Checks = []Check{ins, docs, paid}
	res.CanProceed = true
	for _, c := range res.Checks {
		if c.Required && !c.Passed {
			res.CanProceed = false
			res.Reasons = append(res.Reasons, c.Reason)
		}
	}
	return res
}

// missingDocuments lists required types with no uploaded document.
func missingDocuments(req *repo.InsuranceRequest, docs []*repo.InsuranceDocument) []string {
	if req == nil {
		return nil
	}
	have := make(map[string]bool, len(docs))
	for _, d := range docs {
		have[d.DocType] = true
	}
	var missing []string
	for _, t := range req.RequiredDocuments {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing
}
