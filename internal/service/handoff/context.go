package handoff

import (
	"time"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/verification"
)

// evalContext is the data confirm_to_doctor rules are evaluated against.
func evalContext(snap *verification.Snapshot, doctor *repo.CenterMember, actorRole string, now time.Time) map[string]any {
	p, item, in := snap.Patient, snap.Item, snap.Input

	patient := map[string]any{
		"id":             p.ID.String(),
		"status":         p.Status,
		"uses_insurance": p.UsesInsurance,
		"file_number":    p.FileNumber,
	}
	if p.Gender != nil {
		patient["gender"] = *p.Gender
	}
	if p.InsuranceProvider != nil {
		patient["insurance_provider"] = *p.InsuranceProvider
	}
	if p.BirthDate != nil {
		patient["age"] = age(*p.BirthDate, now)
	}

	var total, paid, outstanding int64
	billable := 0
	for _, inv := range in.Invoices {
		if inv.Status == repo.InvoiceVoid || inv.Status == repo.InvoiceDraft {
			continue
		}
		billable++
		total += inv.Total
		paid += inv.PaidAmount
		outstanding += inv.Outstanding()
	}

	insurance := map[string]any{"status": "none", "approved_amount": int64(0)}
	if in.Insurance != nil {
		insurance["status"] = in.Insurance.Status
		insurance["provider"] = in.Insurance.Provider
		insurance["approved_amount"] = in.Insurance.ApprovedAmount
		insurance["documents"] = len(in.Documents)
		insurance["required_documents"] = len(in.Insurance.RequiredDocuments)
	}

	doc := map[string]any{"id": doctor.ID.String()}
	if doctor.Specialty != nil {
		doc["specialty"] = *doctor.Specialty
	}

	return map[string]any{
		"patient": patient,
		"queue": map[string]any{
			"id":              item.ID.String(),
			"status":          item.Status,
			"number":          item.QueueNumber,
			"has_appointment": item.AppointmentID != nil,
		},
		"invoice": map[string]any{
			"count":       billable,
			"total":       total,
			"paid":        paid,
			"outstanding": outstanding,
		},
		"insurance": insurance,
		"doctor":    doc,
		"actor":     map[string]any{"role": actorRole},
		"time": map[string]any{
			"hour":    now.Hour(),
			"weekday": int(now.Weekday()),
		},
	}
}

func age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
