package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
)

// ---------------------------------------------------------------------------
// Repository adapter
// ---------------------------------------------------------------------------

// RepoStore backs Store with the repository client.
type RepoStore struct {
	DB *repo.Client
}

func NewRepoStore(db *repo.Client) *RepoStore { return &RepoStore{DB: db} }

func (r *RepoStore) Patient(ctx context.Context, centerID, id uuid.UUID) (*repo.Patient, error) {
	return r.DB.Patient.Get(ctx, centerID, id)
}

func (r *RepoStore) Invoice(ctx context.Context, centerID, id uuid.UUID) (*repo.Invoice, error) {
	return r.DB.Invoice.Get(ctx, centerID, id)
}

func (r *RepoStore) ListInvoices(ctx context.Context, centerID uuid.UUID, f repo.InvoiceFilter, p repo.Page) ([]*repo.Invoice, int, error) {
	return r.DB.Invoice.List(ctx, centerID, f, p)
}

func (r *RepoStore) CreateInvoice(ctx context.Context, inv *repo.Invoice) error {
	return r.DB.WithTx(ctx, func(tx *repo.Client) error {
		return tx.Invoice.Create(ctx, inv)
	})
}

func (r *RepoStore) IssueInvoice(ctx context.Context, centerID, id uuid.UUID) error {
	return r.DB.Invoice.Issue(ctx, centerID, id)
}

func (r *RepoStore) VoidInvoice(ctx context.Context, centerID, id uuid.UUID) error {
	return r.DB.Invoice.Void(ctx, centerID, id)
}

func (r *RepoStore) Payment(ctx context.Context, centerID, id uuid.UUID) (*repo.Payment, error) {
	return r.DB.Payment.Get(ctx, centerID, id)
}

func (r *RepoStore) ListPayments(ctx context.Context, centerID uuid.UUID, f repo.PaymentFilter, p repo.Page) ([]*repo.Payment, int, error) {
	return r.DB.Payment.List(ctx, centerID, f, p)
}

func (r *RepoStore) RecordPayment(ctx context.Context, p *repo.Payment) (*repo.Invoice, error) {
	var inv *repo.Invoice
	err := r.DB.WithTx(ctx, func(tx *repo.Client) error {
		var err error
		if inv, err = tx.Invoice.ApplyPayment(ctx, p.InvoiceID, p.Amount); err != nil {
			return err
		}
		return tx.Payment.Create(ctx, p)
	})
	return inv, err
}

func (r *RepoStore) CreatePayment(ctx context.Context, p *repo.Payment) error {
	return r.DB.Payment.Create(ctx, p)
}

func (r *RepoStore) SetAuthority(ctx context.Context, id uuid.UUID, authority string) error {
	return r.DB.Payment.SetAuthority(ctx, id, authority)
}

func (r *RepoStore) FailPayment(ctx context.Context, id uuid.UUID) error {
	return r.DB.Payment.Settle(ctx, id, repo.PaymentFailed, nil)
}

func (r *RepoStore) SettleOnline(ctx context.Context, authority string, settle func(p *repo.Payment) (Settlement, error)) (*repo.Payment, *repo.Invoice, error) {
	var (
		pay *repo.Payment
		inv *repo.Invoice
	)
	err := r.DB.WithTx(ctx, func(tx *repo.Client) error {
		var err error
		if pay, err = tx.Payment.GetByAuthority(ctx, authority); err != nil {
			return err
		}
		if pay.Status != repo.PaymentPending {
			return nil
		}
		verdict, err := settle(pay)
		if err != nil {
			return err
		}
		if verdict.Status == repo.PaymentSuccess {
			inv, err = tx.Invoice.ApplyPayment(ctx, pay.InvoiceID, pay.Amount)
			if errors.Is(err, repo.ErrNotFound) {
				// Captured by the gateway but the invoice no longer takes it.
				slog.ErrorContext(ctx, "online payment captured for closed invoice",
					"payment_id", pay.ID, "invoice_id", pay.InvoiceID, "authority", authority)
				verdict.Status = repo.PaymentFailed
			} else if err != nil {
				return err
			}
		}
		if err := tx.Payment.Settle(ctx, pay.ID, verdict.Status, verdict.Reference); err != nil {
			return err
		}
		if inv == nil {
			if inv, err = tx.Invoice.Get(ctx, pay.CenterID, pay.InvoiceID); err != nil {
				return err
			}
		}
		pay, err = tx.Payment.Get(ctx, pay.CenterID, pay.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return pay, inv, nil
}
