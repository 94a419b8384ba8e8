package billing

import "errors"

var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrNoItems            = errors.New("invoice needs at least one item")
	ErrInvalidItem        = errors.New("invoice item needs a description, a positive quantity and a non-negative price")
	ErrInvalidDiscount    = errors.New("discount and insurance share must be between zero and the subtotal")
	ErrInvalidStatus      = errors.New("invalid invoice status")
	ErrNotDraft           = errors.New("only draft invoices can be issued")
	ErrNotVoidable        = errors.New("only unpaid draft or issued invoices can be voided")
	ErrNotPayable         = errors.New("invoice is not open for payment")
	ErrInvalidAmount      = errors.New("payment amount must be positive")
	ErrOverpayment        = errors.New("payment exceeds the outstanding balance")
	ErrInvalidMethod      = errors.New("invalid payment method")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentFailed      = errors.New("payment failed or cancelled by user")
	ErrGatewayFailure     = errors.New("payment gateway error")
	ErrGatewayUnavailable = errors.New("online payments are not configured")
)
