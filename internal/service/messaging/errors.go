package messaging

import "errors"

var (
	ErrNotFound          = errors.New("message not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrInvalidChannel    = errors.New("channel must be whatsapp or slack")
	ErrBodyRequired      = errors.New("message body is required")
	ErrBodyTooLong       = errors.New("message body is too long")
	ErrRecipientRequired = errors.New("message recipient is required")
	ErrInvalidRecipient  = errors.New("invalid message recipient")
)
