package insurance

import "errors"

var (
	ErrRequestNotFound     = errors.New("insurance request not found")
	ErrDocumentNotFound    = errors.New("insurance document not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrQueueItemMismatch   = errors.New("queue item belongs to another patient")
	ErrProviderRequired    = errors.New("insurance provider is required")
	ErrInvalidStatus       = errors.New("invalid insurance status")
	ErrInvalidDecision     = errors.New("decision must be approved or rejected")
	ErrInvalidAmount       = errors.New("approved amount must not be negative")
	ErrNotPending          = errors.New("insurance request has already been reviewed")
	ErrDocTypeRequired     = errors.New("document type is required")
	ErrFileTooLarge        = errors.New("file is too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrStorageUnavailable  = errors.New("document storage is not configured")
)
