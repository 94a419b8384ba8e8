package visit

import "errors"

var (
	ErrNotFound          = errors.New("visit not found")
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrNotConfirmed      = errors.New("queue item is not confirmed")
	ErrNotAssigned       = errors.New("queue item is confirmed to another doctor")
	ErrVisitClosed       = errors.New("visit is closed")
	ErrDiagnosisRequired = errors.New("diagnosis is required to close a visit")
	ErrInvalidStatus     = errors.New("invalid visit status")
)
