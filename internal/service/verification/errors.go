package verification

import "errors"

var (
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrPatientNotFound   = errors.New("patient not found")
)
