package appointment

import "errors"

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTime       = errors.New("end time must be after start time")
	ErrOverlap           = errors.New("doctor already has an appointment in this time range")
	ErrInvalidTransition = errors.New("appointment status transition not allowed")
	ErrNotDeletable      = errors.New("only pending appointments can be deleted")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrDoctorNotFound    = errors.New("doctor is not an active doctor of this center")
	ErrInvalidStatus     = errors.New("invalid appointment status")
)
