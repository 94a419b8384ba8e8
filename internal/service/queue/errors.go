package queue

import "errors"

var (
	ErrNotFound            = errors.New("queue item not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrPatientArchived     = errors.New("patient is archived")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAppointmentMismatch = errors.New("appointment belongs to another patient")
	ErrAppointmentClosed   = errors.New("appointment is completed or cancelled")
	ErrDoctorNotFound      = errors.New("doctor is not an active doctor of this center")
	ErrInvalidTransition   = errors.New("queue item cannot be cancelled in its current status")
	ErrInvalidStatus       = errors.New("invalid queue status")
)
