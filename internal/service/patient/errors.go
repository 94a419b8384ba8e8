package patient

import "errors"

var (
	ErrPatientNotFound   = errors.New("patient not found")
	ErrNameRequired      = errors.New("first and last name are required")
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrInvalidNationalID = errors.New("national ID must be exactly 10 digits")
	ErrNationalIDExists  = errors.New("a patient with this national ID already exists")
	ErrInvalidGender     = errors.New("gender must be male, female or other")
	ErrInvalidStatus     = errors.New("invalid patient status")
	ErrAccessDenied      = errors.New("access denied to this patient record")
)
