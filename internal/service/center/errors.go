package center

import "errors"

var (
	ErrCenterNotFound    = errors.New("center not found")
	ErrSlugAlreadyExists = errors.New("center slug already taken")
	ErrNameRequired      = errors.New("center name is required")
	ErrMemberNotFound    = errors.New("center member not found")
	ErrAlreadyMember     = errors.New("user is already a member of this center")
	ErrInvalidRole       = errors.New("invalid center member role")
	ErrCannotRemoveOwner = errors.New("cannot deactivate the last center owner")
	ErrInvalidEmail      = errors.New("a valid e-mail address is required")
	ErrInvalidPhone      = errors.New("invalid phone number")
)
