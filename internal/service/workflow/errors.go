package workflow

import "errors"

var (
	ErrNotFound        = errors.New("workflow not found")
	ErrNameRequired    = errors.New("workflow name is required")
	ErrTriggerRequired = errors.New("workflow trigger is required")
	ErrInvalidSteps    = errors.New("invalid workflow steps")
	ErrDuplicateStep   = errors.New("duplicate workflow step key")
	ErrInvalidRole     = errors.New("invalid workflow step role")
)
