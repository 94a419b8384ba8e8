package rules

import "errors"

var (
	ErrRuleNotFound      = errors.New("business rule not found")
	ErrInvalidTrigger    = errors.New("invalid rule trigger")
	ErrInvalidMatch      = errors.New("match must be all or any")
	ErrInvalidOperator   = errors.New("invalid condition operator")
	ErrInvalidCondition  = errors.New("invalid rule condition")
	ErrInvalidAction     = errors.New("invalid rule action")
	ErrInvalidExpression = errors.New("invalid rule expression")
	ErrNameRequired      = errors.New("rule name is required")
	ErrBlocked           = errors.New("blocked by business rule")
)

// BlockedError carries the rule whose block action stopped an operation.
type BlockedError struct {
	Match Match
}

func (e *BlockedError) Error() string {
	if e.Match.Action.Message != "" {
		return e.Match.Action.Message
	}
	return ErrBlocked.Error() + ": " + e.Match.Name
}

func (e *BlockedError) Is(target error) bool { return target == ErrBlocked }

// Check returns a *BlockedError when res holds a block action.
func (r *Result) Check() error {
	if b := r.Blocking(); b != nil {
		return &BlockedError{Match: *b}
	}
	return nil
}
