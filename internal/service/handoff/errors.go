package handoff

import (
	"errors"
	"strings"

	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/internal/service/verification"
)

var (
	ErrInvalidTransition  = errors.New("queue item is not waiting")
	ErrDoctorNotFound     = errors.New("doctor is not an active doctor of this center")
	ErrBlockedByRule      = rules.ErrBlocked
	ErrVerificationFailed = errors.New("payment verification failed")
)

// BlockedError carries the rule that stopped the hand-off.
type BlockedError = rules.BlockedError

// VerificationError carries the full verification result.
type VerificationError struct {
	Result verification.Result
}

func (e *VerificationError) Error() string {
	return ErrVerificationFailed.Error() + ": " + strings.Join(e.Result.Reasons, ", ")
}

func (e *VerificationError) Is(target error) bool { return target == ErrVerificationFailed }
