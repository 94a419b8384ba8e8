package webhook

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside the allowed window")
	ErrVerifyFailed     = errors.New("webhook verification failed")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)
