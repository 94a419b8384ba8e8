package pasetotoken

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongType marks a valid token presented where the other kind is expected.
	ErrWrongType = errors.New("wrong token type")
	// ErrNoSession marks a token that is not bound to a login session.
	ErrNoSession = errors.New("token has no session")
)

type ErrConfig struct{ Msg string }

func (e ErrConfig) Error() string { return "paseto: " + e.Msg }

// ErrInvalidToken wraps every verification failure.
type ErrInvalidToken struct{ Err error }

func (e ErrInvalidToken) Error() string { return fmt.Sprintf("invalid token: %v", e.Err) }
func (e ErrInvalidToken) Unwrap() error { return e.Err }
