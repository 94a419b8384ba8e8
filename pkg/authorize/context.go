package authorize

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

var (
	ErrNoSubjectInContext = errors.New("no subject found in context")
	ErrNoCenterInContext  = errors.New("no center found in context")
)

// SubjectFromContext extracts the GroupSubject (user ID) from the request claims.
func SubjectFromContext(ctx context.Context) (GroupSubject, error) {
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	return GroupSubject(userID.String()), nil
}

// UserIDFromContext extracts the user ID as uuid.UUID from context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	claims := reqctx.ClaimsFromContext(ctx)
	if claims == nil {
		return uuid.Nil, ErrNoSubjectInContext
	}
	userID := claims.GetUserID()
	if userID == uuid.Nil {
		return uuid.Nil, ErrNoSubjectInContext
	}
	return userID, nil
}

// DomainFromContext returns center:<id> for the center selected by the
// X-Center-ID header.
func DomainFromContext(ctx context.Context) (Domain, error) {
	scope, ok := reqctx.CenterFromContext(ctx)
	if !ok || scope.CenterID == uuid.Nil {
		return "", ErrNoCenterInContext
	}
	return CenterDomain(scope.CenterID.String()), nil
}
