package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// CenterScope is the center selected by the X-Center-ID header together with
// the caller's membership in it.
type CenterScope struct {
	CenterID uuid.UUID
	// MemberID is uuid.Nil for superadmins acting without membership.
	MemberID uuid.UUID
	// Role is the center_members.role value, empty for superadmins.
	Role         string
	IsSuperAdmin bool
}

// WithCenter stores the CenterScope in the context.
func WithCenter(ctx context.Context, scope *CenterScope) context.Context {
	return context.WithValue(ctx, keyCenter, scope)
}

// CenterFromContext retrieves the CenterScope.
func CenterFromContext(ctx context.Context) (*CenterScope, bool) {
	v, ok := ctx.Value(keyCenter).(*CenterScope)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Actor returns the member id recorded as the actor of a change, or nil for
// superadmins without membership.
func (s *CenterScope) Actor() *uuid.UUID {
	if s == nil || s.MemberID == uuid.Nil {
		return nil
	}
	id := s.MemberID
	return &id
}
