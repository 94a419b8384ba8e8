package authorize

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

type testClaims struct {
	userID uuid.UUID
}

func (c testClaims) GetUserID() uuid.UUID     { return c.userID }
func (c testClaims) GetSessionID() *uuid.UUID { return nil }
func (c testClaims) GetTokenType() string     { return "access" }
func (c testClaims) IsExpired() bool          { return false }

func TestSubjectFromContext(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		ctx     context.Context
		want    GroupSubject
		wantErr bool
	}{
		{"claims present", reqctx.WithClaims(context.Background(), testClaims{userID: id}), GroupSubject(id.String()), false},
		{"no claims", context.Background(), "", true},
		{"nil user id", reqctx.WithClaims(context.Background(), testClaims{}), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SubjectFromContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("subject = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDomainFromContext(t *testing.T) {
	centerID := uuid.New()
	ctx := reqctx.WithCenter(context.Background(), &reqctx.CenterScope{CenterID: centerID})

	d, err := DomainFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != CenterDomain(centerID.String()) {
		t.Errorf("domain = %q", d)
	}

	if _, err := DomainFromContext(context.Background()); !errors.Is(err, ErrNoCenterInContext) {
		t.Errorf("expected ErrNoCenterInContext, got %v", err)
	}
}
