package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/medcenter_backend/pkg/paseto"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

// ---------------------------------------------------------------------------
// AuthRequired
// ---------------------------------------------------------------------------

type fakeSessions map[uuid.UUID]uuid.UUID

func (f fakeSessions) Lookup(_ context.Context, sid uuid.UUID) (uuid.UUID, error) {
	if u, ok := f[sid]; ok {
		return u, nil
	}
	return uuid.Nil, errors.New("session not found")
}

func newManager(t *testing.T) *pasetotoken.Manager {
	t.Helper()
	keys := pasetotoken.NewLocalKeys()
	m, err := pasetotoken.New(pasetotoken.Config{
		Mode:      keys.Mode,
		Issuer:    "medcenter",
		Audience:  "medcenter-api",
		AccessTTL: time.Minute,
	}, keys)
	if err != nil {
		t.Fatalf("paseto.New: %v", err)
	}
	return m
}

func TestAuthRequired(t *testing.T) {
	mgr := newManager(t)
	user, other := uuid.New(), uuid.New()
	sid, staleSID, foreignSID := uuid.New(), uuid.New(), uuid.New()
	sessions := fakeSessions{sid: user, foreignSID: other}

	access, refresh, _ := mgr.IssuePair(user, sid)
	stale, _ := mgr.IssueAccess(user, staleSID)
	foreign, _ := mgr.IssueAccess(user, foreignSID)

	app := fiber.New()
	app.Get("/", AuthRequired(mgr, sessions, "mc_session"), func(c fiber.Ctx) error {
		claims, ok := ClaimsFromFiber(c)
		if !ok {
			return fiber.ErrTeapot
		}
		if uid, ok := reqctx.UserIDFromContext(c.Context()); !ok || uid != claims.UserID {
			return fiber.ErrTeapot
		}
		return c.SendString(claims.UserID.String())
	})

	tests := []struct {
		name   string
		bearer string
		cookie string
		want   int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "bearer access", bearer: access, want: http.StatusOK},
		{name: "cookie access", cookie: access, want: http.StatusOK},
		{name: "refresh token", bearer: refresh, want: http.StatusUnauthorized},
		{name: "garbage", bearer: "v4.local.nope", want: http.StatusUnauthorized},
		{name: "revoked session", bearer: stale, want: http.StatusUnauthorized},
		{name: "session of another user", bearer: foreign, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "mc_session", Value: tt.cookie})
			}
			status, body := do(t, app, req)
			if status != tt.want {
				t.Fatalf("status = %d, want %d (%s)", status, tt.want, body)
			}
			if tt.want == http.StatusOK && body != user.String() {
				t.Fatalf("body = %q", body)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// CenterHeader
// ---------------------------------------------------------------------------

type fakeTenancy struct {
	centers map[uuid.UUID]*repo.Center
	members map[uuid.UUID]*repo.CenterMember // by user id
}

func (f *fakeTenancy) Center(_ context.Context, id uuid.UUID) (*repo.Center, error) {
	if c, ok := f.centers[id]; ok {
		return c, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeTenancy) MemberByUser(_ context.Context, centerID, userID uuid.UUID) (*repo.CenterMember, error) {
	if m, ok := f.members[userID]; ok && m.CenterID == centerID {
		return m, nil
	}
	return nil, repo.ErrNotFound
}

type fakeAdmins map[string]bool

func (f fakeAdmins) IsSuperAdmin(_ context.Context, s authorize.GroupSubject) bool {
	return f[string(s)]
}

// withClaims stands in for AuthRequired.
func withClaims(userID uuid.UUID) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims := &pasetotoken.Claims{Type: pasetotoken.TokenTypeAccess, UserID: userID}
		c.Locals(LocalsClaims, claims)
		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}

func TestCenterHeader(t *testing.T) {
	active := &repo.Center{ID: uuid.New(), IsActive: true}
	closed := &repo.Center{ID: uuid.New(), IsActive: false}

	receptionist, inactive, outsider, admin := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	memberID := uuid.New()
	tenancy := &fakeTenancy{
		centers: map[uuid.UUID]*repo.Center{active.ID: active, closed.ID: closed},
		members: map[uuid.UUID]*repo.CenterMember{
			receptionist: {ID: memberID, CenterID: active.ID, UserID: receptionist, Role: repo.RoleReceptionist, IsActive: true},
			inactive:     {ID: uuid.New(), CenterID: active.ID, UserID: inactive, Role: repo.RoleDoctor, IsActive: false},
		},
	}
	admins := fakeAdmins{admin.String(): true}

	tests := []struct {
		name   string
		user   uuid.UUID
		header string
		want   int
		role   string
		super  bool
	}{
		{name: "missing header", user: receptionist, want: http.StatusBadRequest},
		{name: "malformed id", user: receptionist, header: "abc", want: http.StatusBadRequest},
		{name: "unknown center", user: receptionist, header: uuid.NewString(), want: http.StatusNotFound},
		{name: "member", user: receptionist, header: active.ID.String(), want: http.StatusOK, role: repo.RoleReceptionist},
		{name: "inactive member", user: inactive, header: active.ID.String(), want: http.StatusForbidden},
		{name: "non member", user: outsider, header: active.ID.String(), want: http.StatusForbidden},
		{name: "inactive center", user: receptionist, header: closed.ID.String(), want: http.StatusNotFound},
		{name: "superadmin without membership", user: admin, header: active.ID.String(), want: http.StatusOK, super: true},
		{name: "superadmin on inactive center", user: admin, header: closed.ID.String(), want: http.StatusOK, super: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *reqctx.CenterScope
			app := fiber.New()
			app.Get("/", withClaims(tt.user), CenterHeader(tenancy, admins), func(c fiber.Ctx) error {
				got, _ = reqctx.CenterFromContext(c.Context())
				return c.SendStatus(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderCenterID, tt.header)
			}
			status, body := do(t, app, req)
			if status != tt.want {
				t.Fatalf("status = %d, want %d (%s)", status, tt.want, body)
			}
			if tt.want != http.StatusOK {
				return
			}
			if got == nil || got.Role != tt.role || got.IsSuperAdmin != tt.super {
				t.Fatalf("scope = %+v", got)
			}
			if tt.role != "" && got.MemberID != memberID {
				t.Fatalf("member id = %s", got.MemberID)
			}
		})
	}
}

func TestCenterContextUsesParam(t *testing.T) {
	center := &repo.Center{ID: uuid.New(), IsActive: true}
	user := uuid.New()
	tenancy := &fakeTenancy{
		centers: map[uuid.UUID]*repo.Center{center.ID: center},
		members: map[uuid.UUID]*repo.CenterMember{
			user: {ID: uuid.New(), CenterID: center.ID, UserID: user, Role: repo.RoleOwner, IsActive: true},
		},
	}
	app := fiber.New()
	app.Get("/centers/:id", withClaims(user), CenterContext(tenancy, nil), func(c fiber.Ctx) error {
		return c.SendString(c.Locals(LocalsMemberRole).(string))
	})

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/centers/"+center.ID.String(), nil))
	if status != http.StatusOK || body != repo.RoleOwner {
		t.Fatalf("status = %d body = %q", status, body)
	}
}

// ---------------------------------------------------------------------------
// RequirePermission / RequireRole
// ---------------------------------------------------------------------------

type recordingEnforcer struct {
	subject authorize.GroupSubject
	domain  authorize.Domain
	allow   bool
}

func (r *recordingEnforcer) MustEnforce(_ context.Context, s authorize.GroupSubject, d authorize.Domain, _ authorize.Resource, _ authorize.Action) error {
	r.subject, r.domain = s, d
	if !r.allow {
		return authorize.ErrForbidden
	}
	return nil
}

func withScope(scope *reqctx.CenterScope) fiber.Handler {
	return func(c fiber.Ctx) error {
		if scope != nil {
			c.Locals(LocalsScope, scope)
			c.SetContext(reqctx.WithCenter(c.Context(), scope))
		}
		return c.Next()
	}
}

func TestRequirePermission(t *testing.T) {
	user := uuid.New()
	center := uuid.New()

	tests := []struct {
		name   string
		scope  *reqctx.CenterScope
		allow  bool
		want   int
		domain authorize.Domain
	}{
		{name: "center domain", scope: &reqctx.CenterScope{CenterID: center}, allow: true, want: http.StatusOK, domain: authorize.CenterDomain(center.String())},
		{name: "sys domain", allow: true, want: http.StatusOK, domain: authorize.DomainSys},
		{name: "denied", scope: &reqctx.CenterScope{CenterID: center}, want: http.StatusForbidden, domain: authorize.CenterDomain(center.String())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enf := &recordingEnforcer{allow: tt.allow}
			app := fiber.New()
			app.Get("/", withClaims(user), withScope(tt.scope),
				RequirePermission(enf, authorize.ResourcePatient, authorize.ActionRead),
				func(c fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

			status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
			if status != tt.want {
				t.Fatalf("status = %d, want %d", status, tt.want)
			}
			if enf.domain != tt.domain || enf.subject != authorize.GroupSubject(user.String()) {
				t.Fatalf("enforced %s in %s", enf.subject, enf.domain)
			}
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		app := fiber.New()
		app.Get("/", RequirePermission(&recordingEnforcer{allow: true}, authorize.ResourcePatient, authorize.ActionRead),
			func(c fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
		if status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil)); status != http.StatusUnauthorized {
			t.Fatalf("status = %d", status)
		}
	})
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		scope *reqctx.CenterScope
		want  int
	}{
		{"doctor", &reqctx.CenterScope{Role: repo.RoleDoctor}, http.StatusOK},
		{"receptionist", &reqctx.CenterScope{Role: repo.RoleReceptionist}, http.StatusForbidden},
		{"superadmin", &reqctx.CenterScope{IsSuperAdmin: true}, http.StatusOK},
		{"no scope", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", withScope(tt.scope), RequireRole(repo.RoleDoctor),
				func(c fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
			if status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil)); status != tt.want {
				t.Fatalf("status = %d, want %d", status, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequestID(), func(c fiber.Ctx) error {
		rid, _ := RequestIDFromFiber(c)
		if reqctx.RequestIDFromContext(c.Context()) != rid {
			return fiber.ErrTeapot
		}
		return c.SendString(rid)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(HeaderRequestID); got != "abc-123" {
		t.Fatalf("echoed id = %q", got)
	}

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if _, err := uuid.Parse(body); err != nil {
		t.Fatalf("generated id %q: %v", body, err)
	}
}
