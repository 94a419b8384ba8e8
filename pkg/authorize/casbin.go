package authorize

import (
	"context"
	"errors"
	"fmt"

	casbin "github.com/casbin/casbin/v2"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidArgs = errors.New("invalid authorization arguments")
)

// IAuthorization is the typed RBAC surface used by middleware, the center
// service and the system commands. Subjects are user ids, domains are
// center:<uuid> or sys.
type IAuthorization interface {
	Enforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error)

	// MustEnforce returns ErrForbidden when Enforce denies.
	MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error

	AddRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error)
	RemoveRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error)
	GetRolesForUserInDomain(ctx context.Context, subject GroupSubject, domain Domain) ([]Role, error)

	AddPermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error)
	RemovePermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error)

	// IsSuperAdmin reports whether subject holds the platform superadmin role.
	IsSuperAdmin(ctx context.Context, subject GroupSubject) bool
}

// Authorization wraps a casbin enforcer whose model matches
// config/casbin_model.conf.
type Authorization struct {
	enforcer       *casbin.DistributedEnforcer
	superAdminRole Role
}

// NewAuthorization wraps an already-configured Enforcer and loads its policy.
// Superadmins (role:platform:superadmin in sys) bypass every check.
func NewAuthorization(e *casbin.DistributedEnforcer) (IAuthorization, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: enforcer is nil", ErrInvalidArgs)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, err
	}

	return &Authorization{
		enforcer:       e,
		superAdminRole: RolePlatformSuperAdmin,
	}, nil
}

func (a *Authorization) IsSuperAdmin(_ context.Context, subject GroupSubject) bool {
	if subject == "" {
		return false
	}
	ok, _ := a.enforcer.HasGroupingPolicy(string(subject), string(RolePlatformSuperAdmin), string(DomainSys))
	return ok
}

func checkDomain(d Domain) error {
	if !IsValidDomain(d) {
		return fmt.Errorf("%w: invalid domain: %q", ErrInvalidArgs, d)
	}
	return nil
}

func checkRole(r Role) error {
	if _, ok := KnownRoles[r]; !ok && r != WildcardRole {
		return fmt.Errorf("%w: unknown role: %q", ErrInvalidArgs, r)
	}
	return nil
}

func checkObjectAction(o Resource, act Action) error {
	if _, ok := KnownResources[o]; !ok && o != WildcardResource {
		return fmt.Errorf("%w: unknown resource: %q", ErrInvalidArgs, o)
	}
	if _, ok := KnownActions[act]; !ok && act != WildcardAction {
		return fmt.Errorf("%w: unknown action: %q", ErrInvalidArgs, act)
	}
	return nil
}

func (a *Authorization) Enforce(_ context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error) {
	if subject == "" {
		return false, fmt.Errorf("%w: subject is empty", ErrInvalidArgs)
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	if err := checkObjectAction(object, action); err != nil {
		return false, err
	}
	if a.superAdminRole != "" {
		if ok, _ := a.enforcer.HasGroupingPolicy(string(subject), string(a.superAdminRole), string(DomainSys)); ok {
			return true, nil
		}
	}
	return a.enforcer.Enforce(string(subject), string(domain), string(object), string(action))
}

func (a *Authorization) MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, subject, domain, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// Grouping policies: g, subject, role, domain.

func (a *Authorization) AddRoleForUserInDomain(_ context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	if subject == "" {
		return false, fmt.Errorf("%w: subject is empty", ErrInvalidArgs)
	}
	if err := checkRole(role); err != nil {
		return false, err
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	return a.enforcer.AddGroupingPolicy(string(subject), string(role), string(domain))
}

func (a *Authorization) RemoveRoleForUserInDomain(_ context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	if subject == "" || role == "" {
		return false, fmt.Errorf("%w: empty subject/role", ErrInvalidArgs)
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	return a.enforcer.RemoveGroupingPolicy(string(subject), string(role), string(domain))
}

func (a *Authorization) GetRolesForUserInDomain(_ context.Context, subject GroupSubject, domain Domain) ([]Role, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is empty", ErrInvalidArgs)
	}
	if err := checkDomain(domain); err != nil {
		return nil, err
	}
	names := a.enforcer.GetRolesForUserInDomain(string(subject), string(domain))
	out := make([]Role, len(names))
	for i, r := range names {
		out[i] = Role(r)
	}
	return out, nil
}

// Permission policies: p, role, domain, object, action, effect.

func (a *Authorization) AddPermission(_ context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	if err := checkRole(role); err != nil {
		return false, err
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	if err := checkObjectAction(object, action); err != nil {
		return false, err
	}
	if effect != EffectAllow && effect != EffectDeny {
		return false, fmt.Errorf("%w: invalid effect: %q", ErrInvalidArgs, effect)
	}
	return a.enforcer.AddPolicy(string(role), string(domain), string(object), string(action), string(effect))
}

func (a *Authorization) RemovePermission(_ context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	if role == "" || object == "" || action == "" || effect == "" {
		return false, fmt.Errorf("%w: empty permission fields", ErrInvalidArgs)
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	return a.enforcer.RemovePolicy(string(role), string(domain), string(object), string(action), string(effect))
}
