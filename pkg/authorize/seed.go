package authorize

import (
	"context"
	"log/slog"
)

// DefaultPolicies is the baseline permission matrix. Center roles are granted
// in the wildcard domain so a grouping row in center:<id> activates them.
func DefaultPolicies() []PermissionPolicy {
	allow := func(role Role, obj Resource, acts ...Action) []PermissionPolicy {
		out := make([]PermissionPolicy, 0, len(acts))
		for _, a := range acts {
			out = append(out, PermissionPolicy{role, WildcardDomain, obj, a, EffectAllow})
		}
		return out
	}
	crud := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList}
	read := []Action{ActionRead, ActionList}

	var ps []PermissionPolicy

	// Platform
	ps = append(ps, PermissionPolicy{RolePlatformSuperAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow})

	// Owner: everything in the center
	ps = append(ps, PermissionPolicy{RoleCenterOwner, WildcardDomain, WildcardResource, WildcardAction, EffectAllow})

	// Admin: everything except granting roles and deleting the center
	ps = append(ps, allow(RoleCenterAdmin, ResourceCenter, ActionRead, ActionUpdate)...)
	ps = append(ps, allow(RoleCenterAdmin, ResourceCenterMember, crud...)...)
	for _, r := range []Resource{ResourcePatient, ResourceAppointment, ResourceVisit, ResourceBusinessRule, ResourceWorkflow, ResourceMessage} {
		ps = append(ps, allow(RoleCenterAdmin, r, crud...)...)
	}
	ps = append(ps, allow(RoleCenterAdmin, ResourceQueue, append(crud, ActionConfirm)...)...)
	ps = append(ps, allow(RoleCenterAdmin, ResourceInvoice, append(crud, ActionIssue, ActionVoid)...)...)
	ps = append(ps, allow(RoleCenterAdmin, ResourcePayment, crud...)...)
	ps = append(ps, allow(RoleCenterAdmin, ResourceInsurance, append(crud, ActionReview)...)...)
	ps = append(ps, allow(RoleCenterAdmin, ResourceBusinessRule, ActionExecute)...)
	ps = append(ps, allow(RoleCenterAdmin, ResourceMessage, ActionExecute)...)
	ps = append(ps, allow(RoleCenterAdmin, ResourceDashboard, ActionRead)...)

	// Doctor: clinical work on patients handed to them
	ps = append(ps, allow(RoleCenterDoctor, ResourceCenter, ActionRead)...)
	ps = append(ps, allow(RoleCenterDoctor, ResourcePatient, ActionRead, ActionList, ActionUpdate)...)
	ps = append(ps, allow(RoleCenterDoctor, ResourceAppointment, read...)...)
	ps = append(ps, allow(RoleCenterDoctor, ResourceQueue, ActionRead, ActionList, ActionUpdate)...)
	ps = append(ps, allow(RoleCenterDoctor, ResourceVisit, ActionCreate, ActionRead, ActionList, ActionUpdate)...)
	ps = append(ps, allow(RoleCenterDoctor, ResourceInsurance, read...)...)
	ps = append(ps, allow(RoleCenterDoctor, ResourceDashboard, ActionRead)...)

	// Receptionist: front desk
	ps = append(ps, allow(RoleCenterReceptionist, ResourceCenter, ActionRead)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourceCenterMember, read...)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourcePatient, ActionCreate, ActionRead, ActionList, ActionUpdate)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourceAppointment, crud...)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourceQueue, ActionCreate, ActionRead, ActionList, ActionUpdate, ActionConfirm)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourceInvoice, ActionCreate, ActionRead, ActionList, ActionIssue)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourcePayment, ActionCreate, ActionRead, ActionList)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourceInsurance, ActionCreate, ActionRead, ActionList, ActionUpdate)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourceMessage, ActionCreate, ActionRead, ActionList, ActionExecute)...)
	ps = append(ps, allow(RoleCenterReceptionist, ResourceDashboard, ActionRead)...)

	// Accountant: billing
	ps = append(ps, allow(RoleCenterAccountant, ResourceCenter, ActionRead)...)
	ps = append(ps, allow(RoleCenterAccountant, ResourcePatient, read...)...)
	ps = append(ps, allow(RoleCenterAccountant, ResourceQueue, read...)...)
	ps = append(ps, allow(RoleCenterAccountant, ResourceInvoice, append(crud, ActionIssue, ActionVoid)...)...)
	ps = append(ps, allow(RoleCenterAccountant, ResourcePayment, crud...)...)
	ps = append(ps, allow(RoleCenterAccountant, ResourceInsurance, read...)...)
	ps = append(ps, allow(RoleCenterAccountant, ResourceDashboard, ActionRead)...)

	// Insurance officer
	ps = append(ps, allow(RoleCenterInsuranceOfficer, ResourceCenter, ActionRead)...)
	ps = append(ps, allow(RoleCenterInsuranceOfficer, ResourcePatient, read...)...)
	ps = append(ps, allow(RoleCenterInsuranceOfficer, ResourceQueue, read...)...)
	ps = append(ps, allow(RoleCenterInsuranceOfficer, ResourceInvoice, read...)...)
	ps = append(ps, allow(RoleCenterInsuranceOfficer, ResourceInsurance, append(crud, ActionReview)...)...)
	ps = append(ps, allow(RoleCenterInsuranceOfficer, ResourceDashboard, ActionRead)...)

	return ps
}

// SeedDefaultPolicies sets up the baseline RBAC policies for the system.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	policies := DefaultPolicies()
	added := 0
	for _, p := range policies {
		ok, err := auth.AddPermission(ctx, p.Subject, p.Domain, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if ok {
			added++
			logger.Debug("added policy", "role", p.Subject, "domain", p.Domain, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(policies), "added", added)
	return nil
}

// AssignCenterRole grants the Casbin role matching a center_members.role
// value in the center's domain. Call this when a member is added.
func AssignCenterRole(ctx context.Context, auth IAuthorization, userID, centerID, memberRole string) error {
	role, ok := MemberRoleToRBACRole[memberRole]
	if !ok {
		return ErrInvalidArgs
	}
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), role, CenterDomain(centerID))
	return err
}

// RemoveCenterRole revokes the Casbin role for a member role value.
func RemoveCenterRole(ctx context.Context, auth IAuthorization, userID, centerID, memberRole string) error {
	role, ok := MemberRoleToRBACRole[memberRole]
	if !ok {
		return ErrInvalidArgs
	}
	_, err := auth.RemoveRoleForUserInDomain(ctx, GroupSubject(userID), role, CenterDomain(centerID))
	return err
}

// ReplaceCenterRole swaps a member's role, used when a member's role column changes.
func ReplaceCenterRole(ctx context.Context, auth IAuthorization, userID, centerID, oldRole, newRole string) error {
	if oldRole == newRole {
		return nil
	}
	if err := RemoveCenterRole(ctx, auth, userID, centerID, oldRole); err != nil {
		return err
	}
	return AssignCenterRole(ctx, auth, userID, centerID, newRole)
}

// GetCenterRoles returns all roles a user has in a specific center.
func GetCenterRoles(ctx context.Context, auth IAuthorization, userID, centerID string) ([]Role, error) {
	return auth.GetRolesForUserInDomain(ctx, GroupSubject(userID), CenterDomain(centerID))
}

// AssignSuperadmin grants the platform superadmin role.
// Only the create-superadmin command calls this.
func AssignSuperadmin(ctx context.Context, auth IAuthorization, userID string) error {
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), RolePlatformSuperAdmin, DomainSys)
	return err
}
