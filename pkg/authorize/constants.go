package authorize

import (
	"fmt"
	"regexp"
)

type Action string
type Resource string
type Role string
type Domain string

// ----------------------------
// Actions
// ----------------------------

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"

	// Workflow actions
	ActionConfirm Action = "confirm" // hand a queue item to a doctor
	ActionReview  Action = "review"  // approve / reject insurance
	ActionIssue   Action = "issue"
	ActionVoid    Action = "void"
	ActionExecute Action = "execute" // dry-run rules, send messages

	// RBAC-specific actions
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

const (
	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {}, ActionList: {},
	ActionConfirm: {}, ActionReview: {}, ActionIssue: {}, ActionVoid: {}, ActionExecute: {},
	ActionGrant: {}, ActionRevoke: {},
}

// ----------------------------
// Resources
// ----------------------------

const (
	WildcardResource Resource = "*"

	ResourceCenter       Resource = "center"
	ResourceCenterMember Resource = "center_member"

	ResourcePatient     Resource = "patient"
	ResourceAppointment Resource = "appointment"
	ResourceQueue       Resource = "queue"
	ResourceVisit       Resource = "visit"

	ResourceInvoice   Resource = "invoice"
	ResourcePayment   Resource = "payment"
	ResourceInsurance Resource = "insurance"

	ResourceBusinessRule Resource = "business_rule"
	ResourceWorkflow     Resource = "workflow"
	ResourceMessage      Resource = "message"
	ResourceDashboard    Resource = "dashboard"

	ResourceSystem Resource = "system"
	ResourceRBAC   Resource = "rbac"
)

var KnownResources = map[Resource]struct{}{
	ResourceCenter: {}, ResourceCenterMember: {},
	ResourcePatient: {}, ResourceAppointment: {}, ResourceQueue: {}, ResourceVisit: {},
	ResourceInvoice: {}, ResourcePayment: {}, ResourceInsurance: {},
	ResourceBusinessRule: {}, ResourceWorkflow: {}, ResourceMessage: {}, ResourceDashboard: {},
	ResourceSystem: {}, ResourceRBAC: {},
}

// ----------------------------
// Roles
// ----------------------------
//
// These are the "policy subjects" we assign to users via grouping policies.

const (
	WildcardRole Role = "*"

	// Platform role (domain = sys)
	RolePlatformSuperAdmin Role = "role:platform:superadmin"

	// Center roles (domain = center:<uuid>)
	RoleCenterOwner            Role = "role:center:owner"
	RoleCenterAdmin            Role = "role:center:admin"
	RoleCenterDoctor           Role = "role:center:doctor"
	RoleCenterReceptionist     Role = "role:center:receptionist"
	RoleCenterAccountant       Role = "role:center:accountant"
	RoleCenterInsuranceOfficer Role = "role:center:insurance_officer"
)

var KnownRoles = map[Role]struct{}{
	RolePlatformSuperAdmin:     {},
	RoleCenterOwner:            {},
	RoleCenterAdmin:            {},
	RoleCenterDoctor:           {},
	RoleCenterReceptionist:     {},
	RoleCenterAccountant:       {},
	RoleCenterInsuranceOfficer: {},
}

// Center member role strings (center_members.role column)
const (
	MemberRoleOwner            = "owner"
	MemberRoleAdmin            = "admin"
	MemberRoleDoctor           = "doctor"
	MemberRoleReceptionist     = "receptionist"
	MemberRoleAccountant       = "accountant"
	MemberRoleInsuranceOfficer = "insurance_officer"
)

// MemberRoleToRBACRole maps DB role values to Casbin roles
var MemberRoleToRBACRole = map[string]Role{
	MemberRoleOwner:            RoleCenterOwner,
	MemberRoleAdmin:            RoleCenterAdmin,
	MemberRoleDoctor:           RoleCenterDoctor,
	MemberRoleReceptionist:     RoleCenterReceptionist,
	MemberRoleAccountant:       RoleCenterAccountant,
	MemberRoleInsuranceOfficer: RoleCenterInsuranceOfficer,
}

// IsValidMemberRole reports whether s is a known center_members.role value.
func IsValidMemberRole(s string) bool {
	_, ok := MemberRoleToRBACRole[s]
	return ok
}

// ----------------------------
// Domains
// ----------------------------

const (
	DomainSys Domain = "sys"
)

const (
	DomainPrefixCenter Domain = "center:"
)

const (
	WildcardDomain Domain = "*"
)

var (
	reUUID = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
)

func CenterDomain(centerID string) Domain {
	return Domain(fmt.Sprintf("%s%s", DomainPrefixCenter, centerID))
}

// IsValidDomain checks whether d is a recognised domain string.
func IsValidDomain(d Domain) bool {
	if d == DomainSys || d == WildcardDomain {
		return true
	}

	s := string(d)
	if len(s) > len(DomainPrefixCenter) && s[:len(DomainPrefixCenter)] == string(DomainPrefixCenter) {
		return reUUID.MatchString(s[len(DomainPrefixCenter):])
	}
	return false
}

// ----------------------------
// Casbin tuple helpers
// ----------------------------

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// GroupSubject is the g.sub in Casbin: a concrete principal id (user_id).
type GroupSubject string

// Grouping rows: g, user_id, role, domain
type GroupingPolicy struct {
	Subject GroupSubject
	Role    Role
	Domain  Domain
}

// Permission rows: p, role, domain, resource, action, eft
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
