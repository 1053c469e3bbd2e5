package rbac

import "fmt"

// Action is a governed operation checked by Can.
type Action string

// 权限常量
const (
	ActionBaselineSignSupplier    Action = "baseline:sign:supplier"
	ActionBaselineSignCustomer    Action = "baseline:sign:customer"
	ActionBaselineReset           Action = "baseline:reset"
	ActionBaselineOverride        Action = "baseline:override"
	ActionCertificateGenerate     Action = "certificate:generate"
	ActionCertificateSignSupplier Action = "certificate:sign:supplier"
	ActionCertificateSignCustomer Action = "certificate:sign:customer"
	ActionVariationDraft          Action = "variation:draft"
	ActionPlanCommit              Action = "plan:commit"
	ActionEdit                    Action = "tracker:edit"
	ActionOutboxReplay            Action = "outbox:replay"
)

// 角色常量
const (
	RoleAdmin           = "admin"
	RoleSupplierPM      = "supplier_pm"
	RoleSupplierFinance = "supplier_finance"
	RoleCustomerPM      = "customer_pm"
	RoleCustomerFinance = "customer_finance"
	RoleContributor     = "contributor"
	RoleViewer          = "viewer"
)

// 角色权限映射
var rolePermissions = map[string][]Action{
	RoleAdmin: {
		ActionBaselineSignSupplier,
		ActionBaselineSignCustomer,
		ActionBaselineReset,
		ActionBaselineOverride,
		ActionCertificateGenerate,
		ActionCertificateSignSupplier,
		ActionCertificateSignCustomer,
		ActionVariationDraft,
		ActionPlanCommit,
		ActionEdit,
		ActionOutboxReplay,
	},
	RoleSupplierPM: {
		ActionBaselineSignSupplier,
		ActionCertificateGenerate,
		ActionCertificateSignSupplier,
		ActionVariationDraft,
		ActionPlanCommit,
		ActionEdit,
	},
	RoleSupplierFinance: {
		ActionCertificateSignSupplier,
		ActionVariationDraft,
		ActionEdit,
	},
	RoleCustomerPM: {
		ActionBaselineSignCustomer,
		ActionCertificateSignCustomer,
		ActionVariationDraft,
		ActionEdit,
	},
	RoleCustomerFinance: {
		ActionCertificateSignCustomer,
	},
	RoleContributor: {
		ActionEdit,
	},
	RoleViewer: {},
}

// Can reports whether role may perform action. Unknown roles may do nothing.
func Can(role string, action Action) bool {
	for _, a := range rolePermissions[role] {
		if a == action {
			return true
		}
	}
	return false
}

// IsAdmin reports whether role bypasses baseline protection.
func IsAdmin(role string) bool {
	return Can(role, ActionBaselineOverride)
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(actorID, role string, action Action) error {
	if !Can(role, action) {
		return &PermissionDeniedError{
			ActorID: actorID,
			Role:    role,
			Action:  action,
		}
	}
	return nil
}

// RolesFor lists the roles granted action, in a stable order. Used in error messages.
func RolesFor(action Action) []string {
	var roles []string
	for _, role := range []string{RoleAdmin, RoleSupplierPM, RoleSupplierFinance, RoleCustomerPM, RoleCustomerFinance, RoleContributor, RoleViewer} {
		if Can(role, action) {
			roles = append(roles, role)
		}
	}
	return roles
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	ActorID string
	Role    string
	Action  Action
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("insufficient permissions: role %q may not %s", e.Role, e.Action)
}
