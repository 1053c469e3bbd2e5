package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	cases := []struct {
		role   string
		action Action
		want   bool
	}{
		{RoleAdmin, ActionBaselineReset, true},
		{RoleSupplierPM, ActionBaselineReset, false},
		{RoleSupplierPM, ActionBaselineSignSupplier, true},
		{RoleSupplierPM, ActionBaselineSignCustomer, false},
		{RoleCustomerPM, ActionBaselineSignCustomer, true},
		{RoleCustomerPM, ActionPlanCommit, false},
		{RoleSupplierPM, ActionPlanCommit, true},
		{RoleViewer, ActionEdit, false},
		{"unknown", ActionEdit, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Can(tc.role, tc.action), "%s %s", tc.role, tc.action)
	}
}

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission("u1", RoleAdmin, ActionPlanCommit))

	err := CheckPermission("u2", RoleContributor, ActionPlanCommit)
	var denied *PermissionDeniedError
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, "u2", denied.ActorID)
	assert.Equal(t, ActionPlanCommit, denied.Action)
}

func TestRolesFor(t *testing.T) {
	assert.Equal(t, []string{RoleAdmin, RoleSupplierPM}, RolesFor(ActionPlanCommit))
	assert.True(t, IsAdmin(RoleAdmin))
	assert.False(t, IsAdmin(RoleSupplierPM))
}
