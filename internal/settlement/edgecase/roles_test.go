package edgecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleHierarchy(t *testing.T) {
	require.True(t, RoleAdmin.AtLeast(RoleAdmin))
	require.True(t, RoleSuperAdmin.AtLeast(RoleAdmin))
	require.False(t, RoleSupport.AtLeast(RoleAdmin))
	require.True(t, RoleSupport.AtLeast(RoleSupport))
}

func TestUnknownRoleNeverPasses(t *testing.T) {
	require.False(t, Role("root").AtLeast(RoleSupport))
	require.False(t, RoleAdmin.AtLeast(Role("root")))
}
