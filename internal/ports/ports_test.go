package ports_test

import (
	"testing"

	"github.com/tenantdesk/workspace-shell/internal/mocks"
	authmocks "github.com/tenantdesk/workspace-shell/internal/mocks/auth"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityProvider = (*authmocks.MockIdentityProvider)(nil)
	var _ ports.IdentityProvider = (*mocks.MockIdentityProvider)(nil)
	var _ ports.WorkspaceAPI = (*mocks.MockWorkspaceAPI)(nil)
	var _ ports.KVStore = (*mocks.MockKVStore)(nil)
	var _ ports.AuthStateBus = (*mocks.MockAuthStateBus)(nil)
}
