// Package mocks provides gomock implementations of the engine's ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	api := mocks.NewMockWorkspaceAPI(ctrl)
//	api.EXPECT().FetchMemberships(gomock.Any(), "token").Return(ports.Memberships{}, nil)
package mocks

// Generate mock for WorkspaceAPI interface from internal/ports package.
// This creates MockWorkspaceAPI with methods for all WorkspaceAPI interface methods:
// FetchMemberships, ClaimTenant, CreateWorkspace
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=workspace_api_mock.go github.com/tenantdesk/workspace-shell/internal/ports WorkspaceAPI

// Generate mock for IdentityProvider interface from internal/ports package.
// This creates MockIdentityProvider with methods for all IdentityProvider interface methods:
// Begin, Exchange, ExchangeSignInToken, Refresh
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/tenantdesk/workspace-shell/internal/ports IdentityProvider

// Generate mock for KVStore interface from internal/ports package.
// This creates MockKVStore with methods for all KVStore interface methods:
// Get, Set, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=kv_store_mock.go github.com/tenantdesk/workspace-shell/internal/ports KVStore

// Generate mock for AuthStateBus interface from internal/ports package.
// This creates MockAuthStateBus with methods for all AuthStateBus interface methods:
// Subscribe, Publish
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_state_bus_mock.go github.com/tenantdesk/workspace-shell/internal/ports AuthStateBus
