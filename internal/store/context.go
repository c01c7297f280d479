// Package store holds the per-device persisted state of the shell: a durable
// store that survives sign-out of the browser session and a session-scoped
// store whose values expire. WorkspaceContext is the only way the engine
// touches either; each field has one owning component.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

// Durable field names.
const (
	FieldIdentityToken      = "identity_token"
	FieldRefreshToken       = "refresh_token"
	FieldDisplayName        = "display_name"
	FieldSelectedTenant     = "selected_tenant"
	FieldVertical           = "vertical"
	FieldJurisdiction       = "jurisdiction"
	FieldCompanyName        = "company_name"
	FieldPendingOnboarding  = "pending_onboarding"
	FieldOnboardingComplete = "onboarding_complete"
)

// Session-scoped field names.
const (
	FieldSignInToken       = "signin_token"
	FieldChatSessionID     = "chat_session_id"
	FieldPreselectedTenant = "preselected_tenant"
	FieldRedirectPage      = "redirect_page"
	FieldDiscoveredContext = "discovered_context"
	FieldViewState         = "view_state"
)

// DurableFields lists every durable field in display order.
func DurableFields() []string {
	return []string{
		FieldIdentityToken, FieldRefreshToken, FieldDisplayName,
		FieldSelectedTenant, FieldVertical, FieldJurisdiction, FieldCompanyName,
		FieldPendingOnboarding, FieldOnboardingComplete,
	}
}

// SessionFields lists every session-scoped field in display order.
func SessionFields() []string {
	return []string{
		FieldSignInToken, FieldChatSessionID, FieldPreselectedTenant,
		FieldRedirectPage, FieldDiscoveredContext, FieldViewState,
	}
}

const (
	scopeDurable = "local"
	scopeSession = "session"
	flagSet      = "true"
)

// WorkspaceContext binds one device to its durable and session stores.
type WorkspaceContext struct {
	deviceID   string
	durable    ports.KVStore
	session    ports.KVStore
	sessionTTL time.Duration
}

// NewWorkspaceContext creates a context for deviceID. A non-positive
// sessionTTL means session values never expire.
func NewWorkspaceContext(deviceID string, durable, session ports.KVStore, sessionTTL time.Duration) *WorkspaceContext {
	return &WorkspaceContext{
		deviceID:   deviceID,
		durable:    durable,
		session:    session,
		sessionTTL: sessionTTL,
	}
}

// DeviceID returns the device this context is bound to.
func (c *WorkspaceContext) DeviceID() string { return c.deviceID }

func (c *WorkspaceContext) durableKey(field string) string {
	return scopeDurable + ":" + c.deviceID + ":" + field
}

func (c *WorkspaceContext) sessionKey(field string) string {
	return scopeSession + ":" + c.deviceID + ":" + field
}

func (c *WorkspaceContext) getDurable(ctx context.Context, field string) (string, error) {
	v, _, err := c.durable.Get(ctx, c.durableKey(field))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	return v, nil
}

func (c *WorkspaceContext) getSession(ctx context.Context, field string) (string, error) {
	v, _, err := c.session.Get(ctx, c.sessionKey(field))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	return v, nil
}

// setDurable writes value, or deletes the field when value is empty.
func (c *WorkspaceContext) setDurable(ctx context.Context, field, value string) error {
	var err error
	if value == "" {
		err = c.durable.Delete(ctx, c.durableKey(field))
	} else {
		err = c.durable.Set(ctx, c.durableKey(field), value, 0)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return nil
}

func (c *WorkspaceContext) setSession(ctx context.Context, field, value string) error {
	var err error
	if value == "" {
		err = c.session.Delete(ctx, c.sessionKey(field))
	} else {
		err = c.session.Set(ctx, c.sessionKey(field), value, c.sessionTTL)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return nil
}

func (c *WorkspaceContext) deleteDurable(ctx context.Context, fields ...string) error {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, c.durableKey(f))
	}
	if err := c.durable.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("delete %s: %w", strings.Join(fields, ","), err)
	}
	return nil
}

func (c *WorkspaceContext) deleteSession(ctx context.Context, fields ...string) error {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, c.sessionKey(f))
	}
	if err := c.session.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("delete %s: %w", strings.Join(fields, ","), err)
	}
	return nil
}

func flag(v bool) string {
	if v {
		return flagSet
	}
	return ""
}

// Identity fields, owned by the auth watcher.

func (c *WorkspaceContext) IdentityToken(ctx context.Context) (string, error) {
	return c.getDurable(ctx, FieldIdentityToken)
}

func (c *WorkspaceContext) RefreshToken(ctx context.Context) (string, error) {
	return c.getDurable(ctx, FieldRefreshToken)
}

func (c *WorkspaceContext) DisplayName(ctx context.Context) (string, error) {
	return c.getDurable(ctx, FieldDisplayName)
}

// SaveIdentity persists a freshly issued identity token. An empty
// refreshToken keeps the stored one; an empty displayName is left untouched.
func (c *WorkspaceContext) SaveIdentity(ctx context.Context, identityToken, refreshToken, displayName string) error {
	if identityToken == "" {
		return apperrors.ValidationField(FieldIdentityToken, "identity token is required")
	}
	if err := c.setDurable(ctx, FieldIdentityToken, identityToken); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := c.setDurable(ctx, FieldRefreshToken, refreshToken); err != nil {
			return err
		}
	}
	if displayName != "" {
		return c.setDurable(ctx, FieldDisplayName, displayName)
	}
	return nil
}

// ClearIdentity tears down the signed-in state.
func (c *WorkspaceContext) ClearIdentity(ctx context.Context) error {
	return c.deleteDurable(ctx, FieldIdentityToken, FieldRefreshToken, FieldDisplayName)
}

// Handoff markers, owned by the handoff parser.

func (c *WorkspaceContext) SignInToken(ctx context.Context) (string, error) {
	return c.getSession(ctx, FieldSignInToken)
}

func (c *WorkspaceContext) SetSignInToken(ctx context.Context, token string) error {
	return c.setSession(ctx, FieldSignInToken, token)
}

func (c *WorkspaceContext) ClearSignInToken(ctx context.Context) error {
	return c.deleteSession(ctx, FieldSignInToken)
}

func (c *WorkspaceContext) ChatSessionID(ctx context.Context) (string, error) {
	return c.getSession(ctx, FieldChatSessionID)
}

func (c *WorkspaceContext) SetChatSessionID(ctx context.Context, sid string) error {
	return c.setSession(ctx, FieldChatSessionID, sid)
}

// SetPreselectedTenant records a deep-linked tenant both as a one-shot
// session marker and as the durable selection.
func (c *WorkspaceContext) SetPreselectedTenant(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return nil
	}
	if err := c.setSession(ctx, FieldPreselectedTenant, tenantID); err != nil {
		return err
	}
	return c.setDurable(ctx, FieldSelectedTenant, tenantID)
}

func (c *WorkspaceContext) SetRedirectPage(ctx context.Context, page string) error {
	return c.setSession(ctx, FieldRedirectPage, page)
}

// ConsumeHandoffMarkers drops the one-shot tenant and page markers.
func (c *WorkspaceContext) ConsumeHandoffMarkers(ctx context.Context) error {
	return c.deleteSession(ctx, FieldPreselectedTenant, FieldRedirectPage)
}

// Tenant selection, owned by the membership resolver.

func (c *WorkspaceContext) SelectedTenant(ctx context.Context) (string, error) {
	return c.getDurable(ctx, FieldSelectedTenant)
}

// SaveSelection persists tenantID and whichever metadata fields are set.
// Blank and GLOBAL values are skipped, leaving the stored value in place.
func (c *WorkspaceContext) SaveSelection(ctx context.Context, tenantID string, meta workspace.TenantMetadata) error {
	if tenantID == "" {
		return apperrors.ValidationField(FieldSelectedTenant, "tenant id is required")
	}
	if err := c.setDurable(ctx, FieldSelectedTenant, tenantID); err != nil {
		return err
	}
	meta = meta.Normalized()
	for field, value := range map[string]string{
		FieldVertical:     meta.Vertical,
		FieldJurisdiction: meta.Jurisdiction,
		FieldCompanyName:  meta.CompanyName,
	} {
		if value == "" {
			continue
		}
		if err := c.setDurable(ctx, field, value); err != nil {
			return err
		}
	}
	return nil
}

// Metadata returns the persisted metadata of the selected tenant.
func (c *WorkspaceContext) Metadata(ctx context.Context) (workspace.TenantMetadata, error) {
	var m workspace.TenantMetadata
	var err error
	if m.Vertical, err = c.getDurable(ctx, FieldVertical); err != nil {
		return m, err
	}
	if m.Jurisdiction, err = c.getDurable(ctx, FieldJurisdiction); err != nil {
		return m, err
	}
	if m.CompanyName, err = c.getDurable(ctx, FieldCompanyName); err != nil {
		return m, err
	}
	return m, nil
}

// Discovered context, owned by the auto-provisioner.

// DiscoveredContext returns the stored discovery blob. A present but
// malformed blob yields a validation error.
func (c *WorkspaceContext) DiscoveredContext(ctx context.Context) (workspace.DiscoveredContext, bool, error) {
	raw, err := c.getSession(ctx, FieldDiscoveredContext)
	if err != nil || raw == "" {
		return workspace.DiscoveredContext{}, false, err
	}
	var dc workspace.DiscoveredContext
	if jsonErr := json.Unmarshal([]byte(raw), &dc); jsonErr != nil {
		return workspace.DiscoveredContext{}, true, apperrors.Wrap(jsonErr, apperrors.ErrCodeValidation, "malformed discovered context")
	}
	return dc, true, nil
}

func (c *WorkspaceContext) SetDiscoveredContext(ctx context.Context, dc workspace.DiscoveredContext) error {
	raw, err := json.Marshal(dc)
	if err != nil {
		return fmt.Errorf("encode discovered context: %w", err)
	}
	return c.setSession(ctx, FieldDiscoveredContext, string(raw))
}

func (c *WorkspaceContext) ClearDiscoveredContext(ctx context.Context) error {
	return c.deleteSession(ctx, FieldDiscoveredContext)
}

// Onboarding flags.

func (c *WorkspaceContext) PendingOnboarding(ctx context.Context) (bool, error) {
	v, err := c.getDurable(ctx, FieldPendingOnboarding)
	return v == flagSet, err
}

func (c *WorkspaceContext) SetPendingOnboarding(ctx context.Context, pending bool) error {
	return c.setDurable(ctx, FieldPendingOnboarding, flag(pending))
}

func (c *WorkspaceContext) OnboardingComplete(ctx context.Context) (bool, error) {
	v, err := c.getDurable(ctx, FieldOnboardingComplete)
	return v == flagSet, err
}

// CompleteOnboarding clears the pending flag and records completion.
func (c *WorkspaceContext) CompleteOnboarding(ctx context.Context) error {
	if err := c.setDurable(ctx, FieldOnboardingComplete, flagSet); err != nil {
		return err
	}
	return c.setDurable(ctx, FieldPendingOnboarding, "")
}

// View state, owned by the engine.

// ViewState returns the last committed view for this device.
func (c *WorkspaceContext) ViewState(ctx context.Context) (workspace.Outcome, bool, error) {
	raw, err := c.getSession(ctx, FieldViewState)
	if err != nil || raw == "" {
		return workspace.Outcome{}, false, err
	}
	var o workspace.Outcome
	if jsonErr := json.Unmarshal([]byte(raw), &o); jsonErr != nil || !o.View.Valid() {
		return workspace.Outcome{}, false, nil
	}
	return o, true, nil
}

func (c *WorkspaceContext) SaveViewState(ctx context.Context, o workspace.Outcome) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode view state: %w", err)
	}
	return c.setSession(ctx, FieldViewState, string(raw))
}

// Snapshot is every field read once, so a resolution pass evaluates the
// policy against one consistent value.
type Snapshot struct {
	IdentityToken      string
	RefreshToken       string
	DisplayName        string
	SelectedTenant     string
	Metadata           workspace.TenantMetadata
	PendingOnboarding  bool
	OnboardingComplete bool

	SignInToken          string
	ChatSessionID        string
	PreselectedTenant    string
	RedirectPage         string
	HasDiscoveredContext bool
}

// Snapshot reads every durable and session field.
func (c *WorkspaceContext) Snapshot(ctx context.Context) (Snapshot, error) {
	fields, err := c.Dump(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		IdentityToken:        fields[FieldIdentityToken],
		RefreshToken:         fields[FieldRefreshToken],
		DisplayName:          fields[FieldDisplayName],
		SelectedTenant:       fields[FieldSelectedTenant],
		PendingOnboarding:    fields[FieldPendingOnboarding] == flagSet,
		OnboardingComplete:   fields[FieldOnboardingComplete] == flagSet,
		SignInToken:          fields[FieldSignInToken],
		ChatSessionID:        fields[FieldChatSessionID],
		PreselectedTenant:    fields[FieldPreselectedTenant],
		RedirectPage:         fields[FieldRedirectPage],
		HasDiscoveredContext: fields[FieldDiscoveredContext] != "",
	}
	snap.Metadata = workspace.TenantMetadata{
		Vertical:     fields[FieldVertical],
		Jurisdiction: fields[FieldJurisdiction],
		CompanyName:  fields[FieldCompanyName],
	}
	return snap, nil
}

// Dump returns every present field keyed by field name.
func (c *WorkspaceContext) Dump(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	for _, f := range DurableFields() {
		v, err := c.getDurable(ctx, f)
		if err != nil {
			return nil, err
		}
		if v != "" {
			out[f] = v
		}
	}
	for _, f := range SessionFields() {
		v, err := c.getSession(ctx, f)
		if err != nil {
			return nil, err
		}
		if v != "" {
			out[f] = v
		}
	}
	return out, nil
}

// Clear deletes every field of this device from both stores.
func (c *WorkspaceContext) Clear(ctx context.Context) error {
	if err := c.deleteDurable(ctx, DurableFields()...); err != nil {
		return err
	}
	return c.deleteSession(ctx, SessionFields()...)
}

// Factory builds WorkspaceContexts that share the same pair of stores.
type Factory struct {
	Durable    ports.KVStore
	Session    ports.KVStore
	SessionTTL time.Duration
}

// For returns the context for deviceID.
func (f Factory) For(deviceID string) *WorkspaceContext {
	return NewWorkspaceContext(deviceID, f.Durable, f.Session, f.SessionTTL)
}
