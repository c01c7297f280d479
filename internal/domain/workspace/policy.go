package workspace

import "strings"

// Rule names the branch that produced an outcome. It is logged and tagged on metrics.
type Rule string

// Tenant-selection policy branches, in priority order.
const (
	RulePreselectedTenant Rule = "preselected_tenant"
	RuleRedirectFallback  Rule = "preselected_missing_redirect"
	RuleProvision         Rule = "provision_discovered"
	RuleNoMemberships     Rule = "no_memberships"
	RulePendingOnboarding Rule = "pending_onboarding"
	RuleRedirectPage      Rule = "redirect_page"
	RulePersistedTenant   Rule = "persisted_tenant"
	RuleSingleMembership  Rule = "single_membership"
	RuleWorkspacePicker   Rule = "workspace_picker"
)

// Outcomes decided outside the policy.
const (
	RuleNoSession       Rule = "no_session"
	RuleUnauthorized    Rule = "unauthorized"
	RuleFetchFailed     Rule = "fetch_failed"
	RuleProvisioned     Rule = "provisioned"
	RuleProvisionFailed Rule = "provision_failed"
	RuleBootTimeout     Rule = "boot_timeout"
	RuleUserAction      Rule = "user_action"
)

// SelectionInput is everything the tenant-selection policy looks at.
type SelectionInput struct {
	Memberships          []Membership
	Tenants              map[string]TenantMetadata
	PreselectedTenantID  string
	RedirectPage         string
	PendingOnboarding    bool
	PersistedTenantID    string
	HasDiscoveredContext bool
}

// Selection is the policy decision. When Provision is set the caller must
// attempt auto-provisioning and fall back to View (marketplace) on failure.
type Selection struct {
	View               View
	Rule               Rule
	TenantID           string
	Metadata           TenantMetadata
	PersistSelection   bool
	OnboardingRequired bool
	Provision          bool
}

// SelectTenant applies the ordered tenant-selection policy. It is a pure
// function of its input; the branch order is significant for returning users.
func SelectTenant(in SelectionInput) Selection {
	if in.PreselectedTenantID != "" {
		if m, ok := findMembership(in.Memberships, in.PreselectedTenantID); ok {
			return selectMembership(in, m, RulePreselectedTenant)
		}
		if in.RedirectPage != "" && len(in.Memberships) > 0 {
			return selectMembership(in, in.Memberships[0], RuleRedirectFallback)
		}
	}

	if len(in.Memberships) == 0 {
		if in.HasDiscoveredContext {
			return Selection{View: ViewMarketplace, Rule: RuleProvision, Provision: true}
		}
		return Selection{View: ViewMarketplace, Rule: RuleNoMemberships}
	}

	if in.PendingOnboarding {
		return Selection{
			View:               ViewApp,
			Rule:               RulePendingOnboarding,
			TenantID:           in.PersistedTenantID,
			OnboardingRequired: true,
		}
	}

	if in.RedirectPage != "" {
		target := in.Memberships[0]
		for _, m := range in.Memberships {
			if strings.EqualFold(NormalizeField(in.Tenants[m.TenantID].Vertical), VerticalInvestor) {
				target = m
				break
			}
		}
		return selectMembership(in, target, RuleRedirectPage)
	}

	if in.PersistedTenantID != "" {
		return Selection{View: ViewApp, Rule: RulePersistedTenant, TenantID: in.PersistedTenantID}
	}

	if len(in.Memberships) == 1 {
		return selectMembership(in, in.Memberships[0], RuleSingleMembership)
	}

	return Selection{View: ViewHub, Rule: RuleWorkspacePicker}
}

func selectMembership(in SelectionInput, m Membership, rule Rule) Selection {
	return Selection{
		View:             ViewApp,
		Rule:             rule,
		TenantID:         m.TenantID,
		Metadata:         in.Tenants[m.TenantID].Normalized(),
		PersistSelection: true,
	}
}

func findMembership(ms []Membership, tenantID string) (Membership, bool) {
	for _, m := range ms {
		if m.TenantID == tenantID {
			return m, true
		}
	}
	return Membership{}, false
}

// HasMembership reports whether tenantID appears in ms.
func HasMembership(ms []Membership, tenantID string) bool {
	_, ok := findMembership(ms, tenantID)
	return ok
}
