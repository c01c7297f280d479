// Package workspace holds the pure model of tenant selection and view resolution:
// the closed view set, the tenant-selection policy, the view transition function
// and the single-assignment resolution latch. Nothing here performs I/O.
package workspace

import "strings"

// View is the single screen the shell renders. Exactly one is active at a time.
type View string

const (
	ViewLoading          View = "loading"
	ViewLogin            View = "login"
	ViewHub              View = "hub"
	ViewMarketplace      View = "marketplace"
	ViewOnboarding       View = "onboarding"
	ViewApp              View = "app"
	ViewAdmin            View = "admin"
	ViewBuilderInterview View = "builder-interview"
)

// Views returns the closed view set in a stable order.
func Views() []View {
	return []View{
		ViewLoading, ViewLogin, ViewHub, ViewMarketplace,
		ViewOnboarding, ViewApp, ViewAdmin, ViewBuilderInterview,
	}
}

// Valid reports whether v belongs to the closed view set.
func (v View) Valid() bool {
	for _, known := range Views() {
		if v == known {
			return true
		}
	}
	return false
}

// Terminal reports whether v is a resolution sink (anything but loading).
func (v View) Terminal() bool { return v.Valid() && v != ViewLoading }

// UnsetSentinel marks a tenant metadata field as "unset, do not persist".
const UnsetSentinel = "GLOBAL"

// Membership records that the caller belongs to a tenant. Role is opaque to the engine.
type Membership struct {
	TenantID string `json:"tenantId"`
	Role     string `json:"role,omitempty"`
}

// TenantMetadata is the per-tenant descriptor returned alongside memberships.
type TenantMetadata struct {
	Vertical     string `json:"vertical"`
	Jurisdiction string `json:"jurisdiction"`
	CompanyName  string `json:"companyName"`
}

// Normalized returns a copy with blank and sentinel values cleared.
func (m TenantMetadata) Normalized() TenantMetadata {
	return TenantMetadata{
		Vertical:     NormalizeField(m.Vertical),
		Jurisdiction: NormalizeField(m.Jurisdiction),
		CompanyName:  NormalizeField(m.CompanyName),
	}
}

// NormalizeField trims v and maps the GLOBAL sentinel to "".
func NormalizeField(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, UnsetSentinel) {
		return ""
	}
	return v
}

// HandoffContext carries the one-shot deep-link parameters from the initial URL.
type HandoffContext struct {
	SignInToken         string
	SessionID           string
	PreselectedTenantID string
	RedirectPage        string
}

// Empty reports whether no handoff parameter was present.
func (h HandoffContext) Empty() bool {
	return h == HandoffContext{}
}

// Intent values recorded by the conversational discovery surface.
const (
	IntentPersonal = "personal"
	IntentBusiness = "business"
)

// DiscoveredContext is the intent a conversational surface inferred before sign-in.
type DiscoveredContext struct {
	Vertical     string `json:"vertical"`
	Intent       string `json:"intent"`
	BusinessName string `json:"businessName,omitempty"`
	Location     string `json:"location,omitempty"`
	Subtype      string `json:"subtype,omitempty"`
}

// Outcome is the committed result of a resolution pass.
type Outcome struct {
	View               View   `json:"view"`
	Rule               Rule   `json:"rule"`
	TenantID           string `json:"tenantId,omitempty"`
	OnboardingRequired bool   `json:"onboardingRequired"`
	Page               string `json:"page,omitempty"`
}
