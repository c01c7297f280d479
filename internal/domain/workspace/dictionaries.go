package workspace

import "strings"

// Canonical verticals understood by the dashboards.
const (
	VerticalAuto       = "auto"
	VerticalRealEstate = "real_estate"
	VerticalInvestor   = "investor"
	VerticalVault      = "vault"
)

var verticalAliases = map[string]string{
	"auto":        VerticalAuto,
	"automotive":  VerticalAuto,
	"dealership":  VerticalAuto,
	"cars":        VerticalAuto,
	"real_estate": VerticalRealEstate,
	"real-estate": VerticalRealEstate,
	"realestate":  VerticalRealEstate,
	"real estate": VerticalRealEstate,
	"realty":      VerticalRealEstate,
	"property":    VerticalRealEstate,
	"investor":    VerticalInvestor,
	"investment":  VerticalInvestor,
	"fund":        VerticalInvestor,
	"vc":          VerticalInvestor,
	"vault":       VerticalVault,
	"personal":    VerticalVault,
}

// CanonicalVertical maps a free-form vertical onto the canonical set.
// Unknown values come back lower-cased and trimmed.
func CanonicalVertical(v string) string {
	key := strings.ToLower(strings.TrimSpace(v))
	if canonical, ok := verticalAliases[key]; ok {
		return canonical
	}
	return key
}

// Logical redirect targets carried by the page deep-link parameter.
const (
	PageInvestorDataRoom = "investor-data-room"
	PageDeveloperSandbox = "developer-sandbox"
	PagePersonalVault    = "personal-vault"
	PageAdmin            = "admin"
	PageBuilderInterview = "builder-interview"
)

var pageAliases = map[string]string{
	"dataroom":  PageInvestorDataRoom,
	"data-room": PageInvestorDataRoom,
	"sandbox":   PageDeveloperSandbox,
	"dev":       PageDeveloperSandbox,
	"vault":     PagePersonalVault,
	"admin":     PageAdmin,
	"builder":   PageBuilderInterview,
}

// MapRedirectPage translates a page parameter; unmapped values pass through verbatim.
func MapRedirectPage(page string) string {
	if mapped, ok := pageAliases[page]; ok {
		return mapped
	}
	return page
}
