package lfanalytics

import "strings"

// UARule est une règle de classification par sous-chaîne du User-Agent.
// La première règle qui matche gagne : l'ordre est significatif
// (Chrome avant Safari car les UA Chrome contiennent aussi "Safari").
type UARule struct {
	Name     string
	Contains string
	Excludes []string
}

// UAClassifier regroupe les listes de règles ordonnées pour le navigateur,
// l'OS et le type d'appareil. Les listes sont passées en configuration
// plutôt que codées en dur pour que les tests puissent les énumérer.
type UAClassifier struct {
	Browsers      []UARule
	Systems       []UARule
	Devices       []UARule
	DefaultDevice string
}

// ClientInfo est le résultat de la classification d'un User-Agent.
type ClientInfo struct {
	Browser string
	Os      string
	Device  string
}

func DefaultBrowserRules() []UARule {
	return []UARule{
		{Name: "Chrome", Contains: "Chrome", Excludes: []string{"Edg"}},
		{Name: "Firefox", Contains: "Firefox"},
		{Name: "Safari", Contains: "Safari", Excludes: []string{"Chrome"}},
		{Name: "Edge", Contains: "Edg"},
		{Name: "Internet Explorer", Contains: "MSIE"},
		{Name: "Internet Explorer", Contains: "Trident"},
	}
}

func DefaultOsRules() []UARule {
	return []UARule{
		{Name: "Windows", Contains: "Windows"},
		{Name: "MacOS", Contains: "Mac"},
		{Name: "Linux", Contains: "Linux", Excludes: []string{"Android"}},
		{Name: "Android", Contains: "Android"},
		{Name: "iOS", Contains: "iPhone"},
		{Name: "iOS", Contains: "iPad"},
	}
}

func DefaultDeviceRules() []UARule {
	return []UARule{
		{Name: "Mobile", Contains: "Mobile"},
		{Name: "Tablet", Contains: "Tablet"},
	}
}

// NewUAClassifier retourne le classifieur avec les règles par défaut.
func NewUAClassifier() *UAClassifier {
	return &UAClassifier{
		Browsers:      DefaultBrowserRules(),
		Systems:       DefaultOsRules(),
		Devices:       DefaultDeviceRules(),
		DefaultDevice: "Desktop",
	}
}

func (r UARule) matches(userAgent string) bool {
	if !strings.Contains(userAgent, r.Contains) {
		return false
	}
	for _, excl := range r.Excludes {
		if strings.Contains(userAgent, excl) {
			return false
		}
	}
	return true
}

func applyRules(rules []UARule, userAgent, fallback string) string {
	for _, rule := range rules {
		if rule.matches(userAgent) {
			return rule.Name
		}
	}
	return fallback
}

// Classify applique les trois listes de règles au User-Agent brut.
func (cl *UAClassifier) Classify(userAgent string) ClientInfo {
	return ClientInfo{
		Browser: applyRules(cl.Browsers, userAgent, "Unknown"),
		Os:      applyRules(cl.Systems, userAgent, "Unknown"),
		Device:  applyRules(cl.Devices, userAgent, cl.DefaultDevice),
	}
}
