package enrich

import "strings"

// Material classes used by the type inference.
const (
	TypeEssentialOil  = "EO"
	TypeAromaChemical = "AC"
	TypeCarrier       = "Carrier"
	TypeSolvent       = "Solvent"
)

// InferType guesses the material class from the name and odor description.
// Naturals and extracts classify as EO, synthetics as AC. Returns "" when
// nothing in the name or description gives the class away.
func InferType(name, profile string) string {
	n := strings.ToLower(name)
	p := strings.ToLower(profile)

	if containsAny(n, "essential oil", " eo ", "oil of", "absolute", "concrete", "resinoid") {
		return TypeEssentialOil
	}
	if containsAny(n, "alcohol", "ethanol", "dpg", "ipm") {
		return TypeSolvent
	}
	if containsAny(n, "fractionated coconut", "jojoba", "carrier") {
		return TypeCarrier
	}
	if containsAny(n, "musk", "aldehyde", "ketone", "ester", "acetate",
		"ionone", "coumarin", "vanillin", "heliotropin") {
		return TypeAromaChemical
	}

	if containsAny(p, "synthetic", "aroma chemical") {
		return TypeAromaChemical
	}
	if containsAny(p, "natural", "botanical") {
		return TypeEssentialOil
	}
	return ""
}

// InferTenacity estimates longevity on skin from the note family the name
// suggests. Only the name is consulted: odor descriptions name too many
// other materials ("bois de rose") to trust. A name outside every family
// yields "".
func InferTenacity(name string) string {
	n := strings.ToLower(name)

	if containsAny(n, "musk", "amber", "sandalwood", "vetiver", "patchouli",
		"oud", "benzoin", "vanilla", "tonka", "labdanum", "cedarwood", "oak", "leather") {
		return "24+ hours"
	}
	if containsAny(n, "lemon", "bergamot", "grapefruit", "mandarin", "lime",
		"eucalyptus", "mint", "basil") {
		return "2-4 hours"
	}
	if containsAny(n, "rose", "jasmine", "ylang", "geranium", "lavender",
		"iris", "violet") {
		return "6-12 hours"
	}
	return ""
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
