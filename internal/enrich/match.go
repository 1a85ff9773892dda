package enrich

import (
	"regexp"
	"strings"

	"github.com/xrash/smetrics"

	"essentia/models"
)

// CASPattern matches a chemical registry number anywhere in raw text.
var CASPattern = regexp.MustCompile(`\b(\d{2,7}-\d{2}-\d)\b`)

// identityThreshold is the minimum blended name-similarity score required to
// declare two records the same substance when no registry numbers decide it.
// Scores at or below the threshold fail closed: a wrong merge corrupts the
// regulatory cross-sync irreversibly, a missed merge only loses convenience.
const identityThreshold = 0.85

// SameIdentity decides whether two partial records describe one substance.
// Registry numbers take absolute precedence: when both records carry one,
// equality decides regardless of how similar the names look.
func SameIdentity(a, b *PartialRecord) bool {
	if a == nil || b == nil {
		return false
	}
	return sameIdentity(a.CAS, a.Name, b.CAS, b.Name)
}

// MatchesIngredient applies the identity rule between a stored ingredient and
// a partial record.
func MatchesIngredient(ing *models.Ingredient, rec *PartialRecord) bool {
	if ing == nil || rec == nil {
		return false
	}
	return sameIdentity(ing.CAS, ing.Name, rec.CAS, rec.Name)
}

func sameIdentity(casA, nameA, casB, nameB string) bool {
	casA = strings.TrimSpace(casA)
	casB = strings.TrimSpace(casB)
	if casA != "" && casB != "" {
		return casA == casB
	}
	return NameSimilarity(nameA, nameB) > identityThreshold
}

// NameSimilarity scores two ingredient names in [0, 1] by blending the
// Jaro-Winkler distance of the normalized strings with their token-set
// overlap. Word order therefore matters less than shared vocabulary.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	jw := smetrics.JaroWinkler(na, nb, 0.7, 4)
	return 0.6*jw + 0.4*tokenOverlap(na, nb)
}

// tokenOverlap is the Jaccard index of the two names' token sets.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(name string) map[string]struct{} {
	tokens := strings.Fields(name)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// ExtractCAS returns the first registry number found in raw text.
func ExtractCAS(text string) string {
	match := CASPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
