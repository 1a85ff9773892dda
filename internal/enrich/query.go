package enrich

import (
	"regexp"
	"strings"
)

var punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Query is the immutable lookup key for one enrichment request.
type Query struct {
	// Raw is the caller-supplied name, trimmed.
	Raw string
	// Normalized is the cache and matching key: case-folded with punctuation
	// collapsed to single spaces.
	Normalized string
	// CASHint optionally carries a registry number supplied by the caller.
	CASHint string
}

// NewQuery normalizes a free-text ingredient name into a Query.
func NewQuery(name string) Query {
	raw := strings.TrimSpace(name)
	return Query{
		Raw:        raw,
		Normalized: NormalizeName(raw),
	}
}

// WithCAS returns a copy of the query carrying a registry-number hint.
func (q Query) WithCAS(cas string) Query {
	q.CASHint = strings.TrimSpace(cas)
	return q
}

// IsZero reports whether the query holds no usable name.
func (q Query) IsZero() bool {
	return q.Normalized == ""
}

// preparation suffixes that external databases often omit from the
// canonical material name.
var preparationSuffixes = []string{
	" essential oil",
	" absolute",
	" resinoid",
	" co2 extract",
	" oil",
}

// Variants lists the search strings to try against a source, most specific
// first. The first variant is always the normalized name itself.
func (q Query) Variants() []string {
	variants := []string{q.Normalized}
	for _, suffix := range preparationSuffixes {
		if base, ok := strings.CutSuffix(q.Normalized, suffix); ok {
			base = strings.TrimSpace(base)
			if base != "" {
				variants = append(variants, base)
			}
			break
		}
	}
	return variants
}

// NormalizeName lowers the case of a name, collapses punctuation and runs of
// whitespace into single spaces, and trims the result.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = punctuationPattern.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
