package enrich

import "strings"

// PartialRecord holds the fields one source reported for a query. Every field
// may be absent except Source and Query.
type PartialRecord struct {
	Name            string
	CAS             string
	CompoundID      int
	Formula         string
	MolecularWeight string
	IUPACName       string
	OdorDescription string
	OdorFamily      string
	Appearance      string
	FlashPoint      string
	Solubility      string
	LogP            string
	ShelfLife       string
	EINECS          string
	Synonyms        []string

	Source Source
	Query  Query
}

// Empty reports whether the record carries no discovered data at all.
func (r *PartialRecord) Empty() bool {
	return r == nil || (r.CAS == "" && r.Formula == "" && r.OdorDescription == "" &&
		r.OdorFamily == "" && r.IUPACName == "" && r.MolecularWeight == "" &&
		len(r.Synonyms) == 0)
}

// Candidate is the merged view of the partial records that were judged to
// describe the same substance. Sources lists the contributing providers in
// the order their records arrived.
type Candidate struct {
	Name            string
	CAS             string
	CompoundID      int
	Formula         string
	MolecularWeight string
	IUPACName       string
	OdorDescription string
	OdorFamily      string
	Appearance      string
	FlashPoint      string
	Solubility      string
	LogP            string
	ShelfLife       string
	EINECS          string
	// Type and Tenacity are inferred from the name and odor description
	// rather than reported by a source.
	Type     string
	Tenacity string
	Synonyms []string
	Sources  []Source
}

// ProvenanceNote renders the contributing sources as a short audit line.
func (c *Candidate) ProvenanceNote() string {
	if len(c.Sources) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		names = append(names, string(s))
	}
	return "Enriched from " + strings.Join(names, ", ") + "."
}

// HasSource reports whether the named provider contributed to the candidate.
func (c *Candidate) HasSource(s Source) bool {
	for _, have := range c.Sources {
		if have == s {
			return true
		}
	}
	return false
}
