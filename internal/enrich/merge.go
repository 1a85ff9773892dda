package enrich

import "strings"

// Merge groups the partial records by identity and resolves one candidate per
// group. Grouping is transitive: two records that each match a common third
// are grouped even if they were never compared positive directly.
func Merge(records []*PartialRecord) []*Candidate {
	live := make([]*PartialRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			live = append(live, rec)
		}
	}
	if len(live) == 0 {
		return nil
	}

	parent := make([]int, len(live))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			if SameIdentity(live[i], live[j]) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]*PartialRecord)
	order := []int{}
	for i, rec := range live {
		root := find(i)
		if _, seen := groups[root]; !seen {
			order = append(order, root)
		}
		groups[root] = append(groups[root], rec)
	}

	candidates := make([]*Candidate, 0, len(order))
	for _, root := range order {
		candidates = append(candidates, resolve(groups[root]))
	}
	return candidates
}

// resolve combines one identity group into a candidate, applying the fixed
// per-field source priority: the chemical-properties provider wins the
// registry and structural fields, the odor-profile provider wins the
// sensory and physical ones.
func resolve(group []*PartialRecord) *Candidate {
	c := &Candidate{}

	for _, rec := range group {
		c.Sources = append(c.Sources, rec.Source)
	}

	c.Name = firstValue(group, nil, func(r *PartialRecord) string { return r.Name })

	chem := SourcePubChem
	odor := SourceGoodScents

	c.CAS = firstValue(group, &chem, func(r *PartialRecord) string { return r.CAS })
	c.Formula = firstValue(group, &chem, func(r *PartialRecord) string { return r.Formula })
	c.MolecularWeight = firstValue(group, &chem, func(r *PartialRecord) string { return r.MolecularWeight })
	c.IUPACName = firstValue(group, &chem, func(r *PartialRecord) string { return r.IUPACName })

	c.OdorDescription = firstValue(group, &odor, func(r *PartialRecord) string { return r.OdorDescription })
	c.OdorFamily = firstValue(group, &odor, func(r *PartialRecord) string { return r.OdorFamily })
	c.Appearance = firstValue(group, &odor, func(r *PartialRecord) string { return r.Appearance })
	c.FlashPoint = firstValue(group, &odor, func(r *PartialRecord) string { return r.FlashPoint })
	c.Solubility = firstValue(group, &odor, func(r *PartialRecord) string { return r.Solubility })
	c.LogP = firstValue(group, &odor, func(r *PartialRecord) string { return r.LogP })
	c.ShelfLife = firstValue(group, &odor, func(r *PartialRecord) string { return r.ShelfLife })
	c.EINECS = firstValue(group, &odor, func(r *PartialRecord) string { return r.EINECS })

	for _, rec := range group {
		if rec.Source == chem && rec.CompoundID != 0 {
			c.CompoundID = rec.CompoundID
			break
		}
	}
	if c.CompoundID == 0 {
		for _, rec := range group {
			if rec.CompoundID != 0 {
				c.CompoundID = rec.CompoundID
				break
			}
		}
	}

	c.Type = InferType(c.Name, c.OdorDescription)
	c.Tenacity = InferTenacity(c.Name)

	c.Synonyms = mergeSynonyms(group, c.Name)
	return c
}

// firstValue resolves a field, preferring records from the given source when
// one is set, then falling back to input order.
func firstValue(group []*PartialRecord, preferred *Source, field func(*PartialRecord) string) string {
	if preferred != nil {
		for _, rec := range group {
			if rec.Source == *preferred {
				if value := strings.TrimSpace(field(rec)); value != "" {
					return value
				}
			}
		}
	}
	for _, rec := range group {
		if value := strings.TrimSpace(field(rec)); value != "" {
			return value
		}
	}
	return ""
}

const maxSynonyms = 50

func mergeSynonyms(group []*PartialRecord, canonical string) []string {
	canonicalKey := NormalizeName(canonical)
	seen := make(map[string]struct{})
	merged := []string{}
	for _, rec := range group {
		for _, synonym := range rec.Synonyms {
			synonym = strings.TrimSpace(synonym)
			if synonym == "" {
				continue
			}
			key := NormalizeName(synonym)
			if key == "" || key == canonicalKey {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, synonym)
			if len(merged) == maxSynonyms {
				return merged
			}
		}
	}
	return merged
}
