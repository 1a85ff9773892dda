// Package enrich implements the ingredient enrichment pipeline: it queries
// the two external data sources through a per-source rate limiter and a
// TTL response cache, reconciles their partial records by fuzzy identity
// matching, and merges the survivors into upsert candidates that never
// clobber user-entered data.
package enrich

import "context"

// Source names an external data provider.
type Source string

const (
	// SourcePubChem is the chemical-properties provider. It is authoritative
	// for registry numbers, formulas, molecular weights, and IUPAC names.
	SourcePubChem Source = "pubchem"

	// SourceGoodScents is the odor-profile provider. It is authoritative for
	// odor descriptions, appearance, flash point, EINECS, and shelf life.
	SourceGoodScents Source = "goodscents"
)

// SourceAdapter fetches and parses one external source into a PartialRecord.
// Fetch returns ErrNoMatch when the source answered but holds nothing for the
// query, and a *SourceError when the source could not be consulted at all.
type SourceAdapter interface {
	Source() Source
	Fetch(ctx context.Context, q Query) (*PartialRecord, error)
}
