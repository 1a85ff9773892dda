package enrich

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	applog "essentia/internal/log"
)

// Ingredients is the persistence surface the pipeline writes through. Upsert
// creates the ingredient when the owner has no row for the name, otherwise it
// fills fields that are still empty; overwrite replaces enrichable fields
// even when they already hold data.
type Ingredients interface {
	Upsert(ctx context.Context, ownerID uint, name string, cand *Candidate, overwrite bool) (*UpsertResult, error)
}

// MissingLister is implemented by stores that can enumerate the owner's
// ingredients still lacking enrichment data.
type MissingLister interface {
	ListMissingEnrichment(ctx context.Context, ownerID uint, limit int) ([]string, error)
}

// LimitSyncer propagates regulatory usage limits onto a stored ingredient.
// Synced reports whether a standard matched the ingredient's registry number.
type LimitSyncer interface {
	SyncIngredient(ctx context.Context, ingredientID uint) (synced bool, err error)
}

// UpsertResult reports what persisting a candidate changed.
type UpsertResult struct {
	IngredientID uint
	Created      bool
	// Updated lists the field names that were written.
	Updated []string
	// Conflicts lists fields the candidate disagreed on but did not touch
	// because the stored value was kept.
	Conflicts []string
}

// Changed reports whether the upsert wrote anything.
func (r *UpsertResult) Changed() bool {
	return r != nil && (r.Created || len(r.Updated) > 0)
}

// SearchResult is the outcome of querying the sources without persisting.
type SearchResult struct {
	Query     Query
	Found     bool
	Candidate *Candidate
	// Sources reports per provider whether it produced a record.
	Sources map[Source]bool
	// Ambiguous reports that the sources returned records the matcher
	// refused to merge; Candidate then holds the best-scoring group.
	Ambiguous bool
	// Errors holds per-source failures. A source that answered "not found"
	// is absent from both Errors and the candidate's Sources.
	Errors map[Source]error
}

// EnrichResult is the outcome of a full search-merge-persist cycle.
type EnrichResult struct {
	SearchResult
	Upsert *UpsertResult
	// Synced reports that regulatory limits were propagated after the write.
	Synced bool
}

// ItemResult pairs one bulk item with its outcome. Err is set when the item
// failed outright; a clean miss has Err nil and Result.Found false.
type ItemResult struct {
	Name   string
	Result *EnrichResult
	Err    error
}

// Config assembles an Enricher. Sources and Store are required; Cache,
// Limiter, and Syncer are optional.
type Config struct {
	Sources []SourceAdapter
	Cache   *Cache
	Limiter *Limiter
	Store   Ingredients
	Syncer  LimitSyncer
}

// Enricher coordinates the pipeline: sources are queried concurrently
// through the cache, partial records are merged by identity, and the winning
// candidate is upserted without clobbering user-entered data.
type Enricher struct {
	sources []SourceAdapter
	cache   *Cache
	store   Ingredients
	syncer  LimitSyncer
}

// New validates the config and builds an Enricher.
func New(cfg Config) (*Enricher, error) {
	if len(cfg.Sources) == 0 {
		return nil, errors.New("enrich: at least one source adapter is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("enrich: a store is required")
	}
	return &Enricher{
		sources: cfg.Sources,
		cache:   cfg.Cache,
		store:   cfg.Store,
		syncer:  cfg.Syncer,
	}, nil
}

// Search queries every source for the name and merges the answers into one
// candidate. It returns an error only when the name is unusable or every
// source failed; a name no source knows yields Found false.
func (e *Enricher) Search(ctx context.Context, name string) (*SearchResult, error) {
	q := NewQuery(name)
	if q.IsZero() {
		return nil, fmt.Errorf("enrich: unusable ingredient name %q", name)
	}

	records, srcErrs := e.fetchAll(ctx, q)
	result := &SearchResult{
		Query:   q,
		Sources: make(map[Source]bool, len(e.sources)),
		Errors:  srcErrs,
	}
	for _, adapter := range e.sources {
		result.Sources[adapter.Source()] = false
	}
	for _, rec := range records {
		result.Sources[rec.Source] = true
	}

	if len(records) == 0 {
		if len(srcErrs) == len(e.sources) {
			return nil, fmt.Errorf("enrich: all sources failed for %q: %w", q.Raw, firstError(srcErrs))
		}
		return result, nil
	}

	candidates := Merge(records)
	result.Found = true
	result.Candidate = bestCandidate(q, candidates)
	result.Ambiguous = len(candidates) > 1
	if result.Ambiguous {
		applog.Warn(ctx, "sources disagree on identity",
			"query", q.Raw, "groups", len(candidates))
	}
	return result, nil
}

// Enrich runs Search and persists the candidate for the owner. When the
// write changed anything and the candidate carries a registry number, the
// regulatory limits are synced onto the stored row.
func (e *Enricher) Enrich(ctx context.Context, ownerID uint, name string, overwrite bool) (*EnrichResult, error) {
	search, err := e.Search(ctx, name)
	if err != nil {
		return nil, err
	}

	result := &EnrichResult{SearchResult: *search}
	if !search.Found {
		return result, nil
	}

	upsert, err := e.store.Upsert(ctx, ownerID, name, search.Candidate, overwrite)
	if err != nil {
		return nil, fmt.Errorf("enrich: persist %q: %w", name, err)
	}
	result.Upsert = upsert

	if e.syncer != nil && upsert.Changed() && search.Candidate.CAS != "" {
		synced, err := e.syncer.SyncIngredient(ctx, upsert.IngredientID)
		if err != nil {
			applog.Warn(ctx, "limit sync failed after enrichment",
				"ingredient", name, "cas", search.Candidate.CAS, "error", err)
		} else {
			result.Synced = synced
		}
	}
	return result, nil
}

// BulkEnrich enriches a batch of names. Concurrency is bounded by the source
// count so the per-source rate limiter, not goroutine pressure, paces the
// batch. One item failing never aborts the others; results keep input order.
func (e *Enricher) BulkEnrich(ctx context.Context, ownerID uint, names []string, overwrite bool) []ItemResult {
	results := make([]ItemResult, len(names))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(len(e.sources))

	for i, name := range names {
		g.Go(func() error {
			res, err := e.Enrich(ctx, ownerID, name, overwrite)
			mu.Lock()
			results[i] = ItemResult{Name: name, Result: res, Err: err}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// BulkEnrichMissing enriches every stored ingredient of the owner that still
// lacks a registry number or an odor profile. limit <= 0 takes them all.
func (e *Enricher) BulkEnrichMissing(ctx context.Context, ownerID uint, limit int, overwrite bool) ([]ItemResult, error) {
	lister, ok := e.store.(MissingLister)
	if !ok {
		return nil, errors.New("enrich: store cannot list ingredients missing enrichment")
	}
	names, err := lister.ListMissingEnrichment(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("enrich: list missing: %w", err)
	}
	return e.BulkEnrich(ctx, ownerID, names, overwrite), nil
}

// fetchAll queries every adapter concurrently. A failed source contributes
// an entry to the error map; it never cancels the other lookups.
func (e *Enricher) fetchAll(ctx context.Context, q Query) ([]*PartialRecord, map[Source]error) {
	var (
		mu      sync.Mutex
		records []*PartialRecord
		srcErrs = make(map[Source]error)
	)

	var wg sync.WaitGroup
	for _, adapter := range e.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := e.lookup(ctx, adapter, q)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && rec != nil:
				records = append(records, rec)
			case err != nil && !errors.Is(err, ErrNoMatch):
				srcErrs[adapter.Source()] = err
			}
		}()
	}
	wg.Wait()

	// Deterministic merge input regardless of which source answered first.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Source < records[j].Source
	})
	return records, srcErrs
}

// lookup tries the query's name variants against one adapter, consulting the
// cache before the network. Successes and clean misses are memoized; source
// failures are not, so the next run retries them.
func (e *Enricher) lookup(ctx context.Context, adapter SourceAdapter, q Query) (*PartialRecord, error) {
	source := adapter.Source()

	for _, variant := range q.Variants() {
		if e.cache != nil {
			if rec, found, ok := e.cache.Get(variant, source); ok {
				if found {
					return rec, nil
				}
				continue
			}
		}

		vq := Query{Raw: variant, Normalized: variant, CASHint: q.CASHint}
		rec, err := adapter.Fetch(ctx, vq)
		switch {
		case err == nil:
			if !rec.Empty() {
				if e.cache != nil {
					e.cache.Put(variant, source, rec)
				}
				return rec, nil
			}
			// An empty answer counts as a miss.
		case errors.Is(err, ErrNoMatch):
		default:
			return nil, err
		}
		if e.cache != nil {
			e.cache.Put(variant, source, nil)
		}
	}
	return nil, ErrNoMatch
}

// bestCandidate picks the group whose name scores highest against the query.
func bestCandidate(q Query, candidates []*Candidate) *Candidate {
	best := candidates[0]
	bestScore := -1.0
	for _, cand := range candidates {
		score := NameSimilarity(q.Raw, candidateName(cand))
		if score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

func candidateName(c *Candidate) string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Synonyms) > 0 {
		return c.Synonyms[0]
	}
	return ""
}

func firstError(errs map[Source]error) error {
	var sources []Source
	for s := range errs {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return errs[sources[0]]
}
