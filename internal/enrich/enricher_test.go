package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubAdapter serves canned records keyed by the exact search string.
type stubAdapter struct {
	source  Source
	records map[string]*PartialRecord
	err     error
	calls   atomic.Int32
}

func (s *stubAdapter) Source() Source { return s.source }

func (s *stubAdapter) Fetch(ctx context.Context, q Query) (*PartialRecord, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[q.Raw]
	if !ok {
		return nil, ErrNoMatch
	}
	out := *rec
	out.Source = s.source
	out.Query = q
	return &out, nil
}

// memStore records upserts and returns a scripted result.
type memStore struct {
	mu      sync.Mutex
	upserts []memUpsert
	nextID  uint
	err     error
	missing []string
}

func (m *memStore) ListMissingEnrichment(ctx context.Context, ownerID uint, limit int) ([]string, error) {
	if limit > 0 && limit < len(m.missing) {
		return m.missing[:limit], nil
	}
	return m.missing, nil
}

type memUpsert struct {
	ownerID   uint
	name      string
	cand      *Candidate
	overwrite bool
}

func (m *memStore) Upsert(ctx context.Context, ownerID uint, name string, cand *Candidate, overwrite bool) (*UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.upserts = append(m.upserts, memUpsert{ownerID, name, cand, overwrite})
	m.nextID++
	return &UpsertResult{IngredientID: m.nextID, Created: true}, nil
}

type stubSyncer struct {
	mu     sync.Mutex
	called []uint
	synced bool
}

func (s *stubSyncer) SyncIngredient(ctx context.Context, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called = append(s.called, id)
	return s.synced, nil
}

func linaloolChemRecord() *PartialRecord {
	return &PartialRecord{
		Name:      "Linalool",
		CAS:       "78-70-6",
		Formula:   "C10H18O",
		IUPACName: "3,7-dimethylocta-1,6-dien-3-ol",
	}
}

func linaloolOdorRecord() *PartialRecord {
	return &PartialRecord{
		Name:            "linalool",
		CAS:             "78-70-6",
		OdorDescription: "citrus floral sweet",
		OdorFamily:      "floral",
	}
}

func newTestEnricher(t *testing.T, cfg Config) *Enricher {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = &memStore{}
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("new enricher: %v", err)
	}
	return e
}

func TestSearchMergesBothSources(t *testing.T) {
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{"linalool": linaloolChemRecord()}}
	odor := &stubAdapter{source: SourceGoodScents, records: map[string]*PartialRecord{"linalool": linaloolOdorRecord()}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem, odor}})

	result, err := e.Search(context.Background(), "Linalool")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !result.Found || result.Ambiguous {
		t.Fatalf("found=%v ambiguous=%v", result.Found, result.Ambiguous)
	}
	c := result.Candidate
	if c.Formula != "C10H18O" || c.OdorFamily != "floral" {
		t.Fatalf("merge incomplete: %+v", c)
	}
	if !c.HasSource(SourcePubChem) || !c.HasSource(SourceGoodScents) {
		t.Fatalf("sources = %v", c.Sources)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %v", result.Errors)
	}
	if !result.Sources[SourcePubChem] || !result.Sources[SourceGoodScents] {
		t.Fatalf("source hits = %v", result.Sources)
	}
}

func TestSearchAmbiguousPicksClosestName(t *testing.T) {
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{
		"linalool": {Name: "Linalool", CAS: "78-70-6"},
	}}
	odor := &stubAdapter{source: SourceGoodScents, records: map[string]*PartialRecord{
		"linalool": {Name: "linalool oxide", CAS: "1365-19-1"},
	}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem, odor}})

	result, err := e.Search(context.Background(), "linalool")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !result.Ambiguous {
		t.Fatal("differing CAS numbers should flag ambiguity")
	}
	if result.Candidate.CAS != "78-70-6" {
		t.Fatalf("picked %q, want the group closest to the query name", result.Candidate.Name)
	}
}

func TestSearchUsesCache(t *testing.T) {
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{"linalool": linaloolChemRecord()}}
	e := newTestEnricher(t, Config{
		Sources: []SourceAdapter{chem},
		Cache:   NewCache(time.Hour),
	})

	for i := 0; i < 3; i++ {
		if _, err := e.Search(context.Background(), "Linalool"); err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
	}
	if got := chem.calls.Load(); got != 1 {
		t.Fatalf("source called %d times, want 1 with a warm cache", got)
	}
}

func TestSearchCachesNegatives(t *testing.T) {
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{}}
	e := newTestEnricher(t, Config{
		Sources: []SourceAdapter{chem},
		Cache:   NewCache(time.Hour),
	})

	for i := 0; i < 3; i++ {
		result, err := e.Search(context.Background(), "unobtainium")
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if result.Found {
			t.Fatal("unexpected match")
		}
	}
	if got := chem.calls.Load(); got != 1 {
		t.Fatalf("source called %d times, want 1; misses must be cached too", got)
	}
}

func TestSearchFallsBackToNameVariant(t *testing.T) {
	// The source only knows the stripped name, not the full preparation.
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{
		"bergamot": {Name: "Bergamot", CAS: "8007-75-8"},
	}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem}})

	result, err := e.Search(context.Background(), "Bergamot Essential Oil")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !result.Found || result.Candidate.CAS != "8007-75-8" {
		t.Fatalf("variant fallback failed: %+v", result)
	}
	if got := chem.calls.Load(); got != 2 {
		t.Fatalf("source called %d times, want full name then stripped variant", got)
	}
}

func TestSearchSurvivesOneSourceFailing(t *testing.T) {
	chem := &stubAdapter{source: SourcePubChem, err: &SourceError{Source: SourcePubChem, Transient: true, Err: errors.New("down")}}
	odor := &stubAdapter{source: SourceGoodScents, records: map[string]*PartialRecord{"linalool": linaloolOdorRecord()}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem, odor}})

	result, err := e.Search(context.Background(), "linalool")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !result.Found {
		t.Fatal("the healthy source should still produce a candidate")
	}
	if _, ok := result.Errors[SourcePubChem]; !ok {
		t.Fatalf("errors = %v, want the failed source reported", result.Errors)
	}
	if result.Sources[SourcePubChem] || !result.Sources[SourceGoodScents] {
		t.Fatalf("source hits = %v", result.Sources)
	}
}

func TestSearchFailsWhenAllSourcesFail(t *testing.T) {
	boom := &SourceError{Source: SourcePubChem, Transient: true, Err: errors.New("down")}
	chem := &stubAdapter{source: SourcePubChem, err: boom}
	odor := &stubAdapter{source: SourceGoodScents, err: &SourceError{Source: SourceGoodScents, Transient: true, Err: errors.New("down")}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem, odor}})

	if _, err := e.Search(context.Background(), "linalool"); err == nil {
		t.Fatal("expected an error when no source can be consulted")
	}
}

func TestEnrichPersistsAndSyncs(t *testing.T) {
	st := &memStore{}
	sy := &stubSyncer{synced: true}
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{"linalool": linaloolChemRecord()}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem}, Store: st, Syncer: sy})

	result, err := e.Enrich(context.Background(), 7, "Linalool", false)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !result.Found || result.Upsert == nil || !result.Upsert.Created {
		t.Fatalf("result = %+v", result)
	}
	if !result.Synced {
		t.Fatal("expected regulatory sync after a write with a CAS number")
	}

	if len(st.upserts) != 1 {
		t.Fatalf("store saw %d upserts", len(st.upserts))
	}
	up := st.upserts[0]
	if up.ownerID != 7 || up.name != "Linalool" || up.cand.CAS != "78-70-6" {
		t.Fatalf("upsert = %+v", up)
	}
	if len(sy.called) != 1 || sy.called[0] != result.Upsert.IngredientID {
		t.Fatalf("syncer called with %v", sy.called)
	}
}

func TestEnrichMissSavesNothing(t *testing.T) {
	st := &memStore{}
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem}, Store: st})

	result, err := e.Enrich(context.Background(), 1, "unobtainium", false)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if result.Found {
		t.Fatal("unexpected match")
	}
	if len(st.upserts) != 0 {
		t.Fatalf("store saw %d upserts for a miss", len(st.upserts))
	}
}

func TestEnrichSkipsSyncWithoutCAS(t *testing.T) {
	st := &memStore{}
	sy := &stubSyncer{synced: true}
	odor := &stubAdapter{source: SourceGoodScents, records: map[string]*PartialRecord{
		"mystery accord": {Name: "Mystery Accord", OdorDescription: "abstract woody amber"},
	}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{odor}, Store: st, Syncer: sy})

	result, err := e.Enrich(context.Background(), 1, "Mystery Accord", false)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !result.Found {
		t.Fatal("expected a match")
	}
	if len(sy.called) != 0 {
		t.Fatal("sync must not run without a registry number")
	}
}

func TestBulkEnrichKeepsOrderAndIsolatesFailures(t *testing.T) {
	st := &memStore{}
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{
		"linalool": linaloolChemRecord(),
		"geraniol": {Name: "Geraniol", CAS: "106-24-1"},
	}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem}, Store: st})

	names := []string{"Linalool", "   ", "unobtainium", "Geraniol"}
	results := e.BulkEnrich(context.Background(), 3, names, false)

	if len(results) != len(names) {
		t.Fatalf("got %d results, want %d", len(results), len(names))
	}
	for i, item := range results {
		if item.Name != names[i] {
			t.Fatalf("result %d is %q, want input order preserved", i, item.Name)
		}
	}

	if results[0].Err != nil || !results[0].Result.Found {
		t.Fatalf("Linalool: %+v", results[0])
	}
	if results[1].Err == nil {
		t.Fatal("blank name should fail its own item")
	}
	if results[2].Err != nil || results[2].Result.Found {
		t.Fatalf("unobtainium should be a clean miss: %+v", results[2])
	}
	if results[3].Err != nil || !results[3].Result.Found {
		t.Fatalf("Geraniol: %+v", results[3])
	}
	if len(st.upserts) != 2 {
		t.Fatalf("store saw %d upserts, want 2", len(st.upserts))
	}
}

func TestBulkEnrichMissing(t *testing.T) {
	st := &memStore{missing: []string{"Linalool", "Geraniol", "Citral"}}
	chem := &stubAdapter{source: SourcePubChem, records: map[string]*PartialRecord{
		"linalool": linaloolChemRecord(),
	}}
	e := newTestEnricher(t, Config{Sources: []SourceAdapter{chem}, Store: st})

	results, err := e.BulkEnrichMissing(context.Background(), 1, 2, false)
	if err != nil {
		t.Fatalf("bulk missing: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want the limit applied", len(results))
	}
	if results[0].Name != "Linalool" || !results[0].Result.Found {
		t.Fatalf("results[0] = %+v", results[0])
	}
}
