// Package store persists enrichment candidates and regulatory standards
// through gorm. Writes merge rather than replace: a candidate only fills
// ingredient fields that are still empty unless overwrite is requested.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"essentia/internal/enrich"
	applog "essentia/internal/log"
	"essentia/models"
)

// Store wraps a gorm handle with the upsert semantics of the pipeline.
// Concurrent upserts for the same (owner, name) key are serialized so bulk
// enrichment cannot race two creates into a unique-index violation.
type Store struct {
	db *gorm.DB

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, keys: make(map[string]*sync.Mutex)}
}

func (s *Store) lock(ownerID uint, name string) func() {
	key := fmt.Sprintf("%d:%s", ownerID, enrich.NormalizeName(name))
	s.mu.Lock()
	m, ok := s.keys[key]
	if !ok {
		m = &sync.Mutex{}
		s.keys[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// enrichableFields maps candidate values onto ingredient columns. Name and
// the regulatory limits are owned by the user and the regulatory sync
// respectively; enrichment never touches them.
func enrichableFields(ing *models.Ingredient, cand *enrich.Candidate) []struct {
	column   string
	current  string
	incoming string
} {
	return []struct {
		column   string
		current  string
		incoming string
	}{
		{"cas", ing.CAS, cand.CAS},
		{"einecs", ing.EINECS, cand.EINECS},
		{"chemical_name", ing.ChemicalName, cand.IUPACName},
		{"formula", ing.Formula, cand.Formula},
		{"molecular_weight", ing.MolecularWeight, cand.MolecularWeight},
		{"odor_profile", ing.OdorProfile, cand.OdorDescription},
		{"odor_family", ing.OdorFamily, cand.OdorFamily},
		{"appearance", ing.Appearance, cand.Appearance},
		{"flash_point", ing.FlashPoint, cand.FlashPoint},
		{"solubility", ing.Solubility, cand.Solubility},
		{"logp", ing.LogP, cand.LogP},
		{"shelf_life", ing.ShelfLife, cand.ShelfLife},
		{"type", ing.Type, cand.Type},
		{"tenacity", ing.Tenacity, cand.Tenacity},
	}
}

// Upsert persists a merged candidate for the owner. The row is found by name
// first, then by registry number; a miss on both creates it. Existing
// non-empty fields are kept unless overwrite is set, and every kept
// disagreement is reported as a conflict.
func (s *Store) Upsert(ctx context.Context, ownerID uint, name string, cand *enrich.Candidate, overwrite bool) (*enrich.UpsertResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("ingredient name must not be empty")
	}
	if cand == nil {
		return nil, errors.New("candidate must not be nil")
	}

	unlock := s.lock(ownerID, name)
	defer unlock()

	result := &enrich.UpsertResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findForUpsert(ctx, tx, ownerID, name, cand.CAS)
		if err != nil {
			return err
		}

		if existing == nil {
			created, err := createFromCandidate(tx, ownerID, name, cand)
			if err != nil {
				return err
			}
			result.IngredientID = created.ID
			result.Created = true
			return upsertSynonyms(tx, created, cand.Synonyms)
		}

		updates := make(map[string]any)
		for _, f := range enrichableFields(existing, cand) {
			switch {
			case f.incoming == "" || f.incoming == f.current:
			case f.current == "" || overwrite:
				updates[f.column] = f.incoming
				result.Updated = append(result.Updated, f.column)
			default:
				result.Conflicts = append(result.Conflicts, f.column)
			}
		}
		switch {
		case cand.CompoundID == 0 || cand.CompoundID == existing.CompoundID:
		case existing.CompoundID == 0 || overwrite:
			updates["compound_id"] = cand.CompoundID
			result.Updated = append(result.Updated, "compound_id")
		default:
			result.Conflicts = append(result.Conflicts, "compound_id")
		}

		if len(updates) > 0 {
			if err := tx.Model(existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("update ingredient %q: %w", existing.Name, err)
			}
		}
		sort.Strings(result.Updated)
		sort.Strings(result.Conflicts)
		result.IngredientID = existing.ID

		// The query name is worth keeping as an alias when the row was
		// matched through its registry number under a different name.
		synonyms := cand.Synonyms
		if !strings.EqualFold(existing.Name, name) {
			synonyms = append([]string{name}, synonyms...)
		}
		return upsertSynonyms(tx, existing, synonyms)
	})
	if err != nil {
		return nil, err
	}

	if len(result.Conflicts) > 0 {
		applog.Warn(ctx, "enrichment kept stored values over source values",
			"ingredient", name, "owner", ownerID, "fields", strings.Join(result.Conflicts, ","))
	}
	return result, nil
}

func findForUpsert(ctx context.Context, tx *gorm.DB, ownerID uint, name, cas string) (*models.Ingredient, error) {
	var existing models.Ingredient

	err := tx.Where("lower(name) = ? AND owner_id = ?", strings.ToLower(name), ownerID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find ingredient by name %q: %w", name, err)
	}

	if cas == "" {
		return nil, nil
	}
	err = tx.Where("cas = ? AND owner_id = ?", cas, ownerID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find ingredient by CAS %q: %w", cas, err)
	}

	// Another owner holding the same registry number is legitimate, but
	// worth surfacing when it happens during an import.
	var others int64
	if err := tx.Model(&models.Ingredient{}).Where("cas = ?", cas).Count(&others).Error; err == nil && others > 0 {
		applog.Warn(ctx, "registry number already stored under another owner",
			"cas", cas, "name", name, "owner", ownerID)
	}
	return nil, nil
}

func createFromCandidate(tx *gorm.DB, ownerID uint, name string, cand *enrich.Candidate) (*models.Ingredient, error) {
	ing := models.Ingredient{
		Name:            name,
		OwnerID:         ownerID,
		CAS:             cand.CAS,
		EINECS:          cand.EINECS,
		ChemicalName:    cand.IUPACName,
		Formula:         cand.Formula,
		MolecularWeight: cand.MolecularWeight,
		CompoundID:      cand.CompoundID,
		OdorProfile:     cand.OdorDescription,
		OdorFamily:      cand.OdorFamily,
		Appearance:      cand.Appearance,
		FlashPoint:      cand.FlashPoint,
		Solubility:      cand.Solubility,
		LogP:            cand.LogP,
		ShelfLife:       cand.ShelfLife,
		Type:            cand.Type,
		Tenacity:        cand.Tenacity,
		Notes:           cand.ProvenanceNote(),
	}
	if err := tx.Create(&ing).Error; err != nil {
		return nil, fmt.Errorf("create ingredient %q: %w", name, err)
	}
	return &ing, nil
}

// upsertSynonyms adds the aliases that are not already stored for the
// ingredient. The canonical name never becomes its own synonym.
func upsertSynonyms(tx *gorm.DB, ing *models.Ingredient, aliases []string) error {
	if len(aliases) == 0 {
		return nil
	}

	var existing []models.Synonym
	if err := tx.Where("ingredient_id = ?", ing.ID).Find(&existing).Error; err != nil {
		return fmt.Errorf("list synonyms for %q: %w", ing.Name, err)
	}

	seen := map[string]struct{}{enrich.NormalizeName(ing.Name): {}}
	for _, syn := range existing {
		seen[enrich.NormalizeName(syn.Name)] = struct{}{}
	}

	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		key := enrich.NormalizeName(alias)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		syn := models.Synonym{
			Name:         alias,
			Source:       "enrichment",
			IngredientID: ing.ID,
			OwnerID:      ing.OwnerID,
		}
		if err := tx.Create(&syn).Error; err != nil {
			return fmt.Errorf("create synonym %q for %q: %w", alias, ing.Name, err)
		}
	}
	return nil
}

// FindByNameOwner returns the owner's ingredient by case-insensitive name.
func (s *Store) FindByNameOwner(ctx context.Context, ownerID uint, name string) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := s.db.WithContext(ctx).
		Where("lower(name) = ? AND owner_id = ?", strings.ToLower(strings.TrimSpace(name)), ownerID).
		First(&ing).Error
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

// FindByID returns an ingredient by primary key.
func (s *Store) FindByID(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := s.db.WithContext(ctx).First(&ing, id).Error; err != nil {
		return nil, err
	}
	return &ing, nil
}

// UpdateFields applies a column update map to one ingredient.
func (s *Store) UpdateFields(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Ingredient{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// FindRegulatoryByCAS returns the owner's standard for a registry number.
func (s *Store) FindRegulatoryByCAS(ctx context.Context, ownerID uint, cas string) (*models.RegulatoryStandard, error) {
	var std models.RegulatoryStandard
	err := s.db.WithContext(ctx).
		Where("cas = ? AND owner_id = ?", strings.TrimSpace(cas), ownerID).
		First(&std).Error
	if err != nil {
		return nil, err
	}
	return &std, nil
}

// UpsertRegulatory stores a standard, matching an existing row by registry
// number first and by name second. Imports replace the stored limits: a new
// amendment supersedes the old one wholesale.
func (s *Store) UpsertRegulatory(ctx context.Context, std *models.RegulatoryStandard) (created bool, err error) {
	if std == nil {
		return false, errors.New("standard must not be nil")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.RegulatoryStandard

		findErr := gorm.ErrRecordNotFound
		if std.CAS != "" {
			findErr = tx.Where("cas = ? AND owner_id = ?", std.CAS, std.OwnerID).
				First(&existing).Error
		}
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			findErr = tx.Where("lower(name) = ? AND owner_id = ?", strings.ToLower(std.Name), std.OwnerID).
				First(&existing).Error
		}
		if findErr == nil {
			std.ID = existing.ID
			std.CreatedAt = existing.CreatedAt
			return tx.Save(std).Error
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find standard %q: %w", std.Name, findErr)
		}

		created = true
		return tx.Create(std).Error
	})
	return created, err
}

// ListStandards returns the owner's standards ordered by name.
func (s *Store) ListStandards(ctx context.Context, ownerID uint) ([]models.RegulatoryStandard, error) {
	var standards []models.RegulatoryStandard
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name asc").
		Find(&standards).Error
	return standards, err
}

// ListWithCAS returns the owner's ingredients that carry a registry number.
func (s *Store) ListWithCAS(ctx context.Context, ownerID uint) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND cas <> ''", ownerID).
		Order("name asc").
		Find(&ingredients).Error
	return ingredients, err
}

// ListMissingEnrichment returns the names of the owner's ingredients that
// still lack a registry number or an odor profile. limit <= 0 lists all.
func (s *Store) ListMissingEnrichment(ctx context.Context, ownerID uint, limit int) ([]string, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Ingredient{}).
		Where("owner_id = ? AND (cas = '' OR odor_profile = '')", ownerID).
		Order("name asc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var names []string
	if err := q.Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// LibraryStats summarizes the enrichment state of one owner's library.
type LibraryStats struct {
	Ingredients     int64
	WithCAS         int64
	WithOdorProfile int64
	Synonyms        int64
	Standards       int64
}

// Stats counts the owner's ingredients, how many carry a registry number and
// an odor profile, and the stored synonyms and standards.
func (s *Store) Stats(ctx context.Context, ownerID uint) (*LibraryStats, error) {
	stats := &LibraryStats{}
	counts := []struct {
		model any
		where string
		out   *int64
	}{
		{&models.Ingredient{}, "owner_id = ?", &stats.Ingredients},
		{&models.Ingredient{}, "owner_id = ? AND cas <> ''", &stats.WithCAS},
		{&models.Ingredient{}, "owner_id = ? AND odor_profile <> ''", &stats.WithOdorProfile},
		{&models.Synonym{}, "owner_id = ?", &stats.Synonyms},
		{&models.RegulatoryStandard{}, "owner_id = ?", &stats.Standards},
	}
	for _, c := range counts {
		err := s.db.WithContext(ctx).Model(c.model).
			Where(c.where, ownerID).
			Count(c.out).Error
		if err != nil {
			return nil, fmt.Errorf("count library rows: %w", err)
		}
	}
	return stats, nil
}

// ResolveOwner finds the owning user for pipeline writes. An explicit email
// wins; otherwise the first user by id serves as the default library owner.
func (s *Store) ResolveOwner(ctx context.Context, email string) (uint, error) {
	email = strings.TrimSpace(email)

	var user models.User
	if email != "" {
		err := s.db.WithContext(ctx).
			Where("lower(email) = ?", strings.ToLower(email)).
			First(&user).Error
		if err != nil {
			return 0, fmt.Errorf("find owner by email %q: %w", strings.ToLower(email), err)
		}
		return user.ID, nil
	}

	if err := s.db.WithContext(ctx).Order("id asc").First(&user).Error; err != nil {
		return 0, fmt.Errorf("find default owner: %w", err)
	}
	return user.ID, nil
}
