package regulatory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	applog "essentia/internal/log"
	"essentia/models"
)

// SyncStats summarizes a whole-library limit sync.
type SyncStats struct {
	// Scanned counts ingredients that carry a registry number.
	Scanned int
	// Synced counts ingredients whose limits were updated from a standard.
	Synced int
}

// SyncIngredient copies the matching standard's category limits onto one
// ingredient by registry number and flags it as restricted. An ingredient
// without a registry number, or without a matching standard, is left exactly
// as stored: the default limits stay authoritative until a standard says
// otherwise.
func (s *Service) SyncIngredient(ctx context.Context, ingredientID uint) (bool, error) {
	ing, err := s.store.FindByID(ctx, ingredientID)
	if err != nil {
		return false, fmt.Errorf("load ingredient %d: %w", ingredientID, err)
	}
	if ing.CAS == "" {
		return false, nil
	}

	std, err := s.store.FindRegulatoryByCAS(ctx, ing.OwnerID, ing.CAS)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find standard for CAS %s: %w", ing.CAS, err)
	}

	updates := make(map[string]any)
	current := ing.CategoryLimits()
	for i, limit := range std.CategoryLimits() {
		if current[i] != limit {
			updates[models.CategoryColumns[i]] = limit
		}
	}
	if !ing.Allergen {
		updates["allergen"] = true
	}
	if len(updates) == 0 {
		return true, nil
	}

	if err := s.store.UpdateFields(ctx, ing.ID, updates); err != nil {
		return false, fmt.Errorf("apply limits to %q: %w", ing.Name, err)
	}
	applog.Info(ctx, "regulatory limits applied",
		"ingredient", ing.Name, "cas", ing.CAS, "amendment", std.Amendment)
	return true, nil
}

// SyncAll re-propagates standards across every ingredient of the owner that
// carries a registry number. Used after importing a new amendment.
func (s *Service) SyncAll(ctx context.Context, ownerID uint) (*SyncStats, error) {
	ingredients, err := s.store.ListWithCAS(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}

	stats := &SyncStats{}
	for _, ing := range ingredients {
		stats.Scanned++
		synced, err := s.SyncIngredient(ctx, ing.ID)
		if err != nil {
			applog.Warn(ctx, "limit sync failed",
				"ingredient", ing.Name, "cas", ing.CAS, "error", err)
			continue
		}
		if synced {
			stats.Synced++
		}
	}

	applog.Info(ctx, "library limit sync finished",
		"owner", ownerID, "scanned", stats.Scanned, "synced", stats.Synced)
	return stats, nil
}
