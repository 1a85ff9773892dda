package mock

import (
	"context"
	"sync"
	"testing"

	"essentia/models"
)

func TestNewSeedsExpectedRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := New(ctx)
	if err != nil {
		t.Fatalf("mock database initialization failed: %v", err)
	}

	var ingredients []models.Ingredient
	if err := db.WithContext(ctx).Find(&ingredients).Error; err != nil {
		t.Fatalf("query ingredients: %v", err)
	}
	if len(ingredients) < 2 {
		t.Fatalf("expected at least two seeded ingredients, got %d", len(ingredients))
	}

	var standard models.RegulatoryStandard
	if err := db.WithContext(ctx).Where("cas = ?", "8007-75-8").First(&standard).Error; err != nil {
		t.Fatalf("query regulatory standard: %v", err)
	}
	if standard.Cat1 != 0.02 {
		t.Fatalf("seeded standard cat1 = %v", standard.Cat1)
	}

	var owner models.User
	if err := db.WithContext(ctx).First(&owner).Error; err != nil {
		t.Fatalf("query owner: %v", err)
	}
	if owner.Email == "" {
		t.Fatal("seeded owner should carry an email")
	}
}

// Concurrent queries run on different pool connections; each one must see
// the same seeded schema rather than a fresh empty memory database.
func TestNewSharesDatabaseAcrossConnections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := New(ctx)
	if err != nil {
		t.Fatalf("mock database: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var count int64
			if err := db.WithContext(ctx).Model(&models.Ingredient{}).Count(&count).Error; err != nil {
				t.Errorf("count ingredients: %v", err)
				return
			}
			if count == 0 {
				t.Error("connection saw an empty database")
			}
		}()
	}
	wg.Wait()
}

func TestNewReturnsIsolatedDatabases(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first, err := New(ctx)
	if err != nil {
		t.Fatalf("first mock database: %v", err)
	}
	second, err := New(ctx)
	if err != nil {
		t.Fatalf("second mock database: %v", err)
	}

	if err := first.WithContext(ctx).Create(&models.Ingredient{Name: "Vetiver Haiti", OwnerID: 1}).Error; err != nil {
		t.Fatalf("insert into first database: %v", err)
	}

	var count int64
	if err := second.WithContext(ctx).Model(&models.Ingredient{}).Where("name = ?", "Vetiver Haiti").Count(&count).Error; err != nil {
		t.Fatalf("count in second database: %v", err)
	}
	if count != 0 {
		t.Fatal("databases should not share state")
	}
}
