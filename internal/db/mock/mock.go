package mock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "essentia/internal/log"
	"essentia/models"
)

var mockSeq atomic.Int64

// New returns a private in-memory sqlite database seeded with a studio owner,
// a couple of ingredients, and one regulatory standard. Each call opens its
// own database so parallel tests do not share state; shared cache keeps every
// pool connection on that one database.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	dsn := fmt.Sprintf("file:essentia-mock-%d?mode=memory&cache=shared", mockSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Ingredient{},
		&models.Synonym{},
		&models.RegulatoryStandard{},
	); err != nil {
		return nil, err
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return db, nil
}

func seed(ctx context.Context, db *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	owner := &models.User{
		Name:  "Avery Studio",
		Email: "avery@essentia.app",
	}
	if err := db.WithContext(ctx).Create(owner).Error; err != nil {
		return err
	}

	bergamot := models.Ingredient{
		Name:        "Bergamot Essential",
		CAS:         "8007-75-8",
		OdorProfile: "cold-pressed citrus brightness with a bitter green edge",
		OdorFamily:  "Citrus",
		Type:        "EO",
		Notes:       "Calabrian lot, spring pressing.",
		OwnerID:     owner.ID,
	}
	if err := db.WithContext(ctx).Create(&bergamot).Error; err != nil {
		return err
	}

	// Deliberately sparse so enrichment tests have fields to fill.
	iris := models.Ingredient{
		Name:    "Iris Pallida Butter",
		OwnerID: owner.ID,
	}
	if err := db.WithContext(ctx).Create(&iris).Error; err != nil {
		return err
	}

	standard := models.RegulatoryStandard{
		Name:      "Bergamot oil expressed",
		CAS:       "8007-75-8",
		Amendment: "51",
		Type:      "Restriction",
		Risk:      "Phototoxicity",
		Cat1:      0.02,
		Cat2:      0.4,
		Cat3:      4.0,
		Cat4:      4.0,
		Cat5:      3.0,
		Cat6:      100,
		Cat7:      100,
		Cat8:      100,
		Cat9:      100,
		Cat10:     100,
		Cat11:     100,
		Cat12:     100,
		OwnerID:   owner.ID,
	}
	if err := db.WithContext(ctx).Create(&standard).Error; err != nil {
		return err
	}

	return nil
}
