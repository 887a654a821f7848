package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/pos/services/pos/internal/catalog"
)

const catalogSeedApplication = "pos"

// CatalogRepo reads the menu catalog from the menu_categories and
// menu_items collections. It is a catalog.Source.
type CatalogRepo struct {
	categories *mongo.Collection
	items      *mongo.Collection
}

func NewCatalogRepo(db *mongo.Database) *CatalogRepo {
	return &CatalogRepo{
		categories: db.Collection("menu_categories"),
		items:      db.Collection("menu_items"),
	}
}

func (r *CatalogRepo) Load(ctx context.Context) (*catalog.Snapshot, error) {
	catCursor, err := r.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "display_order", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list categories: %w", err)
	}
	defer catCursor.Close(ctx)

	var categories []catalog.Category
	if err := catCursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("cannot decode categories: %w", err)
	}

	itemCursor, err := r.items.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list menu items: %w", err)
	}
	defer itemCursor.Close(ctx)

	var items []catalog.Item
	if err := itemCursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("cannot decode menu items: %w", err)
	}

	return &catalog.Snapshot{Categories: categories, Items: items, LoadedAt: time.Now()}, nil
}

// Upsert writes a catalog snapshot, replacing documents with the same id.
func (r *CatalogRepo) Upsert(ctx context.Context, snap *catalog.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("catalog snapshot is nil")
	}

	opts := options.Replace().SetUpsert(true)
	for _, c := range snap.Categories {
		if _, err := r.categories.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, opts); err != nil {
			return fmt.Errorf("cannot upsert category %s: %w", c.ID, err)
		}
	}
	for _, item := range snap.Items {
		if _, err := r.items.ReplaceOne(ctx, bson.M{"_id": item.ID}, item, opts); err != nil {
			return fmt.Errorf("cannot upsert menu item %s: %w", item.Code, err)
		}
	}
	return nil
}

// CatalogSeeds returns the seeds that load the demo catalog.
func CatalogSeeds(repo *CatalogRepo) []seed.Seed {
	return []seed.Seed{
		{
			ID:          "demo_catalog_v1",
			Description: "Load the demo menu catalog",
			Run: func(ctx context.Context) error {
				return repo.Upsert(ctx, catalog.DemoSnapshot())
			},
		},
	}
}

// ApplyDemoSeeds loads the demo catalog once when seeding.demo is true.
func ApplyDemoSeeds(ctx context.Context, config *aqm.Config, db *mongo.Database, logger aqm.Logger) error {
	enabled, _ := config.GetString("seeding.demo")
	if enabled != "true" {
		return nil
	}

	logger.Info("Demo seeding enabled, applying demo catalog...")
	return SeedDemoCatalog(ctx, db, logger)
}

// SeedDemoCatalog applies the catalog seeds not yet recorded by the tracker.
func SeedDemoCatalog(ctx context.Context, db *mongo.Database, logger aqm.Logger) error {
	if db == nil {
		return fmt.Errorf("mongo database is nil")
	}
	tracker := seed.NewMongoTracker(db)
	if err := seed.Apply(ctx, tracker, CatalogSeeds(NewCatalogRepo(db)), catalogSeedApplication); err != nil {
		return fmt.Errorf("demo seed failed: %w", err)
	}

	logger.Info("Demo catalog seeded successfully")
	return nil
}

// ClearDemoCatalog removes the demo menu documents and forgets the seed
// record so the next SeedDemoCatalog reapplies it.
func ClearDemoCatalog(ctx context.Context, db *mongo.Database, logger aqm.Logger) error {
	if db == nil {
		return fmt.Errorf("mongo database is nil")
	}
	demo := catalog.DemoSnapshot()

	categoryIDs := make([]string, 0, len(demo.Categories))
	for _, c := range demo.Categories {
		categoryIDs = append(categoryIDs, c.ID)
	}
	itemCodes := make([]string, 0, len(demo.Items))
	for _, item := range demo.Items {
		itemCodes = append(itemCodes, item.Code)
	}

	items, err := db.Collection("menu_items").DeleteMany(ctx, bson.M{"code": bson.M{"$in": itemCodes}})
	if err != nil {
		return fmt.Errorf("delete demo menu items: %w", err)
	}
	logger.Info("Deleted demo menu items", "count", items.DeletedCount)

	categories, err := db.Collection("menu_categories").DeleteMany(ctx, bson.M{"_id": bson.M{"$in": categoryIDs}})
	if err != nil {
		return fmt.Errorf("delete demo categories: %w", err)
	}
	logger.Info("Deleted demo categories", "count", categories.DeletedCount)

	ids := make([]string, 0, len(CatalogSeeds(nil)))
	for _, s := range CatalogSeeds(nil) {
		ids = append(ids, s.ID)
	}
	if _, err := db.Collection("_seeds").DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("reset catalog seed records: %w", err)
	}
	return nil
}

// ResetDatabase drops the whole POS database.
func ResetDatabase(ctx context.Context, db *mongo.Database, logger aqm.Logger) error {
	if db == nil {
		return fmt.Errorf("mongo database is nil")
	}
	logger.Info("Dropping database", "database", db.Name())
	if err := db.Drop(ctx); err != nil {
		return fmt.Errorf("drop database %s: %w", db.Name(), err)
	}
	return nil
}
