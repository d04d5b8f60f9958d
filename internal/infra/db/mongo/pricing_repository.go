package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainpricing "carhire/internal/domain/pricing"
)

const configID = "default"

type PriceTableRepository struct {
	col *mongo.Collection
}

func NewPriceTableRepository(db *mongo.Database) *PriceTableRepository {
	col := db.Collection("pricing_table")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "car_id", Value: 1}}})
	return &PriceTableRepository{col: col}
}

func (r *PriceTableRepository) Price(ctx context.Context, carID string, month time.Month, duration int) (domainpricing.TableEntry, error) {
	var doc tableDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": tableID(carID, month, duration)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainpricing.TableEntry{}, domainpricing.ErrNoMatch
		}
		return domainpricing.TableEntry{}, fmt.Errorf("%w: %w", domainpricing.ErrLookupUnavailable, err)
	}
	return doc.toEntry(), nil
}

func (r *PriceTableRepository) ListByCar(ctx context.Context, carID string) ([]domainpricing.TableEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "month", Value: 1}, {Key: "duration", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"car_id": carID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []domainpricing.TableEntry
	for cur.Next(ctx) {
		var doc tableDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toEntry())
	}
	return out, cur.Err()
}

func (r *PriceTableRepository) Upsert(ctx context.Context, entries []domainpricing.TableEntry) error {
	models := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		doc := newTableDocument(e)
		models = append(models, mongo.NewReplaceOneModel().SetFilter(bson.M{"_id": doc.ID}).SetReplacement(doc).SetUpsert(true))
	}
	if len(models) == 0 {
		return nil
	}
	_, err := r.col.BulkWrite(ctx, models)
	return err
}

type ConfigRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewConfigRepository(db *mongo.Database) *ConfigRepository {
	return &ConfigRepository{col: db.Collection("pricing_config"), now: time.Now}
}

// PricingConfig reports ErrConfigUnavailable when no document was stored yet
// so a config chain can fall through to its defaults.
func (r *ConfigRepository) PricingConfig(ctx context.Context) (domainpricing.Config, error) {
	var doc configDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": configID}).Decode(&doc); err != nil {
		return domainpricing.Config{}, fmt.Errorf("%w: %w", domainpricing.ErrConfigUnavailable, err)
	}
	return doc.toConfig(), nil
}

func (r *ConfigRepository) SavePricingConfig(ctx context.Context, cfg domainpricing.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	doc := newConfigDocument(cfg, r.now())
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": configID}, doc, options.Replace().SetUpsert(true))
	return err
}

// EnsureDefault stores cfg when no configuration exists yet.
func (r *ConfigRepository) EnsureDefault(ctx context.Context, cfg domainpricing.Config) (bool, error) {
	doc := newConfigDocument(cfg, r.now())
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": configID}, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

var (
	_ domainpricing.TableRepository  = (*PriceTableRepository)(nil)
	_ domainpricing.ConfigRepository = (*ConfigRepository)(nil)
)
