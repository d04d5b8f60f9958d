package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainfleet "carhire/internal/domain/fleet"
)

type CarRepository struct {
	col *mongo.Collection
}

func NewCarRepository(db *mongo.Database) *CarRepository {
	return &CarRepository{col: db.Collection("agg_car")}
}

func (r *CarRepository) ByID(ctx context.Context, id domainfleet.CarID) (*domainfleet.Car, error) {
	var doc carDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainfleet.ErrCarNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *CarRepository) List(ctx context.Context) ([]*domainfleet.Car, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var cars []*domainfleet.Car
	for cur.Next(ctx) {
		var doc carDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		cars = append(cars, doc.toAggregate())
	}
	return cars, cur.Err()
}

func (r *CarRepository) Save(ctx context.Context, car *domainfleet.Car) error {
	doc := newCarDocument(car)
	filter := bson.M{"_id": doc.ID, "version": car.Version}
	doc.Version = car.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainfleet.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainfleet.ErrConcurrentUpdate
	}
	car.Version = doc.Version
	return nil
}

// Seed inserts cars that do not exist yet and leaves stored ones untouched.
func (r *CarRepository) Seed(ctx context.Context, cars []*domainfleet.Car) (int, error) {
	var inserted int
	for _, car := range cars {
		doc := newCarDocument(car)
		res, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
		if err != nil {
			return inserted, err
		}
		if res.UpsertedCount > 0 {
			inserted++
		}
	}
	return inserted, nil
}

var _ domainfleet.Repository = (*CarRepository)(nil)
