package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

type VoidRepo struct {
	collection *mongo.Collection
}

func NewVoidRepo(db *mongo.Database) *VoidRepo {
	return &VoidRepo{
		collection: db.Collection("voids"),
	}
}

func (r *VoidRepo) Create(ctx context.Context, v *order.VoidRecord) error {
	if v == nil {
		return fmt.Errorf("void record is nil")
	}

	if _, err := r.collection.InsertOne(ctx, v); err != nil {
		return fmt.Errorf("cannot create void record: %w", err)
	}

	return nil
}

func (r *VoidRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*order.VoidRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list voids by order: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*order.VoidRecord
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode voids: %w", err)
	}

	return result, nil
}
