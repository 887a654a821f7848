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

// OrderItemRepo stores line items, voided ones included, keyed by order.
type OrderItemRepo struct {
	collection *mongo.Collection
}

func NewOrderItemRepo(db *mongo.Database) *OrderItemRepo {
	return &OrderItemRepo{collection: db.Collection("order_items")}
}

func (r *OrderItemRepo) CreateMany(ctx context.Context, items []*order.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	docs := make([]interface{}, len(items))
	for i, item := range items {
		docs[i] = item
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("cannot create order items: %w", err)
	}
	return nil
}

// ListByOrder returns the items of an order in the order they were added.
func (r *OrderItemRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*order.OrderItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list items of order %s: %w", orderID, err)
	}
	defer cursor.Close(ctx)

	var result []*order.OrderItem
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode order items: %w", err)
	}
	return result, nil
}

// SaveMany replaces the given items in one ordered bulk write. Each item
// must already exist; a missing one fails the batch with ErrItemNotFound.
func (r *OrderItemRepo) SaveMany(ctx context.Context, items []*order.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, len(items))
	for i, item := range items {
		if item == nil {
			return fmt.Errorf("order item is nil")
		}
		models[i] = mongo.NewReplaceOneModel().SetFilter(bson.M{"_id": item.ID}).SetReplacement(item)
	}

	result, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("cannot save order items: %w", err)
	}
	if int(result.MatchedCount) != len(items) {
		return fmt.Errorf("%w: %d of %d items matched", order.ErrItemNotFound, result.MatchedCount, len(items))
	}
	return nil
}
