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

// PaymentRepo stores confirmed payments. Payments are never updated.
type PaymentRepo struct {
	collection *mongo.Collection
}

func NewPaymentRepo(db *mongo.Database) *PaymentRepo {
	return &PaymentRepo{
		collection: db.Collection("payments"),
	}
}

func (r *PaymentRepo) Create(ctx context.Context, p *order.Payment) error {
	if p == nil {
		return fmt.Errorf("payment is nil")
	}

	if _, err := r.collection.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("cannot create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*order.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list payments by order: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Payment
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode payments: %w", err)
	}

	return result, nil
}
