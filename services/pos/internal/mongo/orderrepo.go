package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/pos/services/pos/internal/backend"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

var doneStatuses = bson.A{order.StatusClosed, order.StatusVoided}

// activeFilter matches orders that are still on the floor.
func activeFilter(extra bson.M) bson.M {
	f := bson.M{"status": bson.M{"$nin": doneStatuses}}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// OrderRepo stores order headers. Closed and voided orders are frozen: Save
// refuses to overwrite them.
type OrderRepo struct {
	collection *mongo.Collection
}

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{collection: db.Collection("orders")}
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("cannot create order %s: %w", o.ID, err)
	}
	return nil
}

// Get returns nil, nil when the order does not exist.
func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

// FindActiveByTable returns the oldest order on the table that is neither
// closed nor voided.
func (r *OrderRepo) FindActiveByTable(ctx context.Context, tableID uuid.UUID) (*order.Order, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.findOne(ctx, activeFilter(bson.M{"table_id": tableID}), opts)
}

func (r *OrderRepo) ListActive(ctx context.Context) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, activeFilter(nil), opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list active orders: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}
	return result, nil
}

// Save writes the header only while the stored order is still active.
func (r *OrderRepo) Save(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	result, err := r.collection.UpdateOne(ctx, activeFilter(bson.M{"_id": o.ID}), bson.M{"$set": o})
	if err != nil {
		return fmt.Errorf("cannot update order %s: %w", o.ID, err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	stored, err := r.Get(ctx, o.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		return backend.ErrNotFound
	}
	return fmt.Errorf("%w: order %s is %s", order.ErrOrderLocked, o.ID, stored.Status)
}

func (r *OrderRepo) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*order.Order, error) {
	var o order.Order
	var res *mongo.SingleResult
	if opts != nil {
		res = r.collection.FindOne(ctx, filter, opts)
	} else {
		res = r.collection.FindOne(ctx, filter)
	}
	if err := res.Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot find order: %w", err)
	}
	return &o, nil
}
