package mongo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aquamarinepk/aqm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultMongoURL  = "mongodb://localhost:27017"
	defaultMongoName = "appetite_pos"
	connectTimeout   = 10 * time.Second
)

// BaseRepo owns the client shared by the order store and the catalog repo.
type BaseRepo struct {
	client *mongo.Client
	db     *mongo.Database
	logger aqm.Logger
	config *aqm.Config
}

func NewBaseRepo(config *aqm.Config, logger aqm.Logger) *BaseRepo {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &BaseRepo{
		logger: logger,
		config: config,
	}
}

// Start connects, pings and makes sure the order collections are indexed.
func (r *BaseRepo) Start(ctx context.Context) error {
	connString := r.config.GetStringOrDef("db.mongo.url", defaultMongoURL)
	dbName := r.config.GetStringOrDef("db.mongo.name", defaultMongoName)

	clientOptions := options.Client().ApplyURI(connString).
		SetAppName("appetite-pos").
		SetRegistry(NewRegistry()).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.db = client.Database(dbName)

	if err := EnsureIndexes(ctx, r.db); err != nil {
		return err
	}

	r.logger.Info("Connected to MongoDB", "url", redact(connString), "database", dbName)
	return nil
}

func (r *BaseRepo) Stop(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	r.client = nil
	r.logger.Info("Disconnected from MongoDB")
	return nil
}

func (r *BaseRepo) GetDatabase() *mongo.Database {
	return r.db
}

// orderIndexes backs the lookups the store runs on every session refresh.
var orderIndexes = map[string][]mongo.IndexModel{
	"orders": {
		{Keys: bson.D{{Key: "table_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	},
	"order_items": {{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "sequence", Value: 1}}}},
	"payments":    {{Keys: bson.D{{Key: "order_id", Value: 1}}}},
	"voids":       {{Keys: bson.D{{Key: "order_id", Value: 1}}}},
	"menu_items":  {{Keys: bson.D{{Key: "code", Value: 1}}}},
}

// EnsureIndexes is idempotent; existing indexes with the same keys are kept.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, models := range orderIndexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("cannot create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// redact hides credentials in a connection string before it is logged.
func redact(connString string) string {
	u, err := url.Parse(connString)
	if err != nil || u.User == nil {
		return connString
	}
	u.User = url.User("redacted")
	return u.String()
}
