package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a sellable product as the POS sees it: one price in the venue
// currency, a production station and the modifier groups it accepts.
type Item struct {
	ID             uuid.UUID       `json:"id" bson:"_id"`
	Code           string          `json:"code" bson:"code"`
	Name           string          `json:"name" bson:"name"`
	CategoryID     string          `json:"category_id" bson:"category_id"`
	Price          decimal.Decimal `json:"price" bson:"price"`
	Station        string          `json:"station" bson:"station"`
	Active         bool            `json:"active" bson:"active"`
	ModifierGroups []ModifierGroup `json:"modifier_groups,omitempty" bson:"modifier_groups,omitempty"`
}

type ModifierGroup struct {
	ID            string           `json:"id" bson:"id"`
	Name          string           `json:"name" bson:"name"`
	Required      bool             `json:"required" bson:"required"`
	MaxSelections int              `json:"max_selections,omitempty" bson:"max_selections,omitempty"`
	Options       []ModifierOption `json:"options" bson:"options"`
}

type ModifierOption struct {
	ID         string          `json:"id" bson:"id"`
	Name       string          `json:"name" bson:"name"`
	PriceDelta decimal.Decimal `json:"price_delta" bson:"price_delta"`
}

type Category struct {
	ID           string `json:"id" bson:"_id"`
	Name         string `json:"name" bson:"name"`
	DisplayOrder int    `json:"display_order" bson:"display_order"`
}

// Snapshot is an immutable view of the catalog for the active venue.
type Snapshot struct {
	Categories []Category `json:"categories"`
	Items      []Item     `json:"items"`
	LoadedAt   time.Time  `json:"loaded_at"`
}

// Group returns the modifier group with the given id.
func (i Item) Group(id string) (ModifierGroup, bool) {
	for _, g := range i.ModifierGroups {
		if g.ID == id {
			return g, true
		}
	}
	return ModifierGroup{}, false
}

// Option returns the option with the given id.
func (g ModifierGroup) Option(id string) (ModifierOption, bool) {
	for _, o := range g.Options {
		if o.ID == id {
			return o, true
		}
	}
	return ModifierOption{}, false
}

// Source loads a full catalog snapshot from somewhere.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Catalog keeps the last good snapshot in memory. A failed refresh keeps
// serving the previous snapshot.
type Catalog struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	index    map[uuid.UUID]Item
	source   Source
	logger   aqm.Logger
}

func NewCatalog(source Source, logger aqm.Logger) *Catalog {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Catalog{
		snapshot: &Snapshot{},
		index:    make(map[uuid.UUID]Item),
		source:   source,
		logger:   logger,
	}
}

// Start warms the catalog. It is used as a lifecycle hook.
func (c *Catalog) Start(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Info("catalog warmup failed", "error", err)
	}
	return nil
}

func (c *Catalog) Refresh(ctx context.Context) error {
	if c.source == nil {
		return fmt.Errorf("catalog source not configured")
	}
	snap, err := c.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("cannot load catalog: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("catalog source returned no snapshot")
	}
	c.Set(snap)
	c.logger.Info("catalog loaded", "items", len(snap.Items), "categories", len(snap.Categories))
	return nil
}

// Set replaces the current snapshot.
func (c *Catalog) Set(snap *Snapshot) {
	index := make(map[uuid.UUID]Item, len(snap.Items))
	for _, item := range snap.Items {
		index[item.ID] = item
	}
	sort.SliceStable(snap.Categories, func(i, j int) bool {
		return snap.Categories[i].DisplayOrder < snap.Categories[j].DisplayOrder
	})
	if snap.LoadedAt.IsZero() {
		snap.LoadedAt = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snap
	c.index = index
}

// Item looks up an active item.
func (c *Catalog) Item(id uuid.UUID) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.index[id]
	if !ok || !item.Active {
		return Item{}, false
	}
	return item, true
}

func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// ItemsByCategory lists active items of a category in catalog order.
func (c *Catalog) ItemsByCategory(categoryID string) []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var items []Item
	for _, item := range c.snapshot.Items {
		if item.Active && item.CategoryID == categoryID {
			items = append(items, item)
		}
	}
	return items
}
