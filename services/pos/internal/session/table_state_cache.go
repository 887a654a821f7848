package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// Table statuses as reported by the table service.
const (
	TableAvailable = "available"
	TableOpen      = "open"
	TableReserved  = "reserved"
	TableOccupied  = "occupied"
)

// Orderable reports whether a table in the given status can take a new order.
func Orderable(status string) bool {
	switch status {
	case TableAvailable, TableOpen, TableReserved:
		return true
	}
	return false
}

type tableEntry struct {
	status   string
	observed time.Time
	cached   time.Time
}

// TableStateCache is the terminal side view of table statuses. Status events
// keep it current; entries older than the TTL are refetched from the table
// service, and the stale value is served when the service is unreachable.
type TableStateCache struct {
	mu     sync.RWMutex
	state  map[uuid.UUID]tableEntry
	client *aqm.ServiceClient
	ttl    time.Duration
	now    func() time.Time
	logger aqm.Logger
}

// NewTableStateCache builds a cache. A zero ttl keeps entries until an event replaces them.
func NewTableStateCache(client *aqm.ServiceClient, ttl time.Duration, logger aqm.Logger) *TableStateCache {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TableStateCache{
		state:  make(map[uuid.UUID]tableEntry),
		client: client,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Warm loads every table once at startup.
func (c *TableStateCache) Warm(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	resp, err := c.client.List(ctx, "tables")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	n, err := c.ingestCollection(resp.Data)
	if err != nil {
		return err
	}
	c.logger.Info("table cache warmed", "tables", n)
	return nil
}

// Ensure returns the status of a table, fetching it when unknown or expired.
func (c *TableStateCache) Ensure(ctx context.Context, id uuid.UUID) (string, error) {
	if id == uuid.Nil {
		return "", fmt.Errorf("invalid table id")
	}
	entry, ok := c.entry(id)
	if ok && !c.expired(entry) {
		return entry.status, nil
	}

	status, err := c.Refresh(ctx, id)
	if err != nil {
		if ok {
			c.logger.Info("serving stale table status", "table_id", id.String(), "status", entry.status, "error", err)
			return entry.status, nil
		}
		return "", err
	}
	return status, nil
}

// Refresh fetches the table from the table service and caches its status.
func (c *TableStateCache) Refresh(ctx context.Context, id uuid.UUID) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("table cache uninitialized")
	}
	resp, err := c.client.Get(ctx, "tables", id.String())
	if err != nil {
		return "", fmt.Errorf("failed to fetch table %s: %w", id, err)
	}
	var dto tableStateDTO
	if err := rehydrate(resp.Data, &dto); err != nil {
		return "", fmt.Errorf("failed to decode table %s: %w", id, err)
	}
	if dto.ID != "" && dto.ID != id.String() {
		return "", fmt.Errorf("table service answered for %s, asked %s", dto.ID, id)
	}
	c.Set(id, dto.Status)
	return dto.Status, nil
}

func (c *TableStateCache) Get(id uuid.UUID) (string, bool) {
	entry, ok := c.entry(id)
	return entry.status, ok
}

// Set records a status observed now.
func (c *TableStateCache) Set(id uuid.UUID, status string) {
	c.Apply(id, status, time.Time{})
}

// Apply records a status observed at the given time. Observations older than
// the cached one are dropped so late events cannot roll a table back. A zero
// time means now.
func (c *TableStateCache) Apply(id uuid.UUID, status string, observed time.Time) bool {
	now := c.now()
	if observed.IsZero() {
		observed = now
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.state[id]; ok && observed.Before(current.observed) {
		return false
	}
	c.state[id] = tableEntry{status: status, observed: observed, cached: now}
	return true
}

func (c *TableStateCache) entry(id uuid.UUID) (tableEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.state[id]
	return entry, ok
}

func (c *TableStateCache) expired(e tableEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.cached) > c.ttl
}

func (c *TableStateCache) ingestCollection(data interface{}) (int, error) {
	var records []tableStateDTO
	if err := rehydrate(data, &records); err != nil {
		return 0, err
	}
	n := 0
	for _, record := range records {
		id, err := uuid.Parse(record.ID)
		if err != nil {
			c.logger.Debug("skipping invalid table id", "table_id", record.ID)
			continue
		}
		c.Set(id, record.Status)
		n++
	}
	return n, nil
}

type tableStateDTO struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// rehydrate converts the generic data of a service response into out.
func rehydrate(data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
