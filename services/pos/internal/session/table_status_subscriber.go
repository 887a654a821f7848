package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/appetiteclub/pos/pkg"
)

// TableStatusSubscriber feeds table status events into the cache that gates
// dine-in orders.
type TableStatusSubscriber struct {
	subscriber events.Subscriber
	cache      *TableStateCache
	logger     aqm.Logger
}

func NewTableStatusSubscriber(sub events.Subscriber, cache *TableStateCache, logger aqm.Logger) *TableStatusSubscriber {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TableStatusSubscriber{
		subscriber: sub,
		cache:      cache,
		logger:     logger,
	}
}

// Start warms the cache and subscribes. A failed warmup is not fatal, the
// cache fills lazily.
func (s *TableStatusSubscriber) Start(ctx context.Context) error {
	if s.subscriber == nil {
		return fmt.Errorf("table status subscriber not configured")
	}
	if s.cache != nil {
		if err := s.cache.Warm(ctx); err != nil {
			s.logger.Info("table cache warmup failed", "error", err)
		}
	}
	s.logger.Info("starting table status subscriber", "topic", pkg.TableStatusTopic)
	return s.subscriber.Subscribe(ctx, pkg.TableStatusTopic, s.handleEvent)
}

// handleEvent never returns an error; a bad event is logged and dropped.
func (s *TableStatusSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt pkg.TableStatusEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Info("invalid table status event", "error", err)
		return nil
	}
	if evt.EventType != "" && evt.EventType != pkg.EventTableStatusChanged {
		return nil
	}
	if s.cache == nil {
		return nil
	}

	id, err := uuid.Parse(evt.TableID)
	if err != nil {
		s.logger.Info("invalid table id in event", "table_id", evt.TableID)
		return nil
	}
	if !s.cache.Apply(id, evt.Status, evt.OccurredAt) {
		s.logger.Debug("stale table status dropped", "table_id", id.String(), "status", evt.Status)
		return nil
	}
	s.logger.Debug("table status updated", "table_id", id.String(), "status", evt.Status)
	return nil
}
