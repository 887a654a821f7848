package display

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"

	"github.com/appetiteclub/pos/pkg/event"
)

const DefaultInterval = 15 * time.Second

type Config struct {
	Topic    string
	Interval time.Duration
}

// Broadcaster pushes display events to NATS and to gRPC stream subscribers.
// Delivery is best effort: failures are logged and never reach the caller.
// The last ORDER_UPDATE or PAYMENT_START of each terminal is re-sent on
// every tick so late screens catch up.
type Broadcaster struct {
	publisher events.Publisher
	stream    *StreamServer
	topic     string
	interval  time.Duration
	logger    aqm.Logger

	mu   sync.RWMutex
	last map[string]event.DisplayEvent

	cancel context.CancelFunc
	done   chan struct{}
}

func NewBroadcaster(publisher events.Publisher, stream *StreamServer, cfg Config, logger aqm.Logger) *Broadcaster {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if cfg.Topic == "" {
		cfg.Topic = event.DisplayTopic
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	b := &Broadcaster{
		publisher: publisher,
		stream:    stream,
		topic:     cfg.Topic,
		interval:  cfg.Interval,
		logger:    logger,
		last:      make(map[string]event.DisplayEvent),
	}
	if stream != nil {
		stream.SetReplay(b.replay)
	}
	return b
}

// Broadcast delivers evt and remembers it for the heartbeat.
func (b *Broadcaster) Broadcast(ctx context.Context, evt event.DisplayEvent) {
	if b == nil {
		return
	}

	b.mu.Lock()
	switch evt.Type {
	case event.DisplayOrderUpdate, event.DisplayPaymentStart:
		b.last[evt.Terminal] = evt
	default:
		delete(b.last, evt.Terminal)
	}
	b.mu.Unlock()

	b.deliver(ctx, evt)
}

// Last returns the event the heartbeat would re-send for terminal.
func (b *Broadcaster) Last(terminal string) (event.DisplayEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	evt, ok := b.last[terminal]
	return evt, ok
}

func (b *Broadcaster) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.heartbeat(ctx)
			}
		}
	}()

	b.logger.Info("display broadcaster started", "topic", b.topic, "interval", b.interval.String())
	return nil
}

func (b *Broadcaster) Stop(ctx context.Context) error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (b *Broadcaster) heartbeat(ctx context.Context) {
	for _, evt := range b.replay("") {
		b.deliver(ctx, evt)
	}
}

// replay returns the remembered events of terminal, or of every terminal
// when terminal is empty.
func (b *Broadcaster) replay(terminal string) []event.DisplayEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []event.DisplayEvent
	for t, evt := range b.last {
		if terminal == "" || t == terminal {
			out = append(out, evt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Terminal < out[j].Terminal })
	return out
}

func (b *Broadcaster) deliver(ctx context.Context, evt event.DisplayEvent) {
	if b.stream != nil {
		b.stream.Publish(evt)
	}
	if b.publisher == nil {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("cannot encode display event", "type", evt.Type, "error", err)
		return
	}
	if err := b.publisher.Publish(ctx, b.topic, payload); err != nil {
		b.logger.Error("cannot publish display event", "type", evt.Type, "terminal", evt.Terminal, "error", err)
	}
}
