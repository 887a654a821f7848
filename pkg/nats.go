package pkg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/nats-io/nats.go"
)

const natsClientName = "appetite-pos"

// connectNATS dials with unlimited reconnects. Terminals keep working while
// the broker restarts; publishes are buffered by the client meanwhile.
func connectNATS(url string, logger aqm.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(natsClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Info("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to NATS at %s: %w", url, err)
	}
	return conn, nil
}

// NATSPublisher is the fire-and-forget events.Publisher used for dispatch
// and display events.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := connectNATS(url, aqm.NewNoopLogger())
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.Publish(topic, msg); err != nil {
		return fmt.Errorf("cannot publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending messages before closing.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NATSSubscriber tracks its subscriptions so Close can drain them.
type NATSSubscriber struct {
	conn   *nats.Conn
	logger aqm.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewNATSSubscriber(url string, logger aqm.Logger) (*NATSSubscriber, error) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	conn, err := connectNATS(url, logger)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: conn, logger: logger}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			s.logger.Error("subscription handler failed", "topic", topic, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cannot subscribe to %s: %w", topic, err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return nil
}

func (s *NATSSubscriber) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			s.logger.Info("cannot drain subscription", "topic", sub.Subject, "error", err)
		}
	}
	return s.conn.Drain()
}
