package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStream publishes to a JetStream stream so dispatch events survive
// station restarts. It implements events.Publisher.
type NATSStream struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NATSStreamConfig configures a NATSStream instance.
type NATSStreamConfig struct {
	URL        string        // NATS server URL
	StreamName string        // JetStream stream name (e.g., "POS_DISPATCH")
	Subjects   []string      // Subjects captured by the stream
	MaxAge     time.Duration // How long to retain events
	MaxMsgs    int64         // Maximum number of messages to retain (0 = unlimited)
}

// NewNATSStream connects and ensures the stream exists.
func NewNATSStream(ctx context.Context, cfg NATSStreamConfig) (*NATSStream, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamConfig := jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: cfg.Subjects,
		MaxAge:   cfg.MaxAge,
	}
	if cfg.MaxMsgs > 0 {
		streamConfig.MaxMsgs = cfg.MaxMsgs
	}

	stream, err := js.CreateOrUpdateStream(ctx, streamConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.StreamName, err)
	}

	return &NATSStream{
		conn:   conn,
		js:     js,
		stream: stream,
	}, nil
}

// Publish publishes a message to the stream and waits for the ack.
func (s *NATSStream) Publish(ctx context.Context, topic string, msg []byte) error {
	if _, err := s.js.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

// Info reports how many messages the stream currently retains.
func (s *NATSStream) Info(ctx context.Context) (uint64, error) {
	info, err := s.stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read stream info: %w", err)
	}
	return info.State.Msgs, nil
}

// Close closes the NATS connection.
func (s *NATSStream) Close() error {
	s.conn.Close()
	return nil
}
