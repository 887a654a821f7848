package display

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/appetiteclub/pos/pkg/event"
)

const streamServiceName = "appetite.pos.DisplayStream"

// streamHandler is the server side of the display stream service.
type streamHandler interface {
	Subscribe(req *structpb.Struct, stream grpc.ServerStream) error
}

var streamServiceDesc = grpc.ServiceDesc{
	ServiceName: streamServiceName,
	HandlerType: (*streamHandler)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pos/display.proto",
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(streamHandler).Subscribe(req, stream)
}

type subscriber struct {
	terminal string
	ch       chan *structpb.Struct
}

// StreamServer fans display events out to customer screens over a gRPC
// server stream. A subscriber may filter by terminal with a "terminal"
// field in its request.
type StreamServer struct {
	logger aqm.Logger

	mu          sync.RWMutex
	subscribers map[string]subscriber
	replay      func(terminal string) []event.DisplayEvent
}

func NewStreamServer(logger aqm.Logger) *StreamServer {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &StreamServer{
		logger:      logger,
		subscribers: make(map[string]subscriber),
	}
}

// RegisterGRPCService registers the stream with the gRPC server.
func (s *StreamServer) RegisterGRPCService(server *grpc.Server) {
	server.RegisterService(&streamServiceDesc, s)
}

// SetReplay sets the source of events sent to a subscriber when it connects.
func (s *StreamServer) SetReplay(fn func(terminal string) []event.DisplayEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replay = fn
}

func (s *StreamServer) Subscribe(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	terminal := req.GetFields()["terminal"].GetStringValue()
	subscriberID := generateSubscriberID()

	s.logger.Info("new display subscriber", "subscriber_id", subscriberID, "terminal", terminal)

	ch := make(chan *structpb.Struct, 100)

	s.mu.Lock()
	s.subscribers[subscriberID] = subscriber{terminal: terminal, ch: ch}
	replay := s.replay
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, subscriberID)
		s.mu.Unlock()
		s.logger.Info("display subscriber disconnected", "subscriber_id", subscriberID)
	}()

	if replay != nil {
		for _, evt := range replay(terminal) {
			msg, err := toStruct(evt)
			if err != nil {
				s.logger.Error("cannot encode display event", "error", err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := stream.SendMsg(msg); err != nil {
				s.logger.Errorf("failed to send display event: %v", err)
				return err
			}
		}
	}
}

// Publish sends evt to every matching subscriber without blocking.
func (s *StreamServer) Publish(evt event.DisplayEvent) {
	msg, err := toStruct(evt)
	if err != nil {
		s.logger.Error("cannot encode display event", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, sub := range s.subscribers {
		if sub.terminal != "" && sub.terminal != evt.Terminal {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			s.logger.Info("display subscriber channel full, dropping event", "subscriber_id", id)
		}
	}
}

func (s *StreamServer) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func toStruct(evt event.DisplayEvent) (*structpb.Struct, error) {
	raw, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal display event: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("cannot unmarshal display event: %w", err)
	}
	return structpb.NewStruct(fields)
}

func generateSubscriberID() string {
	return time.Now().Format("20060102150405.000000000")
}
