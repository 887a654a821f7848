package display

import (
	"context"
	"sync"

	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MockPublisher records published messages.
type MockPublisher struct {
	mu          sync.Mutex
	messages    map[string][][]byte
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[topic] = append(m.messages[topic], msg)
	return nil
}

func (m *MockPublisher) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[topic])
}

// fakeServerStream is a grpc.ServerStream that collects sent messages.
type fakeServerStream struct {
	ctx  context.Context
	req  *structpb.Struct
	sent chan *structpb.Struct
}

func newFakeServerStream(ctx context.Context, req *structpb.Struct) *fakeServerStream {
	return &fakeServerStream{ctx: ctx, req: req, sent: make(chan *structpb.Struct, 10)}
}

func (f *fakeServerStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeServerStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeServerStream) SetTrailer(metadata.MD)       {}
func (f *fakeServerStream) Context() context.Context     { return f.ctx }

func (f *fakeServerStream) SendMsg(m interface{}) error {
	f.sent <- m.(*structpb.Struct)
	return nil
}

func (f *fakeServerStream) RecvMsg(m interface{}) error {
	if f.req != nil {
		proto.Merge(m.(*structpb.Struct), f.req)
	}
	return nil
}
