package session

import (
	"context"
	"sort"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// Registry owns one session per terminal.
type Registry struct {
	deps   Deps
	logger aqm.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = aqm.NewNoopLogger()
	}
	return &Registry{
		deps:     deps,
		logger:   deps.Logger,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session of a terminal, creating it on first use.
func (r *Registry) Get(terminal string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[terminal]
	if !ok {
		s = New(terminal, r.deps)
		r.sessions[terminal] = s
		r.logger.Debug("session opened", "terminal", terminal)
	}
	return s
}

func (r *Registry) Terminals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	terminals := make([]string, 0, len(r.sessions))
	for t := range r.sessions {
		terminals = append(terminals, t)
	}
	sort.Strings(terminals)
	return terminals
}

// ActiveOrders lists orders that are neither closed nor voided, oldest first.
func (r *Registry) ActiveOrders(ctx context.Context) ([]*order.Order, error) {
	orders, err := r.deps.Backend.ListActive(ctx)
	if err != nil {
		return nil, wrapBackend("list active orders", err)
	}
	return orders, nil
}

func (r *Registry) Config() Config {
	return r.deps.Config
}

func (r *Registry) all() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	return list
}
