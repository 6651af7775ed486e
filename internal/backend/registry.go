package backend

import (
	"fmt"
	"sync"

	"github.com/mekod/ledger/internal/common"
	"github.com/mekod/ledger/internal/connection"
	"github.com/mekod/ledger/internal/logging"
)

// Registry hands out one live Client per connection identity for the
// lifetime of the process. Entries are never evicted: auth-state
// subscriptions stay attached to their handle, and in-flight requests
// against an old handle are never silently redirected. The leak is bounded
// by how many distinct projects a user connects to in one run.
type Registry struct {
	opts clientOptions

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry builds an empty registry. Create one at process start and pass
// it to whoever needs clients; nothing in this package holds a global.
func NewRegistry(opts ...ClientOption) *Registry {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = defaultHTTPClient()
	}
	if o.sessionStore == nil {
		o.sessionStore = NewMemorySessionStore()
	}
	if o.log == nil {
		o.log = logging.NewNopLogger()
	}

	return &Registry{opts: o, clients: make(map[string]*Client)}
}

// GetClient returns the cached handle for cfg's identity, constructing it on
// first use. Two calls with equal (url, anon key) return the same instance.
// A nil cfg means no connection is resolved.
func (r *Registry) GetClient(cfg *connection.Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: connect a backend project first", common.ErrNoConnection)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cfg.Identity()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}

	c := newClient(cfg, r.opts)
	r.clients[key] = c
	return c, nil
}
