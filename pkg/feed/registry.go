package feed

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/0xmhha/agentpulse/pkg/logger"
)

// SourceChecker reports the log directories of an agent that currently exist.
type SourceChecker interface {
	Roots() []string
}

type agentFeed struct {
	hub     *Hub
	sources SourceChecker
	live    bool
}

// Registry maps agent names to hubs.
type Registry struct {
	buffer int
	logger logger.Logger

	mu     sync.RWMutex
	agents map[string]agentFeed
}

// NewRegistry creates an empty registry whose hubs use the given buffer.
func NewRegistry(buffer int, log logger.Logger) *Registry {
	return &Registry{
		buffer: buffer,
		logger: log,
		agents: make(map[string]agentFeed),
	}
}

// Register adds an agent and returns its hub. Registering a name twice
// returns the existing hub.
func (r *Registry) Register(agent string, sources SourceChecker) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.agents[agent]; ok {
		return f.hub
	}
	hub := NewHub(agent, r.buffer, r.logger)
	r.agents[agent] = agentFeed{hub: hub, sources: sources}
	return hub
}

// SetLive records whether a pump is following the log directories of
// agent. Subscribers are only accepted for live agents.
func (r *Registry) SetLive(agent string, live bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.agents[agent]; ok {
		f.live = live
		r.agents[agent] = f
	}
}

// Hub returns the hub of agent.
func (r *Registry) Hub(agent string) (*Hub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.agents[agent]
	return f.hub, ok
}

// Agents returns the registered agent names, sorted.
func (r *Registry) Agents() []string {
	r.mu.RLock()
	names := lo.Keys(r.agents)
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Subscribe subscribes to agent. It returns ErrUnavailable when the agent
// is unknown, none of its log directories exist, or no pump follows them
// yet.
func (r *Registry) Subscribe(agent string) (*Hub, *Subscription, error) {
	r.mu.RLock()
	f, ok := r.agents[agent]
	r.mu.RUnlock()

	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown agent %q", ErrUnavailable, agent)
	}
	if f.sources == nil || len(f.sources.Roots()) == 0 {
		return nil, nil, fmt.Errorf("%w: no log directory for %q", ErrUnavailable, agent)
	}
	if !f.live {
		return nil, nil, fmt.Errorf("%w: log directory of %q not followed yet", ErrUnavailable, agent)
	}
	return f.hub, f.hub.Subscribe(), nil
}

// Close closes every hub.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.agents {
		f.hub.Close()
	}
}
