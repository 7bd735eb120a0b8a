package control

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"go.viam.com/uavnav/logging"
)

// Registry maps agent names to their tracking state. Entries are never removed.
type Registry struct {
	cfg    Config
	strict bool
	logger logging.Logger

	mu     sync.Mutex
	agents map[string]*AgentState
}

// NewRegistry returns an empty registry. In strict mode only Register creates agents.
func NewRegistry(cfg Config, strict bool, logger logging.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		cfg:    cfg,
		strict: strict,
		logger: logger,
		agents: map[string]*AgentState{},
	}, nil
}

// Register creates the agent if it does not exist yet and returns it.
func (r *Registry) Register(name string) *AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupOrCreate(name)
}

// lookupOrCreate must be called with r.mu held.
func (r *Registry) lookupOrCreate(name string) *AgentState {
	if agent, ok := r.agents[name]; ok {
		return agent
	}
	// the config was validated at construction
	agent, err := newAgentState(name, r.cfg)
	if err != nil {
		panic(err)
	}
	r.agents[name] = agent
	r.logger.Infow("agent registered", "agent", name)
	return agent
}

// Lookup returns the agent named name, if registered.
func (r *Registry) Lookup(name string) (*AgentState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[name]
	return agent, ok
}

// LookupOrCreate returns the agent named name, creating it unless the registry is strict. Strict
// registries return an UnknownAgentError for unregistered names.
func (r *Registry) LookupOrCreate(name string) (*AgentState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agent, ok := r.agents[name]; ok {
		return agent, nil
	}
	if r.strict {
		return nil, NewUnknownAgentError(name)
	}
	return r.lookupOrCreate(name), nil
}

// Names returns the sorted names of all registered agents.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := lo.Keys(r.agents)
	sort.Strings(names)
	return names
}
