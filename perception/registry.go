// Package perception ingests the perception feed: it grows the obstacle set and remembers the
// last known pose of every agent.
package perception

import (
	"sort"
	"strings"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/motionplan"
	"go.viam.com/uavnav/spatialmath"
)

const (
	// DefaultSelfName is the agent the first perceived entity is stored under.
	DefaultSelfName = "uav"
	// DefaultAgentMarker is the substring that marks an entity name as an agent.
	DefaultAgentMarker = "uav"
	// DefaultObstacleRadius is the footprint of a perceived obstacle.
	DefaultObstacleRadius = 0.5
	// DefaultInflation is the margin added around every obstacle for the agent's own size.
	DefaultInflation = 0.5
)

// Entity is one named object reported by the perception feed.
type Entity struct {
	Name     string
	Position r3.Vector
}

// Config controls how entities are interpreted.
type Config struct {
	SelfName       string
	AgentMarker    string
	ObstacleRadius float64
	Inflation      float64
}

func (cfg Config) withDefaults() Config {
	if cfg.SelfName == "" {
		cfg.SelfName = DefaultSelfName
	}
	if cfg.AgentMarker == "" {
		cfg.AgentMarker = DefaultAgentMarker
	}
	if cfg.ObstacleRadius <= 0 {
		cfg.ObstacleRadius = DefaultObstacleRadius
	}
	if cfg.Inflation < 0 {
		cfg.Inflation = 0
	}
	return cfg
}

// DefaultConfig returns the default interpretation: obstacles of radius 0.5 inflated by 0.5.
func DefaultConfig() Config {
	return Config{
		SelfName:       DefaultSelfName,
		AgentMarker:    DefaultAgentMarker,
		ObstacleRadius: DefaultObstacleRadius,
		Inflation:      DefaultInflation,
	}
}

// UpdateResult describes what a perception update changed.
type UpdateResult struct {
	Applied      bool
	NewObstacles []motionplan.Obstacle
	// NewAgents lists agent names seen for the first time, in feed order.
	NewAgents []string
}

// Registry holds the append-only obstacle set and every agent's last known pose.
type Registry struct {
	cfg    Config
	logger logging.Logger

	mu        sync.RWMutex
	highest   int
	obstacles []motionplan.Obstacle
	poses     map[string]spatialmath.Pose
	agents    map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry(cfg Config, logger logging.Logger) *Registry {
	return &Registry{
		cfg:    cfg.withDefaults(),
		logger: logger,
		poses:  map[string]spatialmath.Pose{},
		agents: map[string]struct{}{},
	}
}

// IsAgent reports whether name carries the agent marker.
func (r *Registry) IsAgent(name string) bool {
	return strings.Contains(name, r.cfg.AgentMarker)
}

// Update applies a perception update when it reports more entities than any update before it;
// smaller or equal counts are ignored. Entity zero is the self agent. Entities past the previously
// known count become obstacles unless their name marks them as agents. Known obstacles are never
// moved or removed.
func (r *Registry) Update(entities []Entity) (UpdateResult, error) {
	for i, e := range entities {
		if !spatialmath.VectorIsFinite(e.Position) {
			return UpdateResult{}, errors.Errorf("entity %d (%q) has a non-finite position", i, e.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(entities) <= r.highest {
		return UpdateResult{}, nil
	}
	prev := r.highest
	r.highest = len(entities)

	result := UpdateResult{Applied: true}
	r.storePose(r.cfg.SelfName, entities[0].Position, &result)

	for _, e := range entities[max(prev, 1):] {
		if r.IsAgent(e.Name) {
			r.storePose(e.Name, e.Position, &result)
			continue
		}
		o := motionplan.NewObstacle(spatialmath.PlanarProjection(e.Position), r.cfg.ObstacleRadius, r.cfg.Inflation)
		r.obstacles = append(r.obstacles, o)
		result.NewObstacles = append(result.NewObstacles, o)
	}
	r.logger.Debugw("perception update applied",
		"entities", len(entities), "new_obstacles", len(result.NewObstacles), "obstacles", len(r.obstacles))
	return result, nil
}

func (r *Registry) storePose(name string, pos r3.Vector, result *UpdateResult) {
	pose := r.poses[name]
	pose.Position = pos
	r.poses[name] = pose
	if _, ok := r.agents[name]; !ok {
		r.agents[name] = struct{}{}
		result.NewAgents = append(result.NewAgents, name)
	}
}

// Obstacles returns a copy of the current obstacle set.
func (r *Registry) Obstacles() []motionplan.Obstacle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]motionplan.Obstacle, len(r.obstacles))
	copy(out, r.obstacles)
	return out
}

// HighestCount returns the largest entity count applied so far.
func (r *Registry) HighestCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.highest
}

// UpdatePose records the latest pose of an agent.
func (r *Registry) UpdatePose(name string, pose spatialmath.Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poses[name] = pose
	r.agents[name] = struct{}{}
}

// Pose returns the last known pose of name.
func (r *Registry) Pose(name string) (spatialmath.Pose, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pose, ok := r.poses[name]
	return pose, ok
}

// Agents returns the sorted names of every agent with a known pose.
func (r *Registry) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := lo.Keys(r.agents)
	sort.Strings(names)
	return names
}
