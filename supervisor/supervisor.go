package supervisor

import (
	"fmt"

	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/logging"
	"github.com/datalyze-ai/datalyze/session"
)

// DefaultMaxIterations bounds one question's routing loop.
const DefaultMaxIterations = 10

// WorkerAgent is the surface the loop needs from a registered worker.
type WorkerAgent interface {
	Name() string
	Respond(runCtx *core.RunContext) ([]core.Event, error)
}

// Options configures a Supervisor instance.
type Options struct {
	MaxIterations int
	SessionStore  core.SessionStore
	Logger        logging.Logger
}

// Supervisor owns the worker registry and drives the routing loop. The
// registry is closed after construction: delegation can only reach agents
// registered here, and invalid wiring is rejected up front with a
// ConfigurationError rather than discovered mid-run.
type Supervisor struct {
	name          string
	policy        Policy
	workers       map[string]WorkerAgent
	maxIterations int
	store         core.SessionStore
	logger        logging.Logger
}

// New creates a Supervisor routing between the given workers.
func New(name string, policy Policy, workers []WorkerAgent, optFns ...func(o *Options)) (*Supervisor, error) {
	if name == "" {
		return nil, core.NewConfigurationError("supervisor", "supervisor name must not be empty")
	}
	if policy == nil {
		return nil, core.NewConfigurationError("supervisor", "supervisor %q requires a policy", name)
	}
	if len(workers) == 0 {
		return nil, core.NewConfigurationError("supervisor", "supervisor %q requires at least one worker", name)
	}

	opts := Options{
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		return nil, core.NewConfigurationError("supervisor", "max iterations must be positive, got %d", opts.MaxIterations)
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	registry := make(map[string]WorkerAgent, len(workers))
	for _, w := range workers {
		if w.Name() == name {
			return nil, core.NewConfigurationError("supervisor", "worker name %q collides with the supervisor", w.Name())
		}
		if _, exists := registry[w.Name()]; exists {
			return nil, core.NewConfigurationError("supervisor", "duplicate worker name %q", w.Name())
		}
		registry[w.Name()] = w
	}

	return &Supervisor{
		name:          name,
		policy:        policy,
		workers:       registry,
		maxIterations: opts.MaxIterations,
		store:         opts.SessionStore,
		logger:        opts.Logger,
	}, nil
}

// Name returns the supervisor's node name used as event author.
func (s *Supervisor) Name() string { return s.name }

// WorkerNames returns the names of all registered workers.
func (s *Supervisor) WorkerNames() []string {
	names := make([]string, 0, len(s.workers))
	for name := range s.workers {
		names = append(names, name)
	}
	return names
}

// sessionFor loads the working session, creating it on first use.
func (s *Supervisor) sessionFor(sessionID string) (*core.Session, error) {
	sess, err := s.store.Get(sessionID)
	if err == nil && sess != nil {
		return sess, nil
	}
	sess, err = s.store.Create(sessionID)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}
	return sess, nil
}
