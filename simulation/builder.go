package simulation

import (
	"log"

	"github.com/rs/xid"

	"github.com/sarchlab/memhier/sim"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg    Config
	hooks  []sim.Hook
	logger *log.Logger
}

// MakeBuilder creates a builder for the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: DefaultConfig(),
	}
}

// WithConfig sets the configuration of the memory system.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithHook registers a hook on the simulation.
func (b Builder) WithHook(hook sim.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// WithLogger logs every access to logger.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	s := &Simulation{id: xid.New().String()}

	if err := s.Reconfigure(b.cfg); err != nil {
		return nil, err
	}

	if b.logger != nil {
		s.AcceptHook(NewLogHook(b.logger))
	}

	for _, h := range b.hooks {
		s.AcceptHook(h)
	}

	return s, nil
}
