package control

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// PIDConfig holds the gains and limits of one PID loop. A zero limit disables that limit.
type PIDConfig struct {
	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	IntegralLimit float64 `json:"integral_limit"`
	OutputLimit   float64 `json:"output_limit"`
}

// Validate returns an error if the loop could never produce an output.
func (cfg PIDConfig) Validate() error {
	if cfg.Kp == 0 && cfg.Ki == 0 && cfg.Kd == 0 {
		return errors.New("pid should have at least one of kp, ki or kd")
	}
	if cfg.IntegralLimit < 0 || cfg.OutputLimit < 0 {
		return errors.New("pid limits must not be negative")
	}
	return nil
}

// PID is a discrete, signed PID loop. Every agent owns its own loops.
type PID struct {
	mu    sync.Mutex
	cfg   PIDConfig
	error float64
	int   float64
}

// NewPID returns a PID loop with cfg.
func NewPID(cfg PIDConfig) (*PID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PID{cfg: cfg}, nil
}

// Next advances the loop by dt with the current error and returns the command.
func (p *PID) Next(err float64, dt time.Duration) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	dtS := dt.Seconds()
	if dtS <= 0 {
		return 0
	}

	p.int += p.cfg.Ki * err * dtS
	if p.cfg.IntegralLimit > 0 {
		p.int = math.Max(-p.cfg.IntegralLimit, math.Min(p.cfg.IntegralLimit, p.int))
	}
	deriv := (err - p.error) / dtS
	output := p.cfg.Kp*err + p.int + p.cfg.Kd*deriv
	p.error = err
	if p.cfg.OutputLimit > 0 {
		output = math.Max(-p.cfg.OutputLimit, math.Min(p.cfg.OutputLimit, output))
	}
	return output
}

// Reset clears the accumulated integral and the previous error.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.int = 0
	p.error = 0
}

