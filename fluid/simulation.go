package fluid

import (
	"fmt"

	"github.com/rupeshkmr/phiflow/extrapolation"
	"github.com/rupeshkmr/phiflow/field"
	"github.com/rupeshkmr/phiflow/geom"
	"github.com/rupeshkmr/phiflow/simparams"
	"github.com/rupeshkmr/phiflow/tensor"
)

// Diffuse applies one explicit diffusion step to a centered grid
// field: f + dt * diffusivity * ∇²f. Stable for
// dt*diffusivity < dx²/(2*rank).
func Diffuse(f field.Field, diffusivity, dt float64) (field.Field, error) {
	lap, err := field.Laplace(f)
	if err != nil {
		return field.Field{}, err
	}
	return f.AddTensor(tensor.MulScalar(lap.Values(), dt*diffusivity)), nil
}

// Simulation runs a buoyant smoke plume configured by simparams: a
// centered marker density, a staggered velocity, optional marker
// diffusion and a spherical inflow region.
type Simulation struct {
	cfg       SmokeConfig
	viscosity float64
	inflow    field.Field
	state     SmokeState
	step      int
}

func axisNames(rank int) ([]string, error) {
	all := []string{"x", "y", "z"}
	if rank < 1 || rank > len(all) {
		return nil, fmt.Errorf("unsupported spatial rank %d", rank)
	}
	return all[:rank], nil
}

func NewSimulation(p simparams.Parameters) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	axes, err := axisNames(len(p.Resolution))
	if err != nil {
		return nil, err
	}
	g, err := geom.NewGrid(axes, p.Resolution, p.Size)
	if err != nil {
		return nil, err
	}
	var bnd extrapolation.Extrapolation = extrapolation.ZERO
	if p.Boundary == "periodic" {
		bnd = extrapolation.PERIODIC
	}
	smoke, err := field.NewCentered(g, 0, bnd)
	if err != nil {
		return nil, err
	}
	velocity, err := field.NewStaggered(g, 0, bnd)
	if err != nil {
		return nil, err
	}

	var inflow field.Field
	if p.InflowRate > 0 {
		source, serr := geom.NewSphere(geom.Vec(axes, p.InflowCenter), tensor.Wrap(p.InflowRadius))
		if serr != nil {
			return nil, serr
		}
		inflow, err = InflowField(source, smoke)
		if err != nil {
			return nil, err
		}
	} else {
		inflow, err = field.NewCentered(g, 0, bnd)
		if err != nil {
			return nil, err
		}
	}

	return &Simulation{
		cfg: SmokeConfig{
			Dt:         p.Dt,
			Buoyancy:   p.Buoyancy,
			InflowRate: p.InflowRate,
			Solve:      Solve{RelTol: p.PressureRelTol, MaxIterations: p.PressureMaxIters},
		},
		viscosity: p.Viscosity,
		inflow:    inflow,
		state:     SmokeState{Velocity: velocity, Smoke: smoke},
	}, nil
}

func (s *Simulation) State() SmokeState { return s.state }
func (s *Simulation) StepCount() int    { return s.step }

// Step advances the simulation by one time step.
func (s *Simulation) Step() error {
	st, err := StepSmoke(s.state, s.inflow, s.cfg)
	if err != nil {
		return err
	}
	if s.viscosity > 0 {
		st.Smoke, err = Diffuse(st.Smoke, s.viscosity, s.cfg.Dt)
		if err != nil {
			return err
		}
	}
	s.state = st
	s.step++
	return nil
}

// Run executes steps time steps, printing progress every few steps.
func (s *Simulation) Run(steps int) error {
	for i := 0; i < steps; i++ {
		if err := s.Step(); err != nil {
			return fmt.Errorf("step %d: %w", s.step+1, err)
		}
		if s.step%10 == 0 || i == steps-1 {
			total := tensor.Sum(s.state.Smoke.Values(), s.state.Smoke.Resolution().Names()...).Scalar()
			fmt.Printf("step %-6d total smoke %10.4f\n", s.step, total)
		}
	}
	return nil
}
