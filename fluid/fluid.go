// Package fluid provides incompressible flow operators on top of the
// field package: semi-Lagrangian advection, buoyancy forcing and a
// pressure projection backed by a sparse conjugate-gradient solve.
package fluid

import (
	"fmt"

	"github.com/rupeshkmr/phiflow/field"
	"github.com/rupeshkmr/phiflow/geom"
	"github.com/rupeshkmr/phiflow/tensor"
)

// SemiLagrangian transports f through velocity for one step of length
// dt by tracing each sample point backwards and interpolating f there.
// Works for centered and staggered fields; velocity may live on a
// different grid than f.
func SemiLagrangian(f, velocity field.Field, dt float64) (field.Field, error) {
	if f.IsStaggered() {
		axes := f.Geometry().Axes()
		parts := tensor.Unstack(f.Center(), "~vector")
		out := make([]tensor.Tensor, len(axes))
		for i, a := range axes {
			back, err := traceBack(parts[i], velocity, dt)
			if err != nil {
				return field.Field{}, err
			}
			v, err := field.SampleComponent(f, a, back)
			if err != nil {
				return field.Field{}, err
			}
			out[i] = v
		}
		return f.WithValues(tensor.Stack(tensor.DualItemsDim("vector", axes...), out...))
	}
	back, err := traceBack(f.Center(), velocity, dt)
	if err != nil {
		return field.Field{}, err
	}
	values, err := field.SampleAt(f, back)
	if err != nil {
		return field.Field{}, err
	}
	return f.WithValues(values)
}

// traceBack moves sample positions upstream by dt times the local
// velocity.
func traceBack(points tensor.Tensor, velocity field.Field, dt float64) (tensor.Tensor, error) {
	v, err := field.SampleAt(velocity, points)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return tensor.Sub(points, tensor.MulScalar(v, dt)), nil
}

// MacCormack advects f with a forward and a backward semi-Lagrangian
// pass and adds half the round-trip error back. Second-order accurate
// but not flux limited, so sharp features may overshoot slightly.
func MacCormack(f, velocity field.Field, dt float64) (field.Field, error) {
	fwd, err := SemiLagrangian(f, velocity, dt)
	if err != nil {
		return field.Field{}, err
	}
	bwd, err := SemiLagrangian(fwd, velocity, -dt)
	if err != nil {
		return field.Field{}, err
	}
	correction := tensor.MulScalar(tensor.Sub(f.Values(), bwd.Values()), 0.5)
	return fwd.WithValues(tensor.Add(fwd.Values(), correction))
}

// BuoyancyForce converts a scalar marker field into a body force
// direction*marker and resamples it onto the velocity representation.
func BuoyancyForce(marker, velocity field.Field, direction []float64) (field.Field, error) {
	axes := marker.Geometry().Axes()
	if len(direction) != len(axes) {
		return field.Field{}, fmt.Errorf("direction has %d components for %d axes", len(direction), len(axes))
	}
	parts := make([]tensor.Tensor, len(axes))
	for i := range axes {
		d := direction[i]
		parts[i] = tensor.Map(marker.Values(), func(v float64) float64 { return v * d })
	}
	force, err := field.New(marker.Geometry(), tensor.Stack(tensor.Vector(axes...), parts...), marker.Boundary())
	if err != nil {
		return field.Field{}, err
	}
	return field.Resample(force, velocity, false)
}

// SmokeConfig holds the per-step parameters of a buoyant smoke
// simulation.
type SmokeConfig struct {
	Dt         float64
	Buoyancy   []float64
	InflowRate float64
	Solve      Solve
}

// SmokeState is one time slice of a smoke simulation.
type SmokeState struct {
	Velocity field.Field
	Smoke    field.Field
	Pressure field.Field
}

// StepSmoke advances a buoyant smoke simulation by one step: advect
// the marker and add inflow, advect the velocity, apply buoyancy, then
// project the velocity to be divergence free. The inflow field must
// already live on the smoke grid; see InflowField.
func StepSmoke(st SmokeState, inflow field.Field, cfg SmokeConfig) (SmokeState, error) {
	smoke, err := SemiLagrangian(st.Smoke, st.Velocity, cfg.Dt)
	if err != nil {
		return SmokeState{}, err
	}
	smoke = smoke.AddTensor(tensor.MulScalar(inflow.Values(), cfg.Dt*cfg.InflowRate))

	velocity, err := SemiLagrangian(st.Velocity, st.Velocity, cfg.Dt)
	if err != nil {
		return SmokeState{}, err
	}
	force, err := BuoyancyForce(smoke, velocity, cfg.Buoyancy)
	if err != nil {
		return SmokeState{}, err
	}
	velocity = velocity.AddTensor(tensor.MulScalar(force.Values(), cfg.Dt))

	velocity, pressure, err := MakeIncompressible(velocity, cfg.Solve)
	if err != nil {
		return SmokeState{}, err
	}
	return SmokeState{Velocity: velocity, Smoke: smoke, Pressure: pressure}, nil
}

// InflowField rasterizes a source region onto the grid of the given
// field as a 0/1 indicator.
func InflowField(source geom.Geometry, onto field.Field) (field.Field, error) {
	values, err := field.SampleGeometry(source, onto.Geometry(), onto.SampledAt(), onto.Boundary())
	if err != nil {
		return field.Field{}, err
	}
	return field.New(onto.Geometry(), values, onto.Boundary())
}
