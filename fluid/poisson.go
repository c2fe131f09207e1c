package fluid

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"

	"github.com/rupeshkmr/phiflow/extrapolation"
	"github.com/rupeshkmr/phiflow/field"
	"github.com/rupeshkmr/phiflow/geom"
	"github.com/rupeshkmr/phiflow/tensor"
)

// Solve configures the conjugate-gradient pressure solve.
type Solve struct {
	// RelTol stops the iteration once the residual norm drops below
	// RelTol times the right-hand-side norm. Zero means 1e-10.
	RelTol float64
	// MaxIterations caps the iteration count. Zero means 1000.
	MaxIterations int
}

func (s Solve) relTol() float64 {
	if s.RelTol > 0 {
		return s.RelTol
	}
	return 1e-10
}

func (s Solve) maxIterations() int {
	if s.MaxIterations > 0 {
		return s.MaxIterations
	}
	return 1000
}

// MakeIncompressible projects a staggered velocity field onto its
// divergence-free part. It solves the pressure Poisson equation with
// boundary conditions derived from the velocity boundary (periodic
// axes wrap, walls get zero normal pressure gradient) and subtracts
// the pressure gradient from the velocity. Returns the projected
// velocity and the pressure field.
func MakeIncompressible(velocity field.Field, solve Solve) (field.Field, field.Field, error) {
	g, ok := velocity.Geometry().(geom.UniformGrid)
	if !ok {
		return field.Field{}, field.Field{}, fmt.Errorf("%w: pressure solve on %T", geom.ErrUnsupported, velocity.Geometry())
	}
	if !velocity.IsStaggered() {
		return field.Field{}, field.Field{}, fmt.Errorf("pressure solve requires a staggered velocity field")
	}
	axes := g.Axes()
	res := g.Resolution()
	dx := g.Dx()

	div, err := field.Divergence(velocity)
	if err != nil {
		return field.Field{}, field.Field{}, err
	}

	periodic := make([]bool, len(axes))
	for i, a := range axes {
		periodic[i] = axisIsPeriodic(velocity.Boundary(), a)
	}

	b := flatten(div.Values(), res, axes)
	// Periodic and wall conditions both leave the pressure defined only
	// up to a constant; remove the mean so the system stays solvable.
	removeMean(b)

	a := negLaplacianMatrix(g, periodic)
	p, err := conjugateGradient(a, negate(b), solve.relTol(), solve.maxIterations())
	if err != nil {
		return field.Field{}, field.Field{}, err
	}
	removeMean(p)

	pTensor := unflatten(p, res, axes)
	pBnd := pressureBoundary(axes, periodic)
	pressure, err := field.New(g, pTensor, pBnd)
	if err != nil {
		return field.Field{}, field.Field{}, err
	}

	parts := tensor.Unstack(velocity.Values(), "~vector")
	for i, ax := range axes {
		grad, gerr := pressureGradientAxis(pTensor, velocity.Boundary(), pBnd, ax, res.Size(ax), dx.At(map[string]int{"vector": i}))
		if gerr != nil {
			return field.Field{}, field.Field{}, gerr
		}
		parts[i] = tensor.Sub(parts[i], grad)
	}
	projected, err := velocity.WithValues(tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...))
	if err != nil {
		return field.Field{}, field.Field{}, err
	}
	return projected, pressure, nil
}

// axisIsPeriodic identifies the periodic rule by its one-sided face
// validity signature: only periodic owns the lower face but not the
// upper one.
func axisIsPeriodic(bnd extrapolation.Extrapolation, axis string) bool {
	lo, up := bnd.ValidOuterFaces(axis)
	return lo && !up
}

func pressureBoundary(axes []string, periodic []bool) extrapolation.Extrapolation {
	all, none := true, true
	for _, p := range periodic {
		if p {
			none = false
		} else {
			all = false
		}
	}
	if all {
		return extrapolation.PERIODIC
	}
	if none {
		return extrapolation.BOUNDARY
	}
	sides := make(map[string][2]extrapolation.Extrapolation, len(axes))
	for i, a := range axes {
		if periodic[i] {
			sides[a] = extrapolation.Uniform(extrapolation.PERIODIC)
		} else {
			sides[a] = extrapolation.Uniform(extrapolation.BOUNDARY)
		}
	}
	return extrapolation.NewMixed(sides)
}

// pressureGradientAxis differences the pressure along one axis at the
// face positions the velocity component stores: padded on the sides
// whose outer faces the velocity keeps, so the result aligns with the
// staggered component exactly.
func pressureGradientAxis(p tensor.Tensor, vb, pb extrapolation.Extrapolation, axis string, n int, d float64) (tensor.Tensor, error) {
	lo, up := vb.ValidOuterFaces(axis)
	widths := map[string][2]int{axis: {b2i(lo), b2i(up)}}
	padded, err := extrapolation.Pad(p, widths, pb.Component(axis))
	if err != nil {
		return tensor.Tensor{}, err
	}
	m := n + b2i(lo) + b2i(up)
	return tensor.MulScalar(tensor.Sub(padded.Range(axis, 1, m), padded.Range(axis, 0, m-1)), 1/d), nil
}

// negLaplacianMatrix assembles -∇² over the grid cells in compressed
// sparse row form. Periodic axes wrap; other axes drop the missing
// neighbor, which encodes a zero normal pressure gradient at walls.
func negLaplacianMatrix(g geom.UniformGrid, periodic []bool) *sparse.CSR {
	axes := g.Axes()
	res := g.Resolution()
	dx := g.Dx()
	sizes := make([]int, len(axes))
	n := 1
	for i, a := range axes {
		sizes[i] = res.Size(a)
		n *= sizes[i]
	}
	strides := make([]int, len(axes))
	s := 1
	for i := len(axes) - 1; i >= 0; i-- {
		strides[i] = s
		s *= sizes[i]
	}
	dok := sparse.NewDOK(n, n)
	idx := make([]int, len(axes))
	for row := 0; row < n; row++ {
		rem := row
		for i := range axes {
			idx[i] = rem / strides[i]
			rem %= strides[i]
		}
		for i := range axes {
			w := 1 / (dx.At(map[string]int{"vector": i}) * dx.At(map[string]int{"vector": i}))
			for _, dir := range [2]int{-1, 1} {
				j := idx[i] + dir
				if j < 0 || j >= sizes[i] {
					if !periodic[i] {
						continue
					}
					j = (j + sizes[i]) % sizes[i]
				}
				col := row + (j-idx[i])*strides[i]
				dok.Set(row, col, dok.At(row, col)-w)
				dok.Set(row, row, dok.At(row, row)+w)
			}
		}
	}
	return dok.ToCSR()
}

// conjugateGradient solves a x = b for symmetric positive
// semi-definite a, starting from zero.
func conjugateGradient(a *sparse.CSR, b []float64, relTol float64, maxIter int) ([]float64, error) {
	n := len(b)
	x := make([]float64, n)
	r := make([]float64, n)
	copy(r, b)
	p := make([]float64, n)
	copy(p, b)
	ap := make([]float64, n)
	tol := relTol * math.Max(norm(b), 1e-300)
	rs := dot(r, r)
	for it := 0; it < maxIter; it++ {
		if math.Sqrt(rs) <= tol {
			return x, nil
		}
		matVec(a, p, ap)
		pap := dot(p, ap)
		if pap == 0 {
			return x, nil
		}
		alpha := rs / pap
		for i := range x {
			x[i] += alpha * p[i]
			r[i] -= alpha * ap[i]
		}
		rsNew := dot(r, r)
		beta := rsNew / rs
		for i := range p {
			p[i] = r[i] + beta*p[i]
		}
		rs = rsNew
	}
	if math.Sqrt(rs) > tol {
		return nil, fmt.Errorf("pressure solve did not converge: residual %.3e after %d iterations", math.Sqrt(rs), maxIter)
	}
	return x, nil
}

func matVec(a *sparse.CSR, x, out []float64) {
	for i := range out {
		out[i] = 0
	}
	a.DoNonZero(func(i, j int, v float64) {
		out[i] += v * x[j]
	})
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(a []float64) float64 { return math.Sqrt(dot(a, a)) }

func negate(a []float64) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = -v
	}
	return out
}

func removeMean(a []float64) {
	if len(a) == 0 {
		return
	}
	m := 0.0
	for _, v := range a {
		m += v
	}
	m /= float64(len(a))
	for i := range a {
		a[i] -= m
	}
}

// flatten serializes a centered tensor to a row-major slice in axis
// order, matching the matrix assembly.
func flatten(t tensor.Tensor, res tensor.Shape, axes []string) []float64 {
	strides := rowMajorStrides(res, axes)
	out := make([]float64, res.Volume())
	tensor.IterShape(res, func(idx map[string]int) {
		flat := 0
		for i, a := range axes {
			flat += idx[a] * strides[i]
		}
		out[flat] = t.At(idx)
	})
	return out
}

func unflatten(data []float64, res tensor.Shape, axes []string) tensor.Tensor {
	strides := rowMajorStrides(res, axes)
	out := tensor.Zeros(res)
	tensor.IterShape(res, func(idx map[string]int) {
		flat := 0
		for i, a := range axes {
			flat += idx[a] * strides[i]
		}
		out.Set(idx, data[flat])
	})
	return out
}

func rowMajorStrides(res tensor.Shape, axes []string) []int {
	strides := make([]int, len(axes))
	s := 1
	for i := len(axes) - 1; i >= 0; i-- {
		strides[i] = s
		s *= res.Size(axes[i])
	}
	return strides
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
