package field

import (
	"fmt"

	"github.com/rupeshkmr/phiflow/extrapolation"
	"github.com/rupeshkmr/phiflow/geom"
	"github.com/rupeshkmr/phiflow/tensor"
)

// SpatialGradient differentiates a centered grid field. With at ==
// AtCenter the result is a centered vector field from second-order
// central differences; with AtFace it is a staggered field of
// first-order face differences. The result's boundary is the spatial
// gradient of the input's. An optional dims filter restricts the
// differentiated axes; a face-sampled gradient always covers all axes
// since its components pair with the grid's face shape.
func SpatialGradient(f Field, at string, dims ...string) (Field, error) {
	g, ok := f.geometry.(geom.UniformGrid)
	if !ok || f.IsStaggered() {
		return Field{}, fmt.Errorf("%w: spatial gradient of %T at %s", geom.ErrUnsupported, f.geometry, f.SampledAt())
	}
	gradBnd := f.boundary.SpatialGradient()
	axes := g.Axes()
	if len(dims) > 0 {
		if at == AtFace {
			return Field{}, fmt.Errorf("%w: face gradient along a subset of axes", geom.ErrUnsupported)
		}
		for _, d := range dims {
			if !g.Resolution().Has(d) {
				return Field{}, fmt.Errorf("gradient dim %q not in %v", d, axes)
			}
		}
		axes = dims
	}
	dx := g.Dx()
	parts := make([]tensor.Tensor, len(axes))
	switch at {
	case AtCenter:
		for i, a := range axes {
			n := g.Resolution().Size(a)
			padded, err := extrapolation.Pad(f.values, map[string][2]int{a: {1, 1}}, f.boundary)
			if err != nil {
				return Field{}, err
			}
			hi := padded.Range(a, 2, n+2)
			lo := padded.Range(a, 0, n)
			d := dx.Item("vector", a).Scalar()
			parts[i] = tensor.MulScalar(tensor.Sub(hi, lo), 1/(2*d))
		}
		return New(g, tensor.Stack(tensor.Vector(axes...), parts...), gradBnd)
	case AtFace:
		for i, a := range axes {
			n := g.Resolution().Size(a)
			padded, err := extrapolation.Pad(f.values, map[string][2]int{a: {1, 1}}, f.boundary)
			if err != nil {
				return Field{}, err
			}
			hi := padded.Range(a, 1, n+2)
			lo := padded.Range(a, 0, n+1)
			d := dx.At(map[string]int{"vector": i})
			faces := tensor.MulScalar(tensor.Sub(hi, lo), 1/d)
			loValid, upValid := gradBnd.ValidOuterFaces(a)
			start, end := 0, n+1
			if !loValid {
				start++
			}
			if !upValid {
				end--
			}
			parts[i] = faces.Range(a, start, end)
		}
		values := tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...)
		return New(g, values, gradBnd)
	}
	return Field{}, fmt.Errorf("unknown gradient location %q", at)
}

// Divergence sums the per-axis differences of a vector field onto cell
// centers. Staggered inputs difference their own faces; centered inputs
// use central differences.
func Divergence(f Field) (Field, error) {
	g, ok := f.geometry.(geom.UniformGrid)
	if !ok {
		return Field{}, fmt.Errorf("%w: divergence on %T", geom.ErrUnsupported, f.geometry)
	}
	axes := g.Axes()
	dx := g.Dx()
	var total tensor.Tensor
	if f.IsStaggered() {
		parts := tensor.Unstack(f.values, "~vector")
		for i, a := range axes {
			n := g.Resolution().Size(a)
			lo, up := f.boundary.ValidOuterFaces(a)
			comp, err := extrapolation.Pad(parts[i], map[string][2]int{a: {b2i(!lo), b2i(!up)}}, f.boundary.Component(a))
			if err != nil {
				return Field{}, err
			}
			d := dx.At(map[string]int{"vector": i})
			diff := tensor.MulScalar(tensor.Sub(comp.Range(a, 1, n+1), comp.Range(a, 0, n)), 1/d)
			if i == 0 {
				total = diff
			} else {
				total = tensor.Add(total, diff)
			}
		}
	} else {
		if !f.values.Shape().Has("vector") {
			return Field{}, fmt.Errorf("divergence requires a vector field, got %v", f.values.Shape())
		}
		for i, a := range axes {
			n := g.Resolution().Size(a)
			comp := f.values.Item("vector", a)
			padded, err := extrapolation.Pad(comp, map[string][2]int{a: {1, 1}}, f.boundary.Component(a))
			if err != nil {
				return Field{}, err
			}
			d := dx.At(map[string]int{"vector": i})
			diff := tensor.MulScalar(tensor.Sub(padded.Range(a, 2, n+2), padded.Range(a, 0, n)), 1/(2*d))
			if i == 0 {
				total = diff
			} else {
				total = tensor.Add(total, diff)
			}
		}
	}
	return New(g, total, f.boundary.SpatialGradient())
}

// Curl computes the scalar vorticity of a centered 2D vector field.
func Curl(f Field) (Field, error) {
	g, ok := f.geometry.(geom.UniformGrid)
	if !ok || f.IsStaggered() || g.SpatialRank() != 2 {
		return Field{}, fmt.Errorf("%w: curl needs a centered 2D grid field", geom.ErrUnsupported)
	}
	axes := g.Axes()
	dx := g.Dx()
	central := func(comp tensor.Tensor, along string, i int) (tensor.Tensor, error) {
		n := g.Resolution().Size(along)
		padded, err := extrapolation.Pad(comp, map[string][2]int{along: {1, 1}}, f.boundary.Component(along))
		if err != nil {
			return tensor.Tensor{}, err
		}
		d := dx.At(map[string]int{"vector": i})
		return tensor.MulScalar(tensor.Sub(padded.Range(along, 2, n+2), padded.Range(along, 0, n)), 1/(2*d)), nil
	}
	dvydx, err := central(f.values.Item("vector", axes[1]), axes[0], 0)
	if err != nil {
		return Field{}, err
	}
	dvxdy, err := central(f.values.Item("vector", axes[0]), axes[1], 1)
	if err != nil {
		return Field{}, err
	}
	return New(g, tensor.Sub(dvydx, dvxdy), f.boundary.SpatialGradient())
}

// Laplace applies the second-order Laplacian. Grid fields use the
// standard five-point stencil per axis; mesh fields use the sparse
// edge-weighted stencil from the cell connectivity.
func Laplace(f Field) (Field, error) {
	switch g := f.geometry.(type) {
	case geom.UniformGrid:
		if f.IsStaggered() {
			return Field{}, fmt.Errorf("%w: laplace of staggered values", geom.ErrUnsupported)
		}
		axes := g.Axes()
		dx := g.Dx()
		var total tensor.Tensor
		for i, a := range axes {
			n := g.Resolution().Size(a)
			padded, err := extrapolation.Pad(f.values, map[string][2]int{a: {1, 1}}, f.boundary)
			if err != nil {
				return Field{}, err
			}
			hi := padded.Range(a, 2, n+2)
			mid := padded.Range(a, 1, n+1)
			lo := padded.Range(a, 0, n)
			d := dx.At(map[string]int{"vector": i})
			term := tensor.MulScalar(
				tensor.Add(tensor.Sub(hi, tensor.MulScalar(mid, 2)), lo), 1/(d*d))
			if i == 0 {
				total = term
			} else {
				total = tensor.Add(total, term)
			}
		}
		return New(g, total, f.boundary.SpatialGradient())
	case *geom.Mesh:
		vals := f.values
		out := tensor.Zeros(vals.Shape())
		vol := g.Volume()
		conn := g.CellConnectivity()
		conn.DoNonZero(func(i, j int, w float64) {
			vi := vals.At(map[string]int{"cells": i})
			vj := vals.At(map[string]int{"cells": j})
			idx := map[string]int{"cells": i}
			out.Set(idx, out.At(idx)+w*(vj-vi)/vol.At(idx))
		})
		return New(g, out, f.boundary)
	}
	return Field{}, fmt.Errorf("%w: laplace on %T", geom.ErrUnsupported, f.geometry)
}

// Downsample2x halves the resolution of a centered grid field by
// averaging 2^d blocks. Every axis must have even resolution.
func Downsample2x(f Field) (Field, error) {
	g, ok := f.geometry.(geom.UniformGrid)
	if !ok || f.IsStaggered() {
		return Field{}, fmt.Errorf("%w: downsample on %T", geom.ErrUnsupported, f.geometry)
	}
	axes := g.Axes()
	dims := make([]tensor.Dim, len(axes))
	for i, a := range axes {
		n := g.Resolution().Size(a)
		if n%2 != 0 {
			return Field{}, fmt.Errorf("downsample requires even resolution, %s has %d", a, n)
		}
		dims[i] = tensor.SpatialDim(a, n/2)
	}
	coarseRes := tensor.NewShape(dims...)
	coarse, err := geom.NewUniformGrid(g.Bounds(), coarseRes)
	if err != nil {
		return Field{}, err
	}
	outShape := coarseRes.And(f.values.Shape().Without(axes...))
	out := tensor.Zeros(outShape)
	blocks := 1 << uint(len(axes))
	tensor.IterShape(outShape, func(idx map[string]int) {
		sum := 0.0
		src := make(map[string]int, len(idx))
		for corner := 0; corner < blocks; corner++ {
			for k, v := range idx {
				src[k] = v
			}
			for ai, a := range axes {
				off := 0
				if corner&(1<<uint(ai)) != 0 {
					off = 1
				}
				src[a] = idx[a]*2 + off
			}
			sum += f.values.At(src)
		}
		out.Set(idx, sum/float64(blocks))
	})
	return New(coarse, out, f.boundary)
}

// Downsample repeatedly halves the resolution; only power-of-two
// factors are accepted.
func Downsample(f Field, factor int) (Field, error) {
	if factor < 1 || factor&(factor-1) != 0 {
		return Field{}, fmt.Errorf("downsample factor must be a power of two, got %d", factor)
	}
	out := f
	var err error
	for factor >= 2 {
		out, err = Downsample2x(out)
		if err != nil {
			return Field{}, err
		}
		factor /= 2
	}
	return out, nil
}
