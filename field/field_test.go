package field

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rupeshkmr/phiflow/extrapolation"
	"github.com/rupeshkmr/phiflow/geom"
	"github.com/rupeshkmr/phiflow/tensor"
)

func testGrid(t *testing.T, nx, ny int) geom.UniformGrid {
	t.Helper()
	g, err := geom.NewGrid([]string{"x", "y"}, []int{nx, ny}, []float64{float64(nx), float64(ny)})
	assert.NoError(t, err)
	return g
}

// linearField samples 2x+y at the cell centers.
func linearField(t *testing.T, g geom.UniformGrid, bnd extrapolation.Extrapolation) Field {
	t.Helper()
	vals := tensor.Zeros(g.Resolution())
	c := g.Center()
	tensor.IterShape(g.Resolution(), func(idx map[string]int) {
		idx["vector"] = 0
		x := c.At(idx)
		idx["vector"] = 1
		y := c.At(idx)
		delete(idx, "vector")
		vals.Set(idx, 2*x+y)
	})
	f, err := New(g, vals, bnd)
	assert.NoError(t, err)
	return f
}

func TestFieldConstruction(t *testing.T) {
	g := testGrid(t, 4, 3)
	{ // scalars broadcast over the full resolution
		f, err := NewCentered(g, 1.5, extrapolation.ZERO)
		assert.NoError(t, err)
		assert.True(t, f.values.Shape().Has("x"))
		assert.Equal(t, 4, f.values.Shape().Size("x"))
		assert.Equal(t, 1.5, f.values.At(map[string]int{"x": 2, "y": 1}))
		assert.True(t, f.values.IsCollapsed("x"))
	}
	{ // mismatched spatial sizes fail at construction
		bad := tensor.Zeros(tensor.NewShape(tensor.SpatialDim("x", 7)))
		_, err := New(g, bad, extrapolation.ZERO)
		assert.Error(t, err)
	}
	{ // nil geometry fails
		_, err := New(nil, tensor.Wrap(0), extrapolation.ZERO)
		assert.Error(t, err)
	}
}

func TestStaggeredInvariant(t *testing.T) {
	g := testGrid(t, 4, 3)
	{ // constant boundaries store interior faces only
		f, err := NewStaggered(g, 0, extrapolation.ZERO)
		assert.NoError(t, err)
		assert.True(t, f.IsStaggered())
		assert.False(t, f.IsCentered())
		assert.Equal(t, AtFace, f.SampledAt())
		parts := tensor.Unstack(f.Values(), "~vector")
		assert.Equal(t, 3, parts[0].Shape().Size("x"))
		assert.Equal(t, 3, parts[0].Shape().Size("y"))
		assert.Equal(t, 4, parts[1].Shape().Size("x"))
		assert.Equal(t, 2, parts[1].Shape().Size("y"))
	}
	{ // periodic keeps one outer face per axis
		f, err := NewStaggered(g, 0, extrapolation.PERIODIC)
		assert.NoError(t, err)
		parts := tensor.Unstack(f.Values(), "~vector")
		assert.Equal(t, 4, parts[0].Shape().Size("x"))
		assert.Equal(t, 3, parts[1].Shape().Size("y"))
	}
	{ // centered fields are never staggered
		f, err := NewCentered(g, 1, extrapolation.ZERO)
		assert.NoError(t, err)
		assert.True(t, f.IsCentered())
		assert.Equal(t, AtCenter, f.SampledAt())
	}
}

func TestFieldRoundTrip(t *testing.T) {
	g := testGrid(t, 4, 3)
	{ // centered: resampling onto its own representation is the identity
		f := linearField(t, g, extrapolation.BOUNDARY)
		back, err := f.At(f)
		assert.NoError(t, err)
		assert.True(t, f.Equal(back))
	}
	{ // staggered round trip
		f, err := NewStaggered(g, 2.5, extrapolation.PERIODIC)
		assert.NoError(t, err)
		back, err := f.At(f)
		assert.NoError(t, err)
		assert.True(t, f.Equal(back))
	}
}

func TestArithmeticBoundaryPropagation(t *testing.T) {
	g := testGrid(t, 4, 3)
	{ // field+field combines boundaries under the same operator
		f1 := linearField(t, g, extrapolation.PERIODIC)
		f2 := linearField(t, g, extrapolation.ZERO)
		sum, err := f1.Add(f2)
		assert.NoError(t, err)
		assert.True(t, sum.Boundary().Equals(extrapolation.PERIODIC))
		assert.Equal(t, 2*f1.Values().At(map[string]int{"x": 1, "y": 1}),
			sum.Values().At(map[string]int{"x": 1, "y": 1}))
	}
	{ // incompatible boundaries surface the distinguished error
		f1 := linearField(t, g, extrapolation.PERIODIC)
		f2 := linearField(t, g, extrapolation.ONE)
		_, err := f1.Add(f2)
		var incompatible *extrapolation.IncompatibleExtrapolationsError
		assert.True(t, errors.As(err, &incompatible))
	}
	{ // scalars leave the boundary untouched
		f := linearField(t, g, extrapolation.PERIODIC)
		shifted := f.AddScalar(3)
		assert.True(t, shifted.Boundary().Equals(extrapolation.PERIODIC))
		assert.Equal(t, f.Values().At(map[string]int{"x": 0, "y": 0})+3,
			shifted.Values().At(map[string]int{"x": 0, "y": 0}))
	}
	{ // negation flips values and boundary together
		f := linearField(t, g, extrapolation.ONE)
		n := f.Neg()
		assert.True(t, n.Boundary().Equals(extrapolation.ConstantOf(-1)))
	}
}

func TestWithBoundaryRestoresFaces(t *testing.T) {
	g := testGrid(t, 4, 3)
	f, err := NewStaggered(g, 1, extrapolation.PERIODIC)
	assert.NoError(t, err)
	{ // periodic -> constant trims the redundant lower face
		zf, err := f.WithBoundary(extrapolation.ZERO)
		assert.NoError(t, err)
		parts := tensor.Unstack(zf.Values(), "~vector")
		assert.Equal(t, 3, parts[0].Shape().Size("x"))
		assert.Equal(t, 2, parts[1].Shape().Size("y"))
	}
	{ // constant -> boundary re-adds both outer faces by padding
		zf, err := f.WithBoundary(extrapolation.ZERO)
		assert.NoError(t, err)
		bf, err := zf.WithBoundary(extrapolation.BOUNDARY)
		assert.NoError(t, err)
		parts := tensor.Unstack(bf.Values(), "~vector")
		assert.Equal(t, 5, parts[0].Shape().Size("x"))
		assert.Equal(t, 4, parts[1].Shape().Size("y"))
	}
}

func TestStaggeredTensor(t *testing.T) {
	g := testGrid(t, 4, 3)
	f, err := NewStaggered(g, 2, extrapolation.ZERO)
	assert.NoError(t, err)
	dense, err := f.StaggeredTensor()
	assert.NoError(t, err)
	assert.True(t, dense.IsUniform())
	assert.Equal(t, 5, dense.Shape().Size("x"))
	assert.Equal(t, 4, dense.Shape().Size("y"))
	assert.Equal(t, 2, dense.Shape().Size("vector"))
	// outer faces were filled by the zero boundary
	assert.Equal(t, 0.0, dense.At(map[string]int{"x": 0, "y": 1, "vector": 0}))
	assert.Equal(t, 2.0, dense.At(map[string]int{"x": 1, "y": 1, "vector": 0}))
}

func TestSampleCentersToFaces(t *testing.T) {
	g := testGrid(t, 4, 3)
	{ // a linear vector field interpolates exactly onto faces
		axes := []string{"x", "y"}
		vals := tensor.Zeros(g.Resolution().WithDim(tensor.Vector(axes...)))
		c := g.Center()
		tensor.IterShape(g.Resolution(), func(idx map[string]int) {
			idx["vector"] = 0
			x := c.At(idx)
			vals.Set(idx, x)
			idx["vector"] = 1
			y := c.At(idx)
			vals.Set(idx, y)
			delete(idx, "vector")
		})
		f, err := New(g, vals, extrapolation.BOUNDARY)
		assert.NoError(t, err)
		faces, err := Sample(f, g, AtFace, extrapolation.BOUNDARY)
		assert.NoError(t, err)
		parts := tensor.Unstack(faces, "~vector")
		// interior x-face at x=1: component value equals the position
		assert.InDelta(t, 1.0, parts[0].At(map[string]int{"x": 1, "y": 0}), 1e-9)
		assert.InDelta(t, 2.0, parts[0].At(map[string]int{"x": 2, "y": 2}), 1e-9)
		// clamped outer face keeps the edge cell value
		assert.InDelta(t, 0.5, parts[0].At(map[string]int{"x": 0, "y": 0}), 1e-9)
	}
}

func TestSampleGeometryIndicator(t *testing.T) {
	g := testGrid(t, 4, 4)
	s, err := geom.NewSphere(geom.Vec([]string{"x", "y"}, []float64{2, 2}), tensor.Wrap(1))
	assert.NoError(t, err)
	vals, err := SampleGeometry(s, g, AtCenter, extrapolation.ZERO)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, vals.At(map[string]int{"x": 1, "y": 1})) // center (1.5,1.5) inside
	assert.Equal(t, 0.0, vals.At(map[string]int{"x": 0, "y": 0})) // center (0.5,0.5) outside
}

func TestScatter(t *testing.T) {
	g := testGrid(t, 4, 4)
	centers := tensor.Stack(tensor.InstanceDim("points", 2),
		geom.Vec([]string{"x", "y"}, []float64{0.5, 0.5}),
		geom.Vec([]string{"x", "y"}, []float64{0.6, 0.4}))
	pts, err := geom.NewPoint(centers)
	assert.NoError(t, err)
	vals := tensor.FromData(tensor.NewShape(tensor.InstanceDim("points", 2)), []float64{3, 5})
	f, err := New(pts, vals, extrapolation.ZERO)
	assert.NoError(t, err)
	{ // both points land in cell (0,0)
		sum, err := Scatter(f, g, "add")
		assert.NoError(t, err)
		assert.Equal(t, 8.0, sum.At(map[string]int{"x": 0, "y": 0}))
		assert.Equal(t, 0.0, sum.At(map[string]int{"x": 1, "y": 0}))
		mean, err := Scatter(f, g, "mean")
		assert.NoError(t, err)
		assert.Equal(t, 4.0, mean.At(map[string]int{"x": 0, "y": 0}))
	}
}

func TestOperators(t *testing.T) {
	g := testGrid(t, 6, 4)
	{ // gradient of a linear field is its slope, away from the border
		f := linearField(t, g, extrapolation.BOUNDARY)
		grad, err := SpatialGradient(f, AtCenter)
		assert.NoError(t, err)
		assert.InDelta(t, 2.0, grad.Values().At(map[string]int{"x": 2, "y": 1, "vector": 0}), 1e-9)
		assert.InDelta(t, 1.0, grad.Values().At(map[string]int{"x": 2, "y": 1, "vector": 1}), 1e-9)
		assert.True(t, grad.Boundary().Equals(extrapolation.ZERO))
	}
	{ // divergence of a uniform staggered field vanishes
		f, err := NewStaggered(g, 1, extrapolation.PERIODIC)
		assert.NoError(t, err)
		div, err := Divergence(f)
		assert.NoError(t, err)
		assert.InDelta(t, 0.0, div.Values().At(map[string]int{"x": 2, "y": 2}), 1e-12)
	}
	{ // laplace of x^2 is 2 in the interior
		vals := tensor.Zeros(g.Resolution())
		c := g.Center()
		tensor.IterShape(g.Resolution(), func(idx map[string]int) {
			idx["vector"] = 0
			x := c.At(idx)
			delete(idx, "vector")
			vals.Set(idx, x*x)
		})
		f, err := New(g, vals, extrapolation.BOUNDARY)
		assert.NoError(t, err)
		lap, err := Laplace(f)
		assert.NoError(t, err)
		assert.InDelta(t, 2.0, lap.Values().At(map[string]int{"x": 2, "y": 1}), 1e-9)
	}
	{ // downsampling averages 2x2 blocks and rejects odd factors
		f := linearField(t, g, extrapolation.ZERO)
		half, err := Downsample(f, 2)
		assert.NoError(t, err)
		assert.Equal(t, 3, half.Resolution().Size("x"))
		assert.Equal(t, 2, half.Resolution().Size("y"))
		want := (f.Values().At(map[string]int{"x": 0, "y": 0}) +
			f.Values().At(map[string]int{"x": 1, "y": 0}) +
			f.Values().At(map[string]int{"x": 0, "y": 1}) +
			f.Values().At(map[string]int{"x": 1, "y": 1})) / 4
		assert.InDelta(t, want, half.Values().At(map[string]int{"x": 0, "y": 0}), 1e-12)
		_, err = Downsample(f, 3)
		assert.Error(t, err)
	}
}

func TestMeshField(t *testing.T) {
	verts := [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	cells := [][3]int{{0, 1, 2}, {0, 2, 3}}
	m, err := geom.NewTriangleMesh([]string{"x", "y"}, verts, cells)
	assert.NoError(t, err)
	vals := tensor.FromData(tensor.NewShape(tensor.InstanceDim("cells", 2)), []float64{1, 3})
	f, err := New(m, vals, extrapolation.ZERO)
	assert.NoError(t, err)
	{ // mesh fields are centered and sliceable
		assert.True(t, f.IsCentered())
		assert.True(t, f.IsMesh())
		one, err := f.Slice(map[string]int{"cells": 1})
		assert.NoError(t, err)
		assert.Equal(t, 3.0, one.Values().Scalar())
	}
	{ // mesh laplace flows between the two cells
		lap, err := Laplace(f)
		assert.NoError(t, err)
		v0 := lap.Values().At(map[string]int{"cells": 0})
		v1 := lap.Values().At(map[string]int{"cells": 1})
		assert.True(t, v0 > 0)
		assert.True(t, v1 < 0)
		assert.InDelta(t, -v1, v0, 1e-12)
	}
	{ // sampling a mesh onto a grid picks the containing cell
		g := testGrid(t, 2, 2)
		scaled := g.Scaled(0.5).(geom.UniformGrid)
		grid, err := Sample(f, scaled, AtCenter, extrapolation.ZERO)
		assert.NoError(t, err)
		assert.Equal(t, 1.0, grid.At(map[string]int{"x": 1, "y": 0}))
		assert.Equal(t, 3.0, grid.At(map[string]int{"x": 0, "y": 1}))
	}
}

func TestDimensionHandle(t *testing.T) {
	g := testGrid(t, 4, 3)
	f := linearField(t, g, extrapolation.ZERO)
	{
		d := f.Dimension("x")
		assert.True(t, d.Exists())
		assert.Equal(t, 4, d.Size())
		assert.True(t, d.IsSpatial())
		assert.False(t, d.IsBatch())
	}
	{
		assert.False(t, f.Dimension("ghost").Exists())
		_, err := f.Dimension("ghost").Index(0)
		assert.Error(t, err)
	}
}

func TestEmbeddingBoundary(t *testing.T) {
	outer := testGrid(t, 8, 8)
	bg := linearField(t, outer, extrapolation.BOUNDARY)
	// inner grid covering cells [2,6)x[2,6) of the outer grid
	innerBox, err := geom.NewCube([]string{"x", "y"}, []float64{2, 2}, []float64{6, 6})
	assert.NoError(t, err)
	inner, err := geom.NewUniformGrid(innerBox, tensor.NewShape(tensor.SpatialDim("x", 4), tensor.SpatialDim("y", 4)))
	assert.NoError(t, err)
	vals, err := Sample(bg, inner, AtCenter, extrapolation.ZERO)
	assert.NoError(t, err)
	f, err := New(inner, vals, Embed(bg))
	assert.NoError(t, err)
	// sampling past the inner domain pulls values from the embedded field
	target, err := geom.NewCube([]string{"x", "y"}, []float64{1, 2}, []float64{7, 6})
	assert.NoError(t, err)
	wide, err := geom.NewUniformGrid(target, tensor.NewShape(tensor.SpatialDim("x", 6), tensor.SpatialDim("y", 4)))
	assert.NoError(t, err)
	out, err := Sample(f, wide, AtCenter, extrapolation.ZERO)
	assert.NoError(t, err)
	// cell (0,0) of the wide grid has center (1.5, 2.5), outside the
	// inner domain; the embedded linear field gives 2*1.5+2.5
	assert.InDelta(t, 5.5, out.At(map[string]int{"x": 0, "y": 0}), 1e-9)
	// interior value matches the inner samples
	assert.InDelta(t, 2*2.5+2.5, out.At(map[string]int{"x": 1, "y": 0}), 1e-9)
}

func TestStackAndConcat(t *testing.T) {
	g := testGrid(t, 4, 3)
	f1, err := NewCentered(g, 1, extrapolation.ZERO)
	assert.NoError(t, err)
	f2, err := NewCentered(g, 2, extrapolation.ZERO)
	assert.NoError(t, err)

	{ // stacking adds the new dimension across geometry and values
		st, err := Stack(tensor.BatchDim("cases", 0), f1, f2)
		assert.NoError(t, err)
		assert.Equal(t, 2, st.Values().Shape().Size("cases"))
		assert.Equal(t, 2.0, st.Values().At(map[string]int{"cases": 1, "x": 0, "y": 0}))
	}
	{ // mismatched boundary rules refuse to stack
		f3, err := NewCentered(g, 3, extrapolation.PERIODIC)
		assert.NoError(t, err)
		_, err = Stack(tensor.BatchDim("cases", 0), f1, f3)
		assert.Error(t, err)
	}
	{ // concat joins along an existing batch dimension
		a, err := Stack(tensor.BatchDim("cases", 0), f1, f2)
		assert.NoError(t, err)
		av, err := f1.WithValues(a.Values())
		assert.NoError(t, err)
		bv, err := f1.WithValues(a.Values())
		assert.NoError(t, err)
		joined, err := Concat("cases", av, bv)
		assert.NoError(t, err)
		assert.Equal(t, 4, joined.Values().Shape().Size("cases"))
	}
	{ // spatial concat is not supported
		_, err := Concat("x", f1, f2)
		assert.Error(t, err)
	}
}

func TestGradientDimFilter(t *testing.T) {
	g := testGrid(t, 6, 4)
	f := linearField(t, g, extrapolation.BOUNDARY)
	grad, err := SpatialGradient(f, AtCenter, "x")
	assert.NoError(t, err)
	assert.Equal(t, 1, grad.Values().Shape().Size("vector"))
	assert.InDelta(t, 2.0, grad.Values().At(map[string]int{"x": 2, "y": 1, "vector": 0}), 1e-9)

	_, err = SpatialGradient(f, AtCenter, "q")
	assert.Error(t, err)
	_, err = SpatialGradient(f, AtFace, "x")
	assert.Error(t, err)
}
