package extrapolation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupeshkmr/phiflow/tensor"
)

func TestConstantAlgebra(t *testing.T) {
	two, err := Add(ONE, ONE)
	require.NoError(t, err)
	assert.True(t, ConstantOf(2).Equals(two))

	zero, err := Sub(ONE, ONE)
	require.NoError(t, err)
	assert.True(t, ZERO.Equals(zero))

	one, err := Mul(ONE, ONE)
	require.NoError(t, err)
	assert.True(t, ONE.Equals(one))

	one, err = Div(ONE, ONE)
	require.NoError(t, err)
	assert.True(t, ONE.Equals(one))

	zero, err = Div(ZERO, ONE)
	require.NoError(t, err)
	assert.True(t, ZERO.Equals(zero))
}

func TestConstantPeriodicIdentities(t *testing.T) {
	cases := []struct {
		op   func(a, b Extrapolation) (Extrapolation, error)
		a, b Extrapolation
		want Extrapolation
	}{
		{Add, PERIODIC, ZERO, PERIODIC},
		{Sub, PERIODIC, ZERO, PERIODIC},
		{Add, ZERO, PERIODIC, PERIODIC},
		{Div, PERIODIC, ONE, PERIODIC},
		{Mul, PERIODIC, ONE, PERIODIC},
		{Mul, PERIODIC, ZERO, ZERO},
	}
	for _, c := range cases {
		got, err := c.op(c.a, c.b)
		require.NoError(t, err)
		assert.True(t, c.want.Equals(got), "%s ? %s", c.a.Name(), c.b.Name())
	}
}

func TestPeriodicPeriodic(t *testing.T) {
	for _, op := range []func(a, b Extrapolation) (Extrapolation, error){Add, Sub, Mul, Div} {
		got, err := op(PERIODIC, PERIODIC)
		require.NoError(t, err)
		assert.True(t, PERIODIC.Equals(got))
	}
}

func TestIncompatibleCombinations(t *testing.T) {
	var incompat *IncompatibleExtrapolationsError

	_, err := Add(PERIODIC, BOUNDARY)
	require.Error(t, err)
	assert.True(t, errors.As(err, &incompat))

	_, err = Add(PERIODIC, ONE)
	require.Error(t, err)
	assert.True(t, errors.As(err, &incompat))

	_, err = Add(PERIODIC, SYMMETRIC)
	require.Error(t, err)
	assert.True(t, errors.As(err, &incompat))

	_, err = Div(ONE, PERIODIC)
	require.Error(t, err)
	assert.True(t, errors.As(err, &incompat))
}

func TestConstantPad(t *testing.T) {
	shape := tensor.NewShape(
		tensor.SpatialDim("x", 3),
		tensor.SpatialDim("y", 4),
		tensor.SpatialDim("z", 5),
		tensor.BatchDim("a", 1),
	)
	widths := map[string][2]int{
		"x": {1, 1}, "y": {1, 0}, "z": {0, 1}, "a": {0, 0},
	}
	outShape := tensor.NewShape(
		tensor.SpatialDim("x", 5),
		tensor.SpatialDim("y", 5),
		tensor.SpatialDim("z", 6),
		tensor.BatchDim("a", 1),
	)

	for _, c := range []struct {
		in   tensor.Tensor
		ext  Extrapolation
		want tensor.Tensor
	}{
		{tensor.Zeros(shape), ZERO, tensor.Zeros(outShape)},
		{tensor.Ones(shape), ONE, tensor.Ones(outShape)},
		{tensor.Full(shape, -1), ConstantOf(-1), tensor.Full(outShape, -1)},
	} {
		got, err := Pad(c.in, widths, c.ext)
		require.NoError(t, err)
		assert.True(t, c.want.Shape().SameSizes(got.Shape()))
		assert.True(t, tensor.AllClose(c.want, got, 1e-12))
	}
}

// meshgrid2 builds the 2-component coordinate grid matching
// meshgrid([1,2,3,4], [5,6,7]).
func meshgrid2(xs, ys []float64) tensor.Tensor {
	shape := tensor.NewShape(
		tensor.SpatialDim("x", len(xs)),
		tensor.SpatialDim("y", len(ys)),
		tensor.Vector("x", "y"),
	)
	out := tensor.Zeros(shape)
	for i, xv := range xs {
		for j, yv := range ys {
			out.Set(map[string]int{"x": i, "y": j, "vector": 0}, xv)
			out.Set(map[string]int{"x": i, "y": j, "vector": 1}, yv)
		}
	}
	return out
}

func TestMixedPadExactValues(t *testing.T) {
	a := meshgrid2([]float64{1, 2, 3, 4}, []float64{5, 6, 7})
	ext := NewMixed(map[string][2]Extrapolation{
		"x": Uniform(PERIODIC),
		"y": {ONE, REFLECT},
	})
	p, err := Pad(a, map[string][2]int{"x": {1, 2}, "y": {3, 4}}, ext)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Shape().Size("x"))
	assert.Equal(t, 10, p.Shape().Size("y"))

	// The central slice recovers the original grid.
	center := p.Range("x", 1, 5).Range("y", 3, 6)
	assert.True(t, tensor.AllClose(a, center, 1e-12))

	// The first 3 rows along y equal 1 everywhere.
	low := p.Range("y", 0, 3)
	assert.True(t, tensor.AllClose(tensor.Ones(low.Shape()), low, 1e-12))

	// Full reference, component by component.
	wantX := [][]float64{ // [y][x], x-coordinate component
		{1, 1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1, 1},
		{4, 1, 2, 3, 4, 1, 2},
		{4, 1, 2, 3, 4, 1, 2},
		{4, 1, 2, 3, 4, 1, 2},
		{4, 1, 2, 3, 4, 1, 2},
		{4, 1, 2, 3, 4, 1, 2},
		{4, 1, 2, 3, 4, 1, 2},
		{4, 1, 2, 3, 4, 1, 2},
	}
	wantY := [][]float64{
		{1, 1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1, 1},
		{5, 5, 5, 5, 5, 5, 5},
		{6, 6, 6, 6, 6, 6, 6},
		{7, 7, 7, 7, 7, 7, 7},
		{6, 6, 6, 6, 6, 6, 6},
		{5, 5, 5, 5, 5, 5, 5},
		{6, 6, 6, 6, 6, 6, 6},
		{7, 7, 7, 7, 7, 7, 7},
	}
	for j := 0; j < 10; j++ {
		for i := 0; i < 7; i++ {
			assert.Equal(t, wantX[j][i], p.At(map[string]int{"x": i, "y": j, "vector": 0}),
				"x component at x=%d y=%d", i, j)
			assert.Equal(t, wantY[j][i], p.At(map[string]int{"x": i, "y": j, "vector": 1}),
				"y component at x=%d y=%d", i, j)
		}
	}
}

func TestPadPreservesCollapsedDims(t *testing.T) {
	base := tensor.Zeros(tensor.NewShape(
		tensor.SpatialDim("x", 10),
		tensor.SpatialDim("y", 10),
	))
	a := tensor.Expand(base,
		tensor.BatchDim("b", 2),
		tensor.BatchDim("batch", 10),
	)
	require.True(t, a.IsCollapsed("b"))
	require.True(t, a.IsCollapsed("batch"))

	for _, ext := range []Extrapolation{ZERO, PERIODIC} {
		p, err := Pad(a, map[string][2]int{"x": {1, 2}}, ext)
		require.NoError(t, err)
		assert.Equal(t, 13, p.Shape().Size("x"))
		assert.Equal(t, 2, p.Shape().Size("b"))
		assert.Equal(t, 10, p.Shape().Size("batch"))
		assert.True(t, p.IsCollapsed("b"), "%s padding should keep b collapsed", ext.Name())
		assert.True(t, p.IsCollapsed("batch"))
		assert.True(t, tensor.AllClose(p, tensor.Zeros(p.Shape()), 1e-12))
	}
}

func TestBoundaryAndSymmetricPad(t *testing.T) {
	a := tensor.FromData(tensor.NewShape(tensor.SpatialDim("x", 3)), []float64{1, 2, 3})

	p, err := Pad(a, map[string][2]int{"x": {2, 2}}, BOUNDARY)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 2, 3, 3, 3}, p.Native())

	p, err = Pad(a, map[string][2]int{"x": {2, 2}}, SYMMETRIC)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 1, 2, 3, 3, 2}, p.Native())

	p, err = Pad(a, map[string][2]int{"x": {2, 2}}, REFLECT)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2, 1, 2, 3, 2, 1}, p.Native())
}

func TestValidOuterFaces(t *testing.T) {
	lo, hi := ZERO.ValidOuterFaces("x")
	assert.False(t, lo)
	assert.False(t, hi)

	lo, hi = PERIODIC.ValidOuterFaces("x")
	assert.True(t, lo)
	assert.False(t, hi)

	lo, hi = BOUNDARY.ValidOuterFaces("x")
	assert.True(t, lo)
	assert.True(t, hi)

	m := NewMixed(map[string][2]Extrapolation{"x": {ZERO, BOUNDARY}})
	lo, hi = m.ValidOuterFaces("x")
	assert.False(t, lo)
	assert.True(t, hi)
}

func TestMixedCombine(t *testing.T) {
	m1 := NewMixed(map[string][2]Extrapolation{"x": Uniform(PERIODIC), "y": Uniform(ZERO)})
	m2 := NewMixed(map[string][2]Extrapolation{"x": Uniform(PERIODIC), "y": Uniform(ONE)})

	got, err := Add(m1, m2)
	require.NoError(t, err)
	want := NewMixed(map[string][2]Extrapolation{"x": Uniform(PERIODIC), "y": Uniform(ONE)})
	assert.True(t, want.Equals(got))

	// A boundary present on one side only combines against the identity.
	m3 := NewMixed(map[string][2]Extrapolation{"x": Uniform(PERIODIC)})
	got, err = Add(m1, m3)
	require.NoError(t, err)
	assert.True(t, m1.Equals(got))

	// Periodic against a nonzero constant still fails inside Mixed.
	m4 := NewMixed(map[string][2]Extrapolation{"x": Uniform(ONE)})
	_, err = Add(m1, m4)
	var incompat *IncompatibleExtrapolationsError
	require.Error(t, err)
	assert.True(t, errors.As(err, &incompat))
}
