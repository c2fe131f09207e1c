package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeAlgebra(t *testing.T) {
	s := NewShape(BatchDim("b", 2), SpatialDim("x", 4), SpatialDim("y", 3), Vector("x", "y"))
	assert.Equal(t, 4, s.Rank())
	assert.Equal(t, 48, s.Volume())
	assert.True(t, s.Has("x"))
	assert.Equal(t, []string{"x", "y"}, s.ItemNames("vector"))
	assert.Equal(t, 2, s.Spatial().Rank())
	assert.Equal(t, 3, s.NonBatch().Rank())
	assert.Equal(t, 3, s.NonChannel().Rank())
	assert.True(t, s.Without("b", "vector").Equal(NewShape(SpatialDim("x", 4), SpatialDim("y", 3))))
}

func TestIndexingAndSlicing(t *testing.T) {
	s := NewShape(SpatialDim("x", 3), SpatialDim("y", 2))
	v := FromData(s, []float64{0, 1, 2, 3, 4, 5})
	assert.Equal(t, 3.0, v.At(map[string]int{"x": 1, "y": 1}))

	row := v.Index("x", 2)
	assert.False(t, row.Shape().Has("x"))
	assert.Equal(t, 5.0, row.At(map[string]int{"y": 1}))

	mid := v.Range("x", 1, 3)
	assert.Equal(t, 2, mid.Shape().Size("x"))
	assert.Equal(t, 2.0, mid.At(map[string]int{"x": 0, "y": 0}))

	vec := FromData(NewShape(Vector("x", "y")), []float64{7, 9})
	assert.Equal(t, 9.0, vec.Item("vector", "y").Scalar())
}

func TestBroadcastByName(t *testing.T) {
	a := FromData(NewShape(SpatialDim("x", 3)), []float64{1, 2, 3})
	b := FromData(NewShape(SpatialDim("y", 2)), []float64{10, 20})
	sum := Add(a, b)
	assert.True(t, sum.Shape().Has("x"))
	assert.True(t, sum.Shape().Has("y"))
	assert.Equal(t, 23.0, sum.At(map[string]int{"x": 2, "y": 1}))
}

func TestCollapsedDims(t *testing.T) {
	v := Expand(Wrap(1.5), SpatialDim("x", 100), SpatialDim("y", 100))
	assert.True(t, v.IsCollapsed("x"))
	assert.Equal(t, 1.5, v.At(map[string]int{"x": 99, "y": 0}))
	// elementwise maps keep the collapsed layout
	m := MulScalar(v, 2)
	assert.Equal(t, 3.0, m.At(map[string]int{"x": 50, "y": 50}))
}

func TestStackAndUnstack(t *testing.T) {
	x := FromData(NewShape(SpatialDim("x", 2)), []float64{1, 2})
	y := FromData(NewShape(SpatialDim("x", 2)), []float64{3, 4})
	{ // uniform stack materializes the new dim
		st := Stack(Vector("u", "v"), x, y)
		assert.Equal(t, 2, st.Shape().Size("vector"))
		assert.Equal(t, 4.0, st.At(map[string]int{"vector": 1, "x": 1}))
		parts := Unstack(st, "vector")
		assert.True(t, AllClose(parts[1], y, 1e-15))
	}
	{ // mismatched part sizes stay as a non-uniform stack
		short := FromData(NewShape(SpatialDim("x", 3)), []float64{5, 6, 7})
		st := Stack(DualItemsDim("vector", "a", "b"), x, short)
		assert.True(t, st.IsStacked())
		assert.False(t, st.IsUniform())
		parts := Unstack(st, "~vector")
		assert.Equal(t, 3, parts[1].Shape().Size("x"))
	}
}

func TestConcat(t *testing.T) {
	a := FromData(NewShape(SpatialDim("x", 2)), []float64{1, 2})
	b := FromData(NewShape(SpatialDim("x", 3)), []float64{3, 4, 5})
	c := Concat("x", a, b)
	assert.Equal(t, 5, c.Shape().Size("x"))
	assert.Equal(t, 5.0, c.At(map[string]int{"x": 4}))
}

func TestReductions(t *testing.T) {
	s := NewShape(SpatialDim("x", 2), SpatialDim("y", 3))
	v := FromData(s, []float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 21.0, Sum(v, "x", "y").Scalar())
	assert.Equal(t, 3.5, Mean(v, "x", "y").Scalar())
	assert.Equal(t, 6.0, Max(v, "x", "y").Scalar())

	perY := Sum(v, "x")
	assert.False(t, perY.Shape().Has("x"))
	assert.Equal(t, 5.0, perY.At(map[string]int{"y": 0}))
}

func TestAllCloseAlignsByName(t *testing.T) {
	a := FromData(NewShape(SpatialDim("x", 2), SpatialDim("y", 2)), []float64{1, 2, 3, 4})
	b := FromData(NewShape(SpatialDim("y", 2), SpatialDim("x", 2)), []float64{1, 3, 2, 4})
	assert.True(t, AllClose(a, b, 1e-15))
	b = MulScalar(b, 1+1e-6)
	assert.False(t, AllClose(a, b, 1e-9))
}

func TestVectorHelpers(t *testing.T) {
	v := FromData(NewShape(Vector("x", "y")), []float64{3, 4})
	assert.Equal(t, 5.0, Length(v, "vector").Scalar())

	rot := RotationMatrix2D(math.Pi / 2)
	r := RotateVector(v, rot, false)
	assert.InDelta(t, -4.0, r.Item("vector", "x").Scalar(), 1e-12)
	assert.InDelta(t, 3.0, r.Item("vector", "y").Scalar(), 1e-12)

	back := RotateVector(r, rot, true)
	assert.True(t, AllClose(v, back, 1e-12))
}
