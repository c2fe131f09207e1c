package geom

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rupeshkmr/phiflow/tensor"
)

// UniformGrid is an axis-aligned box subdivided into equally sized
// cells. Its resolution shape orders the spatial axes; the cell centers
// carry the vector dimension naming them.
type UniformGrid struct {
	bounds     Box
	resolution tensor.Shape
	center     tensor.Tensor // memoized cell centers
}

func NewUniformGrid(bounds Box, resolution tensor.Shape) (UniformGrid, error) {
	axes := bounds.Axes()
	if resolution.Rank() != len(axes) {
		return UniformGrid{}, fmt.Errorf("resolution %v does not match bounds axes %v", resolution, axes)
	}
	for i, d := range resolution.Dims() {
		if d.Kind != tensor.Spatial {
			return UniformGrid{}, fmt.Errorf("resolution dimension %q must be spatial", d.Name)
		}
		if d.Name != axes[i] {
			return UniformGrid{}, fmt.Errorf("resolution axis %q does not match bounds axis %q", d.Name, axes[i])
		}
		if d.Size < 1 {
			return UniformGrid{}, fmt.Errorf("resolution %s=%d must be positive", d.Name, d.Size)
		}
	}
	g := UniformGrid{bounds: bounds, resolution: resolution}
	g.center = g.computeCenters()
	return g, nil
}

// NewGrid builds a grid over [0, size] per axis from name/size pairs.
func NewGrid(axes []string, resolution []int, size []float64) (UniformGrid, error) {
	dims := make([]tensor.Dim, len(axes))
	lo := make([]float64, len(axes))
	for i, a := range axes {
		dims[i] = tensor.SpatialDim(a, resolution[i])
	}
	box, err := NewCube(axes, lo, size)
	if err != nil {
		return UniformGrid{}, err
	}
	return NewUniformGrid(box, tensor.NewShape(dims...))
}

func (g UniformGrid) computeCenters() tensor.Tensor {
	axes := g.Axes()
	shape := g.resolution.WithDim(tensor.Vector(axes...))
	out := tensor.Zeros(shape)
	dx := g.Dx()
	lower := g.bounds.Lower()
	idx := map[string]int{}
	var fill func(d int)
	fill = func(d int) {
		if d == len(axes) {
			for ai, a := range axes {
				idx["vector"] = ai
				v := lower.At(map[string]int{"vector": ai}) +
					(float64(idx[a])+0.5)*dx.At(map[string]int{"vector": ai})
				out.Set(idx, v)
			}
			delete(idx, "vector")
			return
		}
		for i := 0; i < g.resolution.Size(axes[d]); i++ {
			idx[axes[d]] = i
			fill(d + 1)
		}
	}
	fill(0)
	return out
}

func (g UniformGrid) Bounds() Box              { return g.bounds }
func (g UniformGrid) Resolution() tensor.Shape { return g.resolution }
func (g UniformGrid) Center() tensor.Tensor    { return g.center }

// Dx is the cell size per axis as a vector tensor.
func (g UniformGrid) Dx() tensor.Tensor {
	res := make([]float64, g.resolution.Rank())
	for i, d := range g.resolution.Dims() {
		res[i] = float64(d.Size)
	}
	return tensor.Div(g.bounds.Size(), Vec(g.Axes(), res))
}

func (g UniformGrid) Shape() tensor.Shape {
	return g.resolution.WithDim(tensor.Vector(g.Axes()...))
}

func (g UniformGrid) SpatialRank() int { return g.resolution.Rank() }

func (g UniformGrid) Axes() []string { return g.bounds.Axes() }

// Volume is the volume of one cell.
func (g UniformGrid) Volume() tensor.Tensor {
	dx := g.Dx()
	return tensor.Reduce(dx, []string{"vector"}, 1, func(a, v float64) float64 { return a * v })
}

func (g UniformGrid) LiesInside(loc tensor.Tensor) (tensor.Tensor, error) {
	return g.bounds.LiesInside(loc)
}

func (g UniformGrid) ApproximateSignedDistance(loc tensor.Tensor) (tensor.Tensor, error) {
	return g.bounds.ApproximateSignedDistance(loc)
}

func (g UniformGrid) BoundingRadius() tensor.Tensor { return g.bounds.BoundingRadius() }

func (g UniformGrid) BoundingHalfExtent() tensor.Tensor { return g.bounds.BoundingHalfExtent() }

func (g UniformGrid) At(center tensor.Tensor) Geometry {
	delta := tensor.Sub(center, g.bounds.Center())
	return g.Shifted(delta)
}

func (g UniformGrid) Shifted(delta tensor.Tensor) Geometry {
	box := g.bounds.Shifted(delta).(Box)
	out, err := NewUniformGrid(box, g.resolution)
	if err != nil {
		panic(err)
	}
	return out
}

func (g UniformGrid) Rotated(rot *mat.Dense) (Geometry, error) {
	return nil, fmt.Errorf("%w: rotating a uniform grid", ErrUnsupported)
}

func (g UniformGrid) Scaled(factor float64) Geometry {
	box := g.bounds.Scaled(factor).(Box)
	out, err := NewUniformGrid(box, g.resolution)
	if err != nil {
		panic(err)
	}
	return out
}

// Slice with a spatial selection drops the axis, producing a grid of
// lower rank; other selections leave the grid unchanged.
func (g UniformGrid) Slice(sel map[string]int) Geometry {
	out := g
	for name := range sel {
		if out.resolution.Has(name) {
			keep := make([]string, 0, len(out.Axes()))
			for _, a := range out.Axes() {
				if a != name {
					keep = append(keep, a)
				}
			}
			lower := out.bounds.Lower().Items("vector", keep...)
			upper := out.bounds.Upper().Items("vector", keep...)
			box, err := NewBox(lower, upper)
			if err != nil {
				panic(err)
			}
			sub, err := NewUniformGrid(box, out.resolution.Without(name))
			if err != nil {
				panic(err)
			}
			out = sub
		}
	}
	return out
}

func (g UniformGrid) EqualTo(other Geometry) bool {
	o, ok := other.(UniformGrid)
	return ok && g.resolution.Equal(o.resolution) && g.bounds.EqualTo(o.bounds)
}

// FaceShape carries the dual dimension that marks staggered values.
func (g UniformGrid) FaceShape() tensor.Shape {
	return tensor.NewShape(tensor.DualItemsDim("vector", g.Axes()...))
}

// faceCenterPart computes the face centers of one staggered component:
// along its own axis the positions sit on cell boundaries (resolution+1
// of them), along all others at cell centers.
func (g UniformGrid) faceCenterPart(axis string) tensor.Tensor {
	axes := g.Axes()
	dims := make([]tensor.Dim, 0, len(axes)+1)
	for _, d := range g.resolution.Dims() {
		size := d.Size
		if d.Name == axis {
			size++
		}
		dims = append(dims, tensor.SpatialDim(d.Name, size))
	}
	shape := tensor.NewShape(dims...).WithDim(tensor.Vector(axes...))
	out := tensor.Zeros(shape)
	dx := g.Dx()
	lower := g.bounds.Lower()
	tensor.IterShape(shape.Without("vector"), func(idx map[string]int) {
		for ai, a := range axes {
			off := 0.5
			if a == axis {
				off = 0
			}
			idx["vector"] = ai
			v := lower.At(map[string]int{"vector": ai}) +
				(float64(idx[a])+off)*dx.At(map[string]int{"vector": ai})
			out.Set(idx, v)
		}
		delete(idx, "vector")
	})
	return out
}

// FaceCenters stacks the per-component face positions along the dual
// vector dimension; the result is non-uniform.
func (g UniformGrid) FaceCenters() tensor.Tensor {
	axes := g.Axes()
	parts := make([]tensor.Tensor, len(axes))
	for i, a := range axes {
		parts[i] = g.faceCenterPart(a)
	}
	return tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...)
}

// FaceAreas gives the area of every face; uniform per component.
func (g UniformGrid) FaceAreas() tensor.Tensor {
	axes := g.Axes()
	dx := g.Dx()
	parts := make([]tensor.Tensor, len(axes))
	for i, a := range axes {
		area := 1.0
		for j, b := range axes {
			if b != a {
				area *= dx.At(map[string]int{"vector": j})
			}
		}
		parts[i] = tensor.Full(g.faceCenterPart(a).Shape().Without("vector"), area)
	}
	return tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...)
}

// FaceNormals gives the outward unit normal per face component.
func (g UniformGrid) FaceNormals() tensor.Tensor {
	axes := g.Axes()
	parts := make([]tensor.Tensor, len(axes))
	for i, a := range axes {
		unit := make([]float64, len(axes))
		unit[i] = 1
		spatial := g.faceCenterPart(a).Shape().Without("vector")
		parts[i] = tensor.Expand(Vec(axes, unit), spatial.Dims()...)
	}
	return tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...)
}

// BoundaryElements is empty: every cell center holds a free value.
func (g UniformGrid) BoundaryElements() []BoundarySlice { return nil }

// BoundaryFaces lists the outermost face slice per axis and side.
func (g UniformGrid) BoundaryFaces() []BoundarySlice {
	var out []BoundarySlice
	for _, a := range g.Axes() {
		out = append(out,
			BoundarySlice{Key: a + "-", Axis: a, Upper: false},
			BoundarySlice{Key: a + "+", Axis: a, Upper: true},
		)
	}
	return out
}
