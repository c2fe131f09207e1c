// Package geom provides immutable spatial domain descriptions: analytic
// shapes (Sphere, Cylinder, Box, Point), uniform grids and unstructured
// triangle meshes, all answering distance, containment and extent
// queries over named-dimension tensors.
package geom

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rupeshkmr/phiflow/tensor"
)

// ErrUnsupported marks a capability a geometry variant does not
// implement. Callers get this error rather than a wrong approximation.
var ErrUnsupported = errors.New("operation not supported for this geometry")

// Geometry is an immutable spatial domain. Center always carries a
// "vector" channel dimension whose item names are the spatial axis
// names. Transformations return new instances; nothing mutates in place.
type Geometry interface {
	Center() tensor.Tensor
	Shape() tensor.Shape
	SpatialRank() int
	// Axes lists the spatial axis names in order.
	Axes() []string
	Volume() tensor.Tensor

	// LiesInside returns a 0/1 tensor; geometries with an instance
	// dimension answer with the union over instances.
	LiesInside(location tensor.Tensor) (tensor.Tensor, error)
	// ApproximateSignedDistance is negative inside and positive outside,
	// with finite gradients even at degenerate centers.
	ApproximateSignedDistance(location tensor.Tensor) (tensor.Tensor, error)

	BoundingRadius() tensor.Tensor
	BoundingHalfExtent() tensor.Tensor

	At(center tensor.Tensor) Geometry
	Shifted(delta tensor.Tensor) Geometry
	Rotated(rot *mat.Dense) (Geometry, error)
	Scaled(factor float64) Geometry

	// Slice selects along batch/instance dimensions by index.
	Slice(sel map[string]int) Geometry

	// EqualTo compares variant and defining parameters by value.
	EqualTo(other Geometry) bool
}

// SurfaceQuerier is implemented by variants that can locate the closest
// surface point. For multi-piece geometries the globally closest piece
// wins, ties resolving to the first minimum.
type SurfaceQuerier interface {
	ApproximateClosestSurface(location tensor.Tensor) (signedDistance, delta, normal tensor.Tensor, err error)
}

// BoundarySlice names one boundary of a grid-like geometry: the slice of
// faces (or elements) that a boundary rule may fix instead of simulate.
type BoundarySlice struct {
	Key   string // axis name plus "-" or "+"
	Axis  string
	Upper bool
}

// Faced is implemented by grid and mesh variants that expose face
// geometry for staggered sampling.
type Faced interface {
	// FaceCenters returns face positions stacked along the dual
	// "~vector" dimension; the components are non-uniform.
	FaceCenters() tensor.Tensor
	FaceAreas() tensor.Tensor
	FaceNormals() tensor.Tensor
	// FaceShape carries the dual dimension identifying staggered values.
	FaceShape() tensor.Shape
	BoundaryElements() []BoundarySlice
	BoundaryFaces() []BoundarySlice
}

// Bounded is implemented by variants with a canonical axis-aligned
// extent, used as plot limits and sampling bounds.
type Bounded interface {
	Bounds() Box
}

// RotateByAngle rotates a geometry by an angle in its first two axes.
// Chained rotations compose by matrix multiplication inside the variant.
func RotateByAngle(g Geometry, angle float64) (Geometry, error) {
	if g.SpatialRank() < 2 {
		return nil, fmt.Errorf("%w: rotation needs at least 2 spatial dimensions", ErrUnsupported)
	}
	if g.SpatialRank() == 2 {
		return g.Rotated(tensor.RotationMatrix2D(angle))
	}
	return g.Rotated(tensor.RotationMatrixAxis([3]float64{0, 0, 1}, angle))
}

// validateCenter checks the center invariant shared by all variants.
func validateCenter(center tensor.Tensor) error {
	d, ok := center.Shape().Dim("vector")
	if !ok {
		return fmt.Errorf("geometry center must have a vector dimension, got %v", center.Shape())
	}
	if len(d.Items) != d.Size {
		return fmt.Errorf("vector dimension must name its spatial axes, got %v", d)
	}
	return nil
}

// Vec builds a center tensor from axis/value pairs in the given order.
func Vec(axes []string, values []float64) tensor.Tensor {
	if len(axes) != len(values) {
		panic(fmt.Errorf("Vec: %d axes for %d values", len(axes), len(values)))
	}
	return tensor.FromData(tensor.NewShape(tensor.Vector(axes...)), values)
}

// stacker lets a variant keep its identity when stacking homogeneous
// inputs; heterogeneous inputs fall back to a GeometryStack union.
type stacker interface {
	stackWith(dim tensor.Dim, all []Geometry) (Geometry, bool)
}

// Stack combines geometries along a new dimension, preserving the
// variant when all inputs agree, otherwise producing a generic tagged
// union.
func Stack(dim tensor.Dim, geos ...Geometry) Geometry {
	if len(geos) == 0 {
		panic("geom.Stack: no geometries")
	}
	if s, ok := geos[0].(stacker); ok {
		if g, ok := s.stackWith(dim, geos); ok {
			return g
		}
	}
	return newGeometryStack(dim, geos)
}

// GeometryStack is the generic tagged union of heterogeneous geometries
// stacked along one dimension. Queries answer per part; containment is
// the union across parts when the stack dimension is instance-like.
type GeometryStack struct {
	dim   tensor.Dim
	parts []Geometry
}

func newGeometryStack(dim tensor.Dim, parts []Geometry) GeometryStack {
	cp := make([]Geometry, len(parts))
	copy(cp, parts)
	dim.Size = len(parts)
	return GeometryStack{dim: dim, parts: cp}
}

func (g GeometryStack) Parts() []Geometry {
	cp := make([]Geometry, len(g.parts))
	copy(cp, g.parts)
	return cp
}

func (g GeometryStack) StackDim() tensor.Dim { return g.dim }

func (g GeometryStack) Center() tensor.Tensor {
	centers := make([]tensor.Tensor, len(g.parts))
	for i, p := range g.parts {
		centers[i] = p.Center()
	}
	return tensor.Stack(g.dim, centers...)
}

func (g GeometryStack) Shape() tensor.Shape {
	return g.parts[0].Shape().WithDim(g.dim)
}

func (g GeometryStack) SpatialRank() int { return g.parts[0].SpatialRank() }

func (g GeometryStack) Axes() []string { return g.parts[0].Axes() }

func (g GeometryStack) Volume() tensor.Tensor {
	vols := make([]tensor.Tensor, len(g.parts))
	for i, p := range g.parts {
		vols[i] = p.Volume()
	}
	return tensor.Stack(g.dim, vols...)
}

func (g GeometryStack) LiesInside(loc tensor.Tensor) (tensor.Tensor, error) {
	var union tensor.Tensor
	for i, p := range g.parts {
		in, err := p.LiesInside(loc)
		if err != nil {
			return tensor.Tensor{}, err
		}
		if i == 0 {
			union = in
		} else {
			union = tensor.BinOp(union, in, func(a, b float64) float64 {
				if a != 0 || b != 0 {
					return 1
				}
				return 0
			})
		}
	}
	return union, nil
}

func (g GeometryStack) ApproximateSignedDistance(loc tensor.Tensor) (tensor.Tensor, error) {
	var minDist tensor.Tensor
	for i, p := range g.parts {
		d, err := p.ApproximateSignedDistance(loc)
		if err != nil {
			return tensor.Tensor{}, err
		}
		if i == 0 {
			minDist = d
		} else {
			minDist = tensor.BinOp(minDist, d, func(a, b float64) float64 {
				if a < b {
					return a
				}
				return b
			})
		}
	}
	return minDist, nil
}

func (g GeometryStack) BoundingRadius() tensor.Tensor {
	rads := make([]tensor.Tensor, len(g.parts))
	for i, p := range g.parts {
		rads[i] = p.BoundingRadius()
	}
	return tensor.Stack(g.dim, rads...)
}

func (g GeometryStack) BoundingHalfExtent() tensor.Tensor {
	exts := make([]tensor.Tensor, len(g.parts))
	for i, p := range g.parts {
		exts[i] = p.BoundingHalfExtent()
	}
	return tensor.Stack(g.dim, exts...)
}

func (g GeometryStack) At(center tensor.Tensor) Geometry {
	parts := make([]Geometry, len(g.parts))
	for i, p := range g.parts {
		parts[i] = p.At(center.Index(g.dim.Name, i))
	}
	return newGeometryStack(g.dim, parts)
}

func (g GeometryStack) Shifted(delta tensor.Tensor) Geometry {
	parts := make([]Geometry, len(g.parts))
	for i, p := range g.parts {
		parts[i] = p.Shifted(delta)
	}
	return newGeometryStack(g.dim, parts)
}

func (g GeometryStack) Rotated(rot *mat.Dense) (Geometry, error) {
	parts := make([]Geometry, len(g.parts))
	for i, p := range g.parts {
		r, err := p.Rotated(rot)
		if err != nil {
			return nil, err
		}
		parts[i] = r
	}
	return newGeometryStack(g.dim, parts), nil
}

func (g GeometryStack) Scaled(factor float64) Geometry {
	parts := make([]Geometry, len(g.parts))
	for i, p := range g.parts {
		parts[i] = p.Scaled(factor)
	}
	return newGeometryStack(g.dim, parts)
}

func (g GeometryStack) Slice(sel map[string]int) Geometry {
	if i, ok := sel[g.dim.Name]; ok {
		rest := make(map[string]int, len(sel))
		for k, v := range sel {
			if k != g.dim.Name {
				rest[k] = v
			}
		}
		return g.parts[i].Slice(rest)
	}
	parts := make([]Geometry, len(g.parts))
	for i, p := range g.parts {
		parts[i] = p.Slice(sel)
	}
	return newGeometryStack(g.dim, parts)
}

func (g GeometryStack) EqualTo(other Geometry) bool {
	o, ok := other.(GeometryStack)
	if !ok || len(o.parts) != len(g.parts) || o.dim.Name != g.dim.Name {
		return false
	}
	for i := range g.parts {
		if !g.parts[i].EqualTo(o.parts[i]) {
			return false
		}
	}
	return true
}
