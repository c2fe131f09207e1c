package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rupeshkmr/phiflow/tensor"
)

// Box is an axis-aligned box given by its lower and upper corners, both
// carrying the vector dimension.
type Box struct {
	lower  tensor.Tensor
	upper  tensor.Tensor
	center tensor.Tensor // memoized
	volume tensor.Tensor // memoized
}

func NewBox(lower, upper tensor.Tensor) (Box, error) {
	if err := validateCenter(lower); err != nil {
		return Box{}, fmt.Errorf("box lower corner: %w", err)
	}
	if err := validateCenter(upper); err != nil {
		return Box{}, fmt.Errorf("box upper corner: %w", err)
	}
	size := tensor.Sub(upper, lower)
	return Box{
		lower:  lower,
		upper:  upper,
		center: tensor.MulScalar(tensor.Add(lower, upper), 0.5),
		volume: tensor.Reduce(size, []string{"vector"}, 1, func(a, v float64) float64 { return a * v }),
	}, nil
}

// NewCube builds a box from axis names and per-axis [lower, upper]
// intervals.
func NewCube(axes []string, lo, hi []float64) (Box, error) {
	return NewBox(Vec(axes, lo), Vec(axes, hi))
}

func (b Box) Lower() tensor.Tensor  { return b.lower }
func (b Box) Upper() tensor.Tensor  { return b.upper }
func (b Box) Size() tensor.Tensor   { return tensor.Sub(b.upper, b.lower) }
func (b Box) Center() tensor.Tensor { return b.center }
func (b Box) Volume() tensor.Tensor { return b.volume }

func (b Box) Shape() tensor.Shape {
	return b.lower.Shape().Without("vector").And(b.upper.Shape().Without("vector"))
}

func (b Box) SpatialRank() int { return b.lower.Shape().Size("vector") }

func (b Box) Axes() []string { return b.lower.Shape().ItemNames("vector") }

func (b Box) LiesInside(loc tensor.Tensor) (tensor.Tensor, error) {
	aboveLo := tensor.All(tensor.Geq(loc, b.lower), "vector")
	belowHi := tensor.All(tensor.Leq(loc, b.upper), "vector")
	return tensor.AndOp(aboveLo, belowHi), nil
}

func (b Box) ApproximateSignedDistance(loc tensor.Tensor) (tensor.Tensor, error) {
	// Distance per axis from the box surface; negative inside.
	half := tensor.MulScalar(b.Size(), 0.5)
	d := tensor.Sub(tensor.Abs(tensor.Sub(loc, b.center)), half)
	outside := tensor.Map(d, func(v float64) float64 { return math.Max(v, 0) })
	outsideDist := tensor.Length(outside, "vector")
	insideDist := tensor.Map(tensor.Max(d, "vector"), func(v float64) float64 {
		return math.Min(v, 0)
	})
	return tensor.Add(outsideDist, insideDist), nil
}

func (b Box) BoundingRadius() tensor.Tensor {
	return tensor.MulScalar(tensor.Length(b.Size(), "vector"), 0.5)
}

func (b Box) BoundingHalfExtent() tensor.Tensor {
	return tensor.MulScalar(b.Size(), 0.5)
}

func (b Box) At(center tensor.Tensor) Geometry {
	delta := tensor.Sub(center, b.center)
	return b.Shifted(delta)
}

func (b Box) Shifted(delta tensor.Tensor) Geometry {
	out, err := NewBox(tensor.Add(b.lower, delta), tensor.Add(b.upper, delta))
	if err != nil {
		panic(err)
	}
	return out
}

// Rotated is not implemented: the result would no longer be an
// axis-aligned box.
func (b Box) Rotated(rot *mat.Dense) (Geometry, error) {
	return nil, fmt.Errorf("%w: rotating an axis-aligned box", ErrUnsupported)
}

func (b Box) Scaled(factor float64) Geometry {
	half := tensor.MulScalar(b.Size(), 0.5*factor)
	out, err := NewBox(tensor.Sub(b.center, half), tensor.Add(b.center, half))
	if err != nil {
		panic(err)
	}
	return out
}

func (b Box) Slice(sel map[string]int) Geometry {
	lower, upper := b.lower, b.upper
	for name, i := range sel {
		if name == "vector" {
			continue
		}
		lower = lower.Index(name, i)
		upper = upper.Index(name, i)
	}
	out, err := NewBox(lower, upper)
	if err != nil {
		panic(err)
	}
	return out
}

func (b Box) EqualTo(other Geometry) bool {
	o, ok := other.(Box)
	return ok &&
		tensor.AllClose(b.lower, o.lower, 1e-12) &&
		tensor.AllClose(b.upper, o.upper, 1e-12)
}

// Point is a zero-extent location.
type Point struct {
	center tensor.Tensor
}

func NewPoint(center tensor.Tensor) (Point, error) {
	if err := validateCenter(center); err != nil {
		return Point{}, err
	}
	return Point{center: center}, nil
}

func (p Point) Center() tensor.Tensor { return p.center }

func (p Point) Shape() tensor.Shape { return p.center.Shape().Without("vector") }

func (p Point) SpatialRank() int { return p.center.Shape().Size("vector") }

func (p Point) Axes() []string { return p.center.Shape().ItemNames("vector") }

func (p Point) Volume() tensor.Tensor { return tensor.Zeros(p.Shape()) }

func (p Point) LiesInside(loc tensor.Tensor) (tensor.Tensor, error) {
	dist := tensor.Length(tensor.Sub(loc, p.center), "vector")
	inside := tensor.Map(dist, func(v float64) float64 {
		if v == 0 {
			return 1
		}
		return 0
	})
	return tensor.Any(inside, p.Shape().InstanceOnly().Names()...), nil
}

func (p Point) ApproximateSignedDistance(loc tensor.Tensor) (tensor.Tensor, error) {
	dist := tensor.Length(tensor.Sub(loc, p.center), "vector")
	return tensor.Min(dist, p.Shape().InstanceOnly().Names()...), nil
}

func (p Point) BoundingRadius() tensor.Tensor { return tensor.Zeros(p.Shape()) }

func (p Point) BoundingHalfExtent() tensor.Tensor {
	return tensor.Zeros(p.center.Shape())
}

func (p Point) At(center tensor.Tensor) Geometry {
	out, err := NewPoint(center)
	if err != nil {
		panic(err)
	}
	return out
}

func (p Point) Shifted(delta tensor.Tensor) Geometry {
	return p.At(tensor.Add(p.center, delta))
}

func (p Point) Rotated(rot *mat.Dense) (Geometry, error) { return p, nil }

func (p Point) Scaled(factor float64) Geometry { return p }

func (p Point) Slice(sel map[string]int) Geometry {
	center := p.center
	for name, i := range sel {
		if name == "vector" {
			continue
		}
		center = center.Index(name, i)
	}
	return p.At(center)
}

func (p Point) EqualTo(other Geometry) bool {
	o, ok := other.(Point)
	return ok && tensor.AllClose(p.center, o.center, 1e-12)
}
