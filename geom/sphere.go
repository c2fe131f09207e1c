package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rupeshkmr/phiflow/tensor"
)

// Sphere is an N-dimensional ball defined by center and radius. Batch or
// instance dimensions on either parameter describe a set of spheres;
// containment and distance queries then take the union over instances.
type Sphere struct {
	center tensor.Tensor
	radius tensor.Tensor
	shape  tensor.Shape  // memoized
	volume tensor.Tensor // memoized
}

func NewSphere(center, radius tensor.Tensor) (Sphere, error) {
	if err := validateCenter(center); err != nil {
		return Sphere{}, err
	}
	if radius.Shape().Has("vector") {
		return Sphere{}, fmt.Errorf("sphere radius must not vary along vector, got %v", radius.Shape())
	}
	shape := center.Shape().Without("vector").And(radius.Shape())
	rank := center.Shape().Size("vector")
	return Sphere{
		center: center,
		radius: radius,
		shape:  shape,
		volume: VolumeFromRadius(radius, rank),
	}, nil
}

// VolumeFromRadius is the volume of a rank-dimensional ball.
func VolumeFromRadius(radius tensor.Tensor, rank int) tensor.Tensor {
	switch rank {
	case 0:
		return tensor.Map(radius, func(float64) float64 { return 1 })
	case 1:
		return tensor.MulScalar(radius, 2)
	case 2:
		return tensor.MulScalar(tensor.Mul(radius, radius), math.Pi)
	case 3:
		return tensor.MulScalar(tensor.Mul(radius, tensor.Mul(radius, radius)), 4.0/3.0*math.Pi)
	default:
		panic(fmt.Errorf("sphere volume not implemented for rank %d", rank))
	}
}

func (s Sphere) Center() tensor.Tensor { return s.center }
func (s Sphere) Radius() tensor.Tensor { return s.radius }
func (s Sphere) Shape() tensor.Shape   { return s.shape }
func (s Sphere) Volume() tensor.Tensor { return s.volume }

func (s Sphere) SpatialRank() int { return s.center.Shape().Size("vector") }

func (s Sphere) Axes() []string { return s.center.Shape().ItemNames("vector") }

func (s Sphere) instanceDims() []string {
	return s.shape.InstanceOnly().Names()
}

func (s Sphere) LiesInside(loc tensor.Tensor) (tensor.Tensor, error) {
	diff := tensor.Sub(loc, s.center)
	distSq := tensor.VecSquared(diff, "vector")
	inside := tensor.Leq(distSq, tensor.Mul(s.radius, s.radius))
	return tensor.Any(inside, s.instanceDims()...), nil
}

// ApproximateSignedDistance clamps the squared distance away from zero
// before the square root so the gradient stays finite at the center.
func (s Sphere) ApproximateSignedDistance(loc tensor.Tensor) (tensor.Tensor, error) {
	diff := tensor.Sub(loc, s.center)
	distSq := tensor.VecSquared(diff, "vector")
	distSq = tensor.BinOp(distSq, s.radius, func(d, r float64) float64 {
		return math.Max(d, r*1e-2)
	})
	dist := tensor.Sqrt(distSq)
	sgn := tensor.Sub(dist, s.radius)
	return tensor.Min(sgn, s.instanceDims()...), nil
}

func (s Sphere) ApproximateClosestSurface(loc tensor.Tensor) (tensor.Tensor, tensor.Tensor, tensor.Tensor, error) {
	diff := tensor.Sub(loc, s.center)
	dist := tensor.Length(diff, "vector")
	sgn := tensor.Sub(dist, s.radius)
	normal := tensor.Normalize(diff, "vector", 1e-5)
	delta := tensor.Mul(normal, tensor.Neg(sgn))
	if inst := s.instanceDims(); len(inst) > 0 {
		for _, dim := range inst {
			picked := tensor.SelectMin(sgn, dim, sgn, delta, normal)
			sgn, delta, normal = picked[0], picked[1], picked[2]
		}
	}
	return sgn, delta, normal, nil
}

func (s Sphere) BoundingRadius() tensor.Tensor { return s.radius }

func (s Sphere) BoundingHalfExtent() tensor.Tensor {
	return tensor.Expand(s.radius, tensor.Vector(s.Axes()...))
}

func (s Sphere) At(center tensor.Tensor) Geometry {
	out, err := NewSphere(center, s.radius)
	if err != nil {
		panic(err)
	}
	return out
}

func (s Sphere) Shifted(delta tensor.Tensor) Geometry {
	return s.At(tensor.Add(s.center, delta))
}

// Rotated is the identity: a sphere is rotationally symmetric.
func (s Sphere) Rotated(rot *mat.Dense) (Geometry, error) { return s, nil }

func (s Sphere) Scaled(factor float64) Geometry {
	out, err := NewSphere(s.center, tensor.MulScalar(s.radius, factor))
	if err != nil {
		panic(err)
	}
	return out
}

func (s Sphere) Slice(sel map[string]int) Geometry {
	center, radius := s.center, s.radius
	for name, i := range sel {
		if name == "vector" {
			continue
		}
		center = center.Index(name, i)
		radius = radius.Index(name, i)
	}
	out, err := NewSphere(center, radius)
	if err != nil {
		panic(err)
	}
	return out
}

func (s Sphere) EqualTo(other Geometry) bool {
	o, ok := other.(Sphere)
	return ok &&
		tensor.AllClose(s.center, o.center, 1e-12) &&
		tensor.AllClose(s.radius, o.radius, 1e-12)
}

func (s Sphere) stackWith(dim tensor.Dim, all []Geometry) (Geometry, bool) {
	centers := make([]tensor.Tensor, len(all))
	radii := make([]tensor.Tensor, len(all))
	for i, g := range all {
		sp, ok := g.(Sphere)
		if !ok {
			return nil, false
		}
		centers[i] = sp.center
		radii[i] = sp.radius
	}
	out, err := NewSphere(tensor.Stack(dim, centers...), tensor.Stack(dim, radii...))
	if err != nil {
		return nil, false
	}
	return out, true
}
