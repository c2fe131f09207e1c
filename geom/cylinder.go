package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rupeshkmr/phiflow/tensor"
)

// Cylinder is an N-dimensional cylinder defined by center, radius, depth
// along an alignment axis, and an optional rotation perturbing that
// axis. Queries transform the location into the cylinder's local frame,
// evaluate the radial and axial parts separately, and combine them so
// that "inside" means both are negative.
type Cylinder struct {
	center   tensor.Tensor
	radius   tensor.Tensor
	depth    tensor.Tensor
	rotation *mat.Dense // nil means unrotated
	axis     string

	shape       tensor.Shape  // memoized
	radialAxes  []string      // memoized
	up          tensor.Tensor // memoized unit axis in world frame
	volume      tensor.Tensor // memoized
	instanceDim []string      // memoized
}

func NewCylinder(center tensor.Tensor, radius, depth tensor.Tensor, rotation *mat.Dense, axis string) (Cylinder, error) {
	if err := validateCenter(center); err != nil {
		return Cylinder{}, err
	}
	if radius.Shape().Has("vector") {
		return Cylinder{}, fmt.Errorf("cylinder radius must not vary along vector, got %v", radius.Shape())
	}
	axes := center.Shape().ItemNames("vector")
	axisFound := false
	var radial []string
	for _, a := range axes {
		if a == axis {
			axisFound = true
		} else {
			radial = append(radial, a)
		}
	}
	if !axisFound {
		return Cylinder{}, fmt.Errorf("cylinder axis %q not part of vector dimension %v", axis, axes)
	}
	shape := center.Shape().Without("vector").And(radius.Shape()).And(depth.Shape())
	rank := len(axes)

	// Unit vector along the alignment axis, rotated into the world frame.
	upLocal := make([]float64, rank)
	for i, a := range axes {
		if a == axis {
			upLocal[i] = 1
		}
	}
	up := tensor.RotateVector(Vec(axes, upLocal), rotation, false)

	return Cylinder{
		center:      center,
		radius:      radius,
		depth:       depth,
		rotation:    rotation,
		axis:        axis,
		shape:       shape,
		radialAxes:  radial,
		up:          up,
		volume:      tensor.Mul(VolumeFromRadius(radius, rank-1), depth),
		instanceDim: shape.InstanceOnly().Names(),
	}, nil
}

func (c Cylinder) Center() tensor.Tensor { return c.center }
func (c Cylinder) Radius() tensor.Tensor { return c.radius }
func (c Cylinder) Depth() tensor.Tensor  { return c.depth }
func (c Cylinder) Axis() string          { return c.axis }
func (c Cylinder) Shape() tensor.Shape   { return c.shape }
func (c Cylinder) Volume() tensor.Tensor { return c.volume }

// Up is the cylinder's alignment direction in the world frame.
func (c Cylinder) Up() tensor.Tensor { return c.up }

func (c Cylinder) SpatialRank() int { return c.center.Shape().Size("vector") }

func (c Cylinder) Axes() []string { return c.center.Shape().ItemNames("vector") }

// local transforms a world location into the cylinder frame and splits
// it into radial components and the height along the axis.
func (c Cylinder) local(loc tensor.Tensor) (r, h tensor.Tensor) {
	pos := tensor.RotateVector(tensor.Sub(loc, c.center), c.rotation, true)
	r = pos.Items("vector", c.radialAxes...)
	h = pos.Item("vector", c.axis)
	return r, h
}

func (c Cylinder) LiesInside(loc tensor.Tensor) (tensor.Tensor, error) {
	r, h := c.local(loc)
	halfDepth := tensor.MulScalar(c.depth, 0.5)
	radial := tensor.Leq(tensor.VecSquared(r, "vector"), tensor.Mul(c.radius, c.radius))
	above := tensor.Geq(h, tensor.Neg(halfDepth))
	below := tensor.Leq(h, halfDepth)
	inside := tensor.AndOp(radial, tensor.AndOp(above, below))
	return tensor.Any(inside, c.instanceDim...), nil
}

// ApproximateSignedDistance evaluates the lateral surface and the caps
// separately and combines them by maximum, so a point is inside exactly
// when both are negative.
func (c Cylinder) ApproximateSignedDistance(loc tensor.Tensor) (tensor.Tensor, error) {
	r, h := c.local(loc)
	halfDepth := tensor.MulScalar(c.depth, 0.5)
	sgnDistSide := tensor.Sub(tensor.Abs(h), halfDepth)
	sgnDistCyl := tensor.Sub(tensor.Length(r, "vector"), c.radius)
	sgn := tensor.BinOp(sgnDistCyl, sgnDistSide, math.Max)
	return tensor.Min(sgn, c.instanceDim...), nil
}

// ApproximateClosestSurface picks between the cap and the lateral
// surface by comparing Euclidean distances, not signed distances: near
// the rim the two can disagree in sign.
func (c Cylinder) ApproximateClosestSurface(loc tensor.Tensor) (tensor.Tensor, tensor.Tensor, tensor.Tensor, error) {
	localLoc := tensor.RotateVector(tensor.Sub(loc, c.center), c.rotation, true)
	r := localLoc.Items("vector", c.radialAxes...)
	h := localLoc.Item("vector", c.axis)
	halfDepth := tensor.MulScalar(c.depth, 0.5)

	radialOutward := tensor.Normalize(r, "vector", 1e-5)
	surfR := tensor.Mul(radialOutward, c.radius)
	radialDistSq := tensor.VecSquared(r, "vector")
	insideCyl := tensor.Leq(radialDistSq, tensor.Mul(c.radius, c.radius))
	clampedR := tensor.Where(tensor.Expand(insideCyl, r.Shape().Only("vector").Dims()...), r, surfR)

	// Closest point on the bottom / top cap.
	above := tensor.Geq(h, tensor.Wrap(0))
	flatH := tensor.Where(above, halfDepth, tensor.Neg(halfDepth))
	onFlat := c.assemble(flatH, clampedR)
	axisUnit := c.localUp()
	normalFlat := tensor.Where(tensor.Expand(above, axisUnit.Shape().Only("vector").Dims()...),
		axisUnit, tensor.Neg(axisUnit))

	// Closest point on the lateral surface.
	clampedH := tensor.BinOp(h, halfDepth, func(hv, hd float64) float64 {
		return math.Max(-hd, math.Min(hv, hd))
	})
	onCyl := c.assemble(clampedH, surfR)
	normalCyl := c.assemble(tensor.Zeros(tensor.EmptyShape()), radialOutward)

	// Choose the closer candidate by Euclidean distance.
	dFlat := tensor.Length(tensor.Sub(onFlat, localLoc), "vector")
	dCyl := tensor.Length(tensor.Sub(onCyl, localLoc), "vector")
	flatCloser := tensor.Leq(dFlat, dCyl)
	vecDims := onFlat.Shape().Only("vector").Dims()
	surfPoint := tensor.Where(tensor.Expand(flatCloser, vecDims...), onFlat, onCyl)

	withinH := tensor.AndOp(tensor.Geq(h, tensor.Neg(halfDepth)), tensor.Leq(h, halfDepth))
	inside := tensor.AndOp(insideCyl, withinH)
	sgnDist := tensor.Mul(tensor.BinOp(dFlat, dCyl, math.Min),
		tensor.Map(inside, func(v float64) float64 {
			if v != 0 {
				return -1
			}
			return 1
		}))
	delta := tensor.Sub(surfPoint, localLoc)
	normal := tensor.Where(tensor.Expand(flatCloser, vecDims...), normalFlat, normalCyl)
	delta = tensor.RotateVector(delta, c.rotation, false)
	normal = tensor.RotateVector(normal, c.rotation, false)

	for _, dim := range c.instanceDim {
		picked := tensor.SelectMin(sgnDist, dim, sgnDist, delta, normal)
		sgnDist, delta, normal = picked[0], picked[1], picked[2]
	}
	return sgnDist, delta, normal, nil
}

// assemble recombines an axis component and radial components into a
// vector in the cylinder's axis order. Components are broadcast to a
// common shape so the result stacks uniformly.
func (c Cylinder) assemble(axial tensor.Tensor, radial tensor.Tensor) tensor.Tensor {
	axes := c.Axes()
	common := axial.Shape().Without("vector").And(radial.Shape().Without("vector"))
	parts := make([]tensor.Tensor, len(axes))
	for i, a := range axes {
		var p tensor.Tensor
		if a == c.axis {
			p = axial
		} else {
			p = radial.Item("vector", a)
		}
		parts[i] = tensor.Expand(p, common.Dims()...)
	}
	return tensor.Stack(tensor.Vector(axes...), parts...)
}

// localUp is the unit alignment axis in the local frame.
func (c Cylinder) localUp() tensor.Tensor {
	axes := c.Axes()
	v := make([]float64, len(axes))
	for i, a := range axes {
		if a == c.axis {
			v[i] = 1
		}
	}
	return Vec(axes, v)
}

func (c Cylinder) BoundingRadius() tensor.Tensor {
	halfDepth := tensor.MulScalar(c.depth, 0.5)
	return tensor.Sqrt(tensor.Add(tensor.Mul(c.radius, c.radius), tensor.Mul(halfDepth, halfDepth)))
}

func (c Cylinder) BoundingHalfExtent() tensor.Tensor {
	if c.rotation != nil {
		// Conservative: a rotated cylinder fits in its bounding sphere.
		return tensor.Expand(c.BoundingRadius(), tensor.Vector(c.Axes()...))
	}
	axes := c.Axes()
	parts := make([]tensor.Tensor, len(axes))
	for i, a := range axes {
		if a == c.axis {
			parts[i] = tensor.MulScalar(c.depth, 0.5)
		} else {
			parts[i] = c.radius
		}
	}
	return tensor.Stack(tensor.Vector(axes...), parts...)
}

func (c Cylinder) At(center tensor.Tensor) Geometry {
	out, err := NewCylinder(center, c.radius, c.depth, c.rotation, c.axis)
	if err != nil {
		panic(err)
	}
	return out
}

func (c Cylinder) Shifted(delta tensor.Tensor) Geometry {
	return c.At(tensor.Add(c.center, delta))
}

// Rotated composes with any existing rotation by matrix multiplication.
func (c Cylinder) Rotated(rot *mat.Dense) (Geometry, error) {
	out, err := NewCylinder(c.center, c.radius, c.depth, tensor.ComposeRotations(c.rotation, rot), c.axis)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c Cylinder) Scaled(factor float64) Geometry {
	out, err := NewCylinder(c.center, tensor.MulScalar(c.radius, factor),
		tensor.MulScalar(c.depth, factor), c.rotation, c.axis)
	if err != nil {
		panic(err)
	}
	return out
}

func (c Cylinder) Slice(sel map[string]int) Geometry {
	center, radius, depth := c.center, c.radius, c.depth
	for name, i := range sel {
		if name == "vector" {
			continue
		}
		center = center.Index(name, i)
		radius = radius.Index(name, i)
		depth = depth.Index(name, i)
	}
	out, err := NewCylinder(center, radius, depth, c.rotation, c.axis)
	if err != nil {
		panic(err)
	}
	return out
}

func (c Cylinder) EqualTo(other Geometry) bool {
	o, ok := other.(Cylinder)
	if !ok || c.axis != o.axis {
		return false
	}
	if (c.rotation == nil) != (o.rotation == nil) {
		return false
	}
	if c.rotation != nil && !mat.EqualApprox(c.rotation, o.rotation, 1e-12) {
		return false
	}
	return tensor.AllClose(c.center, o.center, 1e-12) &&
		tensor.AllClose(c.radius, o.radius, 1e-12) &&
		tensor.AllClose(c.depth, o.depth, 1e-12)
}

// stackWith keeps the Cylinder variant when all inputs are cylinders
// sharing one alignment axis and rotation; anything else falls back to
// the generic union.
func (c Cylinder) stackWith(dim tensor.Dim, all []Geometry) (Geometry, bool) {
	centers := make([]tensor.Tensor, len(all))
	radii := make([]tensor.Tensor, len(all))
	depths := make([]tensor.Tensor, len(all))
	var rot *mat.Dense
	for i, g := range all {
		cyl, ok := g.(Cylinder)
		if !ok || cyl.axis != c.axis {
			return nil, false
		}
		if i == 0 {
			rot = cyl.rotation
		} else if (rot == nil) != (cyl.rotation == nil) ||
			(rot != nil && !mat.EqualApprox(rot, cyl.rotation, 1e-12)) {
			return nil, false
		}
		centers[i] = cyl.center
		radii[i] = cyl.radius
		depths[i] = cyl.depth
	}
	out, err := NewCylinder(tensor.Stack(dim, centers...),
		tensor.Stack(dim, radii...), tensor.Stack(dim, depths...), rot, c.axis)
	if err != nil {
		return nil, false
	}
	return out, true
}
