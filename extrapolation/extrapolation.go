// Package extrapolation defines the rules giving a field a value outside
// its sampled domain, and the algebra by which such rules combine under
// field arithmetic.
package extrapolation

import (
	"fmt"

	"github.com/rupeshkmr/phiflow/tensor"
)

// Extrapolation is an immutable boundary rule. Implementations compare
// by value, never by identity.
type Extrapolation interface {
	Name() string
	Equals(other Extrapolation) bool

	// Neg is the rule of the negated field.
	Neg() Extrapolation
	// SpatialGradient is the rule obeyed by the spatial derivative of a
	// field with this boundary rule.
	SpatialGradient() Extrapolation
	// Component restricts a vector-valued rule to one component; scalar
	// rules return themselves.
	Component(item string) Extrapolation

	// ValidOuterFaces reports whether the lower/upper outer face along a
	// spatial axis carries a free simulation value rather than one fixed
	// or duplicated by the rule.
	ValidOuterFaces(axis string) (lower, upper bool)
	// DeterminesBoundaryValues reports whether the boundary slice named
	// by key (axis name plus "-" or "+") is fixed by this rule.
	DeterminesBoundaryValues(key string) bool

	// PadAxis grows the named axis of t by lower/upper cells filled
	// according to this rule.
	PadAxis(t tensor.Tensor, axis string, lower, upper int) (tensor.Tensor, error)
	// ResolveIndex maps an out-of-range index along axis to an in-range
	// source index; ok is false when the constant fill value applies.
	ResolveIndex(axis string, i, n int) (src int, ok bool)
	// ConstantValue is the fill value at the given (partial) index for
	// rules that fill rather than copy; zero otherwise.
	ConstantValue(idx map[string]int) float64
}

// IncompatibleExtrapolationsError reports a combination of boundary
// rules whose semantics cannot be reconciled.
type IncompatibleExtrapolationsError struct {
	Left, Right Extrapolation
	Op          string
}

func (e *IncompatibleExtrapolationsError) Error() string {
	return fmt.Sprintf("incompatible extrapolations: %s %s %s",
		e.Left.Name(), e.Op, e.Right.Name())
}

func incompatible(op string, a, b Extrapolation) error {
	return &IncompatibleExtrapolationsError{Left: a, Right: b, Op: op}
}

// Process-wide shared rule values. Compared by value everywhere.
var (
	ZERO      = Constant{Value: tensor.Wrap(0)}
	ONE       = Constant{Value: tensor.Wrap(1)}
	PERIODIC  = Periodic{}
	BOUNDARY  = Boundary{}
	SYMMETRIC = Symmetric{}
	REFLECT   = Reflect{}
)

// ConstantOf builds a constant rule from a scalar.
func ConstantOf(v float64) Constant {
	return Constant{Value: tensor.Wrap(v)}
}

// Constant extrapolates with a fixed value, possibly vector-valued.
type Constant struct {
	Value tensor.Tensor
}

func (c Constant) Name() string {
	if c.isScalar() {
		return fmt.Sprintf("constant %g", c.Value.Scalar())
	}
	return "constant"
}

func (c Constant) isScalar() bool {
	return !c.Value.IsStacked() && c.Value.Shape().Volume() == 1
}

func (c Constant) isScalarValue(v float64) bool {
	return c.isScalar() && c.Value.Scalar() == v
}

func (c Constant) Equals(other Extrapolation) bool {
	o, ok := other.(Constant)
	return ok && tensor.AllClose(c.Value, o.Value, 1e-12)
}

func (c Constant) Neg() Extrapolation {
	return Constant{Value: tensor.Neg(c.Value)}
}

func (c Constant) SpatialGradient() Extrapolation { return ZERO }

func (c Constant) Component(item string) Extrapolation {
	if c.Value.Shape().Has("vector") {
		return Constant{Value: c.Value.Item("vector", item)}
	}
	return c
}

func (c Constant) ValidOuterFaces(axis string) (bool, bool) { return false, false }

func (c Constant) DeterminesBoundaryValues(key string) bool { return true }

func (c Constant) PadAxis(t tensor.Tensor, axis string, lower, upper int) (tensor.Tensor, error) {
	return tensor.PadAxis(t, axis, lower, upper,
		func(i, n int) (int, bool) { return 0, false },
		func(idx map[string]int) float64 { return c.Value.At(idx) }), nil
}

func (c Constant) ResolveIndex(axis string, i, n int) (int, bool) { return 0, false }

func (c Constant) ConstantValue(idx map[string]int) float64 { return c.Value.At(idx) }

// Periodic wraps values around to the opposite edge.
type Periodic struct{}

func (Periodic) Name() string { return "periodic" }

func (Periodic) Equals(other Extrapolation) bool {
	_, ok := other.(Periodic)
	return ok
}

func (p Periodic) Neg() Extrapolation             { return p }
func (p Periodic) SpatialGradient() Extrapolation { return p }
func (p Periodic) Component(string) Extrapolation { return p }

// The upper outer face duplicates the lower one across the period, so
// only the lower face carries a stored value.
func (Periodic) ValidOuterFaces(axis string) (bool, bool) { return true, false }

func (Periodic) DeterminesBoundaryValues(key string) bool { return false }

func (p Periodic) PadAxis(t tensor.Tensor, axis string, lower, upper int) (tensor.Tensor, error) {
	return tensor.PadAxis(t, axis, lower, upper,
		p.resolve, func(map[string]int) float64 { return 0 }), nil
}

func (p Periodic) ResolveIndex(axis string, i, n int) (int, bool) { return p.resolve(i, n) }

func (Periodic) resolve(i, n int) (int, bool) {
	m := i % n
	if m < 0 {
		m += n
	}
	return m, true
}

func (Periodic) ConstantValue(map[string]int) float64 { return 0 }

// Boundary copies the closest edge value outward (zero normal gradient).
type Boundary struct{}

func (Boundary) Name() string { return "boundary" }

func (Boundary) Equals(other Extrapolation) bool {
	_, ok := other.(Boundary)
	return ok
}

func (b Boundary) Neg() Extrapolation             { return b }
func (Boundary) SpatialGradient() Extrapolation   { return ZERO }
func (b Boundary) Component(string) Extrapolation { return b }

func (Boundary) ValidOuterFaces(axis string) (bool, bool) { return true, true }

func (Boundary) DeterminesBoundaryValues(key string) bool { return false }

func (b Boundary) PadAxis(t tensor.Tensor, axis string, lower, upper int) (tensor.Tensor, error) {
	return tensor.PadAxis(t, axis, lower, upper,
		b.resolve, func(map[string]int) float64 { return 0 }), nil
}

func (b Boundary) ResolveIndex(axis string, i, n int) (int, bool) { return b.resolve(i, n) }

func (Boundary) resolve(i, n int) (int, bool) {
	if i < 0 {
		return 0, true
	}
	return n - 1, true
}

func (Boundary) ConstantValue(map[string]int) float64 { return 0 }

// Symmetric mirrors interior values including the boundary cell itself.
type Symmetric struct{}

func (Symmetric) Name() string { return "symmetric" }

func (Symmetric) Equals(other Extrapolation) bool {
	_, ok := other.(Symmetric)
	return ok
}

func (s Symmetric) Neg() Extrapolation             { return s }
func (Symmetric) SpatialGradient() Extrapolation   { return REFLECT }
func (s Symmetric) Component(string) Extrapolation { return s }

func (Symmetric) ValidOuterFaces(axis string) (bool, bool) { return true, true }

func (Symmetric) DeterminesBoundaryValues(key string) bool { return false }

func (s Symmetric) PadAxis(t tensor.Tensor, axis string, lower, upper int) (tensor.Tensor, error) {
	return tensor.PadAxis(t, axis, lower, upper,
		s.resolve, func(map[string]int) float64 { return 0 }), nil
}

func (s Symmetric) ResolveIndex(axis string, i, n int) (int, bool) { return s.resolve(i, n) }

func (Symmetric) resolve(i, n int) (int, bool) {
	// Mirror with period 2n, repeating the edge cell.
	var k int
	if i < 0 {
		k = -i - 1
	} else {
		k = i - n
	}
	m := k % (2 * n)
	if m >= n {
		m = 2*n - 1 - m
	}
	if i < 0 {
		return m, true
	}
	return n - 1 - m, true
}

func (Symmetric) ConstantValue(map[string]int) float64 { return 0 }

// Reflect mirrors interior values excluding the boundary cell.
type Reflect struct{}

func (Reflect) Name() string { return "reflect" }

func (Reflect) Equals(other Extrapolation) bool {
	_, ok := other.(Reflect)
	return ok
}

func (r Reflect) Neg() Extrapolation             { return r }
func (Reflect) SpatialGradient() Extrapolation   { return REFLECT }
func (r Reflect) Component(string) Extrapolation { return r }

func (Reflect) ValidOuterFaces(axis string) (bool, bool) { return true, true }

func (Reflect) DeterminesBoundaryValues(key string) bool { return false }

func (r Reflect) PadAxis(t tensor.Tensor, axis string, lower, upper int) (tensor.Tensor, error) {
	return tensor.PadAxis(t, axis, lower, upper,
		r.resolve, func(map[string]int) float64 { return 0 }), nil
}

func (r Reflect) ResolveIndex(axis string, i, n int) (int, bool) { return r.resolve(i, n) }

func (Reflect) resolve(i, n int) (int, bool) {
	if n == 1 {
		return 0, true
	}
	// Mirror with period 2n-2, bouncing off the edge cells.
	var k int
	if i < 0 {
		k = -i
	} else {
		k = i - n + 1
	}
	m := k % (2*n - 2)
	if m >= n {
		m = 2*n - 2 - m
	}
	if i < 0 {
		return m, true
	}
	return n - 1 - m, true
}

func (Reflect) ConstantValue(map[string]int) float64 { return 0 }

// Mixed applies a different rule per axis and side.
type Mixed struct {
	Sides map[string][2]Extrapolation // axis -> (lower, upper)
}

// NewMixed builds a per-boundary rule. Passing one Extrapolation per axis
// applies it to both sides.
func NewMixed(sides map[string][2]Extrapolation) Mixed {
	cp := make(map[string][2]Extrapolation, len(sides))
	for k, v := range sides {
		cp[k] = v
	}
	return Mixed{Sides: cp}
}

// Uniform is the two-sided entry for NewMixed.
func Uniform(e Extrapolation) [2]Extrapolation { return [2]Extrapolation{e, e} }

func (m Mixed) Name() string { return "mixed" }

func (m Mixed) Equals(other Extrapolation) bool {
	o, ok := other.(Mixed)
	if !ok || len(m.Sides) != len(o.Sides) {
		return false
	}
	for k, v := range m.Sides {
		ov, ok := o.Sides[k]
		if !ok || !v[0].Equals(ov[0]) || !v[1].Equals(ov[1]) {
			return false
		}
	}
	return true
}

func (m Mixed) mapSides(f func(e Extrapolation) Extrapolation) Mixed {
	out := make(map[string][2]Extrapolation, len(m.Sides))
	for k, v := range m.Sides {
		out[k] = [2]Extrapolation{f(v[0]), f(v[1])}
	}
	return Mixed{Sides: out}
}

func (m Mixed) Neg() Extrapolation {
	return m.mapSides(func(e Extrapolation) Extrapolation { return e.Neg() })
}

func (m Mixed) SpatialGradient() Extrapolation {
	return m.mapSides(func(e Extrapolation) Extrapolation { return e.SpatialGradient() })
}

func (m Mixed) Component(item string) Extrapolation {
	return m.mapSides(func(e Extrapolation) Extrapolation { return e.Component(item) })
}

func (m Mixed) side(axis string, side int) Extrapolation {
	if v, ok := m.Sides[axis]; ok {
		return v[side]
	}
	return ZERO
}

// Side exposes the rule governing one boundary of one axis.
func (m Mixed) Side(axis string, upper bool) Extrapolation {
	if upper {
		return m.side(axis, 1)
	}
	return m.side(axis, 0)
}

func (m Mixed) ValidOuterFaces(axis string) (bool, bool) {
	lo, _ := m.side(axis, 0).ValidOuterFaces(axis)
	_, hi := m.side(axis, 1).ValidOuterFaces(axis)
	return lo, hi
}

func (m Mixed) DeterminesBoundaryValues(key string) bool {
	if len(key) == 0 {
		return false
	}
	axis, side := key[:len(key)-1], 0
	if key[len(key)-1] == '+' {
		side = 1
	}
	return m.side(axis, side).DeterminesBoundaryValues(key)
}

func (m Mixed) PadAxis(t tensor.Tensor, axis string, lower, upper int) (tensor.Tensor, error) {
	lo, hi := m.side(axis, 0), m.side(axis, 1)
	return tensor.PadAxis(t, axis, lower, upper,
		func(i, n int) (int, bool) {
			if i < 0 {
				return lo.ResolveIndex(axis, i, n)
			}
			return hi.ResolveIndex(axis, i, n)
		},
		func(idx map[string]int) float64 {
			if idx[axis] < lower {
				return lo.ConstantValue(idx)
			}
			return hi.ConstantValue(idx)
		}), nil
}

func (m Mixed) ResolveIndex(axis string, i, n int) (int, bool) {
	if i < 0 {
		return m.side(axis, 0).ResolveIndex(axis, i, n)
	}
	return m.side(axis, 1).ResolveIndex(axis, i, n)
}

func (m Mixed) ConstantValue(idx map[string]int) float64 { return 0 }

// Pad grows t by the given widths per axis, each axis filled according to
// ext. Axes are processed in shape order, so later axes see the earlier
// padding — periodic wrapping therefore carries constant corner values
// outward the way the fixtures in the tests expect.
func Pad(t tensor.Tensor, widths map[string][2]int, ext Extrapolation) (tensor.Tensor, error) {
	out := t
	for _, d := range t.Shape().Dims() {
		w, ok := widths[d.Name]
		if !ok || (w[0] == 0 && w[1] == 0) {
			continue
		}
		var err error
		out, err = ext.PadAxis(out, d.Name, w[0], w[1])
		if err != nil {
			return tensor.Tensor{}, err
		}
	}
	return out, nil
}
