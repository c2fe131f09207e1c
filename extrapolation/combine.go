package extrapolation

import (
	"github.com/rupeshkmr/phiflow/tensor"
)

// The binary algebra below dispatches on the (left, right) variant pair.
// Constants combine numerically. A constant that is the operator's
// absorbing or identity element combines with any rule; any other mixing
// of distinct rules is an IncompatibleExtrapolationsError rather than a
// silent approximation.

func Add(a, b Extrapolation) (Extrapolation, error) { return combine("+", a, b) }
func Sub(a, b Extrapolation) (Extrapolation, error) { return combine("-", a, b) }
func Mul(a, b Extrapolation) (Extrapolation, error) { return combine("*", a, b) }
func Div(a, b Extrapolation) (Extrapolation, error) { return combine("/", a, b) }

// CombineOp dispatches by operator symbol; used by Field arithmetic.
func CombineOp(op string, a, b Extrapolation) (Extrapolation, error) {
	return combine(op, a, b)
}

func combine(op string, a, b Extrapolation) (Extrapolation, error) {
	am, aMixed := a.(Mixed)
	bm, bMixed := b.(Mixed)
	if aMixed || bMixed {
		return combineMixed(op, am, bm, a, b, aMixed, bMixed)
	}
	ac, aConst := a.(Constant)
	bc, bConst := b.(Constant)
	switch {
	case aConst && bConst:
		return combineConstants(op, ac, bc)
	case aConst:
		return combineConstOther(op, ac, b, true)
	case bConst:
		return combineConstOther(op, bc, a, false)
	}
	// Two non-constant rules combine only when identical.
	if a.Equals(b) {
		return a, nil
	}
	return nil, incompatible(op, a, b)
}

func combineConstants(op string, a, b Constant) (Extrapolation, error) {
	var f func(x, y float64) float64
	switch op {
	case "+":
		f = func(x, y float64) float64 { return x + y }
	case "-":
		f = func(x, y float64) float64 { return x - y }
	case "*":
		f = func(x, y float64) float64 { return x * y }
	case "/":
		f = func(x, y float64) float64 { return x / y }
	default:
		return nil, incompatible(op, a, b)
	}
	return Constant{Value: tensor.BinOp(a.Value, b.Value, f)}, nil
}

// combineConstOther handles one constant operand against a non-constant
// rule. constLeft records whether the constant is the left operand.
func combineConstOther(op string, c Constant, other Extrapolation, constLeft bool) (Extrapolation, error) {
	left, right := other, Extrapolation(c)
	if constLeft {
		left, right = c, other
	}
	switch op {
	case "+":
		if c.isScalarValue(0) {
			return other, nil
		}
	case "-":
		if c.isScalarValue(0) {
			if constLeft {
				return other.Neg(), nil
			}
			return other, nil
		}
	case "*":
		if c.isScalarValue(0) {
			return ZERO, nil
		}
		if c.isScalarValue(1) {
			return other, nil
		}
	case "/":
		if constLeft && c.isScalarValue(0) {
			return ZERO, nil
		}
		if !constLeft && c.isScalarValue(1) {
			return other, nil
		}
	}
	return nil, incompatible(op, left, right)
}

func combineMixed(op string, am, bm Mixed, a, b Extrapolation, aMixed, bMixed bool) (Extrapolation, error) {
	identity := identityFor(op)
	keys := map[string]bool{}
	if aMixed {
		for k := range am.Sides {
			keys[k] = true
		}
	}
	if bMixed {
		for k := range bm.Sides {
			keys[k] = true
		}
	}
	out := make(map[string][2]Extrapolation, len(keys))
	for k := range keys {
		var sides [2]Extrapolation
		for side := 0; side < 2; side++ {
			l := sideOrUniform(am, a, aMixed, k, side, identity)
			r := sideOrUniform(bm, b, bMixed, k, side, identity)
			combined, err := combine(op, l, r)
			if err != nil {
				return nil, err
			}
			sides[side] = combined
		}
		out[k] = sides
	}
	return Mixed{Sides: out}, nil
}

// sideOrUniform picks the per-boundary rule of a Mixed operand, the
// uniform rule of a non-Mixed operand, or the operator's identity when a
// Mixed operand lacks the boundary entirely.
func sideOrUniform(m Mixed, e Extrapolation, isMixed bool, axis string, side int, identity Extrapolation) Extrapolation {
	if !isMixed {
		return e
	}
	if v, ok := m.Sides[axis]; ok {
		return v[side]
	}
	return identity
}

func identityFor(op string) Extrapolation {
	if op == "*" || op == "/" {
		return ONE
	}
	return ZERO
}

// CombineFunc applies an arbitrary scalar operator, used for
// comparisons and exponentiation where no absorbing elements exist.
// Constants combine by value, identical rules pass through, anything
// else is incompatible.
func CombineFunc(op string, a, b Extrapolation, f func(x, y float64) float64) (Extrapolation, error) {
	am, aMixed := a.(Mixed)
	bm, bMixed := b.(Mixed)
	if aMixed || bMixed {
		keys := map[string]bool{}
		if aMixed {
			for k := range am.Sides {
				keys[k] = true
			}
		}
		if bMixed {
			for k := range bm.Sides {
				keys[k] = true
			}
		}
		out := make(map[string][2]Extrapolation, len(keys))
		for k := range keys {
			var sides [2]Extrapolation
			for side := 0; side < 2; side++ {
				l := sideOrUniform(am, a, aMixed, k, side, nil)
				r := sideOrUniform(bm, b, bMixed, k, side, nil)
				if l == nil || r == nil {
					return nil, incompatible(op, a, b)
				}
				combined, err := CombineFunc(op, l, r, f)
				if err != nil {
					return nil, err
				}
				sides[side] = combined
			}
			out[k] = sides
		}
		return Mixed{Sides: out}, nil
	}
	ac, aConst := a.(Constant)
	bc, bConst := b.(Constant)
	if aConst && bConst {
		return Constant{Value: tensor.BinOp(ac.Value, bc.Value, f)}, nil
	}
	if a.Equals(b) {
		return a, nil
	}
	return nil, incompatible(op, a, b)
}

// MapConstant transforms the constant parts of a rule elementwise,
// leaving structural rules untouched. Used for unary ops like abs.
func MapConstant(e Extrapolation, f func(v float64) float64) Extrapolation {
	switch v := e.(type) {
	case Constant:
		return Constant{Value: tensor.Map(v.Value, f)}
	case Mixed:
		return v.mapSides(func(s Extrapolation) Extrapolation { return MapConstant(s, f) })
	default:
		return e
	}
}
