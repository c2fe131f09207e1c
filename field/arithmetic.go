package field

import (
	"math"

	"github.com/rupeshkmr/phiflow/extrapolation"
	"github.com/rupeshkmr/phiflow/tensor"
)

// Binary arithmetic dispatches on two paths: fields sharing a geometry
// combine pointwise, otherwise the right operand is resampled onto the
// left's representation first. Boundary rules combine under the same
// operator. Arithmetic with bare scalars or tensors deliberately leaves
// the boundary untouched; downstream solvers rely on that asymmetry.

func (f Field) Add(other Field) (Field, error) { return f.op2(other, "+", addF) }
func (f Field) Sub(other Field) (Field, error) { return f.op2(other, "-", subF) }
func (f Field) Mul(other Field) (Field, error) { return f.op2(other, "*", mulF) }
func (f Field) Div(other Field) (Field, error) { return f.op2(other, "/", divF) }

func (f Field) Pow(other Field) (Field, error) { return f.op2Func(other, "**", math.Pow) }

func (f Field) GreaterThan(other Field) (Field, error)  { return f.op2Func(other, ">", gtF) }
func (f Field) GreaterEqual(other Field) (Field, error) { return f.op2Func(other, ">=", geqF) }
func (f Field) LessThan(other Field) (Field, error)     { return f.op2Func(other, "<", ltF) }
func (f Field) LessEqual(other Field) (Field, error)    { return f.op2Func(other, "<=", leqF) }

func addF(x, y float64) float64 { return x + y }
func subF(x, y float64) float64 { return x - y }
func mulF(x, y float64) float64 { return x * y }
func divF(x, y float64) float64 { return x / y }

func gtF(x, y float64) float64  { return b2f(x > y) }
func geqF(x, y float64) float64 { return b2f(x >= y) }
func ltF(x, y float64) float64  { return b2f(x < y) }
func leqF(x, y float64) float64 { return b2f(x <= y) }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Neg negates values and boundary alike, so the rule outside the
// sampled region stays consistent with the flipped values.
func (f Field) Neg() Field {
	return f.op1(tensor.Neg, func(e extrapolation.Extrapolation) extrapolation.Extrapolation {
		return e.Neg()
	})
}

func (f Field) Abs() Field {
	return f.op1(tensor.Abs, func(e extrapolation.Extrapolation) extrapolation.Extrapolation {
		return extrapolation.MapConstant(e, math.Abs)
	})
}

func (f Field) op1(fv func(tensor.Tensor) tensor.Tensor, fb func(extrapolation.Extrapolation) extrapolation.Extrapolation) Field {
	return Field{geometry: f.geometry, values: fv(f.values), boundary: fb(f.boundary)}
}

func (f Field) op2(other Field, op string, fn func(x, y float64) float64) (Field, error) {
	boundary, err := extrapolation.CombineOp(op, f.boundary, other.boundary)
	if err != nil {
		return Field{}, err
	}
	return f.combineWith(other, fn, boundary)
}

// op2Func covers operators outside the extrapolation algebra's
// absorbing rules: comparisons and exponentiation.
func (f Field) op2Func(other Field, op string, fn func(x, y float64) float64) (Field, error) {
	boundary, err := extrapolation.CombineFunc(op, f.boundary, other.boundary, fn)
	if err != nil {
		return Field{}, err
	}
	return f.combineWith(other, fn, boundary)
}

func (f Field) combineWith(other Field, fn func(x, y float64) float64, boundary extrapolation.Extrapolation) (Field, error) {
	rhs := other.values
	if !f.geometry.EqualTo(other.geometry) {
		sampled, err := Sample(other, f.geometry, f.SampledAt(), f.boundary)
		if err != nil {
			return Field{}, err
		}
		rhs = sampled
	}
	return New(f.geometry, tensor.BinOp(f.values, rhs, fn), boundary)
}

// Scalar arithmetic, boundary unchanged.

func (f Field) AddScalar(v float64) Field {
	return f.mapValues(func(x float64) float64 { return x + v })
}
func (f Field) SubScalar(v float64) Field {
	return f.mapValues(func(x float64) float64 { return x - v })
}
func (f Field) MulScalar(v float64) Field {
	return f.mapValues(func(x float64) float64 { return x * v })
}
func (f Field) DivScalar(v float64) Field {
	return f.mapValues(func(x float64) float64 { return x / v })
}
func (f Field) PowScalar(v float64) Field {
	return f.mapValues(func(x float64) float64 { return math.Pow(x, v) })
}

func (f Field) mapValues(fn func(float64) float64) Field {
	return Field{geometry: f.geometry, values: tensor.Map(f.values, fn), boundary: f.boundary}
}

// AddTensor combines with a raw tensor, broadcasting by name; the
// boundary stays unchanged.
func (f Field) AddTensor(t tensor.Tensor) Field { return f.opTensor(t, addF) }
func (f Field) SubTensor(t tensor.Tensor) Field { return f.opTensor(t, subF) }
func (f Field) MulTensor(t tensor.Tensor) Field { return f.opTensor(t, mulF) }
func (f Field) DivTensor(t tensor.Tensor) Field { return f.opTensor(t, divF) }

func (f Field) opTensor(t tensor.Tensor, fn func(x, y float64) float64) Field {
	// A channel vector operand pairs with staggered components through
	// the matching dual dimension.
	if f.IsStaggered() && t.Shape().Has("vector") && !f.values.Shape().Has("vector") {
		axes := f.geometry.Axes()
		parts := make([]tensor.Tensor, len(axes))
		for i, a := range axes {
			parts[i] = t.Item("vector", a)
		}
		t = tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...)
	}
	return Field{geometry: f.geometry, values: tensor.BinOp(f.values, t, fn), boundary: f.boundary}
}

// AddVector pairs per-axis constants with the field's components.
func (f Field) AddVector(components []float64) Field {
	return f.opTensor(vectorOf(f, components), addF)
}

func (f Field) MulVector(components []float64) Field {
	return f.opTensor(vectorOf(f, components), mulF)
}

func vectorOf(f Field, components []float64) tensor.Tensor {
	axes := f.geometry.Axes()
	return tensor.FromData(tensor.NewShape(tensor.Vector(axes...)), components)
}
