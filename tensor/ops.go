package tensor

import (
	"fmt"
	"math"
)

// Map applies f elementwise, preserving collapsed dimensions and stacked
// structure.
func Map(t Tensor, f func(float64) float64) Tensor {
	if t.stackDim != nil {
		parts := make([]Tensor, len(t.parts))
		for i, p := range t.parts {
			parts[i] = Map(p, f)
		}
		return stacked(*t.stackDim, parts)
	}
	// Materialize only the non-collapsed dimensions.
	out := t.emptyLike()
	IterShape(out.materializedShape(), func(idx map[string]int) {
		out.Set(idx, f(t.At(idx)))
	})
	return out
}

// emptyLike allocates a tensor with the same shape and the same set of
// collapsed dimensions as t.
func (t Tensor) emptyLike() Tensor {
	mat := t.materializedShape()
	out := Zeros(mat)
	return Expand(out, t.shape.dims...).reorder(t.shape)
}

// materializedShape is the shape of the dimensions actually stored.
func (t Tensor) materializedShape() Shape {
	var dims []Dim
	for i, d := range t.shape.dims {
		if t.strides[i] != 0 || d.Size <= 1 {
			dims = append(dims, d)
		}
	}
	return Shape{dims: dims}
}

// reorder returns a view with dimensions in the order of target (which
// must contain exactly the same dimension names).
func (t Tensor) reorder(target Shape) Tensor {
	if len(target.dims) != len(t.shape.dims) {
		panic(fmt.Errorf("reorder: rank mismatch %v vs %v", t.shape, target))
	}
	dims := make([]Dim, len(target.dims))
	strides := make([]int, len(target.dims))
	for i, d := range target.dims {
		j := t.shape.Index(d.Name)
		if j < 0 {
			panic(fmt.Errorf("reorder: missing dimension %q", d.Name))
		}
		dims[i] = t.shape.dims[j]
		strides[i] = t.strides[j]
	}
	out := t
	out.shape = Shape{dims: dims}
	out.strides = strides
	return out
}

// BinOp combines two tensors elementwise with broadcasting by dimension
// name. The result carries the left operand's dimensions first, then any
// extra dimensions of the right operand. Dimensions sharing a name must
// agree on size; a mismatch is a programmer error at this level, callers
// validate shapes beforehand.
func BinOp(a, b Tensor, f func(x, y float64) float64) Tensor {
	if a.stackDim != nil || b.stackDim != nil {
		name := ""
		var dim Dim
		if a.stackDim != nil {
			name, dim = a.stackDim.Name, *a.stackDim
		} else {
			name, dim = b.stackDim.Name, *b.stackDim
		}
		ap := alignParts(a, name, dim.Size)
		bp := alignParts(b, name, dim.Size)
		parts := make([]Tensor, dim.Size)
		for i := range parts {
			parts[i] = BinOp(ap[i], bp[i], f)
		}
		return stacked(dim, parts)
	}
	out, err := a.shape.Merge(b.shape)
	if err != nil {
		panic(err)
	}
	r := Zeros(out)
	IterShape(out, func(idx map[string]int) {
		r.Set(idx, f(a.At(idx), b.At(idx)))
	})
	return r
}

// alignParts splits t along the named dimension if present, otherwise
// repeats it n times.
func alignParts(t Tensor, name string, n int) []Tensor {
	if t.Shape().Has(name) {
		parts := Unstack(t, name)
		if len(parts) != n {
			panic(fmt.Errorf("dimension %q size %d does not match stack size %d", name, len(parts), n))
		}
		return parts
	}
	parts := make([]Tensor, n)
	for i := range parts {
		parts[i] = t
	}
	return parts
}

func Add(a, b Tensor) Tensor { return BinOp(a, b, func(x, y float64) float64 { return x + y }) }
func Sub(a, b Tensor) Tensor { return BinOp(a, b, func(x, y float64) float64 { return x - y }) }
func Mul(a, b Tensor) Tensor { return BinOp(a, b, func(x, y float64) float64 { return x * y }) }
func Div(a, b Tensor) Tensor { return BinOp(a, b, func(x, y float64) float64 { return x / y }) }

func AddScalar(t Tensor, s float64) Tensor { return Map(t, func(v float64) float64 { return v + s }) }
func MulScalar(t Tensor, s float64) Tensor { return Map(t, func(v float64) float64 { return v * s }) }

func Neg(t Tensor) Tensor  { return Map(t, func(v float64) float64 { return -v }) }
func Abs(t Tensor) Tensor  { return Map(t, math.Abs) }
func Sqrt(t Tensor) Tensor { return Map(t, math.Sqrt) }

// Boolean results are encoded as 0/1 tensors.
func Gt(a, b Tensor) Tensor {
	return BinOp(a, b, func(x, y float64) float64 { return b2f(x > y) })
}
func Geq(a, b Tensor) Tensor {
	return BinOp(a, b, func(x, y float64) float64 { return b2f(x >= y) })
}
func Lt(a, b Tensor) Tensor {
	return BinOp(a, b, func(x, y float64) float64 { return b2f(x < y) })
}
func Leq(a, b Tensor) Tensor {
	return BinOp(a, b, func(x, y float64) float64 { return b2f(x <= y) })
}
func AndOp(a, b Tensor) Tensor {
	return BinOp(a, b, func(x, y float64) float64 { return b2f(x != 0 && y != 0) })
}

// Where selects from a where cond is nonzero, else from b.
func Where(cond, a, b Tensor) Tensor {
	picked := BinOp(cond, a, func(c, x float64) float64 {
		if c != 0 {
			return x
		}
		return math.NaN()
	})
	return BinOp(picked, b, func(p, y float64) float64 {
		if math.IsNaN(p) {
			return y
		}
		return p
	})
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Reduce folds the named dimensions away.
func Reduce(t Tensor, names []string, init float64, f func(acc, v float64) float64) Tensor {
	if len(names) == 0 {
		return t
	}
	if t.stackDim != nil {
		sub := make([]string, 0, len(names))
		overStack := false
		for _, n := range names {
			if n == t.stackDim.Name {
				overStack = true
			} else {
				sub = append(sub, n)
			}
		}
		parts := make([]Tensor, len(t.parts))
		for i, p := range t.parts {
			parts[i] = Reduce(p, sub, init, f)
		}
		if !overStack {
			return stacked(*t.stackDim, parts)
		}
		acc := parts[0]
		for _, p := range parts[1:] {
			acc = BinOp(acc, p, f)
		}
		return acc
	}
	over := t.shape.Only(names...)
	if over.Rank() == 0 {
		return t
	}
	keep := t.shape.Without(over.Names()...)
	out := Full(keep, init)
	IterShape(t.shape, func(idx map[string]int) {
		out.Set(idx, f(out.At(idx), t.At(idx)))
	})
	return out
}

func Sum(t Tensor, names ...string) Tensor {
	return Reduce(t, names, 0, func(a, v float64) float64 { return a + v })
}

func Min(t Tensor, names ...string) Tensor {
	return Reduce(t, names, math.Inf(1), math.Min)
}

func Max(t Tensor, names ...string) Tensor {
	return Reduce(t, names, math.Inf(-1), math.Max)
}

func Mean(t Tensor, names ...string) Tensor {
	n := t.Shape().Only(names...).Volume()
	if n == 0 {
		return t
	}
	return MulScalar(Sum(t, names...), 1/float64(n))
}

// Any reduces 0/1 tensors with logical OR.
func Any(t Tensor, names ...string) Tensor {
	return Reduce(t, names, 0, func(a, v float64) float64 { return b2f(a != 0 || v != 0) })
}

// All reduces 0/1 tensors with logical AND.
func All(t Tensor, names ...string) Tensor {
	return Reduce(t, names, 1, func(a, v float64) float64 { return b2f(a != 0 && v != 0) })
}

// SelectMin returns, for every position outside dim, each of vals sliced
// at the first minimum of key along dim. Ties resolve to the lowest
// index, deterministically.
func SelectMin(key Tensor, dim string, vals ...Tensor) []Tensor {
	n := key.Shape().Size(dim)
	if n == 0 {
		out := make([]Tensor, len(vals))
		copy(out, vals)
		return out
	}
	outs := make([]Tensor, len(vals))
	for vi, val := range vals {
		outShape := val.Shape().Without(dim)
		out := Zeros(outShape)
		IterShape(outShape, func(idx map[string]int) {
			best, bestI := math.Inf(1), 0
			for i := 0; i < n; i++ {
				idx[dim] = i
				if v := key.At(idx); v < best {
					best, bestI = v, i
				}
			}
			idx[dim] = bestI
			v := val.At(idx)
			delete(idx, dim)
			out.Set(idx, v)
		})
		outs[vi] = out
	}
	return outs
}

// AllClose compares two tensors elementwise within tol, aligning
// dimensions by name. Tensors of different dimension sets are never
// close.
func AllClose(a, b Tensor, tol float64) bool {
	if a.stackDim != nil || b.stackDim != nil {
		var name string
		if a.stackDim != nil {
			name = a.stackDim.Name
		} else {
			name = b.stackDim.Name
		}
		if !a.Shape().Has(name) || !b.Shape().Has(name) {
			return false
		}
		ap, bp := Unstack(a, name), Unstack(b, name)
		if len(ap) != len(bp) {
			return false
		}
		for i := range ap {
			if !AllClose(ap[i], bp[i], tol) {
				return false
			}
		}
		return true
	}
	if !a.shape.SameSizes(b.shape) {
		return false
	}
	ok := true
	IterShape(a.shape, func(idx map[string]int) {
		if math.Abs(a.At(idx)-b.At(idx)) > tol {
			ok = false
		}
	})
	return ok
}

// SameSizes compares dimension names and sizes ignoring order, kind and
// item names.
func (s Shape) SameSizes(other Shape) bool {
	if len(s.dims) != len(other.dims) {
		return false
	}
	for _, d := range s.dims {
		o, ok := other.Dim(d.Name)
		if !ok || o.Size != d.Size {
			return false
		}
	}
	return true
}
