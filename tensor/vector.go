package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// VecSquared sums the squares of the components along the named channel
// dimension.
func VecSquared(t Tensor, dim string) Tensor {
	return Sum(Mul(t, t), dim)
}

// Length is the Euclidean norm along the named channel dimension.
func Length(t Tensor, dim string) Tensor {
	return Sqrt(VecSquared(t, dim))
}

// Normalize scales vectors to unit length, clamping the squared length
// away from zero so the result stays finite on degenerate input.
func Normalize(t Tensor, dim string, eps float64) Tensor {
	sq := VecSquared(t, dim)
	inv := Map(sq, func(v float64) float64 {
		return 1 / math.Sqrt(math.Max(v, eps*eps))
	})
	return Mul(t, inv)
}

// RotationMatrix2D builds a counter-clockwise rotation by angle radians.
func RotationMatrix2D(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(2, 2, []float64{c, -s, s, c})
}

// RotationMatrixAxis builds a 3D rotation of angle radians about the
// given (not necessarily unit) axis, via the Rodrigues formula.
func RotationMatrixAxis(axis [3]float64, angle float64) *mat.Dense {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if n == 0 {
		panic("RotationMatrixAxis: zero axis")
	}
	x, y, z := axis[0]/n, axis[1]/n, axis[2]/n
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return mat.NewDense(3, 3, []float64{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c,
	})
}

// ComposeRotations multiplies rotation matrices, a then b applied as b*a.
func ComposeRotations(a, b *mat.Dense) *mat.Dense {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	r, _ := a.Dims()
	out := mat.NewDense(r, r, nil)
	out.Mul(b, a)
	return out
}

// RotateVector applies the rotation matrix to the components of the
// "vector" channel dimension. With invert set, the transpose (inverse
// rotation) is applied instead. A nil matrix is the identity.
func RotateVector(v Tensor, rot *mat.Dense, invert bool) Tensor {
	if rot == nil {
		return v
	}
	d, ok := v.Shape().Dim("vector")
	if !ok {
		panic("RotateVector: tensor has no vector dimension")
	}
	r, c := rot.Dims()
	if r != d.Size || c != d.Size {
		panic(fmt.Errorf("rotation matrix %dx%d does not match vector dimension of size %d", r, c, d.Size))
	}
	comps := Unstack(v, "vector")
	out := make([]Tensor, d.Size)
	for i := 0; i < d.Size; i++ {
		var acc Tensor
		for j := 0; j < d.Size; j++ {
			w := rot.At(i, j)
			if invert {
				w = rot.At(j, i)
			}
			term := MulScalar(comps[j], w)
			if j == 0 {
				acc = term
			} else {
				acc = Add(acc, term)
			}
		}
		out[i] = acc
	}
	return Stack(d, out...)
}
