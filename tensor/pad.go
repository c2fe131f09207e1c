package tensor

import "fmt"

// PadAxis grows the named dimension by lower cells below and upper cells
// above. For each new cell, src receives the signed index relative to the
// original data (negative below, >= n above) and either maps it to an
// in-range source index or declines, in which case fill supplies the
// value. Collapsed (broadcast) dimensions other than axis stay collapsed.
func PadAxis(t Tensor, axis string, lower, upper int, src func(i, n int) (int, bool), fill func(idx map[string]int) float64) Tensor {
	if lower == 0 && upper == 0 {
		return t
	}
	if t.stackDim != nil {
		if t.stackDim.Name == axis {
			panic(fmt.Errorf("cannot pad stack dimension %q", axis))
		}
		parts := make([]Tensor, len(t.parts))
		for i, p := range t.parts {
			parts[i] = PadAxis(p, axis, lower, upper, src, fill)
		}
		return stacked(*t.stackDim, parts)
	}
	ai := t.shape.Index(axis)
	if ai < 0 {
		panic(fmt.Errorf("no dimension %q to pad", axis))
	}
	n := t.shape.dims[ai].Size
	outShape := t.shape.WithSize(axis, n+lower+upper)

	// Materialize the padded axis plus whatever the input materializes;
	// collapsed dims stay collapsed in the output.
	var matDims []Dim
	for i, d := range outShape.dims {
		if d.Name == axis || t.strides[i] != 0 || d.Size <= 1 {
			matDims = append(matDims, d)
		}
	}
	matShape := Shape{dims: matDims}
	out := Expand(Zeros(matShape), outShape.dims...).reorder(outShape)

	IterShape(matShape, func(idx map[string]int) {
		j := idx[axis] - lower // signed index into the original data
		var v float64
		if j >= 0 && j < n {
			save := idx[axis]
			idx[axis] = j
			v = t.At(idx)
			idx[axis] = save
		} else if s, ok := src(j, n); ok {
			save := idx[axis]
			idx[axis] = s
			v = t.At(idx)
			idx[axis] = save
		} else {
			v = fill(idx)
		}
		out.Set(idx, v)
	})
	return out
}
