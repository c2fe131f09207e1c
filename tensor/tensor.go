package tensor

import (
	"fmt"
)

// Tensor is an immutable named-dimension array. Most tensors are uniform:
// a shape, strides and flat float64 data. A dimension with stride 0 and
// size > 1 is collapsed (broadcast): its values are shared rather than
// materialized, and operations preserve that representation where they
// can.
//
// A tensor may instead be stacked: a stack dimension over parts whose
// spatial sizes may differ. Staggered fields use this to hold one face
// array per vector component.
type Tensor struct {
	shape   Shape
	strides []int
	offset  int
	data    []float64

	stackDim *Dim
	parts    []Tensor
}

func contiguousStrides(dims []Dim) []int {
	strides := make([]int, len(dims))
	s := 1
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = s
		s *= dims[i].Size
	}
	return strides
}

func Zeros(s Shape) Tensor {
	return Tensor{
		shape:   s,
		strides: contiguousStrides(s.dims),
		data:    make([]float64, s.Volume()),
	}
}

func Ones(s Shape) Tensor { return Full(s, 1) }

func Full(s Shape, v float64) Tensor {
	t := Zeros(s)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Wrap lifts a scalar into a rank-0 tensor.
func Wrap(v float64) Tensor {
	return Tensor{shape: Shape{}, strides: []int{}, data: []float64{v}}
}

// FromData builds a tensor from row-major data in dimension order.
func FromData(s Shape, data []float64) Tensor {
	if len(data) != s.Volume() {
		panic(fmt.Errorf("data length %d does not match shape %v (volume %d)",
			len(data), s, s.Volume()))
	}
	d := make([]float64, len(data))
	copy(d, data)
	return Tensor{shape: s, strides: contiguousStrides(s.dims), data: d}
}

// Expand adds broadcast dimensions with stride 0, sharing the underlying
// data. Dimensions already present are ignored.
func Expand(t Tensor, dims ...Dim) Tensor {
	if t.stackDim != nil {
		parts := make([]Tensor, len(t.parts))
		for i, p := range t.parts {
			parts[i] = Expand(p, dims...)
		}
		return stacked(*t.stackDim, parts)
	}
	out := t
	for _, d := range dims {
		if out.shape.Has(d.Name) {
			continue
		}
		out.shape = out.shape.WithDim(d)
		strides := make([]int, len(out.strides), len(out.strides)+1)
		copy(strides, out.strides)
		out.strides = append(strides, 0)
	}
	return out
}

func stacked(dim Dim, parts []Tensor) Tensor {
	dim.Size = len(parts)
	d := dim
	return Tensor{stackDim: &d, parts: parts}
}

func (t Tensor) IsStacked() bool { return t.stackDim != nil }

// StackedDim returns the stack dimension of a non-uniform tensor, or
// false for uniform tensors.
func (t Tensor) StackedDim() (Dim, bool) {
	if t.stackDim == nil {
		return Dim{}, false
	}
	return *t.stackDim, true
}

// Shape of a stacked tensor is the stack dimension plus the union of the
// part shapes, with size -1 where parts disagree.
func (t Tensor) Shape() Shape {
	if t.stackDim == nil {
		return t.shape
	}
	out := NewShape(*t.stackDim)
	for _, p := range t.parts {
		for _, d := range p.Shape().dims {
			if i := out.Index(d.Name); i >= 0 {
				if out.dims[i].Size != d.Size {
					out.dims[i].Size = -1
					out.dims[i].Items = nil
				}
				continue
			}
			out.dims = append(out.dims, d)
		}
	}
	return out
}

// IsUniform reports whether the tensor (recursively) has one materialized
// layout, i.e. no stacked parts of differing shapes.
func (t Tensor) IsUniform() bool {
	if t.stackDim == nil {
		return true
	}
	for i, p := range t.parts {
		if !p.IsUniform() {
			return false
		}
		if i > 0 && !p.Shape().SameDims(t.parts[0].Shape()) {
			return false
		}
	}
	return true
}

// IsCollapsed reports whether the named dimension is broadcast rather
// than materialized.
func (t Tensor) IsCollapsed(name string) bool {
	if t.stackDim != nil {
		if t.stackDim.Name == name {
			return false
		}
		for _, p := range t.parts {
			if !p.IsCollapsed(name) {
				return false
			}
		}
		return true
	}
	i := t.shape.Index(name)
	return i >= 0 && t.strides[i] == 0 && t.shape.dims[i].Size > 1
}

func (t Tensor) Scalar() float64 {
	if t.stackDim != nil || t.shape.Volume() != 1 {
		panic(fmt.Errorf("not a scalar tensor: %v", t.Shape()))
	}
	return t.data[t.offset]
}

// At reads the value at the given named index. Entries for dimensions not
// present in the shape are ignored; absent entries default to index 0.
func (t Tensor) At(idx map[string]int) float64 {
	if t.stackDim != nil {
		i, ok := idx[t.stackDim.Name]
		if !ok {
			i = 0
		}
		return t.parts[i].At(idx)
	}
	off := t.offset
	for i, d := range t.shape.dims {
		j, ok := idx[d.Name]
		if !ok {
			j = 0
		}
		if j < 0 || j >= d.Size {
			panic(fmt.Errorf("index %d out of range for dimension %s=%d", j, d.Name, d.Size))
		}
		off += j * t.strides[i]
	}
	return t.data[off]
}

// Set writes a value. Tensors are treated as immutable once published;
// Set exists for construction code within this module and tests.
func (t Tensor) Set(idx map[string]int, v float64) {
	if t.stackDim != nil {
		i := idx[t.stackDim.Name]
		t.parts[i].Set(idx, v)
		return
	}
	off := t.offset
	for i, d := range t.shape.dims {
		j := idx[d.Name]
		if t.strides[i] == 0 && j != 0 && d.Size > 1 {
			panic(fmt.Errorf("cannot write to collapsed dimension %q", d.Name))
		}
		off += j * t.strides[i]
	}
	t.data[off] = v
}

// each visits every element of a uniform tensor in shape order.
func (t Tensor) each(f func(multi []int, v float64)) {
	if t.stackDim != nil {
		panic("each: stacked tensor")
	}
	rank := len(t.shape.dims)
	multi := make([]int, rank)
	n := t.shape.Volume()
	for c := 0; c < n; c++ {
		off := t.offset
		for i := range multi {
			off += multi[i] * t.strides[i]
		}
		f(multi, t.data[off])
		for i := rank - 1; i >= 0; i-- {
			multi[i]++
			if multi[i] < t.shape.dims[i].Size {
				break
			}
			multi[i] = 0
		}
	}
}

// IterShape visits every multi-index of a shape as a name->index map.
// The map is reused between calls.
func IterShape(s Shape, f func(idx map[string]int)) {
	rank := len(s.dims)
	multi := make([]int, rank)
	idx := make(map[string]int, rank)
	n := s.Volume()
	for c := 0; c < n; c++ {
		for i, d := range s.dims {
			idx[d.Name] = multi[i]
		}
		f(idx)
		for i := rank - 1; i >= 0; i-- {
			multi[i]++
			if multi[i] < s.dims[i].Size {
				break
			}
			multi[i] = 0
		}
	}
}

// Native returns a contiguous row-major copy of the data in shape order.
func (t Tensor) Native() []float64 {
	if t.stackDim != nil {
		u := t.uniform()
		return u.Native()
	}
	out := make([]float64, t.shape.Volume())
	i := 0
	t.each(func(_ []int, v float64) {
		out[i] = v
		i++
	})
	return out
}

// uniform materializes a stacked tensor whose parts share one shape.
func (t Tensor) uniform() Tensor {
	if t.stackDim == nil {
		return t
	}
	if !t.IsUniform() {
		panic(fmt.Errorf("cannot densify non-uniform tensor %v", t.Shape()))
	}
	parts := make([]Tensor, len(t.parts))
	for i, p := range t.parts {
		parts[i] = p.uniform()
	}
	base := parts[0].Shape()
	out := Zeros(base.WithDim(*t.stackDim))
	IterShape(out.shape, func(idx map[string]int) {
		out.Set(idx, parts[idx[t.stackDim.Name]].At(idx))
	})
	return out
}

// Index selects one slice along the named dimension, dropping it.
func (t Tensor) Index(name string, i int) Tensor {
	if t.stackDim != nil {
		if t.stackDim.Name == name {
			return t.parts[i]
		}
		parts := make([]Tensor, len(t.parts))
		for j, p := range t.parts {
			parts[j] = p.Index(name, i)
		}
		return stacked(*t.stackDim, parts)
	}
	di := t.shape.Index(name)
	if di < 0 {
		return t
	}
	if i < 0 || i >= t.shape.dims[di].Size {
		panic(fmt.Errorf("index %d out of range for %s=%d", i, name, t.shape.dims[di].Size))
	}
	out := t
	out.offset += i * t.strides[di]
	out.shape = t.shape.Without(name)
	strides := make([]int, 0, len(t.strides)-1)
	for j := range t.strides {
		if j != di {
			strides = append(strides, t.strides[j])
		}
	}
	out.strides = strides
	return out
}

// Item selects one slice of a channel dimension by its item name.
func (t Tensor) Item(name, item string) Tensor {
	d, ok := t.Shape().Dim(name)
	if !ok {
		return t
	}
	i := d.ItemIndex(item)
	if i < 0 {
		panic(fmt.Errorf("no item %q in dimension %s%v", item, name, d.Items))
	}
	return t.Index(name, i)
}

// Range keeps [lo,hi) of the named dimension.
func (t Tensor) Range(name string, lo, hi int) Tensor {
	if t.stackDim != nil {
		if t.stackDim.Name == name {
			return stacked(*t.stackDim, t.parts[lo:hi])
		}
		parts := make([]Tensor, len(t.parts))
		for j, p := range t.parts {
			parts[j] = p.Range(name, lo, hi)
		}
		return stacked(*t.stackDim, parts)
	}
	di := t.shape.Index(name)
	if di < 0 {
		return t
	}
	d := t.shape.dims[di]
	if lo < 0 || hi > d.Size || lo > hi {
		panic(fmt.Errorf("range [%d,%d) out of bounds for %s=%d", lo, hi, name, d.Size))
	}
	out := t
	out.offset += lo * t.strides[di]
	dims := make([]Dim, len(t.shape.dims))
	copy(dims, t.shape.dims)
	dims[di].Size = hi - lo
	if dims[di].Items != nil {
		dims[di].Items = dims[di].Items[lo:hi]
	}
	out.shape = Shape{dims: dims}
	strides := make([]int, len(t.strides))
	copy(strides, t.strides)
	out.strides = strides
	return out
}

// Items gathers the named items of a channel dimension into a new tensor
// whose dimension lists exactly those items.
func (t Tensor) Items(name string, items ...string) Tensor {
	d, ok := t.Shape().Dim(name)
	if !ok {
		panic(fmt.Errorf("no dimension %q", name))
	}
	parts := make([]Tensor, len(items))
	for i, it := range items {
		j := d.ItemIndex(it)
		if j < 0 {
			panic(fmt.Errorf("no item %q in dimension %s%v", it, name, d.Items))
		}
		parts[i] = t.Index(name, j)
	}
	nd := d
	nd.Size = len(items)
	nd.Items = items
	return Stack(nd, parts...)
}

// Stack combines tensors along a new dimension. Parts sharing one shape
// produce a uniform tensor with the new dimension appended last; parts of
// differing shapes produce a stacked (non-uniform) tensor.
func Stack(dim Dim, parts ...Tensor) Tensor {
	if len(parts) == 0 {
		panic("Stack: no parts")
	}
	uniform := true
	for i, p := range parts {
		if p.stackDim != nil || (i > 0 && !p.Shape().SameDims(parts[0].Shape())) {
			uniform = false
			break
		}
	}
	if !uniform {
		cp := make([]Tensor, len(parts))
		copy(cp, parts)
		return stacked(dim, cp)
	}
	dim.Size = len(parts)
	if dim.Items != nil && len(dim.Items) != len(parts) {
		panic(fmt.Errorf("stack dimension %q has %d items for %d parts", dim.Name, len(dim.Items), len(parts)))
	}
	out := Zeros(parts[0].shape.WithDim(dim))
	IterShape(out.shape, func(idx map[string]int) {
		out.Set(idx, parts[idx[dim.Name]].At(idx))
	})
	return out
}

// Unstack splits a tensor along the named dimension.
func Unstack(t Tensor, name string) []Tensor {
	if t.stackDim != nil && t.stackDim.Name == name {
		out := make([]Tensor, len(t.parts))
		copy(out, t.parts)
		return out
	}
	d, ok := t.Shape().Dim(name)
	if !ok {
		panic(fmt.Errorf("no dimension %q to unstack", name))
	}
	out := make([]Tensor, d.Size)
	for i := 0; i < d.Size; i++ {
		out[i] = t.Index(name, i)
	}
	return out
}

// Concat joins tensors along an existing dimension.
func Concat(name string, parts ...Tensor) Tensor {
	if len(parts) == 0 {
		panic("Concat: no parts")
	}
	total := 0
	for _, p := range parts {
		d, ok := p.Shape().Dim(name)
		if !ok {
			panic(fmt.Errorf("concat: part missing dimension %q", name))
		}
		total += d.Size
	}
	d, _ := parts[0].Shape().Dim(name)
	d.Size = total
	d.Items = nil
	out := Zeros(parts[0].Shape().Without(name).WithDim(d))
	offset := 0
	for _, p := range parts {
		ps := p.Shape()
		n := ps.Size(name)
		IterShape(ps, func(idx map[string]int) {
			v := p.At(idx)
			idx[name] += offset
			out.Set(idx, v)
			idx[name] -= offset
		})
		offset += n
	}
	return out
}

func (t Tensor) String() string {
	if t.stackDim != nil {
		return fmt.Sprintf("stacked[%s]%v", t.stackDim.Name, t.Shape())
	}
	if t.shape.Volume() == 1 {
		return fmt.Sprintf("%g", t.data[t.offset])
	}
	return fmt.Sprintf("tensor%v", t.shape)
}
